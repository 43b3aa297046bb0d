package schemas

import (
	"fmt"
	"io"

	json "github.com/json-iterator/go"
)

var codec = json.ConfigCompatibleWithStandardLibrary

// DecodeActions reads a JSON batch of action descriptors. A single object is
// accepted as a batch of one.
func DecodeActions(r io.Reader) ([]ActionDescriptor, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}

	var batch []ActionDescriptor
	if err := codec.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}

	var single ActionDescriptor
	if err := codec.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	if single.Type == "" {
		return nil, fmt.Errorf("failed to decode actions: missing action type")
	}
	return []ActionDescriptor{single}, nil
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := codec.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
