package memdom

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Loader fetches the markup behind a URL.
type Loader func(ctx context.Context, rawURL string) (string, error)

// DefaultLoader understands about:, data: and file: URLs. Bare paths are read
// from disk. Network schemes belong to the browser-backed driver.
func DefaultLoader(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "about":
		return "", nil
	case "data":
		return decodeDataURL(rawURL)
	case "file":
		b, err := os.ReadFile(u.Path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "":
		b, err := os.ReadFile(rawURL)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// decodeDataURL decodes data:[<mediatype>][;base64],<data>.
func decodeDataURL(rawURL string) (string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return "", fmt.Errorf("malformed data url")
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("decode data url: %w", err)
		}
		return string(b), nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", fmt.Errorf("decode data url: %w", err)
	}
	return s, nil
}
