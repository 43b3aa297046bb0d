package dom

import (
	"errors"
	"fmt"
)

// ErrInaccessibleFrame is matched by every FrameAccessError.
var ErrInaccessibleFrame = errors.New("inaccessible frame")

// ErrInvalidLocator is returned for selectors or XPath expressions that do
// not parse.
var ErrInvalidLocator = errors.New("invalid locator")

// FrameAccessError reports an iframe whose content document cannot be read,
// usually because it is cross-origin.
type FrameAccessError struct {
	Path   []int
	Src    string
	Reason string
}

func (e *FrameAccessError) Error() string {
	where := "frame"
	if len(e.Path) > 0 {
		where = fmt.Sprintf("frame %v", e.Path)
	}
	if e.Src != "" {
		where += fmt.Sprintf(" (%s)", e.Src)
	}
	return fmt.Sprintf("%s is not accessible: %s", where, e.Reason)
}

func (e *FrameAccessError) Unwrap() error {
	return ErrInaccessibleFrame
}

// withPath stamps a frame path on a FrameAccessError, leaving other errors
// untouched.
func withPath(err error, path []int) error {
	var fae *FrameAccessError
	if errors.As(err, &fae) {
		cp := *fae
		cp.Path = clonePath(path)
		return &cp
	}
	return err
}
