package action

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Decode turns a loosely typed descriptor into its Action variant. Types
// outside the recognized set decode to Unknown without error; malformed data
// fields yield an *ActionError wrapping ErrInvalidData. Decode never panics.
func Decode(d schemas.ActionDescriptor) (Action, error) {
	h := Header{ID: d.ID, Type: schemas.ActionType(strings.ToLower(strings.TrimSpace(string(d.Type))))}
	b := bag{data: d.Data}

	var target Target
	if hasTarget(h.Type) {
		target = b.target()
	}

	var a Action
	switch h.Type {
	case schemas.ActionClick, schemas.ActionClickElement:
		a = Click{Header: h, Target: target}
	case schemas.ActionDoubleClick:
		a = DoubleClick{Header: h, Target: target}
	case schemas.ActionRightClick:
		a = RightClick{Header: h, Target: target}
	case schemas.ActionHover:
		a = Hover{Header: h, Target: target}
	case schemas.ActionInputText:
		text := b.str(schemas.KeyText)
		if !b.has(schemas.KeyText) {
			text = b.str(schemas.KeyValue)
		}
		a = InputText{Header: h, Target: target, Text: text}
	case schemas.ActionScroll:
		dir := Direction(strings.ToLower(b.str(schemas.KeyDirection)))
		switch dir {
		case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		case "":
			dir = DirectionDown
		default:
			b.fail(schemas.KeyDirection, "must be up, down, left or right, got %q", dir)
		}
		a = Scroll{Header: h, Target: target, Direction: dir, Offset: math.Abs(b.number(schemas.KeyOffset))}
	case schemas.ActionSubmitForm:
		a = SubmitForm{Header: h, Target: target}
	case schemas.ActionKeyPress:
		a = KeyPress{Header: h, Target: target, Key: b.str(schemas.KeyKey)}
	case schemas.ActionExtract, schemas.ActionExtractContent:
		a = Extract{Header: h, Target: target}
	case schemas.ActionSelect:
		value := b.str(schemas.KeyValue)
		if !b.has(schemas.KeyValue) {
			value = b.str(schemas.KeyText)
		}
		a = Select{Header: h, Target: target, Value: value}
	case schemas.ActionNavigate:
		u := strings.TrimSpace(b.str(schemas.KeyURL))
		if u == "" && b.err == nil {
			b.fail(schemas.KeyURL, "is required")
		}
		a = Navigate{Header: h, URL: u}
	case schemas.ActionVerify:
		a = Verify{Header: h, Target: target, Text: b.str(schemas.KeyText)}
	case schemas.ActionWait:
		a = Wait{Header: h, Duration: b.duration(schemas.KeyDuration)}
	case schemas.ActionDone:
		a = Done{Header: h, Text: b.str(schemas.KeyText)}
	default:
		a = Unknown{Header: h}
	}

	if b.err != nil {
		return a, &ActionError{ActionID: h.ID, Type: h.Type, Err: b.err}
	}
	return a, nil
}

func hasTarget(t schemas.ActionType) bool {
	switch t {
	case schemas.ActionNavigate, schemas.ActionWait, schemas.ActionDone:
		return false
	}
	for _, known := range schemas.KnownActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// bag reads typed fields out of a descriptor's data map. The first problem
// is kept in err; later reads return zero values.
type bag struct {
	data map[string]any
	err  error
}

func (b *bag) fail(key, format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s %s", ErrInvalidData, key, fmt.Sprintf(format, args...))
	}
}

func (b *bag) has(key string) bool {
	v, ok := b.data[key]
	return ok && v != nil
}

func (b *bag) target() Target {
	t := Target{
		Selector: strings.TrimSpace(b.str(schemas.KeySelector)),
		XPath:    strings.TrimSpace(b.str(schemas.KeyXPath)),
		Frame:    b.path(schemas.KeyFrame),
	}
	if b.has(schemas.KeyIndex) {
		idx := b.number(schemas.KeyIndex)
		if idx != math.Trunc(idx) || idx < 1 {
			b.fail(schemas.KeyIndex, "must be a positive integer, got %v", b.data[schemas.KeyIndex])
		} else {
			t.Index = int(idx)
		}
	}
	return t
}

func (b *bag) str(key string) string {
	v, ok := b.data[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		b.fail(key, "must be a string, got %T", v)
		return ""
	}
}

// number accepts JSON numbers, Go integers and numeric strings.
func (b *bag) number(key string) float64 {
	v, ok := b.data[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			b.fail(key, "must be finite")
			return 0
		}
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			b.fail(key, "must be a number, got %q", n)
			return 0
		}
		return f
	default:
		b.fail(key, "must be a number, got %T", v)
		return 0
	}
}

// duration reads milliseconds, or a Go duration string such as "1.5s".
func (b *bag) duration(key string) time.Duration {
	if s, ok := b.data[key].(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			if d < 0 {
				b.fail(key, "must not be negative")
				return 0
			}
			return d
		}
	}
	ms := b.number(key)
	if ms < 0 {
		b.fail(key, "must not be negative")
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// path reads a frame path: a list of non-negative integers.
func (b *bag) path(key string) []int {
	v, ok := b.data[key]
	if !ok || v == nil {
		return nil
	}
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []int:
		return append([]int(nil), list...)
	default:
		b.fail(key, "must be a list of frame positions, got %T", v)
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		f, ok := item.(float64)
		if n, isInt := item.(int); isInt {
			f, ok = float64(n), true
		}
		if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			b.fail(key, "must contain non-negative integers, got %v", item)
			return nil
		}
		out = append(out, int(f))
	}
	return out
}
