package performer_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// mockDriver is a testify mock of dom.Driver.
type mockDriver struct {
	mock.Mock
}

var _ dom.Driver = (*mockDriver)(nil)

func (m *mockDriver) Snapshot(ctx context.Context) (*dom.Document, error) {
	args := m.Called(ctx)
	doc, _ := args.Get(0).(*dom.Document)
	return doc, args.Error(1)
}

func (m *mockDriver) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(<-chan struct{})
	cancel, _ := args.Get(1).(func())
	return ch, cancel, args.Error(2)
}

func (m *mockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockDriver) Click(ctx context.Context, el dom.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *mockDriver) Dispatch(ctx context.Context, el dom.Element, ev dom.Event) error {
	return m.Called(ctx, el, ev).Error(0)
}

func (m *mockDriver) Focus(ctx context.Context, el dom.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *mockDriver) SetValue(ctx context.Context, el dom.Element, value string) error {
	return m.Called(ctx, el, value).Error(0)
}

func (m *mockDriver) InsertText(ctx context.Context, el dom.Element, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *mockDriver) Paste(ctx context.Context, el dom.Element, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *mockDriver) SetInnerText(ctx context.Context, el dom.Element, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *mockDriver) ScrollIntoView(ctx context.Context, el dom.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *mockDriver) ScrollBy(ctx context.Context, dx, dy float64) error {
	return m.Called(ctx, dx, dy).Error(0)
}

func (m *mockDriver) ScrollToEnd(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) Submit(ctx context.Context, form dom.Element) error {
	return m.Called(ctx, form).Error(0)
}

func (m *mockDriver) DrawOverlay(ctx context.Context, h dom.Highlight) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockDriver) RemoveOverlay(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockDriver) ClearOverlays(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// methods lists the names of the recorded calls in order.
func (m *mockDriver) methods() []string {
	var out []string
	for _, c := range m.Calls {
		out = append(out, c.Method)
	}
	return out
}

// events lists the types of dispatched events in order.
func (m *mockDriver) events() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "Dispatch" {
			out = append(out, c.Arguments.Get(2).(dom.Event).Type)
		}
	}
	return out
}

type mockHighlighter struct {
	mock.Mock
}

func (m *mockHighlighter) Highlight(ctx context.Context, rect dom.Rect, label string) (string, error) {
	args := m.Called(ctx, rect, label)
	return args.String(0), args.Error(1)
}
