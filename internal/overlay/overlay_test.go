package overlay_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
	"github.com/xkilldash9x/pagepilot/internal/overlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockPainter is a testify mock of dom.Painter.
type mockPainter struct {
	mock.Mock
	mu      sync.Mutex
	removed []string
}

func (m *mockPainter) DrawOverlay(ctx context.Context, h dom.Highlight) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockPainter) RemoveOverlay(ctx context.Context, id string) error {
	m.mu.Lock()
	m.removed = append(m.removed, id)
	m.mu.Unlock()
	return m.Called(ctx, id).Error(0)
}

func (m *mockPainter) ClearOverlays(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPainter) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

func TestHighlight_ExpiresAfterTTL(t *testing.T) {
	painter := new(mockPainter)
	painter.On("DrawOverlay", mock.Anything, mock.MatchedBy(func(h dom.Highlight) bool {
		return h.Label == "7" && h.Rect == dom.Rect{X: 1, Y: 2, Width: 3, Height: 4}
	})).Return(nil).Once()
	painter.On("RemoveOverlay", mock.Anything, mock.Anything).Return(nil).Once()

	o := overlay.New(painter, 20*time.Millisecond, zaptest.NewLogger(t))
	id, err := o.Highlight(context.Background(), dom.Rect{X: 1, Y: 2, Width: 3, Height: 4}, "7")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "pagepilot-highlight-"))
	assert.Equal(t, 1, o.Pending())

	require.Eventually(t, func() bool { return o.Pending() == 0 }, time.Second, 5*time.Millisecond)
	o.Close()
	assert.Equal(t, []string{id}, painter.removedIDs())
	painter.AssertExpectations(t)
}

func TestHighlight_CyclesColors(t *testing.T) {
	painter := new(mockPainter)
	var colors []string
	painter.On("DrawOverlay", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		colors = append(colors, args.Get(1).(dom.Highlight).Color)
	}).Return(nil)

	o := overlay.New(painter, 0, zaptest.NewLogger(t))
	for i := 0; i < 11; i++ {
		_, err := o.Highlight(context.Background(), dom.Rect{Width: 1, Height: 1}, "")
		require.NoError(t, err)
	}
	assert.Zero(t, o.Pending(), "no ttl means no timers")
	require.Len(t, colors, 11)
	assert.NotEqual(t, colors[0], colors[1])
	assert.Equal(t, colors[0], colors[10])
}

func TestClear_CancelsPendingRemovals(t *testing.T) {
	painter := new(mockPainter)
	painter.On("DrawOverlay", mock.Anything, mock.Anything).Return(nil)
	painter.On("ClearOverlays", mock.Anything).Return(nil).Once()

	o := overlay.New(painter, time.Hour, zaptest.NewLogger(t))
	for i := 0; i < 3; i++ {
		_, err := o.Highlight(context.Background(), dom.Rect{Width: 1, Height: 1}, "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, o.Pending())

	require.NoError(t, o.Clear(context.Background()))
	assert.Zero(t, o.Pending())
	o.Close()
	assert.Empty(t, painter.removedIDs())
	painter.AssertExpectations(t)
}

func TestHighlight_DrawFailure(t *testing.T) {
	painter := new(mockPainter)
	boom := errors.New("no body")
	painter.On("DrawOverlay", mock.Anything, mock.Anything).Return(boom)
	painter.On("ClearOverlays", mock.Anything).Return(boom)

	o := overlay.New(painter, time.Hour, zaptest.NewLogger(t))
	_, err := o.Highlight(context.Background(), dom.Rect{Width: 1, Height: 1}, "1")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, o.Pending())
	assert.ErrorIs(t, o.Clear(context.Background()), boom)
}

func TestOverlay_InMemoryPage(t *testing.T) {
	page, err := memdom.NewFromHTML(zaptest.NewLogger(t), "https://example.test/", `<p>hello</p>`)
	require.NoError(t, err)

	o := overlay.New(page, 20*time.Millisecond, zaptest.NewLogger(t))
	id, err := o.Highlight(context.Background(), dom.Rect{X: 5, Y: 5, Width: 50, Height: 20}, "1")
	require.NoError(t, err)

	doc, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	_, ok, err := doc.QuerySelector("#" + id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		doc, err := page.Snapshot(context.Background())
		if err != nil {
			return false
		}
		_, found, _ := doc.QuerySelector("#" + id)
		return !found
	}, time.Second, 5*time.Millisecond)
	o.Close()
}
