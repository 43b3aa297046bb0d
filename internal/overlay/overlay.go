// Package overlay draws transient debug highlights over page elements.
// Overlays never influence control flow: drawing failures are logged and
// returned, but callers are free to ignore them.
package overlay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// DefaultTTL is how long a highlight stays on the page.
const DefaultTTL = 2500 * time.Millisecond

// palette cycles through distinguishable colors.
var palette = []string{
	"#FF0000", "#00C853", "#2962FF", "#FF6D00", "#AA00FF",
	"#00B8D4", "#C51162", "#AEEA00", "#6200EA", "#FFD600",
}

// Overlay manages highlight boxes on one page. Each box removes itself once
// its TTL elapses.
type Overlay struct {
	painter dom.Painter
	ttl     time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	drawn  int
	// pending tracks removal callbacks that are scheduled or running.
	pending sync.WaitGroup
}

// New creates an Overlay. A ttl of zero or less keeps boxes until Clear.
func New(painter dom.Painter, ttl time.Duration, logger *zap.Logger) *Overlay {
	return &Overlay{
		painter: painter,
		ttl:     ttl,
		logger:  logger.Named("overlay"),
		timers:  make(map[string]*time.Timer),
	}
}

// Highlight draws a labeled box at rect, which is in top-level viewport
// coordinates, and returns the box id.
func (o *Overlay) Highlight(ctx context.Context, rect dom.Rect, label string) (string, error) {
	id := "pagepilot-highlight-" + uuid.NewString()

	o.mu.Lock()
	color := palette[o.drawn%len(palette)]
	o.drawn++
	o.mu.Unlock()

	h := dom.Highlight{ID: id, Rect: rect, Label: label, Color: color}
	if err := o.painter.DrawOverlay(ctx, h); err != nil {
		o.logger.Debug("Failed to draw highlight.", zap.String("label", label), zap.Error(err))
		return "", err
	}

	if o.ttl > 0 {
		o.mu.Lock()
		o.pending.Add(1)
		o.timers[id] = time.AfterFunc(o.ttl, func() {
			defer o.pending.Done()
			o.expire(id)
		})
		o.mu.Unlock()
	}
	return id, nil
}

func (o *Overlay) expire(id string) {
	o.mu.Lock()
	_, live := o.timers[id]
	delete(o.timers, id)
	o.mu.Unlock()
	if !live {
		return
	}
	// The caller's context may be long gone by now.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.painter.RemoveOverlay(ctx, id); err != nil {
		o.logger.Debug("Failed to remove expired highlight.", zap.String("id", id), zap.Error(err))
	}
}

// Clear cancels pending removals and removes every box from the page.
func (o *Overlay) Clear(ctx context.Context) error {
	o.stopTimers()
	if err := o.painter.ClearOverlays(ctx); err != nil {
		o.logger.Debug("Failed to clear highlights.", zap.Error(err))
		return err
	}
	return nil
}

// Close cancels pending removals without touching the page and waits for
// removals already in progress.
func (o *Overlay) Close() {
	o.stopTimers()
	o.pending.Wait()
}

// Pending returns the number of boxes still waiting for removal.
func (o *Overlay) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.timers)
}

func (o *Overlay) stopTimers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, timer := range o.timers {
		if timer.Stop() {
			o.pending.Done()
		}
		delete(o.timers, id)
	}
}
