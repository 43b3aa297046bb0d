package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// ErrNoHandle is returned when an element carries no backend node id.
var ErrNoHandle = errors.New("cdpdriver: element has no backend node id")

// Page is one Chrome tab. It satisfies dom.Driver.
type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger
	navTimeout time.Duration

	mu          sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

var _ dom.Driver = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, navTimeout time.Duration, logger *zap.Logger) *Page {
	return &Page{
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		navTimeout:  navTimeout,
		subscribers: make(map[int]chan struct{}),
	}
}

// combine derives a context from the tab context, which carries the CDP
// target, that is also cancelled when op is done.
func (p *Page) combine(op context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(p.ctx)
	if deadline, ok := op.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		ctx, cancelDeadline = context.WithDeadline(ctx, deadline)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	stop := context.AfterFunc(op, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (p *Page) run(op context.Context, actions ...chromedp.Action) error {
	ctx, cancel := p.combine(op)
	defer cancel()
	if err := chromedp.Run(ctx, actions...); err != nil {
		if op.Err() != nil {
			return op.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.navTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.navTimeout)
		defer cancel()
	}
	p.logger.Debug("Navigating.", zap.String("url", url))
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("cdpdriver: navigate to %s: %w", url, err)
	}
	return nil
}

// Subscribe signals after mutations reported by the injected observer. The
// subscription ends when cancel is called or ctx is done.
func (p *Page) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return ch, func() {
		stop()
		remove()
	}, nil
}

func (p *Page) notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes the tab.
func (p *Page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
