package cdpdriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

func TestSplitArg(t *testing.T) {
	tests := []struct {
		arg   string
		name  string
		value any
	}{
		{"--lang=en-US", "lang", "en-US"},
		{"--mute-audio", "mute-audio", true},
		{"proxy-server=http://127.0.0.1:8080", "proxy-server", "http://127.0.0.1:8080"},
		{"  --window-position=0,0 ", "window-position", "0,0"},
		{"--", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, value := splitArg(tt.arg)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	base := len(AllocatorOptions(cfg))

	cfg.Args = []string{"--lang=en-US", "--", "--mute-audio"}
	cfg.ExecPath = "/opt/chrome/chrome"
	assert.Len(t, AllocatorOptions(cfg), base+3, "empty flag names are dropped")
}

func newTestPage(t *testing.T) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newPage(ctx, cancel, time.Second, zaptest.NewLogger(t))
}

func TestCombine(t *testing.T) {
	t.Run("operation cancel", func(t *testing.T) {
		p := newTestPage(t)
		op, cancelOp := context.WithCancel(context.Background())
		ctx, cancel := p.combine(op)
		defer cancel()

		cancelOp()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context outlived the operation")
		}
		assert.NoError(t, p.ctx.Err(), "the tab survives")
	})

	t.Run("operation deadline", func(t *testing.T) {
		p := newTestPage(t)
		deadline := time.Now().Add(time.Hour)
		op, cancelOp := context.WithDeadline(context.Background(), deadline)
		defer cancelOp()

		ctx, cancel := p.combine(op)
		defer cancel()
		got, ok := ctx.Deadline()
		require.True(t, ok)
		assert.True(t, got.Equal(deadline))
	})

	t.Run("tab closed", func(t *testing.T) {
		p := newTestPage(t)
		ctx, cancel := p.combine(context.Background())
		defer cancel()
		p.cancel()
		<-ctx.Done()
	})
}

func TestSubscribe(t *testing.T) {
	p := newTestPage(t)
	ch, cancel, err := p.Subscribe(context.Background())
	require.NoError(t, err)

	p.notify()
	p.notify()
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	cancel()
	p.notify()
	select {
	case <-ch:
		t.Fatal("cancelled subscription received a signal")
	default:
	}

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	_, _, err = p.Subscribe(done)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestChrome drives a real browser when PAGEPILOT_CHROME is set.
func TestChrome(t *testing.T) {
	if os.Getenv("PAGEPILOT_CHROME") == "" {
		t.Skip("set PAGEPILOT_CHROME=1 to run against a local Chrome")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.NewDefaultConfig().Browser()
	b, err := Launch(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, `data:text/html,<button id="go" onclick="this.textContent='Done'">Go</button><input id="q">`))

	doc, err := p.Snapshot(ctx)
	require.NoError(t, err)
	btn := doc.Element(find(t, doc.Root, "#go"))
	assert.True(t, dom.IsVisible(btn))

	changes, stop, err := p.Subscribe(ctx)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, p.Click(ctx, btn))
	select {
	case <-changes:
	case <-ctx.Done():
		t.Fatal("no mutation signal after click")
	}

	in := doc.Element(find(t, doc.Root, "#q"))
	require.NoError(t, p.SetValue(ctx, in, "hello"))

	doc, err = p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Done", doc.Element(find(t, doc.Root, "#go")).Text())
	assert.Equal(t, "hello", doc.Element(find(t, doc.Root, "#q")).AttrOr("value", ""))

	require.NoError(t, p.DrawOverlay(ctx, dom.Highlight{ID: "h1", Rect: btn.Rect(), Label: "0", Color: "#e91e63"}))
	require.NoError(t, p.ClearOverlays(ctx))
}
