package memdom_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
)

func TestSnapshot(t *testing.T) {
	p := newPage(t, `<html><head><style>.ghost { visibility: hidden }</style></head><body>
		<button id="go">Go</button>
		<div id="gone" style="display:none">x</div>
		<p id="ghost" class="ghost">boo</p>
		<iframe id="inner" srcdoc="<input class='name-field'>"></iframe>
		<iframe id="foreign" src="https://other.test/embed"></iframe>
	</body></html>`)
	doc := snapshot(t, p)

	assert.Equal(t, testURL, doc.URL)
	assert.Equal(t, dom.Viewport{Width: 1280, Height: 800}, doc.Viewport)
	assert.Equal(t, p.Root(), doc.Handle)
	assert.NotSame(t, p.Root(), doc.Root, "snapshots are copies")

	t.Run("boxes", func(t *testing.T) {
		goBtn := find(t, doc, "#go")
		assert.Equal(t, dom.Rect{X: 0, Y: 0, Width: 32, Height: 22}, goBtn.Rect())
		assert.Equal(t, dom.Style{Display: "inline-block", Visibility: "visible"}, goBtn.Style())
		assert.Same(t, live(t, p.Root(), "#go"), goBtn.Handle())

		gone := find(t, doc, "#gone")
		assert.Equal(t, "none", gone.Style().Display)
		assert.True(t, gone.Rect().IsEmpty())

		assert.Equal(t, "hidden", find(t, doc, "#ghost").Style().Visibility)
	})

	t.Run("accessible frame", func(t *testing.T) {
		require.Len(t, doc.Frames(), 2)
		inner, err := doc.FrameAt([]int{0})
		require.NoError(t, err)
		assert.Equal(t, "about:srcdoc", inner.URL)
		assert.Equal(t, dom.Viewport{Width: 300, Height: 150}, inner.Viewport)

		field := find(t, inner, ".name-field")
		assert.Equal(t, dom.Rect{Width: 170, Height: 22}, field.Rect())
		frameRoot, ok := p.FrameRoot(live(t, p.Root(), "#inner"))
		require.True(t, ok)
		assert.Same(t, frameRoot, inner.Handle)
		assert.Same(t, live(t, frameRoot, ".name-field"), field.Handle())
	})

	t.Run("cross-origin frame", func(t *testing.T) {
		_, err := doc.FrameAt([]int{1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, dom.ErrInaccessibleFrame))
		var fae *dom.FrameAccessError
		require.True(t, errors.As(err, &fae))
		assert.Equal(t, "cross-origin", fae.Reason)
		assert.Equal(t, []int{1}, fae.Path)
		assert.Equal(t, "https://other.test/embed", fae.Src)

		_, ok := p.FrameRoot(live(t, p.Root(), "#foreign"))
		assert.False(t, ok)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Snapshot(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNavigate(t *testing.T) {
	var requested []string
	loader := func(ctx context.Context, u string) (string, error) {
		requested = append(requested, u)
		switch u {
		case "https://example.test/next":
			return `<h1 id="title">Next</h1><iframe src="/frame"></iframe>`, nil
		case "https://example.test/frame":
			return `<p id="in">inside</p>`, nil
		}
		return "", fmt.Errorf("404 %s", u)
	}
	p := memdom.New(zaptest.NewLogger(t), memdom.WithLoader(loader), memdom.WithViewport(640, 480))
	assert.Equal(t, "about:blank", p.URL())

	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, "https://example.test/next"))
	assert.Equal(t, "https://example.test/next", p.URL())
	assert.Equal(t, []string{"https://example.test/next", "https://example.test/frame"}, requested)

	doc := snapshot(t, p)
	assert.Equal(t, dom.Viewport{Width: 640, Height: 480}, doc.Viewport)
	find(t, doc, "#title")
	frame, err := doc.FrameAt([]int{0})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/frame", frame.URL)
	find(t, frame, "#in")

	err = p.Navigate(ctx, "https://example.test/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, "https://example.test/next", p.URL(), "failed navigation keeps the document")
}

func TestSubscribe(t *testing.T) {
	p := newPage(t, `<div id="list"></div>`)
	ctx := context.Background()

	ch, cancel, err := p.Subscribe(ctx)
	require.NoError(t, err)

	appendItem := func(root *html.Node) {
		list := live(t, root, "#list")
		list.AppendChild(&html.Node{Type: html.ElementNode, Data: "p"})
	}
	p.Mutate(appendItem)
	p.Mutate(appendItem)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no signal after mutation")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce while undrained")
	default:
	}

	cancel()
	cancel()
	p.Mutate(appendItem)
	select {
	case <-ch:
		t.Fatal("signal after cancel")
	default:
	}

	done, stop := context.WithCancel(ctx)
	stop()
	_, _, err = p.Subscribe(done)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMutate_LoadsNewFrames(t *testing.T) {
	p := newPage(t, `<body></body>`)
	p.Mutate(func(root *html.Node) {
		body := live(t, root, "body")
		body.AppendChild(&html.Node{
			Type: html.ElementNode,
			Data: "iframe",
			Attr: []html.Attribute{{Key: "srcdoc", Val: `<button id="late">Late</button>`}},
		})
	})

	doc := snapshot(t, p)
	frame, err := doc.FrameAt([]int{0})
	require.NoError(t, err)
	find(t, frame, "#late")
}

func TestOverlay(t *testing.T) {
	p := newPage(t, `<body><p>content</p></body>`)
	ctx := context.Background()

	h := dom.Highlight{ID: "pp-1", Rect: dom.Rect{X: 10, Y: 20, Width: 30, Height: 40}, Label: "1", Color: "#ff0000"}
	require.NoError(t, p.DrawOverlay(ctx, h))
	require.NoError(t, p.DrawOverlay(ctx, h), "redrawing replaces the box")
	require.NoError(t, p.DrawOverlay(ctx, dom.Highlight{ID: "pp-2", Rect: dom.Rect{Width: 5, Height: 5}, Color: "#00ff00"}))

	container := live(t, p.Root(), "#"+dom.OverlayContainerID)
	assert.Equal(t, "body", container.Parent.Data)
	boxes := 0
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		boxes++
	}
	assert.Equal(t, 2, boxes)

	doc := snapshot(t, p)
	box := find(t, doc, "#pp-1")
	assert.Equal(t, dom.Rect{X: 10, Y: 20, Width: 30, Height: 40}, box.Rect())
	assert.Equal(t, "1", box.Text())

	require.NoError(t, p.RemoveOverlay(ctx, "pp-1"))
	require.NoError(t, p.RemoveOverlay(ctx, "unknown"))
	_, ok, err := snapshot(t, p).QuerySelector("#pp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.ClearOverlays(ctx))
	require.NoError(t, p.ClearOverlays(ctx))
	_, ok, err = snapshot(t, p).QuerySelector("#" + dom.OverlayContainerID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultLoader(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>file</p>"), 0o600))

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr string
	}{
		{"about", "about:blank", "", ""},
		{"data percent", "data:text/html,%3Cp%3Ehi%3C%2Fp%3E", "<p>hi</p>", ""},
		{"data base64", "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte("<b>x</b>")), "<b>x</b>", ""},
		{"data malformed", "data:text/html", "", "malformed"},
		{"file url", "file://" + path, "<p>file</p>", ""},
		{"bare path", path, "<p>file</p>", ""},
		{"network", "https://example.test/", "", "unsupported scheme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := memdom.DefaultLoader(ctx, tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := memdom.DefaultLoader(cancelled, "about:blank")
	assert.ErrorIs(t, err, context.Canceled)
}
