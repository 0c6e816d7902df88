package canvas

import (
	"context"
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const (
	magnifierSize   = 120 // output square, pixels
	magnifierFactor = 4
	magnifierRate   = 50 * time.Millisecond
)

// Magnifier shows a zoomed crop of the surface's rendered output around
// the cursor. It only reads already-rendered pixels; it never touches
// session state.
type Magnifier struct {
	widget.BaseWidget

	surface *Surface
	raster  *fynecanvas.Raster

	mu     sync.Mutex
	center fyne.Position
	cancel context.CancelFunc
}

// NewMagnifier creates a magnifier bound to a surface.
func NewMagnifier(s *Surface) *Magnifier {
	m := &Magnifier{surface: s}
	m.raster = fynecanvas.NewRaster(m.draw)
	m.raster.SetMinSize(fyne.NewSize(magnifierSize, magnifierSize))
	m.ExtendBaseWidget(m)
	return m
}

// SetCenter moves the sampling point, in surface pixels.
func (m *Magnifier) SetCenter(pos fyne.Position) {
	m.mu.Lock()
	m.center = pos
	m.mu.Unlock()
}

// Start begins periodic resampling. Stops any previous loop first.
func (m *Magnifier) Start() {
	m.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(magnifierRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Canvas object refresh is safe off the main goroutine.
				m.raster.Refresh()
			}
		}
	}()
}

// Stop cancels the resampling loop.
func (m *Magnifier) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CreateRenderer implements fyne.Widget.
func (m *Magnifier) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(m.raster)
}

func (m *Magnifier) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	src := m.surface.RenderedOutput()
	if src == nil {
		return output
	}

	m.mu.Lock()
	cx := int(m.center.X)
	cy := int(m.center.Y)
	m.mu.Unlock()

	bounds := src.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := cx + (x-w/2)/magnifierFactor
			sy := cy + (y-h/2)/magnifierFactor
			if sx < bounds.Min.X || sx >= bounds.Max.X || sy < bounds.Min.Y || sy >= bounds.Max.Y {
				continue
			}
			output.SetRGBA(x, y, src.RGBAAt(sx, sy))
		}
	}

	// Crosshair at the sampling point.
	mid := w / 2
	for i := -6; i <= 6; i++ {
		if mid+i >= 0 && mid+i < w {
			output.SetRGBA(mid+i, h/2, backgroundColor)
			output.SetRGBA(mid, h/2+i, backgroundColor)
		}
	}
	return output
}
