package canvas

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"frame-marker/internal/annotation"
	"frame-marker/internal/app"
	"frame-marker/internal/mapper"
	"frame-marker/pkg/geometry"
)

const (
	minZoom  = 0.1
	maxZoom  = 10.0
	zoomStep = 1.25
)

var backgroundColor = color.RGBA{R: 24, G: 24, B: 24, A: 255}

// Surface is the annotation drawing surface for one session: it renders
// the media frame, grid and annotations into a raster and forwards
// pointer events to the session's interaction controller.
type Surface struct {
	widget.BaseWidget

	session *app.Session
	raster  *fynecanvas.Raster
	content *eventContent

	// Right-button pan gesture state.
	panning   bool
	panStart  fyne.Position
	panOrigin mapper.ViewTransform

	// Last rendered output for magnifier sampling.
	lastOutput *image.RGBA

	onViewChange func(mapper.ViewTransform)
	onActivate   func()
	onHover      func(fyne.Position)
}

// NewSurface creates a surface bound to a session.
func NewSurface(session *app.Session) *Surface {
	s := &Surface{session: session}
	s.raster = fynecanvas.NewRaster(s.draw)
	s.raster.ScaleMode = fynecanvas.ImageScalePixels
	s.content = newEventContent(s)
	s.ExtendBaseWidget(s)

	session.Store.On(annotation.EventAnnotationsChanged, func(interface{}) { s.Refresh() })
	session.Store.On(annotation.EventSelectionChanged, func(interface{}) { s.Refresh() })
	session.Store.On(annotation.EventGridChanged, func(interface{}) { s.Refresh() })
	session.Store.On(annotation.EventHiddenChanged, func(interface{}) { s.Refresh() })
	return s
}

// Session returns the bound session.
func (s *Surface) Session() *app.Session {
	return s.session
}

// OnViewChange sets a callback fired after zoom or pan.
func (s *Surface) OnViewChange(cb func(mapper.ViewTransform)) {
	s.onViewChange = cb
}

// OnActivate sets a callback fired on pointer-down, letting the window
// route keyboard input to the surface last interacted with.
func (s *Surface) OnActivate(cb func()) {
	s.onActivate = cb
}

// OnHover sets a callback fired with the pointer position while the
// cursor moves over the surface.
func (s *Surface) OnHover(cb func(fyne.Position)) {
	s.onHover = cb
}

// Refresh redraws the raster.
func (s *Surface) Refresh() {
	s.raster.Refresh()
}

// RenderedOutput returns the last rendered pixels for read-only sampling.
func (s *Surface) RenderedOutput() *image.RGBA {
	return s.lastOutput
}

// SetZoom sets the view scale, clamped to the zoom range.
func (s *Surface) SetZoom(scale float64) {
	if scale < minZoom {
		scale = minZoom
	}
	if scale > maxZoom {
		scale = maxZoom
	}
	v := s.session.Mapper.View()
	v.Scale = scale
	s.session.Mapper.SetView(v)
	s.session.Store.RecomputeAngles()
	s.Refresh()
	if s.onViewChange != nil {
		s.onViewChange(v)
	}
}

// ZoomIn increases the view scale one step.
func (s *Surface) ZoomIn() {
	s.SetZoom(s.session.Mapper.View().Scale * zoomStep)
}

// ZoomOut decreases the view scale one step.
func (s *Surface) ZoomOut() {
	s.SetZoom(s.session.Mapper.View().Scale / zoomStep)
}

// ResetView restores the identity view transform.
func (s *Surface) ResetView() {
	s.session.Mapper.SetView(mapper.IdentityView())
	s.session.Store.RecomputeAngles()
	s.Refresh()
	if s.onViewChange != nil {
		s.onViewChange(mapper.IdentityView())
	}
}

// CreateRenderer implements fyne.Widget.
func (s *Surface) CreateRenderer() fyne.WidgetRenderer {
	return &surfaceRenderer{surface: s}
}

type surfaceRenderer struct {
	surface *Surface
}

func (r *surfaceRenderer) Layout(size fyne.Size) {
	r.surface.content.Resize(size)
	r.surface.raster.Resize(size)
	// The mapper follows the widget size so normalized geometry stays
	// attached to the content box through resizes.
	r.surface.session.Mapper.SetSurfaceSize(float64(size.Width), float64(size.Height))
}

func (r *surfaceRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, 150)
}

func (r *surfaceRenderer) Refresh() {
	r.surface.raster.Refresh()
}

func (r *surfaceRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.surface.content}
}

func (r *surfaceRenderer) Destroy() {}

// eventContent wraps the raster to receive pointer events.
type eventContent struct {
	widget.BaseWidget
	surface *Surface
}

var _ desktop.Mouseable = (*eventContent)(nil)
var _ desktop.Hoverable = (*eventContent)(nil)
var _ fyne.DoubleTappable = (*eventContent)(nil)
var _ fyne.Scrollable = (*eventContent)(nil)

func newEventContent(s *Surface) *eventContent {
	ec := &eventContent{surface: s}
	ec.ExtendBaseWidget(ec)
	return ec
}

func (ec *eventContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ec.surface.raster)
}

func (ec *eventContent) MouseDown(ev *desktop.MouseEvent) {
	s := ec.surface
	if s.onActivate != nil {
		s.onActivate()
	}
	if ev.Button == desktop.MouseButtonSecondary {
		s.panning = true
		s.panStart = ev.Position
		s.panOrigin = s.session.Mapper.View()
		return
	}
	snap := ev.Modifier&fyne.KeyModifierShift != 0
	s.session.Ctrl.PointerDown(geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)}, snap)
	s.Refresh()
}

func (ec *eventContent) MouseUp(ev *desktop.MouseEvent) {
	s := ec.surface
	if ev.Button == desktop.MouseButtonSecondary {
		s.panning = false
		return
	}
	s.session.Ctrl.PointerUp()
	s.Refresh()
}

func (ec *eventContent) MouseIn(*desktop.MouseEvent) {}

func (ec *eventContent) MouseMoved(ev *desktop.MouseEvent) {
	s := ec.surface
	if s.panning {
		dx := float64(ev.Position.X - s.panStart.X)
		dy := float64(ev.Position.Y - s.panStart.Y)
		v := s.panOrigin
		v.TranslateX += dx
		v.TranslateY -= dy
		s.session.Mapper.SetView(v)
		s.Refresh()
		if s.onViewChange != nil {
			s.onViewChange(v)
		}
		return
	}
	s.session.Ctrl.PointerMove(geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)})
	if s.session.Ctrl.Dragging() {
		s.Refresh()
	}
	if s.onHover != nil {
		s.onHover(ev.Position)
	}
}

func (ec *eventContent) MouseOut() {
	s := ec.surface
	s.panning = false
	// There is no pointer capture, so a release outside the widget is
	// never delivered. Ending the drag here keeps the item from tracking
	// a button that is already up when the cursor re-enters.
	if s.session.Ctrl.Dragging() {
		s.session.Ctrl.PointerUp()
		s.Refresh()
	}
}

func (ec *eventContent) DoubleTapped(ev *fyne.PointEvent) {
	ec.surface.session.Ctrl.DoubleClick(geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)})
}

func (ec *eventContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		ec.surface.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		ec.surface.ZoomOut()
	}
}

// draw is the raster drawing function.
func (s *Surface) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			output.SetRGBA(x, y, backgroundColor)
		}
	}
	if w == 0 || h == 0 {
		s.lastOutput = output
		return output
	}

	s.session.Mapper.SetSurfaceSize(float64(w), float64(h))

	s.drawMedia(output, w, h)

	grid := s.session.Store.Grid()
	if grid.Show {
		s.drawGrid(output, grid)
	}

	if !s.session.Store.Hidden() {
		now := s.session.PlaybackTime()
		s.drawLines(output, now)
		s.drawAngles(output, now)
		s.drawTexts(output, now)
	}

	s.drawPending(output)

	s.lastOutput = output
	return output
}

// drawMedia samples the frame through the inverse mapping, so zoom and
// pan fall out of the coordinate math.
func (s *Surface) drawMedia(output *image.RGBA, w, h int) {
	frame := s.session.Media()
	if frame == nil || frame.Image == nil {
		return
	}
	fw, fh := frame.Width(), frame.Height()
	if fw == 0 || fh == 0 {
		return
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := s.session.Mapper.ToNormalized(geometry.Point2D{X: float64(x), Y: float64(y)})
			if n.X < 0 || n.X > 1 || n.Y < 0 || n.Y > 1 {
				continue
			}
			sx := int(n.X * float64(fw-1))
			sy := int(n.Y * float64(fh-1))
			output.Set(x, y, frame.PixelAt(sx, sy))
		}
	}
}

// drawGrid draws the reference grid. Spacing and origin are surface
// pixels: the grid is a fixed screen-space measuring overlay and does not
// track the content box or the view transform.
func (s *Surface) drawGrid(output *image.RGBA, grid annotation.GridSettings) {
	if grid.Spacing <= 0 {
		return
	}
	bounds := output.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if grid.Mode == annotation.GridBoth || grid.Mode == annotation.GridVertical {
		for gx := gridStart(grid.OriginX, grid.Spacing); gx < float64(w); gx += grid.Spacing {
			x := int(gx)
			for y := 0; y < h; y++ {
				blendPixel(output, x, y, grid.Color, grid.Opacity)
			}
		}
	}
	if grid.Mode == annotation.GridBoth || grid.Mode == annotation.GridHorizontal {
		for gy := gridStart(grid.OriginY, grid.Spacing); gy < float64(h); gy += grid.Spacing {
			y := int(gy)
			for x := 0; x < w; x++ {
				blendPixel(output, x, y, grid.Color, grid.Opacity)
			}
		}
	}
}

// gridStart folds an origin offset into the first on-screen grid line.
func gridStart(origin, spacing float64) float64 {
	start := math.Mod(origin, spacing)
	if start < 0 {
		start += spacing
	}
	return start
}

func (s *Surface) drawLines(output *image.RGBA, now float64) {
	sel := s.session.Store.Selection()
	hov := s.session.Ctrl.Hovered()

	for _, l := range s.session.Store.VisibleLines(now) {
		a := s.session.Mapper.ToVisual(l.Start)
		b := s.session.Mapper.ToVisual(l.End)

		thickness := int(l.StrokeWidth)
		if thickness < 1 {
			thickness = 1
		}
		selected := sel != nil && sel.Kind == annotation.KindLine && sel.ID == l.ID
		hovered := hov != nil && hov.Kind == annotation.KindLine && hov.ID == l.ID
		if selected || hovered {
			thickness += 2
		}

		drawLine(output, int(a.X), int(a.Y), int(b.X), int(b.Y), l.Color, thickness)

		if selected {
			drawCircleOutline(output, int(a.X), int(a.Y), 6, l.Color)
			drawCircleOutline(output, int(b.X), int(b.Y), 6, l.Color)
		}

		mid := a.Midpoint(b)
		scale := glyphScale(12)
		labelY := int(mid.Y) - 10

		if l.Name != "" {
			drawStringCentered(output, l.Name, int(mid.X), labelY, l.Color, scale)
			labelY -= textHeight(scale) + 4
		}
		if l.IsReference() || l.IsMeasurement {
			if m, ok := s.session.Calib.Measure(l); ok {
				drawStringCentered(output, m.String(), int(mid.X), labelY, l.Color, scale)
				labelY -= textHeight(scale) + 4
			}
		}
		if l.ShowAngle {
			deg := geometry.AcuteAngleToHorizontal(a, b)
			drawStringCentered(output, fmt.Sprintf("%.1f°", deg), int(mid.X), labelY, l.Color, scale)
		}
	}
}

func (s *Surface) drawAngles(output *image.RGBA, now float64) {
	sel := s.session.Store.Selection()
	hov := s.session.Ctrl.Hovered()

	for _, a := range s.session.Store.VisibleAngles(now) {
		p1 := s.session.Mapper.ToVisual(a.P1)
		v := s.session.Mapper.ToVisual(a.Vertex)
		p2 := s.session.Mapper.ToVisual(a.P2)

		thickness := int(a.StrokeWidth)
		if thickness < 1 {
			thickness = 1
		}
		selected := sel != nil && sel.Kind == annotation.KindAngle && sel.ID == a.ID
		hovered := hov != nil && hov.Kind == annotation.KindAngle && hov.ID == a.ID
		if selected || hovered {
			thickness += 2
		}

		drawLine(output, int(v.X), int(v.Y), int(p1.X), int(p1.Y), a.Color, thickness)
		drawLine(output, int(v.X), int(v.Y), int(p2.X), int(p2.Y), a.Color, thickness)
		s.drawAngleArc(output, p1, v, p2, a.Color)

		if selected {
			for _, p := range []geometry.Point2D{p1, v, p2} {
				drawCircleOutline(output, int(p.X), int(p.Y), 6, a.Color)
			}
		}

		// Degree label sits on the bisector, away from the vertex.
		label := fmt.Sprintf("%.1f°", a.Degrees)
		bx, by := bisectorOffset(p1, v, p2, 28)
		drawStringCentered(output, label, int(v.X+bx), int(v.Y+by), a.Color, glyphScale(12))

		if a.Name != "" {
			drawStringCentered(output, a.Name, int(v.X+bx), int(v.Y+by)-14, a.Color, glyphScale(12))
		}
	}
}

// drawAngleArc draws a small arc between the two arms near the vertex.
func (s *Surface) drawAngleArc(output *image.RGBA, p1, v, p2 geometry.Point2D, col color.RGBA) {
	a1 := math.Atan2(p1.Y-v.Y, p1.X-v.X)
	a2 := math.Atan2(p2.Y-v.Y, p2.X-v.X)

	// Sweep the shorter way around.
	diff := a2 - a1
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}

	const radius = 18.0
	steps := int(math.Abs(diff)/0.05) + 1
	for i := 0; i <= steps; i++ {
		ang := a1 + diff*float64(i)/float64(steps)
		x := int(v.X + radius*math.Cos(ang))
		y := int(v.Y + radius*math.Sin(ang))
		blendPixel(output, x, y, col, 1)
	}
}

// bisectorOffset returns an offset along the angle bisector at the given
// distance from the vertex.
func bisectorOffset(p1, v, p2 geometry.Point2D, dist float64) (float64, float64) {
	d1 := p1.Sub(v)
	d2 := p2.Sub(v)
	l1 := d1.Length()
	l2 := d2.Length()
	if l1 == 0 || l2 == 0 {
		return 0, -dist
	}
	bx := d1.X/l1 + d2.X/l2
	by := d1.Y/l1 + d2.Y/l2
	bl := math.Hypot(bx, by)
	if bl == 0 {
		// Straight angle: offset perpendicular to the arms.
		return -d1.Y / l1 * dist, d1.X / l1 * dist
	}
	return bx / bl * dist, by / bl * dist
}

func (s *Surface) drawTexts(output *image.RGBA, now float64) {
	sel := s.session.Store.Selection()

	for _, t := range s.session.Store.VisibleTexts(now) {
		anchor := s.session.Mapper.ToVisual(t.Anchor)
		scale := glyphScale(t.FontSize)
		lineH := textHeight(scale) + scale

		lines := []string{t.Content}
		boxW := 0
		if t.BoxWidth != nil {
			right := s.session.Mapper.ToVisual(geometry.Point2D{X: t.Anchor.X + *t.BoxWidth, Y: t.Anchor.Y})
			boxW = int(right.X - anchor.X)
			lines = wrapText(t.Content, boxW, scale)
		}

		maxW := 0
		for _, ln := range lines {
			if w := textWidth(ln, scale); w > maxW {
				maxW = w
			}
		}
		if boxW > maxW {
			maxW = boxW
		}

		x := int(anchor.X)
		y := int(anchor.Y) - textHeight(scale)/2

		if t.Background != nil {
			pad := 3
			fillRectBlend(output, x-pad, y-pad, x+maxW+pad, y+len(lines)*lineH+pad, *t.Background, float64(t.Background.A)/255)
		}

		for i, ln := range lines {
			drawString(output, ln, x, y+i*lineH, t.Color, scale)
		}

		selected := sel != nil && sel.Kind == annotation.KindText && sel.ID == t.ID
		if selected {
			pad := 3
			col := t.Color
			drawDashedLine(output, x-pad, y-pad, x+maxW+pad, y-pad, col)
			drawDashedLine(output, x-pad, y+len(lines)*lineH+pad, x+maxW+pad, y+len(lines)*lineH+pad, col)
			drawDashedLine(output, x-pad, y-pad, x-pad, y+len(lines)*lineH+pad, col)
			drawDashedLine(output, x+maxW+pad, y-pad, x+maxW+pad, y+len(lines)*lineH+pad, col)
			if t.BoxWidth != nil {
				// Resize handle on the box's right edge.
				drawCircleOutline(output, x+boxW, int(anchor.Y), 6, col)
			}
		}
	}
}

// wrapText breaks s into lines no wider than width pixels at the given
// glyph scale, breaking on spaces where possible.
func wrapText(s string, width, scale int) []string {
	if width <= 0 || textWidth(s, scale) <= width {
		return []string{s}
	}
	perLine := width / (4 * scale)
	if perLine < 1 {
		perLine = 1
	}

	var lines []string
	var current string
	for _, word := range splitWords(s) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if len(candidate) <= perLine {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		// Hard-break oversized words.
		for len(word) > perLine {
			lines = append(lines, word[:perLine])
			word = word[perLine:]
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func splitWords(s string) []string {
	var words []string
	var cur string
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				words = append(words, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		words = append(words, cur)
	}
	return words
}

// drawPending previews the placement points captured so far, with a
// dashed segment between consecutive points.
func (s *Surface) drawPending(output *image.RGBA) {
	points := s.session.Ctrl.PendingPoints()
	col := s.session.Store.Color()
	var prev *geometry.Point2D
	for i := range points {
		p := s.session.Mapper.ToVisual(points[i])
		drawCrossMarker(output, int(p.X), int(p.Y), 5, col)
		if prev != nil {
			drawDashedLine(output, int(prev.X), int(prev.Y), int(p.X), int(p.Y), col)
		}
		prev = &p
	}
}
