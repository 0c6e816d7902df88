// Package interaction turns pointer and keyboard events into annotation
// commands: tool placement, selection, dragging, snapping and deletion.
package interaction

import (
	"frame-marker/internal/annotation"
	"frame-marker/internal/calibrate"
	"frame-marker/internal/mapper"
	"frame-marker/pkg/geometry"
)

// HitThresholdPx is the pick distance for line and angle segments, in
// surface pixels.
const HitThresholdPx = 12

// sameClickEpsilonPx treats two placement clicks closer than this as the
// same point, which would produce a degenerate entity.
const sameClickEpsilonPx = 1

// minTextBoxWidth is the smallest normalized wrap-box width a resize drag
// can produce.
const minTextBoxWidth = 0.02

// DragKind identifies the active drag gesture.
type DragKind int

const (
	DragNone DragKind = iota
	DragEndpoint
	DragBody
	DragTextResize
)

// dragSession is the transient, exclusively-owned state of one gesture.
// Created on pointer-down, destroyed unconditionally on pointer-up.
type dragSession struct {
	kind       DragKind
	target     annotation.Selection
	pointIndex int // endpoint drags: 0/1 for lines, 0/1/2 for angles

	// Geometry at drag start, in normalized space.
	startPointer geometry.Point2D
	startLine    annotation.Line
	startAngle   annotation.Angle
	startText    annotation.Text
}

// Callbacks let the host surface react to controller requests without the
// controller knowing anything about widgets.
type Callbacks struct {
	// OpenToolPanel is invoked on double-click over an annotation.
	OpenToolPanel func(annotation.Kind)
	// CloseToolPanel is the last resort of the Escape chain.
	CloseToolPanel func()
	// BeginTextEdit opens an inline editor at a visual anchor. The host
	// finishes with CommitText or CancelTextEdit.
	BeginTextEdit func(anchor geometry.Point2D)
	// BeginReferenceCapture opens the calibration input for a fresh
	// reference line.
	BeginReferenceCapture func(calibrate.PendingReference)
}

// Controller is the per-surface interaction state machine. All state
// mutation happens synchronously inside its event methods; there is no
// background work.
type Controller struct {
	store  *annotation.Store
	mapper *mapper.Mapper
	calib  *calibrate.Engine
	clock  func() float64 // current playback time in seconds

	callbacks Callbacks

	pending      []geometry.Point2D // placement points, normalized
	textEditOpen bool
	textAnchor   geometry.Point2D

	drag    *dragSession
	hovered *annotation.Selection
}

// New wires a controller to one surface's store, mapper and calibration
// engine. clock supplies the current playback time; nil pins it at 0.
func New(store *annotation.Store, m *mapper.Mapper, calib *calibrate.Engine, clock func() float64) *Controller {
	if clock == nil {
		clock = func() float64 { return 0 }
	}
	return &Controller{
		store:  store,
		mapper: m,
		calib:  calib,
		clock:  clock,
	}
}

// SetCallbacks installs the host callbacks.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.callbacks = cb
}

// SetTool switches the active tool, resetting any pending multi-click
// capture and the hover state.
func (c *Controller) SetTool(t annotation.Tool) {
	c.pending = nil
	c.hovered = nil
	c.store.SetTool(t)
}

// PendingPoints returns the placement points captured so far (for preview
// rendering).
func (c *Controller) PendingPoints() []geometry.Point2D {
	out := make([]geometry.Point2D, len(c.pending))
	copy(out, c.pending)
	return out
}

// Hovered returns the annotation under the cursor in Idle, or nil.
func (c *Controller) Hovered() *annotation.Selection {
	if c.hovered == nil {
		return nil
	}
	h := *c.hovered
	return &h
}

// Dragging reports whether a drag session is active.
func (c *Controller) Dragging() bool {
	return c.drag != nil
}

// TextEditOpen reports whether an inline text edit is in progress.
func (c *Controller) TextEditOpen() bool {
	return c.textEditOpen
}

// PointerDown handles a primary-button press at surface pixel position px.
// snap reports whether the snap modifier is held.
func (c *Controller) PointerDown(px geometry.Point2D, snap bool) {
	switch c.store.Tool() {
	case annotation.ToolNone:
		c.pointerDownIdle(px)
	case annotation.ToolText:
		c.pointerDownText(px)
	case annotation.ToolLine, annotation.ToolMeasure:
		c.placePoint(px, snap, 2)
	case annotation.ToolAngle:
		c.placePoint(px, snap, 3)
	}
}

// PointerMove handles pointer motion. During a drag it recomputes the
// affected geometry from the live position; in Idle it tracks hover.
func (c *Controller) PointerMove(px geometry.Point2D) {
	if c.drag != nil {
		c.updateDrag(px)
		return
	}
	if c.store.Tool() == annotation.ToolNone {
		c.hovered = c.hitTest(px)
	}
}

// PointerUp unconditionally ends any drag session. The undo snapshot was
// already taken at drag start, so nothing else happens here. The host
// captures release globally, so a release outside the widget still lands
// here.
func (c *Controller) PointerUp() {
	c.drag = nil
}

// DoubleClick asks the host to open the tool settings panel for the
// annotation under the cursor, if any.
func (c *Controller) DoubleClick(px geometry.Point2D) {
	hit := c.hitTest(px)
	if hit != nil && c.callbacks.OpenToolPanel != nil {
		c.callbacks.OpenToolPanel(hit.Kind)
	}
}

// Escape unwinds the current interaction step: cancel an open text edit,
// else clear the selection, else clear pending placement points, else ask
// the host to close the tool panel.
func (c *Controller) Escape() {
	switch {
	case c.textEditOpen:
		c.CancelTextEdit()
	case c.store.Selection() != nil:
		c.store.ClearSelection()
	case len(c.pending) > 0:
		c.pending = nil
	default:
		if c.callbacks.CloseToolPanel != nil {
			c.callbacks.CloseToolPanel()
		}
	}
}

// DeleteSelected removes the selected annotation. The host must not route
// the key here while a text input has focus.
func (c *Controller) DeleteSelected() {
	sel := c.store.Selection()
	if sel == nil {
		return
	}
	c.drag = nil
	c.store.Remove(sel.Kind, sel.ID)
}

// CommitText finishes the inline text edit. Empty content is discarded
// without creating an entity.
func (c *Controller) CommitText(content string) {
	if !c.textEditOpen {
		return
	}
	c.textEditOpen = false
	now := c.clock()
	c.store.AddText(annotation.Text{
		Anchor:    c.textAnchor,
		Content:   content,
		FontSize:  c.store.TextSize(),
		Color:     c.store.Color(),
		CreatedAt: &now,
	})
	c.store.SetTool(annotation.ToolNone)
}

// CancelTextEdit abandons the inline text edit.
func (c *Controller) CancelTextEdit() {
	c.textEditOpen = false
	c.store.SetTool(annotation.ToolNone)
}

// pointerDownIdle hit-tests the visible annotations and either starts a
// drag on the hit or clears the selection on a miss.
func (c *Controller) pointerDownIdle(px geometry.Point2D) {
	norm := c.mapper.ToNormalized(px)

	// A press on a handle of the already-selected item starts an
	// endpoint (or wrap-box resize) drag instead of a body drag.
	if sel := c.store.Selection(); sel != nil {
		if c.startHandleDrag(*sel, px, norm) {
			return
		}
	}

	hit := c.hitTest(px)
	if hit == nil {
		c.store.ClearSelection()
		return
	}

	c.store.Select(hit.Kind, hit.ID)
	c.store.SnapshotForUndo()
	c.startBodyDrag(*hit, norm)
}

// startHandleDrag starts an endpoint or resize drag when px is on one of
// the selected item's handles. Returns false if no handle was hit.
func (c *Controller) startHandleDrag(sel annotation.Selection, px, norm geometry.Point2D) bool {
	switch sel.Kind {
	case annotation.KindLine:
		l, ok := c.store.FindLine(sel.ID)
		if !ok {
			return false
		}
		for i, p := range []geometry.Point2D{l.Start, l.End} {
			if c.mapper.ToVisual(p).Distance(px) <= HitThresholdPx {
				c.store.SnapshotForUndo()
				c.drag = &dragSession{
					kind:         DragEndpoint,
					target:       sel,
					pointIndex:   i,
					startPointer: norm,
					startLine:    l,
				}
				return true
			}
		}
	case annotation.KindAngle:
		a, ok := c.store.FindAngle(sel.ID)
		if !ok {
			return false
		}
		for i, p := range []geometry.Point2D{a.P1, a.Vertex, a.P2} {
			if c.mapper.ToVisual(p).Distance(px) <= HitThresholdPx {
				c.store.SnapshotForUndo()
				c.drag = &dragSession{
					kind:         DragEndpoint,
					target:       sel,
					pointIndex:   i,
					startPointer: norm,
					startAngle:   a,
				}
				return true
			}
		}
	case annotation.KindText:
		t, ok := c.store.FindText(sel.ID)
		if !ok || t.BoxWidth == nil {
			return false
		}
		handle := geometry.Point2D{X: t.Anchor.X + *t.BoxWidth, Y: t.Anchor.Y}
		if c.mapper.ToVisual(handle).Distance(px) <= HitThresholdPx {
			c.store.SnapshotForUndo()
			c.drag = &dragSession{
				kind:         DragTextResize,
				target:       sel,
				startPointer: norm,
				startText:    t,
			}
			return true
		}
	}
	return false
}

func (c *Controller) startBodyDrag(sel annotation.Selection, norm geometry.Point2D) {
	s := &dragSession{
		kind:         DragBody,
		target:       sel,
		startPointer: norm,
	}
	switch sel.Kind {
	case annotation.KindLine:
		l, ok := c.store.FindLine(sel.ID)
		if !ok {
			return
		}
		s.startLine = l
	case annotation.KindAngle:
		a, ok := c.store.FindAngle(sel.ID)
		if !ok {
			return
		}
		s.startAngle = a
	case annotation.KindText:
		t, ok := c.store.FindText(sel.ID)
		if !ok {
			return
		}
		s.startText = t
	}
	c.drag = s
}

// updateDrag recomputes the dragged geometry from the live pointer. No
// intermediate snapshots: the drag start already took the one undo step.
// A stale target (deleted externally) abandons the session.
func (c *Controller) updateDrag(px geometry.Point2D) {
	norm := c.mapper.ToNormalized(px)
	d := c.drag
	ok := false

	switch d.kind {
	case DragEndpoint:
		ok = c.updateEndpointDrag(norm)
	case DragBody:
		ok = c.updateBodyDrag(norm)
	case DragTextResize:
		w := norm.X - d.startText.Anchor.X
		if w < minTextBoxWidth {
			w = minTextBoxWidth
		}
		ok = c.store.UpdateText(d.target.ID, annotation.TextUpdate{BoxWidth: boxWidthPtr(w)})
	}

	if !ok {
		c.drag = nil
	}
}

func (c *Controller) updateEndpointDrag(norm geometry.Point2D) bool {
	d := c.drag
	switch d.target.Kind {
	case annotation.KindLine:
		upd := annotation.LineUpdate{}
		if d.pointIndex == 0 {
			upd.Start = &norm
		} else {
			upd.End = &norm
		}
		return c.store.UpdateLine(d.target.ID, upd)
	case annotation.KindAngle:
		upd := annotation.AngleUpdate{}
		switch d.pointIndex {
		case 0:
			upd.P1 = &norm
		case 1:
			upd.Vertex = &norm
		default:
			upd.P2 = &norm
		}
		return c.store.UpdateAngle(d.target.ID, upd)
	}
	return false
}

func (c *Controller) updateBodyDrag(norm geometry.Point2D) bool {
	d := c.drag
	delta := norm.Sub(d.startPointer)

	switch d.target.Kind {
	case annotation.KindLine:
		start := d.startLine.Start.Add(delta)
		end := d.startLine.End.Add(delta)
		return c.store.UpdateLine(d.target.ID, annotation.LineUpdate{Start: &start, End: &end})
	case annotation.KindAngle:
		p1 := d.startAngle.P1.Add(delta)
		v := d.startAngle.Vertex.Add(delta)
		p2 := d.startAngle.P2.Add(delta)
		return c.store.UpdateAngle(d.target.ID, annotation.AngleUpdate{P1: &p1, Vertex: &v, P2: &p2})
	case annotation.KindText:
		anchor := d.startText.Anchor.Add(delta)
		return c.store.UpdateText(d.target.ID, annotation.TextUpdate{Anchor: &anchor})
	}
	return false
}

// pointerDownText opens the inline text editor at the clicked point. A
// selected item blocks drawing until it is explicitly unselected.
func (c *Controller) pointerDownText(px geometry.Point2D) {
	if c.store.Selection() != nil {
		c.store.ClearSelection()
		return
	}
	if c.textEditOpen {
		return
	}
	c.textAnchor = c.mapper.ToNormalized(px)
	c.textEditOpen = true
	if c.callbacks.BeginTextEdit != nil {
		c.callbacks.BeginTextEdit(px)
	}
}

// placePoint appends one placement point for the line/measure/angle tools
// and commits the entity once required points are captured.
func (c *Controller) placePoint(px geometry.Point2D, snap bool, required int) {
	if c.store.Selection() != nil {
		// Force an explicit unselect before drawing new content.
		c.store.ClearSelection()
		return
	}

	if snap && len(c.pending) > 0 {
		// Snap in visual space so the result looks axis-aligned on
		// screen regardless of letterboxing.
		prev := c.mapper.ToVisual(c.pending[len(c.pending)-1])
		px = geometry.SnapDirection45(prev, px)
	}

	if len(c.pending) > 0 {
		prev := c.mapper.ToVisual(c.pending[len(c.pending)-1])
		if prev.Distance(px) < sameClickEpsilonPx {
			// Degenerate click; ignore it rather than create a
			// zero-length entity.
			return
		}
	}

	c.pending = append(c.pending, c.mapper.ToNormalized(px))
	if len(c.pending) < required {
		return
	}

	points := c.pending
	c.pending = nil
	now := c.clock()

	switch c.store.Tool() {
	case annotation.ToolLine:
		c.store.AddLine(annotation.Line{
			Start:       points[0],
			End:         points[1],
			Color:       c.store.Color(),
			StrokeWidth: c.store.StrokeWidth(),
			CreatedAt:   &now,
		})
	case annotation.ToolMeasure:
		c.commitMeasureLine(points, now)
	case annotation.ToolAngle:
		c.store.AddAngle(annotation.Angle{
			P1:          points[0],
			Vertex:      points[1],
			P2:          points[2],
			Color:       c.store.Color(),
			StrokeWidth: c.store.StrokeWidth(),
			CreatedAt:   &now,
		})
	}

	c.store.SetTool(annotation.ToolNone)
}

// commitMeasureLine adds a line from the measurement tool. The first
// completed line becomes the calibration reference (pending the user's
// length input); later ones are scaled measurements.
func (c *Controller) commitMeasureLine(points []geometry.Point2D, now float64) {
	_, hasRef := c.store.ReferenceLine()
	l := c.store.AddLine(annotation.Line{
		Start:         points[0],
		End:           points[1],
		Color:         c.store.Color(),
		StrokeWidth:   c.store.StrokeWidth(),
		CreatedAt:     &now,
		IsMeasurement: hasRef,
	})
	if !hasRef {
		if pending, ok := c.calib.BeginCapture(l.ID); ok && c.callbacks.BeginReferenceCapture != nil {
			c.callbacks.BeginReferenceCapture(pending)
		}
	}
}

// hitTest finds the topmost visible annotation within reach of px: segment
// distance for lines and angle arms, bounding box for texts. Hidden state
// suppresses everything.
func (c *Controller) hitTest(px geometry.Point2D) *annotation.Selection {
	if c.store.Hidden() {
		return nil
	}
	now := c.clock()

	texts := c.store.VisibleTexts(now)
	for i := len(texts) - 1; i >= 0; i-- {
		if c.textBox(texts[i]).Contains(px) {
			return &annotation.Selection{Kind: annotation.KindText, ID: texts[i].ID}
		}
	}

	angles := c.store.VisibleAngles(now)
	for i := len(angles) - 1; i >= 0; i-- {
		a := angles[i]
		p1 := c.mapper.ToVisual(a.P1)
		v := c.mapper.ToVisual(a.Vertex)
		p2 := c.mapper.ToVisual(a.P2)
		if geometry.SegmentDistance(px, p1, v) <= HitThresholdPx ||
			geometry.SegmentDistance(px, v, p2) <= HitThresholdPx {
			return &annotation.Selection{Kind: annotation.KindAngle, ID: a.ID}
		}
	}

	lines := c.store.VisibleLines(now)
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		a := c.mapper.ToVisual(l.Start)
		b := c.mapper.ToVisual(l.End)
		if geometry.SegmentDistance(px, a, b) <= HitThresholdPx {
			return &annotation.Selection{Kind: annotation.KindLine, ID: l.ID}
		}
	}
	return nil
}

// textBox estimates a text's visual bounding box. The wrap-box width wins
// when set; otherwise the box grows with the content on a single line.
func (c *Controller) textBox(t annotation.Text) geometry.Rect {
	anchor := c.mapper.ToVisual(t.Anchor)
	height := t.FontSize * 1.4
	var width float64
	if t.BoxWidth != nil {
		right := c.mapper.ToVisual(geometry.Point2D{X: t.Anchor.X + *t.BoxWidth, Y: t.Anchor.Y})
		width = right.X - anchor.X
		// Wrapped text stacks lines.
		if width > 0 {
			perLine := width / (t.FontSize * 0.6)
			if perLine >= 1 {
				lines := float64(len(t.Content))/perLine + 1
				height *= lines
			}
		}
	} else {
		width = float64(len(t.Content)) * t.FontSize * 0.6
	}
	if width < HitThresholdPx {
		width = HitThresholdPx
	}
	return geometry.NewRect(anchor.X, anchor.Y-height/2, width, height)
}

func boxWidthPtr(w float64) **float64 {
	p := &w
	return &p
}
