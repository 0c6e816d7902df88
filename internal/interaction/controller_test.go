package interaction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frame-marker/internal/annotation"
	"frame-marker/internal/calibrate"
	"frame-marker/internal/mapper"
	"frame-marker/pkg/geometry"
)

type fixture struct {
	store  *annotation.Store
	mapper *mapper.Mapper
	calib  *calibrate.Engine
	ctrl   *Controller
	now    float64
}

func newFixture(t *testing.T, w, h, aspect float64) *fixture {
	t.Helper()
	f := &fixture{}
	f.store = annotation.NewStore()
	f.mapper = mapper.New()
	f.mapper.SetSurfaceSize(w, h)
	f.mapper.SetAspectRatio(aspect)
	f.store.SetProjector(f.mapper.ToVisual)
	f.calib = calibrate.New(f.store, f.mapper)
	f.ctrl = New(f.store, f.mapper, f.calib, func() float64 { return f.now })
	return f
}

// placeLine drives the two-click line placement at normalized coordinates.
func (f *fixture) placeLine(start, end geometry.Point2D) annotation.Line {
	f.ctrl.SetTool(annotation.ToolLine)
	f.ctrl.PointerDown(f.mapper.ToVisual(start), false)
	f.ctrl.PointerDown(f.mapper.ToVisual(end), false)
	lines := f.store.Lines()
	return lines[len(lines)-1]
}

func TestLinePlacementRoundTrip(t *testing.T) {
	// 400x300 surface showing 16:9 media: the content box is letterboxed
	// at y=37.5, height 225. Clicks at visual positions of normalized
	// (0.1,0.1) and (0.9,0.1) must store those exact normalized points.
	f := newFixture(t, 400, 300, 16.0/9.0)

	l := f.placeLine(geometry.Point2D{X: 0.1, Y: 0.1}, geometry.Point2D{X: 0.9, Y: 0.1})

	assert.InDelta(t, 0.1, l.Start.X, 1e-9)
	assert.InDelta(t, 0.1, l.Start.Y, 1e-9)
	assert.InDelta(t, 0.9, l.End.X, 1e-9)
	assert.InDelta(t, 0.1, l.End.Y, 1e-9)
	assert.Equal(t, annotation.ToolNone, f.store.Tool(), "tool reverts after commit")
}

func TestDeleteThenUndoRestoresLine(t *testing.T) {
	f := newFixture(t, 400, 300, 16.0/9.0)
	l := f.placeLine(geometry.Point2D{X: 0.1, Y: 0.1}, geometry.Point2D{X: 0.9, Y: 0.1})

	f.store.Select(annotation.KindLine, l.ID)
	f.ctrl.DeleteSelected()
	require.Empty(t, f.store.Lines())

	require.True(t, f.store.Undo())
	lines := f.store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, l, lines[0], "undo restores the line identically, ID included")
}

func TestSamePointClickDiscarded(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.ctrl.SetTool(annotation.ToolLine)
	p := f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5})
	f.ctrl.PointerDown(p, false)
	f.ctrl.PointerDown(p, false)

	assert.Empty(t, f.store.Lines(), "degenerate line not created")
	assert.Len(t, f.ctrl.PendingPoints(), 1, "first point still pending")
}

func TestSnapPlacementIsVisuallyAxisAligned(t *testing.T) {
	// Letterboxed media: an on-screen horizontal line spans unequal
	// normalized deltas, so snapping must run in visual space.
	f := newFixture(t, 400, 300, 16.0/9.0)
	f.ctrl.SetTool(annotation.ToolLine)

	start := f.mapper.ToVisual(geometry.Point2D{X: 0.2, Y: 0.5})
	f.ctrl.PointerDown(start, false)
	// Nearly horizontal on screen: 160px across, 8px down.
	f.ctrl.PointerDown(geometry.Point2D{X: start.X + 160, Y: start.Y + 8}, true)

	lines := f.store.Lines()
	require.Len(t, lines, 1)
	a := f.mapper.ToVisual(lines[0].Start)
	b := f.mapper.ToVisual(lines[0].End)
	assert.InDelta(t, a.Y, b.Y, 1e-9, "snapped horizontal in visual space")
}

func TestAngleRequiresThreeClicks(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.ctrl.SetTool(annotation.ToolAngle)

	f.ctrl.PointerDown(geometry.Point2D{X: 200, Y: 500}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 500, Y: 500}, false)
	assert.Empty(t, f.store.Angles())

	f.ctrl.PointerDown(geometry.Point2D{X: 500, Y: 200}, false)
	angles := f.store.Angles()
	require.Len(t, angles, 1)
	assert.InDelta(t, 90, angles[0].Degrees, 1e-9)
	assert.Equal(t, annotation.ToolNone, f.store.Tool())
}

func TestMeasureFirstLineBecomesReference(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)

	var captured *calibrate.PendingReference
	f.ctrl.SetCallbacks(Callbacks{
		BeginReferenceCapture: func(p calibrate.PendingReference) { captured = &p },
	})

	f.ctrl.SetTool(annotation.ToolMeasure)
	f.ctrl.PointerDown(geometry.Point2D{X: 100, Y: 500}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 200, Y: 500}, false)

	require.NotNil(t, captured, "first measure line opens the reference capture")
	require.NoError(t, f.calib.Commit("1000", "mm"))

	ref, ok := f.store.ReferenceLine()
	require.True(t, ok)
	assert.False(t, ref.IsMeasurement)
	assert.InDelta(t, 1000, ref.RefLength, 1e-9)
	assert.Equal(t, "mm", ref.RefUnit)
}

func TestMeasurementScalesThroughReference(t *testing.T) {
	// Reference: 1000mm over 100px. A second measure line of 50px must
	// report 500mm.
	f := newFixture(t, 1000, 1000, 1)
	f.ctrl.SetTool(annotation.ToolMeasure)
	f.ctrl.PointerDown(geometry.Point2D{X: 100, Y: 500}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 200, Y: 500}, false)
	require.NoError(t, f.calib.Commit("1000", "mm"))

	f.ctrl.SetTool(annotation.ToolMeasure)
	f.ctrl.PointerDown(geometry.Point2D{X: 300, Y: 500}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 350, Y: 500}, false)

	lines := f.store.Lines()
	require.Len(t, lines, 2)
	second := lines[1]
	assert.True(t, second.IsMeasurement)

	m, ok := f.calib.Measure(second)
	require.True(t, ok)
	assert.InDelta(t, 500, m.Value, 1e-9)
	assert.Equal(t, "mm", m.Unit)
	assert.Equal(t, "500.0 mm", m.String())
}

func TestIdleClickSelectsAndMissClears(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})

	mid := f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5})
	f.ctrl.PointerDown(mid, false)
	f.ctrl.PointerUp()

	sel := f.store.Selection()
	require.NotNil(t, sel)
	assert.Equal(t, annotation.KindLine, sel.Kind)
	assert.Equal(t, l.ID, sel.ID)

	// Click far from anything clears the selection.
	f.ctrl.PointerDown(geometry.Point2D{X: 50, Y: 50}, false)
	f.ctrl.PointerUp()
	assert.Nil(t, f.store.Selection())
}

func TestHitThreshold(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})

	mid := f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5})

	f.ctrl.PointerDown(geometry.Point2D{X: mid.X, Y: mid.Y + HitThresholdPx - 1}, false)
	f.ctrl.PointerUp()
	assert.NotNil(t, f.store.Selection(), "within threshold")

	f.store.ClearSelection()
	f.ctrl.PointerDown(geometry.Point2D{X: mid.X, Y: mid.Y + HitThresholdPx + 5}, false)
	f.ctrl.PointerUp()
	assert.Nil(t, f.store.Selection(), "beyond threshold")
}

func TestHiddenAnnotationsAreNotHittable(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	f.store.SetHidden(true)

	f.ctrl.PointerDown(f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5}), false)
	assert.Nil(t, f.store.Selection())
}

func TestExpiredAnnotationIsNotHittable(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.now = 10
	f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	two := 2.0
	lines := f.store.Lines()
	f.store.UpdateLine(lines[0].ID, annotation.LineUpdate{Duration: durPtr(&two)})

	f.now = 11
	f.ctrl.PointerDown(f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5}), false)
	require.NotNil(t, f.store.Selection(), "inside the window")

	f.store.ClearSelection()
	f.now = 13
	f.ctrl.PointerDown(f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5}), false)
	assert.Nil(t, f.store.Selection(), "past the window")
}

func TestBodyDragIsOneUndoStep(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.4, Y: 0.5})

	grab := f.mapper.ToVisual(geometry.Point2D{X: 0.3, Y: 0.5})
	f.ctrl.PointerDown(grab, false) // selects + starts body drag
	require.True(t, f.ctrl.Dragging())

	// Many intermediate movements collapse into the single snapshot
	// taken at drag start.
	for i := 1; i <= 10; i++ {
		f.ctrl.PointerMove(geometry.Point2D{X: grab.X + float64(i)*10, Y: grab.Y})
	}
	f.ctrl.PointerUp()
	require.False(t, f.ctrl.Dragging())

	moved, ok := f.store.FindLine(l.ID)
	require.True(t, ok)
	assert.InDelta(t, 0.3, moved.Start.X, 1e-9)
	assert.InDelta(t, 0.5, moved.End.X, 1e-9)

	require.True(t, f.store.Undo())
	back, ok := f.store.FindLine(l.ID)
	require.True(t, ok)
	assert.InDelta(t, 0.2, back.Start.X, 1e-9)
	assert.InDelta(t, 0.4, back.End.X, 1e-9)
}

func TestEndpointDragMovesOnePoint(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	f.store.Select(annotation.KindLine, l.ID)

	endPx := f.mapper.ToVisual(l.End)
	f.ctrl.PointerDown(endPx, false)
	require.True(t, f.ctrl.Dragging())

	f.ctrl.PointerMove(f.mapper.ToVisual(geometry.Point2D{X: 0.8, Y: 0.2}))
	f.ctrl.PointerUp()

	got, ok := f.store.FindLine(l.ID)
	require.True(t, ok)
	assert.InDelta(t, 0.2, got.Start.X, 1e-9, "other endpoint untouched")
	assert.InDelta(t, 0.5, got.Start.Y, 1e-9)
	assert.InDelta(t, 0.8, got.End.X, 1e-9)
	assert.InDelta(t, 0.2, got.End.Y, 1e-9)
}

func TestAngleVertexDragRecomputesDegrees(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.ctrl.SetTool(annotation.ToolAngle)
	f.ctrl.PointerDown(geometry.Point2D{X: 200, Y: 500}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 500, Y: 500}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 500, Y: 200}, false)
	a := f.store.Angles()[0]
	require.InDelta(t, 90, a.Degrees, 1e-9)

	f.store.Select(annotation.KindAngle, a.ID)
	f.ctrl.PointerDown(f.mapper.ToVisual(a.Vertex), false)
	require.True(t, f.ctrl.Dragging())
	f.ctrl.PointerMove(geometry.Point2D{X: 500, Y: 350})
	f.ctrl.PointerUp()

	got, ok := f.store.FindAngle(a.ID)
	require.True(t, ok)
	assert.Greater(t, math.Abs(got.Degrees-90), 1.0, "degrees follow the moved vertex")
}

func TestDragOfDeletedTargetAborts(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})

	grab := f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5})
	f.ctrl.PointerDown(grab, false)
	require.True(t, f.ctrl.Dragging())

	// The target vanishes mid-gesture (e.g. loaded over by a project
	// file). The next move abandons the session instead of erroring.
	f.store.RemoveLine(l.ID)
	f.ctrl.PointerMove(geometry.Point2D{X: grab.X + 50, Y: grab.Y})
	assert.False(t, f.ctrl.Dragging())
}

func TestTextPlacementAndCommit(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)

	var editAt *geometry.Point2D
	f.ctrl.SetCallbacks(Callbacks{
		BeginTextEdit: func(p geometry.Point2D) { editAt = &p },
	})

	f.ctrl.SetTool(annotation.ToolText)
	f.ctrl.PointerDown(geometry.Point2D{X: 400, Y: 600}, false)
	require.True(t, f.ctrl.TextEditOpen())
	require.NotNil(t, editAt)

	f.ctrl.CommitText("shutter release")
	texts := f.store.Texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "shutter release", texts[0].Content)
	assert.InDelta(t, 0.4, texts[0].Anchor.X, 1e-9)
	assert.InDelta(t, 0.6, texts[0].Anchor.Y, 1e-9)
	assert.False(t, f.ctrl.TextEditOpen())
	assert.Equal(t, annotation.ToolNone, f.store.Tool())
}

func TestEmptyTextCommitDiscarded(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.ctrl.SetTool(annotation.ToolText)
	f.ctrl.PointerDown(geometry.Point2D{X: 400, Y: 600}, false)
	f.ctrl.CommitText("")

	assert.Empty(t, f.store.Texts())
	assert.False(t, f.store.CanUndo(), "no undo step burned")
}

func TestTextBoxResizeDrag(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	w := 0.2
	txt, ok := f.store.AddText(annotation.Text{
		Anchor:   geometry.Point2D{X: 0.3, Y: 0.5},
		Content:  "wrapped caption text",
		FontSize: 14,
		BoxWidth: &w,
	})
	require.True(t, ok)
	f.store.Select(annotation.KindText, txt.ID)

	handle := f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5})
	f.ctrl.PointerDown(handle, false)
	require.True(t, f.ctrl.Dragging())

	f.ctrl.PointerMove(f.mapper.ToVisual(geometry.Point2D{X: 0.7, Y: 0.5}))
	f.ctrl.PointerUp()

	got, ok := f.store.FindText(txt.ID)
	require.True(t, ok)
	require.NotNil(t, got.BoxWidth)
	assert.InDelta(t, 0.4, *got.BoxWidth, 1e-9)
}

func TestSelectionBlocksDrawing(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	f.store.Select(annotation.KindLine, l.ID)

	f.ctrl.SetTool(annotation.ToolLine)
	f.ctrl.PointerDown(geometry.Point2D{X: 100, Y: 100}, false)

	assert.Nil(t, f.store.Selection(), "first click only unselects")
	assert.Empty(t, f.ctrl.PendingPoints(), "no placement point captured")
	assert.Len(t, f.store.Lines(), 1)
}

func TestEscapePriorityChain(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	closed := 0
	f.ctrl.SetCallbacks(Callbacks{
		CloseToolPanel: func() { closed++ },
	})

	// 1. Open text edit wins.
	f.ctrl.SetTool(annotation.ToolText)
	f.ctrl.PointerDown(geometry.Point2D{X: 400, Y: 400}, false)
	require.True(t, f.ctrl.TextEditOpen())
	f.ctrl.Escape()
	assert.False(t, f.ctrl.TextEditOpen())
	assert.Zero(t, closed)

	// 2. Selection next.
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	f.store.Select(annotation.KindLine, l.ID)
	f.ctrl.Escape()
	assert.Nil(t, f.store.Selection())
	assert.Zero(t, closed)

	// 3. Pending placement points next.
	f.ctrl.SetTool(annotation.ToolLine)
	f.ctrl.PointerDown(geometry.Point2D{X: 100, Y: 100}, false)
	require.Len(t, f.ctrl.PendingPoints(), 1)
	f.ctrl.Escape()
	assert.Empty(t, f.ctrl.PendingPoints())
	assert.Zero(t, closed)

	// 4. Finally the panel-close signal.
	f.ctrl.Escape()
	assert.Equal(t, 1, closed)
}

func TestSwitchingToolClearsPending(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.ctrl.SetTool(annotation.ToolAngle)
	f.ctrl.PointerDown(geometry.Point2D{X: 100, Y: 100}, false)
	f.ctrl.PointerDown(geometry.Point2D{X: 300, Y: 100}, false)
	require.Len(t, f.ctrl.PendingPoints(), 2)

	f.ctrl.SetTool(annotation.ToolLine)
	assert.Empty(t, f.ctrl.PendingPoints())
	assert.Empty(t, f.store.Angles())
}

func TestDoubleClickOpensToolPanel(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	var opened []annotation.Kind
	f.ctrl.SetCallbacks(Callbacks{
		OpenToolPanel: func(k annotation.Kind) { opened = append(opened, k) },
	})

	f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	f.ctrl.DoubleClick(f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5}))
	require.Equal(t, []annotation.Kind{annotation.KindLine}, opened)

	// Miss does nothing.
	f.ctrl.DoubleClick(geometry.Point2D{X: 50, Y: 50})
	assert.Len(t, opened, 1)
}

func TestHoverTracksIdleCursor(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	l := f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})

	f.ctrl.PointerMove(f.mapper.ToVisual(geometry.Point2D{X: 0.5, Y: 0.5}))
	h := f.ctrl.Hovered()
	require.NotNil(t, h)
	assert.Equal(t, l.ID, h.ID)

	f.ctrl.PointerMove(geometry.Point2D{X: 10, Y: 10})
	assert.Nil(t, f.ctrl.Hovered())
}

func TestDeleteWithoutSelectionIsNoop(t *testing.T) {
	f := newFixture(t, 1000, 1000, 1)
	f.placeLine(geometry.Point2D{X: 0.2, Y: 0.5}, geometry.Point2D{X: 0.8, Y: 0.5})
	undoDepthBefore := f.store.CanUndo()

	f.ctrl.DeleteSelected()
	assert.Len(t, f.store.Lines(), 1)
	assert.Equal(t, undoDepthBefore, f.store.CanUndo())
}

func durPtr(p *float64) **float64 {
	return &p
}
