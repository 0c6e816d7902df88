package annotation

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frame-marker/pkg/geometry"
)

func testLine(x1, y1, x2, y2 float64) Line {
	return Line{
		Start:       geometry.NewPoint2D(x1, y1),
		End:         geometry.NewPoint2D(x2, y2),
		Color:       color.RGBA{R: 255, A: 255},
		StrokeWidth: 2,
	}
}

func TestAddAssignsStableIDs(t *testing.T) {
	s := NewStore()
	l1 := s.AddLine(testLine(0, 0, 1, 1))
	l2 := s.AddLine(testLine(0, 1, 1, 0))

	assert.Equal(t, 1, l1.ID)
	assert.Equal(t, 2, l2.ID)

	got, ok := s.FindLine(l1.ID)
	require.True(t, ok)
	assert.Equal(t, l1.Start, got.Start)
}

func TestUndoRedoDuality(t *testing.T) {
	s := NewStore()
	before := s.Snapshot()

	s.AddLine(testLine(0, 0, 1, 1))
	s.AddAngle(Angle{P1: geometry.NewPoint2D(0, 0), Vertex: geometry.NewPoint2D(0.5, 0.5), P2: geometry.NewPoint2D(1, 0)})
	s.AddText(Text{Anchor: geometry.NewPoint2D(0.2, 0.2), Content: "note", FontSize: 14})
	after := s.Snapshot()

	require.True(t, s.Undo())
	require.True(t, s.Undo())
	require.True(t, s.Undo())
	assert.Equal(t, before, s.Snapshot())
	assert.False(t, s.Undo(), "history exhausted")

	require.True(t, s.Redo())
	require.True(t, s.Redo())
	require.True(t, s.Redo())
	assert.Equal(t, after, s.Snapshot())
	assert.False(t, s.Redo())
}

func TestUndoRestoresOriginalID(t *testing.T) {
	s := NewStore()
	l := s.AddLine(testLine(0.1, 0.1, 0.9, 0.1))

	require.True(t, s.RemoveLine(l.ID))
	_, ok := s.FindLine(l.ID)
	require.False(t, ok)

	require.True(t, s.Undo())
	restored, ok := s.FindLine(l.ID)
	require.True(t, ok, "undo must restore the original id")
	assert.Equal(t, l.Start, restored.Start)
	assert.Equal(t, l.End, restored.End)

	// A new line after the restore never reuses the id.
	next := s.AddLine(testLine(0, 0, 1, 1))
	assert.Greater(t, next.ID, l.ID)
}

func TestMutationClearsRedo(t *testing.T) {
	s := NewStore()
	s.AddLine(testLine(0, 0, 1, 1))
	require.True(t, s.Undo())
	require.True(t, s.CanRedo())

	s.AddLine(testLine(0, 1, 1, 0))
	assert.False(t, s.CanRedo(), "new mutation clears the redo stack")
}

func TestDragCollapsesIntoOneUndoStep(t *testing.T) {
	s := NewStore()
	l := s.AddLine(testLine(0.1, 0.1, 0.5, 0.5))
	settled := s.Snapshot()

	// Drag start snapshots once; the intermediate moves do not.
	s.SnapshotForUndo()
	for i := 0; i < 10; i++ {
		p := geometry.NewPoint2D(0.5+float64(i)*0.01, 0.5)
		s.UpdateLine(l.ID, LineUpdate{End: &p})
	}

	require.True(t, s.Undo())
	assert.Equal(t, settled, s.Snapshot())
}

func TestUndoClearsSelection(t *testing.T) {
	s := NewStore()
	l := s.AddLine(testLine(0, 0, 1, 1))
	s.Select(KindLine, l.ID)
	require.NotNil(t, s.Selection())

	require.True(t, s.Undo())
	assert.Nil(t, s.Selection())
}

func TestRemoveClearsMatchingSelection(t *testing.T) {
	s := NewStore()
	l := s.AddLine(testLine(0, 0, 1, 1))
	other := s.AddLine(testLine(0, 1, 1, 0))

	s.Select(KindLine, l.ID)
	require.True(t, s.RemoveLine(other.ID))
	assert.NotNil(t, s.Selection(), "removing another item keeps selection")

	require.True(t, s.RemoveLine(l.ID))
	assert.Nil(t, s.Selection())
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	s := NewStore()
	s.AddLine(testLine(0, 0, 1, 1))
	snap := s.Snapshot()

	assert.False(t, s.RemoveLine(999))
	assert.Equal(t, snap, s.Snapshot())
	// A failed remove must not have burned an undo step.
	require.True(t, s.Undo())
	assert.Empty(t, s.Snapshot().Lines)
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	s := NewStore()
	p := geometry.NewPoint2D(0.5, 0.5)
	assert.False(t, s.UpdateLine(42, LineUpdate{End: &p}))
	assert.False(t, s.UpdateAngle(42, AngleUpdate{Vertex: &p}))
	assert.False(t, s.UpdateText(42, TextUpdate{Anchor: &p}))
}

func TestUndoDepthIsCapped(t *testing.T) {
	s := NewStore()
	for i := 0; i < maxUndoDepth+20; i++ {
		s.AddLine(testLine(0, 0, 1, 1))
	}
	steps := 0
	for s.Undo() {
		steps++
	}
	assert.Equal(t, maxUndoDepth, steps)
}

func TestEmptyTextDiscarded(t *testing.T) {
	s := NewStore()
	_, ok := s.AddText(Text{Anchor: geometry.NewPoint2D(0.5, 0.5), FontSize: 14})
	assert.False(t, ok)
	assert.Empty(t, s.Texts())
	assert.False(t, s.CanUndo(), "discarded text must not snapshot")
}

func TestAngleDegreesFollowVisualProjection(t *testing.T) {
	s := NewStore()
	// Letterboxed projection: x stretched 2x relative to y.
	s.SetProjector(func(p geometry.Point2D) geometry.Point2D {
		return geometry.Point2D{X: p.X * 400, Y: p.Y * 200}
	})

	a := s.AddAngle(Angle{
		P1:     geometry.NewPoint2D(0.5, 0.25),
		Vertex: geometry.NewPoint2D(0.25, 0.25),
		P2:     geometry.NewPoint2D(0.5, 0.5),
	})

	// In normalized space the angle would be 45 degrees; under the
	// non-uniform projection the diagonal arm flattens.
	assert.InDelta(t, 26.565, a.Degrees, 0.01)

	// Moving a point recomputes from the projection.
	p := geometry.NewPoint2D(0.25, 0.5)
	require.True(t, s.UpdateAngle(a.ID, AngleUpdate{P2: &p}))
	got, ok := s.FindAngle(a.ID)
	require.True(t, ok)
	assert.InDelta(t, 90, got.Degrees, 1e-9)
}

func TestSingleReferenceLine(t *testing.T) {
	s := NewStore()
	l1 := s.AddLine(testLine(0, 0, 1, 0))
	l2 := s.AddLine(testLine(0, 1, 1, 1))

	require.True(t, s.SetReference(l1.ID, 1000, "mm"))
	ref, ok := s.ReferenceLine()
	require.True(t, ok)
	assert.Equal(t, l1.ID, ref.ID)

	// Re-anchoring moves the reference; it never duplicates.
	require.True(t, s.SetReference(l2.ID, 500, "cm"))
	ref, ok = s.ReferenceLine()
	require.True(t, ok)
	assert.Equal(t, l2.ID, ref.ID)

	old, _ := s.FindLine(l1.ID)
	assert.False(t, old.IsReference())
}

func TestSetReferenceRejectsInvalidLength(t *testing.T) {
	s := NewStore()
	l := s.AddLine(testLine(0, 0, 1, 0))

	assert.False(t, s.SetReference(l.ID, 0, "mm"))
	assert.False(t, s.SetReference(l.ID, -5, "mm"))
	_, ok := s.ReferenceLine()
	assert.False(t, ok)
}

func TestClearAllPreservesGridAndHiddenOnRequest(t *testing.T) {
	s := NewStore()
	s.AddLine(testLine(0, 0, 1, 1))
	grid := s.Grid()
	grid.Show = true
	grid.Spacing = 80
	s.UpdateGrid(grid)
	s.SetHidden(true)

	s.ClearAll(true, true)
	assert.Empty(t, s.Lines())
	assert.Equal(t, 80.0, s.Grid().Spacing)
	assert.True(t, s.Grid().Show)
	assert.True(t, s.Hidden())

	s.ClearAll(false, false)
	assert.Equal(t, DefaultGrid(), s.Grid())
	assert.False(t, s.Hidden())
}

func TestLoadSnapReplacesStateAndClearsHistory(t *testing.T) {
	s := NewStore()
	s.AddLine(testLine(0, 0, 1, 1))

	snap := Snapshot{
		Lines:  []Line{{ID: 7, Start: geometry.NewPoint2D(0.2, 0.2), End: geometry.NewPoint2D(0.8, 0.8)}},
		Grid:   DefaultGrid(),
		Hidden: false,
	}
	s.LoadSnap(snap)

	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 7, s.Lines()[0].ID)
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	// New ids continue past the loaded ones.
	l := s.AddLine(testLine(0, 0, 1, 0))
	assert.Equal(t, 8, l.ID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore()
	created := 3.0
	s.AddLine(Line{Start: geometry.NewPoint2D(0, 0), End: geometry.NewPoint2D(1, 1), CreatedAt: &created})

	snap := s.Snapshot()
	*snap.Lines[0].CreatedAt = 99

	got, _ := s.FindLine(1)
	require.NotNil(t, got.CreatedAt)
	assert.Equal(t, 3.0, *got.CreatedAt, "mutating a snapshot must not leak into the store")
}

func TestEventEmission(t *testing.T) {
	s := NewStore()
	var annotations, selections int
	s.On(EventAnnotationsChanged, func(interface{}) { annotations++ })
	s.On(EventSelectionChanged, func(interface{}) { selections++ })

	l := s.AddLine(testLine(0, 0, 1, 1))
	s.Select(KindLine, l.ID)
	s.ClearSelection()

	assert.Equal(t, 1, annotations)
	assert.Equal(t, 2, selections)
}
