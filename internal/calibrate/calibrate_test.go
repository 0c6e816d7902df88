package calibrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frame-marker/internal/annotation"
	"frame-marker/internal/mapper"
	"frame-marker/pkg/geometry"
)

// newFixture returns a store and engine over a 1000x1000 surface with
// square media, so normalized distances map 1:1000 to pixels.
func newFixture() (*annotation.Store, *Engine) {
	store := annotation.NewStore()
	m := mapper.New()
	m.SetSurfaceSize(1000, 1000)
	m.SetAspectRatio(1)
	return store, New(store, m)
}

func addLine(s *annotation.Store, x1, y1, x2, y2 float64) annotation.Line {
	return s.AddLine(annotation.Line{
		Start: geometry.NewPoint2D(x1, y1),
		End:   geometry.NewPoint2D(x2, y2),
	})
}

func TestMeasureScalesThroughReference(t *testing.T) {
	store, eng := newFixture()

	// Reference: 100px on screen, declared as 1000mm.
	ref := addLine(store, 0, 0, 0.1, 0)
	require.True(t, store.SetReference(ref.ID, 1000, "mm"))

	// Second line: 50px on screen.
	l := addLine(store, 0, 0.5, 0.05, 0.5)
	m, ok := eng.Measure(l)
	require.True(t, ok)
	assert.InDelta(t, 500, m.Value, 1e-9)
	assert.Equal(t, "mm", m.Unit)

	// Double the pixel length doubles the reported length.
	l2 := addLine(store, 0, 0.6, 0.2, 0.6)
	m2, ok := eng.Measure(l2)
	require.True(t, ok)
	assert.InDelta(t, 2000, m2.Value, 1e-9)
}

func TestMeasureWithoutReference(t *testing.T) {
	store, eng := newFixture()
	l := addLine(store, 0, 0, 0.5, 0)

	_, ok := eng.Measure(l)
	assert.False(t, ok, "no reference: lines display raw")
}

func TestMeasureReferenceLineReportsItsOwnLength(t *testing.T) {
	store, eng := newFixture()
	ref := addLine(store, 0, 0, 0.1, 0)
	require.True(t, store.SetReference(ref.ID, 250, "cm"))

	m, ok := eng.Measure(ref)
	require.True(t, ok)
	assert.Equal(t, 250.0, m.Value)
	assert.Equal(t, "cm", m.Unit)
}

func TestMeasureUsesVisualLengthUnderZoom(t *testing.T) {
	store := annotation.NewStore()
	m := mapper.New()
	m.SetSurfaceSize(1000, 1000)
	m.SetAspectRatio(1)
	eng := New(store, m)

	ref := addLine(store, 0, 0, 0.1, 0)
	require.True(t, store.SetReference(ref.ID, 1000, "mm"))
	l := addLine(store, 0, 0.5, 0.05, 0.5)

	before, _ := eng.Measure(l)
	m.SetView(mapper.ViewTransform{Scale: 3, TranslateX: 50, TranslateY: -20})
	after, ok := eng.Measure(l)

	// Zoom scales both lines equally, so the ratio (and the result) holds.
	require.True(t, ok)
	assert.InDelta(t, before.Value, after.Value, 1e-9)
}

func TestCaptureLifecycle(t *testing.T) {
	store, eng := newFixture()
	l := addLine(store, 0.2, 0.4, 0.4, 0.4)

	pending, ok := eng.BeginCapture(l.ID)
	require.True(t, ok)
	assert.Equal(t, l.ID, pending.LineID)
	// Anchored at the visual midpoint.
	assert.InDelta(t, 300, pending.Anchor.X, 1e-9)
	assert.InDelta(t, 400, pending.Anchor.Y, 1e-9)

	require.NoError(t, eng.Commit("1500", "mm"))
	assert.Nil(t, eng.Pending())

	ref, ok := store.ReferenceLine()
	require.True(t, ok)
	assert.Equal(t, l.ID, ref.ID)
	assert.Equal(t, 1500.0, ref.RefLength)
}

func TestCaptureRejectsBadInputAndAllowsRetry(t *testing.T) {
	store, eng := newFixture()
	l := addLine(store, 0, 0, 0.5, 0)

	_, ok := eng.BeginCapture(l.ID)
	require.True(t, ok)

	assert.Error(t, eng.Commit("not-a-number", "mm"))
	assert.Error(t, eng.Commit("-3", "mm"))
	assert.Error(t, eng.Commit("0", "mm"))
	assert.Error(t, eng.Commit("10", ""))
	require.NotNil(t, eng.Pending(), "bad input leaves the capture open")

	_, refOK := store.ReferenceLine()
	assert.False(t, refOK, "bad input never corrupts the line")

	require.NoError(t, eng.Commit(" 42.5 ", "cm"))
	ref, refOK := store.ReferenceLine()
	require.True(t, refOK)
	assert.Equal(t, 42.5, ref.RefLength)
}

func TestCaptureCancelKeepsLine(t *testing.T) {
	store, eng := newFixture()
	l := addLine(store, 0, 0, 0.5, 0)

	_, ok := eng.BeginCapture(l.ID)
	require.True(t, ok)
	eng.Cancel()

	assert.Nil(t, eng.Pending())
	_, found := store.FindLine(l.ID)
	assert.True(t, found)
	_, refOK := store.ReferenceLine()
	assert.False(t, refOK)
}

func TestCaptureUnknownLine(t *testing.T) {
	_, eng := newFixture()
	_, ok := eng.BeginCapture(404)
	assert.False(t, ok)
	assert.Error(t, eng.Commit("10", "mm"))
}

func TestSuggestFromDPI(t *testing.T) {
	store, eng := newFixture()
	l := addLine(store, 0, 0, 0.5, 0)

	// 0.5 of a 600px-wide media at 300 DPI = 1 inch.
	inches, ok := eng.SuggestFromDPI(l, 600, 600, 300)
	require.True(t, ok)
	assert.InDelta(t, 1.0, inches, 1e-9)

	_, ok = eng.SuggestFromDPI(l, 600, 600, 0)
	assert.False(t, ok)
}
