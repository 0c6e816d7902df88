// Package calibrate converts measured pixel distances into real-world
// units using one designated reference line.
package calibrate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"frame-marker/internal/annotation"
	"frame-marker/internal/mapper"
	"frame-marker/pkg/geometry"
)

// Measurement is a real-world length derived from the calibration reference.
type Measurement struct {
	Value float64
	Unit  string
}

// String formats the measurement for display.
func (m Measurement) String() string {
	return fmt.Sprintf("%.1f %s", m.Value, m.Unit)
}

// PendingReference is a one-shot input capture for a freshly drawn
// reference line, anchored near the line's visual midpoint.
type PendingReference struct {
	LineID int
	Anchor geometry.Point2D // surface pixels
}

// Engine derives real-world lengths for measurement lines. Pixel lengths
// are always taken between visual (post-transform) endpoints: normalized
// distance is not metric under letterboxing.
type Engine struct {
	store   *annotation.Store
	mapper  *mapper.Mapper
	pending *PendingReference
}

// New creates an engine bound to one surface's store and mapper.
func New(store *annotation.Store, m *mapper.Mapper) *Engine {
	return &Engine{store: store, mapper: m}
}

// PixelLength returns the on-screen length of a line in surface pixels.
func (e *Engine) PixelLength(l annotation.Line) float64 {
	return e.mapper.VisualDistance(l.Start, l.End)
}

// Measure returns the real-world length of a line, scaled through the
// reference line. It reports false when no reference exists or the
// reference is degenerate, in which case the line displays raw.
func (e *Engine) Measure(l annotation.Line) (Measurement, bool) {
	ref, ok := e.store.ReferenceLine()
	if !ok {
		return Measurement{}, false
	}
	refPx := e.PixelLength(ref)
	if refPx == 0 {
		return Measurement{}, false
	}
	if l.ID == ref.ID {
		return Measurement{Value: ref.RefLength, Unit: ref.RefUnit}, true
	}
	return Measurement{
		Value: e.PixelLength(l) * ref.RefLength / refPx,
		Unit:  ref.RefUnit,
	}, true
}

// BeginCapture starts the reference input for the given line, returning the
// capture anchored near the line's visual midpoint. False if the line does
// not exist.
func (e *Engine) BeginCapture(lineID int) (PendingReference, bool) {
	l, ok := e.store.FindLine(lineID)
	if !ok {
		return PendingReference{}, false
	}
	mid := e.mapper.ToVisual(l.Start.Midpoint(l.End))
	e.pending = &PendingReference{LineID: lineID, Anchor: mid}
	return *e.pending, true
}

// Pending returns the active capture, or nil.
func (e *Engine) Pending() *PendingReference {
	if e.pending == nil {
		return nil
	}
	p := *e.pending
	return &p
}

// Commit parses the entered length and applies the reference. Invalid input
// (non-numeric, non-positive, NaN) leaves the pending capture untouched so
// the user can retry; it never corrupts the line.
func (e *Engine) Commit(value, unit string) error {
	if e.pending == nil {
		return fmt.Errorf("no pending reference")
	}
	length, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid reference length %q: %w", value, err)
	}
	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return fmt.Errorf("reference length must be positive, got %v", length)
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return fmt.Errorf("reference unit must not be empty")
	}
	if !e.store.SetReference(e.pending.LineID, length, unit) {
		// Line deleted while the capture was open.
		id := e.pending.LineID
		e.pending = nil
		return fmt.Errorf("reference line %d no longer exists", id)
	}
	e.pending = nil
	return nil
}

// Cancel drops the pending capture. The line itself is kept.
func (e *Engine) Cancel() {
	e.pending = nil
}

// SuggestFromDPI proposes an initial reference length in inches for a line,
// from the media's DPI metadata and natural pixel size. It is only a
// suggestion for the capture dialog; nothing is applied. False when DPI or
// media size is unknown.
func (e *Engine) SuggestFromDPI(l annotation.Line, mediaW, mediaH, dpi float64) (float64, bool) {
	if dpi <= 0 || mediaW <= 0 || mediaH <= 0 {
		return 0, false
	}
	dx := (l.End.X - l.Start.X) * mediaW
	dy := (l.End.Y - l.Start.Y) * mediaH
	return math.Sqrt(dx*dx+dy*dy) / dpi, true
}
