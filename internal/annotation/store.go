package annotation

import (
	"image/color"
	"sync"

	"frame-marker/pkg/geometry"
)

// maxUndoDepth caps the undo stack; the oldest snapshots are evicted.
const maxUndoDepth = 64

// EventType identifies store events.
type EventType int

const (
	EventAnnotationsChanged EventType = iota
	EventSelectionChanged
	EventToolChanged
	EventGridChanged
	EventHiddenChanged
	EventHistoryChanged
	EventReferenceChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Projector maps a normalized content point to its visual (surface pixel)
// position. The store uses it to derive angle degrees, which must follow
// the on-screen geometry rather than normalized space.
type Projector func(geometry.Point2D) geometry.Point2D

// Store owns the annotation collections of one surface plus their undo/redo
// history. Every surface side constructs its own Store; instances share
// nothing.
type Store struct {
	mu sync.RWMutex

	tool        Tool
	drawColor   color.RGBA
	strokeWidth float64
	textSize    float64
	hidden      bool

	lines  []Line
	angles []Angle
	texts  []Text
	grid   GridSettings

	selection *Selection

	nextLineID  int
	nextAngleID int
	nextTextID  int

	undo []Snapshot
	redo []Snapshot

	durations Durations
	project   Projector

	listeners map[EventType][]EventListener
}

// NewStore creates an empty store with default tool settings.
func NewStore() *Store {
	return &Store{
		drawColor:   color.RGBA{R: 255, G: 0, B: 0, A: 255},
		strokeWidth: 2,
		textSize:    14,
		grid:        DefaultGrid(),
		nextLineID:  1,
		nextAngleID: 1,
		nextTextID:  1,
		durations:   DefaultDurations(),
		listeners:   make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Store) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Store) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetProjector sets the normalized→visual projection used to derive angle
// degrees. A nil projector falls back to the identity.
func (s *Store) SetProjector(p Projector) {
	s.mu.Lock()
	s.project = p
	s.mu.Unlock()
}

func (s *Store) projectLocked(p geometry.Point2D) geometry.Point2D {
	if s.project == nil {
		return p
	}
	return s.project(p)
}

// computeDegreesLocked derives an angle's degrees from the visual positions
// of its points.
func (s *Store) computeDegreesLocked(a *Angle) {
	a.Degrees = geometry.AngleAtVertex(
		s.projectLocked(a.P1),
		s.projectLocked(a.Vertex),
		s.projectLocked(a.P2),
	)
}

// Tool settings.

func (s *Store) SetTool(t Tool) {
	s.mu.Lock()
	changed := s.tool != t
	s.tool = t
	s.mu.Unlock()
	if changed {
		s.Emit(EventToolChanged, t)
	}
}

func (s *Store) Tool() Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tool
}

func (s *Store) SetColor(c color.RGBA) {
	s.mu.Lock()
	s.drawColor = c
	s.mu.Unlock()
}

func (s *Store) Color() color.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawColor
}

func (s *Store) SetStrokeWidth(w float64) {
	s.mu.Lock()
	s.strokeWidth = w
	s.mu.Unlock()
}

func (s *Store) StrokeWidth() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strokeWidth
}

func (s *Store) SetTextSize(size float64) {
	s.mu.Lock()
	s.textSize = size
	s.mu.Unlock()
}

func (s *Store) TextSize() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.textSize
}

func (s *Store) SetHidden(hidden bool) {
	s.mu.Lock()
	changed := s.hidden != hidden
	s.hidden = hidden
	s.mu.Unlock()
	if changed {
		s.Emit(EventHiddenChanged, hidden)
	}
}

func (s *Store) Hidden() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden
}

// SetDurations replaces the per-type default display durations.
func (s *Store) SetDurations(d Durations) {
	s.mu.Lock()
	s.durations = d
	s.mu.Unlock()
	s.Emit(EventAnnotationsChanged, nil)
}

// Durations returns the per-type default display durations.
func (s *Store) Durations() Durations {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durations
}

// Collections.

// Lines returns a copy of the line collection.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.lines)
}

// Angles returns a copy of the angle collection.
func (s *Store) Angles() []Angle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAngles(s.angles)
}

// Texts returns a copy of the text collection.
func (s *Store) Texts() []Text {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTexts(s.texts)
}

// Grid returns the grid settings.
func (s *Store) Grid() GridSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid
}

// VisibleLines returns the lines visible at playback time now.
func (s *Store) VisibleLines(now float64) []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := NewVisibilityFilter(s.durations)
	var out []Line
	for _, l := range s.lines {
		if f.Line(l, now) {
			out = append(out, cloneLine(l))
		}
	}
	return out
}

// VisibleAngles returns the angles visible at playback time now.
func (s *Store) VisibleAngles(now float64) []Angle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := NewVisibilityFilter(s.durations)
	var out []Angle
	for _, a := range s.angles {
		if f.Angle(a, now) {
			out = append(out, cloneAngle(a))
		}
	}
	return out
}

// VisibleTexts returns the texts visible at playback time now.
func (s *Store) VisibleTexts(now float64) []Text {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := NewVisibilityFilter(s.durations)
	var out []Text
	for _, t := range s.texts {
		if f.Text(t, now) {
			out = append(out, cloneText(t))
		}
	}
	return out
}

// FindLine returns the line with the given id.
func (s *Store) FindLine(id int) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lines {
		if l.ID == id {
			return cloneLine(l), true
		}
	}
	return Line{}, false
}

// FindAngle returns the angle with the given id.
func (s *Store) FindAngle(id int) (Angle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.angles {
		if a.ID == id {
			return cloneAngle(a), true
		}
	}
	return Angle{}, false
}

// FindText returns the text with the given id.
func (s *Store) FindText(id int) (Text, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.texts {
		if t.ID == id {
			return cloneText(t), true
		}
	}
	return Text{}, false
}

// Mutations. Every add/remove/clear pushes a pre-mutation snapshot and
// clears the redo stack; updates do not snapshot (drags take exactly one
// snapshot at drag start via SnapshotForUndo).

func (s *Store) pushUndoLocked() {
	s.undo = append(s.undo, s.snapshotLocked())
	if len(s.undo) > maxUndoDepth {
		s.undo = s.undo[len(s.undo)-maxUndoDepth:]
	}
	s.redo = nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:  cloneLines(s.lines),
		Angles: cloneAngles(s.angles),
		Texts:  cloneTexts(s.texts),
		Grid:   s.grid,
		Hidden: s.hidden,
	}
}

// AddLine appends a line, assigning its id, and returns the stored value.
func (s *Store) AddLine(l Line) Line {
	s.mu.Lock()
	s.pushUndoLocked()
	l.ID = s.nextLineID
	s.nextLineID++
	s.lines = append(s.lines, cloneLine(l))
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	return l
}

// AddAngle appends an angle, assigning its id and deriving its degrees from
// the visual point positions, and returns the stored value.
func (s *Store) AddAngle(a Angle) Angle {
	s.mu.Lock()
	s.pushUndoLocked()
	a.ID = s.nextAngleID
	s.nextAngleID++
	s.computeDegreesLocked(&a)
	s.angles = append(s.angles, cloneAngle(a))
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	return a
}

// AddText appends a text label, assigning its id, and returns the stored
// value. Empty content is discarded.
func (s *Store) AddText(t Text) (Text, bool) {
	if t.Content == "" {
		return Text{}, false
	}
	s.mu.Lock()
	s.pushUndoLocked()
	t.ID = s.nextTextID
	s.nextTextID++
	s.texts = append(s.texts, cloneText(t))
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	return t, true
}

// LineUpdate is a field-level merge applied to a line. Nil fields are left
// untouched.
type LineUpdate struct {
	Start       *geometry.Point2D
	End         *geometry.Point2D
	Color       *color.RGBA
	StrokeWidth *float64
	ShowAngle   *bool
	Name        *string
	Duration    **float64
}

// UpdateLine merges upd into the line with the given id. Unknown ids are
// no-ops and return false.
func (s *Store) UpdateLine(id int, upd LineUpdate) bool {
	s.mu.Lock()
	var found bool
	for i := range s.lines {
		if s.lines[i].ID != id {
			continue
		}
		l := &s.lines[i]
		if upd.Start != nil {
			l.Start = *upd.Start
		}
		if upd.End != nil {
			l.End = *upd.End
		}
		if upd.Color != nil {
			l.Color = *upd.Color
		}
		if upd.StrokeWidth != nil {
			l.StrokeWidth = *upd.StrokeWidth
		}
		if upd.ShowAngle != nil {
			l.ShowAngle = *upd.ShowAngle
		}
		if upd.Name != nil {
			l.Name = *upd.Name
		}
		if upd.Duration != nil {
			l.Duration = cloneFloat(*upd.Duration)
		}
		found = true
		break
	}
	s.mu.Unlock()

	if found {
		s.Emit(EventAnnotationsChanged, nil)
	}
	return found
}

// AngleUpdate is a field-level merge applied to an angle. Degrees is never
// set directly: it is recomputed whenever any point changes.
type AngleUpdate struct {
	P1          *geometry.Point2D
	Vertex      *geometry.Point2D
	P2          *geometry.Point2D
	Color       *color.RGBA
	StrokeWidth *float64
	Name        *string
	Duration    **float64
}

// UpdateAngle merges upd into the angle with the given id, recomputing the
// degrees from visual positions when a point moved. Unknown ids are no-ops.
func (s *Store) UpdateAngle(id int, upd AngleUpdate) bool {
	s.mu.Lock()
	var found bool
	for i := range s.angles {
		if s.angles[i].ID != id {
			continue
		}
		a := &s.angles[i]
		pointMoved := false
		if upd.P1 != nil {
			a.P1 = *upd.P1
			pointMoved = true
		}
		if upd.Vertex != nil {
			a.Vertex = *upd.Vertex
			pointMoved = true
		}
		if upd.P2 != nil {
			a.P2 = *upd.P2
			pointMoved = true
		}
		if upd.Color != nil {
			a.Color = *upd.Color
		}
		if upd.StrokeWidth != nil {
			a.StrokeWidth = *upd.StrokeWidth
		}
		if upd.Name != nil {
			a.Name = *upd.Name
		}
		if upd.Duration != nil {
			a.Duration = cloneFloat(*upd.Duration)
		}
		if pointMoved {
			s.computeDegreesLocked(a)
		}
		found = true
		break
	}
	s.mu.Unlock()

	if found {
		s.Emit(EventAnnotationsChanged, nil)
	}
	return found
}

// TextUpdate is a field-level merge applied to a text label.
type TextUpdate struct {
	Anchor     *geometry.Point2D
	Content    *string
	FontSize   *float64
	Color      *color.RGBA
	Background **color.RGBA
	BoxWidth   **float64
	Duration   **float64
}

// UpdateText merges upd into the text with the given id. Unknown ids are
// no-ops.
func (s *Store) UpdateText(id int, upd TextUpdate) bool {
	s.mu.Lock()
	var found bool
	for i := range s.texts {
		if s.texts[i].ID != id {
			continue
		}
		t := &s.texts[i]
		if upd.Anchor != nil {
			t.Anchor = *upd.Anchor
		}
		if upd.Content != nil {
			t.Content = *upd.Content
		}
		if upd.FontSize != nil {
			t.FontSize = *upd.FontSize
		}
		if upd.Color != nil {
			t.Color = *upd.Color
		}
		if upd.Background != nil {
			t.Background = cloneColor(*upd.Background)
		}
		if upd.BoxWidth != nil {
			t.BoxWidth = cloneFloat(*upd.BoxWidth)
		}
		if upd.Duration != nil {
			t.Duration = cloneFloat(*upd.Duration)
		}
		found = true
		break
	}
	s.mu.Unlock()

	if found {
		s.Emit(EventAnnotationsChanged, nil)
	}
	return found
}

// RecomputeAngles re-derives every angle's degrees from the current visual
// projection. Called when the projection itself changes (resize, pan/zoom).
func (s *Store) RecomputeAngles() {
	s.mu.Lock()
	for i := range s.angles {
		s.computeDegreesLocked(&s.angles[i])
	}
	s.mu.Unlock()
}

func (s *Store) clearSelectionIfLocked(kind Kind, id int) bool {
	if s.selection != nil && s.selection.Kind == kind && s.selection.ID == id {
		s.selection = nil
		return true
	}
	return false
}

// RemoveLine deletes the line with the given id. Unknown ids are no-ops.
func (s *Store) RemoveLine(id int) bool {
	s.mu.Lock()
	idx := -1
	for i, l := range s.lines {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.pushUndoLocked()
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	selectionCleared := s.clearSelectionIfLocked(KindLine, id)
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	if selectionCleared {
		s.Emit(EventSelectionChanged, nil)
	}
	return true
}

// RemoveAngle deletes the angle with the given id. Unknown ids are no-ops.
func (s *Store) RemoveAngle(id int) bool {
	s.mu.Lock()
	idx := -1
	for i, a := range s.angles {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.pushUndoLocked()
	s.angles = append(s.angles[:idx], s.angles[idx+1:]...)
	selectionCleared := s.clearSelectionIfLocked(KindAngle, id)
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	if selectionCleared {
		s.Emit(EventSelectionChanged, nil)
	}
	return true
}

// RemoveText deletes the text with the given id. Unknown ids are no-ops.
func (s *Store) RemoveText(id int) bool {
	s.mu.Lock()
	idx := -1
	for i, t := range s.texts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.pushUndoLocked()
	s.texts = append(s.texts[:idx], s.texts[idx+1:]...)
	selectionCleared := s.clearSelectionIfLocked(KindText, id)
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	if selectionCleared {
		s.Emit(EventSelectionChanged, nil)
	}
	return true
}

// Remove deletes the entity referenced by (kind, id).
func (s *Store) Remove(kind Kind, id int) bool {
	switch kind {
	case KindLine:
		return s.RemoveLine(id)
	case KindAngle:
		return s.RemoveAngle(id)
	case KindText:
		return s.RemoveText(id)
	default:
		return false
	}
}

// UpdateGrid replaces the grid settings.
func (s *Store) UpdateGrid(g GridSettings) {
	s.mu.Lock()
	s.grid = g
	s.mu.Unlock()
	s.Emit(EventGridChanged, nil)
}

// ClearAll removes every annotation, optionally preserving the grid and the
// hidden flag (used on media swap, where the caller decides what survives).
func (s *Store) ClearAll(preserveGrid, preserveHidden bool) {
	s.mu.Lock()
	s.pushUndoLocked()
	s.lines = nil
	s.angles = nil
	s.texts = nil
	if !preserveGrid {
		s.grid = DefaultGrid()
	}
	if !preserveHidden {
		s.hidden = false
	}
	s.selection = nil
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	s.Emit(EventSelectionChanged, nil)
}

// Selection.

// Select sets the active selection.
func (s *Store) Select(kind Kind, id int) {
	s.mu.Lock()
	s.selection = &Selection{Kind: kind, ID: id}
	s.mu.Unlock()
	s.Emit(EventSelectionChanged, s.selection)
}

// ClearSelection drops the active selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	had := s.selection != nil
	s.selection = nil
	s.mu.Unlock()
	if had {
		s.Emit(EventSelectionChanged, nil)
	}
}

// Selection returns the active selection, or nil.
func (s *Store) Selection() *Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return nil
	}
	sel := *s.selection
	return &sel
}

// Calibration reference.

// SetReference marks the line with the given id as the calibration
// reference, clearing any previous reference. Non-positive lengths are
// rejected so bad input never corrupts the line.
func (s *Store) SetReference(id int, length float64, unit string) bool {
	if length <= 0 {
		return false
	}
	s.mu.Lock()
	var found bool
	for i := range s.lines {
		if s.lines[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines[i].RefLength = length
			s.lines[i].RefUnit = unit
		} else if s.lines[i].RefLength > 0 {
			s.lines[i].RefLength = 0
			s.lines[i].RefUnit = ""
		}
	}
	s.mu.Unlock()

	s.Emit(EventReferenceChanged, id)
	s.Emit(EventAnnotationsChanged, nil)
	return true
}

// ReferenceLine returns the calibration reference line, if one exists.
func (s *Store) ReferenceLine() (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lines {
		if l.RefLength > 0 {
			return cloneLine(l), true
		}
	}
	return Line{}, false
}

// History.

// SnapshotForUndo pushes the current state onto the undo stack without
// mutating anything. Called once at drag start so a whole drag collapses
// into one undo step.
func (s *Store) SnapshotForUndo() {
	s.mu.Lock()
	s.pushUndoLocked()
	s.mu.Unlock()
	s.Emit(EventHistoryChanged, nil)
}

// Undo restores the most recent snapshot, moving the current state to the
// redo stack. Selection is cleared: the edited entity may no longer exist.
func (s *Store) Undo() bool {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return false
	}
	snap := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, s.snapshotLocked())
	s.restoreLocked(snap)
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventHistoryChanged, nil)
	return true
}

// Redo is the mirror of Undo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	if len(s.redo) == 0 {
		s.mu.Unlock()
		return false
	}
	snap := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, s.snapshotLocked())
	s.restoreLocked(snap)
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventHistoryChanged, nil)
	return true
}

// CanUndo reports whether an undo step is available.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.undo) > 0
}

// CanRedo reports whether a redo step is available.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo) > 0
}

func (s *Store) restoreLocked(snap Snapshot) {
	s.lines = cloneLines(snap.Lines)
	s.angles = cloneAngles(snap.Angles)
	s.texts = cloneTexts(snap.Texts)
	s.grid = snap.Grid
	s.hidden = snap.Hidden
	s.selection = nil
	s.bumpIDsLocked()
}

// bumpIDsLocked advances the id counters past every restored entity so that
// restored ids stay stable and new entities never collide with them.
func (s *Store) bumpIDsLocked() {
	for _, l := range s.lines {
		if l.ID >= s.nextLineID {
			s.nextLineID = l.ID + 1
		}
	}
	for _, a := range s.angles {
		if a.ID >= s.nextAngleID {
			s.nextAngleID = a.ID + 1
		}
	}
	for _, t := range s.texts {
		if t.ID >= s.nextTextID {
			s.nextTextID = t.ID + 1
		}
	}
}

// Snapshot returns a deep copy of the current annotation state for
// persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// LoadSnap replaces all annotation state with the snapshot, clearing the
// history (used when a saved file or new media is loaded).
func (s *Store) LoadSnap(snap Snapshot) {
	s.mu.Lock()
	s.undo = nil
	s.redo = nil
	s.restoreLocked(snap.Clone())
	s.mu.Unlock()

	s.Emit(EventAnnotationsChanged, nil)
	s.Emit(EventSelectionChanged, nil)
	s.Emit(EventGridChanged, nil)
	s.Emit(EventHistoryChanged, nil)
}
