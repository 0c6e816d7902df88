// Package annotation owns the annotation data model: lines, angles, text
// labels and the reference grid, plus the undo/redo history over them.
package annotation

import (
	"image/color"

	"frame-marker/pkg/geometry"
)

// Tool identifies the active drawing tool.
type Tool int

const (
	ToolNone Tool = iota
	ToolLine
	ToolAngle
	ToolText
	ToolMeasure // like ToolLine, but feeds the calibration engine
)

func (t Tool) String() string {
	switch t {
	case ToolLine:
		return "Line"
	case ToolAngle:
		return "Angle"
	case ToolText:
		return "Text"
	case ToolMeasure:
		return "Measure"
	default:
		return "None"
	}
}

// Kind identifies an entity collection, used by selection references.
type Kind int

const (
	KindLine Kind = iota
	KindAngle
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindAngle:
		return "angle"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// DurationPersistent is the display-duration sentinel for "visible for all
// time once created".
const DurationPersistent = -1.0

// Line is a two-point segment in normalized content coordinates.
// A line with RefLength > 0 is the calibration reference; at most one line
// in a store carries it. IsMeasurement marks lines whose real-world length
// is derived from the reference.
type Line struct {
	ID          int               `json:"id"`
	Start       geometry.Point2D  `json:"start"`
	End         geometry.Point2D  `json:"end"`
	Color       color.RGBA        `json:"color"`
	StrokeWidth float64           `json:"stroke_width"`
	ShowAngle   bool              `json:"show_angle,omitempty"`
	Name        string            `json:"name,omitempty"`

	// CreatedAt is the playback time in seconds when the line was drawn.
	// Nil on imported legacy data, which is then always visible.
	CreatedAt *float64 `json:"created_at,omitempty"`
	// Duration overrides the per-type display duration: nil = use the type
	// default, DurationPersistent = always visible, otherwise seconds.
	Duration *float64 `json:"duration,omitempty"`

	RefLength     float64 `json:"ref_length,omitempty"`
	RefUnit       string  `json:"ref_unit,omitempty"`
	IsMeasurement bool    `json:"is_measurement,omitempty"`
}

// IsReference reports whether this line is the calibration reference.
func (l Line) IsReference() bool {
	return l.RefLength > 0
}

// Angle is a three-point angle (arm, vertex, arm) in normalized content
// coordinates. Degrees is always derived from the visual (post-transform)
// projections of the points, never from normalized coordinates, because the
// content box is not uniformly scaled.
type Angle struct {
	ID          int              `json:"id"`
	P1          geometry.Point2D `json:"p1"`
	Vertex      geometry.Point2D `json:"vertex"`
	P2          geometry.Point2D `json:"p2"`
	Color       color.RGBA       `json:"color"`
	StrokeWidth float64          `json:"stroke_width"`
	Degrees     float64          `json:"degrees"`
	Name        string           `json:"name,omitempty"`
	CreatedAt   *float64         `json:"created_at,omitempty"`
	Duration    *float64         `json:"duration,omitempty"`
}

// Text is a text label anchored at a normalized content point.
type Text struct {
	ID       int              `json:"id"`
	Anchor   geometry.Point2D `json:"anchor"`
	Content  string           `json:"content"`
	FontSize float64          `json:"font_size"`
	Color    color.RGBA       `json:"color"`
	// Background, when set, is drawn as a filled box behind the text.
	Background *color.RGBA `json:"background,omitempty"`
	// BoxWidth is the normalized wrap-box width. Nil means a single
	// auto-width line.
	BoxWidth  *float64 `json:"box_width,omitempty"`
	CreatedAt *float64 `json:"created_at,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
}

// GridMode selects which grid axes are drawn.
type GridMode int

const (
	GridBoth GridMode = iota
	GridHorizontal
	GridVertical
)

// GridSettings describes the reference grid. Spacing and origin are surface
// pixels on purpose: the grid is a canvas overlay and does not track the
// media content box.
type GridSettings struct {
	Show    bool       `json:"show"`
	Mode    GridMode   `json:"mode"`
	Spacing float64    `json:"spacing"`
	Color   color.RGBA `json:"color"`
	Opacity float64    `json:"opacity"`
	OriginX float64    `json:"origin_x"`
	OriginY float64    `json:"origin_y"`
}

// DefaultGrid returns the initial grid settings.
func DefaultGrid() GridSettings {
	return GridSettings{
		Spacing: 50,
		Color:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Opacity: 0.4,
	}
}

// Selection references the single selected entity, if any.
type Selection struct {
	Kind Kind `json:"kind"`
	ID   int  `json:"id"`
}

// Snapshot is an immutable deep copy of the annotation state: the undo/redo
// unit and the persistence payload.
type Snapshot struct {
	Lines  []Line       `json:"lines"`
	Angles []Angle      `json:"angles"`
	Texts  []Text       `json:"texts"`
	Grid   GridSettings `json:"grid"`
	Hidden bool         `json:"hidden"`
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneColor(c *color.RGBA) *color.RGBA {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func cloneLine(l Line) Line {
	l.CreatedAt = cloneFloat(l.CreatedAt)
	l.Duration = cloneFloat(l.Duration)
	return l
}

func cloneAngle(a Angle) Angle {
	a.CreatedAt = cloneFloat(a.CreatedAt)
	a.Duration = cloneFloat(a.Duration)
	return a
}

func cloneText(t Text) Text {
	t.CreatedAt = cloneFloat(t.CreatedAt)
	t.Duration = cloneFloat(t.Duration)
	t.Background = cloneColor(t.Background)
	t.BoxWidth = cloneFloat(t.BoxWidth)
	return t
}

func cloneLines(ls []Line) []Line {
	out := make([]Line, len(ls))
	for i, l := range ls {
		out[i] = cloneLine(l)
	}
	return out
}

func cloneAngles(as []Angle) []Angle {
	out := make([]Angle, len(as))
	for i, a := range as {
		out[i] = cloneAngle(a)
	}
	return out
}

func cloneTexts(ts []Text) []Text {
	out := make([]Text, len(ts))
	for i, t := range ts {
		out[i] = cloneText(t)
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Lines:  cloneLines(s.Lines),
		Angles: cloneAngles(s.Angles),
		Texts:  cloneTexts(s.Texts),
		Grid:   s.Grid,
		Hidden: s.Hidden,
	}
}
