package annotation

// Durations holds the per-type default display durations in seconds.
// DurationPersistent means the type stays visible forever once created.
// The asymmetric defaults (lines persistent, angles and texts transient)
// come from how the tool is used: lines mark structure, angles and texts
// comment on an instant.
type Durations struct {
	Line  float64 `json:"line"`
	Angle float64 `json:"angle"`
	Text  float64 `json:"text"`
}

// DefaultDurations returns the stock per-type display durations.
func DefaultDurations() Durations {
	return Durations{
		Line:  DurationPersistent,
		Angle: 2,
		Text:  5,
	}
}

// VisibilityFilter decides which annotations are rendered at a given
// playback time, from each item's creation time and display duration.
type VisibilityFilter struct {
	Defaults Durations
}

// NewVisibilityFilter creates a filter with the given per-type defaults.
func NewVisibilityFilter(d Durations) VisibilityFilter {
	return VisibilityFilter{Defaults: d}
}

// visibleAt implements the shared window rule. Items without a creation
// time predate time scoping and are always visible.
func visibleAt(createdAt, override *float64, typeDefault, now float64) bool {
	if createdAt == nil {
		return true
	}
	dur := typeDefault
	if override != nil {
		dur = *override
	}
	if dur == DurationPersistent {
		return now >= *createdAt
	}
	return now >= *createdAt && now <= *createdAt+dur
}

// Line reports whether the line is visible at playback time now.
func (f VisibilityFilter) Line(l Line, now float64) bool {
	return visibleAt(l.CreatedAt, l.Duration, f.Defaults.Line, now)
}

// Angle reports whether the angle is visible at playback time now.
func (f VisibilityFilter) Angle(a Angle, now float64) bool {
	return visibleAt(a.CreatedAt, a.Duration, f.Defaults.Angle, now)
}

// Text reports whether the text is visible at playback time now.
func (f VisibilityFilter) Text(t Text, now float64) bool {
	return visibleAt(t.CreatedAt, t.Duration, f.Defaults.Text, now)
}
