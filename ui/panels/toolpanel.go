// Package panels provides the tool settings side panel.
package panels

import (
	"fmt"
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"frame-marker/internal/annotation"
	"frame-marker/pkg/colorutil"
	"frame-marker/ui/prefs"
)

// colorNames maps picker entries to draw colors.
var colorNames = []string{"White", "Red", "Green", "Blue", "Yellow", "Cyan", "Magenta", "Black"}

func namedColor(name string) color.RGBA {
	switch name {
	case "Red":
		return colorutil.Red
	case "Green":
		return colorutil.Green
	case "Blue":
		return colorutil.Blue
	case "Yellow":
		return colorutil.Yellow
	case "Cyan":
		return colorutil.Cyan
	case "Magenta":
		return colorutil.Magenta
	case "Black":
		return colorutil.Black
	default:
		return colorutil.White
	}
}

// ToolPanel edits draw settings, per-type display durations, grid
// settings and the selected annotation's properties.
type ToolPanel struct {
	store *annotation.Store
	prefs *prefs.Prefs

	content *fyne.Container

	// Selected-entity editors, rebuilt on selection change.
	selectionBox *fyne.Container
}

// NewToolPanel builds the panel bound to a store.
func NewToolPanel(store *annotation.Store, p *prefs.Prefs) *ToolPanel {
	tp := &ToolPanel{store: store, prefs: p}
	tp.build()

	store.On(annotation.EventSelectionChanged, func(interface{}) {
		tp.rebuildSelection()
	})
	store.On(annotation.EventAnnotationsChanged, func(interface{}) {
		tp.rebuildSelection()
	})
	return tp
}

// Container returns the panel for embedding in the window layout.
func (tp *ToolPanel) Container() fyne.CanvasObject {
	return container.NewVScroll(tp.content)
}

func (tp *ToolPanel) build() {
	colorSelect := widget.NewSelect(colorNames, func(name string) {
		tp.store.SetColor(namedColor(name))
		tp.prefs.SetString(prefs.KeyDrawColor, name)
	})
	colorSelect.SetSelected(firstNonEmpty(tp.prefs.String(prefs.KeyDrawColor), "White"))

	strokeSlider := widget.NewSlider(1, 10)
	strokeSlider.Step = 1
	strokeSlider.Value = tp.prefs.FloatWithFallback(prefs.KeyStrokeWidth, tp.store.StrokeWidth())
	tp.store.SetStrokeWidth(strokeSlider.Value)
	strokeSlider.OnChanged = func(v float64) {
		tp.store.SetStrokeWidth(v)
		tp.prefs.SetFloat(prefs.KeyStrokeWidth, v)
	}

	textSizeSlider := widget.NewSlider(8, 48)
	textSizeSlider.Step = 2
	textSizeSlider.Value = tp.prefs.FloatWithFallback(prefs.KeyTextSize, tp.store.TextSize())
	tp.store.SetTextSize(textSizeSlider.Value)
	textSizeSlider.OnChanged = func(v float64) {
		tp.store.SetTextSize(v)
		tp.prefs.SetFloat(prefs.KeyTextSize, v)
	}

	drawCard := widget.NewCard("Drawing", "", widget.NewForm(
		widget.NewFormItem("Color", colorSelect),
		widget.NewFormItem("Stroke", strokeSlider),
		widget.NewFormItem("Text size", textSizeSlider),
	))

	durationsCard := widget.NewCard("Display Durations", "seconds, -1 = persistent",
		widget.NewForm(
			widget.NewFormItem("Lines", tp.durationEntry(prefs.KeyLineDuration, func(d *annotation.Durations, v float64) { d.Line = v })),
			widget.NewFormItem("Angles", tp.durationEntry(prefs.KeyAngleDuration, func(d *annotation.Durations, v float64) { d.Angle = v })),
			widget.NewFormItem("Texts", tp.durationEntry(prefs.KeyTextDuration, func(d *annotation.Durations, v float64) { d.Text = v })),
		))

	gridCard := widget.NewCard("Grid", "", tp.buildGridForm())

	tp.selectionBox = container.NewVBox()
	tp.rebuildSelection()

	tp.content = container.NewVBox(drawCard, durationsCard, gridCard,
		widget.NewCard("Selection", "", tp.selectionBox))
}

// durationEntry builds an entry bound to one per-type duration default.
func (tp *ToolPanel) durationEntry(key string, set func(*annotation.Durations, float64)) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(formatDuration(durationFor(key, tp.store.Durations())))
	e.OnSubmitted = func(s string) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			e.SetText(formatDuration(durationFor(key, tp.store.Durations())))
			return
		}
		ds := tp.store.Durations()
		set(&ds, v)
		tp.store.SetDurations(ds)
		tp.prefs.SetFloat(key, v)
	}
	return e
}

func durationFor(key string, d annotation.Durations) float64 {
	switch key {
	case prefs.KeyAngleDuration:
		return d.Angle
	case prefs.KeyTextDuration:
		return d.Text
	default:
		return d.Line
	}
}

func formatDuration(v float64) string {
	if v == annotation.DurationPersistent {
		return "-1"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (tp *ToolPanel) buildGridForm() fyne.CanvasObject {
	grid := tp.store.Grid()
	if sp := tp.prefs.FloatWithFallback(prefs.KeyGridSpacing, grid.Spacing); sp > 0 && sp != grid.Spacing {
		grid.Spacing = sp
		tp.store.UpdateGrid(grid)
	}

	show := widget.NewCheck("Show", func(on bool) {
		g := tp.store.Grid()
		g.Show = on
		tp.store.UpdateGrid(g)
	})
	show.Checked = grid.Show

	mode := widget.NewSelect([]string{"Both", "Horizontal", "Vertical"}, func(name string) {
		g := tp.store.Grid()
		switch name {
		case "Horizontal":
			g.Mode = annotation.GridHorizontal
		case "Vertical":
			g.Mode = annotation.GridVertical
		default:
			g.Mode = annotation.GridBoth
		}
		tp.store.UpdateGrid(g)
	})
	mode.SetSelected("Both")

	spacing := widget.NewEntry()
	spacing.SetText(fmt.Sprintf("%.0f", grid.Spacing))
	spacing.OnSubmitted = func(s string) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			spacing.SetText(fmt.Sprintf("%.0f", tp.store.Grid().Spacing))
			return
		}
		g := tp.store.Grid()
		g.Spacing = v
		tp.store.UpdateGrid(g)
		tp.prefs.SetFloat(prefs.KeyGridSpacing, v)
	}

	opacity := widget.NewSlider(0, 1)
	opacity.Step = 0.05
	opacity.Value = grid.Opacity
	opacity.OnChanged = func(v float64) {
		g := tp.store.Grid()
		g.Opacity = v
		tp.store.UpdateGrid(g)
	}

	return widget.NewForm(
		widget.NewFormItem("", show),
		widget.NewFormItem("Mode", mode),
		widget.NewFormItem("Spacing", spacing),
		widget.NewFormItem("Opacity", opacity),
	)
}

// rebuildSelection repopulates the selection section for the currently
// selected annotation.
func (tp *ToolPanel) rebuildSelection() {
	tp.selectionBox.Objects = nil

	sel := tp.store.Selection()
	if sel == nil {
		tp.selectionBox.Add(widget.NewLabel("Nothing selected"))
		tp.selectionBox.Refresh()
		return
	}

	switch sel.Kind {
	case annotation.KindLine:
		if l, ok := tp.store.FindLine(sel.ID); ok {
			tp.buildLineEditors(l)
		}
	case annotation.KindAngle:
		if a, ok := tp.store.FindAngle(sel.ID); ok {
			tp.buildAngleEditors(a)
		}
	case annotation.KindText:
		if t, ok := tp.store.FindText(sel.ID); ok {
			tp.buildTextEditors(t)
		}
	}
	tp.selectionBox.Refresh()
}

func (tp *ToolPanel) buildLineEditors(l annotation.Line) {
	name := widget.NewEntry()
	name.SetText(l.Name)
	name.OnSubmitted = func(s string) {
		tp.store.UpdateLine(l.ID, annotation.LineUpdate{Name: &s})
	}

	showAngle := widget.NewCheck("Show angle to horizontal", func(on bool) {
		tp.store.UpdateLine(l.ID, annotation.LineUpdate{ShowAngle: &on})
	})
	showAngle.Checked = l.ShowAngle

	dur := tp.overrideEntry(l.Duration, func(v *float64) {
		tp.store.UpdateLine(l.ID, annotation.LineUpdate{Duration: &v})
	})

	tp.selectionBox.Add(widget.NewForm(
		widget.NewFormItem("Name", name),
		widget.NewFormItem("", showAngle),
		widget.NewFormItem("Duration", dur),
	))
}

func (tp *ToolPanel) buildAngleEditors(a annotation.Angle) {
	name := widget.NewEntry()
	name.SetText(a.Name)
	name.OnSubmitted = func(s string) {
		tp.store.UpdateAngle(a.ID, annotation.AngleUpdate{Name: &s})
	}

	dur := tp.overrideEntry(a.Duration, func(v *float64) {
		tp.store.UpdateAngle(a.ID, annotation.AngleUpdate{Duration: &v})
	})

	tp.selectionBox.Add(widget.NewLabel(fmt.Sprintf("Angle: %.1f°", a.Degrees)))
	tp.selectionBox.Add(widget.NewForm(
		widget.NewFormItem("Name", name),
		widget.NewFormItem("Duration", dur),
	))
}

func (tp *ToolPanel) buildTextEditors(t annotation.Text) {
	content := widget.NewEntry()
	content.SetText(t.Content)
	content.OnSubmitted = func(s string) {
		if s == "" {
			return
		}
		tp.store.UpdateText(t.ID, annotation.TextUpdate{Content: &s})
	}

	dur := tp.overrideEntry(t.Duration, func(v *float64) {
		tp.store.UpdateText(t.ID, annotation.TextUpdate{Duration: &v})
	})

	tp.selectionBox.Add(widget.NewForm(
		widget.NewFormItem("Text", content),
		widget.NewFormItem("Duration", dur),
	))
}

// overrideEntry edits a per-entity duration override: empty = type
// default, -1 = persistent, otherwise seconds.
func (tp *ToolPanel) overrideEntry(current *float64, apply func(*float64)) *widget.Entry {
	e := widget.NewEntry()
	e.SetPlaceHolder("default")
	if current != nil {
		e.SetText(formatDuration(*current))
	}
	e.OnSubmitted = func(s string) {
		if s == "" {
			apply(nil)
			return
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return
		}
		apply(&v)
	}
	return e
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
