// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"frame-marker/internal/calibrate"
)

// CalibrationDialog captures the real-world length of a freshly drawn
// reference line. Bad input keeps the capture open for another attempt.
type CalibrationDialog struct {
	engine *calibrate.Engine
	window fyne.Window

	valueEntry *widget.Entry
	unitEntry  *widget.Entry
	errorLabel *widget.Label

	onDone func(committed bool)
}

// NewCalibrationDialog creates a calibration dialog for the engine's
// pending reference.
func NewCalibrationDialog(engine *calibrate.Engine, window fyne.Window, onDone func(committed bool)) *CalibrationDialog {
	return &CalibrationDialog{
		engine: engine,
		window: window,
		onDone: onDone,
	}
}

// Show displays the dialog. suggestion, when non-zero, pre-fills the
// value field (e.g. from TIFF DPI metadata).
func (d *CalibrationDialog) Show(suggestion float64, suggestedUnit string) {
	d.valueEntry = widget.NewEntry()
	d.valueEntry.SetPlaceHolder("e.g. 1000")
	if suggestion > 0 {
		d.valueEntry.SetText(fmt.Sprintf("%.2f", suggestion))
	}

	d.unitEntry = widget.NewEntry()
	d.unitEntry.SetPlaceHolder("e.g. mm")
	if suggestedUnit != "" {
		d.unitEntry.SetText(suggestedUnit)
	}

	d.errorLabel = widget.NewLabel("")
	d.errorLabel.Hide()

	form := widget.NewForm(
		widget.NewFormItem("Length", d.valueEntry),
		widget.NewFormItem("Unit", d.unitEntry),
		widget.NewFormItem("", d.errorLabel),
	)

	dlg := dialog.NewCustomConfirm(
		"Set Reference Length",
		"Apply",
		"Cancel",
		form,
		func(apply bool) {
			if !apply {
				d.engine.Cancel()
				if d.onDone != nil {
					d.onDone(false)
				}
				return
			}
			if err := d.engine.Commit(d.valueEntry.Text, d.unitEntry.Text); err != nil {
				// Re-show with the error so the user can correct the
				// input; the capture stays open.
				d.errorLabel.SetText(err.Error())
				d.errorLabel.Show()
				d.Show(0, d.unitEntry.Text)
				return
			}
			if d.onDone != nil {
				d.onDone(true)
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(360, 220))
	dlg.Show()
}
