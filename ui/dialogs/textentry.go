package dialogs

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ShowTextEntry opens the inline annotation text editor. commit receives
// the entered content; cancel is called when the edit is abandoned.
// An empty commit is forwarded as-is - the caller decides whether to
// discard it.
func ShowTextEntry(window fyne.Window, commit func(content string), cancel func()) {
	entry := widget.NewMultiLineEntry()
	entry.SetPlaceHolder("Annotation text")
	entry.Wrapping = fyne.TextWrapWord

	dlg := dialog.NewCustomConfirm(
		"Add Text",
		"Place",
		"Cancel",
		entry,
		func(place bool) {
			if place {
				commit(entry.Text)
			} else if cancel != nil {
				cancel()
			}
		},
		window,
	)
	dlg.Resize(fyne.NewSize(320, 200))
	dlg.Show()
	window.Canvas().Focus(entry)
}
