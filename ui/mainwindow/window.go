// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"frame-marker/internal/annotation"
	"frame-marker/internal/app"
	"frame-marker/internal/calibrate"
	"frame-marker/internal/interaction"
	"frame-marker/internal/mapper"
	"frame-marker/internal/media"
	"frame-marker/internal/project"
	"frame-marker/internal/version"
	"frame-marker/pkg/geometry"
	"frame-marker/ui/canvas"
	"frame-marker/ui/dialogs"
	"frame-marker/ui/panels"
	"frame-marker/ui/prefs"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs

	primarySurface   *canvas.Surface
	secondarySurface *canvas.Surface
	active           *canvas.Surface

	toolPanel      *panels.ToolPanel
	statusBar      *widget.Label
	magnifier      *canvas.Magnifier
	magnifierPopup *widget.PopUp
	surfaceArea    *fyne.Container

	splitItem     *fyne.MenuItem
	magnifierItem *fyne.MenuItem
}

// New creates the main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Frame Marker")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupKeyboard()
	mw.setupEventHandlers()

	return mw
}

func (mw *MainWindow) setupUI() {
	mw.primarySurface = mw.buildSurface(mw.state.Primary)
	mw.active = mw.primarySurface

	mw.toolPanel = panels.NewToolPanel(mw.state.Primary.Store, mw.prefs)
	mw.statusBar = widget.NewLabel("Ready")
	mw.magnifier = canvas.NewMagnifier(mw.primarySurface)

	mw.surfaceArea = container.NewStack(mw.primarySurface)

	surfaceWithToolbar := container.NewBorder(
		mw.createToolbar(),
		nil, nil, nil,
		mw.surfaceArea,
	)

	split := container.NewHSplit(mw.toolPanel.Container(), surfaceWithToolbar)
	split.SetOffset(0.22)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil, nil,
		split,
	)

	mw.SetContent(content)
	mw.Resize(fyne.NewSize(1200, 800))
}

// buildSurface creates a surface for a session and wires the controller
// callbacks to window-level dialogs.
func (mw *MainWindow) buildSurface(session *app.Session) *canvas.Surface {
	surface := canvas.NewSurface(session)
	surface.OnActivate(func() {
		mw.active = surface
	})
	surface.OnViewChange(func(v mapper.ViewTransform) {
		mw.updateStatus(fmt.Sprintf("Zoom: %.0f%%", v.Scale*100))
	})
	surface.OnHover(func(pos fyne.Position) {
		// The magnifier samples the primary surface only.
		if surface == mw.primarySurface && mw.magnifier != nil {
			mw.magnifier.SetCenter(pos)
		}
	})

	session.Ctrl.SetCallbacks(interaction.Callbacks{
		OpenToolPanel: func(kind annotation.Kind) {
			mw.updateStatus("Editing " + kind.String())
		},
		CloseToolPanel: func() {
			mw.updateStatus("Ready")
		},
		BeginTextEdit: func(anchor geometry.Point2D) {
			dialogs.ShowTextEntry(mw.Window,
				func(content string) {
					session.Ctrl.CommitText(content)
					surface.Refresh()
				},
				func() {
					session.Ctrl.CancelTextEdit()
					surface.Refresh()
				})
		},
		BeginReferenceCapture: func(pending calibrate.PendingReference) {
			cd := dialogs.NewCalibrationDialog(session.Calib, mw.Window, func(committed bool) {
				if committed {
					mw.updateStatus("Reference length set")
					if ref, ok := session.Store.ReferenceLine(); ok {
						mw.prefs.SetString(prefs.KeyCalibrationUnit, ref.RefUnit)
					}
				} else {
					mw.updateStatus("Calibration cancelled")
				}
				surface.Refresh()
			})
			suggestion, unit := mw.suggestCalibration(session, pending)
			cd.Show(suggestion, unit)
		},
	})
	return surface
}

func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	toolButton := func(label string, tool annotation.Tool) *widget.Button {
		return widget.NewButton(label, func() {
			mw.active.Session().Ctrl.SetTool(tool)
			mw.updateStatus("Tool: " + tool.String())
		})
	}

	zoomOut := widget.NewButton("-", func() { mw.active.ZoomOut() })
	zoomIn := widget.NewButton("+", func() { mw.active.ZoomIn() })
	reset := widget.NewButton("1:1", func() { mw.active.ResetView() })

	return container.NewHBox(
		toolButton("Select", annotation.ToolNone),
		toolButton("Line", annotation.ToolLine),
		toolButton("Angle", annotation.ToolAngle),
		toolButton("Text", annotation.ToolText),
		toolButton("Measure", annotation.ToolMeasure),
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"),
		zoomOut, zoomIn, reset,
	)
}

func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Media...", mw.onOpenMedia),
		fyne.NewMenuItem("Open Annotations...", mw.onOpenAnnotations),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Annotations", mw.onSave),
		fyne.NewMenuItem("Save Annotations As...", mw.onSaveAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mw.onUndo),
		fyne.NewMenuItem("Redo", mw.onRedo),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Delete Selected", mw.onDeleteSelected),
		fyne.NewMenuItem("Clear All Annotations", mw.onClearAll),
	)

	mw.splitItem = fyne.NewMenuItem("  Split View", mw.onToggleSplit)
	mw.magnifierItem = fyne.NewMenuItem("  Magnifier", mw.onToggleMagnifier)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.active.ZoomIn() }),
		fyne.NewMenuItem("Zoom Out", func() { mw.active.ZoomOut() }),
		fyne.NewMenuItem("Reset View", func() { mw.active.ResetView() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Toggle Grid", mw.onToggleGrid),
		fyne.NewMenuItem("Toggle Annotations", mw.onToggleHidden),
		fyne.NewMenuItemSeparator(),
		mw.splitItem,
		mw.magnifierItem,
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, helpMenu))
}

func (mw *MainWindow) setupKeyboard() {
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		ctrl := mw.active.Session().Ctrl
		switch ev.Name {
		case fyne.KeyEscape:
			ctrl.Escape()
			mw.active.Refresh()
		case fyne.KeyDelete, fyne.KeyBackspace:
			// A focused text entry consumes the key before it lands
			// here, so this only fires with no edit in progress.
			ctrl.DeleteSelected()
		case fyne.KeyL:
			ctrl.SetTool(annotation.ToolLine)
		case fyne.KeyA:
			ctrl.SetTool(annotation.ToolAngle)
		case fyne.KeyT:
			ctrl.SetTool(annotation.ToolText)
		case fyne.KeyM:
			ctrl.SetTool(annotation.ToolMeasure)
		}
	})

	ctrlZ := &desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}
	mw.Canvas().AddShortcut(ctrlZ, func(fyne.Shortcut) { mw.onUndo() })

	ctrlY := &desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}
	mw.Canvas().AddShortcut(ctrlY, func(fyne.Shortcut) { mw.onRedo() })

	ctrlS := &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	mw.Canvas().AddShortcut(ctrlS, func(fyne.Shortcut) { mw.onSave() })
}

func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventMediaLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.updateStatus("Media loaded: " + filepath.Base(path))
		}
		mw.primarySurface.Refresh()
	})

	mw.state.On(app.EventDocumentLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle("Frame Marker - " + filepath.Base(path))
			mw.updateStatus("Annotations loaded: " + path)
		}
		mw.primarySurface.Refresh()
	})

	mw.state.On(app.EventDocumentSaved, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle("Frame Marker - " + filepath.Base(path))
			mw.updateStatus("Saved: " + path)
		}
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			title := mw.Title()
			if len(title) > 0 && title[len(title)-1] != '*' {
				mw.SetTitle(title + " *")
			}
		}
	})
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDirectory)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDirectory, filepath.Dir(filePath))
}

// Menu action handlers

func (mw *MainWindow) onOpenMedia() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if mw.active == mw.primarySurface {
			if err := mw.state.LoadMedia(path); err != nil {
				dialog.ShowError(err, mw.Window)
			}
			return
		}
		if err := mw.active.Session().LoadMedia(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.active.Refresh()
		mw.updateStatus("Media loaded: " + filepath.Base(path))
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(media.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenAnnotations() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.LoadDocument(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{project.Extension}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSave() {
	if mw.state.DocumentPath == "" {
		mw.onSaveAs()
		return
	}
	if err := mw.state.SaveDocument(mw.state.DocumentPath); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != project.Extension {
			path += project.Extension
		}
		mw.saveLastDir(path)
		if err := mw.state.SaveDocument(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("session" + project.Extension)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onUndo() {
	if mw.active.Session().Store.Undo() {
		mw.active.Refresh()
		mw.updateStatus("Undo")
	}
}

func (mw *MainWindow) onRedo() {
	if mw.active.Session().Store.Redo() {
		mw.active.Refresh()
		mw.updateStatus("Redo")
	}
}

func (mw *MainWindow) onDeleteSelected() {
	mw.active.Session().Ctrl.DeleteSelected()
}

func (mw *MainWindow) onClearAll() {
	dialog.ShowConfirm("Clear All", "Remove all annotations? This can be undone.",
		func(ok bool) {
			if ok {
				mw.active.Session().Store.ClearAll(true, true)
			}
		}, mw.Window)
}

func (mw *MainWindow) onToggleGrid() {
	store := mw.active.Session().Store
	g := store.Grid()
	g.Show = !g.Show
	store.UpdateGrid(g)
}

func (mw *MainWindow) onToggleHidden() {
	store := mw.active.Session().Store
	store.SetHidden(!store.Hidden())
}

// ToggleSplit switches the split view on or off.
func (mw *MainWindow) ToggleSplit() {
	mw.onToggleSplit()
}

func (mw *MainWindow) onToggleSplit() {
	enable := !mw.state.SplitActive()
	mw.state.SetSplit(enable)

	if enable {
		mw.secondarySurface = mw.buildSurface(mw.state.Secondary)
		split := container.NewHSplit(mw.primarySurface, mw.secondarySurface)
		split.SetOffset(0.5)
		mw.surfaceArea.Objects = []fyne.CanvasObject{split}
		mw.splitItem.Label = "✓ Split View"
	} else {
		mw.secondarySurface = nil
		mw.active = mw.primarySurface
		mw.surfaceArea.Objects = []fyne.CanvasObject{mw.primarySurface}
		mw.splitItem.Label = "  Split View"
	}
	mw.surfaceArea.Refresh()
}

func (mw *MainWindow) onToggleMagnifier() {
	enabled := !mw.prefs.Bool(prefs.KeyMagnifier, false)
	mw.prefs.SetBool(prefs.KeyMagnifier, enabled)

	if enabled {
		mw.magnifier.Start()
		if mw.magnifierPopup == nil {
			mw.magnifierPopup = widget.NewPopUp(mw.magnifier, mw.Canvas())
		}
		size := mw.Canvas().Size()
		mw.magnifierPopup.ShowAtPosition(fyne.NewPos(size.Width-140, 20))
		mw.magnifierItem.Label = "✓ Magnifier"
	} else {
		mw.magnifier.Stop()
		if mw.magnifierPopup != nil {
			mw.magnifierPopup.Hide()
		}
		mw.magnifierItem.Label = "  Magnifier"
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Frame Marker",
		fmt.Sprintf("Frame Marker v%s\n\n"+
			"Geometric annotation over captured frames:\n"+
			"lines, angles, text and calibrated measurements.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// suggestCalibration derives a length suggestion from media DPI metadata
// for a freshly captured reference line. Without DPI it falls back to the
// last unit the user calibrated with.
func (mw *MainWindow) suggestCalibration(session *app.Session, pending calibrate.PendingReference) (float64, string) {
	lastUnit := mw.prefs.String(prefs.KeyCalibrationUnit)

	frame := session.Media()
	if frame == nil || frame.DPI == 0 {
		return 0, lastUnit
	}
	l, ok := session.Store.FindLine(pending.LineID)
	if !ok {
		return 0, lastUnit
	}
	inches, ok := session.Calib.SuggestFromDPI(l, float64(frame.Width()), float64(frame.Height()), frame.DPI)
	if !ok {
		return 0, lastUnit
	}
	return inches, "in"
}
