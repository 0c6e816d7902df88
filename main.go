// Package main provides the entry point for the Frame Marker application.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"frame-marker/internal/app"
	"frame-marker/internal/version"
	"frame-marker/ui/mainwindow"
	"frame-marker/ui/prefs"
)

const appTitle = "Frame Marker"

var (
	flagAnnotations string
	flagSplit       bool
	flagWatchMedia  bool
)

var rootCmd = &cobra.Command{
	Use:   "frame-marker [media]",
	Short: "Annotate captured frames with lines, angles and measurements",
	Long: `frame-marker opens a media frame and lets you draw geometric
annotations over it: lines, three-point angles, labeled text and a
reference grid. A calibrated reference line turns pixel distances into
real-world measurements. Annotation sets are saved as .fmk documents.`,
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	Run:     runApp,
}

func init() {
	rootCmd.Flags().StringVarP(&flagAnnotations, "annotations", "a", "", "annotation document (.fmk) to open")
	rootCmd.Flags().BoolVar(&flagSplit, "split", false, "start with split view enabled")
	rootCmd.Flags().BoolVar(&flagWatchMedia, "watch", false, "reload media when the file changes on disk")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runApp(cmd *cobra.Command, args []string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, version.Version)

	fyneApp := fyneapp.NewWithID("io.framemarker.app")
	fyneApp.Settings().SetTheme(&app.FrameMarkerTheme{})

	appPrefs := prefs.Load()
	state := app.NewState(appPrefs.Durations())

	win := mainwindow.New(fyneApp, state, appPrefs)

	if flagAnnotations != "" {
		if err := state.LoadDocument(flagAnnotations); err != nil {
			log.Printf("Failed to load annotations %s: %v", flagAnnotations, err)
		}
	}

	if len(args) > 0 {
		mediaPath := args[0]
		if err := state.LoadMedia(mediaPath); err != nil {
			log.Printf("Failed to load media %s: %v", mediaPath, err)
		} else if flagWatchMedia {
			setupMediaWatch(state, mediaPath)
		}
	}

	if flagSplit {
		win.ToggleSplit()
	}

	win.ShowAndRun()

	if err := appPrefs.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

// setupMediaWatch reloads the frame when an external exporter rewrites it.
func setupMediaWatch(state *app.State, path string) {
	watcher := app.NewMediaWatcher(path, 2*time.Second)
	if watcher == nil {
		log.Printf("Media watch: unable to stat %s", path)
		return
	}
	watcher.OnChanged(func(changed string) {
		log.Printf("Media watch: %s changed, reloading", changed)
		// LoadMedia mutates session state behind its own locks and the
		// listeners it fires only refresh canvas rasters, which is safe
		// off the main goroutine.
		if err := state.LoadMedia(changed); err != nil {
			log.Printf("Media watch: reload failed: %v", err)
		}
	})
	watcher.Start()
}
