// Command annodump prints a summary of an annotation document.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"frame-marker/internal/annotation"
	"frame-marker/internal/project"
	"frame-marker/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "annodump [file]",
	Short: "Inspect a frame-marker annotation document",
	Long: `annodump reads a .fmk annotation document and prints its contents:
media reference, annotation counts, calibration state and per-item details.
Useful for reviewing a document without opening the application.`,
	Version: version.Version,
	Args:    cobra.ExactArgs(1),
	Run:     runDump,
}

var flagVerbose bool

func init() {
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "list every annotation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDump(cmd *cobra.Command, args []string) {
	path := args[0]

	doc, err := project.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading document: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Annotation Document")
	fmt.Println("===================")
	fmt.Printf("File: %s\n", path)
	fmt.Printf("Format version: %d\n", doc.Version)
	if doc.MediaPath != "" {
		fmt.Printf("Media: %s\n", doc.MediaPath)
		fmt.Printf("Media (resolved): %s\n", doc.ResolveMediaPath(path))
	} else {
		fmt.Println("Media: none")
	}
	fmt.Println()

	fmt.Println("Contents:")
	fmt.Printf("  Lines: %d\n", len(doc.Lines))
	fmt.Printf("  Angles: %d\n", len(doc.Angles))
	fmt.Printf("  Texts: %d\n", len(doc.Texts))
	fmt.Printf("  Annotations hidden: %v\n", doc.Hidden)
	fmt.Printf("  Grid: %s\n", gridSummary(doc.Grid))
	fmt.Println()

	printCalibration(doc)

	if flagVerbose {
		printDetails(doc)
	}
}

func gridSummary(g annotation.GridSettings) string {
	if !g.Show {
		return "off"
	}
	mode := "both axes"
	switch g.Mode {
	case annotation.GridHorizontal:
		mode = "horizontal"
	case annotation.GridVertical:
		mode = "vertical"
	}
	return fmt.Sprintf("%s, spacing %.0fpx, opacity %.2f", mode, g.Spacing, g.Opacity)
}

func printCalibration(doc project.File) {
	for _, l := range doc.Lines {
		if l.IsReference() {
			fmt.Println("Calibration:")
			fmt.Printf("  Reference line #%d: %g %s\n", l.ID, l.RefLength, l.RefUnit)
			measured := 0
			for _, m := range doc.Lines {
				if m.IsMeasurement {
					measured++
				}
			}
			fmt.Printf("  Measurement lines: %d\n", measured)
			fmt.Println()
			return
		}
	}
	fmt.Println("Calibration: none")
	fmt.Println()
}

func printDetails(doc project.File) {
	for _, l := range doc.Lines {
		fmt.Printf("line #%d (%.3f,%.3f)-(%.3f,%.3f)%s%s\n",
			l.ID, l.Start.X, l.Start.Y, l.End.X, l.End.Y,
			nameSuffix(l.Name), durationSuffix(l.Duration))
	}
	for _, a := range doc.Angles {
		fmt.Printf("angle #%d %.1f° vertex (%.3f,%.3f)%s%s\n",
			a.ID, a.Degrees, a.Vertex.X, a.Vertex.Y,
			nameSuffix(a.Name), durationSuffix(a.Duration))
	}
	for _, t := range doc.Texts {
		fmt.Printf("text #%d (%.3f,%.3f) %q%s\n",
			t.ID, t.Anchor.X, t.Anchor.Y, t.Content, durationSuffix(t.Duration))
	}
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" %q", name)
}

func durationSuffix(d *float64) string {
	switch {
	case d == nil:
		return ""
	case *d == annotation.DurationPersistent:
		return " [persistent]"
	default:
		return fmt.Sprintf(" [%.1fs]", *d)
	}
}
