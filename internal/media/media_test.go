package media

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestLoadFrame(t *testing.T) {
	path := writeTestPNG(t, 320, 180)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Width() != 320 || f.Height() != 180 {
		t.Errorf("size = %dx%d, want 320x180", f.Width(), f.Height())
	}
	if got, want := f.AspectRatio(), 320.0/180.0; got != want {
		t.Errorf("AspectRatio = %v, want %v", got, want)
	}
	if f.DPI != 0 {
		t.Errorf("PNG has no DPI metadata, got %v", f.DPI)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPixelAtOutOfBounds(t *testing.T) {
	path := writeTestPNG(t, 4, 4)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.PixelAt(-1, 0); got != color.Black {
		t.Errorf("out-of-bounds pixel = %v, want black", got)
	}
	if got := f.PixelAt(10, 10); got != color.Black {
		t.Errorf("out-of-bounds pixel = %v, want black", got)
	}
}

func TestEmptyFrame(t *testing.T) {
	var f Frame
	if f.AspectRatio() != 0 {
		t.Error("empty frame aspect ratio should be 0")
	}
	if f.Width() != 0 || f.Height() != 0 {
		t.Error("empty frame size should be 0x0")
	}
}

func TestIsSupportedFormat(t *testing.T) {
	cases := map[string]bool{
		"frame.png":  true,
		"Frame.TIFF": true,
		"scan.jpg":   true,
		"notes.txt":  false,
		"clip.mp4":   false,
	}
	for path, want := range cases {
		if got := IsSupportedFormat(path); got != want {
			t.Errorf("IsSupportedFormat(%q) = %v, want %v", path, got, want)
		}
	}
}
