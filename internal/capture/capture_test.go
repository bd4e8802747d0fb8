package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/v0xg/pickmode/internal/dom"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	blue  = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 255}
)

func TestRect(t *testing.T) {
	got := Rect(dom.NewRect(10.5, 20, 100, 40), 2)
	if want := image.Rect(8, 18, 113, 62); got != want {
		t.Errorf("Rect = %v, want %v", got, want)
	}
}

func TestAnnotate(t *testing.T) {
	shot := solid(200, 100, white)
	st := Style{Color: blue, Opacity: 0, BorderWidth: 2}

	if frames := Annotate(shot, nil, st); len(frames) != 1 || frames[0] != image.Image(shot) {
		t.Error("no rects should yield the screenshot itself")
	}

	frames := Annotate(shot, []dom.Rect{dom.NewRect(10, 10, 50, 30), dom.NewRect(100, 40, 20, 20)}, st)
	if len(frames) != 2 {
		t.Fatalf("frames = %d", len(frames))
	}
	if got := color.RGBAModel.Convert(frames[0].At(8, 8)); got != blue {
		t.Errorf("border pixel = %v", got)
	}
	if got := color.RGBAModel.Convert(frames[0].At(30, 25)); got != white {
		t.Errorf("interior pixel = %v", got)
	}
	if got := color.RGBAModel.Convert(frames[1].At(8, 8)); got != white {
		t.Error("second frame carries the first highlight")
	}
	if got := color.RGBAModel.Convert(shot.At(8, 8)); got != white {
		t.Error("screenshot modified in place")
	}
}

func TestCombine(t *testing.T) {
	shot := solid(200, 100, white)
	st := Style{Color: blue, BorderWidth: 1}
	out := Combine(shot, []dom.Rect{dom.NewRect(10, 10, 50, 30), dom.NewRect(100, 40, 20, 20)}, st)
	for _, p := range []image.Point{{9, 9}, {99, 39}} {
		if got := color.RGBAModel.Convert(out.At(p.X, p.Y)); got != blue {
			t.Errorf("border pixel %v = %v", p, got)
		}
	}
	if Combine(shot, nil, st) != image.Image(shot) {
		t.Error("no rects should yield the screenshot itself")
	}
}

func TestIsPNG(t *testing.T) {
	for path, want := range map[string]bool{"a.png": true, "A.PNG": true, "a.gif": false, "png": false} {
		if got := IsPNG(path); got != want {
			t.Errorf("IsPNG(%q) = %v", path, got)
		}
	}
}

func TestWriteGIF(t *testing.T) {
	frames := []image.Image{solid(400, 200, white), solid(400, 200, blue), solid(400, 200, white)}
	var buf bytes.Buffer
	if err := WriteGIF(&buf, frames, Options{FPS: 2, MaxWidth: 100}); err != nil {
		t.Fatal(err)
	}
	g, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Image) != 3 {
		t.Fatalf("frames = %d", len(g.Image))
	}
	if g.Delay[0] != 50 {
		t.Errorf("delay = %d", g.Delay[0])
	}
	if b := g.Image[0].Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("scaled to %v", b)
	}

	if err := WriteGIF(&buf, nil, Options{}); err == nil {
		t.Error("empty frame list accepted")
	}
}

func TestWriteFilePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	n, err := WriteFile(path, []image.Image{solid(40, 20, blue)}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Error("empty file")
	}

	var buf bytes.Buffer
	if err := WritePNG(&buf, []image.Image{solid(40, 20, blue)}, Options{MaxWidth: 80}); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 {
		t.Errorf("upscaled to %v", b)
	}
}

func TestGeneratePalette(t *testing.T) {
	p := generatePalette(solid(16, 16, blue))
	if len(p) != 256 {
		t.Fatalf("len = %d", len(p))
	}
	if p[0] != (color.RGBA{}) {
		t.Errorf("index 0 = %v", p[0])
	}
	if p[1] != blue {
		t.Errorf("most frequent = %v", p[1])
	}
}
