// Package capture renders highlighted selections onto screenshots and
// encodes them as an animated GIF or a PNG.
package capture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nfnt/resize"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/overlay"
)

// Style is how highlights are painted.
type Style struct {
	Color       color.RGBA
	Opacity     float64
	BorderWidth float64
}

// Options configures encoding.
type Options struct {
	// FPS sets the GIF frame rate. Default: 1.
	FPS int
	// MaxWidth scales wider frames down, keeping the aspect ratio.
	// Zero keeps the original size.
	MaxWidth uint
}

// Rect converts a viewport rect to the pixel box the overlay covers,
// border included.
func Rect(r dom.Rect, borderWidth float64) image.Rectangle {
	g := overlay.Box(r, dom.Point{}, borderWidth)
	return image.Rect(
		int(math.Floor(g.Left)),
		int(math.Floor(g.Top)),
		int(math.Ceil(g.Left+g.Width)),
		int(math.Ceil(g.Top+g.Height)),
	)
}

// Annotate returns one frame per rect, each showing shot with that rect
// highlighted. With no rects it returns shot alone.
func Annotate(shot image.Image, rects []dom.Rect, st Style) []image.Image {
	if len(rects) == 0 {
		return []image.Image{shot}
	}
	frames := make([]image.Image, 0, len(rects))
	for _, r := range rects {
		box := Rect(r, st.BorderWidth)
		frames = append(frames, overlay.DrawHighlight(shot, box, st.Color, st.Opacity, int(math.Round(st.BorderWidth))))
	}
	return frames
}

// Combine returns shot with every rect highlighted on one frame.
func Combine(shot image.Image, rects []dom.Rect, st Style) image.Image {
	out := shot
	for _, r := range rects {
		box := Rect(r, st.BorderWidth)
		out = overlay.DrawHighlight(out, box, st.Color, st.Opacity, int(math.Round(st.BorderWidth)))
	}
	return out
}

// IsPNG reports whether path names a PNG output.
func IsPNG(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}

// WriteGIF encodes frames as a looping GIF.
func WriteGIF(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return fmt.Errorf("capture: no frames")
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 1
	}
	// Delay is in 100ths of a second.
	delay := 100 / fps

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	palette := generatePalette(frames[0])
	for i, frame := range frames {
		scaled := scale(frame, opts.MaxWidth)
		paletted := image.NewPaletted(scaled.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, scaled.Bounds(), scaled, scaled.Bounds().Min)
		g.Image[i] = paletted
		g.Delay[i] = delay
	}
	if err := gif.EncodeAll(w, g); err != nil {
		return fmt.Errorf("capture: encode gif: %w", err)
	}
	return nil
}

// WritePNG encodes the first frame as a PNG.
func WritePNG(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return fmt.Errorf("capture: no frames")
	}
	if err := png.Encode(w, scale(frames[0], opts.MaxWidth)); err != nil {
		return fmt.Errorf("capture: encode png: %w", err)
	}
	return nil
}

// WriteFile picks the encoder from the extension of path (.png, else GIF)
// and returns the written size.
func WriteFile(path string, frames []image.Image, opts Options) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("capture: %w", err)
	}
	defer f.Close()

	if IsPNG(path) {
		err = WritePNG(f, frames, opts)
	} else {
		err = WriteGIF(f, frames, opts)
	}
	if err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("capture: %w", err)
	}
	return info.Size(), nil
}

func scale(img image.Image, maxWidth uint) image.Image {
	b := img.Bounds()
	if maxWidth == 0 || uint(b.Dx()) <= maxWidth {
		return img
	}
	aspectRatio := float64(b.Dy()) / float64(b.Dx())
	return resize.Resize(maxWidth, uint(float64(maxWidth)*aspectRatio), img, resize.Lanczos3)
}

// generatePalette builds a 256-color palette from the most frequent
// colors of img, sampled every 4th pixel. Index 0 is transparent.
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		ci, cj := counts[colors[i]], counts[colors[j]]
		if ci != cj {
			return ci > cj
		}
		return packRGBA(colors[i]) < packRGBA(colors[j])
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{})
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i])
	}
	// Pad with grayscale.
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{R: gray, G: gray, B: gray, A: 255})
	}
	return palette
}

func packRGBA(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
