// Package gifgen encodes captured frames as an animated GIF
package gifgen

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"
	"time"

	"github.com/nfnt/resize"
)

// Frame is one image and how long it stays on screen
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// Options configures GIF generation
type Options struct {
	MaxWidth uint          // Output width; frames keep their aspect ratio. 0 means 800.
	MinDelay time.Duration // Floor for per-frame delays. 0 means 20ms.
	MaxDelay time.Duration // Ceiling for per-frame delays. 0 means 3s.
}

// ErrNoFrames is returned when there is nothing to encode
var ErrNoFrames = errors.New("gifgen: no frames")

// Encode writes frames to w as an infinitely looping GIF
func Encode(w io.Writer, frames []Frame, opts Options) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}
	if opts.MinDelay == 0 {
		opts.MinDelay = 20 * time.Millisecond
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = 3 * time.Second
	}

	bounds := frames[0].Image.Bounds()
	if bounds.Empty() {
		return errors.New("gifgen: empty first frame")
	}
	width := opts.MaxWidth
	if uint(bounds.Dx()) < width {
		width = uint(bounds.Dx())
	}
	height := uint(float64(width) * float64(bounds.Dy()) / float64(bounds.Dx()))

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	// One palette for the whole animation keeps colors stable between frames.
	palette := buildPalette(frames[0].Image)

	for i, f := range frames {
		resized := resize.Resize(width, height, f.Image, resize.Lanczos3)
		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		g.Image[i] = paletted
		g.Delay[i] = centiseconds(f.Delay, opts.MinDelay, opts.MaxDelay)
	}

	return gif.EncodeAll(w, g)
}

// WriteFile encodes frames into path and returns the file size
func WriteFile(path string, frames []Frame, opts Options) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := Encode(f, frames, opts); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// centiseconds converts d into GIF delay units after clamping
func centiseconds(d, lo, hi time.Duration) int {
	d = min(max(d, lo), hi)
	cs := int(d / (10 * time.Millisecond))
	if cs < 2 {
		cs = 2 // Most viewers treat delays under 2cs as 10cs
	}
	return cs
}

// buildPalette picks the 255 most frequent colors of img plus transparency
func buildPalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	// Sample every 4th pixel for performance
	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}]++
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
		// Deterministic order for equal counts
		return rgbaKey(colors[i]) < rgbaKey(colors[j])
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}

func rgbaKey(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
