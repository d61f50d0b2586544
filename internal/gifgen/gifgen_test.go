package gifgen

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func TestEncode(t *testing.T) {
	frames := []Frame{
		{Image: solid(40, 20, color.White), Delay: 5 * time.Millisecond},
		{Image: solid(40, 20, color.Black), Delay: 250 * time.Millisecond},
		{Image: solid(40, 20, color.White), Delay: time.Minute},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, frames, Options{MaxWidth: 20}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	g, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(g.Image) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(g.Image))
	}
	if b := g.Image[0].Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("expected 20x10 frames, got %v", b)
	}
	if g.Delay[0] != 2 || g.Delay[1] != 25 || g.Delay[2] != 300 {
		t.Errorf("unexpected delays: %v", g.Delay)
	}
}

func TestEncodeNoUpscale(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, []Frame{{Image: solid(10, 10, color.White)}}, Options{}); err != nil {
		t.Fatal(err)
	}
	g, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if g.Image[0].Bounds().Dx() != 10 {
		t.Errorf("small frames should keep their width, got %d", g.Image[0].Bounds().Dx())
	}
}

func TestEncodeNoFrames(t *testing.T) {
	if err := Encode(&bytes.Buffer{}, nil, Options{}); !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gif")
	size, err := WriteFile(path, []Frame{{Image: solid(8, 8, color.Black), Delay: 100 * time.Millisecond}}, Options{})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if size == 0 || info.Size() != size {
		t.Errorf("reported size %d, file size %d", size, info.Size())
	}
}

func TestBuildPalette(t *testing.T) {
	p := buildPalette(solid(16, 16, color.RGBA{200, 10, 10, 255}))
	if len(p) != 256 {
		t.Fatalf("expected 256 colors, got %d", len(p))
	}
	if p[1] != (color.RGBA{200, 10, 10, 255}) {
		t.Errorf("expected dominant color first, got %v", p[1])
	}
}
