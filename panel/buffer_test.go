package panel

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/HighDoping/SpectraFrame/render"
)

func palettedFromIndices(w, h int, indices []uint8) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), toColorPalette(render.Spectra6))
	copy(img.Pix, indices)
	return img
}

func toColorPalette(colors []color.RGBA) color.Palette {
	out := make(color.Palette, len(colors))
	for i, c := range colors {
		out[i] = c
	}
	return out
}

func TestEncodePacking(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		indices []uint8
		want    []byte
	}{
		{
			// black white | red yellow: the controller swaps red and
			// yellow relative to palette order.
			name: "code mapping", w: 4, h: 1,
			indices: []uint8{0, 1, 2, 3},
			want:    []byte{0x01, 0x32},
		},
		{
			// green and blue are swapped too.
			name: "green blue", w: 2, h: 1,
			indices: []uint8{4, 5},
			want:    []byte{0x65},
		},
		{
			name: "two rows", w: 2, h: 2,
			indices: []uint8{1, 1, 0, 0},
			want:    []byte{0x11, 0x00},
		},
		{
			// Odd width pads each row's trailing nibble with white.
			name: "odd width", w: 3, h: 2,
			indices: []uint8{0, 0, 0, 2, 2, 2},
			want:    []byte{0x00, 0x01, 0x33, 0x31},
		},
	}
	for _, tt := range tests {
		buf, err := Encode(palettedFromIndices(tt.w, tt.h, tt.indices))
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !bytes.Equal(buf, tt.want) {
			t.Errorf("%s: buffer = %x, want %x", tt.name, buf, tt.want)
		}
	}
}

func TestEncodeBufferSize(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, Width, Height), toColorPalette(render.Spectra6))
	buf, err := Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != Width/2*Height {
		t.Fatalf("buffer is %d bytes, want %d", len(buf), Width/2*Height)
	}
}

func TestEncodeRejectsWidePalette(t *testing.T) {
	colors := make(color.Palette, 7)
	for i := range colors {
		colors[i] = color.RGBA{uint8(i * 30), 0, 0, 255}
	}
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), colors)
	if _, err := Encode(img); err == nil {
		t.Fatal("expected error for 7-entry palette")
	}
}

func TestEncodeNilAndEmpty(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for nil image")
	}
	empty := image.NewPaletted(image.Rect(0, 0, 0, 0), toColorPalette(render.Spectra6))
	if _, err := Encode(empty); err == nil {
		t.Fatal("expected error for empty raster")
	}
}

func TestEncodeImageSnaps(t *testing.T) {
	pal, err := render.NewPalette(render.Spectra6, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Slightly off-palette pixels snap to the nearest entry before
	// encoding.
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{5, 5, 5, 255})       // near black
	img.SetRGBA(1, 0, color.RGBA{250, 250, 250, 255}) // near white

	buf, err := EncodeImage(img, pal)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0x01}) {
		t.Fatalf("buffer = %x, want 01", buf)
	}
}
