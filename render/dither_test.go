package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func gradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(x * 255 / max(w-1, 1))
			g := uint8(y * 255 / max(h-1, 1))
			img.SetRGBA(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func mustPalette(t *testing.T, core, extended []color.RGBA) *Palette {
	t.Helper()
	p, err := NewPalette(core, extended)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDitherNoPalette(t *testing.T) {
	d := &Ditherer{}
	if _, err := d.Dither(gradientRGBA(4, 4)); !errors.Is(err, ErrConfig) {
		t.Fatalf("Dither without palette error = %v, want ErrConfig", err)
	}
}

func TestDitherEmptyRaster(t *testing.T) {
	d := &Ditherer{Palette: mustPalette(t, Spectra6, nil)}
	if _, err := d.Dither(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Dither of empty raster error = %v, want ErrInvalidInput", err)
	}
}

func TestDitherSolidPaletteColor(t *testing.T) {
	// A raster that is already a palette color dithers to exactly that
	// color: zero error means nothing to diffuse.
	for _, m := range []Metric{MetricRGB, MetricLab} {
		d := &Ditherer{Palette: mustPalette(t, Spectra6, Spectra6Extended), Metric: m}
		for want, c := range Spectra6 {
			out, err := d.Dither(solidRGBA(8, 8, c))
			if err != nil {
				t.Fatal(err)
			}
			for i, idx := range out.Pix {
				if int(idx) != want {
					t.Fatalf("metric %v color %v: pixel %d got index %d, want %d", m, c, i, idx, want)
				}
			}
		}
	}
}

func TestDitherOutputStaysInCorePalette(t *testing.T) {
	d := &Ditherer{Palette: mustPalette(t, Spectra6, Spectra6Extended), Metric: MetricLab}
	out, err := d.Dither(gradientRGBA(64, 48))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
		t.Fatalf("output %v, want 64x48", out.Bounds())
	}
	if len(out.Palette) != len(Spectra6) {
		t.Fatalf("output palette has %d entries, want %d core entries", len(out.Palette), len(Spectra6))
	}
	for i, idx := range out.Pix {
		if int(idx) >= len(Spectra6) {
			t.Fatalf("pixel %d has index %d, outside the core palette", i, idx)
		}
	}
}

func TestDitherDeterministic(t *testing.T) {
	d := &Ditherer{Palette: mustPalette(t, Spectra6, Spectra6Extended), Metric: MetricLab}
	src := gradientRGBA(32, 32)
	a, err := d.Dither(src)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Dither(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("two runs over the same input differ")
	}
}

func TestDitherDiffusesGray(t *testing.T) {
	// Mid-gray against black and white: the first pixel rounds up to
	// white, the diffused error pushes the neighbor down to black.
	p := mustPalette(t, []color.RGBA{
		{0, 0, 0, 255},
		{255, 255, 255, 255},
	}, nil)
	d := &Ditherer{Palette: p, Metric: MetricRGB}

	out, err := d.Dither(solidRGBA(2, 1, color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatal(err)
	}
	if out.Pix[0] != 1 || out.Pix[1] != 0 {
		t.Fatalf("got indices %v, want [white black]", out.Pix)
	}
}

func TestDitherSinglePixel(t *testing.T) {
	// All four kernel taps fall outside a 1x1 raster; the error is
	// simply dropped.
	d := &Ditherer{Palette: mustPalette(t, Spectra6, nil), Metric: MetricRGB}
	out, err := d.Dither(solidRGBA(1, 1, color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Pix) != 1 {
		t.Fatalf("output has %d pixels, want 1", len(out.Pix))
	}
}

func TestDitherGrayAveragesOut(t *testing.T) {
	// Over a larger flat mid-gray patch the black/white mix should
	// land near 50/50; this is the point of error diffusion.
	p := mustPalette(t, []color.RGBA{
		{0, 0, 0, 255},
		{255, 255, 255, 255},
	}, nil)
	d := &Ditherer{Palette: p, Metric: MetricRGB}

	out, err := d.Dither(solidRGBA(40, 40, color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatal(err)
	}
	white := 0
	for _, idx := range out.Pix {
		if idx == 1 {
			white++
		}
	}
	ratio := float64(white) / float64(len(out.Pix))
	if ratio < 0.4 || ratio > 0.6 {
		t.Fatalf("white ratio %f, want roughly half", ratio)
	}
}
