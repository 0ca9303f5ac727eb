package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/anthonynsimon/bild/transform"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestComposeDimensions(t *testing.T) {
	tests := []struct {
		name           string
		srcW, srcH     int
		canvW, canvH   int
	}{
		{"landscape into panel", 1600, 900, 800, 480},
		{"portrait into panel", 600, 1200, 800, 480},
		{"exact fit", 800, 480, 800, 480},
		{"upscale small source", 10, 10, 800, 480},
		{"extreme aspect", 2000, 3, 800, 480},
		{"tiny canvas", 800, 480, 7, 5},
	}
	for _, tt := range tests {
		src := solidRGBA(tt.srcW, tt.srcH, color.RGBA{10, 20, 30, 255})
		out, err := Compose(src, tt.canvW, tt.canvH, color.White, transform.NearestNeighbor)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if out.Bounds().Dx() != tt.canvW || out.Bounds().Dy() != tt.canvH {
			t.Errorf("%s: output %dx%d, want %dx%d",
				tt.name, out.Bounds().Dx(), out.Bounds().Dy(), tt.canvW, tt.canvH)
		}
	}
}

func TestComposeCentersAndFills(t *testing.T) {
	// 100x100 source onto a 200x100 canvas: no scaling, pasted at
	// x=50, fill on both sides.
	fill := color.RGBA{255, 255, 255, 255}
	srcColor := color.RGBA{200, 0, 0, 255}
	src := solidRGBA(100, 100, srcColor)

	out, err := Compose(src, 200, 100, fill, transform.NearestNeighbor)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(10, 50); got != fill {
		t.Errorf("left margin = %v, want fill %v", got, fill)
	}
	if got := out.RGBAAt(100, 50); got != srcColor {
		t.Errorf("center = %v, want source %v", got, srcColor)
	}
	if got := out.RGBAAt(190, 50); got != fill {
		t.Errorf("right margin = %v, want fill %v", got, fill)
	}
}

func TestComposeScaledAspect(t *testing.T) {
	// 16:9 source halved onto the 800x480 panel: the visible region is
	// 800x450 with 15-pixel fill bands above and below, so the source
	// aspect survives the scale.
	fill := color.RGBA{255, 255, 255, 255}
	srcColor := color.RGBA{0, 0, 200, 255}
	src := solidRGBA(1600, 900, srcColor)

	out, err := Compose(src, 800, 480, fill, transform.NearestNeighbor)
	if err != nil {
		t.Fatal(err)
	}
	for _, y := range []int{0, 14, 465, 479} {
		if got := out.RGBAAt(400, y); got != fill {
			t.Errorf("band pixel (400,%d) = %v, want fill %v", y, got, fill)
		}
	}
	for _, y := range []int{15, 240, 464} {
		if got := out.RGBAAt(400, y); got != srcColor {
			t.Errorf("visible pixel (400,%d) = %v, want source %v", y, got, srcColor)
		}
	}
}

func TestComposeTransparentSource(t *testing.T) {
	fill := color.RGBA{255, 255, 255, 255}
	src := image.NewRGBA(image.Rect(0, 0, 50, 50)) // fully transparent

	out, err := Compose(src, 50, 50, fill, transform.NearestNeighbor)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(25, 25); got != fill {
		t.Errorf("transparent pixel composited to %v, want fill %v", got, fill)
	}
}

func TestComposeErrors(t *testing.T) {
	src := solidRGBA(10, 10, color.RGBA{0, 0, 0, 255})
	if _, err := Compose(src, 0, 480, color.White, transform.Lanczos); !errors.Is(err, ErrConfig) {
		t.Errorf("zero-width canvas error = %v, want ErrConfig", err)
	}
	if _, err := Compose(src, 800, -1, color.White, transform.Lanczos); !errors.Is(err, ErrConfig) {
		t.Errorf("negative-height canvas error = %v, want ErrConfig", err)
	}
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := Compose(empty, 800, 480, color.White, transform.Lanczos); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty source error = %v, want ErrInvalidInput", err)
	}
}
