package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/transform"
)

// Compose fits src onto a width x height canvas without distortion:
// the source is scaled by min(width/srcW, height/srcH), resampled with
// the given filter and pasted centered over a canvas pre-filled with
// fill. Transparent source pixels end up composited onto the fill, so
// no alpha survives past this point.
func Compose(src image.Image, width, height int, fill color.Color, filter transform.ResampleFilter) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrConfig, width, height)
	}
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("%w: source image %dx%d", ErrInvalidInput, srcW, srcH)
	}
	if filter.Fn == nil {
		filter = transform.Lanczos
	}

	scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
	newW := int(math.Round(float64(srcW) * scale))
	newH := int(math.Round(float64(srcH) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := transform.Resize(src, newW, newH, filter)

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	offset := image.Pt((width-newW)/2, (height-newH)/2)
	draw.Draw(canvas, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(newW, newH))},
		resized, resized.Bounds().Min, draw.Over)

	return canvas, nil
}
