package render

import (
	"fmt"
	"image"
)

// Ditherer converts a continuous-tone raster to a discrete-palette
// raster with Floyd-Steinberg error diffusion. A Ditherer holds no
// mutable state across calls and is safe for concurrent use; each
// Dither call owns its accumulation buffer.
type Ditherer struct {
	Palette *Palette
	Metric  Metric
}

// Dither processes src in row-major scan order, emitting for every
// pixel the nearest palette color and spreading the quantization error
// over the classic Floyd-Steinberg kernel:
//
//	        x    7/16
//	3/16  5/16   1/16
//
// Error that would land outside the raster is dropped. The output
// always has src's dimensions and every output pixel is exactly one of
// the palette's core entries.
func (d *Ditherer) Dither(src *image.RGBA) (*image.Paletted, error) {
	if d.Palette == nil {
		return nil, fmt.Errorf("%w: ditherer has no palette", ErrConfig)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: raster %dx%d", ErrInvalidInput, w, h)
	}

	// Accumulated error, three float64 channels per pixel, scoped to
	// this one pass.
	acc := make([]float64, w*h*3)

	out := image.NewPaletted(image.Rect(0, 0, w, h), d.Palette.Colors())

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			ai := (y*w + x) * 3

			vr := float64(src.Pix[si]) + acc[ai]
			vg := float64(src.Pix[si+1]) + acc[ai+1]
			vb := float64(src.Pix[si+2]) + acc[ai+2]

			idx, ref := d.Palette.nearest(vr, vg, vb, d.Metric)
			out.SetColorIndex(x, y, uint8(idx))

			er := vr - ref[0]
			eg := vg - ref[1]
			eb := vb - ref[2]

			if x+1 < w {
				spread(acc, ai+3, er, eg, eb, 7.0/16.0)
			}
			if y+1 < h {
				down := ai + w*3
				if x > 0 {
					spread(acc, down-3, er, eg, eb, 3.0/16.0)
				}
				spread(acc, down, er, eg, eb, 5.0/16.0)
				if x+1 < w {
					spread(acc, down+3, er, eg, eb, 1.0/16.0)
				}
			}
		}
	}
	return out, nil
}

func spread(acc []float64, i int, er, eg, eb, weight float64) {
	acc[i] += er * weight
	acc[i+1] += eg * weight
	acc[i+2] += eb * weight
}
