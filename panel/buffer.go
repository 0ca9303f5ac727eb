// Package panel drives a Waveshare 7.3inch Spectra 6 e-paper HAT: it
// encodes core-paletted rasters into the controller's native buffer
// format and pushes them over SPI. The color-code mapping and the wire
// protocol are internal to this package; callers hand over rasters and
// nothing else.
package panel

import (
	"fmt"
	"image"

	"github.com/HighDoping/SpectraFrame/render"
)

// Panel dimensions of the 7.3inch HAT (E).
const (
	Width  = 800
	Height = 480
)

// Controller color codes, 4 bits per pixel. The controller orders
// these differently from the render palette; the mapping below is the
// only place that knows about it.
const (
	codeBlack  = 0x0
	codeWhite  = 0x1
	codeYellow = 0x2
	codeRed    = 0x3
	codeBlue   = 0x5
	codeGreen  = 0x6
)

// paletteCodes maps render palette order (black, white, red, yellow,
// green, blue) to controller codes.
var paletteCodes = [6]byte{codeBlack, codeWhite, codeRed, codeYellow, codeGreen, codeBlue}

// Encode packs a core-paletted raster into the controller buffer: one
// 4-bit code per pixel, two pixels per byte, row-major, high nibble
// first. Odd-width rasters pad the trailing nibble with white.
func Encode(img *image.Paletted) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("panel: nil image")
	}
	if len(img.Palette) > len(paletteCodes) {
		return nil, fmt.Errorf("panel: palette has %d entries, controller supports %d", len(img.Palette), len(paletteCodes))
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("panel: empty raster %dx%d", w, h)
	}

	rowBytes := (w + 1) / 2
	buf := make([]byte, rowBytes*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			code := paletteCodes[img.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y)]
			i := y*rowBytes + x/2
			if x%2 == 0 {
				buf[i] = code << 4
			} else {
				buf[i] |= code
			}
		}
		if w%2 != 0 {
			buf[y*rowBytes+rowBytes-1] |= codeWhite
		}
	}
	return buf, nil
}

// EncodeImage encodes an arbitrary raster by snapping each pixel to
// the nearest entry of pal first. Slower than Encode; used for output
// of the external dither algorithms, which is not paletted.
func EncodeImage(img image.Image, pal *render.Palette) ([]byte, error) {
	if pal.Len() > len(paletteCodes) {
		return nil, fmt.Errorf("panel: palette has %d entries, controller supports %d", pal.Len(), len(paletteCodes))
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("panel: empty raster %dx%d", w, h)
	}

	paletted := image.NewPaletted(image.Rect(0, 0, w, h), pal.Colors())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			paletted.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return Encode(paletted)
}
