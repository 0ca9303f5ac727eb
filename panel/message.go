package panel

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Font locations tried when no explicit path is given.
var defaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
}

// Message renders text centered in black on a white width x height
// canvas, for status screens ("Photo Frame Ready", error notices).
// Black and white are core palette colors, so EncodeImage snaps the
// result losslessly apart from antialiased glyph edges.
func Message(width, height int, text string, fontPath string, size float64) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("panel: invalid canvas %dx%d", width, height)
	}
	if size <= 0 {
		size = 24
	}

	paths := defaultFontPaths
	if fontPath != "" {
		paths = []string{fontPath}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("panel: no usable font: %w", err)
	}

	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("panel: parse font: %w", err)
	}
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	textWidth := d.MeasureString(text)
	metrics := face.Metrics()
	d.Dot = fixed.Point26_6{
		X: (fixed.I(width) - textWidth) / 2,
		Y: (fixed.I(height) + metrics.Ascent - metrics.Descent) / 2,
	}
	d.DrawString(text)

	return img, nil
}
