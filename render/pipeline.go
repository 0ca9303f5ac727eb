// Package render reduces full-color photographs to the six colors a
// Spectra 6 e-paper panel can physically show. The pipeline is
// compose (scale + letterbox + center), optional chroma enhancement in
// LAB space, then Floyd-Steinberg error diffusion against the panel
// palette.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"
)

// Config selects the pipeline variant. The zero value is not valid;
// Width, Height and Palette must be set.
type Config struct {
	// Canvas dimensions, normally the panel's 800x480.
	Width  int
	Height int

	// Fill paints canvas area the letterboxed source does not cover.
	// Defaults to panel white.
	Fill color.Color

	// Palette is the core set of panel-realizable colors. Extended
	// optionally adds auxiliary shades that steer error diffusion but
	// are never emitted.
	Palette  []color.RGBA
	Extended []color.RGBA

	// Metric for nearest-color search.
	Metric Metric

	// Enhance turns on the LAB chroma boost before quantization.
	// A gain of zero means "use the tuned default" (1.4 for chroma,
	// 1.1 for luminance, the values calibrated against the physical
	// panel); a gain that should actually null a channel out must be
	// expressed by leaving Enhance off.
	Enhance       bool
	ChromaGain    float64
	LuminanceGain float64

	// Filter used when resampling the source. Defaults to Lanczos;
	// NearestNeighbor is the cheap option for very constrained hosts.
	Filter transform.ResampleFilter
}

// Pipeline is an immutable, validated rendering configuration. A
// Pipeline is safe for concurrent use; every Process call works on its
// own buffers.
type Pipeline struct {
	cfg Config
	pal *Palette
}

// NewPipeline validates cfg and builds the palette tables. All
// configuration errors surface here, before any image is processed.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrConfig, cfg.Width, cfg.Height)
	}
	pal, err := NewPalette(cfg.Palette, cfg.Extended)
	if err != nil {
		return nil, err
	}
	if cfg.Fill == nil {
		cfg.Fill = color.White
	}
	if cfg.Filter.Fn == nil {
		cfg.Filter = transform.Lanczos
	}
	if cfg.ChromaGain == 0 {
		cfg.ChromaGain = 1.4
	}
	if cfg.LuminanceGain == 0 {
		cfg.LuminanceGain = 1.1
	}
	return &Pipeline{cfg: cfg, pal: pal}, nil
}

// Process runs the full pipeline on src and returns a raster of
// exactly the configured canvas dimensions whose every pixel is one of
// the core palette entries. It either returns a complete raster or an
// error, never partial output, and identical inputs always produce
// identical outputs.
func (p *Pipeline) Process(src image.Image) (*image.Paletted, error) {
	canvas, err := Compose(src, p.cfg.Width, p.cfg.Height, p.cfg.Fill, p.cfg.Filter)
	if err != nil {
		return nil, err
	}

	if p.cfg.Enhance {
		EnhanceChroma(canvas, p.cfg.ChromaGain, p.cfg.LuminanceGain)
	}

	d := &Ditherer{Palette: p.pal, Metric: p.cfg.Metric}
	return d.Dither(canvas)
}
