package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

// Errors reported before any pixel processing starts.
var (
	ErrInvalidInput = errors.New("render: invalid input")
	ErrConfig       = errors.New("render: invalid configuration")
)

// Metric selects the color space used for nearest-color search.
type Metric int

const (
	// MetricRGB measures squared Euclidean distance on 8-bit RGB values.
	MetricRGB Metric = iota
	// MetricLab measures squared Euclidean distance in CIE LAB space.
	MetricLab
)

// Spectra 6 palettes. Standard holds the datasheet values; Spectra6
// holds the hardware-calibrated values that map better to the actual
// panel output (green in particular renders much darker than pure RGB
// green). Which set is correct for a given panel is a calibration
// question, so both ship as presets.
var (
	Standard = []color.RGBA{
		{0, 0, 0, 255},       // Black
		{255, 255, 255, 255}, // White
		{255, 0, 0, 255},     // Red
		{255, 255, 0, 255},   // Yellow
		{0, 128, 0, 255},     // Green
		{0, 0, 255, 255},     // Blue
	}

	Spectra6 = []color.RGBA{
		{0, 0, 0, 255},       // Black
		{255, 255, 255, 255}, // White
		{191, 0, 0, 255},     // Red
		{255, 243, 56, 255},  // Yellow
		{67, 138, 28, 255},   // Green
		{100, 64, 255, 255},  // Blue
	}

	// Spectra6Extended adds darker/lighter shades and neutral grays
	// around the calibrated colors. These only steer error diffusion;
	// the ditherer never emits them.
	Spectra6Extended = []color.RGBA{
		{96, 0, 0, 255},      // Dark red
		{128, 122, 28, 255},  // Dark yellow
		{34, 69, 14, 255},    // Dark green
		{50, 32, 128, 255},   // Dark blue
		{223, 128, 128, 255}, // Medium red
		{255, 249, 156, 255}, // Light yellow
		{150, 196, 142, 255}, // Medium green
		{177, 160, 255, 255}, // Light blue
		{128, 64, 64, 255},
		{192, 122, 56, 255},
		{100, 180, 64, 255},
		{140, 100, 200, 255},
		{32, 32, 32, 255}, // Grays for smooth transitions
		{64, 64, 64, 255},
		{96, 96, 96, 255},
		{128, 128, 128, 255},
		{160, 160, 160, 255},
		{192, 192, 192, 255},
		{224, 224, 224, 255},
	}
)

// Preset returns the named palette preset. The extended set is nil
// when the preset has no auxiliary shades.
func Preset(name string) (core, extended []color.RGBA, ok bool) {
	switch name {
	case "standard":
		return Standard, nil, true
	case "spectra6":
		return Spectra6, Spectra6Extended, true
	default:
		return nil, nil, false
	}
}

// Palette is an ordered, immutable set of panel colors, optionally
// widened by auxiliary shades. Nearest-color lookup scans core and
// auxiliary entries alike, but the color handed back for emission is
// always a core entry.
type Palette struct {
	colors []color.RGBA // core entries first, then auxiliary shades
	core   int          // number of core entries
	lab    [][3]float64 // cached LAB coordinates, parallel to colors
	snap   []int        // entry index -> nearest core index
}

// NewPalette builds a palette from the given core colors plus optional
// auxiliary shades. The core set must not be empty.
func NewPalette(core, extended []color.RGBA) (*Palette, error) {
	if len(core) == 0 {
		return nil, fmt.Errorf("%w: empty palette", ErrConfig)
	}
	p := &Palette{
		colors: make([]color.RGBA, 0, len(core)+len(extended)),
		core:   len(core),
	}
	p.colors = append(p.colors, core...)
	p.colors = append(p.colors, extended...)

	p.lab = make([][3]float64, len(p.colors))
	for i, c := range p.colors {
		l, a, b := RGBToLab(c.R, c.G, c.B)
		p.lab[i] = [3]float64{l, a, b}
	}

	// Auxiliary entries snap to their nearest core entry once, up
	// front, so lookups stay a single scan.
	p.snap = make([]int, len(p.colors))
	for i := range p.colors {
		if i < p.core {
			p.snap[i] = i
			continue
		}
		p.snap[i] = p.nearestCore(float64(p.colors[i].R), float64(p.colors[i].G), float64(p.colors[i].B))
	}
	return p, nil
}

// Len returns the number of core entries.
func (p *Palette) Len() int { return p.core }

// Colors returns the core entries as a color.Palette, in order.
func (p *Palette) Colors() color.Palette {
	out := make(color.Palette, p.core)
	for i := 0; i < p.core; i++ {
		c := p.colors[i]
		out[i] = c
	}
	return out
}

// Nearest returns the core palette color closest to c under the given
// metric. It is total: a palette is non-empty by construction.
func (p *Palette) Nearest(c color.RGBA, m Metric) color.RGBA {
	idx, _ := p.nearest(float64(c.R), float64(c.G), float64(c.B), m)
	return p.colors[idx]
}

// nearest returns the core index of the emitted color and the channel
// values quantization error should be measured against. The two differ
// only when an auxiliary shade wins the scan: the shade then steers
// error accumulation while its core snap is what gets emitted.
// Candidate channel values may lie outside [0,255] while diffusion
// error is in flight.
func (p *Palette) nearest(r, g, b float64, m Metric) (coreIdx int, ref [3]float64) {
	best := 0
	bestDist := math.MaxFloat64

	if m == MetricLab {
		l, a, bb := RGBToLab(clamp8(r), clamp8(g), clamp8(b))
		for i, lab := range p.lab {
			d := sq(lab[0]-l) + sq(lab[1]-a) + sq(lab[2]-bb)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
	} else {
		for i, c := range p.colors {
			d := sq(float64(c.R)-r) + sq(float64(c.G)-g) + sq(float64(c.B)-b)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
	}

	chosen := p.colors[best]
	return p.snap[best], [3]float64{float64(chosen.R), float64(chosen.G), float64(chosen.B)}
}

// nearestCore scans core entries only, in RGB space. Ties go to the
// lower index, which keeps lookup a total deterministic function.
func (p *Palette) nearestCore(r, g, b float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for i := 0; i < p.core; i++ {
		c := p.colors[i]
		d := sq(float64(c.R)-r) + sq(float64(c.G)-g) + sq(float64(c.B)-b)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func sq(v float64) float64 { return v * v }

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
