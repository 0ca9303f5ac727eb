package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestRGBToLabAnchors(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		wantL   float64
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 100},
	}
	for _, tt := range tests {
		l, a, b := RGBToLab(tt.r, tt.g, tt.b)
		if math.Abs(l-tt.wantL) > 0.01 {
			t.Errorf("%s: L = %f, want %f", tt.name, l, tt.wantL)
		}
		// Neutral colors carry no chrominance. The 4-digit matrix rows
		// don't sum exactly to the reference white, so white lands a
		// hair off a=b=0 rather than exactly on it.
		if math.Abs(a) > 0.05 || math.Abs(b) > 0.05 {
			t.Errorf("%s: a,b = %f,%f, want 0,0", tt.name, a, b)
		}
	}
}

// go-colorful computes the same D65 LAB transform (scaled to L in
// [0,1]) with higher-precision matrices, which makes it a good
// independent oracle.
func TestRGBToLabAgainstColorful(t *testing.T) {
	samples := append([]color.RGBA{}, Spectra6...)
	samples = append(samples, Spectra6Extended...)
	for _, c := range samples {
		l, a, b := RGBToLab(c.R, c.G, c.B)
		ref, _ := colorful.MakeColor(c)
		rl, ra, rb := ref.Lab()
		if math.Abs(l-rl*100) > 1.5 || math.Abs(a-ra*100) > 1.5 || math.Abs(b-rb*100) > 1.5 {
			t.Errorf("RGBToLab(%v) = %.2f,%.2f,%.2f, colorful says %.2f,%.2f,%.2f",
				c, l, a, b, rl*100, ra*100, rb*100)
		}
	}
}

func TestLabRoundTrip(t *testing.T) {
	samples := append([]color.RGBA{}, Spectra6...)
	samples = append(samples, Standard...)
	samples = append(samples, Spectra6Extended...)
	for _, c := range samples {
		l, a, b := RGBToLab(c.R, c.G, c.B)
		r, g, bb := LabToRGB(l, a, b)
		if absDiff8(r, c.R) > 1 || absDiff8(g, c.G) > 1 || absDiff8(bb, c.B) > 1 {
			t.Errorf("round trip %v -> (%d,%d,%d)", c, r, g, bb)
		}
	}
}

func TestLabToRGBClipsOutOfGamut(t *testing.T) {
	// A fully saturated red pushed past the gamut edge must clip, not
	// wrap around to some unrelated hue.
	r, g, b := LabToRGB(53.2, 180, 67.2)
	if r != 255 {
		t.Errorf("over-saturated red gave R=%d, want clipped 255", r)
	}
	if g > 60 || b > 60 {
		t.Errorf("over-saturated red gave G=%d B=%d, expected near zero", g, b)
	}
}

func TestEnhanceChromaUnitGains(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(40 + 50*x), uint8(30 + 60*y), 200, 255})
		}
	}
	want := append([]uint8(nil), img.Pix...)

	EnhanceChroma(img, 1.0, 1.0)
	for i := range want {
		if absDiff8(img.Pix[i], want[i]) > 1 {
			t.Fatalf("unit gains moved byte %d from %d to %d", i, want[i], img.Pix[i])
		}
	}
}

func TestEnhanceChromaBoostsSaturation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{180, 110, 110, 255})

	_, before, _ := RGBToLab(180, 110, 110)
	EnhanceChroma(img, 1.4, 1.0)
	_, after, _ := RGBToLab(img.Pix[0], img.Pix[1], img.Pix[2])

	if after <= before {
		t.Errorf("chroma a went %f -> %f, want an increase", before, after)
	}
}

func absDiff8(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
