package render

import (
	"image"
	"math"
)

// CIE LAB conversion for the D65 illuminant. LAB separates lightness
// from chrominance, which lets chroma get boosted before quantization
// without shifting brightness, and gives nearest-color search a
// perceptually uniform distance.

const labDelta = 6.0 / 29.0

var (
	rgbToXYZ = [3][3]float64{
		{0.4124, 0.3576, 0.1805},
		{0.2126, 0.7152, 0.0722},
		{0.0193, 0.1192, 0.9505},
	}
	xyzToRGB = [3][3]float64{
		{3.2406, -1.5372, -0.4986},
		{-0.9689, 1.8758, 0.0415},
		{0.0557, -0.2040, 1.0570},
	}
	// D65 reference white.
	refWhite = [3]float64{0.95047, 1.00000, 1.08883}
)

// RGBToLab converts an 8-bit sRGB triple to CIE LAB.
// L is in [0,100]; a and b are nominally in [-127,127].
func RGBToLab(r, g, b uint8) (l, a, bb float64) {
	lr := srgbLinear(float64(r) / 255)
	lg := srgbLinear(float64(g) / 255)
	lb := srgbLinear(float64(b) / 255)

	var xyz [3]float64
	for i := 0; i < 3; i++ {
		xyz[i] = rgbToXYZ[i][0]*lr + rgbToXYZ[i][1]*lg + rgbToXYZ[i][2]*lb
		xyz[i] /= refWhite[i]
	}

	fx := labF(xyz[0])
	fy := labF(xyz[1])
	fz := labF(xyz[2])

	return 116*fy - 16, 500 * (fx - fy), 200 * (fy - fz)
}

// LabToRGB converts CIE LAB back to 8-bit sRGB. Values that fall
// outside the sRGB gamut (enhanced chroma routinely produces them) are
// clipped per channel, not wrapped.
func LabToRGB(l, a, bb float64) (r, g, b uint8) {
	fy := (l + 16) / 116
	fx := a/500 + fy
	fz := fy - bb/200

	xyz := [3]float64{labFInv(fx), labFInv(fy), labFInv(fz)}
	for i := 0; i < 3; i++ {
		xyz[i] *= refWhite[i]
	}

	var out [3]uint8
	for i := 0; i < 3; i++ {
		lin := xyzToRGB[i][0]*xyz[0] + xyzToRGB[i][1]*xyz[1] + xyzToRGB[i][2]*xyz[2]
		out[i] = clamp8(srgbGamma(lin) * 255)
	}
	return out[0], out[1], out[2]
}

func srgbLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func srgbGamma(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}

func labF(t float64) float64 {
	if t > labDelta*labDelta*labDelta {
		return math.Cbrt(t)
	}
	return t/(3*labDelta*labDelta) + 4.0/29.0
}

func labFInv(t float64) float64 {
	if t > labDelta {
		return t * t * t
	}
	return 3 * labDelta * labDelta * (t - 4.0/29.0)
}

// EnhanceChroma boosts the a/b channels of every pixel by chromaGain
// and scales L by lumaGain, both clamped to the valid LAB range. It
// mutates img in place; the pipeline owns the buffer by then. Gains of
// 1.0 leave the image untouched apart from 8-bit round-tripping.
func EnhanceChroma(img *image.RGBA, chromaGain, lumaGain float64) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			l, a, b := RGBToLab(img.Pix[i], img.Pix[i+1], img.Pix[i+2])

			a = clampRange(a*chromaGain, -127, 127)
			b = clampRange(b*chromaGain, -127, 127)
			l = clampRange(l*lumaGain, 0, 100)

			r8, g8, b8 := LabToRGB(l, a, b)
			img.Pix[i] = r8
			img.Pix[i+1] = g8
			img.Pix[i+2] = b8
		}
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
