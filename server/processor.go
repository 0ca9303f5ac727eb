package main

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	_ "github.com/deepteams/webp" // registers webp with image.Decode
	"github.com/disintegration/imaging"
	"github.com/makeworld-the-better-one/dither/v2"

	"github.com/HighDoping/SpectraFrame/render"
)

func loadImage(path string) (image.Image, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return img, nil
}

func saveImage(path string, img image.Image) error {
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}

// Error-diffusion algorithms selectable per device besides the native
// pipeline.
// https://pkg.go.dev/github.com/makeworld-the-better-one/dither/v2
var errorDitherAlgo = map[string]dither.ErrorDiffusionMatrix{
	"Atkinson":            dither.Atkinson,
	"Burkes":              dither.Burkes,
	"FalseFloydSteinberg": dither.FalseFloydSteinberg,
	"FloydSteinberg":      dither.FloydSteinberg,
	"JarvisJudiceNinke":   dither.JarvisJudiceNinke,
	"Sierra":              dither.Sierra,
	"SierraLite":          dither.SierraLite,
	"StevenPigeon":        dither.StevenPigeon,
	"Stucki":              dither.Stucki,
	"TwoRowSierra":        dither.TwoRowSierra,
}

var orderedDitherAlgo = map[string]dither.OrderedDitherMatrix{
	"ClusteredDot4x4":           dither.ClusteredDot4x4,
	"ClusteredDot8x8":           dither.ClusteredDot8x8,
	"ClusteredDotDiagonal8x8":   dither.ClusteredDotDiagonal8x8,
	"ClusteredDotDiagonal16x16": dither.ClusteredDotDiagonal16x16,
	"Horizontal3x5":             dither.Horizontal3x5,
	"Vertical5x3":               dither.Vertical5x3,
}

func settingMetric(s DeviceSetting) render.Metric {
	if s.Metric == "rgb" {
		return render.MetricRGB
	}
	return render.MetricLab
}

// rotatePhoto applies the device's fixed mounting rotation.
func rotatePhoto(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

// cropToAspect center-crops img to the target aspect ratio, so a
// "cut" resize fills the whole canvas instead of letterboxing.
func cropToAspect(img image.Image, width, height int) image.Image {
	imgWidth := img.Bounds().Dx()
	imgHeight := img.Bounds().Dy()
	aspectRatio := float64(imgWidth) / float64(imgHeight)
	targetAspectRatio := float64(width) / float64(height)

	if aspectRatio > targetAspectRatio {
		// Image is wider, crop width
		newWidth := int(float64(imgHeight) * targetAspectRatio)
		xOffset := (imgWidth - newWidth) / 2
		return transform.Crop(img, image.Rect(xOffset, 0, xOffset+newWidth, imgHeight))
	}
	if aspectRatio < targetAspectRatio {
		// Image is taller, crop height
		newHeight := int(float64(imgWidth) / targetAspectRatio)
		yOffset := (imgHeight - newHeight) / 2
		return transform.Crop(img, image.Rect(0, yOffset, imgWidth, yOffset+newHeight))
	}
	return img
}

// renderPhoto runs one photo through the configured pipeline and
// returns the discrete-palette result at the device's dimensions.
func renderPhoto(path string, s DeviceSetting) (image.Image, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	img = rotatePhoto(img, s.Rotation)
	if s.ResizeMethod == "cut" {
		img = cropToAspect(img, s.Width, s.Height)
	}

	core, extended, ok := render.Preset(s.Palette)
	if !ok {
		return nil, fmt.Errorf("unknown palette %q", s.Palette)
	}
	if !s.ExtendedPalette {
		extended = nil
	}

	if s.Algorithm == "" || s.Algorithm == "native" {
		pipeline, err := render.NewPipeline(render.Config{
			Width:         s.Width,
			Height:        s.Height,
			Palette:       core,
			Extended:      extended,
			Metric:        settingMetric(s),
			Enhance:       s.Enhance,
			ChromaGain:    float64(s.ChromaGain),
			LuminanceGain: float64(s.LuminanceGain),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}
		return pipeline.Process(img)
	}

	// External algorithm: compose the same way, then hand off to the
	// dither library. Enhancement and the extended palette only exist
	// on the native path.
	canvas, err := render.Compose(img, s.Width, s.Height, color.White, transform.Lanczos)
	if err != nil {
		return nil, err
	}

	colors := make([]color.Color, len(core))
	for i, c := range core {
		colors[i] = c
	}
	d := dither.NewDitherer(colors)
	d.Serpentine = true
	if matrix, ok := errorDitherAlgo[s.Algorithm]; ok {
		d.Matrix = dither.ErrorDiffusionStrength(matrix, s.DitherStrength)
	} else if matrix, ok := orderedDitherAlgo[s.Algorithm]; ok {
		d.Mapper = dither.PixelMapperFromMatrix(matrix, s.DitherStrength)
	} else {
		return nil, fmt.Errorf("unknown dither algorithm %q", s.Algorithm)
	}
	log.Printf("Dithering %s with %s", path, s.Algorithm)
	return d.Dither(canvas), nil
}
