package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/urfave/cli/v3"

	"github.com/HighDoping/SpectraFrame/panel"
	"github.com/HighDoping/SpectraFrame/render"
)

var pipelineFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "width",
		Usage: "Canvas width in pixels",
		Value: panel.Width,
	},
	&cli.IntFlag{
		Name:  "height",
		Usage: "Canvas height in pixels",
		Value: panel.Height,
	},
	&cli.StringFlag{
		Name:    "palette",
		Usage:   "Palette preset (spectra6, standard)",
		Aliases: []string{"p"},
		Value:   "spectra6",
	},
	&cli.BoolFlag{
		Name:  "extended",
		Usage: "Dither against the extended palette variants",
		Value: true,
	},
	&cli.StringFlag{
		Name:  "metric",
		Usage: "Color distance metric (lab, rgb)",
		Value: "lab",
	},
	&cli.BoolFlag{
		Name:  "enhance",
		Usage: "Boost chroma before dithering",
		Value: true,
	},
	&cli.FloatFlag{
		Name:  "chroma-gain",
		Usage: "Chroma multiplier for --enhance",
		Value: 1.4,
	},
	&cli.FloatFlag{
		Name:  "luminance-gain",
		Usage: "Luminance multiplier for --enhance",
		Value: 1.1,
	},
	&cli.BoolFlag{
		Name:  "fast",
		Usage: "Use nearest-neighbor resampling instead of Lanczos",
		Value: false,
	},
}

var panelFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "mock",
		Usage: "Use the mock panel instead of SPI hardware",
		Value: false,
	},
	&cli.StringFlag{
		Name:  "mock-out",
		Usage: "File the mock panel dumps buffers to",
		Value: "",
	},
	&cli.StringFlag{
		Name:  "spi",
		Usage: "SPI port name",
		Value: "SPI0.0",
	},
}

var command = &cli.Command{
	Name:  "framectl",
	Usage: "Render photos for a Spectra 6 e-paper frame and drive the panel",
	Commands: []*cli.Command{
		{
			Name:      "render",
			Usage:     "Dither a photo to the panel palette and write a PNG",
			ArgsUsage: "<photo>",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "out",
					Usage:   "Output PNG path",
					Aliases: []string{"o"},
					Value:   "out.png",
				},
			}, pipelineFlags...),
			Action: renderAction,
		},
		{
			Name:      "display",
			Usage:     "Render a photo and push it to the panel",
			ArgsUsage: "<photo>",
			Flags:     append(append([]cli.Flag{}, pipelineFlags...), panelFlags...),
			Action:    displayAction,
		},
		{
			Name:   "clear",
			Usage:  "Clear the panel to white",
			Flags:  panelFlags,
			Action: clearAction,
		},
		{
			Name:      "message",
			Usage:     "Show a short text message on the panel",
			ArgsUsage: "<text>",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:  "font",
					Usage: "TrueType font file (default: first system font found)",
					Value: "",
				},
				&cli.FloatFlag{
					Name:  "size",
					Usage: "Font size in points",
					Value: 36,
				},
			}, panelFlags...),
			Action: messageAction,
		},
		{
			Name:   "status",
			Usage:  "Print the last display status written by the server",
			Action: statusAction,
		},
	},
}

func buildPipeline(c *cli.Command) (*render.Pipeline, error) {
	core, extended, ok := render.Preset(c.String("palette"))
	if !ok {
		return nil, fmt.Errorf("unknown palette %q", c.String("palette"))
	}
	if !c.Bool("extended") {
		extended = nil
	}
	metric := render.MetricLab
	switch c.String("metric") {
	case "lab":
	case "rgb":
		metric = render.MetricRGB
	default:
		return nil, fmt.Errorf("unknown metric %q", c.String("metric"))
	}
	filter := transform.Lanczos
	if c.Bool("fast") {
		filter = transform.NearestNeighbor
	}
	return render.NewPipeline(render.Config{
		Width:         int(c.Int("width")),
		Height:        int(c.Int("height")),
		Palette:       core,
		Extended:      extended,
		Metric:        metric,
		Enhance:       c.Bool("enhance"),
		ChromaGain:    c.Float("chroma-gain"),
		LuminanceGain: c.Float("luminance-gain"),
		Filter:        filter,
	})
}

func openPanel(c *cli.Command) (panel.Display, error) {
	if c.Bool("mock") {
		return &panel.Mock{Path: c.String("mock-out")}, nil
	}
	return panel.Open(panel.Config{Port: c.String("spi")})
}

func renderAction(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one photo argument")
	}
	p, err := buildPipeline(c)
	if err != nil {
		return err
	}
	src, err := imgio.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Args().First(), err)
	}
	out, err := p.Process(src)
	if err != nil {
		return err
	}
	return imgio.Save(c.String("out"), out, imgio.PNGEncoder())
}

func displayAction(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one photo argument")
	}
	p, err := buildPipeline(c)
	if err != nil {
		return err
	}
	src, err := imgio.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Args().First(), err)
	}
	out, err := p.Process(src)
	if err != nil {
		return err
	}
	buf, err := panel.Encode(out)
	if err != nil {
		return err
	}

	dev, err := openPanel(c)
	if err != nil {
		return err
	}
	defer dev.Close()
	if err := dev.Init(); err != nil {
		return err
	}
	if err := dev.Display(buf); err != nil {
		return err
	}
	return dev.Sleep()
}

func clearAction(ctx context.Context, c *cli.Command) error {
	dev, err := openPanel(c)
	if err != nil {
		return err
	}
	defer dev.Close()
	if err := dev.Init(); err != nil {
		return err
	}
	if err := dev.Clear(); err != nil {
		return err
	}
	return dev.Sleep()
}

func messageAction(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one text argument")
	}
	img, err := panel.Message(panel.Width, panel.Height, c.Args().First(), c.String("font"), c.Float("size"))
	if err != nil {
		return err
	}
	core, _, _ := render.Preset("spectra6")
	pal, err := render.NewPalette(core, nil)
	if err != nil {
		return err
	}
	buf, err := panel.EncodeImage(img, pal)
	if err != nil {
		return err
	}

	dev, err := openPanel(c)
	if err != nil {
		return err
	}
	defer dev.Close()
	if err := dev.Init(); err != nil {
		return err
	}
	if err := dev.Display(buf); err != nil {
		return err
	}
	return dev.Sleep()
}

func statusAction(ctx context.Context, c *cli.Command) error {
	dir := os.Getenv("CACHE_DIR")
	if dir == "" {
		dir, _ = os.UserCacheDir()
	}
	data, err := os.ReadFile(filepath.Join(dir, "display_status.json"))
	if err != nil {
		return fmt.Errorf("no display status available: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
