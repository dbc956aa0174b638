// Command profit renders a galaxy model described by a YAML file.
//
//	profit -config model.yaml -o model.tiff
//	profit -info
//	profit -config model.yaml -bench 20
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/tiff"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/profit"
	"github.com/gogpu/profit/config"
	_ "github.com/gogpu/profit/gpu" // GPU platforms and convolver environment
)

func main() {
	var (
		cfgPath = flag.String("config", "", "model description (YAML)")
		output  = flag.String("o", "", "output image (.tiff, .tif or .png)")
		info    = flag.Bool("info", false, "list compute platforms and exit")
		bench   = flag.Int("bench", 0, "evaluate the model N times and report timings")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	profit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	p := message.NewPrinter(language.English)

	if *info {
		if err := printPlatforms(p); err != nil {
			log.Printf("platform discovery: %v", err)
		}
		return
	}
	if *cfgPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	doc, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if *bench > 0 {
		if err := runBench(p, doc, *bench); err != nil {
			log.Fatal(err)
		}
		return
	}

	img, offset, err := evaluate(doc)
	if err != nil {
		log.Fatal(err)
	}
	p.Printf("%dx%d image, offset (%v, %v), total %.6g, max %.6g\n",
		img.Width(), img.Height(), offset.X, offset.Y, img.Sum(), img.Max())

	if *output != "" {
		if err := save(*output, img); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Image saved to %s", *output)
	}
}

func evaluate(doc *config.Document) (*profit.Image, profit.Point, error) {
	m, err := doc.Build()
	if err != nil {
		return nil, profit.Point{}, err
	}
	defer m.Close()
	return m.Evaluate()
}

func runBench(p *message.Printer, doc *config.Document, n int) error {
	var total, best time.Duration
	for i := range n {
		start := time.Now()
		if _, _, err := evaluate(doc); err != nil {
			return err
		}
		d := time.Since(start)
		total += d
		if i == 0 || d < best {
			best = d
		}
	}
	pixels := doc.Width * doc.Height
	mean := total / time.Duration(n)
	p.Printf("%d evaluations of %d pixels: mean %v, best %v, %.0f pixels/s\n",
		n, pixels, mean, best, float64(pixels)/mean.Seconds())
	return nil
}

func printPlatforms(p *message.Printer) error {
	platforms, err := profit.Platforms()
	// platforms[0] is the CPU; the rest are indexed as in convolver.platform
	for i, pl := range platforms {
		if i == 0 {
			p.Printf("cpu: %s\n", pl.Version)
		} else {
			p.Printf("platform %d: %s %s\n", i-1, pl.Name, pl.Version)
		}
		for j, d := range pl.Devices {
			fp := "single"
			if d.DoublePrecision {
				fp = "double"
			}
			p.Printf("  device %d: %s [%s precision]\n", j, d.Name, fp)
		}
	}
	return err
}

func save(path string, img *profit.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	g := img.ToGray16()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		err = tiff.Encode(f, g, &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		err = png.Encode(f, g)
	default:
		err = fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
