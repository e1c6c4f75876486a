// Command locate runs the template locator over a saved screenshot.
//
//	locate -templates templates -frame shot.png -out found.webp combat/compass.png common/next.png
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"time"

	"jordanella.com/sortie-pilot/internal/config"
	"jordanella.com/sortie-pilot/internal/cv"
	"jordanella.com/sortie-pilot/internal/snapshot"
	"jordanella.com/sortie-pilot/internal/strategy"
	"jordanella.com/sortie-pilot/pkg/templates"
)

func main() {
	configPath := flag.String("config", "", "INI configuration to take matching thresholds from")
	root := flag.String("templates", "", "Template root (default from config)")
	framePath := flag.String("frame", "", "Screenshot to search")
	profilePath := flag.String("profile", "", "Use every template of this profile as candidates")
	outPath := flag.String("out", "", "Write the frame with the match marked (.png or .webp)")
	all := flag.Bool("all", false, "Try every candidate on its own instead of stopping at the first hit")
	var filters snapshot.Filters
	flag.Func("contrast", "Contrast adjustment in percent", float32Flag(&filters.Contrast))
	flag.Func("brightness", "Brightness adjustment in percent", float32Flag(&filters.Brightness))
	flag.Func("gamma", "Gamma correction", float32Flag(&filters.Gamma))
	flag.Func("blur", "Gaussian blur sigma", float32Flag(&filters.Blur))
	flag.IntVar(&filters.Downscale, "downscale", 0, "Resize the frame to this width first")
	flag.Parse()

	if *framePath == "" {
		log.Fatal("-frame is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromINI(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *root != "" {
		cfg.Matching.TemplateRoot = *root
	}

	candidates := flag.Args()
	if *profilePath != "" {
		p, err := strategy.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("Failed to load profile: %v", err)
		}
		candidates = append(candidates, p.Paths()...)
	}
	if len(candidates) == 0 {
		log.Fatal("no candidate templates given")
	}

	frame, err := snapshot.Load(*framePath)
	if err != nil {
		log.Fatalf("Failed to load frame: %v", err)
	}
	frame = filters.Apply(frame)

	store := templates.NewStore(cfg.Matching.TemplateRoot, nil)
	defer store.Close()
	locator := cv.NewLocator(store, cfg.LocatorOptions()...)

	groups := [][]string{candidates}
	if *all {
		groups = groups[:0]
		for _, c := range candidates {
			groups = append(groups, []string{c})
		}
	}

	var marks []snapshot.Mark
	for _, group := range groups {
		start := time.Now()
		match, found, err := locator.Locate(frame, group)
		elapsed := time.Since(start).Round(time.Millisecond)

		switch {
		case err != nil:
			fmt.Printf("%-40s error: %v\n", group[0], err)
		case !found:
			fmt.Printf("%-40s not found (%v)\n", label(group), elapsed)
		default:
			fmt.Printf("%-40s found at %d,%d (%v)\n", match.Template, match.Point.X, match.Point.Y, elapsed)
			marks = append(marks, snapshot.Mark{Point: match.Point, Color: color.NRGBA{R: 255, A: 255}})
		}
	}

	st := store.Stats()
	fmt.Printf("templates loaded: %d, failures: %d\n", st.Loads, st.Failures)

	if *outPath != "" {
		if err := snapshot.Save(snapshot.Annotate(frame, 12, marks...), *outPath); err != nil {
			log.Fatalf("Failed to save %s: %v", *outPath, err)
		}
	}
	if len(marks) == 0 {
		os.Exit(1)
	}
}

func label(group []string) string {
	if len(group) == 1 {
		return group[0]
	}
	return fmt.Sprintf("%d candidates", len(group))
}

func float32Flag(dst *float32) func(string) error {
	return func(s string) error {
		var v float32
		if _, err := fmt.Sscan(s, &v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
