// Command layoutbench renders a layout offscreen and reports frame timings.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	"liner-layout/internal/config"
	"liner-layout/internal/panel"
	"liner-layout/internal/remote"
	"liner-layout/internal/render"
	"liner-layout/internal/scene"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
)

func main() {
	count := flag.Int("n", 2000, "Number of random panels")
	seed := flag.Uint64("seed", 1, "Random seed")
	width := flag.Int("width", 1600, "Canvas width in pixels")
	height := flag.Int("height", 1000, "Canvas height in pixels")
	frames := flag.Int("frames", 60, "Frames to draw")
	zoom := flag.Float64("zoom", 0, "Zoom factor applied after fitting (0 keeps the fit)")
	out := flag.String("out", "", "Write the last frame to this PNG")
	server := flag.String("server", "", "Fetch the layout from a layout store instead of generating one")
	project := flag.String("project", "demo", "Project to fetch with -server")
	login := flag.String("login", "demo", "Login for -server")
	password := flag.String("password", "demo", "Password for -server")
	flag.Parse()

	p := message.NewPrinter(language.English)
	engine := config.DefaultEngine()

	var panels []panel.Panel
	if *server != "" {
		var err error
		panels, err = fetch(*server, *project, *login, *password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch layout: %v\n", err)
			os.Exit(1)
		}
		p.Printf("Fetched %d panels from %s/%s\n", len(panels), *server, *project)
	} else {
		panels = generate(*count, *seed)
		p.Printf("Generated %d panels (seed %d)\n", len(panels), *seed)
	}

	store := scene.NewStore(*project, scene.Options{})
	store.LoadPanels(panels)

	view := viewport.NewController(engine.Viewport())
	view.SetViewport(float64(*width), float64(*height))
	if bounds, ok := store.Bounds(); ok {
		view.FitToContent(bounds, 40)
	}
	if *zoom > 0 {
		view.ZoomBy(*zoom)
	}

	r := render.New(engine.Render(), shape.NewRegistry(engine.Handles()), view, store, nil)
	defer r.Close()

	durations := make([]float64, 0, *frames)
	for i := 0; i < *frames; i++ {
		start := time.Now()
		r.Draw()
		durations = append(durations, float64(time.Since(start))/float64(time.Millisecond))
	}
	slices.Sort(durations)

	st := r.Stats()
	p.Printf("\nCanvas %dx%d, zoom %.3f\n", *width, *height, view.Camera().Scale)
	p.Printf("  Drawn:      %d\n", st.Drawn)
	p.Printf("  Culled:     %d\n", st.Culled)
	p.Printf("  Invalid:    %d\n", st.Invalid)
	p.Printf("  Grid lines: %d\n", st.GridLines)
	p.Printf("  Labels:     %d\n", st.Labels)
	if len(durations) > 0 {
		p.Printf("\nFrame time over %d frames:\n", len(durations))
		p.Printf("  mean %.2f ms\n", stat.Mean(durations, nil))
		p.Printf("  p50  %.2f ms\n", stat.Quantile(0.50, stat.Empirical, durations, nil))
		p.Printf("  p95  %.2f ms\n", stat.Quantile(0.95, stat.Empirical, durations, nil))
		p.Printf("  max  %.2f ms\n", durations[len(durations)-1])
	}

	if *out != "" {
		if err := savePNG(*out, r); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote %s\n", *out)
	}
}

func fetch(server, project, login, password string) ([]panel.Panel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), remote.DefaultTimeout)
	defer cancel()
	c := remote.NewClient(server, nil)
	if err := c.Login(ctx, login, password); err != nil {
		return nil, err
	}
	return c.FetchLayout(ctx, project)
}

// generate lays out n panels on a loose grid with random sizes, shapes and
// rotations.
func generate(n int, seed uint64) []panel.Panel {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	cols := 1
	for cols*cols < n {
		cols++
	}
	out := make([]panel.Panel, 0, n)
	for i := 0; i < n; i++ {
		sh := panel.Shapes[rng.IntN(len(panel.Shapes))]
		w := 5 + rng.Float64()*25
		h := 5 + rng.Float64()*15
		if sh == panel.Patch {
			h = w
		}
		out = append(out, panel.Panel{
			ID:       fmt.Sprintf("bench-%d", i),
			X:        float64(i%cols) * 40,
			Y:        float64(i/cols) * 30,
			Width:    w,
			Height:   h,
			Rotation: float64(rng.IntN(24)) * 15,
			Shape:    sh,
			Meta:     panel.Meta{Label: fmt.Sprintf("P%d", i+1)},
		})
	}
	return out
}

func savePNG(path string, r *render.Renderer) error {
	img := r.Last()
	if img == nil {
		img = r.Draw()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
