package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/export"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/models"
	"github.com/san-kum/clothsim/internal/optim"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
	"github.com/san-kum/clothsim/internal/storage"
	"github.com/san-kum/clothsim/internal/telemetry"
	"github.com/san-kum/clothsim/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var m *telemetry.Metrics
	if serveMetrics != "" {
		reg := prometheus.NewRegistry()
		m = telemetry.NewMetrics(reg)
		srv := &http.Server{Addr: serveMetrics, Handler: metricsMux(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", serveMetrics))
	}

	p, err := cfg.Params()
	if err != nil {
		return err
	}
	cloth, err := cfg.BuildCloth()
	if err != nil {
		return err
	}

	ms := metrics.Defaults()
	rec := metrics.NewRecorder()
	extra := []sim.Option{sim.WithLogger(logger), sim.WithMetrics(m), sim.WithObserver(rec)}
	for _, mt := range ms {
		extra = append(extra, sim.WithObserver(mt))
	}
	if showLive {
		live := tui.NewLiveRenderer(os.Stdout, cfg.Name, frameRate)
		live.Start()
		defer live.Stop()
		extra = append(extra, sim.WithObserver(live))
	}
	opts, err := cfg.SessionOptions(extra...)
	if err != nil {
		return err
	}

	engine := sim.NewEngine(opts...)
	h, err := engine.LoadTopology(cloth.Particles, cloth.Springs)
	if err != nil {
		return err
	}
	defer engine.Close(h)

	logger.Info("run started",
		zap.String("preset", cfg.Name),
		zap.Int("particles", len(cloth.Particles)),
		zap.Int("springs", len(cloth.Springs)),
		zap.Int("frames", cfg.Run.Frames),
	)

	start := time.Now()
	done := 0
	for ; done < cfg.Run.Frames; done++ {
		if err := engine.Step(ctx, h, cfg.Run.FrameDt, p); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("run interrupted", zap.Int("frames", done))
				break
			}
			return err
		}
	}
	elapsed := time.Since(start)

	final, err := engine.ReadParticles(h)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.Run{
		Meta: storage.RunMetadata{
			Preset:     cfg.Name,
			Width:      cfg.Cloth.Width,
			Height:     cfg.Cloth.Height,
			Spacing:    cfg.Cloth.Spacing,
			Sphere:     storage.SphereMetadata{Center: cfg.Physics.Sphere.Center, Radius: cfg.Physics.Sphere.Radius},
			Particles:  len(cloth.Particles),
			Springs:    len(cloth.Springs),
			Frames:     done,
			FrameDt:    cfg.Run.FrameDt,
			Strategy:   cfg.Run.Strategy,
			Integrator: cfg.Run.Integrator,
			Backend:    cfg.Run.Backend,
			WallTime:   elapsed,
			Metrics:    metrics.Summary(ms),
		},
		Samples:   rec.Samples(),
		Particles: final,
	})
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d\n", done)
	fmt.Println("\nmetrics:")
	printMetrics(metrics.Summary(ms))

	if showPlot {
		fmt.Println()
		plotSamples(rec.Samples())
	}

	if serveMetrics != "" && ctx.Err() == nil {
		fmt.Printf("\nserving metrics on %s, ctrl+c to exit\n", serveMetrics)
		<-ctx.Done()
	}
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	return mux
}

func printMetrics(values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tGRID\tFRAMES\tDT\tSTRATEGY\tWALL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%.4fs\t%s\t%v\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Width, run.Height,
			run.Frames,
			run.FrameDt,
			run.Strategy,
			run.WallTime.Round(time.Millisecond),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("frames: %d\n\n", len(samples))

	plotSamples(samples)
	return nil
}

func plotSamples(samples []metrics.Sample) {
	if len(samples) == 0 {
		return
	}
	series := []struct {
		caption string
		value   func(metrics.Sample) float64
	}{
		{"total energy", func(s metrics.Sample) float64 { return s.Total() }},
		{"kinetic energy", func(s metrics.Sample) float64 { return s.Kinetic }},
		{"lowest particle height", func(s metrics.Sample) float64 { return float64(s.MinY) }},
		{"substeps per frame", func(s metrics.Sample) float64 { return float64(s.Substeps) }},
	}

	for _, sr := range series {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = sr.value(s)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sr.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	particles, err := st.LoadParticles(runID)
	if err != nil {
		return err
	}

	return export.ExportJSON(outPath, export.NewExportData(*meta, samples, particles))
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var svg string
	if view == "energy" {
		samples, err := st.LoadFrames(runID)
		if err != nil {
			return err
		}
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = s.Total()
		}
		svg = export.SeriesToSVG(values, svgWidth, svgHeight, "#00ff00")
	} else {
		v, err := export.ParseView(view)
		if err != nil {
			return err
		}
		particles, err := st.LoadParticles(runID)
		if err != nil {
			return err
		}
		// springs are not archived; the grid rebuilds them exactly
		cloth, err := models.NewClothGrid(meta.Width, meta.Height, meta.Spacing, 0)
		if err != nil {
			return err
		}
		sphere := dynamo.Sphere{Center: meta.Sphere.Center, Radius: meta.Sphere.Radius}
		svg = export.ClothToSVG(particles, cloth.Springs, sphere, v, svgWidth, svgHeight, allSprings)
	}

	if svg == "" {
		return fmt.Errorf("run %s has nothing to draw", runID)
	}
	if err := os.WriteFile(outPath, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}

func benchStrategies(cmd *cobra.Command, args []string) error {
	p := dynamo.DefaultParams()
	ctx := context.Background()

	backends := []compute.Backend{compute.NewSerialBackend(), compute.NewCPUBackend(0)}
	strategies := []physics.Strategy{physics.StrategyGather, physics.StrategyColored, physics.StrategySerial}

	fmt.Printf("benchmarking %d frames of %.3fs\n\n", benchFrames, p.DeltaTime)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GRID\tSPRINGS\tSTRATEGY\tBACKEND\tWORKERS\tTIME\tFRAMES/SEC")

	for _, size := range benchSizes {
		cloth, err := models.NewClothGrid(size, size, models.DefaultSpacing, models.DefaultFallHeight)
		if err != nil {
			return err
		}
		for _, st := range strategies {
			for _, b := range backends {
				if st == physics.StrategySerial && b.Workers() > 1 {
					continue
				}
				s, err := sim.NewSession(cloth.Particles, cloth.Springs, sim.WithStrategy(st), sim.WithBackend(b))
				if err != nil {
					return err
				}

				start := time.Now()
				if err := s.Run(ctx, benchFrames, p.DeltaTime, p); err != nil {
					return err
				}
				elapsed := time.Since(start)

				fmt.Fprintf(w, "%dx%d\t%d\t%s\t%s\t%d\t%v\t%.0f\n",
					size, size, len(cloth.Springs), st, b.Name(), b.Workers(),
					elapsed.Round(time.Microsecond), float64(benchFrames)/elapsed.Seconds())
			}
		}
	}

	return w.Flush()
}

func comparePresets(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = config.ListPresets()
	}

	type tracked struct {
		drift      *metrics.EnergyDrift
		stability  *metrics.Stability
		collisions *metrics.Collisions
	}

	runs := make([]sim.Run, 0, len(names))
	track := make([]tracked, 0, len(names))
	var frameCount int
	var dt float32
	for _, name := range names {
		preset = name
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := cfg.Params()
		if err != nil {
			return err
		}
		cloth, err := cfg.BuildCloth()
		if err != nil {
			return err
		}

		t := tracked{
			drift:      metrics.NewEnergyDrift(),
			stability:  metrics.NewStability(metrics.DefaultStabilityThreshold),
			collisions: metrics.NewCollisions(),
		}
		// sessions run concurrently, so each gets a serial backend
		cfg.Run.Backend = "serial"
		opts, err := cfg.SessionOptions(sim.WithObserver(t.drift), sim.WithObserver(t.stability), sim.WithObserver(t.collisions))
		if err != nil {
			return err
		}

		runs = append(runs, sim.Run{Name: name, Particles: cloth.Particles, Springs: cloth.Springs, Params: p, Options: opts})
		track = append(track, t)
		frameCount, dt = cfg.Run.Frames, cfg.Run.FrameDt
	}

	fmt.Printf("comparing %s (%d frames of %.3fs)\n\n", strings.Join(names, ", "), frameCount, dt)

	results, err := sim.NewEnsemble(frameCount, dt).Run(context.Background(), runs)
	if err != nil {
		return err
	}

	fmt.Printf("%-12s  %-10s  %-12s  %-10s  %-10s  %-10s\n", "preset", "min_y", "energy_drift", "stability", "collisions", "time_ms")
	fmt.Println(strings.Repeat("-", 72))
	for i, r := range results {
		minY := float32(0)
		for j, pt := range r.Particles {
			if j == 0 || pt.Position.Y() < minY {
				minY = pt.Position.Y()
			}
		}
		fmt.Printf("%-12s  %10.4f  %12.2e  %10.3f  %10.0f  %10.2f\n",
			r.Name, minY, track[i].drift.Value(), track[i].stability.Value(), track[i].collisions.Value(),
			float64(r.WallTime.Microseconds())/1000)
	}
	return nil
}

func sweepParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := metrics.ByName(sweepMetric); err != nil {
		return err
	}

	names := make([]string, 0, len(sweepKnobs))
	ranges := make([][]float64, 0, len(sweepKnobs))
	for _, k := range sweepKnobs {
		name, values, err := parseKnob(k)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	if cfg.Run.Workers > 0 {
		g.WithParallelism(cfg.Run.Workers)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	newMetric := func() sim.Metric {
		m, _ := metrics.ByName(sweepMetric)
		return m
	}
	fmt.Printf("sweeping %d points of %s, %d frames each\n\n", len(g.Points()), cfg.Name, cfg.Run.Frames)
	best, all, err := g.Search(ctx, cfg, newMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for _, pt := range all {
		if pt.Params == nil {
			continue
		}
		cols := make([]string, len(names))
		for i, name := range names {
			cols[i] = strconv.FormatFloat(pt.Params[name], 'g', -1, 64)
		}
		value := fmt.Sprintf("%.6g", pt.Value)
		if pt.Err != nil {
			value = "failed: " + pt.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cols, "\t"), value)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6g at %v\n", sweepMetric, best.Value, best.Params)
	return nil
}

// parseKnob splits "name=v1,v2,..." into the knob name and its values.
func parseKnob(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("knob %q: expected name=v1,v2", s)
	}
	parts := strings.Split(list, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("knob %s: %w", name, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}
