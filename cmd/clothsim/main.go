package main

import (
	"fmt"
	"os"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/telemetry"
	"github.com/san-kum/clothsim/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string

	frames       int
	frameDt      float32
	strategy     string
	integrator   string
	backend      string
	workers      int
	validate     bool
	showPlot     bool
	showLive     bool
	frameRate    int
	serveMetrics string

	outPath    string
	view       string
	allSprings bool
	svgWidth   int
	svgHeight  int

	benchFrames int
	benchSizes  []int

	sweepKnobs  []string
	sweepMetric string
)

// main registers the commands and runs the interactive browser when no
// subcommand is given.
func main() {
	rootCmd := &cobra.Command{
		Use:           "clothsim",
		Short:         "mass-spring cloth simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".clothsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "reference", "preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate a cloth drop and archive the run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the energy series after the run")
	runCmd.Flags().BoolVar(&showLive, "live", false, "draw the cloth in the terminal while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --live")
	runCmd.Flags().StringVar(&serveMetrics, "serve-metrics", "", "serve prometheus metrics on this address, e.g. :9090")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energy and height of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output path, - for stdout")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw the final cloth of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "cloth.svg", "output path")
	exportSVGCmd.Flags().StringVar(&view, "view", "side", "projection (side, top, energy)")
	exportSVGCmd.Flags().BoolVar(&allSprings, "all", false, "draw shear and bend springs too")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time every accumulation strategy and backend",
		Args:  cobra.NoArgs,
		RunE:  benchStrategies,
	}
	benchCmd.Flags().IntVar(&benchFrames, "frames", 60, "frames per measurement")
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{10, 32, 64}, "cloth widths to measure")

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "run several presets side by side",
		RunE:  comparePresets,
	}
	addRunFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search cloth parameters for the smallest metric",
		Args:  cobra.NoArgs,
		RunE:  sweepParams,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepKnobs, "knob", nil, "knob and values, e.g. structural=2,5,10 (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimise")
	_ = sweepCmd.MarkFlagRequired("knob")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive terminal cloth browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive()
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportJSONCmd, exportSVGCmd, presetsCmd, benchCmd, compareCmd, sweepCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to simulate")
	cmd.Flags().Float32Var(&frameDt, "frame-dt", config.DefaultFrameDt, "seconds per frame")
	cmd.Flags().StringVar(&strategy, "strategy", "gather", "force accumulation (gather, colored, serial)")
	cmd.Flags().StringVar(&integrator, "integrator", "symplectic", "integrator (symplectic, explicit)")
	cmd.Flags().StringVar(&backend, "backend", "auto", "compute backend (auto, cpu, serial)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines, 0 for one per CPU")
	cmd.Flags().BoolVar(&validate, "validate", false, "fail as soon as a particle goes non-finite")
}

// loadConfig resolves preset, then config file, then explicitly set flags.
// Keys the file omits keep the preset's values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("frames") {
		cfg.Run.Frames = frames
	}
	if flags.Changed("frame-dt") {
		cfg.Run.FrameDt = frameDt
	}
	if flags.Changed("strategy") {
		cfg.Run.Strategy = strategy
	}
	if flags.Changed("integrator") {
		cfg.Run.Integrator = integrator
	}
	if flags.Changed("backend") {
		cfg.Run.Backend = backend
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = workers
	}
	if flags.Changed("validate") {
		cfg.Run.Validate = validate
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	logger, err := telemetry.NewLogger(telemetry.LogConfig{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
	})
	if err != nil {
		return telemetry.NopLogger()
	}
	return logger
}
