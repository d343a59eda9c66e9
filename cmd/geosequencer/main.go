// Package main is the entry point for the geosequencer CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GiesN/geo-sequencer/pkg/api"
	"github.com/GiesN/geo-sequencer/pkg/config"
	"github.com/GiesN/geo-sequencer/pkg/geo"
	"github.com/GiesN/geo-sequencer/pkg/midiout"
	"github.com/GiesN/geo-sequencer/pkg/sequencer"
	"github.com/GiesN/geo-sequencer/pkg/source"
	"github.com/GiesN/geo-sequencer/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	sourceName string
	dryRun     bool
	immediate  bool
	verbose    bool
	interval   float64
	apiPort    int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geosequencer",
	Short: "Turn geographic point events into quantized MIDI notes",
	Long: `geosequencer maps geographic point events (live lightning strikes from
the Blitzortung network, or synthetic test sources) onto musical notes and
plays them on a MIDI output, optionally snapped to a tempo grid with swing.

Examples:
  geosequencer run --source blitzortung
  geosequencer run --source circle --dry
  geosequencer run --source random --immediate
  geosequencer tui --source blitzortung
  geosequencer serve --api-port 8080
  geosequencer ports`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sequencer engine",
	RunE:  runRun,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the engine with a live terminal monitor",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with the REST monitoring API enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		if apiPort == 0 {
			apiPort = 8080
		}
		return runRun(cmd, args)
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI output ports",
	RunE:  runPorts,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (TOML)")
	rootCmd.PersistentFlags().StringVarP(&sourceName, "source", "s", "blitzortung", "Strike source (blitzortung, random, circle)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry", false, "Log notes instead of sending MIDI")
	rootCmd.PersistentFlags().BoolVar(&immediate, "immediate", false, "Bypass the tempo grid and fire notes on arrival")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().Float64Var(&interval, "interval", 2.0, "Emission interval in seconds for synthetic sources")
	rootCmd.PersistentFlags().IntVar(&apiPort, "api-port", 0, "Serve the monitoring API on this port (0 = off)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}

func buildSource(cfg *config.Config, log *zap.Logger) (source.Source, error) {
	switch strings.ToLower(sourceName) {
	case "blitzortung":
		return source.NewBlitzortungSource(cfg.ReconnectDelay(), cfg.Blitzortung.MaxReconnectAttempts, log), nil
	case "random":
		return source.NewRandomSource(time.Duration(interval * float64(time.Second))), nil
	case "circle":
		return source.NewCircleSource(45, 8, 20, time.Duration(interval*float64(time.Second))), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want blitzortung, random or circle)", sourceName)
	}
}

func buildSink(cfg *config.Config, log *zap.Logger) (sequencer.Sink, func(), error) {
	if dryRun {
		return midiout.NewLogSink(log), func() {}, nil
	}
	port, err := midiout.Open(cfg.MIDI.PortName)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		port.Close()
		midiout.CloseDriver()
	}
	log.Info("MIDI port opened", zap.String("port", port.String()))
	return port, cleanup, nil
}

// pump feeds mapped strikes into the scheduler until the source stops,
// then drains. events, when non-nil, receives a best-effort copy of each
// accepted note for the TUI.
func pump(ctx context.Context, src source.Source, mapper *geo.Mapper,
	sched *sequencer.Scheduler, channel uint8, events chan<- tui.NoteEvent) error {

	strikes := make(chan source.Strike, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(ctx, strikes)
		close(strikes)
	}()

	for strike := range strikes {
		pitch, velocity := mapper.Map(strike.Latitude, strike.Longitude)
		sched.Submit(sequencer.NoteRequest{
			Pitch:    pitch,
			Velocity: velocity,
			Channel:  channel,
		})
		if events != nil {
			select {
			case events <- tui.NoteEvent{
				Pitch:     pitch,
				Velocity:  velocity,
				Channel:   channel,
				Latitude:  strike.Latitude,
				Longitude: strike.Longitude,
				At:        time.Now(),
			}:
			default:
			}
		}
	}

	sched.Drain()
	<-sched.Done()

	if err := <-errc; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mapper, err := cfg.Mapper()
	if err != nil {
		return err
	}

	sink, cleanup, err := buildSink(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	schedCfg := cfg.SchedulerConfig()
	if immediate {
		schedCfg.Enabled = false
	}
	sched, err := sequencer.NewScheduler(schedCfg, sink, sequencer.WithLogger(log))
	if err != nil {
		return err
	}

	src, err := buildSource(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	port := apiPort
	if port == 0 && cfg.API.Enabled {
		port = cfg.API.Port
	}
	if port != 0 {
		server := api.NewServer(sched, cfg, src.Name())
		go func() {
			if err := server.Run(port); err != nil {
				log.Error("API server stopped", zap.Error(err))
			}
		}()
		log.Info("monitoring API started", zap.Int("port", port))
	}

	log.Info("sequencer running",
		zap.String("source", src.Name()),
		zap.String("scale", cfg.Sequencer.ScaleType),
		zap.Bool("quantized", schedCfg.Enabled),
	)
	return pump(ctx, src, mapper, sched, uint8(cfg.MIDI.Channel), nil)
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Logging would fight bubbletea for the terminal.
	log := zap.NewNop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mapper, err := cfg.Mapper()
	if err != nil {
		return err
	}

	sink, cleanup, err := buildSink(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	schedCfg := cfg.SchedulerConfig()
	if immediate {
		schedCfg.Enabled = false
	}
	sched, err := sequencer.NewScheduler(schedCfg, sink, sequencer.WithLogger(log))
	if err != nil {
		return err
	}

	src, err := buildSource(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	events := make(chan tui.NoteEvent, 32)
	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- pump(ctx, src, mapper, sched, uint8(cfg.MIDI.Channel), events)
	}()

	p := tea.NewProgram(tui.New(sched, src.Name(), events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		cancel()
		<-pumpDone
		return err
	}

	cancel()
	return <-pumpDone
}

func runPorts(cmd *cobra.Command, args []string) error {
	defer midiout.CloseDriver()
	ports := midiout.ListPorts()
	if len(ports) == 0 {
		fmt.Println("No MIDI output ports available.")
		return nil
	}
	fmt.Println("Available MIDI output ports:")
	for i, name := range ports {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}
