// Package main is the entry point for the headless geo-sequencer server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GiesN/geo-sequencer/pkg/api"
	"github.com/GiesN/geo-sequencer/pkg/config"
	"github.com/GiesN/geo-sequencer/pkg/midiout"
	"github.com/GiesN/geo-sequencer/pkg/sequencer"
	"github.com/GiesN/geo-sequencer/pkg/source"
)

func main() {
	port := flag.Int("port", 8080, "API server port")
	configPath := flag.String("config", "", "Config file path (TOML)")
	dry := flag.Bool("dry", false, "Log notes instead of sending MIDI")
	flag.Parse()

	if err := run(*port, *configPath, *dry); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(port int, configPath string, dry bool) error {
	log, err := zap.NewProduction()
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

	var sink sequencer.Sink
	if dry {
		sink = midiout.NewLogSink(log)
	} else {
		portSink, err := midiout.Open(cfg.MIDI.PortName)
		if err != nil {
			return err
		}
		defer portSink.Close()
		defer midiout.CloseDriver()
		sink = portSink
	}

	sched, err := sequencer.NewScheduler(cfg.SchedulerConfig(), sink, sequencer.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	src := source.NewBlitzortungSource(cfg.ReconnectDelay(), cfg.Blitzortung.MaxReconnectAttempts, log)
	strikes := make(chan source.Strike, 64)
	go func() {
		if err := src.Run(ctx, strikes); err != nil && ctx.Err() == nil {
			log.Error("strike source stopped", zap.Error(err))
		}
		close(strikes)
	}()

	go func() {
		channel := uint8(cfg.MIDI.Channel)
		for strike := range strikes {
			pitch, velocity := mapper.Map(strike.Latitude, strike.Longitude)
			sched.Submit(sequencer.NoteRequest{
				Pitch:    pitch,
				Velocity: velocity,
				Channel:  channel,
			})
		}
		sched.Drain()
	}()

	server := api.NewServer(sched, cfg, src.Name())
	log.Info("geo-sequencer API listening",
		zap.Int("port", port),
		zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", port)),
	)
	go func() {
		if err := server.Run(port); err != nil {
			log.Error("API server stopped", zap.Error(err))
			stop()
		}
	}()

	<-sched.Done()
	// Give the final note-offs a moment on the wire.
	time.Sleep(50 * time.Millisecond)
	return nil
}
