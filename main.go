package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seeknobs/config"
	"seeknobs/debug"
	"seeknobs/knobs"
	"seeknobs/midi"
	"seeknobs/monitor"
	"seeknobs/sim"
	"seeknobs/theme"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/seeknobs/config.json)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	busKind := flag.String("bus", "", "knob source: sim or midi (overrides config)")
	debugMode := flag.Bool("debug", false, "log at debug level")
	listPorts := flag.Bool("list", false, "list MIDI ports and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *initConfig, *busKind, *debugMode, *listPorts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, initConfig bool, busKind string, debugMode, listPorts bool) error {
	level := "info"
	if debugMode {
		level = "debug"
	}
	if err := debug.Enable(debug.Options{Level: level}); err != nil {
		return err
	}
	defer debug.Sync()
	log := debug.Named("main")

	if listPorts {
		return printPorts(ctx, os.Stdout)
	}

	if initConfig {
		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		path := configPath
		if path == "" {
			path, _ = config.ConfigPath()
		}
		fmt.Println("Wrote", path)
		return nil
	}

	cfg, err := config.Load(configPath, debug.Named(""))
	if err != nil {
		return err
	}
	if busKind != "" {
		cfg.Bus.Kind = config.BusKind(busKind)
	}
	if !debugMode {
		level = cfg.Log.Level
	}
	if cfg.Log.File != "" || level != "info" {
		if err := debug.Enable(debug.Options{Level: level, File: cfg.Log.File}); err != nil {
			return err
		}
		log = debug.Named("main")
	}

	core, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	bus, closeBus, err := openBus(ctx, cfg, core)
	if err != nil {
		return err
	}
	defer closeBus()

	feedback := knobs.WheelFeedback(core.FeedbackDivisor)
	palette := theme.DefaultPalette()
	if cfg.Indicator.Palette != "" {
		palette, err = theme.LoadGPL(cfg.Indicator.Palette)
		if err != nil {
			return err
		}
		feedback = knobs.PaletteFeedback(palette, core.ValueMax)
	}

	var devices *midi.DeviceManager
	if core.Emit || cfg.Indicator.Launchpad {
		devices = midi.NewDeviceManager(midi.ManagerConfig{
			EmitPort:      cfg.Emit.Port,
			Channel:       uint8(cfg.Emit.Channel),
			Launchpad:     cfg.Indicator.Launchpad,
			LaunchpadPort: cfg.Indicator.LaunchpadPort,
		}, debug.Named(""))
		go devices.Run(ctx)
	}

	var indicator knobs.IndicatorSink
	if cfg.Indicator.Launchpad {
		indicator = knobs.BrightnessIndicator{Sink: devices.Indicator(), Brightness: cfg.Brightness}
	}

	sched, err := knobs.NewScheduler(bus, core, feedback, indicator)
	if err != nil {
		return err
	}

	opts := []knobs.PipelineOption{
		knobs.WithLogger(debug.Named("pipeline")),
		knobs.WithReporter(monitor.New(os.Stdout, cfg.ReportInterval(), theme.New(palette), core.ButtonMask)),
	}
	if core.Emit {
		gate, err := knobs.NewGate(core)
		if err != nil {
			return err
		}
		opts = append(opts, knobs.WithEmission(gate, devices.Emitter()))
	}

	pipeline, err := knobs.NewPipeline(sched, opts...)
	if err != nil {
		return err
	}

	log.Infow("Polling",
		"bus", cfg.Bus.Kind, "channels", core.ChannelCount, "emit", core.Emit,
		"policy", core.InitialPolicy.String(), "launchpad", cfg.Indicator.Launchpad)

	err = pipeline.Run(ctx)
	st := pipeline.Stats()
	log.Infow("Stopped", "ticks", st.Ticks, "failures", st.BusFailures, "emissions", st.Emissions)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openBus returns the knob source selected by cfg.Bus.Kind
func openBus(ctx context.Context, cfg *config.Config, core knobs.Config) (knobs.Bus, func(), error) {
	switch cfg.Bus.Kind {
	case config.BusMIDI:
		in, err := midi.OpenInputBus(ctx, cfg.Bus.MIDIInPort, midi.InputConfig{
			Pins:       core.Pins,
			Controls:   core.OutputIDs,
			ButtonMask: core.ButtonMask,
			NoteBase:   uint8(cfg.Bus.NoteBase),
			ValueMax:   core.ValueMax,
		})
		if err != nil {
			return nil, nil, err
		}
		debug.Named("main").Infow("Listening", "port", in.Name())
		return in, func() { in.Close() }, nil

	case config.BusSim:
		fail := make([]uint8, 0, len(cfg.Sim.FailPins))
		for _, p := range cfg.Sim.FailPins {
			fail = append(fail, uint8(p))
		}
		latency := time.Duration(cfg.Sim.LatencyMs) * time.Millisecond
		if latency <= 0 {
			// keep the simulated loop near expander speed instead of spinning
			latency = time.Millisecond
		}
		return sim.New(sim.Options{
			Seed:     cfg.Sim.Seed,
			Latency:  latency,
			ValueMax: core.ValueMax,
			FailPins: fail,
		}), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown bus kind %q", cfg.Bus.Kind)
}

func printPorts(ctx context.Context, w io.Writer) error {
	ports, err := midi.Scan(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "=== MIDI Input Ports ===")
	for i, name := range ports.InNames() {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	fmt.Fprintln(w, "\n=== MIDI Output Ports ===")
	for i, name := range ports.OutNames() {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	return nil
}
