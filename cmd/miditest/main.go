package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"seeknobs/debug"
	"seeknobs/knobs"
	"seeknobs/midi"
	"seeknobs/theme"
	"seeknobs/widgets"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts(ctx)
	case "sweep":
		err = sweep(ctx, arg(2, ""), arg(3, "0"))
	case "leds":
		err = testLEDs(ctx, arg(2, ""))
	case "poll":
		err = pollDevices(ctx)
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func arg(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println(widgets.RenderKeyHelp([]widgets.KeySection{{
		Title: "Commands:",
		Keys: []widgets.KeyBinding{
			{Key: "list", Desc: "List all MIDI ports"},
			{Key: "sweep", Desc: "[port] [channel] - sweep every knob CC from 0 to 127"},
			{Key: "leds", Desc: "[port] - show the knob colour wheel on a Launchpad"},
			{Key: "poll", Desc: "Watch for device changes"},
		},
	}}))
}

func listPorts(ctx context.Context) error {
	fmt.Println("(waiting up to 3 seconds...)")
	ports, err := midi.Scan(ctx)
	if err != nil {
		fmt.Println("Fix on macOS: sudo killall coreaudiod midiserver")
		return err
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ports.InNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range ports.OutNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func sweep(ctx context.Context, port, channel string) error {
	ch, err := strconv.Atoi(channel)
	if err != nil || ch < 0 || ch > 15 {
		return fmt.Errorf("bad channel %q", channel)
	}
	s, err := midi.OpenCCSender(ctx, port, uint8(ch))
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Sweeping on %s channel %d\n", s.Name(), s.Channel())
	for _, cc := range knobs.DefaultConfig().OutputIDs {
		fmt.Printf("  CC %d\n", cc)
		for v := 0; v < knobs.OutputRange; v += 8 {
			if err := s.Emit(cc, uint8(v)); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(20 * time.Millisecond):
			}
		}
		s.Emit(cc, knobs.OutputRange-1)
	}
	fmt.Printf("Done! %d messages sent\n", s.Sent())
	return nil
}

func testLEDs(ctx context.Context, port string) error {
	lp, err := midi.OpenLaunchpad(ctx, port)
	if err != nil {
		return err
	}
	defer lp.Close()

	fmt.Printf("Using output: %s\n", lp.Name())

	colors := make([]theme.RGB, midi.PadCount)
	for i := range colors {
		colors[i] = knobs.Wheel(i * knobs.WheelPeriod / midi.PadCount)
		if err := lp.SetPixel(i, colors[i]); err != nil {
			return err
		}
	}
	for row := 7; row >= 0; row-- {
		fmt.Println(widgets.RenderPadRow(colors[row*8 : row*8+8]))
	}

	fmt.Println("Press Enter to clear...")
	fmt.Scanln()
	fmt.Println("Done!")
	return nil
}

func pollDevices(ctx context.Context) error {
	if err := debug.Enable(debug.Options{Level: "info"}); err != nil {
		return err
	}
	defer debug.Sync()

	fmt.Println("Watching for device changes. Ctrl+C to exit.")
	dm := midi.NewDeviceManager(midi.ManagerConfig{Launchpad: true, PollRate: 2 * time.Second}, debug.Named("miditest"))
	go dm.Run(ctx)

	for ev := range dm.Events() {
		verb := "connected"
		if ev.Type == midi.DeviceDisconnected {
			verb = "disconnected"
		}
		fmt.Printf("[%s] %s %s: %s\n", time.Now().Format("15:04:05"), ev.Role, verb, ev.Port)
	}
	return nil
}
