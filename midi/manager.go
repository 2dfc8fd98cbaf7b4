package midi

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"seeknobs/knobs"
	"seeknobs/theme"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// DeviceEvent is emitted when an output is attached or detached
type DeviceEvent struct {
	Type DeviceEventType
	Role DeviceRole
	Port string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceRole says which sink a port serves
type DeviceRole int

const (
	RoleEmitter DeviceRole = iota
	RoleIndicator
)

func (r DeviceRole) String() string {
	if r == RoleIndicator {
		return "indicator"
	}
	return "emitter"
}

// ManagerConfig selects the ports the manager attaches
type ManagerConfig struct {
	EmitPort      string // substring match; empty picks the first non-Launchpad output
	Channel       uint8
	Launchpad     bool
	LaunchpadPort string
	PollRate      time.Duration
}

// portSource lists and opens outputs by name
type portSource interface {
	OutNames(ctx context.Context) ([]string, error)
	OpenOut(ctx context.Context, name string) (SendFunc, func() error, error)
}

type systemPorts struct{}

func (systemPorts) OutNames(ctx context.Context) ([]string, error) {
	ports, err := Scan(ctx)
	if err != nil {
		return nil, err
	}
	return ports.OutNames(), nil
}

func (systemPorts) OpenOut(ctx context.Context, name string) (SendFunc, func() error, error) {
	ports, err := Scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, out := range ports.Outs {
		if out.String() != name {
			continue
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, nil, fmt.Errorf("open output: %w", err)
		}
		return send, out.Close, nil
	}
	return nil, nil, ErrPortNotFound
}

// DeviceManager handles hot-plug of the CC output and the Launchpad mirror.
// Emitter and Indicator can be handed to the pipeline before anything is
// attached; they fail with ErrNotConnected until a device appears.
type DeviceManager struct {
	cfg    ManagerConfig
	src    portSource
	logger *zap.SugaredLogger

	cc     atomic.Pointer[CCSender]
	lp     atomic.Pointer[Launchpad]
	events chan DeviceEvent
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(cfg ManagerConfig, logger *zap.SugaredLogger) *DeviceManager {
	return newDeviceManager(cfg, systemPorts{}, logger)
}

func newDeviceManager(cfg ManagerConfig, src portSource, logger *zap.SugaredLogger) *DeviceManager {
	if cfg.PollRate <= 0 {
		cfg.PollRate = time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DeviceManager{
		cfg:    cfg,
		src:    src,
		logger: logger.Named("devices"),
		events: make(chan DeviceEvent, 16),
	}
}

// Events returns a channel of attach/detach events. Events are dropped when
// nobody reads them.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Emitter forwards to the attached CC output
func (dm *DeviceManager) Emitter() knobs.EmissionSink {
	return managedEmitter{dm}
}

// Indicator forwards to the attached Launchpad
func (dm *DeviceManager) Indicator() knobs.IndicatorSink {
	return managedIndicator{dm}
}

// Sender returns the attached CC output, or nil
func (dm *DeviceManager) Sender() *CCSender {
	return dm.cc.Load()
}

// Launchpad returns the attached Launchpad, or nil
func (dm *DeviceManager) Launchpad() *Launchpad {
	return dm.lp.Load()
}

// Run polls for port changes until ctx is done (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.cfg.PollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	names, err := dm.src.OutNames(ctx)
	if err != nil {
		// Keep whatever is attached; a hung scan is not a disconnect
		dm.logger.Warnw("Port scan failed", "error", err)
		return
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}

	if cur := dm.cc.Load(); cur != nil && !seen[cur.Name()] {
		dm.cc.Store(nil)
		cur.Close()
		dm.notify(DeviceEvent{Type: DeviceDisconnected, Role: RoleEmitter, Port: cur.Name()})
	}
	if cur := dm.lp.Load(); cur != nil && !seen[cur.Name()] {
		dm.lp.Store(nil)
		cur.Close()
		dm.notify(DeviceEvent{Type: DeviceDisconnected, Role: RoleIndicator, Port: cur.Name()})
	}

	if dm.cc.Load() == nil {
		if name, ok := pickName(names, dm.cfg.EmitPort); ok {
			dm.attachEmitter(ctx, name)
		}
	}
	if dm.cfg.Launchpad && dm.lp.Load() == nil {
		if name, ok := pickLaunchpad(names, dm.cfg.LaunchpadPort); ok {
			dm.attachLaunchpad(ctx, name)
		}
	}
}

func (dm *DeviceManager) attachEmitter(ctx context.Context, name string) {
	send, closer, err := dm.src.OpenOut(ctx, name)
	if err != nil {
		dm.logger.Warnw("Failed to open CC output", "port", name, "error", err)
		return
	}
	s := NewCCSender(name, dm.cfg.Channel, send)
	s.closer = closer
	dm.cc.Store(s)
	dm.notify(DeviceEvent{Type: DeviceConnected, Role: RoleEmitter, Port: name})
}

func (dm *DeviceManager) attachLaunchpad(ctx context.Context, name string) {
	send, closer, err := dm.src.OpenOut(ctx, name)
	if err != nil {
		dm.logger.Warnw("Failed to open Launchpad", "port", name, "error", err)
		return
	}
	lp, err := NewLaunchpad(name, send)
	if err != nil {
		closer()
		dm.logger.Warnw("Failed to set up Launchpad", "port", name, "error", err)
		return
	}
	lp.closer = closer
	dm.lp.Store(lp)
	dm.notify(DeviceEvent{Type: DeviceConnected, Role: RoleIndicator, Port: name})
}

func (dm *DeviceManager) notify(ev DeviceEvent) {
	verb := "connected"
	if ev.Type == DeviceDisconnected {
		verb = "disconnected"
	}
	dm.logger.Infow("Device "+verb, "role", ev.Role.String(), "port", ev.Port)

	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	if s := dm.cc.Swap(nil); s != nil {
		s.Close()
	}
	if lp := dm.lp.Swap(nil); lp != nil {
		lp.Close()
	}
}

type managedEmitter struct{ dm *DeviceManager }

func (e managedEmitter) Emit(control, value uint8) error {
	s := e.dm.cc.Load()
	if s == nil {
		return ErrNotConnected
	}
	return s.Emit(control, value)
}

type managedIndicator struct{ dm *DeviceManager }

func (i managedIndicator) SetPixel(index int, c theme.RGB) error {
	lp := i.dm.lp.Load()
	if lp == nil {
		return ErrNotConnected
	}
	return lp.SetPixel(index, c)
}
