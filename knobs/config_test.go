package knobs

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero channels":     func(c *Config) { c.ChannelCount = 0 },
		"short pins":        func(c *Config) { c.Pins = c.Pins[:7] },
		"long output ids":   func(c *Config) { c.OutputIDs = append(c.OutputIDs, 29) },
		"count mismatch":    func(c *Config) { c.ChannelCount = 9 },
		"output id range":   func(c *Config) { c.OutputIDs[2] = 128 },
		"value max too low": func(c *Config) { c.ValueMax = 100 },
		"zero divisor":      func(c *Config) { c.FeedbackDivisor = 0 },
		"empty mask":        func(c *Config) { c.ButtonMask = 0 },
		"negative timeout":  func(c *Config) { c.BusTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Errorf("Validate = %v, want ErrConfig", err)
			}
		})
	}
}

func TestScaleDivisor(t *testing.T) {
	cfg := DefaultConfig()
	for vmax, want := range map[uint16]uint16{127: 1, 255: 2, 1023: 8, 4095: 32, 65535: 512} {
		cfg.ValueMax = vmax
		if got := cfg.ScaleDivisor(); got != want {
			t.Errorf("ScaleDivisor(%d) = %d, want %d", vmax, got, want)
		}
	}
}
