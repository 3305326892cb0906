// ABOUTME: Speaker configuration loaded from YAML and command-line flags
// ABOUTME: Flags override file values; Validate reports every problem at once
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config is the complete daemon configuration
type Config struct {
	Speaker SpeakerConfig `yaml:"speaker"`
	Hotspot HotspotConfig `yaml:"hotspot"`
	Audio   AudioConfig   `yaml:"audio"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Control ControlConfig `yaml:"control"`
	Log     LogConfig     `yaml:"log"`
	UI      UIConfig      `yaml:"ui"`
}

// SpeakerConfig describes the advertised service and session behaviour
type SpeakerConfig struct {
	// Name is the human-readable device name
	Name string `yaml:"name"`

	// Port is the stream listen port, also published in the service record
	Port int `yaml:"port"`

	ServiceType  string        `yaml:"service_type"`
	StartTimeout time.Duration `yaml:"start_timeout"`

	// Autostart starts a session as soon as the daemon is up
	Autostart bool `yaml:"autostart"`

	// ExitOnStop ends the daemon when the session is released
	ExitOnStop bool `yaml:"exit_on_stop"`
}

// HotspotConfig selects and configures the access point provider
type HotspotConfig struct {
	// Provider is "nmcli" or "static"
	Provider   string `yaml:"provider"`
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	Interface  string `yaml:"interface"`
}

// AudioConfig configures local playback
type AudioConfig struct {
	// Output is "oto" or "null"
	Output       string `yaml:"output"`
	BufferFrames int    `yaml:"buffer_frames"`
	Volume       int    `yaml:"volume"`
}

// BridgeConfig selects the inbound stream bridge
type BridgeConfig struct {
	// Kind is "websocket" or "none"
	Kind string `yaml:"kind"`
}

// ControlConfig configures the HTTP control API. An empty Addr disables it.
type ControlConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures log output
type LogConfig struct {
	File string `yaml:"file"`
}

// UIConfig configures the terminal UI
type UIConfig struct {
	TUI bool `yaml:"tui"`
}

// Default returns the built-in configuration
func Default() *Config {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "Speaker"
	}

	return &Config{
		Speaker: SpeakerConfig{
			Name:         name,
			Port:         5000,
			ServiceType:  "_airplay._tcp",
			StartTimeout: 30 * time.Second,
		},
		Hotspot: HotspotConfig{
			Provider: "nmcli",
		},
		Audio: AudioConfig{
			Output:       "oto",
			BufferFrames: 10,
			Volume:       100,
		},
		Bridge: BridgeConfig{
			Kind: "websocket",
		},
		Control: ControlConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			File: "speaker.log",
		},
		UI: UIConfig{
			TUI: true,
		},
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Speaker.Name == "" {
		errs = append(errs, errors.New("speaker.name is required"))
	}
	if cfg.Speaker.Port <= 0 || cfg.Speaker.Port > 65535 {
		errs = append(errs, fmt.Errorf("speaker.port %d is out of range", cfg.Speaker.Port))
	}
	if cfg.Speaker.StartTimeout < 0 {
		errs = append(errs, fmt.Errorf("speaker.start_timeout %v must not be negative", cfg.Speaker.StartTimeout))
	}

	switch cfg.Hotspot.Provider {
	case "nmcli":
	case "static":
		if cfg.Hotspot.SSID == "" {
			errs = append(errs, errors.New("hotspot.ssid is required for the static provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("hotspot.provider %q is invalid; valid values: nmcli, static", cfg.Hotspot.Provider))
	}
	if p := cfg.Hotspot.Passphrase; p != "" && (len(p) < 8 || len(p) > 63) {
		errs = append(errs, errors.New("hotspot.passphrase must be 8-63 characters"))
	}

	switch cfg.Audio.Output {
	case "oto", "null":
	default:
		errs = append(errs, fmt.Errorf("audio.output %q is invalid; valid values: oto, null", cfg.Audio.Output))
	}
	if cfg.Audio.BufferFrames <= 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_frames %d must be positive", cfg.Audio.BufferFrames))
	}
	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > 100 {
		errs = append(errs, fmt.Errorf("audio.volume %d must be between 0 and 100", cfg.Audio.Volume))
	}

	switch cfg.Bridge.Kind {
	case "websocket", "none":
	default:
		errs = append(errs, fmt.Errorf("bridge.kind %q is invalid; valid values: websocket, none", cfg.Bridge.Kind))
	}

	return errors.Join(errs...)
}
