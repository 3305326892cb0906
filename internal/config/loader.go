// ABOUTME: YAML config loading and command-line flag overrides
// ABOUTME: Flags that are set explicitly win over the file
package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path over the defaults and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// Parse builds the configuration from command-line arguments. A -config file
// is applied over the defaults first; flags given explicitly win.
func Parse(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	def := Default()
	configPath := fs.String("config", "", "YAML configuration file")
	deviceName := fs.String("name", def.Speaker.Name, "Speaker name")
	port := fs.Int("port", def.Speaker.Port, "Stream listen port")
	controlAddr := fs.String("control-addr", def.Control.Addr, "Control API address (empty disables)")
	provider := fs.String("hotspot", def.Hotspot.Provider, "Access point provider: nmcli or static")
	ssid := fs.String("ssid", "", "Network name (generated when empty)")
	passphrase := fs.String("passphrase", "", "Network passphrase (generated when empty)")
	iface := fs.String("interface", "", "Wireless interface for the access point")
	bridgeKind := fs.String("bridge", def.Bridge.Kind, "Stream bridge: websocket or none")
	outputName := fs.String("output", def.Audio.Output, "Audio output: oto or null")
	bufferFrames := fs.Int("buffer-frames", def.Audio.BufferFrames, "Jitter buffer capacity in frames")
	volume := fs.Int("volume", def.Audio.Volume, "Initial volume (0-100)")
	logFile := fs.String("log-file", def.Log.File, "Log file path")
	noTUI := fs.Bool("no-tui", false, "Disable the terminal UI")
	autostart := fs.Bool("autostart", false, "Start a session on launch")
	exitOnStop := fs.Bool("exit-on-stop", false, "Exit when the session stops")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := def
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", *configPath, err)
		}
		err = decode(f, cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", *configPath, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			cfg.Speaker.Name = *deviceName
		case "port":
			cfg.Speaker.Port = *port
		case "control-addr":
			cfg.Control.Addr = *controlAddr
		case "hotspot":
			cfg.Hotspot.Provider = *provider
		case "ssid":
			cfg.Hotspot.SSID = *ssid
		case "passphrase":
			cfg.Hotspot.Passphrase = *passphrase
		case "interface":
			cfg.Hotspot.Interface = *iface
		case "bridge":
			cfg.Bridge.Kind = *bridgeKind
		case "output":
			cfg.Audio.Output = *outputName
		case "buffer-frames":
			cfg.Audio.BufferFrames = *bufferFrames
		case "volume":
			cfg.Audio.Volume = *volume
		case "log-file":
			cfg.Log.File = *logFile
		case "no-tui":
			cfg.UI.TUI = !*noTUI
		case "autostart":
			cfg.Speaker.Autostart = *autostart
		case "exit-on-stop":
			cfg.Speaker.ExitOnStop = *exitOnStop
		}
	})

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
