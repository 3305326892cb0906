// ABOUTME: Entry point for the hotspot speaker daemon
// ABOUTME: Wires access point, playback, bridge, advertisement, control API and TUI
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sendspin/speaker-go/internal/bridge"
	"github.com/Sendspin/speaker-go/internal/config"
	"github.com/Sendspin/speaker-go/internal/control"
	"github.com/Sendspin/speaker-go/internal/discovery"
	"github.com/Sendspin/speaker-go/internal/hotspot"
	"github.com/Sendspin/speaker-go/internal/observe"
	"github.com/Sendspin/speaker-go/internal/player"
	"github.com/Sendspin/speaker-go/internal/session"
	"github.com/Sendspin/speaker-go/internal/ui"
	"github.com/Sendspin/speaker-go/internal/version"
	"github.com/Sendspin/speaker-go/pkg/audio/output"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "speaker: %v\n", err)
		os.Exit(2)
	}

	// Set up logging
	f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if cfg.UI.TUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if err := run(cfg); err != nil {
		log.Printf("Speaker failed: %v", err)
		_ = f.Close()
		os.Exit(1)
	}
}

// speakerControls joins the controller and the engine for the TUI
type speakerControls struct {
	*session.Controller
	*player.Engine
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Printf("Starting %s as %q", version.String(), cfg.Speaker.Name)

	telemetry, err := observe.NewProvider(cfg.Speaker.Name)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			log.Printf("Metrics shutdown error: %v", err)
		}
	}()
	metrics := telemetry.Metrics()

	device, err := output.New(cfg.Audio.Output)
	if err != nil {
		return err
	}
	engine := player.NewEngine(player.Config{
		Device:       device,
		BufferFrames: cfg.Audio.BufferFrames,
		Metrics:      metrics,
	})
	engine.SetVolume(cfg.Audio.Volume)

	accessPoint, err := hotspot.New(cfg.Hotspot.Provider, hotspot.Credentials{
		SSID:       cfg.Hotspot.SSID,
		Passphrase: cfg.Hotspot.Passphrase,
		Interface:  cfg.Hotspot.Interface,
	})
	if err != nil {
		return err
	}

	streamBridge, err := bridge.New(cfg.Bridge.Kind)
	if err != nil {
		return err
	}

	ctrl, err := session.New(session.Config{
		DeviceName:   cfg.Speaker.Name,
		Port:         cfg.Speaker.Port,
		ServiceType:  cfg.Speaker.ServiceType,
		Model:        version.Product,
		Version:      version.Version,
		AccessPoint:  accessPoint,
		Playback:     engine,
		Bridge:       streamBridge,
		Advertiser:   discovery.NewAdvertiser(),
		StartTimeout: cfg.Speaker.StartTimeout,
		Metrics:      metrics,
		OnStatus: func(ev session.StatusEvent) {
			if !cfg.UI.TUI {
				logStatus(ev)
			}
		},
		OnRelease: func() {
			if cfg.Speaker.ExitOnStop {
				log.Printf("Session released, exiting")
				cancel()
			}
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	if cfg.Control.Addr != "" {
		api := control.NewServer(ctrl, engine.Stats, telemetry.Handler())
		g.Go(func() error {
			if err := api.Run(gctx, cfg.Control.Addr); err != nil {
				return fmt.Errorf("control API: %w", err)
			}
			return nil
		})
	}

	if cfg.UI.TUI {
		events, unsubscribe := ctrl.Subscribe()
		model := ui.NewModel(cfg.Speaker.Name, engine.Volume(), speakerControls{ctrl, engine}, engine.Stats)
		g.Go(func() error {
			defer unsubscribe()
			err := ui.Run(gctx, model, events)
			// Quitting the TUI ends the daemon
			cancel()
			return err
		})
	}

	if cfg.Speaker.Autostart {
		ctrl.StartSession()
	}

	err = g.Wait()
	log.Printf("Speaker stopped")
	return err
}

func logStatus(ev session.StatusEvent) {
	switch ev.Status {
	case session.StatusRunning:
		log.Printf("Running: join %q with password %q, advertised as %q on port %d",
			ev.SSID, ev.Passphrase, ev.AdvertisedName, ev.Port)
	case session.StatusStopped:
		if ev.Reason != "" {
			log.Printf("Stopped: %s", ev.Reason)
		} else {
			log.Printf("Stopped")
		}
	default:
		log.Printf("Status: %s", ev.Status)
	}
}
