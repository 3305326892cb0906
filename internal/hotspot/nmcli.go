// ABOUTME: NetworkManager access point provider
// ABOUTME: Drives nmcli to create a WPA2 hotspot and watches that it stays up
package hotspot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultConnectionName is the NetworkManager connection profile used for the hotspot
const DefaultConnectionName = "speaker-hotspot"

// DefaultMonitorInterval is how often the connection is checked while up
const DefaultMonitorInterval = 5 * time.Second

// Runner executes a command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NetworkManagerConfig holds nmcli provider configuration
type NetworkManagerConfig struct {
	// Interface is the wireless device; empty lets NetworkManager pick one
	Interface string

	// SSID defaults to a generated Speaker_XXXX name
	SSID string

	// Passphrase defaults to a generated one
	Passphrase string

	// ConnectionName defaults to DefaultConnectionName
	ConnectionName string

	// MonitorInterval is the liveness check period; negative disables it
	MonitorInterval time.Duration

	// Runner defaults to os/exec
	Runner Runner
}

// NetworkManager brings up a hotspot through nmcli
type NetworkManager struct {
	config NetworkManagerConfig

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}

	// inflight counts nmcli hotspot commands Stop must wait out
	inflight sync.WaitGroup
}

// NewNetworkManager creates an nmcli-backed provider
func NewNetworkManager(config NetworkManagerConfig) *NetworkManager {
	if config.ConnectionName == "" {
		config.ConnectionName = DefaultConnectionName
	}
	if config.MonitorInterval == 0 {
		config.MonitorInterval = DefaultMonitorInterval
	}
	if config.Runner == nil {
		config.Runner = execRunner
	}
	return &NetworkManager{config: config}
}

// Start creates the hotspot in the background and reports through cb
func (n *NetworkManager) Start(ctx context.Context, cb Callbacks) {
	n.inflight.Add(1)
	go func() {
		creds, err := n.start(ctx, cb.OnStopped)
		n.inflight.Done()
		if err != nil {
			log.Printf("Access point failed: %v", err)
			if cb.OnFailed != nil {
				cb.OnFailed(err)
			}
			return
		}

		log.Printf("Access point %q up on %s", creds.SSID, displayInterface(creds.Interface))
		if cb.OnStarted != nil {
			cb.OnStarted(creds)
		}
	}()
}

func (n *NetworkManager) start(ctx context.Context, onStopped func()) (Credentials, error) {
	creds := Credentials{
		SSID:       n.config.SSID,
		Passphrase: n.config.Passphrase,
		Interface:  n.config.Interface,
	}

	var err error
	if creds.SSID == "" {
		if creds.SSID, err = GenerateSSID(); err != nil {
			return Credentials{}, fmt.Errorf("generate ssid: %w", err)
		}
	}
	if creds.Passphrase == "" {
		if creds.Passphrase, err = GeneratePassphrase(PassphraseLength); err != nil {
			return Credentials{}, fmt.Errorf("generate passphrase: %w", err)
		}
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	args := []string{"device", "wifi", "hotspot", "con-name", n.config.ConnectionName}
	if creds.Interface != "" {
		args = append(args, "ifname", creds.Interface)
	}
	args = append(args, "ssid", creds.SSID, "password", creds.Passphrase)

	out, err := n.config.Runner(ctx, "nmcli", args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Killing the client does not stop NetworkManager from activating the profile
		if derr := n.down(); derr != nil {
			log.Printf("Access point cleanup after cancelled start: %v", derr)
		}
		return Credentials{}, ctxErr
	}
	if err != nil {
		return Credentials{}, classify(err, out)
	}

	n.mu.Lock()
	n.active = true
	if n.config.MonitorInterval > 0 {
		monCtx, cancel := context.WithCancel(context.Background())
		n.cancel = cancel
		done := make(chan struct{})
		n.done = done
		go func() {
			lost := n.monitor(monCtx, done)
			close(done)
			if lost && onStopped != nil {
				onStopped()
			}
		}()
	}
	n.mu.Unlock()

	return creds, nil
}

// monitor polls the connection state until ctx is done. It reports whether
// the connection went away on its own.
func (n *NetworkManager) monitor(ctx context.Context, done chan struct{}) bool {
	ticker := time.NewTicker(n.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			out, err := n.config.Runner(ctx, "nmcli", "-t", "-f", "GENERAL.STATE",
				"connection", "show", "--active", n.config.ConnectionName)
			if ctx.Err() != nil {
				return false
			}
			if err == nil && strings.Contains(string(out), "activated") {
				continue
			}

			log.Printf("Access point %s is no longer active", n.config.ConnectionName)
			n.mu.Lock()
			if n.done == done {
				n.active = false
				n.cancel = nil
				n.done = nil
			}
			n.mu.Unlock()
			return true
		}
	}
}

// Stop brings the hotspot connection down. A start still running nmcli is
// waited for first.
func (n *NetworkManager) Stop() error {
	n.inflight.Wait()

	n.mu.Lock()
	cancel, done, active := n.cancel, n.done, n.active
	n.cancel, n.done, n.active = nil, nil, false
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if !active {
		return nil
	}
	return n.down()
}

func (n *NetworkManager) down() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := n.config.Runner(ctx, "nmcli", "connection", "down", n.config.ConnectionName)
	if err != nil {
		if notActive(out) {
			return nil
		}
		return fmt.Errorf("bring down %s: %w", n.config.ConnectionName, classify(err, out))
	}
	log.Printf("Access point %s stopped", n.config.ConnectionName)
	return nil
}

// classify maps nmcli failures onto the provider's sentinel errors
func classify(err error, out []byte) error {
	msg := strings.TrimSpace(string(out))
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: nmcli not found", ErrUnsupported)
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "insufficient privileges"),
		strings.Contains(lower, "permission denied"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	case strings.Contains(lower, "no wi-fi device found"),
		strings.Contains(lower, "does not support ap mode"):
		return fmt.Errorf("%w: %s", ErrUnsupported, msg)
	}

	if msg == "" {
		return fmt.Errorf("nmcli: %w", err)
	}
	return fmt.Errorf("nmcli: %w: %s", err, msg)
}

// notActive reports nmcli's answer for a profile that is not up
func notActive(out []byte) bool {
	lower := strings.ToLower(string(out))
	return strings.Contains(lower, "not an active connection") ||
		strings.Contains(lower, "unknown connection")
}

func displayInterface(name string) string {
	if name == "" {
		return "default interface"
	}
	return name
}
