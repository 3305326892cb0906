// ABOUTME: Access point provider contract
// ABOUTME: Providers bring up a local wireless network and report credentials asynchronously
package hotspot

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is reported when the host refuses to create the access point
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupported is reported when the host has no way to create an access point
	ErrUnsupported = errors.New("access point not supported on this host")
)

// Credentials describe the network senders join
type Credentials struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase,omitempty"`
	Interface  string `json:"interface,omitempty"`
}

// Callbacks receive the outcome of Start. Exactly one of OnStarted or OnFailed
// is called per Start; OnStopped may follow OnStarted when the network goes
// away without Stop being called.
type Callbacks struct {
	OnStarted func(Credentials)
	OnFailed  func(error)
	OnStopped func()
}

// Provider creates and destroys the local access point
type Provider interface {
	// Start begins bringing the access point up and returns immediately.
	// Cancelling ctx abandons the attempt; OnFailed then receives ctx.Err().
	Start(ctx context.Context, cb Callbacks)

	// Stop releases the access point. Safe to call when nothing was started.
	Stop() error
}

// MaxSSIDLength is the 802.11 limit on SSID bytes
const MaxSSIDLength = 32

// Validate checks the credentials against WPA2-PSK limits
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return errors.New("ssid is required")
	}
	if len(c.SSID) > MaxSSIDLength {
		return fmt.Errorf("ssid %q exceeds %d bytes", c.SSID, MaxSSIDLength)
	}
	if c.Passphrase != "" && (len(c.Passphrase) < 8 || len(c.Passphrase) > 63) {
		return fmt.Errorf("passphrase must be 8-63 characters, got %d", len(c.Passphrase))
	}
	return nil
}

// New creates a provider by name: "nmcli" or "static"
func New(kind string, creds Credentials) (Provider, error) {
	switch kind {
	case "", "nmcli":
		return NewNetworkManager(NetworkManagerConfig{
			Interface:  creds.Interface,
			SSID:       creds.SSID,
			Passphrase: creds.Passphrase,
		}), nil
	case "static":
		if err := creds.Validate(); err != nil {
			return nil, fmt.Errorf("static access point: %w", err)
		}
		return NewStatic(creds), nil
	default:
		return nil, fmt.Errorf("unknown access point provider %q", kind)
	}
}
