// ABOUTME: Static access point provider
// ABOUTME: Reports preconfigured credentials for hosts already on a network
package hotspot

import (
	"context"
	"log"
)

// Static reports fixed credentials without touching the host network
type Static struct {
	creds Credentials
}

// NewStatic creates a provider that always reports creds
func NewStatic(creds Credentials) *Static {
	return &Static{creds: creds}
}

// Start reports the configured credentials asynchronously
func (s *Static) Start(ctx context.Context, cb Callbacks) {
	go func() {
		if err := ctx.Err(); err != nil {
			if cb.OnFailed != nil {
				cb.OnFailed(err)
			}
			return
		}
		log.Printf("Using existing network %q", s.creds.SSID)
		if cb.OnStarted != nil {
			cb.OnStarted(s.creds)
		}
	}()
}

// Stop is a no-op
func (s *Static) Stop() error {
	return nil
}
