// ABOUTME: Session states and the status events broadcast to observers
// ABOUTME: Events are values and never change after they are emitted
package session

import (
	"fmt"
	"time"
)

// State is the controller's internal session state
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is the externally visible session status
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// StatusEvent is broadcast whenever the session changes state
type StatusEvent struct {
	Status         Status    `json:"status"`
	SessionID      string    `json:"session_id,omitempty"`
	SSID           string    `json:"ssid,omitempty"`
	Passphrase     string    `json:"passphrase,omitempty"`
	AdvertisedName string    `json:"advertised_name,omitempty"`
	Port           int       `json:"port,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Degraded       bool      `json:"degraded,omitempty"`
	At             time.Time `json:"at"`
}
