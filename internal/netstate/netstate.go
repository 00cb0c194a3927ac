// Package netstate reports link-layer connectivity as seen by the operating
// system.
package netstate

import (
	"context"

	"linkcore/internal/models"
)

// Details carries optional link metadata. Only fields matching the reported
// connection type are meaningful.
type Details struct {
	IsConnectionExpensive *bool   `json:"is_connection_expensive,omitempty"`
	Strength              *int    `json:"strength,omitempty"`
	SSID                  *string `json:"ssid,omitempty"`
	BSSID                 *string `json:"bssid,omitempty"`
	CellularGeneration    *string `json:"cellular_generation,omitempty"`
	Carrier               *string `json:"carrier,omitempty"`
	Interface             string  `json:"interface,omitempty"`
}

// State is one OS connectivity reading. InternetReachable is nil when the OS
// cannot tell.
type State struct {
	IsConnected       bool                  `json:"is_connected"`
	InternetReachable *bool                 `json:"is_internet_reachable,omitempty"`
	Type              models.ConnectionType `json:"type"`
	Details           Details               `json:"details"`
}

// Source is the OS network-state collaborator.
type Source interface {
	// Fetch returns the current state.
	Fetch(ctx context.Context) (State, error)
	// Subscribe registers fn for every OS-level change.
	Subscribe(fn func(State)) (unsubscribe func())
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
