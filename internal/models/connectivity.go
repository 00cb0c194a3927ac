package models

import "time"

// ConnectionType names the link the OS reports as active.
type ConnectionType string

const (
	ConnectionWifi      ConnectionType = "wifi"
	ConnectionCellular  ConnectionType = "cellular"
	ConnectionEthernet  ConnectionType = "ethernet"
	ConnectionBluetooth ConnectionType = "bluetooth"
	ConnectionVPN       ConnectionType = "vpn"
	ConnectionNone      ConnectionType = "none"
	ConnectionUnknown   ConnectionType = "unknown"
	ConnectionOther     ConnectionType = "other"
)

// ParseConnectionType maps free-form OS labels onto a ConnectionType.
func ParseConnectionType(raw string) ConnectionType {
	switch t := ConnectionType(raw); t {
	case ConnectionWifi, ConnectionCellular, ConnectionEthernet, ConnectionBluetooth,
		ConnectionVPN, ConnectionNone, ConnectionUnknown, ConnectionOther:
		return t
	case "":
		return ConnectionUnknown
	default:
		return ConnectionOther
	}
}

// ConnectionStatus is an immutable snapshot of the committed connectivity state.
// Wifi fields are nil unless ConnectionType is wifi; cellular fields are nil
// unless ConnectionType is cellular.
type ConnectionStatus struct {
	IsConnected           bool           `json:"is_connected"`
	IsReachable           bool           `json:"is_reachable"`
	ConnectionType        ConnectionType `json:"connection_type"`
	IsConnectionExpensive *bool          `json:"is_connection_expensive,omitempty"`
	SignalStrength        *int           `json:"signal_strength,omitempty"`
	SSID                  *string        `json:"ssid,omitempty"`
	BSSID                 *string        `json:"bssid,omitempty"`
	CellularGeneration    *string        `json:"cellular_generation,omitempty"`
	Carrier               *string        `json:"carrier,omitempty"`
}

// OfflineStatus is the pessimistic status committed when the OS state is unknown.
func OfflineStatus() ConnectionStatus {
	return ConnectionStatus{ConnectionType: ConnectionUnknown}
}

// Equivalent reports whether two statuses differ in any field that matters to
// consumers. Signal strength, bssid, cellular generation and the expensive
// flag are ignored.
func (s ConnectionStatus) Equivalent(other ConnectionStatus) bool {
	return s.IsConnected == other.IsConnected &&
		s.IsReachable == other.IsReachable &&
		s.ConnectionType == other.ConnectionType &&
		equalStringPtr(s.SSID, other.SSID) &&
		equalStringPtr(s.Carrier, other.Carrier)
}

// Online is true when the link is up and verified usable.
func (s ConnectionStatus) Online() bool {
	return s.IsConnected && s.IsReachable
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StatusSample is a committed status stamped with its commit time.
type StatusSample struct {
	Status      ConnectionStatus `json:"status"`
	CommittedAt time.Time        `json:"committed_at"`
}
