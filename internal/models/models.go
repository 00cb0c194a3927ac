package models

import "time"

// Endpoint is a probe target registered at startup.
type Endpoint struct {
	Name           string    `yaml:"name" json:"name"`
	Description    string    `yaml:"description" json:"description,omitempty"`
	URL            string    `yaml:"url" json:"url"`
	TimeoutSeconds int       `yaml:"timeout_seconds" json:"timeout_seconds"`
	Default        bool      `yaml:"default" json:"default"`
	Reachable      bool      `yaml:"-" json:"reachable"`
	LastCheckedAt  time.Time `yaml:"-" json:"last_checked_at,omitempty"`
}

// Checked reports whether the endpoint has been probed at least once.
func (e Endpoint) Checked() bool {
	return !e.LastCheckedAt.IsZero()
}

// TTL is how long a probe result stays fresh.
func (e Endpoint) TTL() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// EndpointStatus is emitted after every executed probe.
type EndpointStatus struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
}
