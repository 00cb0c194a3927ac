package models

import "time"

// TimelinePoint represents a single compact point in the reachability timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail carries extra information for problematic buckets.
type TimelineDetail struct {
	Timestamp      time.Time      `json:"timestamp"`
	ConnectionType ConnectionType `json:"connection_type,omitempty"`
	State          string         `json:"state,omitempty"`
}
