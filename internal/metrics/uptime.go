package metrics

import (
	"math"
	"sort"
	"time"

	"linkcore/internal/models"
)

// Uptime summarises connectivity over a window.
type Uptime struct {
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	ObservedSeconds  float64   `json:"observed_seconds"`
	ReachablePercent float64   `json:"reachable_percent"`
	ConnectedPercent float64   `json:"connected_percent"`
	Transitions      int       `json:"transitions"`
	LastState        string    `json:"last_state,omitempty"`
	LastChange       string    `json:"last_change,omitempty"`
}

// ComputeUptime weighs each committed status by how long it stayed current
// inside [start, end). Time before the first known status is not observed.
func ComputeUptime(entries []models.StatusSample, start, end time.Time) Uptime {
	result := Uptime{WindowStart: start.UTC(), WindowEnd: end.UTC()}
	if !end.After(start) || len(entries) == 0 {
		return result
	}

	samples := make([]models.StatusSample, len(entries))
	copy(samples, entries)
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CommittedAt.Before(samples[j].CommittedAt)
	})

	var observed, reachable, connected time.Duration
	for i, s := range samples {
		from := s.CommittedAt
		to := end
		if i+1 < len(samples) {
			to = samples[i+1].CommittedAt
		}
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if !to.After(from) {
			continue
		}
		span := to.Sub(from)
		observed += span
		if s.Status.IsReachable {
			reachable += span
		}
		if s.Status.IsConnected {
			connected += span
		}
		if !s.CommittedAt.Before(start) && s.CommittedAt.Before(end) {
			result.Transitions++
		}
	}

	last := samples[len(samples)-1]
	result.LastState = stateLabel(last.Status)
	result.LastChange = last.CommittedAt.UTC().Format(time.RFC3339)

	if observed > 0 {
		result.ObservedSeconds = round2(observed.Seconds())
		result.ReachablePercent = round2(float64(reachable) / float64(observed) * 100)
		result.ConnectedPercent = round2(float64(connected) / float64(observed) * 100)
	}
	return result
}

func stateLabel(status models.ConnectionStatus) string {
	switch {
	case status.IsReachable:
		return "online"
	case status.IsConnected:
		return "degraded"
	default:
		return "offline"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
