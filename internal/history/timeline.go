package history

import (
	"sort"
	"time"

	"linkcore/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots we generate per timeline.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

// Link states shown on the timeline.
const (
	StateOnline   = "online"
	StateDegraded = "degraded"
	StateOffline  = "offline"
)

// StateOf classifies a committed status. Degraded means the OS reports a
// link but no default endpoint answered.
func StateOf(status models.ConnectionStatus) string {
	switch {
	case status.IsReachable:
		return StateOnline
	case status.IsConnected:
		return StateDegraded
	default:
		return StateOffline
	}
}

var severity = map[string]int{
	StateOnline:   0,
	StateDegraded: 1,
	StateOffline:  2,
}

// BuildTimeline reduces committed status samples into compact timeline
// points. Samples are state changes, so a bucket without samples inherits
// the last state seen before it. Buckets before the first sample have no
// data. A bucket with several samples shows its worst state.
func BuildTimeline(entries []models.StatusSample, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	samples := make([]models.StatusSample, 0, len(entries))
	for _, entry := range entries {
		if entry.CommittedAt.IsZero() {
			continue
		}
		samples = append(samples, entry)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CommittedAt.Before(samples[j].CommittedAt)
	})

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	idx := 0
	var last models.StatusSample
	var haveLast bool
	for idx < len(samples) && samples[idx].CommittedAt.Before(start) {
		last = samples[idx]
		haveLast = true
		idx++
	}

	result := make([]models.TimelinePoint, 0, points)
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		point := models.TimelinePoint{
			ClassName: "state-missing",
			Label:     "No data",
			Start:     bucketStart,
			End:       bucketEnd,
		}

		var bucket []models.StatusSample
		for idx < len(samples) && samples[idx].CommittedAt.Before(bucketEnd) {
			bucket = append(bucket, samples[idx])
			idx++
		}

		switch {
		case len(bucket) > 0:
			worst := ""
			if haveLast {
				worst = StateOf(last.Status)
			}
			for _, s := range bucket {
				if state := StateOf(s.Status); worst == "" || severity[state] > severity[worst] {
					worst = state
				}
				if len(point.Details) < maxDetailsPerPoint && StateOf(s.Status) != StateOnline {
					point.Details = append(point.Details, detailOf(s))
				}
			}
			point.ClassName, point.Label = classOf(worst)
			last = bucket[len(bucket)-1]
			haveLast = true
		case haveLast:
			point.ClassName, point.Label = classOf(StateOf(last.Status))
		}

		result = append(result, point)
	}
	return result
}

func detailOf(sample models.StatusSample) models.TimelineDetail {
	return models.TimelineDetail{
		Timestamp:      sample.CommittedAt,
		ConnectionType: sample.Status.ConnectionType,
		State:          StateOf(sample.Status),
	}
}

func classOf(state string) (className, label string) {
	switch state {
	case StateOnline:
		return "state-success", "Online"
	case StateDegraded:
		return "state-warning", "Degraded"
	default:
		return "state-error", "Offline"
	}
}
