// Package metrics wires the process-wide go-metrics sink and computes
// connectivity summaries from status history.
package metrics

import (
	"fmt"
	"time"

	gometrics "github.com/armon/go-metrics"
)

// Setup installs an in-memory sink as the global metrics registry and
// returns it so the server can expose its summary.
func Setup(service string) (*gometrics.InmemSink, error) {
	sink := gometrics.NewInmemSink(10*time.Second, time.Minute)
	cfg := gometrics.DefaultConfig(service)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	if _, err := gometrics.NewGlobal(cfg, sink); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return sink, nil
}
