package reachability

import (
	"context"
	"errors"
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"linkcore/internal/events"
	"linkcore/internal/models"
)

// DefaultProbeTimeout bounds a single probe request.
const DefaultProbeTimeout = 5 * time.Second

// ErrEndpointNotFound is returned when probing a name that was never registered.
var ErrEndpointNotFound = errors.New("reachability: endpoint not found")

// Prober answers "is endpoint X reachable" with per-endpoint TTL caching.
// The registry is only mutated through Probe.
type Prober struct {
	fetcher Fetcher
	timeout time.Duration
	now     func() time.Time
	logger  hclog.Logger
	changes *events.Channel[models.EndpointStatus]

	mu        sync.Mutex
	endpoints []*models.Endpoint
	index     map[string]*models.Endpoint
}

func newProber(fetcher Fetcher, timeout time.Duration, now func() time.Time, logger hclog.Logger, changes *events.Channel[models.EndpointStatus]) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		fetcher: fetcher,
		timeout: timeout,
		now:     now,
		logger:  logger,
		changes: changes,
		index:   make(map[string]*models.Endpoint),
	}
}

// register appends endpoints in order. Duplicate names keep the first entry.
func (p *Prober) register(list []models.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range list {
		if _, dup := p.index[ep.Name]; dup {
			p.logger.Warn("duplicate endpoint name ignored", "endpoint", ep.Name)
			continue
		}
		entry := ep
		entry.Reachable = false
		entry.LastCheckedAt = time.Time{}
		p.endpoints = append(p.endpoints, &entry)
		p.index[entry.Name] = &entry
	}
}

// Probe returns whether the named endpoint is reachable. Cached results are
// returned while younger than the endpoint's timeout unless force is set.
func (p *Prober) Probe(ctx context.Context, name string, force bool) (bool, error) {
	p.mu.Lock()
	ep, ok := p.index[name]
	if !ok {
		p.mu.Unlock()
		p.logger.Error("endpoint not found in registry", "endpoint", name)
		return false, ErrEndpointNotFound
	}
	now := p.now()
	if !force && ep.Checked() {
		if age := now.Sub(ep.LastCheckedAt); age < ep.TTL() {
			cached := ep.Reachable
			p.mu.Unlock()
			p.logger.Debug("using cached endpoint result", "endpoint", name, "age", age)
			return cached, nil
		}
	}
	url := ep.URL
	p.mu.Unlock()

	reachable := p.check(ctx, name, url)

	p.mu.Lock()
	ep.LastCheckedAt = now
	ep.Reachable = reachable
	p.mu.Unlock()

	result := "fail"
	if reachable {
		result = "ok"
	}
	gometrics.IncrCounterWithLabels([]string{"reachability", "probe"}, 1, []gometrics.Label{
		{Name: "endpoint", Value: name},
		{Name: "result", Value: result},
	})
	p.logger.Debug("endpoint probed", "endpoint", name, "reachable", reachable)

	p.changes.Publish(models.EndpointStatus{Name: name, Reachable: reachable})
	return reachable, nil
}

func (p *Prober) check(ctx context.Context, name, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok, err := p.fetcher.Head(ctx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("endpoint probe timed out", "endpoint", name, "timeout", p.timeout)
		} else {
			p.logger.Warn("endpoint probe failed", "endpoint", name, "error", err)
		}
		return false
	}
	return ok
}

// Endpoints returns a copy of the registry in registration order.
func (p *Prober) Endpoints() []models.Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Endpoint, len(p.endpoints))
	for i, ep := range p.endpoints {
		out[i] = *ep
	}
	return out
}

// HasDefault reports whether any endpoint is flagged default.
func (p *Prober) HasDefault() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.Default {
			return true
		}
	}
	return false
}

func (p *Prober) defaultNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var names []string
	for _, ep := range p.endpoints {
		if ep.Default {
			names = append(names, ep.Name)
		}
	}
	return names
}

func (p *Prober) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}
