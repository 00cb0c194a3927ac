// Package reachability decides whether the internet is actually usable by
// combining OS link state with active endpoint probes.
package reachability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"linkcore/internal/events"
	"linkcore/internal/models"
	"linkcore/internal/netstate"
)

// ErrAlreadyInitialized is returned by a second Initialize call.
var ErrAlreadyInitialized = errors.New("reachability: engine already initialized")

// Engine owns the committed ConnectionStatus and the endpoint registry.
// One Engine is created per process by the composition root.
type Engine struct {
	source  netstate.Source
	prober  *Prober
	logger  hclog.Logger
	now     func() time.Time
	builtin []models.Endpoint

	connection events.Channel[models.ConnectionStatus]
	endpoint   events.Channel[models.EndpointStatus]

	// recomputeMu serializes read-probe-commit-publish.
	recomputeMu sync.Mutex

	statusMu  sync.RWMutex
	status    models.ConnectionStatus
	committed bool

	initMu      sync.Mutex
	initialized bool
	unsubscribe func()
}

// Option customises an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger       hclog.Logger
	probeTimeout time.Duration
	now          func() time.Time
	builtin      []models.Endpoint
	builtinSet   bool
}

// WithLogger sets the engine logger.
func WithLogger(logger hclog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithProbeTimeout bounds each probe request.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *engineOptions) { o.probeTimeout = d }
}

// WithClock replaces time.Now for TTL decisions.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithBuiltinEndpoints replaces CoreEndpoints as the fixed built-in set.
func WithBuiltinEndpoints(list []models.Endpoint) Option {
	return func(o *engineOptions) {
		o.builtin = list
		o.builtinSet = true
	}
}

// New creates an engine reading OS state from source and probing with fetcher.
func New(source netstate.Source, fetcher Fetcher, opts ...Option) *Engine {
	o := engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}
	if !o.builtinSet {
		o.builtin = CoreEndpoints()
	}
	if fetcher == nil {
		fetcher = NewSchemeFetcher()
	}

	e := &Engine{
		source:  source,
		logger:  o.logger,
		now:     o.now,
		builtin: o.builtin,
		status:  models.OfflineStatus(),
	}
	e.prober = newProber(fetcher, o.probeTimeout, o.now, o.logger.Named("probe"), &e.endpoint)
	return e
}

// Initialize registers the built-in and caller endpoints, commits the initial
// status and subscribes to OS change notifications for the life of the
// engine. An OS fetch failure is logged and committed as OfflineStatus.
func (e *Engine) Initialize(ctx context.Context, endpoints []models.Endpoint) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return ErrAlreadyInitialized
	}
	e.initialized = true

	all := make([]models.Endpoint, 0, len(e.builtin)+len(endpoints))
	all = append(all, e.builtin...)
	all = append(all, endpoints...)
	e.prober.register(all)

	switch {
	case e.prober.size() == 0:
		e.logger.Info("no endpoints provided, operating in passive mode (OS signal only)")
	case !e.prober.HasDefault():
		e.logger.Warn("endpoints provided, but none marked default; reachability will not be verified")
	default:
		names := make([]string, 0, len(all))
		for _, ep := range e.prober.Endpoints() {
			names = append(names, ep.Name)
		}
		e.logger.Debug("endpoints registered", "endpoints", strings.Join(names, ", "))
	}

	state, err := e.source.Fetch(ctx)
	if err != nil {
		e.logger.Error("initial network state fetch failed", "error", err)
		e.commit(models.OfflineStatus())
	} else {
		e.Recompute(ctx, state)
	}

	e.unsubscribe = e.source.Subscribe(func(state netstate.State) {
		e.logger.Trace("OS network state changed")
		e.Recompute(context.Background(), state)
	})
	e.logger.Info("reachability engine initialized")
	return nil
}

// Close drops the OS subscription. It is meant for process shutdown.
func (e *Engine) Close() {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Recompute derives a candidate status from state, verifying reachability
// against default endpoints when the OS reports a link. It commits and
// publishes only when the candidate differs on the compared fields, and
// reports whether it did. Listeners must not call Recompute re-entrantly.
func (e *Engine) Recompute(ctx context.Context, state netstate.State) (models.ConnectionStatus, bool) {
	e.recomputeMu.Lock()
	defer e.recomputeMu.Unlock()

	reachable := false
	if state.InternetReachable != nil {
		reachable = *state.InternetReachable
	}
	if state.IsConnected && e.prober.HasDefault() {
		e.logger.Debug("OS reports a link, verifying default endpoints")
		reachable = e.VerifyDefaultEndpoints(ctx)
	}

	candidate := buildStatus(state, reachable)

	e.statusMu.RLock()
	current, committed := e.status, e.committed
	e.statusMu.RUnlock()

	if committed && candidate.Equivalent(current) {
		e.logger.Trace("status unchanged")
		return current, false
	}
	e.commit(candidate)
	return candidate, true
}

func (e *Engine) commit(status models.ConnectionStatus) {
	e.statusMu.Lock()
	e.status = status
	e.committed = true
	e.statusMu.Unlock()

	gauge := float32(0)
	if status.IsReachable {
		gauge = 1
	}
	gometrics.SetGauge([]string{"reachability", "reachable"}, gauge)
	gometrics.IncrCounter([]string{"reachability", "transitions"}, 1)

	e.logger.Info(describe(status))
	e.connection.Publish(status)
}

// VerifyDefaultEndpoints force-probes default endpoints in registration order
// and returns true on the first reachable one.
func (e *Engine) VerifyDefaultEndpoints(ctx context.Context) bool {
	for _, name := range e.prober.defaultNames() {
		reachable, err := e.prober.Probe(ctx, name, true)
		if err == nil && reachable {
			return true
		}
	}
	return false
}

// Status returns the committed status. It never probes.
func (e *Engine) Status() models.ConnectionStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// Probe checks one endpoint by name; see Prober.Probe.
func (e *Engine) Probe(ctx context.Context, name string, force bool) (bool, error) {
	return e.prober.Probe(ctx, name, force)
}

// Endpoints returns a copy of the endpoint registry.
func (e *Engine) Endpoints() []models.Endpoint {
	return e.prober.Endpoints()
}

// OnConnectionChange registers cb for committed status changes.
func (e *Engine) OnConnectionChange(cb func(models.ConnectionStatus)) (unsubscribe func()) {
	return e.connection.Subscribe(cb)
}

// OnEndpointStatusChange registers cb for every executed probe.
func (e *Engine) OnEndpointStatusChange(cb func(models.EndpointStatus)) (unsubscribe func()) {
	return e.endpoint.Subscribe(cb)
}

// OnEndpointStatusChangeByName registers cb for probes of one endpoint.
func (e *Engine) OnEndpointStatusChangeByName(name string, cb func(models.EndpointStatus)) (unsubscribe func()) {
	if cb == nil {
		return func() {}
	}
	return e.endpoint.Subscribe(func(status models.EndpointStatus) {
		if status.Name == name {
			cb(status)
		}
	})
}

// buildStatus maps OS state onto a ConnectionStatus, keeping wifi and
// cellular metadata exclusive to their connection types.
func buildStatus(state netstate.State, reachable bool) models.ConnectionStatus {
	kind := state.Type
	if kind == "" {
		kind = models.ConnectionUnknown
	}
	status := models.ConnectionStatus{
		IsConnected:           state.IsConnected,
		IsReachable:           reachable,
		ConnectionType:        kind,
		IsConnectionExpensive: state.Details.IsConnectionExpensive,
	}
	switch kind {
	case models.ConnectionWifi:
		status.SignalStrength = state.Details.Strength
		status.SSID = state.Details.SSID
		status.BSSID = state.Details.BSSID
	case models.ConnectionCellular:
		status.CellularGeneration = state.Details.CellularGeneration
		status.Carrier = state.Details.Carrier
	}
	return status
}

func describe(status models.ConnectionStatus) string {
	kind := ""
	if status.ConnectionType != models.ConnectionNone {
		kind = string(status.ConnectionType) + " "
	}
	name := ""
	switch {
	case status.ConnectionType == models.ConnectionWifi && status.SSID != nil:
		name = fmt.Sprintf("%q ", *status.SSID)
	case status.ConnectionType == models.ConnectionCellular && status.Carrier != nil:
		name = fmt.Sprintf("%q ", *status.Carrier)
	}
	state := "offline"
	if status.IsReachable {
		state = "online"
	}
	return fmt.Sprintf("%sconnection %sis %s", kind, name, state)
}
