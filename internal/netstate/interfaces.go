package netstate

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"linkcore/internal/events"
	"linkcore/internal/models"
)

const defaultPollInterval = 5 * time.Second

// Link is the subset of interface data the classifier needs.
type Link struct {
	Name  string
	Up    bool
	Addrs []net.IP
}

// InterfaceSource derives State from the host's network interfaces and
// routing table. Changes are detected by polling while subscribers exist.
type InterfaceSource struct {
	interval time.Duration
	root     string
	links    func() ([]Link, error)
	logger   hclog.Logger

	changes events.Channel[State]

	mu      sync.Mutex
	last    *State
	running bool
	stopCh  chan struct{}
}

// InterfaceOption customises an InterfaceSource.
type InterfaceOption func(*InterfaceSource)

// WithPollInterval sets how often interfaces are re-read.
func WithPollInterval(d time.Duration) InterfaceOption {
	return func(s *InterfaceSource) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSysRoot points the source at an alternative filesystem root for
// /sys/class/net and /proc/net/route.
func WithSysRoot(root string) InterfaceOption {
	return func(s *InterfaceSource) { s.root = root }
}

// WithLinks replaces interface enumeration.
func WithLinks(fn func() ([]Link, error)) InterfaceOption {
	return func(s *InterfaceSource) {
		if fn != nil {
			s.links = fn
		}
	}
}

// WithLogger sets the logger used for poll failures.
func WithLogger(logger hclog.Logger) InterfaceOption {
	return func(s *InterfaceSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewInterfaceSource creates a source backed by net.Interfaces.
func NewInterfaceSource(opts ...InterfaceOption) *InterfaceSource {
	s := &InterfaceSource{
		interval: defaultPollInterval,
		root:     "/",
		links:    systemLinks,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch implements Source.
func (s *InterfaceSource) Fetch(ctx context.Context) (State, error) {
	select {
	case <-ctx.Done():
		return State{}, ctx.Err()
	default:
	}
	links, err := s.links()
	if err != nil {
		return State{}, err
	}
	return s.classify(links), nil
}

// Subscribe implements Source. The poller starts with the first subscriber
// and stops after the last one leaves. Registration and the poller state
// change together under s.mu.
func (s *InterfaceSource) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	unsub := s.changes.Subscribe(fn)
	s.ensureRunningLocked()
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		unsub()
		if s.changes.Len() == 0 {
			s.stopLocked()
		}
	}
}

func (s *InterfaceSource) ensureRunningLocked() {
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	go s.run(s.stopCh)
}

// stopLocked may run inside a subscriber callback on the poll goroutine, so
// it must not wait for run to return.
func (s *InterfaceSource) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

func (s *InterfaceSource) run(stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll()
	for {
		select {
		case <-ticker.C:
			s.poll()
		case <-stopCh:
			return
		}
	}
}

func (s *InterfaceSource) poll() {
	links, err := s.links()
	if err != nil {
		s.logger.Warn("interface poll failed", "error", err)
		return
	}
	state := s.classify(links)

	s.mu.Lock()
	changed := s.last == nil || !reflect.DeepEqual(*s.last, state)
	if changed {
		s.last = &state
	}
	s.mu.Unlock()

	if changed {
		s.changes.Publish(state)
	}
}

// classify picks the preferred active link and fills in type-specific data.
func (s *InterfaceSource) classify(links []Link) State {
	active := make([]Link, 0, len(links))
	for _, l := range links {
		if !l.Up || strings.HasPrefix(l.Name, "lo") || !hasGlobalUnicast(l.Addrs) {
			continue
		}
		active = append(active, l)
	}
	if len(active) == 0 {
		return State{IsConnected: false, InternetReachable: Bool(false), Type: models.ConnectionNone}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return linkRank(s.linkType(active[i].Name)) < linkRank(s.linkType(active[j].Name))
	})
	chosen := active[0]
	kind := s.linkType(chosen.Name)

	state := State{
		IsConnected: true,
		Type:        kind,
		Details:     Details{Interface: chosen.Name},
	}
	if defaultIface, ok := s.defaultRoute(); ok {
		state.InternetReachable = Bool(true)
		state.Details.Interface = defaultIface
	} else if s.routeTableReadable() {
		state.InternetReachable = Bool(false)
	}
	expensive := kind == models.ConnectionCellular
	state.Details.IsConnectionExpensive = &expensive
	if kind == models.ConnectionWifi {
		if strength, ok := s.wirelessStrength(chosen.Name); ok {
			state.Details.Strength = &strength
		}
	}
	return state
}

// wirelessStrength converts the /proc/net/wireless link quality (0..70) into
// a percentage.
func (s *InterfaceSource) wirelessStrength(name string) (int, bool) {
	f, err := os.Open(filepath.Join(s.root, "proc/net/wireless"))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, name+":") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, name+":"))
		if len(fields) < 2 {
			return 0, false
		}
		quality, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "."), 64)
		if err != nil {
			return 0, false
		}
		pct := int(quality / 70 * 100)
		if pct > 100 {
			pct = 100
		}
		return pct, true
	}
	return 0, false
}

func (s *InterfaceSource) linkType(name string) models.ConnectionType {
	switch {
	case exists(filepath.Join(s.root, "sys/class/net", name, "wireless")),
		strings.HasPrefix(name, "wl"):
		return models.ConnectionWifi
	case hasAnyPrefix(name, "tun", "tap", "wg", "ppp", "utun", "ipsec"):
		return models.ConnectionVPN
	case hasAnyPrefix(name, "wwan", "rmnet", "ccmni", "pdp"):
		return models.ConnectionCellular
	case hasAnyPrefix(name, "bnep", "bt"):
		return models.ConnectionBluetooth
	case hasAnyPrefix(name, "eth", "en", "em", "br"):
		return models.ConnectionEthernet
	default:
		return models.ConnectionOther
	}
}

func linkRank(t models.ConnectionType) int {
	switch t {
	case models.ConnectionVPN:
		return 0
	case models.ConnectionEthernet:
		return 1
	case models.ConnectionWifi:
		return 2
	case models.ConnectionCellular:
		return 3
	case models.ConnectionBluetooth:
		return 4
	default:
		return 5
	}
}

// defaultRoute scans /proc/net/route for a 0.0.0.0 destination.
func (s *InterfaceSource) defaultRoute() (string, bool) {
	f, err := os.Open(filepath.Join(s.root, "proc/net/route"))
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == "00000000" {
			return fields[0], true
		}
	}
	return "", false
}

func (s *InterfaceSource) routeTableReadable() bool {
	return exists(filepath.Join(s.root, "proc/net/route"))
}

func systemLinks() ([]Link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(ifaces))
	for _, iface := range ifaces {
		link := Link{Name: iface.Name, Up: iface.Flags&net.FlagUp != 0}
		addrs, err := iface.Addrs()
		if err != nil {
			links = append(links, link)
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				link.Addrs = append(link.Addrs, ipNet.IP)
			}
		}
		links = append(links, link)
	}
	return links, nil
}

func hasGlobalUnicast(addrs []net.IP) bool {
	for _, ip := range addrs {
		if ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

func hasAnyPrefix(name string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
