package netstate

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"linkcore/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

const routeHeader = "Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n"

func TestInterfaceSourceFetch(t *testing.T) {
	global := []net.IP{net.ParseIP("192.168.1.20")}

	t.Run("no active links reports none", func(t *testing.T) {
		src := NewInterfaceSource(WithSysRoot(t.TempDir()), WithLinks(func() ([]Link, error) {
			return []Link{{Name: "lo", Up: true, Addrs: []net.IP{net.ParseIP("127.0.0.1")}}}, nil
		}))
		state, err := src.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if state.IsConnected || state.Type != models.ConnectionNone {
			t.Fatalf("unexpected state %+v", state)
		}
	})

	t.Run("wifi with default route and signal", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "sys/class/net/wlan0/wireless/.keep"), "")
		writeFile(t, filepath.Join(root, "proc/net/route"), routeHeader+
			"wlan0\t00000000\t0101A8C0\t0003\t0\t0\t600\t00000000\t0\t0\t0\n")
		writeFile(t, filepath.Join(root, "proc/net/wireless"),
			"Inter-| sta-|   Quality        |\n face | tus | link level noise |\n wlan0: 0000   35.  -56.  -256        0      0      0      0      0        0\n")

		src := NewInterfaceSource(WithSysRoot(root), WithLinks(func() ([]Link, error) {
			return []Link{{Name: "wlan0", Up: true, Addrs: global}}, nil
		}))
		state, err := src.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if !state.IsConnected || state.Type != models.ConnectionWifi {
			t.Fatalf("unexpected state %+v", state)
		}
		if state.InternetReachable == nil || !*state.InternetReachable {
			t.Fatalf("expected internet reachable hint from default route")
		}
		if state.Details.Strength == nil || *state.Details.Strength != 50 {
			t.Fatalf("expected strength 50, got %v", state.Details.Strength)
		}
	})

	t.Run("missing default route", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "proc/net/route"), routeHeader)
		src := NewInterfaceSource(WithSysRoot(root), WithLinks(func() ([]Link, error) {
			return []Link{{Name: "eth0", Up: true, Addrs: global}}, nil
		}))
		state, _ := src.Fetch(context.Background())
		if state.Type != models.ConnectionEthernet {
			t.Fatalf("Type = %q, want ethernet", state.Type)
		}
		if state.InternetReachable == nil || *state.InternetReachable {
			t.Fatalf("expected explicit unreachable hint, got %v", state.InternetReachable)
		}
	})

	t.Run("vpn preferred over ethernet", func(t *testing.T) {
		src := NewInterfaceSource(WithSysRoot(t.TempDir()), WithLinks(func() ([]Link, error) {
			return []Link{
				{Name: "eth0", Up: true, Addrs: global},
				{Name: "wg0", Up: true, Addrs: []net.IP{net.ParseIP("10.8.0.2")}},
			}, nil
		}))
		state, _ := src.Fetch(context.Background())
		if state.Type != models.ConnectionVPN {
			t.Fatalf("Type = %q, want vpn", state.Type)
		}
		if state.InternetReachable != nil {
			t.Fatalf("expected unknown reachability without a route table")
		}
	})
}

func TestInterfaceSourceSubscribePublishesChanges(t *testing.T) {
	up := make(chan bool, 1)
	up <- true
	current := true
	src := NewInterfaceSource(
		WithSysRoot(t.TempDir()),
		WithPollInterval(5*time.Millisecond),
		WithLinks(func() ([]Link, error) {
			select {
			case v := <-up:
				current = v
			default:
			}
			return []Link{{Name: "eth0", Up: current, Addrs: []net.IP{net.ParseIP("192.168.1.2")}}}, nil
		}),
	)

	got := make(chan State, 8)
	unsub := src.Subscribe(func(s State) { got <- s })
	defer unsub()

	first := <-got
	if !first.IsConnected {
		t.Fatalf("first state should be connected: %+v", first)
	}
	up <- false

	select {
	case second := <-got:
		if second.IsConnected {
			t.Fatalf("second state should be disconnected: %+v", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestInterfaceSourcePollerTracksSubscribers(t *testing.T) {
	src := NewInterfaceSource(
		WithSysRoot(t.TempDir()),
		WithPollInterval(time.Hour),
		WithLinks(func() ([]Link, error) { return nil, nil }),
	)

	keep := make([]func(), 8)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := src.Subscribe(func(State) {})
			if i < len(keep) {
				keep[i] = unsub
				return
			}
			unsub()
		}()
	}
	wg.Wait()

	running := func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.running
	}
	if src.changes.Len() != len(keep) || !running() {
		t.Fatalf("subscribers = %d, running = %v; want %d and a running poller", src.changes.Len(), running(), len(keep))
	}
	for _, unsub := range keep {
		unsub()
	}
	if src.changes.Len() != 0 || running() {
		t.Fatalf("poller still running with %d subscribers", src.changes.Len())
	}
}
