package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"linkcore/internal/models"
)

const (
	streamPushInterval = 60 * time.Second
	streamWriteTimeout = 5 * time.Second
	streamBuffer       = 16

	eventStatus   = "status"
	eventEndpoint = "endpoint"
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type streamEvent struct {
	Type     string                 `json:"type"`
	Status   *statusResponse        `json:"status,omitempty"`
	Endpoint *models.EndpointStatus `json:"endpoint,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveStream(conn)
}

// serveStream sends the current status, then every committed status change
// and endpoint result. Slow clients drop events rather than block the engine.
func (s *Server) serveStream(conn *websocket.Conn) {
	defer conn.Close()

	logger := s.logger.With("client", uuid.NewString())
	logger.Debug("stream client connected")
	defer logger.Debug("stream client disconnected")

	events := make(chan streamEvent, streamBuffer)
	push := func(ev streamEvent) {
		select {
		case events <- ev:
		default:
			logger.Debug("stream event dropped", "type", ev.Type)
		}
	}

	unsubStatus := s.engine.OnConnectionChange(func(status models.ConnectionStatus) {
		snap := s.snapshotOf(status)
		push(streamEvent{Type: eventStatus, Status: &snap})
	})
	defer unsubStatus()
	unsubEndpoint := s.engine.OnEndpointStatusChange(func(es models.EndpointStatus) {
		push(streamEvent{Type: eventEndpoint, Endpoint: &es})
	})
	defer unsubEndpoint()

	snap := s.statusSnapshot()
	if err := writeStreamEvent(conn, streamEvent{Type: eventStatus, Status: &snap}); err != nil {
		return
	}

	ticker := time.NewTicker(streamPushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := writeStreamEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			snap := s.statusSnapshot()
			if err := writeStreamEvent(conn, streamEvent{Type: eventStatus, Status: &snap}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeStreamEvent(conn *websocket.Conn, ev streamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(ev)
}
