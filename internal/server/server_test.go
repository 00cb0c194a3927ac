package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"linkcore/internal/i18n"
	"linkcore/internal/logging"
	"linkcore/internal/models"
	"linkcore/internal/netstate"
	"linkcore/internal/reachability"
	"linkcore/internal/storage"
)

type fixture struct {
	server  *Server
	source  *netstate.Manual
	engine  *reachability.Engine
	history *storage.StatusHistory
}

func wifi(reachable bool) netstate.State {
	return netstate.State{
		IsConnected:       true,
		InternetReachable: netstate.Bool(reachable),
		Type:              models.ConnectionWifi,
		Details:           netstate.Details{SSID: netstate.String("home")},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	source := netstate.NewManual(wifi(true))
	fetcher := reachability.FetcherFunc(func(context.Context, string) (bool, error) { return true, nil })
	engine := reachability.New(source, fetcher, reachability.WithBuiltinEndpoints(nil))
	t.Cleanup(engine.Close)

	hist, err := storage.NewStatusHistory("", 50)
	if err != nil {
		t.Fatalf("NewStatusHistory() error = %v", err)
	}
	engine.OnConnectionChange(func(s models.ConnectionStatus) { _ = hist.Record(s, time.Now()) })

	endpoints := []models.Endpoint{{Name: "docs", URL: "https://docs.test/", TimeoutSeconds: 60}}
	if err := engine.Initialize(ctx, endpoints); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	tables, err := i18n.DefaultTables()
	if err != nil {
		t.Fatalf("DefaultTables() error = %v", err)
	}
	svc := i18n.NewService(nil, nil, logging.Escalator{})
	if _, err := svc.Init(ctx, i18n.Config{Translations: tables}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	srv := New(":0", Deps{Reachability: engine, I18n: svc, History: hist})
	return &fixture{server: srv, source: source, engine: engine, history: hist}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var resp statusResponse
	decode(t, rec, &resp)
	if !resp.Status.IsReachable || resp.State != "online" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Status.SSID == nil || *resp.Status.SSID != "home" {
		t.Fatalf("ssid = %v", resp.Status.SSID)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/api/status", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status code = %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET" {
		t.Fatalf("Allow = %q", got)
	}
}

func TestHistoryAndTimeline(t *testing.T) {
	f := newFixture(t)
	f.source.Push(wifi(false))

	rec := f.do(t, http.MethodGet, "/api/history?limit=10", "")
	var samples []models.StatusSample
	decode(t, rec, &samples)
	if len(samples) != 2 {
		t.Fatalf("history len = %d, want 2", len(samples))
	}
	if samples[1].Status.IsReachable {
		t.Fatalf("latest sample should be unreachable: %+v", samples[1])
	}

	rec = f.do(t, http.MethodGet, "/api/timeline?hours=1&points=4", "")
	var points []models.TimelinePoint
	decode(t, rec, &points)
	if len(points) != 4 {
		t.Fatalf("timeline len = %d, want 4", len(points))
	}
}

func TestProbe(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/probe?name=docs&force=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d body=%s", rec.Code, rec.Body.String())
	}
	var es models.EndpointStatus
	decode(t, rec, &es)
	if es.Name != "docs" || !es.Reachable {
		t.Fatalf("probe = %+v", es)
	}

	if rec := f.do(t, http.MethodPost, "/api/probe?name=missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown endpoint code = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/probe", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name code = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/probe?name=docs", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET probe code = %d", rec.Code)
	}
}

func TestEndpointsListing(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/endpoints", "")
	var list []models.Endpoint
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Name != "docs" {
		t.Fatalf("endpoints = %+v", list)
	}
}

func TestLocaleSwitch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/i18n/locale", `{"locale":"sw-KE"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp localeRequest
	decode(t, rec, &resp)
	if resp.Locale != "sw-KE" {
		t.Fatalf("locale = %q, want sw-KE", resp.Locale)
	}

	rec = f.do(t, http.MethodGet, "/api/i18n/locales", "")
	var locales localesResponse
	decode(t, rec, &locales)
	if locales.Current != "sw-KE" || locales.Chain[1] != "sw" || len(locales.Available) != 2 {
		t.Fatalf("locales = %+v", locales)
	}

	if rec := f.do(t, http.MethodPut, "/api/i18n/locale", `{"locale":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty locale code = %d", rec.Code)
	}
}

func TestTranslate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/i18n/translate?key=inboxMessages&arg.name=Ann&arg.messages=3", "")
	var resp translateResponse
	decode(t, rec, &resp)
	if !resp.Translated || resp.Text != "Hello Ann, you have 3 messages." {
		t.Fatalf("translate = %+v", resp)
	}

	rec = f.do(t, http.MethodPost, "/api/i18n/translate", `{"key":"connectivity.online","locale":"sw"}`)
	decode(t, rec, &resp)
	if !resp.Translated || resp.Locale != "sw" || resp.Text == "You are online" {
		t.Fatalf("sw translate = %+v", resp)
	}

	rec = f.do(t, http.MethodGet, "/api/i18n/translate?key=no.such.key", "")
	resp = translateResponse{}
	decode(t, rec, &resp)
	if resp.Translated || resp.Text != "no.such.key" || resp.Explanation == "" {
		t.Fatalf("miss = %+v", resp)
	}

	if rec := f.do(t, http.MethodGet, "/api/i18n/translate", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key code = %d", rec.Code)
	}
}

func TestManifest(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/i18n/manifest", "")
	var manifest i18n.Manifest
	decode(t, rec, &manifest)
	if manifest.Code != "en" {
		t.Fatalf("manifest code = %q", manifest.Code)
	}
	entry, ok := manifest.Entries["inboxMessages"]
	if !ok || len(entry.Params) != 2 {
		t.Fatalf("inboxMessages entry = %+v", entry)
	}
}

func TestStreamPushesStatusChanges(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev streamEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read initial event: %v", err)
	}
	if ev.Type != eventStatus || ev.Status == nil || ev.Status.State != "online" {
		t.Fatalf("initial event = %+v", ev)
	}

	f.source.Push(wifi(false))

	ev = streamEvent{}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read change event: %v", err)
	}
	if ev.Type != eventStatus || ev.Status == nil || ev.Status.State != "degraded" {
		t.Fatalf("change event = %+v", ev)
	}
}
