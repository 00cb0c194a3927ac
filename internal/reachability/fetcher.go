package reachability

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetcher issues the lightweight existence check behind a probe.
type Fetcher interface {
	// Head reports whether url answered with a 2xx status. Transport
	// failures are returned as errors.
	Head(ctx context.Context, url string) (bool, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (bool, error)

// Head implements Fetcher.
func (f FetcherFunc) Head(ctx context.Context, url string) (bool, error) {
	return f(ctx, url)
}

// HTTPFetcher probes with HEAD requests.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher with short dial and handshake timeouts.
func NewHTTPFetcher() *HTTPFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTPFetcher{client: &http.Client{Transport: transport}}
}

// NewHTTPFetcherWithClient wraps an existing client.
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Head implements Fetcher.
func (f *HTTPFetcher) Head(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// DialFetcher checks tcp://host:port endpoints by opening and closing a
// connection. A host without a port is dialed on 53.
type DialFetcher struct {
	dialer net.Dialer
}

// Head implements Fetcher.
func (f *DialFetcher) Head(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse probe url: %w", err)
	}
	address := u.Host
	if u.Port() == "" {
		address = net.JoinHostPort(u.Hostname(), "53")
	}
	conn, err := f.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false, err
	}
	_ = conn.Close()
	return true, nil
}

// SchemeFetcher routes tcp:// URLs to a DialFetcher and everything else to
// an HTTPFetcher.
type SchemeFetcher struct {
	HTTP Fetcher
	TCP  Fetcher
}

// NewSchemeFetcher returns the default fetcher used by the service.
func NewSchemeFetcher() *SchemeFetcher {
	return &SchemeFetcher{HTTP: NewHTTPFetcher(), TCP: &DialFetcher{}}
}

// Head implements Fetcher.
func (f *SchemeFetcher) Head(ctx context.Context, rawURL string) (bool, error) {
	if strings.HasPrefix(strings.ToLower(rawURL), "tcp://") {
		return f.TCP.Head(ctx, rawURL)
	}
	return f.HTTP.Head(ctx, rawURL)
}
