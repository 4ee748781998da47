// Package liveness provides a cached, process-scoped availability check for
// locally hosted HTTP services.
//
// A [Probe] starts Unchecked. The first successful GET against its info path
// moves it to Checked-OK, after which [Probe.Ensure] never touches the network
// again until [Probe.Reset] is called. A failed probe leaves the state
// Unchecked so the next call retries.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned by [Probe.Ensure] when the service did not answer
// the info endpoint with 200 OK.
var ErrUnavailable = errors.New("liveness: local service unavailable")

const (
	// DefaultPath is the info endpoint probed when no path is configured.
	DefaultPath = "/info"

	defaultTimeout = 5 * time.Second
)

// Option is a functional option for [New].
type Option func(*Probe)

// WithPath overrides the probed path (default [DefaultPath]).
func WithPath(path string) Option {
	return func(p *Probe) {
		p.path = path
	}
}

// WithHTTPClient sets the client used for probe requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Probe) {
		p.httpClient = c
	}
}

// WithObserver registers fn to be called after every network probe with its
// outcome. Cached hits do not invoke fn.
func WithObserver(fn func(ok bool)) Option {
	return func(p *Probe) {
		p.observe = fn
	}
}

// Probe is a cached liveness check for one base URL. It is safe for
// concurrent use: callers racing on the first check share a single request.
type Probe struct {
	baseURL    string
	path       string
	httpClient *http.Client
	observe    func(ok bool)

	checked atomic.Bool
	group   singleflight.Group
}

// New creates a Probe for the service at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Probe, error) {
	if baseURL == "" {
		return nil, errors.New("liveness: baseURL must not be empty")
	}
	p := &Probe{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// BaseURL returns the probed service's base URL.
func (p *Probe) BaseURL() string { return p.baseURL }

// Checked reports whether a probe has succeeded since creation or the last
// [Probe.Reset].
func (p *Probe) Checked() bool { return p.checked.Load() }

// Ensure returns nil immediately once a probe has succeeded. Otherwise it
// performs a GET against the info path and caches a 200 response for the
// life of the Probe. Failures are wrapped in [ErrUnavailable] and not cached.
func (p *Probe) Ensure(ctx context.Context) error {
	if p.checked.Load() {
		return nil
	}
	_, err, _ := p.group.Do("probe", func() (any, error) {
		// A concurrent caller may have finished the probe between our Load and Do.
		if p.checked.Load() {
			return nil, nil
		}
		err := p.Check(ctx)
		if p.observe != nil {
			p.observe(err == nil)
		}
		if err != nil {
			return nil, err
		}
		p.checked.Store(true)
		return nil, nil
	})
	return err
}

// Check performs an uncached probe. It is used by readiness endpoints that
// must reflect the service's current state.
func (p *Probe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+p.path, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUnavailable, p.path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned status %d", ErrUnavailable, p.path, resp.StatusCode)
	}
	return nil
}

// Reset forgets a previous successful probe so the next [Probe.Ensure] checks
// the service again. Use it after a local service restart.
func (p *Probe) Reset() {
	p.checked.Store(false)
}
