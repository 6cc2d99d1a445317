package fetcher

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// ProxyManager rotates outbound proxies and tracks their health. A proxy
// that fails at the transport level is benched until every proxy is benched,
// at which point the whole pool is revived.
type ProxyManager struct {
	proxies  []*proxyEntry
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type proxyEntry struct {
	URL      *url.URL
	Healthy  bool
	LastErr  error
	LastUse  time.Time
	Failures int
}

type proxyKey struct{}

// NewProxyManager creates a new ProxyManager from configuration.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	pm := &ProxyManager{
		proxies:  make([]*proxyEntry, 0, len(cfg.URLs)),
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			pm.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, &proxyEntry{URL: u, Healthy: true})
	}

	pm.logger.Info("proxy manager initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// WithProxy pins the proxy used for every request made under ctx.
func WithProxy(ctx context.Context, proxy *url.URL) context.Context {
	return context.WithValue(ctx, proxyKey{}, proxy)
}

// ProxyFunc returns an http.Transport proxy function honoring the proxy
// pinned on the request context. Requests without one go direct.
func (pm *ProxyManager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey{}).(*url.URL); ok {
			return u, nil
		}
		return nil, nil
	}
}

// Next returns the next healthy proxy based on the rotation strategy.
func (pm *ProxyManager) Next() *url.URL {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	healthy := pm.healthyProxies()
	if len(healthy) == 0 {
		if len(pm.proxies) == 0 {
			return nil
		}
		pm.logger.Warn("reviving proxy pool", "error", types.ErrProxyExhausted)
		for _, p := range pm.proxies {
			p.Healthy = true
		}
		healthy = pm.proxies
	}

	var entry *proxyEntry
	switch pm.rotation {
	case "random":
		entry = healthy[rand.Intn(len(healthy))]
	default: // round_robin
		idx := (pm.index.Add(1) - 1) % int64(len(healthy))
		entry = healthy[idx]
	}
	entry.LastUse = time.Now()
	return entry.URL
}

// MarkFailed benches a proxy after a transport failure.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	if proxyURL == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.proxies {
		if p.URL.String() == proxyURL.String() {
			p.Healthy = false
			p.LastErr = err
			p.Failures++
			pm.logger.Warn("proxy marked unhealthy",
				"proxy", proxyURL.Host,
				"failures", p.Failures,
				"error", err,
			)
			return
		}
	}
}

// MarkHealthy restores a proxy after a successful fetch.
func (pm *ProxyManager) MarkHealthy(proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.proxies {
		if p.URL.String() == proxyURL.String() {
			p.Healthy = true
			p.LastErr = nil
			return
		}
	}
}

// Count returns the total number of proxies.
func (pm *ProxyManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies)
}

// HealthyCount returns the number of healthy proxies.
func (pm *ProxyManager) HealthyCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.healthyProxies())
}

func (pm *ProxyManager) healthyProxies() []*proxyEntry {
	healthy := make([]*proxyEntry, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		if p.Healthy {
			healthy = append(healthy, p)
		}
	}
	return healthy
}
