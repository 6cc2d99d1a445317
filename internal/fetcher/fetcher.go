package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher selected by fetcher.type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	var proxyMgr *ProxyManager
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		proxyMgr = NewProxyManager(&cfg.Proxy, logger)
	}

	switch cfg.Fetcher.Type {
	case "", "http":
		return NewHTTPFetcher(cfg, logger, proxyMgr)
	case "browser":
		opts := []BrowserOption{WithBrowserProxy(proxyMgr)}
		if cfg.Fetcher.Stealth {
			opts = append(opts, WithStealth())
		}
		return NewBrowserFetcher(cfg, logger, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrNoFetcher, cfg.Fetcher.Type)
	}
}
