package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/cache"
	"github.com/famomatic/ytfetch/internal/config"
	"github.com/famomatic/ytfetch/internal/history"
	"github.com/famomatic/ytfetch/internal/logging"
	"github.com/famomatic/ytfetch/internal/provider"
	"github.com/famomatic/ytfetch/internal/server"
	"github.com/famomatic/ytfetch/internal/transport"
)

const redisPingTimeout = 2 * time.Second

// runtime is everything a command needs, built from config and flags.
type runtime struct {
	cfg     config.Config
	client  *client.Client
	history *history.Store
	closers []io.Closer
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(opts *Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Verbosity > 0 {
		cfg.Log.Verbosity = opts.Verbosity
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	return cfg, nil
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	rt.closers = append(rt.closers, logging.Setup(logging.Options{
		Verbosity: cfg.Log.Verbosity,
		File:      cfg.Log.File,
		JSON:      cfg.Log.JSON,
	}))

	clientCfg, err := ToClientConfig(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	clientCfg.Cache = rt.openCache(ctx, cfg.Cache)
	rt.client = client.New(clientCfg)

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.history = store
		rt.closers = append(rt.closers, store)
	}
	return rt, nil
}

// ToClientConfig converts the service config to client.Config. The cache
// is left unset; callers attach one.
func ToClientConfig(cfg config.Config) (client.Config, error) {
	httpClient, err := provider.NewHTTPClient(provider.HTTPOptions{
		ProxyURL:    cfg.Provider.ProxyURL,
		CookiesFile: cfg.Provider.CookiesFile,
		Timeout:     cfg.Provider.Timeout,
		Retry: transport.Config{
			MaxRetries:     cfg.Provider.MaxRetries,
			InitialBackoff: cfg.Provider.InitialBackoff,
			MaxBackoff:     cfg.Provider.MaxBackoff,
			OnRetry: func(attempt int, req *http.Request, err error, statusCode int, wait time.Duration) {
				log.Debug().
					Int("attempt", attempt).
					Str("host", req.URL.Host).
					Int("status", statusCode).
					AnErr("error", err).
					Dur("wait", wait).
					Msg("Retrying upstream request")
			},
		},
	})
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		HTTPClient:       httpClient,
		ProxyURL:         cfg.Provider.ProxyURL,
		Provider:         provider.NewYouTube(provider.Options{HTTPClient: httpClient}),
		CacheTTL:         cfg.Cache.TTL,
		RequestTimeout:   cfg.Server.RequestTimeout,
		PresentableLimit: cfg.Server.PresentableLimit,
		Logger:           logging.ClientLogger{Logger: log.Logger},
	}, nil
}

// openCache returns the configured store. An unreachable Redis falls back
// to the in-memory cache.
func (rt *runtime) openCache(ctx context.Context, cfg config.CacheConfig) cache.Store {
	switch cfg.Backend {
	case "none":
		return cache.Nop{}
	case "redis":
		r := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, using in-memory cache")
			_ = r.Close()
			return cache.NewMemory(cfg.MaxEntries)
		}
		rt.closers = append(rt.closers, r)
		return r
	default:
		return cache.NewMemory(cfg.MaxEntries)
	}
}

func (rt *runtime) record(ctx context.Context, e history.Entry) {
	if rt.history == nil || e.VideoID == "" {
		return
	}
	if _, err := rt.history.Record(ctx, e); err != nil {
		log.Warn().Err(err).Str("video_id", e.VideoID).Msg("Failed to record history")
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// BuildServer loads configPath (optional) and returns the HTTP server with
// its dependencies. Used by entry points that host the handler themselves.
func BuildServer(ctx context.Context, configPath string) (*server.Server, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return server.New(serverOptions(rt)), rt, nil
}
