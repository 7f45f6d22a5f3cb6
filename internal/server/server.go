// Package server exposes the client operations over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/history"
)

// VideoService is the subset of *client.Client the handlers use.
type VideoService interface {
	Inspect(ctx context.Context, input string, limit int) (*client.Report, error)
	ResolveStreamURL(ctx context.Context, input string, opts client.DownloadOptions) (client.FormatInfo, string, error)
	OpenStream(ctx context.Context, input string, opts client.DownloadOptions) (*client.Download, error)
}

// HistoryStore records and lists operations. Optional.
type HistoryStore interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options configures the HTTP server.
type Options struct {
	Service          VideoService
	History          HistoryStore
	CORSOrigins      []string
	RateLimit        float64 // per client IP; 0 disables
	RateBurst        int
	RequestTimeout   time.Duration
	PresentableLimit int
	Version          string
	Logger           zerolog.Logger
}

// Server holds the gin engine and its dependencies.
type Server struct {
	opts   Options
	engine *gin.Engine
	log    zerolog.Logger
}

// New builds the router.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	if opts.PresentableLimit <= 0 {
		opts.PresentableLimit = client.DefaultPresentableLimit
	}

	s := &Server{opts: opts, log: opts.Logger}
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.log), cors(opts.CORSOrigins))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	if opts.RateLimit > 0 {
		api.Use(rateLimit(newIPLimiter(opts.RateLimit, max(1, opts.RateBurst))))
	}
	api.GET("/resolve", s.handleResolve)
	api.GET("/info", s.handleInfo)
	api.GET("/download", s.handleDownload)
	api.GET("/history", s.handleHistory)

	r.NoRoute(func(c *gin.Context) {
		abortError(c, http.StatusNotFound, "not_found", "route not found")
	})

	s.engine = r
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
