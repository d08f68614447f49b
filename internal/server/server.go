// Package server exposes the catalog over HTTP for operators and scripts
// that do not speak the tool protocol.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/reconctl/internal/auth"
	"github.com/danmuck/reconctl/internal/observability"
	"github.com/danmuck/reconctl/internal/operations"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Dispatcher is the catalog entry point. *operations.Dispatcher satisfies it.
type Dispatcher interface {
	Registry() *operations.Registry
	Dispatch(ctx context.Context, name string, args map[string]any) operations.Result
}

// RawRunner runs an unconstrained shell line. *rawcmd.Path satisfies it.
type RawRunner interface {
	Run(ctx context.Context, commandLine string) (string, error)
}

type Options struct {
	Addr        string
	CorsOrigins []string
	// Token, when set, is required as a bearer token on every route but
	// /health.
	Token string
}

type Server struct {
	Addr    string
	Started time.Time

	dispatcher Dispatcher
	raw        RawRunner
	router     *gin.Engine
}

// New builds the router. A nil raw leaves the raw command route
// unregistered.
func New(opts Options, d Dispatcher, raw RawRunner) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	if opts.Token != "" {
		r.Use(auth.Middleware(auth.StaticToken{Token: opts.Token}, "/health"))
	} else if raw != nil {
		log.Warn().Str("addr", opts.Addr).Msg("raw command route is served without a token")
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:       opts.Addr,
		Started:    time.Now(),
		dispatcher: d,
		raw:        raw,
		router:     r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve listens on Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Str("addr", s.Addr).Msg("http stopped")
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
