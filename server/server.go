package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/plugin/ai"
	aimetrics "github.com/hrygo/overflew/plugin/ai/metrics"
	apiv1 "github.com/hrygo/overflew/server/router/api/v1"
	"github.com/hrygo/overflew/server/runner/worker"
	"github.com/hrygo/overflew/server/service/persona"
	"github.com/hrygo/overflew/server/service/populate"
	"github.com/hrygo/overflew/server/service/responder"
	"github.com/hrygo/overflew/store"
)

type Server struct {
	Profile   *profile.Profile
	Store     *store.Store
	Pool      *worker.Pool
	Personas  *persona.Registry
	Responder *responder.Responder
	Populate  *populate.Driver
	// Completions aggregates latency and fallback rate of completion calls.
	Completions *aimetrics.Aggregator

	echoServer *echo.Echo
	listener   net.Listener
}

// NewServer wires the completion client, worker pool, persona services and HTTP routes.
// Nothing runs until Start.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	completion, err := ai.NewCompletionService(ai.NewConfigFromProfile(profile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create completion service")
	}
	if !profile.IsAIEnabled() {
		slog.Warn("completion service disabled, personas will answer with the fallback text")
	}
	return newServer(profile, store, completion), nil
}

func newServer(profile *profile.Profile, store *store.Store, completion ai.CompletionService) *Server {
	completions := aimetrics.NewAggregator(aimetrics.DefaultRetention)
	completion = aimetrics.Instrument(completion, completions, profile.AIModel)
	pool := worker.NewPool(worker.Config{
		Workers:       profile.WorkerCount,
		ParallelLimit: profile.ParallelLimit,
	})
	personas := persona.NewRegistry(store, nil)
	r := responder.New(store, pool, personas, completion, responder.NewConfigFromProfile(profile), nil)
	driver := populate.NewDriver(store, pool, personas, r, populate.DefaultConfig(), nil)

	s := &Server{
		Profile:   profile,
		Store:     store,
		Pool:      pool,
		Personas:  personas,
		Responder: r,
		Populate:  driver,

		Completions: completions,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	s.echoServer = echoServer

	apiV1Service := apiv1.NewAPIV1Service(profile, store, pool, personas, r, driver)
	apiV1Service.Completions = completions
	apiV1Service.RegisterRoutes(echoServer)
	return s
}

// Start initializes site settings, starts the workers and begins serving HTTP in the background.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Store.InitSiteSettings(ctx); err != nil {
		return errors.Wrap(err, "failed to init site settings")
	}
	s.Pool.Start()

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.listener = listener
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", slog.String("error", err.Error()))
		}
	}()
	slog.Info("server started", slog.String("address", listener.Addr().String()), slog.String("mode", s.Profile.Mode))
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting requests, drains the worker pool and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown echo server", slog.String("error", err.Error()))
	}

	// Long populate runs are canceled when the deadline hits.
	s.Pool.Shutdown(ctx)

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("server stopped properly")
}
