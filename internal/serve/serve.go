// Package serve assembles the coordinator's HTTP surface: the chi router,
// middleware chain, and every route in the REST surface, wired to the
// concrete Store/EscrowAdapter/IdentityAdapter/SettlementDispatcher
// instances built by cmd.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"

	"github.com/agentmarket/coordinator/db"
	"github.com/agentmarket/coordinator/internal/data"
	"github.com/agentmarket/coordinator/internal/dispatcher"
	"github.com/agentmarket/coordinator/internal/escrow"
	"github.com/agentmarket/coordinator/internal/identity"
	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/monitor"
	"github.com/agentmarket/coordinator/internal/serve/httphandler"
	"github.com/agentmarket/coordinator/internal/serve/middleware"
)

type HTTPServerInterface interface {
	Run(conf supporthttp.Config)
}

type HTTPServer struct{}

func (h *HTTPServer) Run(conf supporthttp.Config) {
	supporthttp.Run(conf)
}

type Options struct {
	Port               int
	DBConnectionPool   db.DBConnectionPool
	Models             *data.Models
	EscrowAdapter      escrow.Adapter
	IdentityAdapter    identity.Adapter
	Dispatcher         *dispatcher.Dispatcher
	MonitorService     monitor.MonitorServiceInterface
	CorsAllowedOrigins []string
}

const (
	rateLimitPerWindow = 100
	rateLimitWindow    = 20 * time.Second
)

func Serve(opts Options, httpServer HTTPServerInterface) error {
	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := supporthttp.Config{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		TCPKeepAlive:        3 * time.Minute,
		ShutdownGracePeriod: 30 * time.Second,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        35 * time.Second,
		IdleTimeout:         2 * time.Minute,
		OnStarting: func() {
			logging.Infof("starting coordinator server")
			logging.Infof("listening on %s", listenAddr)
		},
		OnStopping: func() {
			logging.Info("closing coordinator database connection pool")
			if err := db.CloseConnectionPoolIfNeeded(context.Background(), opts.DBConnectionPool); err != nil {
				logging.Errorf("closing database connection: %v", err)
			}
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func handleHTTP(o Options) *chi.Mux {
	mux := chi.NewMux()

	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(httprate.Limit(
		rateLimitPerWindow,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
	))
	mux.Use(chimiddleware.RequestID)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))
	mux.Use(chimiddleware.CleanPath)

	mux.Get("/health", httphandler.HealthHandler{}.ServeHTTP)
	mux.Get("/readyz", httphandler.ReadinessHandler{DBConnectionPool: o.DBConnectionPool}.ServeHTTP)
	mux.Handle("/metrics", metricsHandler(o.MonitorService))

	agentsHandler := httphandler.AgentsHandler{Models: o.Models, IdentityAdapter: o.IdentityAdapter}
	mux.Route("/agents", func(r chi.Router) {
		r.Get("/", agentsHandler.GetAll)
		r.Post("/", agentsHandler.Create)
		r.Patch("/{id}", agentsHandler.Patch)
	})

	jobBoardHandler := httphandler.JobBoardHandler{Models: o.Models, EscrowAdapter: o.EscrowAdapter, Dispatcher: o.Dispatcher}
	mux.Route("/jobboard", func(r chi.Router) {
		r.Get("/", jobBoardHandler.GetAll)
		r.Post("/", jobBoardHandler.Create)
		r.Post("/{id}/confirm-escrow", jobBoardHandler.ConfirmEscrow)
		r.Post("/{id}/bid", jobBoardHandler.SubmitBid)
		r.Post("/{id}/accept", jobBoardHandler.AcceptBid)
	})

	tasksHandler := httphandler.TasksHandler{Models: o.Models, Dispatcher: o.Dispatcher}
	mux.Route("/tasks", func(r chi.Router) {
		r.Get("/", tasksHandler.ListByCreator)
		r.Get("/activity/feed", tasksHandler.ActivityFeed)
		r.Get("/{id}", tasksHandler.Get)
		r.Patch("/{id}/status", tasksHandler.PatchStatus)
		r.Post("/{id}/work", tasksHandler.SubmitWork)
		r.Post("/{id}/refund", tasksHandler.Refund)
	})

	identityHandler := httphandler.IdentityHandler{IdentityAdapter: o.IdentityAdapter}
	mux.Get("/identity/lookup/{handle}", identityHandler.Lookup)

	return mux
}

func metricsHandler(monitorService monitor.MonitorServiceInterface) chi.Router {
	mux := chi.NewMux()
	handler, err := monitorService.GetMetricHttpHandler()
	if err != nil {
		logging.Errorf("getting metrics http handler: %s", err)
		return mux
	}
	mux.Handle("/", handler)
	return mux
}
