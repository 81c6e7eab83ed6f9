package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/nacos-mini/nacos-go/internal/api/handlers"
	"github.com/nacos-mini/nacos-go/internal/api/middleware"
	"github.com/nacos-mini/nacos-go/internal/core/authtoken"
	"github.com/nacos-mini/nacos-go/internal/core/configstore"
	"github.com/nacos-mini/nacos-go/internal/core/notifier"
	"github.com/nacos-mini/nacos-go/internal/core/registry"
	"github.com/nacos-mini/nacos-go/internal/core/tenant"
	"github.com/nacos-mini/nacos-go/internal/metrics"
)

// RouterConfig carries every dependency the route table needs.
type RouterConfig struct {
	ContextPath    string
	AppVersion     string
	Logger         *slog.Logger
	Metrics        *metrics.Registry
	MetricsPath    string
	Configs        *configstore.Store
	Listener       *notifier.Notifier
	Registry       *registry.Store
	Namespaces     *tenant.Store
	Tokens         *authtoken.Store
	RateLimitRPM   int
	RateLimitBurst int
}

// NewRouter builds the full Nacos route table under the configured
// context path (default "/nacos"), wiring the shared middleware chain in
// front of every route and a bearer-token check in front of the console
// and auth-sensitive ones.
func NewRouter(cfg RouterConfig) http.Handler {
	root := mux.NewRouter()

	contextPath := cfg.ContextPath
	if contextPath == "" {
		contextPath = "/nacos"
	}
	app := root.PathPrefix(contextPath).Subrouter()

	app.Use(middleware.RequestIDMiddleware)
	app.Use(middleware.LoggingMiddleware(cfg.Logger))
	if cfg.Metrics != nil {
		app.Use(middleware.MetricsMiddleware(cfg.Metrics))
	}
	// The Nacos web console is a browser SPA that can be served from a
	// different origin than this API during local development, and its
	// XHR calls need the usual CORS headers to succeed.
	app.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig()))
	// Catalog/search/history responses can run to hundreds of KB of JSON;
	// worth compressing on the wire the same as any other bulk response.
	app.Use(middleware.CompressionMiddleware)

	configHandler := handlers.NewConfigHandler(cfg.Configs)
	historyHandler := handlers.NewHistoryHandler(cfg.Configs)
	listenerHandler := handlers.NewListenerHandler(cfg.Listener)
	serviceHandler := handlers.NewServiceHandler(cfg.Registry)
	instanceHandler := handlers.NewInstanceHandler(cfg.Registry)
	namespaceHandler := handlers.NewNamespaceHandler(cfg.Namespaces)
	authHandler := handlers.NewAuthHandler(cfg.Tokens)
	operatorHandler := handlers.NewOperatorHandler(cfg.AppVersion)

	// Publish/import/clone are the routes actual write traffic
	// concentrates on, so they alone carry the rate limiter.
	writeLimited := middleware.RateLimitMiddleware(cfg.RateLimitRPM, cfg.RateLimitBurst)

	app.HandleFunc("/v1/cs/configs", configHandler.Get).Methods(http.MethodGet)
	app.Handle("/v1/cs/configs", writeLimited(http.HandlerFunc(configHandler.Publish))).Methods(http.MethodPost)
	app.HandleFunc("/v1/cs/configs", configHandler.Delete).Methods(http.MethodDelete)
	app.HandleFunc("/v1/cs/configs/catalog", configHandler.Catalog).Methods(http.MethodGet)

	app.HandleFunc("/v1/cs/configs/listener", listenerHandler.Poll).Methods(http.MethodPost)
	app.HandleFunc("/v1/cs/configs/listener", listenerHandler.Get).Methods(http.MethodGet)

	app.HandleFunc("/v1/cs/history", historyHandler.List).Methods(http.MethodGet)
	app.HandleFunc("/v1/cs/history/previous", historyHandler.Previous).Methods(http.MethodGet)

	app.HandleFunc("/v1/cs/health", operatorHandler.ConfigHealth).Methods(http.MethodGet)

	// Console-facing /v3 endpoints require a bearer token.
	console := app.PathPrefix("/v3/console").Subrouter()
	console.Use(middleware.AuthMiddleware(cfg.Tokens))
	console.HandleFunc("/cs/config/listener", listenerHandler.ListByDataID).Methods(http.MethodGet)
	console.HandleFunc("/cs/config/listener/ip", listenerHandler.ListByIP).Methods(http.MethodGet)
	console.HandleFunc("/cs/config/rollback", historyHandler.Rollback).Methods(http.MethodPost)

	// Service registry.
	app.HandleFunc("/v1/ns/service", serviceHandler.Get).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/service", serviceHandler.Create).Methods(http.MethodPost)
	app.HandleFunc("/v1/ns/service", serviceHandler.Update).Methods(http.MethodPut)
	app.HandleFunc("/v1/ns/service", serviceHandler.Delete).Methods(http.MethodDelete)
	app.HandleFunc("/v1/ns/service/list", serviceHandler.List).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/service/names", serviceHandler.Names).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/service/subscribers", serviceHandler.Subscribers).Methods(http.MethodGet)

	app.HandleFunc("/v1/ns/instance", instanceHandler.Register).Methods(http.MethodPost)
	app.HandleFunc("/v1/ns/instance", instanceHandler.Deregister).Methods(http.MethodDelete)
	app.HandleFunc("/v1/ns/instance", instanceHandler.Patch).Methods(http.MethodPut)
	app.HandleFunc("/v1/ns/instance", instanceHandler.Get).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/instance/list", instanceHandler.List).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/instance/beat", instanceHandler.Beat).Methods(http.MethodPut)
	app.HandleFunc("/v1/ns/instance/metadata/batch", instanceHandler.BatchUpdateMetadata).Methods(http.MethodPut)
	app.HandleFunc("/v1/ns/instance/metadata/batch", instanceHandler.BatchDeleteMetadata).Methods(http.MethodDelete)
	app.HandleFunc("/v1/ns/instance/statuses", instanceHandler.StatusReport).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/instance/statuses", instanceHandler.Statuses).Methods(http.MethodPut)
	app.HandleFunc("/v1/ns/health/instance", instanceHandler.Statuses).Methods(http.MethodPut)

	app.HandleFunc("/v1/ns/health", operatorHandler.NamingHealth).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/operator/switches", operatorHandler.Switches).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/operator/servers", operatorHandler.Servers).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/raft/leader", operatorHandler.RaftLeader).Methods(http.MethodGet)
	app.HandleFunc("/v1/ns/operator/metrics", operatorHandler.Metrics).Methods(http.MethodGet)

	// Namespace console.
	nsConsole := app.PathPrefix("/v1/console/namespaces").Subrouter()
	nsConsole.Use(middleware.AuthMiddleware(cfg.Tokens))
	nsConsole.HandleFunc("", namespaceHandler.List).Methods(http.MethodGet)
	nsConsole.HandleFunc("", namespaceHandler.Create).Methods(http.MethodPost)
	nsConsole.HandleFunc("", namespaceHandler.Update).Methods(http.MethodPut)
	nsConsole.HandleFunc("", namespaceHandler.Delete).Methods(http.MethodDelete)

	app.HandleFunc("/v1/auth/users/login", authHandler.Login).Methods(http.MethodPost)

	if cfg.MetricsPath != "" && cfg.Metrics != nil {
		root.Handle(cfg.MetricsPath, cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	root.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	return root
}
