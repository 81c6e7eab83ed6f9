// Package main is the entry point for the configuration-and-registry
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nacos-mini/nacos-go/internal/api"
	"github.com/nacos-mini/nacos-go/internal/config"
	"github.com/nacos-mini/nacos-go/internal/core/authtoken"
	"github.com/nacos-mini/nacos-go/internal/core/configstore"
	"github.com/nacos-mini/nacos-go/internal/core/notifier"
	"github.com/nacos-mini/nacos-go/internal/core/registry"
	"github.com/nacos-mini/nacos-go/internal/core/tenant"
	"github.com/nacos-mini/nacos-go/internal/database"
	"github.com/nacos-mini/nacos-go/internal/metrics"
	"github.com/nacos-mini/nacos-go/internal/storage/sqlite"
	"github.com/nacos-mini/nacos-go/pkg/logger"
)

const (
	serviceName    = "nacos-go"
	serviceVersion = "1.0.0"

	subscriberPruneInterval = 10 * time.Minute
	subscriberMaxAge        = 24 * time.Hour

	configCacheSize = 2048
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	log.Info("starting server", "service", serviceName, "version", serviceVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(ctx, sqlite.Options{
		Path:            cfg.SQLite.Path,
		MaxOpenConns:    cfg.SQLite.MaxOpenConns,
		MaxIdleConns:    cfg.SQLite.MaxIdleConns,
		ConnMaxLifetime: cfg.SQLite.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.SQLite.ConnMaxIdleTime,
	})
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db, log); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	configs := configstore.New(db, configCacheSize)
	listener := notifier.New(db, configs)
	services := registry.New(db)
	namespaces := tenant.New(db)
	tokens := authtoken.New(db, cfg.Auth.TokenTTL)
	if _, err := tokens.CleanupExpired(ctx); err != nil {
		log.Warn("expired token cleanup failed", "error", err)
	}
	reg := metrics.New(serviceName)

	go listener.RunPruner(ctx, subscriberPruneInterval, subscriberMaxAge, func(err error) {
		log.Warn("subscriber prune failed", "error", err)
	})

	router := api.NewRouter(api.RouterConfig{
		ContextPath:    cfg.Server.ContextPath,
		AppVersion:     serviceVersion,
		Logger:         log,
		Metrics:        reg,
		MetricsPath:    cfg.Metrics.Path,
		Configs:        configs,
		Listener:       listener,
		Registry:       services,
		Namespaces:     namespaces,
		Tokens:         tokens,
		RateLimitRPM:   600,
		RateLimitBurst: 100,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}
