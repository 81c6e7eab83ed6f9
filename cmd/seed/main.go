// Package main seeds a fresh database with a handful of example configs,
// services and instances, useful for kicking the tires on a new server
// without wiring up real clients first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nacos-mini/nacos-go/internal/config"
	"github.com/nacos-mini/nacos-go/internal/core/configstore"
	"github.com/nacos-mini/nacos-go/internal/core/registry"
	"github.com/nacos-mini/nacos-go/internal/database"
	"github.com/nacos-mini/nacos-go/internal/storage/sqlite"
	"github.com/nacos-mini/nacos-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})

	ctx := context.Background()
	db, err := sqlite.Open(ctx, sqlite.Options{Path: cfg.SQLite.Path})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, logr); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	configs := configstore.New(db, 64)
	services := registry.New(db)

	seedConfigs := []struct {
		dataID, group, content, typ string
	}{
		{"example.properties", "DEFAULT_GROUP", "server.port=8080\nserver.timeout=30s\n", "properties"},
		{"example.yaml", "DEFAULT_GROUP", "feature:\n  enabled: true\n  rollout: 0.1\n", "yaml"},
	}
	for _, c := range seedConfigs {
		triple := configstore.Triple{DataID: c.dataID, Group: c.group}
		if err := configs.Publish(ctx, triple, configstore.PublishRequest{
			Content: c.content, Type: c.typ, SrcUser: "seed",
		}); err != nil {
			log.Fatalf("publish %s: %v", c.dataID, err)
		}
	}

	serviceKey := registry.Key{Group: "DEFAULT_GROUP", Service: "example-service"}
	if err := services.CreateService(ctx, serviceKey, registry.CreateServiceRequest{ProtectThreshold: 0.5}); err != nil {
		log.Fatalf("create service: %v", err)
	}
	if err := services.RegisterInstance(ctx, serviceKey, registry.RegisterRequest{
		IP: "127.0.0.1", Port: 9000, Healthy: true, Enabled: true,
	}); err != nil {
		log.Fatalf("register instance: %v", err)
	}

	fmt.Fprintln(os.Stdout, "seed complete: 2 configs, 1 service, 1 instance")
}
