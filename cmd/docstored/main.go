// cmd/docstored/main.go
//
// Document store – HTTP entry point.
//
// Startup life-cycle
// ------------------
//
//  1. Load env vars (host-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load and validate configuration (YAML + DOCSTORE_* env overlay).
//
//  4. Resolve the database password from Vault when the config points at
//     a KV path, then open the pool and ensure the schema exists.
//
//  5. Open the GeoLite2 database when configured, for request enrichment.
//
//  6. Mount Prometheus /metrics, a liveness probe, and the document API
//     behind the request-enrichment middleware.
//
//  7. Serve until SIGINT/SIGTERM, then drain in-flight requests.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/docstore/internal/api"
	"github.com/yanizio/docstore/internal/config"
	"github.com/yanizio/docstore/internal/database"
	"github.com/yanizio/docstore/internal/logger"
	"github.com/yanizio/docstore/internal/repository"
	"github.com/yanizio/docstore/internal/requestinfo"
	"github.com/yanizio/docstore/internal/server"
	"github.com/yanizio/docstore/internal/vault"
)

const serverEnvPath = "/usr/local/etc/docstore/global.env"

// loadEnv prefers the host-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		logOut.Fatalf("load config: %v", err)
	}

	//
	// ── 2.  Database connect (Vault-backed password when configured) ────
	//
	dbCfg := cfg.Database
	if dbCfg.PasswordVaultPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		vc, err := vault.New(ctx)
		if err != nil {
			cancel()
			logOut.Fatalf("connect vault: %v", err)
		}
		key := dbCfg.PasswordVaultKey
		if key == "" {
			key = "password"
		}
		pw, err := vc.GetKV(ctx, dbCfg.PasswordVaultPath, key, 5*time.Minute)
		cancel()
		if err != nil {
			logOut.Fatalf("read db password from vault: %v", err)
		}
		dbCfg.Password = pw
	}

	logOut.Info("connecting to database …")
	db, err := database.OpenWithOptions(dbCfg.ResolvedDSN(),
		dbCfg.MaxOpenConns, dbCfg.MaxIdleConns)
	if err != nil {
		logOut.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(context.Background(), db); err != nil {
		logOut.Fatalf("ensure schema: %v", err)
	}
	logOut.Info("database online")

	//
	// ── 3.  Geo enrichment (optional) ───────────────────────────────────
	//
	if cfg.Geo.MMDBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.MMDBPath); err != nil {
			logOut.Warnf("geo database unavailable: %v", err)
		} else {
			defer requestinfo.CloseGeo()
		}
	}

	//
	// ── 4.  Router: metrics, liveness, document API ─────────────────────
	//
	handlers := api.New(repository.New(db, nil))

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Group(func(r chi.Router) {
		r.Use(requestinfo.Enrich)
		r.Mount("/api/v1/documents", handlers.Routes())
	})

	//
	// ── 5.  Serve with graceful drain on SIGINT/SIGTERM ─────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r)

	errCh := make(chan error, 1)
	go func() {
		logOut.Infof("listening on %s", cfg.HTTP.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalf("http server: %v", err)
		}
	case sig := <-stop:
		logOut.Infof("received %s, draining", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logOut.Errorf("shutdown: %v", err)
		}
	}
}
