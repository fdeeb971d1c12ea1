// Command dashboard serves a previously produced risk atlas read-only:
// the full GeoJSON payload, filtered block listings, per-block detail,
// trend series, and CSV export.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/hydro-risk-atlas/internal/api"
	"github.com/couchcryptid/hydro-risk-atlas/internal/atlas"
	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/observability"
	"github.com/couchcryptid/hydro-risk-atlas/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	fc, err := atlas.Read(cfg.AtlasPath)
	if err != nil {
		logger.Error("failed to load atlas", "path", cfg.AtlasPath, "error", err)
		os.Exit(1)
	}
	logger.Info("atlas loaded", "path", cfg.AtlasPath, "blocks", len(fc.Features), "year", fc.ScoredYear)

	repo, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(fc, repo).RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dashboard listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
