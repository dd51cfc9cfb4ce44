// @title Taskdesk Backend API
// @version 1.0
// @description Task management API with role-based access.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/app"
	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New("error", "json", os.Stderr).Fatal("invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to start application", map[string]interface{}{
			"driver": cfg.Database.Driver,
			"error":  err.Error(),
		})
	}

	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           application.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{
			"addr":          srv.Addr,
			"environment":   cfg.Server.Environment,
			"account_store": cfg.Accounts.Backend,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped unexpectedly", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	if err := application.Close(); err != nil {
		log.Error("failed to release resources", map[string]interface{}{"error": err.Error()})
	}

	log.Info("server stopped", nil)
}
