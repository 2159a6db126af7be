package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abk90/pointage-bot/internal/status"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunDaemon syncs on a fixed interval until SIGINT or SIGTERM. The first sync
// runs immediately. When STATUS_ADDR is set a read-only status API is served
// alongside the loop.
func (a *App) RunDaemon(ctx context.Context, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if a.Cfg.StatusAddr != "" {
		server = a.startStatusServer()
		defer a.stopStatusServer(server)
	}

	a.log.Info("daemon started", zap.Duration("interval", interval))

	a.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("daemon stopping")
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick runs one sync pass. Failures are logged and the loop keeps going; a
// transient outage on either side must not kill the daemon.
func (a *App) tick(ctx context.Context) {
	report, err := a.runSyncDaemon(ctx)
	if err != nil {
		a.log.Error("sync run failed", zap.Error(err))
		return
	}
	a.log.Info("sync run complete",
		zap.String("run_id", report.RunID),
		zap.Int("punches", report.Stats.TotalPunches),
		zap.Int("errors", report.Stats.Errors))
}

func (a *App) startStatusServer() *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	status.RegisterRoutes(router, status.NewHandler(a.Store))

	server := &http.Server{
		Addr:    a.Cfg.StatusAddr,
		Handler: router,
	}
	go func() {
		a.log.Info("status API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("status API failed", zap.Error(err))
		}
	}()
	return server
}

func (a *App) stopStatusServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("status API shutdown", zap.Error(err))
	}
}
