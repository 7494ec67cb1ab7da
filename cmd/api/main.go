// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ps-vitor/phone-prices/internal/app"
	"github.com/ps-vitor/phone-prices/internal/config"
	"github.com/ps-vitor/phone-prices/internal/services/scheduler"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding app.yaml and scraping.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	lg := logger.New(cfg.App.Name + " ")

	a, err := app.New(cfg, lg)
	if err != nil {
		lg.Errorf("startup: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.Scheduler
	if !cfg.Scheduler.Disabled {
		u, err := a.NewUpdater(false)
		if err != nil {
			lg.Errorf("updater: %v", err)
			os.Exit(1)
		}
		sched = a.NewScheduler(u)
		if err := sched.Start(ctx); err != nil {
			lg.Errorf("scheduler: %v", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           a.Router(sched),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Infof("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorf("http: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warnf("http shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
}
