// cmd/scraping/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ps-vitor/phone-prices/internal/app"
	"github.com/ps-vitor/phone-prices/internal/config"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding app.yaml and scraping.yaml")
	brand := flag.String("brand", "", "update a single brand (default: every configured brand)")
	simulate := flag.Bool("simulate", false, "estimate every price with jitter instead of scraping")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	lg := logger.New(cfg.App.Name + " ")

	a, err := app.New(cfg, lg)
	if err != nil {
		log.Fatalf("Error starting: %v", err)
	}
	defer a.Close()

	u, err := a.NewUpdater(*simulate)
	if err != nil {
		log.Fatalf("Error building updater: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	brands := cfg.Updater.Brands
	if *brand != "" {
		brands = []string{*brand}
	}
	sums, runErr := u.RunAll(ctx, brands)

	out, err := json.MarshalIndent(sums, "", "  ")
	if err != nil {
		log.Fatalf("Error marshaling to JSON: %v", err)
	}
	fmt.Println(string(out))
	if runErr != nil {
		lg.Errorf("update finished with errors: %v", runErr)
		a.Close()
		os.Exit(1)
	}
}
