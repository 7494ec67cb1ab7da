// cmd/quote/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ps-vitor/phone-prices/internal/app"
	"github.com/ps-vitor/phone-prices/internal/config"
	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/services/pricing"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

type output struct {
	Brand    string              `json:"brand"`
	Model    string              `json:"model"`
	Quotes   []domain.PriceQuote `json:"quotes"`
	Resolved domain.PriceQuote   `json:"resolved"`
	Live     bool                `json:"live"`
}

func main() {
	configDir := flag.String("config", "configs", "directory holding app.yaml and scraping.yaml")
	brand := flag.String("brand", domain.BrandSamsung, "brand")
	model := flag.String("model", "", "model name, e.g. \"Galaxy S24 Ultra\"")
	year := flag.Int("year", time.Now().Year(), "release year used if estimation is needed")
	flag.Parse()
	if *model == "" {
		log.Fatal("-model is required")
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	a, err := app.New(cfg, logger.New("quote "))
	if err != nil {
		log.Fatalf("Error starting: %v", err)
	}
	defer a.Close()

	quotes := a.Resolver.Quotes(context.Background(), *brand, *model)
	out := output{Brand: *brand, Model: *model, Quotes: quotes}
	if best, ok := pricing.Resolve(quotes); ok {
		out.Resolved, out.Live = best, true
	} else {
		out.Resolved = a.Estimator.Estimate(*brand, *model, *year)
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Error marshaling to JSON: %v", err)
	}
	fmt.Println(string(jsonData))
}
