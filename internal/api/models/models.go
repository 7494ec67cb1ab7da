// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

type Health struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type Brands struct {
	Brands []string `json:"brands"`
}

type Catalog struct {
	Brand   string                `json:"brand"`
	Count   int                   `json:"count"`
	Entries []domain.CatalogEntry `json:"entries"`
}

// IntervalRequest is the body of POST /api/price-scheduler/interval.
type IntervalRequest struct {
	Hours int `json:"hours"`
}

type IntervalResponse struct {
	Success bool   `json:"success"`
	Hours   int    `json:"hours"`
	Message string `json:"message"`
}

// ImportRequest accepts discovered models for merge-on-write.
type ImportRequest struct {
	Entries []domain.CatalogEntry `json:"entries"`
}

type Error struct {
	Error string `json:"error"`
}
