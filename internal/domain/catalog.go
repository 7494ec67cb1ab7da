// internal/domain/catalog.go
package domain

import (
	"strings"
	"time"
)

const (
	BrandSamsung = "Samsung"
	BrandApple   = "Apple"

	// SourceEstimated tags prices synthesized by the estimation model.
	SourceEstimated = "estimated"

	// Unknown marks an attribute that no source has filled in yet.
	Unknown = "Unknown"

	// EstimatedSuffix is appended to names of models that are announced but not yet released.
	EstimatedSuffix = "(Estimated)"
)

// Price is always populated in both currencies.
type Price struct {
	USD float64 `json:"usd"`
	SAR float64 `json:"sar"`
}

// IsZero reports whether neither currency carries a value.
func (p Price) IsZero() bool { return p.USD == 0 && p.SAR == 0 }

// CatalogEntry is one phone model as persisted in a brand file.
type CatalogEntry struct {
	Model       string `json:"model"`
	Company     string `json:"company,omitempty"`
	ReleaseYear int    `json:"releaseYear"`

	ScreenSize         string `json:"screenSize,omitempty"`
	ScreenSizeLabel    Label  `json:"screenSizeLabel,omitempty"`
	CameraQuality      string `json:"cameraQuality,omitempty"`
	CameraQualityLabel Label  `json:"cameraQualityLabel,omitempty"`
	BatteryLife        string `json:"batteryLife,omitempty"`
	BatteryLifeLabel   Label  `json:"batteryLifeLabel,omitempty"`
	ScreenType         string `json:"screenType,omitempty"`
	ScreenTypeLabel    Label  `json:"screenTypeLabel,omitempty"`

	Price           Price      `json:"price"`
	PriceSource     string     `json:"priceSource,omitempty"`
	LastPriceUpdate *time.Time `json:"lastPriceUpdate,omitempty"`
	IsNew           bool       `json:"isNew,omitempty"`
}

// Key identifies the entry within its brand.
func (e CatalogEntry) Key() string { return NormalizeModel(e.Model) }

// Estimated reports whether the model is tagged as not yet released.
func (e CatalogEntry) Estimated() bool { return IsEstimatedModel(e.Model) }

// RefreshLabels recomputes every derived label from its raw attribute.
func (e *CatalogEntry) RefreshLabels() {
	e.ScreenSizeLabel = CategorizeScreenSize(e.ScreenSize)
	e.CameraQualityLabel = CategorizeCameraQuality(e.CameraQuality)
	e.BatteryLifeLabel = CategorizeBatteryLife(e.BatteryLife)
	e.ScreenTypeLabel = CategorizeScreenType(e.ScreenType)
}

// PriceQuote is one candidate price observation from a single source.
type PriceQuote struct {
	TitleMatched string  `json:"titleMatched,omitempty"`
	USD          float64 `json:"usd"`
	SAR          float64 `json:"sar"`
	Source       string  `json:"source"`
}

// Usable reports whether the quote carries a positive price.
func (q PriceQuote) Usable() bool { return q.USD > 0 && q.SAR > 0 }

// Price returns the quote amounts as a catalog price.
func (q PriceQuote) Price() Price { return Price{USD: q.USD, SAR: q.SAR} }

// BrandFile describes where and under which key a brand's catalog is stored.
type BrandFile struct {
	Brand    string
	FileName string
	Key      string
}

// FileFor returns the persistence layout for a brand. Samsung and Apple keep
// their historical keys; any other brand gets "<brand>Phones".
func FileFor(brand string) BrandFile {
	switch {
	case strings.EqualFold(brand, BrandSamsung):
		return BrandFile{Brand: BrandSamsung, FileName: "Samsung.json", Key: "samsungPhones"}
	case strings.EqualFold(brand, BrandApple):
		return BrandFile{Brand: BrandApple, FileName: "Apple.json", Key: "iPhones"}
	}
	name := strings.TrimSpace(brand)
	return BrandFile{
		Brand:    name,
		FileName: name + ".json",
		Key:      strings.ToLower(name) + "Phones",
	}
}
