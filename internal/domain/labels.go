package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Label is an ordinal bucket derived from a raw attribute string.
type Label string

const (
	LabelSmall    Label = "small"
	LabelMedium   Label = "medium"
	LabelLarge    Label = "large"
	LabelBad      Label = "bad"
	LabelGood     Label = "good"
	LabelVeryGood Label = "very good"
)

// Bucket boundaries.
const (
	SmallScreenBelowInches = 5.0
	MediumScreenUpToInches = 6.5
	BadBatteryBelowMAh     = 3000
	GoodBatteryUpToMAh     = 4500
	BadCameraBelowMP       = 10
	GoodCameraUpToMP       = 30
)

var (
	leadingNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
	megapixels    = regexp.MustCompile(`(?i)(\d+)\s*MP`)
)

func unset(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == Unknown
}

// CategorizeScreenSize buckets a diagonal such as `6.8"`.
func CategorizeScreenSize(raw string) Label {
	if unset(raw) {
		return ""
	}
	m := leadingNumber.FindString(raw)
	size, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return ""
	}
	switch {
	case size < SmallScreenBelowInches:
		return LabelSmall
	case size <= MediumScreenUpToInches:
		return LabelMedium
	default:
		return LabelLarge
	}
}

// CategorizeBatteryLife buckets a capacity such as "4,500 mAh".
func CategorizeBatteryLife(raw string) Label {
	if unset(raw) {
		return ""
	}
	capacity, err := strconv.Atoi(nonDigits.ReplaceAllString(raw, ""))
	if err != nil {
		return ""
	}
	switch {
	case capacity < BadBatteryBelowMAh:
		return LabelBad
	case capacity <= GoodBatteryUpToMAh:
		return LabelGood
	default:
		return LabelVeryGood
	}
}

// CategorizeCameraQuality buckets a camera description. Multi-lens setups rank
// highest regardless of resolution; otherwise the first megapixel figure decides.
func CategorizeCameraQuality(raw string) Label {
	if unset(raw) {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "quad") || strings.Contains(lower, "triple") {
		return LabelVeryGood
	}
	m := megapixels.FindStringSubmatch(raw)
	if m == nil {
		return LabelGood
	}
	mp, _ := strconv.Atoi(m[1])
	switch {
	case mp < BadCameraBelowMP:
		return LabelBad
	case mp <= GoodCameraUpToMP:
		return LabelGood
	default:
		return LabelVeryGood
	}
}

// CategorizeScreenType ranks panel technologies.
func CategorizeScreenType(raw string) Label {
	if unset(raw) {
		return ""
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "oled"), strings.Contains(lower, "xdr"):
		return LabelVeryGood
	case strings.Contains(lower, "lcd"), strings.Contains(lower, "ips"), strings.Contains(lower, "retina"):
		return LabelGood
	default:
		return LabelBad
	}
}
