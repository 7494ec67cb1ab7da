package money

import (
	"testing"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

func TestFromUSD(t *testing.T) {
	fx := NewFX(3.75)
	p := fx.FromUSD(1055)
	if p.USD != 1055 || p.SAR != 3956 {
		t.Fatalf("got %+v", p)
	}
	if !fx.DerivedFromUSD(p) {
		t.Fatalf("sar should be round(usd * rate): %+v", p)
	}
}

func TestFromSAR(t *testing.T) {
	fx := NewFX(3.75)
	p := fx.FromSAR(4299)
	if p.SAR != 4299 || p.USD != 1146 {
		t.Fatalf("got %+v", p)
	}
	if !fx.Consistent(p) {
		t.Fatalf("should be consistent: %+v", p)
	}
}

func TestFromSAR_OnlyHoldsInSARDirection(t *testing.T) {
	fx := NewFX(3.75)
	// 3752 / 3.75 = 1000.53 -> 1001, but 1001 * 3.75 = 3753.75 -> 3754.
	p := fx.FromSAR(3752)
	if p.SAR != 3752 || p.USD != 1001 {
		t.Fatalf("got %+v", p)
	}
	if !fx.DerivedFromSAR(p) {
		t.Fatalf("usd should be round(sar / rate): %+v", p)
	}
	if fx.DerivedFromUSD(p) {
		t.Fatalf("3752 SAR is two units off round(1001 * 3.75) and must not pass the usd rule")
	}
	if !fx.Consistent(p) {
		t.Fatalf("SAR-sourced price should be consistent: %+v", p)
	}
}

func TestRoundsHalfAwayFromZero(t *testing.T) {
	fx := NewFX(3.75)
	// 2 * 3.75 = 7.5 -> 8
	if p := fx.FromUSD(2); p.SAR != 8 {
		t.Fatalf("got %+v", p)
	}
}

func TestInconsistentPrice(t *testing.T) {
	fx := NewFX(0)
	if fx.Rate() != DefaultSARPerUSD {
		t.Fatalf("default rate not applied: %v", fx.Rate())
	}
	if fx.Consistent(domain.Price{USD: 100, SAR: 500}) {
		t.Fatalf("100 USD / 500 SAR must be inconsistent")
	}
}
