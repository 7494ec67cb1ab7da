package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ps-vitor/phone-prices/internal/domain"
	"github.com/ps-vitor/phone-prices/internal/estimate"
	"github.com/ps-vitor/phone-prices/internal/history"
	"github.com/ps-vitor/phone-prices/internal/metrics"
	"github.com/ps-vitor/phone-prices/internal/repositories"
	"github.com/ps-vitor/phone-prices/internal/services/catalog"
	"github.com/ps-vitor/phone-prices/internal/services/scheduler"
)

type fakeScheduler struct {
	running bool
	hours   int
}

func (f *fakeScheduler) TriggerUpdate() scheduler.TriggerResult {
	if f.running {
		return scheduler.TriggerResult{Accepted: false, Message: "Price update already in progress"}
	}
	f.running = true
	return scheduler.TriggerResult{Accepted: true, Message: "Price update started"}
}

func (f *fakeScheduler) Status() scheduler.Status {
	return scheduler.Status{IsRunning: f.running, UpdateInterval: int64(f.hours) * 3600000}
}

func (f *fakeScheduler) SetInterval(ctx context.Context, hours int) error {
	if hours < scheduler.MinIntervalHours || hours > scheduler.MaxIntervalHours {
		return scheduler.ErrInvalidInterval
	}
	f.hours = hours
	return nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeScheduler) {
	t.Helper()
	repo := repositories.NewFileCatalogRepository(t.TempDir(), domain.BrandSamsung, domain.BrandApple)
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.Save(context.Background(), domain.BrandSamsung, []domain.CatalogEntry{
		{Model: "Galaxy S24", ReleaseYear: 2024, Price: domain.Price{USD: 800, SAR: 3000}, PriceSource: "noon.com", LastPriceUpdate: &ts},
	}); err != nil {
		t.Fatal(err)
	}
	hist := history.NewMemoryStore()
	_ = hist.Append(context.Background(), history.Point{Brand: domain.BrandSamsung, Model: "Galaxy S24", Price: domain.Price{USD: 800, SAR: 3000}, At: ts})

	svc := catalog.NewCatalogService(repo, hist, estimate.New(estimate.Options{ReferenceYear: 2025}), []string{domain.BrandSamsung, domain.BrandApple})
	fs := &fakeScheduler{hours: 24}
	r := NewRouter(NewAPIHandler(svc, nil), NewSchedulerHandler(fs, nil), metrics.NewRegistry().Handler(), nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, fs
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func TestCatalogRoutes(t *testing.T) {
	srv, _ := newServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/api/catalog/Samsung", "")
	if res.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}

	res, _ = do(t, http.MethodGet, srv.URL+"/api/catalog/Nokia", "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown brand status=%d", res.StatusCode)
	}

	res, body = do(t, http.MethodGet, srv.URL+"/api/price-sources", "")
	if res.StatusCode != http.StatusOK || body["totalFromLiveSources"] != float64(1) {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}

	res, body = do(t, http.MethodGet, srv.URL+"/api/brands", "")
	if res.StatusCode != http.StatusOK || len(body["brands"].([]any)) != 2 {
		t.Fatalf("brands=%v", body)
	}
}

func TestHistoryRoute(t *testing.T) {
	srv, _ := newServer(t)

	res, err := http.Get(srv.URL + "/api/catalog/Samsung/history?model=Galaxy%20S24")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var pts []history.Point
	if err := json.NewDecoder(res.Body).Decode(&pts); err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK || len(pts) != 1 || pts[0].Price.SAR != 3000 {
		t.Fatalf("status=%d pts=%+v", res.StatusCode, pts)
	}

	if res, _ := do(t, http.MethodGet, srv.URL+"/api/catalog/Samsung/history", ""); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing model status=%d", res.StatusCode)
	}
}

func TestImportRoute(t *testing.T) {
	srv, _ := newServer(t)
	res, body := do(t, http.MethodPost, srv.URL+"/api/catalog/Samsung/import",
		`{"entries":[{"model":"Galaxy S25","releaseYear":2025},{"model":"galaxy s24","screenSize":"6.2 inches"}]}`)
	if res.StatusCode != http.StatusOK || body["added"] != float64(1) || body["updated"] != float64(1) {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}
	if res, _ := do(t, http.MethodPost, srv.URL+"/api/catalog/Samsung/import", `not json`); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body status=%d", res.StatusCode)
	}
}

func TestSchedulerRoutes(t *testing.T) {
	srv, fs := newServer(t)

	res, body := do(t, http.MethodPost, srv.URL+"/api/price-scheduler/trigger", "")
	if res.StatusCode != http.StatusAccepted || body["accepted"] != true {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodPost, srv.URL+"/api/price-scheduler/trigger", "")
	if res.StatusCode != http.StatusConflict || body["accepted"] != false {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}

	res, body = do(t, http.MethodGet, srv.URL+"/api/price-scheduler/status", "")
	if res.StatusCode != http.StatusOK || body["isRunning"] != true {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}

	for _, bad := range []string{`{"hours":0}`, `{"hours":169}`, `{`} {
		if res, _ := do(t, http.MethodPost, srv.URL+"/api/price-scheduler/interval", bad); res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", bad, res.StatusCode)
		}
	}
	res, body = do(t, http.MethodPost, srv.URL+"/api/price-scheduler/interval", `{"hours":12}`)
	if res.StatusCode != http.StatusOK || body["success"] != true || fs.hours != 12 {
		t.Fatalf("status=%d body=%v", res.StatusCode, body)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newServer(t)
	res, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", res.StatusCode)
	}
}
