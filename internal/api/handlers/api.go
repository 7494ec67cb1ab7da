package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ps-vitor/phone-prices/internal/api/models"
	"github.com/ps-vitor/phone-prices/internal/repositories"
	"github.com/ps-vitor/phone-prices/internal/services/catalog"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

// maxImportBytes bounds an import request body.
const maxImportBytes = 4 << 20

type APIHandler struct {
	catalogService *catalog.CatalogService
	log            *logger.Logger
}

func NewAPIHandler(catalogService *catalog.CatalogService, log *logger.Logger) *APIHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &APIHandler{catalogService: catalogService, log: log}
}

func (h *APIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/brands", h.handleBrands).Methods(http.MethodGet)
	r.HandleFunc("/api/price-sources", h.handlePriceSources).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/{brand}", h.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/{brand}/history", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/{brand}/import", h.handleImport).Methods(http.MethodPost)
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{Status: "ok", Time: time.Now().UTC()})
}

func (h *APIHandler) handleBrands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Brands{Brands: h.catalogService.Brands()})
}

func (h *APIHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	brand := mux.Vars(r)["brand"]
	entries, err := h.catalogService.GetCatalog(r.Context(), brand)
	if err != nil {
		h.fail(w, err, "Error loading catalog")
		return
	}
	writeJSON(w, http.StatusOK, models.Catalog{Brand: brand, Count: len(entries), Entries: entries})
}

func (h *APIHandler) handlePriceSources(w http.ResponseWriter, r *http.Request) {
	var brands []string
	if b := strings.TrimSpace(r.URL.Query().Get("brand")); b != "" {
		brands = []string{b}
	}
	ps, err := h.catalogService.GetPriceSources(r.Context(), brands...)
	if err != nil {
		h.fail(w, err, "Error aggregating price sources")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	brand := mux.Vars(r)["brand"]
	model := strings.TrimSpace(r.URL.Query().Get("model"))
	if model == "" {
		writeJSON(w, http.StatusBadRequest, models.Error{Error: "model query parameter is required"})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, models.Error{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	pts, err := h.catalogService.History(r.Context(), brand, model, limit)
	if err != nil {
		h.fail(w, err, "Error reading price history")
		return
	}
	writeJSON(w, http.StatusOK, pts)
}

func (h *APIHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	brand := mux.Vars(r)["brand"]
	var req models.ImportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error{Error: "invalid import body: " + err.Error()})
		return
	}
	res, err := h.catalogService.Import(r.Context(), brand, req.Entries)
	if err != nil {
		h.fail(w, err, "Error importing catalog entries")
		return
	}
	h.log.Infof("import %s: %d added, %d updated, %d skipped", brand, res.Added, res.Updated, res.Skipped)
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) fail(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, repositories.ErrUnknownBrand) {
		writeJSON(w, http.StatusNotFound, models.Error{Error: err.Error()})
		return
	}
	h.log.Errorf("%s: %v", msg, err)
	writeJSON(w, http.StatusInternalServerError, models.Error{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
