package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ps-vitor/phone-prices/internal/api/models"
	"github.com/ps-vitor/phone-prices/internal/services/scheduler"
	"github.com/ps-vitor/phone-prices/pkg/logger"
)

// Scheduler is the trigger interface of the recurring update loop.
type Scheduler interface {
	TriggerUpdate() scheduler.TriggerResult
	Status() scheduler.Status
	SetInterval(ctx context.Context, hours int) error
}

type SchedulerHandler struct {
	scheduler Scheduler
	log       *logger.Logger
}

func NewSchedulerHandler(s Scheduler, log *logger.Logger) *SchedulerHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &SchedulerHandler{scheduler: s, log: log}
}

func (h *SchedulerHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/price-scheduler/status", h.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/price-scheduler/interval", h.HandleInterval).Methods(http.MethodPost)
	r.HandleFunc("/api/price-scheduler/trigger", h.HandleTrigger).Methods(http.MethodPost)
}

func (h *SchedulerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// HandleTrigger answers immediately; the run continues in the background.
func (h *SchedulerHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	res := h.scheduler.TriggerUpdate()
	status := http.StatusAccepted
	if !res.Accepted {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (h *SchedulerHandler) HandleInterval(w http.ResponseWriter, r *http.Request) {
	var req models.IntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error{Error: "body must be {\"hours\": <1..168>}"})
		return
	}
	if err := h.scheduler.SetInterval(r.Context(), req.Hours); err != nil {
		if errors.Is(err, scheduler.ErrInvalidInterval) {
			writeJSON(w, http.StatusBadRequest, models.Error{Error: err.Error()})
			return
		}
		h.log.Errorf("set interval: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.Error{Error: "Error saving scheduler state"})
		return
	}
	writeJSON(w, http.StatusOK, models.IntervalResponse{
		Success: true,
		Hours:   req.Hours,
		Message: fmt.Sprintf("Update interval set to %d hours", req.Hours),
	})
}
