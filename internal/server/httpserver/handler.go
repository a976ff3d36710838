package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/service"
	"github.com/yndnr/worldsave/internal/storage/record"
	"github.com/yndnr/worldsave/internal/storage/slotstore"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
)

// Response is the JSON envelope of every response except /metrics and
// /events.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// SlotView is the JSON form of a slot info.
type SlotView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Subname    string            `json:"subname,omitempty"`
	Level      string            `json:"level,omitempty"`
	SaveDate   time.Time         `json:"save_date"`
	PlayedTime string            `json:"played_time"`
	Custom     map[string]string `json:"custom,omitempty"`
}

func newSlotView(info *record.SlotInfo) SlotView {
	return SlotView{
		ID:         info.ID,
		Name:       info.Name,
		Subname:    info.Subname,
		Level:      info.Level,
		SaveDate:   info.SaveDate,
		PlayedTime: info.PlayedTime.String(),
		Custom:     info.Custom,
	}
}

// Handler serves the slot and health routes.
type Handler struct {
	store   slotstore.Store
	owner   *service.Tracker
	metrics *metric.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler reading from store.
func NewHandler(store slotstore.Store, metrics *metric.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		owner:   service.NewTracker(),
		metrics: metrics,
		logger:  logger,
	}
}

// loadInfos runs the slot info loader on the request goroutine, which owns
// the results.
func (h *Handler) loadInfos(r *http.Request, name string, sortByRecent bool) []*record.SlotInfo {
	var infos []*record.SlotInfo
	t := service.NewLoadSlotInfosTask(h.owner, h.store, name, sortByRecent,
		func(loaded []*record.SlotInfo) { infos = loaded },
		service.WithLoaderLogger(h.logger),
		service.WithLoaderMetrics(h.metrics))
	t.DoWork(r.Context())
	t.AfterFinish()
	return infos
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	infos := h.loadInfos(r, "", r.URL.Query().Get("sort") == "recent")
	views := make([]SlotView, 0, len(infos))
	for _, info := range infos {
		views = append(views, newSlotView(info))
	}
	h.writeJSON(w, r, http.StatusOK, views)
}

func (h *Handler) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := slotstore.ValidateName(name); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	infos := h.loadInfos(r, name, false)
	if len(infos) == 0 {
		// The loader skips unreadable slots; tell missing from corrupt.
		if _, err := h.store.Stat(r.Context(), name); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		h.handleServiceError(w, r, domain.ErrSlotCorrupted.WithDetails("%s", name))
		return
	}
	h.writeJSON(w, r, http.StatusOK, newSlotView(infos[0]))
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.write(w, r, status, Response{
		Code:    "OK",
		Message: "Success",
		Data:    data,
	})
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	resp.RequestID = middleware.GetReqID(r.Context())
	resp.Timestamp = time.Now().UnixMilli()

	w.Header().Set("Content-Type", "application/json")
	if resp.Code != "OK" {
		w.Header().Set("X-Error-Code", resp.Code)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// handleServiceError converts domain errors to their HTTP status.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		h.write(w, r, errorCodeToHTTPStatus(code), Response{Code: code, Message: err.Error()})
		return
	}

	h.logger.Error("internal error", "path", r.URL.Path, "error", err)
	h.write(w, r, http.StatusInternalServerError, Response{
		Code:    "WS-SYS-5000",
		Message: "internal server error",
	})
}

// errorCodeToHTTPStatus maps the numeric suffix of a WS-<AREA>-<NNNN>
// code to a status.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4220"):
		return http.StatusUnprocessableEntity
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.Contains(code, "-400"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
