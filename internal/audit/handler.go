package audit

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgergate/ledgergate/internal/platform/httpx"
)

// Handler serves the audit trail read API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes. Resource gating happens in the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTimeline)
	r.Get("/export", h.handleExport)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": result.Entries,
		"paging":  result.Paging,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Export(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"at", "actor", "action", "target", "outcome"})
	for _, e := range entries {
		_ = cw.Write([]string{e.At.Format(time.RFC3339), e.Actor, e.Action, e.Target, e.Outcome})
	}
	cw.Flush()
}

func parseFilters(r *http.Request) TimelineFilters {
	query := r.URL.Query()
	filters := TimelineFilters{}
	filters.Actor = query.Get("actor")
	filters.Action = query.Get("action")
	filters.Outcome = query.Get("outcome")
	if from, err := time.Parse(time.RFC3339, query.Get("from")); err == nil {
		filters.From = from
	}
	if to, err := time.Parse(time.RFC3339, query.Get("to")); err == nil {
		filters.To = to
	}
	filters.Page, _ = strconv.Atoi(query.Get("page"))
	filters.PageSize, _ = strconv.Atoi(query.Get("page_size"))
	return filters
}
