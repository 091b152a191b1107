package budget

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgergate/ledgergate/internal/identity"
	"github.com/ledgergate/ledgergate/internal/platform/httpx"
)

// Handler exposes the budget workflow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the budget routes. The caller guards the group with
// the budgets resource; row and workflow checks happen in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/submit", h.handleSubmit)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
	r.Post("/{id}/amend", h.handleAmend)
}

type createRequest struct {
	Department   string  `json:"department" validate:"required"`
	FiscalPeriod string  `json:"fiscal_period" validate:"required"`
	Category     string  `json:"category" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type amendRequest struct {
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	ExpectedVersion int64   `json:"expected_version" validate:"required,gte=1"`
}

type budgetResponse struct {
	ID              string     `json:"id"`
	Department      string     `json:"department"`
	FiscalPeriod    string     `json:"fiscal_period"`
	Category        string     `json:"category"`
	Amount          float64    `json:"amount"`
	Status          Status     `json:"status"`
	OwnerID         string     `json:"owner_id"`
	SubmittedBy     string     `json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type historyResponse struct {
	Action  HistoryAction `json:"action"`
	ActorID string        `json:"actor_id"`
	Note    string        `json:"note,omitempty"`
	At      time.Time     `json:"at"`
}

func toResponse(b Budget) budgetResponse {
	resp := budgetResponse{
		ID:              b.ID,
		Department:      b.Department,
		FiscalPeriod:    b.FiscalPeriod,
		Category:        b.Category,
		Amount:          b.Amount,
		Status:          b.Status,
		OwnerID:         b.OwnerID,
		SubmittedBy:     b.SubmittedBy,
		ApprovedBy:      b.ApprovedBy,
		RejectionReason: b.RejectionReason,
		Version:         b.Version,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if !b.SubmittedAt.IsZero() {
		at := b.SubmittedAt
		resp.SubmittedAt = &at
	}
	if !b.ApprovedAt.IsZero() {
		at := b.ApprovedAt
		resp.ApprovedAt = &at
	}
	return resp
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return identity.Principal{}, false
	}
	return p, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), p, r.URL.Query().Get("department"))
	if err != nil {
		h.logger.Error("list budgets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]budgetResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"budgets": out})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	b, err := h.service.Create(r.Context(), p, CreateInput{
		Department:   req.Department,
		FiscalPeriod: req.FiscalPeriod,
		Category:     req.Category,
		Amount:       req.Amount,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(b))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	b, hist, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	history := make([]historyResponse, 0, len(hist))
	for _, rec := range hist {
		history = append(history, historyResponse{Action: rec.Action, ActorID: rec.ActorID, Note: rec.Note, At: rec.At})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"budget": toResponse(b), "history": history})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	b, err := h.service.Submit(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	b, err := h.service.Approve(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	b, err := h.service.Reject(r.Context(), p, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) handleAmend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req amendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	b, err := h.service.Amend(r.Context(), p, chi.URLParam(r, "id"), req.Amount, req.ExpectedVersion)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(b))
}
