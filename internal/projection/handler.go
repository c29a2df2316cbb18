package projection

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/rbac"
)

// Handler serves projection endpoints. Concurrent requests for the same
// view collapse into one build via singleflight.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	flight  singleflight.Group
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers projection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.CapProjectionsView))
		r.Get("/projections/status-board", h.handleStatusBoard)
		r.Get("/projections/pending-approvals", h.handlePendingApprovals)
		r.Get("/projections/overdue-quotations", h.handleOverdueQuotations)
		r.Get("/projections/order-progress", h.handleOrderProgress)
		r.Get("/projections/return-progress", h.handleReturnProgress)
		r.Get("/projections/kpi", h.handleKPI)
		r.Get("/projections/timeline/{id}", h.handleTimeline)
	})
}

func (h *Handler) build(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	resultChan := h.flight.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, key string, fn func(context.Context) (interface{}, error)) {
	value, err := h.build(r.Context(), key, fn)
	if err != nil {
		h.logger.Error("build projection", slog.String("view", key), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, value)
}

func (h *Handler) handleStatusBoard(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "status-board", func(ctx context.Context) (interface{}, error) {
		return h.service.GetStatusBoard(ctx)
	})
}

func (h *Handler) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "pending-approvals", func(ctx context.Context) (interface{}, error) {
		out, err := h.service.GetPendingApprovals(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pending": out}, nil
	})
}

func (h *Handler) handleOverdueQuotations(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "overdue-quotations", func(ctx context.Context) (interface{}, error) {
		out, err := h.service.GetOverdueQuotations(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"overdue": out}, nil
	})
}

func (h *Handler) handleOrderProgress(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "order-progress", func(ctx context.Context) (interface{}, error) {
		out, err := h.service.GetOrderProgress(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"orders": out}, nil
	})
}

func (h *Handler) handleReturnProgress(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "return-progress", func(ctx context.Context) (interface{}, error) {
		out, err := h.service.GetReturnProgress(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"returns": out}, nil
	})
}

func (h *Handler) handleKPI(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "kpi", func(ctx context.Context) (interface{}, error) {
		return h.service.GetKPISummary(ctx)
	})
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	timeline, err := h.service.GetTimeline(r.Context(), docID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"timeline": timeline})
}
