package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/rbac"
	"github.com/procura-erp/procura/internal/shared"
)

// Handler manages item and stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers item routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.CapItemsView))
		r.Get("/items", h.handleList)
		r.Get("/items/{id}", h.handleGet)
		r.Get("/items/{id}/snapshot", h.handleSnapshot)
		r.Get("/items/{id}/ledger", h.handleLedger)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapItemsManage))
		r.Post("/items", h.handleCreate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapInventoryAdjust))
		r.Post("/items/{id}/adjust", h.handleAdjust)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapInventoryWriteoff))
		r.Post("/items/{id}/writeoff", h.handleWriteOff)
	})
}

type createItemRequest struct {
	SKU            string  `json:"sku" validate:"required,max=64"`
	Name           string  `json:"name" validate:"required,max=200"`
	UOM            string  `json:"uom" validate:"max=32"`
	Category       string  `json:"category" validate:"required,oneof=RAW SEMI INSTALLATION"`
	Available      float64 `json:"available" validate:"gte=0"`
	ReorderPoint   float64 `json:"reorder_point" validate:"gte=0"`
	MOQ            float64 `json:"moq" validate:"gte=0"`
	OrderMultiple  float64 `json:"order_multiple" validate:"gte=0"`
	DemandForecast float64 `json:"demand_forecast" validate:"gte=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		SKU:            req.SKU,
		Name:           req.Name,
		UOM:            req.UOM,
		Category:       Category(req.Category),
		Available:      req.Available,
		ReorderPoint:   req.ReorderPoint,
		MOQ:            req.MOQ,
		OrderMultiple:  req.OrderMultiple,
		DemandForecast: req.DemandForecast,
	})
	if err != nil {
		h.logger.Error("create item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be numeric")
		return
	}
	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.service.ListItems(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be numeric")
		return
	}
	snap, err := h.service.Snapshot(r.Context(), itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id":       snap.ItemID,
		"available":     snap.Available,
		"incoming":      snap.Incoming,
		"reorder_point": snap.ReorderPoint,
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be numeric")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := h.service.ListEntries(r.Context(), itemID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

type adjustRequest struct {
	DeltaAvailable float64 `json:"delta_available"`
	DeltaIncoming  float64 `json:"delta_incoming"`
	CausingDocID   string  `json:"causing_doc_id" validate:"max=64"`
	Note           string  `json:"note" validate:"max=500"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be numeric")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	snap, err := h.service.Adjust(r.Context(), AdjustInput{
		ItemID:         itemID,
		DeltaAvailable: req.DeltaAvailable,
		DeltaIncoming:  req.DeltaIncoming,
		CausingDocID:   req.CausingDocID,
		Note:           req.Note,
		Actor:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("adjust rejected", slog.Int64("item_id", itemID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id":       snap.ItemID,
		"available":     snap.Available,
		"incoming":      snap.Incoming,
		"reorder_point": snap.ReorderPoint,
	})
}

type writeOffRequest struct {
	Qty    float64 `json:"qty" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleWriteOff(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item id must be numeric")
		return
	}
	var req writeOffRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	snap, err := h.service.WriteOff(r.Context(), WriteOffInput{
		ItemID: itemID,
		Qty:    req.Qty,
		Reason: req.Reason,
		Actor:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("write-off rejected", slog.Int64("item_id", itemID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id":   snap.ItemID,
		"available": snap.Available,
		"incoming":  snap.Incoming,
	})
}

func itemIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type itemResponse struct {
	ID             int64     `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	UOM            string    `json:"uom,omitempty"`
	Category       string    `json:"category"`
	Available      float64   `json:"available"`
	Incoming       float64   `json:"incoming"`
	ReorderPoint   float64   `json:"reorder_point"`
	MOQ            float64   `json:"moq,omitempty"`
	OrderMultiple  float64   `json:"order_multiple,omitempty"`
	DemandForecast float64   `json:"demand_forecast,omitempty"`
	SuggestedQty   float64   `json:"suggested_qty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
}

func toItemResponse(item Item) itemResponse {
	return itemResponse{
		ID:             item.ID,
		SKU:            item.SKU,
		Name:           item.Name,
		UOM:            item.UOM,
		Category:       string(item.Category),
		Available:      item.Available,
		Incoming:       item.Incoming,
		ReorderPoint:   item.ReorderPoint,
		MOQ:            item.MOQ,
		OrderMultiple:  item.OrderMultiple,
		DemandForecast: item.DemandForecast,
		SuggestedQty:   SuggestQty(item),
		Version:        item.Version,
		CreatedAt:      item.CreatedAt,
	}
}

type entryResponse struct {
	ID             int64     `json:"id"`
	ItemID         int64     `json:"item_id"`
	Kind           string    `json:"kind"`
	DeltaAvailable float64   `json:"delta_available"`
	DeltaIncoming  float64   `json:"delta_incoming"`
	Available      float64   `json:"available"`
	Incoming       float64   `json:"incoming"`
	CausingDocID   string    `json:"causing_doc_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	ActorID        string    `json:"actor_id"`
	At             time.Time `json:"at"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:             e.ID,
		ItemID:         e.ItemID,
		Kind:           string(e.Kind),
		DeltaAvailable: e.DeltaAvailable,
		DeltaIncoming:  e.DeltaIncoming,
		Available:      e.BalanceAvailable,
		Incoming:       e.BalanceIncoming,
		CausingDocID:   e.CausingDocID,
		Note:           e.Note,
		ActorID:        e.ActorID,
		At:             e.CreatedAt,
	}
}
