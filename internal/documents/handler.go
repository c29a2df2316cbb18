package documents

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/rbac"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

// TransitionObserver counts committed transitions. Nil observers are
// ignored.
type TransitionObserver interface {
	ObserveTransition(docType, action string)
}

// Handler manages document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	metrics  TransitionObserver
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, metrics TransitionObserver) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac, metrics: metrics}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.CapDocumentsView))
		r.Get("/documents", h.handleList)
		r.Get("/documents/{id}", h.handleGet)
		r.Get("/documents/{id}/events", h.handleEvents)
		r.Get("/documents/{id}/actions", h.handleActions)
		r.Get("/documents/{id}/quotes", h.handleListQuotes)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapDocumentsCreate))
		r.Post("/documents", h.handleCreate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapDocumentsAct))
		r.Post("/documents/{id}/transition", h.handleTransition)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapQuotesSubmit))
		r.Post("/documents/{id}/quotes", h.handleSubmitQuote)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.CapQuotesSubmit, rbac.CapQuotesDecide))
		r.Post("/documents/{id}/quotes/{quoteID}/action", h.handleQuoteAction)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.CapQuotesDecide))
		r.Post("/documents/{id}/quotes/{quoteID}/accept", h.handleAcceptQuote)
	})
}

type lineRequest struct {
	ItemID    int64   `json:"item_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Purpose   string  `json:"purpose" validate:"max=500"`
	Priority  string  `json:"priority" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
}

type createRequest struct {
	Type       string        `json:"type" validate:"required"`
	Kind       string        `json:"kind" validate:"omitempty,oneof=REFUND EXCHANGE DAMAGED MISSING"`
	SourceID   string        `json:"source_id" validate:"omitempty,uuid4"`
	SupplierID string        `json:"supplier_id" validate:"max=120"`
	DeadlineAt *time.Time    `json:"deadline_at"`
	Lines      []lineRequest `json:"lines" validate:"dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Type:       workflow.DocType(req.Type),
		Kind:       workflow.ReturnKind(req.Kind),
		SupplierID: req.SupplierID,
		DeadlineAt: req.DeadlineAt,
		Actor:      actor,
	}
	if req.SourceID != "" {
		id, err := uuid.Parse(req.SourceID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source_id is not a valid UUID")
			return
		}
		input.SourceID = uuid.NullUUID{UUID: id, Valid: true}
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			ItemID: l.ItemID, Qty: l.Qty, UnitPrice: l.UnitPrice, Purpose: l.Purpose, Priority: Priority(l.Priority),
		})
	}
	doc, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

type transitionLineRequest struct {
	LineID int64   `json:"line_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"required,gt=0"`
}

type transitionRequest struct {
	Action  string                  `json:"action" validate:"required"`
	Comment string                  `json:"comment" validate:"max=2000"`
	Version int64                   `json:"version" validate:"required,gt=0"`
	Lines   []transitionLineRequest `json:"lines" validate:"dive"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := TransitionInput{
		DocID:           docID,
		Action:          workflow.Action(req.Action),
		Comment:         req.Comment,
		ExpectedVersion: req.Version,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
		Actor:           actor,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, ReceiveLine{LineID: l.LineID, Qty: l.Qty})
	}
	doc, err := h.service.Transition(r.Context(), input)
	if err != nil {
		h.logger.Warn("transition rejected",
			slog.String("doc_id", docID.String()),
			slog.String("action", req.Action),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveTransition(string(doc.Type), req.Action)
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	doc, err := h.service.Get(r.Context(), docID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filter := Filter{
		Type:      workflow.DocType(r.URL.Query().Get("type")),
		Status:    workflow.Status(r.URL.Query().Get("status")),
		CreatorID: r.URL.Query().Get("creator_id"),
		Limit:     limit,
	}
	if token := r.URL.Query().Get("cursor"); token != "" {
		cursor, err := shared.DecodeCursor(token)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed cursor")
			return
		}
		filter.Cursor = cursor
	}
	docs, next, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d))
	}
	resp := map[string]any{"documents": items}
	if !next.IsZero() {
		resp["next_cursor"] = next.Encode()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	events, err := h.service.History(r.Context(), docID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *Handler) handleActions(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	actions, err := h.service.AllowedActions(r.Context(), docID, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actions": actions})
}

type quoteRequest struct {
	TotalPrice   float64 `json:"total_price" validate:"required,gt=0"`
	LeadTimeDays int     `json:"lead_time_days" validate:"gte=0"`
	PaymentTerms string  `json:"payment_terms" validate:"max=500"`
}

func (h *Handler) handleSubmitQuote(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quote, err := h.service.SubmitQuote(r.Context(), SubmitQuoteInput{
		DocID:        docID,
		TotalPrice:   req.TotalPrice,
		LeadTimeDays: req.LeadTimeDays,
		PaymentTerms: req.PaymentTerms,
		Actor:        actor,
	})
	if err != nil {
		h.logger.Warn("submit quote rejected", slog.String("doc_id", docID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toQuoteResponse(quote))
}

type quoteActionRequest struct {
	Action       string  `json:"action" validate:"required,oneof=reject requestRevision resubmit"`
	TotalPrice   float64 `json:"total_price" validate:"gte=0"`
	LeadTimeDays int     `json:"lead_time_days" validate:"gte=0"`
	PaymentTerms string  `json:"payment_terms" validate:"max=500"`
}

func (h *Handler) handleQuoteAction(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	docID, quoteID, err := quotePathIDs(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req quoteActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quote, err := h.service.QuoteAction(r.Context(), QuoteActionInput{
		DocID:        docID,
		QuoteID:      quoteID,
		Action:       workflow.Action(req.Action),
		TotalPrice:   req.TotalPrice,
		LeadTimeDays: req.LeadTimeDays,
		PaymentTerms: req.PaymentTerms,
		Actor:        actor,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) handleAcceptQuote(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	docID, quoteID, err := quotePathIDs(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.AcceptQuote(r.Context(), AcceptQuoteInput{DocID: docID, QuoteID: quoteID, Actor: actor})
	if err != nil {
		h.logger.Warn("accept quote rejected", slog.String("quote_id", quoteID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(order))
}

func (h *Handler) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "document id is not a valid UUID")
		return
	}
	quotes, err := h.service.Quotes(r.Context(), docID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toQuoteResponse(q))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": out})
}

func quotePathIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errDocID
	}
	quoteID, err := uuid.Parse(chi.URLParam(r, "quoteID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errQuoteID
	}
	return docID, quoteID, nil
}

var (
	errDocID   = errParse("document id is not a valid UUID")
	errQuoteID = errParse("quote id is not a valid UUID")
)

type errParse string

func (e errParse) Error() string { return string(e) }
