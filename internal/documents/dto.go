package documents

import "time"

type lineResponse struct {
	ID           int64   `json:"id"`
	ItemID       int64   `json:"item_id"`
	Qty          float64 `json:"qty"`
	FulfilledQty float64 `json:"fulfilled_qty"`
	UnitPrice    float64 `json:"unit_price,omitempty"`
	Purpose      string  `json:"purpose,omitempty"`
	Priority     string  `json:"priority,omitempty"`
}

type eventResponse struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Comment    string    `json:"comment,omitempty"`
	At         time.Time `json:"at"`
}

type quoteResponse struct {
	ID           string    `json:"id"`
	DocID        string    `json:"doc_id"`
	SupplierID   string    `json:"supplier_id"`
	TotalPrice   float64   `json:"total_price"`
	LeadTimeDays int       `json:"lead_time_days"`
	PaymentTerms string    `json:"payment_terms,omitempty"`
	Status       string    `json:"status"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
}

type documentResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Kind       string          `json:"kind,omitempty"`
	CreatorID  string          `json:"creator_id"`
	SupplierID string          `json:"supplier_id,omitempty"`
	SourceID   string          `json:"source_id,omitempty"`
	QuoteID    string          `json:"quote_id,omitempty"`
	DeadlineAt *time.Time      `json:"deadline_at,omitempty"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Lines      []lineResponse  `json:"lines,omitempty"`
	Events     []eventResponse `json:"events,omitempty"`
	Quotes     []quoteResponse `json:"quotes,omitempty"`
}

func toDocumentResponse(doc Document) documentResponse {
	resp := documentResponse{
		ID:         doc.ID.String(),
		Type:       string(doc.Type),
		Status:     string(doc.Status),
		Kind:       string(doc.Kind),
		CreatorID:  doc.CreatorID,
		SupplierID: doc.SupplierID,
		DeadlineAt: doc.DeadlineAt,
		Version:    doc.Version,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if doc.SourceID.Valid {
		resp.SourceID = doc.SourceID.UUID.String()
	}
	if doc.QuoteID.Valid {
		resp.QuoteID = doc.QuoteID.UUID.String()
	}
	for _, l := range doc.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID: l.ID, ItemID: l.ItemID, Qty: l.Qty, FulfilledQty: l.FulfilledQty,
			UnitPrice: l.UnitPrice, Purpose: l.Purpose, Priority: string(l.Priority),
		})
	}
	for _, e := range doc.Events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	for _, q := range doc.Quotes {
		resp.Quotes = append(resp.Quotes, toQuoteResponse(q))
	}
	return resp
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID: e.ID, ActorID: e.ActorID, ActorRole: string(e.ActorRole), Action: string(e.Action),
		FromStatus: string(e.FromStatus), ToStatus: string(e.ToStatus), Comment: e.Comment, At: e.At,
	}
}

func toQuoteResponse(q Quote) quoteResponse {
	return quoteResponse{
		ID: q.ID.String(), DocID: q.DocID.String(), SupplierID: q.SupplierID,
		TotalPrice: q.TotalPrice, LeadTimeDays: q.LeadTimeDays, PaymentTerms: q.PaymentTerms,
		Status: string(q.Status), Version: q.Version, CreatedAt: q.CreatedAt,
	}
}
