package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura/internal/platform/db"
	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

// Repository persists documents, events, lines and quotes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrDuplicateAutoRequisition is returned when the partial unique index on
// open auto-requisitions rejects a concurrent insert for the same item.
var ErrDuplicateAutoRequisition = fmt.Errorf("documents: open auto-requisition already exists for item: %w", httpx.ErrDuplicate)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) error
	InsertLines(ctx context.Context, docID uuid.UUID, lines []LineItem) error
	GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to workflow.Status, expectedVersion int64) error
	InsertEvent(ctx context.Context, event Event) error
	UpdateLineFulfilled(ctx context.Context, lineID int64, fulfilled float64) error
	InsertQuote(ctx context.Context, quote Quote) error
	GetQuoteForUpdate(ctx context.Context, quoteID uuid.UUID) (Quote, error)
	UpdateQuoteStatus(ctx context.Context, quoteID uuid.UUID, status workflow.QuoteStatus, expectedVersion int64) error
	UpdateQuoteTerms(ctx context.Context, quoteID uuid.UUID, totalPrice float64, leadTimeDays int, paymentTerms string) error
	AcceptedQuoteExists(ctx context.Context, docID uuid.UUID) (bool, error)
	OpenRequisitionExists(ctx context.Context, itemID int64) (bool, error)
	ListEvents(ctx context.Context, docID uuid.UUID) ([]Event, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("documents repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const docColumns = `id, doc_type, status, kind, creator_id, creator_role, supplier_id, source_id, quote_id, auto_item_id, deadline_at, version, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var kind, supplierID *string
	err := row.Scan(&doc.ID, &doc.Type, &doc.Status, &kind, &doc.CreatorID, &doc.CreatorRole, &supplierID,
		&doc.SourceID, &doc.QuoteID, &doc.AutoItemID, &doc.DeadlineAt, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if kind != nil {
		doc.Kind = workflow.ReturnKind(*kind)
	}
	if supplierID != nil {
		doc.SupplierID = *supplierID
	}
	return doc, nil
}

// Get loads a document with its lines, events and quotes.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM documents WHERE id=$1`, id))
	if err != nil {
		return Document{}, err
	}
	if doc.Lines, err = r.listLines(ctx, r.pool, id); err != nil {
		return Document{}, err
	}
	if doc.Events, err = listEvents(ctx, r.pool, id); err != nil {
		return Document{}, err
	}
	if doc.Type == workflow.DocQuotation {
		if doc.Quotes, err = r.ListQuotes(ctx, id); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

// ListEvents returns a document's full event history, oldest first.
func (r *Repository) ListEvents(ctx context.Context, docID uuid.UUID) ([]Event, error) {
	return listEvents(ctx, r.pool, docID)
}

// Filter narrows document listings.
type Filter struct {
	Type      workflow.DocType
	Status    workflow.Status
	CreatorID string
	Cursor    shared.Cursor
	Limit     int
}

// List returns document headers after the cursor, ordered by
// (created_at, id) so iteration is restartable from a stable position.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Document, shared.Cursor, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + docColumns + ` FROM documents WHERE 1=1`
	args := []any{}
	n := 0
	add := func(clause string, value any) {
		n++
		args = append(args, value)
		query += clause + "$" + itoa(n)
	}
	if filter.Type != "" {
		add(` AND doc_type=`, string(filter.Type))
	}
	if filter.Status != "" {
		add(` AND status=`, string(filter.Status))
	}
	if filter.CreatorID != "" {
		add(` AND creator_id=`, filter.CreatorID)
	}
	if !filter.Cursor.IsZero() {
		n += 2
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		query += ` AND (created_at, id) > ($` + itoa(n-1) + `, $` + itoa(n) + `)`
	}
	n++
	args = append(args, limit)
	query += ` ORDER BY created_at ASC, id ASC LIMIT $` + itoa(n)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Cursor{}, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, shared.Cursor{}, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Cursor{}, err
	}
	for i := range docs {
		if docs[i].Lines, err = r.listLines(ctx, r.pool, docs[i].ID); err != nil {
			return nil, shared.Cursor{}, err
		}
	}
	var next shared.Cursor
	if len(docs) == limit {
		last := docs[len(docs)-1]
		next = shared.Cursor{CreatedAt: last.CreatedAt, ID: last.ID.String()}
	}
	return docs, next, nil
}

// ListQuotes returns all quotes for a quotation request.
func (r *Repository) ListQuotes(ctx context.Context, docID uuid.UUID) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, doc_id, supplier_id, total_price, lead_time_days, payment_terms, status, version, created_at, updated_at
FROM quotes WHERE doc_id=$1 ORDER BY created_at ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// CountByTypeAndStatus aggregates document counts for the projection layer.
func (r *Repository) CountByTypeAndStatus(ctx context.Context) (map[workflow.DocType]map[workflow.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc_type, status, COUNT(*) FROM documents GROUP BY doc_type, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[workflow.DocType]map[workflow.Status]int{}
	for rows.Next() {
		var docType, status string
		var count int
		if err := rows.Scan(&docType, &status, &count); err != nil {
			return nil, err
		}
		t := workflow.DocType(docType)
		if counts[t] == nil {
			counts[t] = map[workflow.Status]int{}
		}
		counts[t][workflow.Status(status)] = count
	}
	return counts, rows.Err()
}

// ListOverdueQuotations returns quotation requests whose deadline has
// passed without closure.
func (r *Repository) ListOverdueQuotations(ctx context.Context, asOf time.Time) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+docColumns+` FROM documents
WHERE doc_type=$1 AND status=$2 AND deadline_at IS NOT NULL AND deadline_at < $3
ORDER BY deadline_at ASC`, string(workflow.DocQuotation), string(workflow.StatusAwaitingQuotes), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *Repository) listLines(ctx context.Context, q querier, docID uuid.UUID) ([]LineItem, error) {
	return listLines(ctx, q, docID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLines(ctx context.Context, q querier, docID uuid.UUID) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT id, doc_id, item_id, qty, fulfilled_qty, unit_price, purpose, priority
FROM line_items WHERE doc_id=$1 ORDER BY id ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var line LineItem
		var priority *string
		if err := rows.Scan(&line.ID, &line.DocID, &line.ItemID, &line.Qty, &line.FulfilledQty, &line.UnitPrice, &line.Purpose, &priority); err != nil {
			return nil, err
		}
		if priority != nil {
			line.Priority = Priority(*priority)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func listEvents(ctx context.Context, q querier, docID uuid.UUID) ([]Event, error) {
	rows, err := q.Query(ctx, `SELECT id, doc_id, actor_id, actor_role, action, from_status, to_status, comment, at
FROM document_events WHERE doc_id=$1 ORDER BY id ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.DocID, &e.ActorID, &e.ActorRole, &e.Action, &e.FromStatus, &e.ToStatus, &e.Comment, &e.At); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.DocID, &q.SupplierID, &q.TotalPrice, &q.LeadTimeDays, &q.PaymentTerms, &q.Status, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

func (r *txRepository) InsertDocument(ctx context.Context, doc Document) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO documents (id, doc_type, status, kind, creator_id, creator_role, supplier_id, source_id, quote_id, auto_item_id, deadline_at, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1,NOW(),NOW())`,
		doc.ID, string(doc.Type), string(doc.Status), nullString(string(doc.Kind)), doc.CreatorID, string(doc.CreatorRole),
		nullString(doc.SupplierID), doc.SourceID, doc.QuoteID, doc.AutoItemID, doc.DeadlineAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAutoRequisition
		}
		return err
	}
	return nil
}

func (r *txRepository) InsertLines(ctx context.Context, docID uuid.UUID, lines []LineItem) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO line_items (doc_id, item_id, qty, fulfilled_qty, unit_price, purpose, priority)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, docID, line.ItemID, line.Qty, line.FulfilledQty, line.UnitPrice, line.Purpose, nullString(string(line.Priority)))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (Document, error) {
	doc, err := scanDocument(r.tx.QueryRow(ctx, `SELECT `+docColumns+` FROM documents WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Document{}, err
	}
	if doc.Lines, err = listLines(ctx, r.tx, id); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to workflow.Status, expectedVersion int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE documents SET status=$2, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$3`, id, string(to), expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ConcurrentModificationError{DocID: id, Version: expectedVersion}
	}
	return nil
}

func (r *txRepository) InsertEvent(ctx context.Context, event Event) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO document_events (doc_id, actor_id, actor_role, action, from_status, to_status, comment, at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		event.DocID, event.ActorID, string(event.ActorRole), string(event.Action), string(event.FromStatus), string(event.ToStatus), event.Comment)
	return err
}

func (r *txRepository) UpdateLineFulfilled(ctx context.Context, lineID int64, fulfilled float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE line_items SET fulfilled_qty=$2 WHERE id=$1`, lineID, fulfilled)
	return err
}

func (r *txRepository) InsertQuote(ctx context.Context, quote Quote) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO quotes (id, doc_id, supplier_id, total_price, lead_time_days, payment_terms, status, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,1,NOW(),NOW())`,
		quote.ID, quote.DocID, quote.SupplierID, quote.TotalPrice, quote.LeadTimeDays, quote.PaymentTerms, string(quote.Status))
	return err
}

func (r *txRepository) GetQuoteForUpdate(ctx context.Context, quoteID uuid.UUID) (Quote, error) {
	return scanQuote(r.tx.QueryRow(ctx, `SELECT id, doc_id, supplier_id, total_price, lead_time_days, payment_terms, status, version, created_at, updated_at
FROM quotes WHERE id=$1 FOR UPDATE`, quoteID))
}

func (r *txRepository) UpdateQuoteStatus(ctx context.Context, quoteID uuid.UUID, status workflow.QuoteStatus, expectedVersion int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE quotes SET status=$2, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$3`, quoteID, string(status), expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ConcurrentModificationError{DocID: quoteID, Version: expectedVersion}
	}
	return nil
}

func (r *txRepository) UpdateQuoteTerms(ctx context.Context, quoteID uuid.UUID, totalPrice float64, leadTimeDays int, paymentTerms string) error {
	_, err := r.tx.Exec(ctx, `UPDATE quotes SET total_price=$2, lead_time_days=$3, payment_terms=$4, updated_at=NOW() WHERE id=$1`,
		quoteID, totalPrice, leadTimeDays, paymentTerms)
	return err
}

func (r *txRepository) AcceptedQuoteExists(ctx context.Context, docID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quotes WHERE doc_id=$1 AND status=$2)`,
		docID, string(workflow.QuoteAccepted)).Scan(&exists)
	return exists, err
}

func (r *txRepository) OpenRequisitionExists(ctx context.Context, itemID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM documents d
JOIN line_items l ON l.doc_id = d.id
WHERE d.doc_type=$1 AND d.status NOT IN ($2,$3) AND l.item_id=$4)`,
		string(workflow.DocRequisition), string(workflow.StatusRejected), string(workflow.StatusConverted), itemID).Scan(&exists)
	return exists, err
}

func (r *txRepository) ListEvents(ctx context.Context, docID uuid.UUID) ([]Event, error) {
	return listEvents(ctx, r.tx, docID)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
