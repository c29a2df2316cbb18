package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura/internal/platform/db"
)

// Repository persists items and ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (Item, error)
	UpdateItemBalances(ctx context.Context, itemID int64, available, incoming float64, version int64) error
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const itemColumns = `id, sku, name, uom, category, available, incoming, reorder_point, moq, order_multiple, demand_forecast, version, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.UOM, &item.Category, &item.Available, &item.Incoming,
		&item.ReorderPoint, &item.MOQ, &item.OrderMultiple, &item.DemandForecast, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// CreateItem inserts an item master record.
func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO items (sku, name, uom, category, available, incoming, reorder_point, moq, order_multiple, demand_forecast, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1,NOW(),NOW())
RETURNING `+itemColumns, item.SKU, item.Name, item.UOM, string(item.Category), item.Available, item.Incoming,
		item.ReorderPoint, item.MOQ, item.OrderMultiple, item.DemandForecast)
	return scanItem(row)
}

// GetItem loads an item by id.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, itemID)
	return scanItem(row)
}

// ListItems returns the item catalog ordered by SKU.
func (r *Repository) ListItems(ctx context.Context, limit, offset int) ([]Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY sku ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListEntries returns the ledger history for an item, oldest first.
func (r *Repository) ListEntries(ctx context.Context, itemID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, kind, delta_available, delta_incoming, balance_available, balance_incoming, causing_doc_id, actor_id, note, created_at
FROM ledger_entries WHERE item_id=$1 ORDER BY id ASC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.ItemID, &kind, &e.DeltaAvailable, &e.DeltaIncoming, &e.BalanceAvailable, &e.BalanceIncoming, &e.CausingDocID, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1 FOR UPDATE`, itemID)
	return scanItem(row)
}

func (r *txRepository) UpdateItemBalances(ctx context.Context, itemID int64, available, incoming float64, version int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET available=$2, incoming=$3, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$4`, itemID, available, incoming, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (item_id, kind, delta_available, delta_incoming, balance_available, balance_incoming, causing_doc_id, actor_id, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		entry.ItemID, string(entry.Kind), entry.DeltaAvailable, entry.DeltaIncoming, entry.BalanceAvailable, entry.BalanceIncoming,
		entry.CausingDocID, entry.ActorID, entry.Note).Scan(&id)
	return id, err
}
