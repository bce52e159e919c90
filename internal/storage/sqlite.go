package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// SQLiteStore persists orders, deals and metadata in one SQLite file
// with WAL enabled. Rows carry the JSON form of the domain object plus
// the columns the queries filter on; the JSON is authoritative.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			deal_id TEXT,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`,
		`CREATE TABLE IF NOT EXISTS deals (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Orders returns the order repository view of the store.
func (s *SQLiteStore) Orders() OrderRepository { return &sqliteOrders{db: s.db} }

// Deals returns the deal repository view of the store.
func (s *SQLiteStore) Deals() DealRepository { return &sqliteDeals{db: s.db} }

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *SQLiteStore) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys
// return an empty string.
func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteOrders struct {
	db *sql.DB
}

func (r *sqliteOrders) Save(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, deal_id, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, deal_id=excluded.deal_id, payload=excluded.payload, updated_at=excluded.updated_at`,
		order.ID, string(order.Status), order.DealID, payload, order.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

func (r *sqliteOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM orders WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	var order domain.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order %s: %w", id, err)
	}
	return &order, nil
}

func (r *sqliteOrders) GetOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT payload FROM orders WHERE status IN (?, ?) ORDER BY updated_at ASC",
		string(domain.StatusOpen), string(domain.StatusPartiallyFilled),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		var order domain.Order
		if err := json.Unmarshal(payload, &order); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order: %w", err)
		}
		orders = append(orders, &order)
	}
	return orders, rows.Err()
}

type sqliteDeals struct {
	db *sql.DB
}

func (r *sqliteDeals) Save(ctx context.Context, deal *domain.Deal) error {
	payload, err := json.Marshal(deal)
	if err != nil {
		return fmt.Errorf("failed to marshal deal: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO deals (id, status, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, payload=excluded.payload, updated_at=excluded.updated_at`,
		deal.ID, string(deal.Status), payload, deal.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save deal %s: %w", deal.ID, err)
	}
	return nil
}

func (r *sqliteDeals) GetByID(ctx context.Context, id string) (*domain.Deal, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM deals WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deal %s: %w", id, err)
	}

	var deal domain.Deal
	if err := json.Unmarshal(payload, &deal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deal %s: %w", id, err)
	}
	return &deal, nil
}

func (r *sqliteDeals) GetOpenDeals(ctx context.Context) ([]*domain.Deal, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT payload FROM deals WHERE status = ? ORDER BY updated_at ASC",
		string(domain.DealOpen),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query open deals: %w", err)
	}
	defer rows.Close()

	var deals []*domain.Deal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		var deal domain.Deal
		if err := json.Unmarshal(payload, &deal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deal: %w", err)
		}
		deals = append(deals, &deal)
	}
	return deals, rows.Err()
}
