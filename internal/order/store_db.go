package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"SpiceStore/internal/cart"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 5 * time.Second
)

// PostgresStore keeps receipts in two tables:
//
//	orders(id, number, session_id, portal, total_items, total_price, customer jsonb, placed_at)
//	order_items(order_id, product_id, title, qty, unit_price, subtotal, priced)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, r cart.Receipt) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	customer, err := json.Marshal(r.Customer)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, number, session_id, portal, total_items, total_price, customer, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.Number, r.SessionID, r.Portal, r.TotalItems, r.TotalPrice, customer, r.PlacedAt)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, product_id, title, qty, unit_price, subtotal, priced)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ln := range r.Lines {
		if _, err := stmt.ExecContext(ctx, r.ID, ln.ProductID, ln.Title, ln.Quantity, ln.UnitPrice, ln.Subtotal, ln.Priced); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (cart.Receipt, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	r, err := s.scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, number, session_id, portal, total_items, total_price, customer, placed_at
		FROM orders
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return cart.Receipt{}, false, nil
	}
	if err != nil {
		return cart.Receipt{}, false, err
	}

	if r.Lines, err = s.lines(ctx, id); err != nil {
		return cart.Receipt{}, false, err
	}
	return r, true, nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]cart.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, session_id, portal, total_items, total_price, customer, placed_at
		FROM orders
		WHERE session_id = $1
		ORDER BY placed_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]cart.Receipt, 0, 4)
	for rows.Next() {
		r, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Lines, err = s.lines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOrder(row scanner) (cart.Receipt, error) {
	var (
		r        cart.Receipt
		customer []byte
	)
	if err := row.Scan(&r.ID, &r.Number, &r.SessionID, &r.Portal, &r.TotalItems, &r.TotalPrice, &customer, &r.PlacedAt); err != nil {
		return cart.Receipt{}, err
	}
	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &r.Customer); err != nil {
			return cart.Receipt{}, err
		}
	}
	return r, nil
}

func (s *PostgresStore) lines(ctx context.Context, orderID string) ([]cart.Line, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, title, qty, unit_price, subtotal, priced
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]cart.Line, 0, 8)
	for rows.Next() {
		var ln cart.Line
		if err := rows.Scan(&ln.ProductID, &ln.Title, &ln.Quantity, &ln.UnitPrice, &ln.Subtotal, &ln.Priced); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id          TEXT PRIMARY KEY,
			number      TEXT NOT NULL UNIQUE,
			session_id  TEXT NOT NULL,
			portal      TEXT NOT NULL,
			total_items INTEGER NOT NULL,
			total_price BIGINT NOT NULL,
			customer    JSONB NOT NULL,
			placed_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_session_placed ON orders (session_id, placed_at)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id   TEXT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			qty        INTEGER NOT NULL CHECK (qty > 0),
			unit_price BIGINT NOT NULL,
			subtotal   BIGINT NOT NULL,
			priced     BOOLEAN NOT NULL,
			PRIMARY KEY (order_id, product_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
