package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// PostgresStore reads the products table:
//
//	products(portal, id, title, description, price, in_stock, pieces_per_box)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) ListSortedByID(ctx context.Context, portal string) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, title, description, price, in_stock, pieces_per_box
			FROM products
			WHERE portal = $1
			ORDER BY id ASC
		`, portal)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 16)
		for rows.Next() {
			var p Product
			if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.InStock, &p.PiecesPerBox); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, portal, id string) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, title, description, price, in_stock, pieces_per_box
			FROM products
			WHERE portal = $1 AND id = $2
		`, portal, id).Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.InStock, &p.PiecesPerBox)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

// SeedDefaults inserts the built-in products for both portals, leaving
// existing rows untouched.
func (s *PostgresStore) SeedDefaults(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO products (portal, id, title, description, price, in_stock, pieces_per_box)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (portal, id) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, portal := range []string{PortalRetail, PortalWholesale} {
			for _, p := range Seed(portal) {
				if _, err := stmt.ExecContext(ctx, portal, p.ID, p.Title, p.Description, p.Price, p.InStock, p.PiecesPerBox); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

// EnsureSchema creates the products table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS products (
				portal         TEXT NOT NULL,
				id             TEXT NOT NULL,
				title          TEXT NOT NULL,
				description    TEXT NOT NULL DEFAULT '',
				price          BIGINT NOT NULL CHECK (price >= 0),
				in_stock       BOOLEAN NOT NULL DEFAULT TRUE,
				pieces_per_box INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (portal, id)
			)`)
		return err
	})
}
