package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/farmaops/catalog-enricher/internal/model"
)

// SQLite implements Store on a SQLite database, holding each record as a
// JSON document alongside its lookup keys.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at dsn and initializes
// the schema. Use ":memory:" for tests.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_products (
		customer_id TEXT NOT NULL,
		sku         TEXT NOT NULL,
		sentinel    INTEGER NOT NULL DEFAULT 0,
		doc         TEXT NOT NULL,
		imported_at DATETIME NOT NULL,
		PRIMARY KEY (customer_id, sku)
	);

	CREATE TABLE IF NOT EXISTS enriched_products (
		customer_id TEXT NOT NULL,
		sku         TEXT NOT NULL,
		doc         TEXT NOT NULL,
		created_at  DATETIME NOT NULL,
		PRIMARY KEY (customer_id, sku)
	);

	CREATE INDEX IF NOT EXISTS idx_raw_customer ON raw_products(customer_id);
	CREATE INDEX IF NOT EXISTS idx_enriched_customer ON enriched_products(customer_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init store schema: %w", err)
	}
	return nil
}

func (s *SQLite) RawProductExists(ctx context.Context, customerID, sku string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM raw_products WHERE customer_id = ? AND sku = ?`,
		customerID, sku).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query raw product: %w", err)
	}
	return true, nil
}

func (s *SQLite) InsertRawProducts(ctx context.Context, products []model.RawProduct) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert raw: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO raw_products (customer_id, sku, sentinel, doc, imported_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert raw: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, p := range products {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal raw product %s: %w", p.Sku, err)
		}
		sentinel := 0
		if p.Sentinel {
			sentinel = 1
		}
		if _, err := stmt.ExecContext(ctx, p.CustomerID, p.Sku, sentinel, string(doc), p.ImportedAt.UTC()); err != nil {
			return fmt.Errorf("insert raw product %s: %w", p.Sku, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert raw: %w", err)
	}
	return nil
}

func (s *SQLite) RawProducts(ctx context.Context, customerID string) ([]model.RawProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM raw_products WHERE customer_id = ? AND sentinel = 0 ORDER BY sku`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("query raw products: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []model.RawProduct
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan raw product: %w", err)
		}
		var p model.RawProduct
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("unmarshal raw product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteRawProducts(ctx context.Context, customerID string, keepSentinels bool) error {
	q := `DELETE FROM raw_products WHERE customer_id = ?`
	if keepSentinels {
		q += ` AND sentinel = 0`
	}
	if _, err := s.db.ExecContext(ctx, q, customerID); err != nil {
		return fmt.Errorf("delete raw products: %w", err)
	}
	return nil
}

func (s *SQLite) InsertEnriched(ctx context.Context, products []model.EnrichedProduct) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert enriched: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO enriched_products (customer_id, sku, doc, created_at)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert enriched: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	now := time.Now().UTC()
	for _, p := range products {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal enriched product %s: %w", p.Sku, err)
		}
		if _, err := stmt.ExecContext(ctx, p.CustomerID, p.Sku, string(doc), now); err != nil {
			return fmt.Errorf("insert enriched product %s: %w", p.Sku, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert enriched: %w", err)
	}
	return nil
}

func (s *SQLite) Enriched(ctx context.Context, customerID string) ([]model.EnrichedProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM enriched_products WHERE customer_id = ? ORDER BY sku`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("query enriched products: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []model.EnrichedProduct
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan enriched product: %w", err)
		}
		var p model.EnrichedProduct
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("unmarshal enriched product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteEnriched(ctx context.Context, customerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM enriched_products WHERE customer_id = ?`, customerID); err != nil {
		return fmt.Errorf("delete enriched products: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
