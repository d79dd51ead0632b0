package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/cntsearch/internal/models"
)

// SQLiteStore keeps the metadata table in an SQLite database. Each row stores the full
// record JSON plus indexed columns for lookups by doc_id and article number.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		row_index INTEGER PRIMARY KEY,
		doc_id INTEGER NOT NULL,
		articulo INTEGER,
		articulo_completo TEXT,
		titulo TEXT,
		record TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_doc_id ON articles(doc_id);
	CREATE INDEX IF NOT EXISTS idx_articles_articulo ON articles(articulo);
	`
	_, err := db.Exec(schema)
	return err
}

// WriteRecords replaces the whole table in one transaction; row_index is the slice position.
func (s *SQLiteStore) WriteRecords(ctx context.Context, records []*models.DocumentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return fmt.Errorf("clear articles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (row_index, doc_id, articulo, articulo_completo, titulo, record)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", rec.DocID, err)
		}
		var article interface{}
		if rec.ArticleID != nil {
			article = *rec.ArticleID
		}
		if _, err := stmt.ExecContext(ctx, i, rec.DocID, article, rec.ArticleIDFull, rec.Title, string(data)); err != nil {
			return fmt.Errorf("insert record %d: %w", rec.DocID, err)
		}
	}
	return tx.Commit()
}

// Records returns every record ordered by row position.
func (s *SQLiteStore) Records(ctx context.Context) ([]*models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM articles ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var records []*models.DocumentRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec models.DocumentRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// GetByArticle returns the records carrying the given article number, in row order.
func (s *SQLiteStore) GetByArticle(ctx context.Context, article int) ([]*models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM articles WHERE articulo = ? ORDER BY row_index`, article)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.DocumentRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec models.DocumentRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Count returns the number of rows in the metadata table.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
