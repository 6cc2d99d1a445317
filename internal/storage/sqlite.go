package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

const createReviewsTable = `
CREATE TABLE IF NOT EXISTS reviews (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	site         TEXT NOT NULL,
	rating_label TEXT,
	rating       INTEGER,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL,
	published_at TEXT,
	tokens       TEXT NOT NULL,
	sentiment    INTEGER NOT NULL,
	stored_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reviews_run ON reviews(run_id);
CREATE INDEX IF NOT EXISTS idx_reviews_site ON reviews(site);
`

const insertReview = `
INSERT INTO reviews (run_id, site, rating_label, rating, title, body, published_at, tokens, sentiment, stored_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectReviews = `
SELECT site, rating_label, rating, title, body, published_at, tokens, sentiment
FROM reviews WHERE ? = '' OR run_id = ? ORDER BY id`

// SQLiteStorage appends records to a local SQLite database. Every run
// shares one file and is told apart by run_id.
type SQLiteStorage struct {
	conn   *sql.DB
	path   string
	runID  string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath.
func NewSQLiteStorage(dbPath, runID string, logger *slog.Logger) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec(createReviewsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create reviews schema: %w", err)
	}

	return &SQLiteStorage{
		conn:   conn,
		path:   dbPath,
		runID:  runID,
		logger: logger.With("component", "sqlite_storage"),
	}, nil
}

func (s *SQLiteStorage) Name() string { return "sqlite" }

// Path returns the database file.
func (s *SQLiteStorage) Path() string { return s.path }

func (s *SQLiteStorage) Store(ctx context.Context, recs []types.AnnotatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertReview)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range recs {
		tokens, err := json.Marshal(r.Tokens)
		if err != nil {
			return err
		}
		var published sql.NullString
		if r.PublishedAt != nil {
			published = sql.NullString{String: r.PublishedAt.Format(time.RFC3339), Valid: true}
		}
		var rating sql.NullInt64
		if r.Rating != nil {
			rating = sql.NullInt64{Int64: int64(*r.Rating), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			s.runID,
			string(r.Site),
			r.RatingLabel,
			rating,
			r.Title,
			r.Body,
			published,
			string(tokens),
			r.Sentiment,
			now,
		); err != nil {
			return fmt.Errorf("insert review for %s: %w", r.Site, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.count += len(recs)
	return nil
}

func (s *SQLiteStorage) Close() error {
	s.logger.Info("sqlite storage closing", "path", s.path, "records", s.count)
	return s.conn.Close()
}

// readSQLite reads the records of one run, or of every run when runID is empty.
func readSQLite(ctx context.Context, path, runID string) ([]types.AnnotatedRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, selectReviews, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var recs []types.AnnotatedRecord
	for rows.Next() {
		var (
			r         types.AnnotatedRecord
			site      string
			label     sql.NullString
			rating    sql.NullInt64
			published sql.NullString
			tokens    string
		)
		if err := rows.Scan(&site, &label, &rating, &r.Title, &r.Body, &published, &tokens, &r.Sentiment); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Site = types.ResolvedSite(site)
		r.RatingLabel = label.String
		if rating.Valid {
			n := int(rating.Int64)
			r.Rating = &n
		}
		if published.Valid {
			t, err := time.Parse(time.RFC3339, published.String)
			if err != nil {
				return nil, fmt.Errorf("published_at: %w", err)
			}
			r.PublishedAt = &t
		}
		if err := json.Unmarshal([]byte(tokens), &r.Tokens); err != nil {
			return nil, fmt.Errorf("tokens: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
