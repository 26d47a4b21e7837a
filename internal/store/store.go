// Package store persists fetched quotes and deduplicated news records in a
// local sqlite database for offline analysis and re-insert skipping.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"findata/internal/provider"
)

// Store splits reads and writes across two connections; the write side is
// capped at one connection because sqlite serializes writers anyway.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{readDB: readDB, writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			symbol     TEXT NOT NULL,
			as_of      DATETIME NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL NOT NULL,
			currency   TEXT NOT NULL,
			source     TEXT NOT NULL,
			fetched_at DATETIME NOT NULL,
			PRIMARY KEY (symbol, as_of, source)
		);
		CREATE INDEX IF NOT EXISTS idx_quotes_symbol ON quotes(symbol, as_of DESC);

		CREATE TABLE IF NOT EXISTS news (
			canonical_url TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			title_hash    TEXT NOT NULL,
			content       TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL,
			source        TEXT NOT NULL,
			published     DATETIME NOT NULL,
			score         REAL NOT NULL DEFAULT 0,
			fetched_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_news_published ON news(published DESC);
		CREATE INDEX IF NOT EXISTS idx_news_title_hash ON news(title_hash);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// SaveQuotes upserts a batch of quotes; a re-fetch of the same trading day
// from the same source overwrites the earlier row.
func (s *Store) SaveQuotes(ctx context.Context, quotes []provider.Quote) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quotes (symbol, as_of, open, high, low, close, volume, currency, source, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, as_of, source) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, q := range quotes {
		_, err := stmt.ExecContext(ctx, q.Symbol, q.AsOf.UTC(), q.Open, q.High, q.Low, q.Close, q.Volume, q.Currency, q.Source, now)
		if err != nil {
			return fmt.Errorf("saving quote %s: %w", q.Symbol, err)
		}
	}
	return tx.Commit()
}

// SaveNews inserts records not already present; the canonical URL is the
// identity, so re-running a search never duplicates stored articles.
func (s *Store) SaveNews(ctx context.Context, items []provider.NewsItem) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO news (canonical_url, title, title_hash, content, url, source, published, score, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range items {
		canonical := item.CanonicalURL
		if canonical == "" {
			canonical = item.URL
		}
		_, err := stmt.ExecContext(ctx, canonical, item.Title, item.TitleHash, item.Content, item.URL, item.Source, item.PublishedAt.UTC(), item.Score, now)
		if err != nil {
			return fmt.Errorf("saving news %s: %w", canonical, err)
		}
	}
	return tx.Commit()
}

// ExistsByCanonicalURL reports whether a record with the given canonical URL
// is already stored.
func (s *Store) ExistsByCanonicalURL(ctx context.Context, canonicalURL string) (bool, error) {
	var one int
	err := s.readDB.QueryRowContext(ctx, "SELECT 1 FROM news WHERE canonical_url = ?", canonicalURL).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking canonical url: %w", err)
	}
	return true, nil
}

// RecentNews returns stored records newest first.
func (s *Store) RecentNews(ctx context.Context, limit int) ([]provider.NewsItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT canonical_url, title, title_hash, content, url, source, published, score
		FROM news ORDER BY published DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying news: %w", err)
	}
	defer rows.Close()

	var items []provider.NewsItem
	for rows.Next() {
		var item provider.NewsItem
		if err := rows.Scan(&item.CanonicalURL, &item.Title, &item.TitleHash, &item.Content, &item.URL, &item.Source, &item.PublishedAt, &item.Score); err != nil {
			return nil, fmt.Errorf("scanning news row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// QuotesFor returns stored quotes for one symbol, newest first.
func (s *Store) QuotesFor(ctx context.Context, symbol string, limit int) ([]provider.Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT symbol, as_of, open, high, low, close, volume, currency, source
		FROM quotes WHERE symbol = ? ORDER BY as_of DESC LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	defer rows.Close()

	var quotes []provider.Quote
	for rows.Next() {
		var q provider.Quote
		if err := rows.Scan(&q.Symbol, &q.AsOf, &q.Open, &q.High, &q.Low, &q.Close, &q.Volume, &q.Currency, &q.Source); err != nil {
			return nil, fmt.Errorf("scanning quote row: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
