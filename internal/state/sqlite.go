package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"menucrawler/crawler/internal/domain"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver
)

type sqliteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore opens (or creates) a session database file at path.
func NewSQLiteSessionStore(path string) (SessionStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &sqliteSessionStore{db: db}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session tables: %w", err)
	}

	log.Debugf("Session database ready at %s", path)
	return s, nil
}

func (s *sqliteSessionStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		price TEXT NOT NULL,
		image TEXT NOT NULL,
		category TEXT NOT NULL,
		source_url TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_session_items_session ON session_items(session_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteSessionStore) Items(ctx context.Context, sessionID string) ([]domain.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, price, image, category, source_url
		FROM session_items
		WHERE session_id = ?
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0)
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.Name, &item.Description, &item.Price, &item.Image, &item.Category, &item.SourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan session item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session %s: %w", sessionID, err)
	}

	return items, nil
}

func (s *sqliteSessionStore) Append(ctx context.Context, sessionID string, items []domain.MenuItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_items (session_id, name, description, price, image, category, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, sessionID, item.Name, item.Description, item.Price, item.Image, item.Category, item.SourceURL); err != nil {
			return 0, fmt.Errorf("failed to insert item %q: %w", item.Name, err)
		}
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_items WHERE session_id = ?`, sessionID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session %s: %w", sessionID, err)
	}

	return total, nil
}

func (s *sqliteSessionStore) Reset(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_items WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to reset session %s: %w", sessionID, err)
	}
	return nil
}

func (s *sqliteSessionStore) Close() error {
	return s.db.Close()
}
