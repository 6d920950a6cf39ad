package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"menucrawler/crawler/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CrawlRun is one archived crawl together with its items and per-category log.
type CrawlRun struct {
	ID        string
	SourceURL string
	SessionID string
	CrawledAt time.Time
	Items     []domain.MenuItem
	Reports   []domain.CategoryReport
}

type CrawlRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveCrawl(ctx context.Context, run CrawlRun) error
}

type crawlRepository struct {
	db *pgxpool.Pool
}

func NewCrawlRepository(db *pgxpool.Pool) CrawlRepository {
	return &crawlRepository{
		db: db,
	}
}

func (r *crawlRepository) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id UUID PRIMARY KEY,
		source_url TEXT NOT NULL,
		session_id TEXT NOT NULL,
		crawled_at TIMESTAMPTZ NOT NULL,
		item_count INTEGER NOT NULL,
		failed_categories INTEGER NOT NULL,
		report JSONB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS menu_items (
		run_id UUID NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		price TEXT NOT NULL,
		image TEXT NOT NULL,
		category TEXT NOT NULL,
		source_url TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create crawl archive schema: %w", err)
	}
	return nil
}

func (r *crawlRepository) SaveCrawl(ctx context.Context, run CrawlRun) error {
	report, err := json.Marshal(run.Reports)
	if err != nil {
		return fmt.Errorf("failed to encode crawl report: %w", err)
	}

	failed := 0
	for _, rep := range run.Reports {
		if !rep.Success {
			failed++
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
	INSERT INTO crawl_runs (id, source_url, session_id, crawled_at, item_count, failed_categories, report)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, query, run.ID, run.SourceURL, run.SessionID, run.CrawledAt, len(run.Items), failed, report)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"menu_items"},
		[]string{"run_id", "position", "name", "description", "price", "image", "category", "source_url"},
		pgx.CopyFromSlice(len(run.Items), func(i int) ([]any, error) {
			item := run.Items[i]
			return []any{run.ID, i, item.Name, item.Description, item.Price, item.Image, item.Category, item.SourceURL}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy menu items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit crawl run: %w", err)
	}

	return nil
}
