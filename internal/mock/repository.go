package mock

import (
	"context"
	"sync"

	"menucrawler/crawler/internal/repository"
)

// CrawlRepository records archived runs. SaveCrawlFn, when set, decides the
// returned error.
type CrawlRepository struct {
	SaveCrawlFn func(ctx context.Context, run repository.CrawlRun) error

	mu   sync.Mutex
	runs []repository.CrawlRun
}

func (r *CrawlRepository) EnsureSchema(context.Context) error {
	return nil
}

func (r *CrawlRepository) SaveCrawl(ctx context.Context, run repository.CrawlRun) error {
	if r.SaveCrawlFn != nil {
		if err := r.SaveCrawlFn(ctx, run); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

// Runs returns every run saved so far.
func (r *CrawlRepository) Runs() []repository.CrawlRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repository.CrawlRun(nil), r.runs...)
}
