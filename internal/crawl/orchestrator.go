// Package crawl extracts menu items from category pages one page at a time.
package crawl

import (
	"context"
	"fmt"

	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/extractor"

	log "github.com/sirupsen/logrus"
)

// Orchestrator fetches pages sequentially and applies a selector set to each.
type Orchestrator interface {
	// CrawlPage extracts the items of a single page, untagged.
	CrawlPage(ctx context.Context, pageURL string, selectors domain.SelectorSet) ([]domain.MenuItem, error)

	// CrawlCategories crawls every category in order and appends its tagged
	// items to acc. A failing category is recorded in the returned log and
	// the batch moves on; the log has one entry per category, in order.
	CrawlCategories(
		ctx context.Context,
		categories []domain.Category,
		selectors domain.SelectorSet,
		acc []domain.MenuItem,
	) ([]domain.MenuItem, []domain.CategoryReport)
}

type orchestrator struct {
	fetcher client.PageFetcher
	pacer   *client.Pacer
}

func New(fetcher client.PageFetcher, pacer *client.Pacer) Orchestrator {
	return &orchestrator{
		fetcher: fetcher,
		pacer:   pacer,
	}
}

func (o *orchestrator) CrawlPage(ctx context.Context, pageURL string, selectors domain.SelectorSet) ([]domain.MenuItem, error) {
	if err := selectors.Validate(); err != nil {
		return nil, err
	}

	html, err := o.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := extractor.Parse(html)
	if err != nil {
		return nil, err
	}

	items, err := extractor.ExtractItems(doc, selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to extract items from %s: %w", pageURL, err)
	}

	return items, nil
}

func (o *orchestrator) CrawlCategories(
	ctx context.Context,
	categories []domain.Category,
	selectors domain.SelectorSet,
	acc []domain.MenuItem,
) ([]domain.MenuItem, []domain.CategoryReport) {
	reports := make([]domain.CategoryReport, 0, len(categories))

	for i, category := range categories {
		report := domain.CategoryReport{
			Category:       category.Name,
			URL:            category.URL,
			IsMainCategory: category.IsMainCategory,
			IsSubcategory:  category.IsSubcategory(),
		}

		items, err := o.crawlCategory(ctx, category, selectors)
		if err != nil {
			log.Errorf("❌ [%d/%d] Failed to crawl %s: %v", i+1, len(categories), category.Name, err)
			report.Error = err.Error()
			reports = append(reports, report)
			continue
		}

		acc = append(acc, domain.TagItems(items, category.Name, category.URL)...)

		report.Success = true
		report.Count = len(items)
		reports = append(reports, report)

		log.Infof("✅ [%d/%d] %s: %d items", i+1, len(categories), category.Name, len(items))
	}

	return acc, reports
}

func (o *orchestrator) crawlCategory(ctx context.Context, category domain.Category, selectors domain.SelectorSet) ([]domain.MenuItem, error) {
	if err := o.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return o.CrawlPage(ctx, category.URL, selectors)
}
