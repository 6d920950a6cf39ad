package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/crawl"
	"menucrawler/crawler/internal/discovery"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/domain/task"
	"menucrawler/crawler/internal/export"
	"menucrawler/crawler/internal/extractor"
	"menucrawler/crawler/internal/queue"
	"menucrawler/crawler/internal/repository"
	"menucrawler/crawler/internal/state"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultCategoryLabel tags items of a single-page crawl when no category is given.
const DefaultCategoryLabel = "Kategori Yok"

// Service exposes the crawler operations. Every operation reports failure
// through the Success and Error fields of its result instead of an error.
type Service struct {
	fetcher      client.PageFetcher
	discoverer   discovery.Discoverer
	orchestrator crawl.Orchestrator
	sessions     state.SessionStore
	exporter     *export.Exporter
	queue        queue.Queue                 // Optional, failed categories are not queued without it
	repository   repository.CrawlRepository // Optional, crawls are not archived without it
	groupName    string
	maxRetries   int
	now          func() time.Time
}

func NewService(
	fetcher client.PageFetcher,
	discoverer discovery.Discoverer,
	orchestrator crawl.Orchestrator,
	sessions state.SessionStore,
	exporter *export.Exporter,
	queue queue.Queue,
	repository repository.CrawlRepository,
	groupName string,
	maxRetries int,
) *Service {
	return &Service{
		fetcher:      fetcher,
		discoverer:   discoverer,
		orchestrator: orchestrator,
		sessions:     sessions,
		exporter:     exporter,
		queue:        queue,
		repository:   repository,
		groupName:    groupName,
		maxRetries:   maxRetries,
		now:          time.Now,
	}
}

// Discover lists the categories of a menu page.
func (s *Service) Discover(ctx context.Context, menuURL string, includeSubcategories bool) domain.DiscoveryResult {
	if err := validateURL(menuURL); err != nil {
		return domain.DiscoveryResult{Error: err.Error()}
	}

	log.Infof("🔍 Discovering categories on %s", menuURL)

	categories, err := s.discoverer.Discover(ctx, menuURL, includeSubcategories)
	if err != nil {
		log.Errorf("❌ Category discovery failed for %s: %v", menuURL, err)
		return domain.DiscoveryResult{SourceURL: menuURL, Error: err.Error()}
	}

	return domain.DiscoveryResult{
		Success:    true,
		Categories: categories,
		Count:      len(categories),
		SourceURL:  menuURL,
	}
}

// CrawlWithCategories discovers every category of a menu and crawls each one.
// The crawled items are appended to the session.
func (s *Service) CrawlWithCategories(ctx context.Context, sessionID, menuURL string, selectors domain.SelectorSet) domain.CrawlReport {
	if err := validateURL(menuURL); err != nil {
		return domain.CrawlReport{Error: err.Error()}
	}
	if err := selectors.Validate(); err != nil {
		return domain.CrawlReport{Error: err.Error()}
	}

	categories, err := s.discoverer.Discover(ctx, menuURL, true)
	if err != nil {
		log.Errorf("❌ Category discovery failed for %s: %v", menuURL, err)
		return domain.CrawlReport{SourceMenuURL: menuURL, Error: err.Error()}
	}

	log.Infof("🔄 Crawling %d categories from %s", len(categories), menuURL)

	items, reports := s.orchestrator.CrawlCategories(ctx, categories, selectors, nil)

	report := domain.CrawlReport{
		Success:              true,
		Data:                 items,
		Count:                len(items),
		CategoriesDiscovered: len(categories),
		CrawlResults:         reports,
		SourceMenuURL:        menuURL,
		Timestamp:            s.now(),
	}

	s.appendToSession(ctx, sessionID, items)
	s.enqueueFailures(ctx, sessionID, categories, reports, selectors)
	s.archive(ctx, sessionID, report)

	log.Infof("✅ Crawl of %s finished: %d items, %d/%d categories failed",
		menuURL, len(items), len(report.FailedCategories()), len(categories))

	return report
}

// CrawlSingle crawls one page and tags its items with categoryLabel.
// The items are appended to the session.
func (s *Service) CrawlSingle(ctx context.Context, sessionID, pageURL string, selectors domain.SelectorSet, categoryLabel string) domain.PageResult {
	if err := validateURL(pageURL); err != nil {
		return domain.PageResult{Error: err.Error()}
	}
	if err := selectors.Validate(); err != nil {
		return domain.PageResult{Error: err.Error()}
	}

	categoryLabel = strings.TrimSpace(categoryLabel)
	if categoryLabel == "" {
		categoryLabel = DefaultCategoryLabel
	}

	items, err := s.orchestrator.CrawlPage(ctx, pageURL, selectors)
	if err != nil {
		log.Errorf("❌ Failed to crawl %s: %v", pageURL, err)
		return domain.PageResult{URL: pageURL, Error: err.Error()}
	}

	items = domain.TagItems(items, categoryLabel, pageURL)
	s.appendToSession(ctx, sessionID, items)

	log.Infof("✅ Crawled %d items from %s", len(items), pageURL)

	return domain.PageResult{
		Success:   true,
		Data:      items,
		Count:     len(items),
		URL:       pageURL,
		Timestamp: s.now(),
	}
}

// TestSelectors reports what each non-empty selector matches on a page.
func (s *Service) TestSelectors(ctx context.Context, pageURL string, selectors domain.SelectorSet) domain.SelectorTestResult {
	if err := validateURL(pageURL); err != nil {
		return domain.SelectorTestResult{Error: err.Error()}
	}

	html, err := s.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return domain.SelectorTestResult{Error: err.Error()}
	}

	doc, err := extractor.Parse(html)
	if err != nil {
		return domain.SelectorTestResult{Error: err.Error()}
	}

	return domain.SelectorTestResult{
		Success: true,
		Results: extractor.TestSelectors(doc, selectors.Named()),
	}
}

func (s *Service) appendToSession(ctx context.Context, sessionID string, items []domain.MenuItem) {
	total, err := s.sessions.Append(ctx, sessionID, items)
	if err != nil {
		log.Errorf("❌ Failed to store %d items in session %s: %v", len(items), sessionID, err)
		return
	}
	log.Debugf("Session %s now holds %d items", sessionID, total)
}

func (s *Service) enqueueFailures(
	ctx context.Context,
	sessionID string,
	categories []domain.Category,
	reports []domain.CategoryReport,
	selectors domain.SelectorSet,
) {
	if s.queue == nil {
		return
	}

	for i, report := range reports {
		if report.Success {
			continue
		}

		retryTask := &task.CategoryRetryTask{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Category:  categories[i],
			Selectors: selectors,
			Error:     report.Error,
		}

		if _, err := s.queue.AddTask(ctx, retryTask); err != nil {
			log.Errorf("❌ Failed to add retry task for %s: %v", report.Category, err)
			continue
		}
		log.Warnf("🔄 Added %s to retry queue due to error: %s", report.Category, report.Error)
	}
}

func (s *Service) archive(ctx context.Context, sessionID string, report domain.CrawlReport) {
	if s.repository == nil {
		return
	}

	run := repository.CrawlRun{
		ID:        uuid.NewString(),
		SourceURL: report.SourceMenuURL,
		SessionID: sessionID,
		CrawledAt: report.Timestamp,
		Items:     report.Data,
		Reports:   report.CrawlResults,
	}
	if err := s.repository.SaveCrawl(ctx, run); err != nil {
		log.Errorf("❌ Failed to archive crawl of %s: %v", report.SourceMenuURL, err)
		return
	}
	log.Infof("🗄️ Archived crawl run %s", run.ID)
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, raw)
	}
	return nil
}
