package service

import (
	"context"

	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/export"

	log "github.com/sirupsen/logrus"
)

// SessionItems returns everything crawled into the session so far.
func (s *Service) SessionItems(ctx context.Context, sessionID string) ([]domain.MenuItem, error) {
	return s.sessions.Items(ctx, sessionID)
}

// ResetSession drops the items accumulated in the session.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Reset(ctx, sessionID); err != nil {
		return err
	}
	log.Infof("🧹 Session %s cleared", sessionID)
	return nil
}

// Export renders the session items. With save, the file is also written
// to the export directory.
func (s *Service) Export(ctx context.Context, sessionID, format string, save bool) domain.ExportResult {
	f, err := export.ParseFormat(format)
	if err != nil {
		return domain.ExportResult{Error: err.Error()}
	}

	items, err := s.sessions.Items(ctx, sessionID)
	if err != nil {
		return domain.ExportResult{Error: err.Error()}
	}
	if len(items) == 0 {
		return domain.ExportResult{Error: domain.ErrNoSessionData.Error()}
	}

	return s.render(items, nil, f, save)
}

// ExportReport renders the items and per-category log of a single crawl.
func (s *Service) ExportReport(report domain.CrawlReport, format string, save bool) domain.ExportResult {
	f, err := export.ParseFormat(format)
	if err != nil {
		return domain.ExportResult{Error: err.Error()}
	}
	return s.render(report.Data, report.CrawlResults, f, save)
}

func (s *Service) render(items []domain.MenuItem, reports []domain.CategoryReport, f export.Format, save bool) domain.ExportResult {
	result, err := s.exporter.Render(items, reports, f)
	if err != nil {
		return domain.ExportResult{Error: err.Error()}
	}

	if save {
		result, err = s.exporter.Save(result)
		if err != nil {
			return domain.ExportResult{Filename: result.Filename, Error: err.Error()}
		}
	}

	log.Infof("📦 Exported %d items as %s", len(items), result.Filename)
	return result
}
