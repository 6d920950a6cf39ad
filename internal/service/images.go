package service

import (
	"context"
	"errors"
	"net/url"

	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/export"

	log "github.com/sirupsen/logrus"
)

var errNoCategoryImages = errors.New("no category images could be downloaded")

// DownloadCategoryImages discovers the categories of a menu and packs their
// thumbnails into a ZIP archive. Images that cannot be fetched are skipped.
func (s *Service) DownloadCategoryImages(ctx context.Context, menuURL string, includeSubcategories bool) domain.ImageArchiveResult {
	if err := validateURL(menuURL); err != nil {
		return domain.ImageArchiveResult{Error: err.Error()}
	}

	categories, err := s.discoverer.Discover(ctx, menuURL, includeSubcategories)
	if err != nil {
		return domain.ImageArchiveResult{Error: err.Error()}
	}

	base, _ := url.Parse(menuURL)
	archive := export.NewImageArchive()
	skipped := 0

	for _, category := range categories {
		if category.Image == "" {
			skipped++
			continue
		}

		imageURL := resolveImage(base, category.Image)
		data, err := s.fetcher.FetchBytes(ctx, imageURL)
		if err != nil {
			log.Warnf("⚠️ Skipping image of %s: %v", category.Name, err)
			skipped++
			continue
		}

		name, err := archive.Add(category, imageURL, data)
		if err != nil {
			return domain.ImageArchiveResult{Error: err.Error()}
		}
		log.Debugf("Added %s (%d bytes)", name, len(data))
	}

	if archive.Len() == 0 {
		return domain.ImageArchiveResult{Skipped: skipped, Error: errNoCategoryImages.Error()}
	}

	content, err := archive.Bytes()
	if err != nil {
		return domain.ImageArchiveResult{Error: err.Error()}
	}

	log.Infof("🖼️ Packed %d category images (%d skipped)", archive.Len(), skipped)

	return domain.ImageArchiveResult{
		Success:  true,
		Filename: "category_images_" + s.now().Format("2006-01-02_15-04-05") + ".zip",
		Content:  content,
		Size:     len(content),
		Images:   archive.Len(),
		Skipped:  skipped,
	}
}

// resolveImage makes a category image fetchable. Category records keep the
// image exactly as written in the markup; only the download needs an absolute URL.
func resolveImage(base *url.URL, image string) string {
	ref, err := url.Parse(image)
	if err != nil || base == nil {
		return image
	}
	return base.ResolveReference(ref).String()
}
