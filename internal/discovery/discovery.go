// Package discovery walks a platform's category pages and flattens the
// category tree into the ordered list the crawler processes.
package discovery

import (
	"context"
	"fmt"

	"menucrawler/crawler/internal/classifier"
	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/extractor"
	"menucrawler/crawler/internal/platform"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxDepth covers the usual category > subcategory layout.
const DefaultMaxDepth = 2

// Discoverer enumerates the categories reachable from a root menu page.
type Discoverer interface {
	// Discover returns the main categories of rootURL in page order. With
	// includeSubcategories, every main category that turns out to be a branch
	// is replaced by its subcategories, recursively up to the maximum depth.
	// Only a failure on the root page is returned as an error.
	Discover(ctx context.Context, rootURL string, includeSubcategories bool) ([]domain.Category, error)
}

type discoverer struct {
	fetcher       client.PageFetcher
	classifier    classifier.Classifier
	rules         *platform.Rules
	pacer         *client.Pacer
	maxDepth      int
	categoryLinks goquery.Matcher
}

func New(
	fetcher client.PageFetcher,
	cls classifier.Classifier,
	rules *platform.Rules,
	pacer *client.Pacer,
	maxDepth int,
) (Discoverer, error) {
	categoryLinks, err := extractor.Compile(rules.CategoryLinkSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to compile category link selector: %w", err)
	}
	if categoryLinks == nil {
		return nil, fmt.Errorf("platform %s has no category link selector", rules.Name)
	}
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}

	return &discoverer{
		fetcher:       fetcher,
		classifier:    cls,
		rules:         rules,
		pacer:         pacer,
		maxDepth:      maxDepth,
		categoryLinks: categoryLinks,
	}, nil
}

func (d *discoverer) Discover(ctx context.Context, rootURL string, includeSubcategories bool) ([]domain.Category, error) {
	if err := d.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	html, err := d.fetcher.FetchHTML(ctx, rootURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch menu page: %w", err)
	}

	doc, err := extractor.Parse(html)
	if err != nil {
		return nil, err
	}

	// Every URL already placed in the result, plus the root itself.
	// Category pages repeat the main navigation, so this keeps
	// sibling links from being picked up as subcategories.
	seen := map[string]bool{d.rules.Normalize(rootURL): true}

	mains := make([]domain.Category, 0)
	for _, link := range d.classifier.Links(doc.FindMatcher(d.categoryLinks), rootURL) {
		if !d.rules.IsDetailURL(link.URL) {
			log.Debugf("Skipping non-category link %s", link.URL)
			continue
		}
		if seen[link.URL] {
			continue
		}
		seen[link.URL] = true

		mains = append(mains, domain.Category{
			Name:           link.Name,
			URL:            link.URL,
			IsMainCategory: true,
			Image:          link.Image,
			Depth:          1,
		})
	}

	log.Infof("📂 Found %d main categories on %s", len(mains), rootURL)

	if !includeSubcategories || d.maxDepth < 2 {
		return mains, nil
	}

	categories := make([]domain.Category, 0, len(mains))
	for _, main := range mains {
		categories = append(categories, d.expand(ctx, main, seen)...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Infof("✅ Discovered %d categories (%d main) on %s", len(categories), len(mains), rootURL)
	return categories, nil
}

// expand returns the subtree below cat, or cat itself when it is a leaf,
// cannot be probed, sits at the maximum depth or has no new subcategories.
func (d *discoverer) expand(ctx context.Context, cat domain.Category, seen map[string]bool) []domain.Category {
	leaf := []domain.Category{cat}

	if cat.Depth >= d.maxDepth {
		return leaf
	}
	if err := d.pacer.Wait(ctx); err != nil {
		return leaf
	}

	decision, err := d.classifier.Inspect(ctx, cat.URL)
	if err != nil {
		log.Warnf("⚠️ Failed to probe %s for subcategories, keeping it as a leaf: %v", cat.Name, err)
		return leaf
	}
	if !decision.Branch {
		return leaf
	}

	children := make([]domain.Category, 0, len(decision.Links))
	for _, link := range decision.Links {
		if !d.rules.LongEnough(link.Name) {
			continue
		}
		if !d.rules.IsDetailURL(link.URL) {
			continue
		}
		if seen[link.URL] {
			continue
		}
		seen[link.URL] = true

		children = append(children, domain.Category{
			Name:           domain.ChildName(cat.Name, link.Name),
			URL:            link.URL,
			IsMainCategory: false,
			ParentCategory: cat.Name,
			Image:          link.Image,
			Depth:          cat.Depth + 1,
		})
	}

	if len(children) == 0 {
		log.Debugf("%s classified as branch (%s) but has no new subcategories", cat.Name, decision.Rule)
		return leaf
	}

	log.Infof("🔍 %s has %d subcategories", cat.Name, len(children))

	subtree := make([]domain.Category, 0, len(children))
	for _, child := range children {
		subtree = append(subtree, d.expand(ctx, child, seen)...)
	}
	return subtree
}
