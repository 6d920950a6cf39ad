// Package extractor applies caller-supplied CSS selectors to menu pages.
//
// Extraction is best-effort per field: a selector that matches nothing or
// does not compile yields an empty value instead of failing the item.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"menucrawler/crawler/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	log "github.com/sirupsen/logrus"
)

const sampleLimit = 3

var backgroundImagePattern = regexp.MustCompile(`(?i)background-image\s*:\s*url\s*\(\s*["']?([^"')]+)["']?\s*\)`)

// backgroundImageMatcher finds inline-styled descendants carrying a background image.
var backgroundImageMatcher = cascadia.MustCompile(`[style*="background-image"]`)

// Parse builds a queryable document from raw markup.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Compile turns a CSS selector into a matcher. An empty selector yields a nil
// matcher and no error.
func Compile(selector string) (goquery.Matcher, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", domain.ErrInvalidSelector, selector, err)
	}
	return m, nil
}

// ExtractField returns the trimmed text of the first element under node that
// matches selector, or "" when the selector is empty, invalid or unmatched.
func ExtractField(node *goquery.Selection, selector string) string {
	return textOf(node, fieldMatcher(selector))
}

// ExtractImage returns the image URL of the first element under node that
// matches selector. It tries src, then data-src, then a CSS background-image
// on the element itself, then on its first descendant that has one. The value
// is returned as written in the markup.
func ExtractImage(node *goquery.Selection, selector string) string {
	return imageOf(node, fieldMatcher(selector))
}

// ImageFrom applies the image fallback rules to el itself.
func ImageFrom(el *goquery.Selection) string {
	if el == nil || el.Length() == 0 {
		return ""
	}
	el = el.First()

	if src := strings.TrimSpace(el.AttrOr("src", "")); src != "" {
		return src
	}
	if src := strings.TrimSpace(el.AttrOr("data-src", "")); src != "" {
		return src
	}
	if img := BackgroundImage(el.AttrOr("style", "")); img != "" {
		return img
	}

	styled := el.FindMatcher(backgroundImageMatcher).First()
	if styled.Length() > 0 {
		return BackgroundImage(styled.AttrOr("style", ""))
	}
	return ""
}

// CategoryImage finds a thumbnail for a category link: on the anchor itself,
// then on an image inside it, then on the list entry holding it.
func CategoryImage(anchor *goquery.Selection) string {
	if anchor == nil || anchor.Length() == 0 {
		return ""
	}
	if img := ImageFrom(anchor); img != "" {
		return img
	}
	if img := ImageFrom(anchor.Find("img")); img != "" {
		return img
	}

	li := anchor.Closest("li")
	if li.Length() == 0 {
		return ""
	}
	if img := ImageFrom(li); img != "" {
		return img
	}
	return ImageFrom(li.Find("img"))
}

// BackgroundImage pulls the url(...) argument out of an inline style.
func BackgroundImage(style string) string {
	if style == "" {
		return ""
	}
	matches := backgroundImagePattern.FindStringSubmatch(style)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(matches[1])
}

// ExtractItems applies a selector set to a whole page. Items are searched
// inside every container match and returned in document order. Items with
// neither a name nor a price are dropped.
func ExtractItems(doc *goquery.Document, selectors domain.SelectorSet) ([]domain.MenuItem, error) {
	if err := selectors.Validate(); err != nil {
		return nil, err
	}

	containerMatcher, err := Compile(selectors.Container)
	if err != nil {
		return nil, err
	}
	itemMatcher, err := Compile(selectors.Item)
	if err != nil {
		return nil, err
	}

	containers := doc.FindMatcher(containerMatcher)
	if containers.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrContainerNotFound, selectors.Container)
	}

	name := fieldMatcher(selectors.Name)
	description := fieldMatcher(selectors.Description)
	price := fieldMatcher(selectors.Price)
	image := fieldMatcher(selectors.Image)

	items := make([]domain.MenuItem, 0)
	dropped := 0

	containers.FindMatcher(itemMatcher).Each(func(i int, s *goquery.Selection) {
		item := domain.MenuItem{
			Name:        textOf(s, name),
			Description: textOf(s, description),
			Price:       textOf(s, price),
			Image:       imageOf(s, image),
		}
		if !item.Accepted() {
			dropped++
			return
		}
		items = append(items, item)
	})

	log.Debugf("Extracted %d items (%d empty rows dropped)", len(items), dropped)
	return items, nil
}

// TestSelectors reports, for every non-empty selector, how many elements it
// matches on the page along with up to three samples.
func TestSelectors(doc *goquery.Document, selectors []domain.NamedSelector) map[string]domain.FieldTestResult {
	results := make(map[string]domain.FieldTestResult, len(selectors))

	for _, ns := range selectors {
		if strings.TrimSpace(ns.Selector) == "" {
			continue
		}

		m, err := Compile(ns.Selector)
		if err != nil {
			results[ns.Field] = domain.FieldTestResult{
				Selector:   ns.Selector,
				FoundCount: 0,
				SampleData: []domain.SelectorSample{},
				Error:      err.Error(),
			}
			continue
		}

		matches := doc.FindMatcher(m)
		samples := make([]domain.SelectorSample, 0, sampleLimit)
		matches.EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= sampleLimit {
				return false
			}
			html, _ := s.Html()
			samples = append(samples, domain.SelectorSample{
				Text: strings.TrimSpace(s.Text()),
				HTML: html,
			})
			return true
		})

		results[ns.Field] = domain.FieldTestResult{
			Selector:   ns.Selector,
			FoundCount: matches.Length(),
			SampleData: samples,
		}
	}

	return results
}

// fieldMatcher compiles an optional field selector, degrading invalid syntax to nil.
func fieldMatcher(selector string) goquery.Matcher {
	m, err := Compile(selector)
	if err != nil {
		log.Warnf("⚠️ Ignoring field selector: %v", err)
		return nil
	}
	return m
}

func textOf(node *goquery.Selection, m goquery.Matcher) string {
	if node == nil || m == nil {
		return ""
	}
	return strings.TrimSpace(node.FindMatcher(m).First().Text())
}

func imageOf(node *goquery.Selection, m goquery.Matcher) string {
	if node == nil || m == nil {
		return ""
	}
	return ImageFrom(node.FindMatcher(m))
}
