// Package classifier decides whether a category page is a branch that lists
// further subcategories or a leaf that lists products.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/extractor"
	"menucrawler/crawler/internal/platform"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// Rule names the heuristic rule that produced a decision.
type Rule string

const (
	RuleNoLinks        Rule = "no-links"
	RuleNoProducts     Rule = "no-products"
	RuleManyLinks      Rule = "many-links"
	RuleSingleLink     Rule = "single-link-no-products"
	RuleSparseProducts Rule = "sparse-products"
	RuleLinkDensity    Rule = "link-density"
	RuleProductListing Rule = "product-listing"
	RuleProbeFailed    Rule = "probe-failed"
)

// Policy holds the tunable thresholds of the branch heuristic.
type Policy struct {
	MinBranchLinks     int
	SparseProductCount int
	LinkDensityRatio   float64
}

// DefaultPolicy returns the thresholds the heuristic was tuned with.
func DefaultPolicy() Policy {
	return Policy{
		MinBranchLinks:     2,
		SparseProductCount: 5,
		LinkDensityRatio:   0.5,
	}
}

// PolicyFrom builds a policy from configuration, keeping defaults for unset values.
func PolicyFrom(cfg config.ClassifierConfig) Policy {
	p := DefaultPolicy()
	if cfg.MinBranchLinks > 0 {
		p.MinBranchLinks = cfg.MinBranchLinks
	}
	if cfg.SparseProductCount > 0 {
		p.SparseProductCount = cfg.SparseProductCount
	}
	if cfg.LinkDensityRatio > 0 {
		p.LinkDensityRatio = cfg.LinkDensityRatio
	}
	return p
}

// Decide applies the heuristic to the number of candidate subcategory links
// and product elements on a page. The first matching rule wins; ambiguous
// pages lean towards branch.
func (p Policy) Decide(links, products int) (bool, Rule) {
	switch {
	case links == 0:
		return false, RuleNoLinks
	case products == 0:
		return true, RuleNoProducts
	case links >= p.MinBranchLinks:
		return true, RuleManyLinks
	case links == 1 && products == 0:
		// Subsumed by RuleNoProducts.
		return true, RuleSingleLink
	case products < p.SparseProductCount:
		return true, RuleSparseProducts
	case float64(links) > float64(products)*p.LinkDensityRatio:
		return true, RuleLinkDensity
	default:
		return false, RuleProductListing
	}
}

// Link is a candidate category link found on a page.
type Link struct {
	Name  string // Link text with whitespace collapsed
	URL   string // Absolute, fragment-free
	Image string // Best-effort thumbnail, verbatim
}

// Decision is the classification of one page.
type Decision struct {
	URL      string
	Links    []Link
	Products int
	Branch   bool
	Rule     Rule
}

// Classifier inspects category pages of one platform.
type Classifier interface {
	// HasSubcategories fetches pageURL and reports whether it is a branch.
	// Any failure is logged and reported as false.
	HasSubcategories(ctx context.Context, pageURL string) bool
	// Inspect fetches and classifies pageURL.
	Inspect(ctx context.Context, pageURL string) (Decision, error)
	// Classify classifies an already parsed page without any I/O.
	Classify(doc *goquery.Document, pageURL string) Decision
	// Links returns the usable category links among anchors found on pageURL.
	Links(anchors *goquery.Selection, pageURL string) []Link
}

type classifier struct {
	fetcher      client.PageFetcher
	rules        *platform.Rules
	policy       Policy
	linkMatchers []goquery.Matcher
	products     goquery.Matcher
}

// New compiles the platform selectors and returns a classifier.
func New(fetcher client.PageFetcher, rules *platform.Rules, policy Policy) (Classifier, error) {
	c := &classifier{
		fetcher: fetcher,
		rules:   rules,
		policy:  policy,
	}

	for _, sel := range rules.SubcategoryLinkSelectors {
		m, err := extractor.Compile(sel)
		if err != nil {
			return nil, fmt.Errorf("failed to compile subcategory link selector: %w", err)
		}
		if m != nil {
			c.linkMatchers = append(c.linkMatchers, m)
		}
	}

	products, err := extractor.Compile(rules.ProductSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to compile product selector: %w", err)
	}
	c.products = products

	return c, nil
}

func (c *classifier) HasSubcategories(ctx context.Context, pageURL string) bool {
	decision, err := c.Inspect(ctx, pageURL)
	if err != nil {
		log.Warnf("⚠️ Could not probe %s for subcategories, treating as leaf: %v", pageURL, err)
		return false
	}
	return decision.Branch
}

func (c *classifier) Inspect(ctx context.Context, pageURL string) (Decision, error) {
	html, err := c.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return Decision{URL: pageURL, Rule: RuleProbeFailed}, err
	}

	doc, err := extractor.Parse(html)
	if err != nil {
		return Decision{URL: pageURL, Rule: RuleProbeFailed}, err
	}

	return c.Classify(doc, pageURL), nil
}

func (c *classifier) Classify(doc *goquery.Document, pageURL string) Decision {
	var anchors *goquery.Selection
	for _, m := range c.linkMatchers {
		if found := doc.FindMatcher(m); found.Length() > 0 {
			anchors = found
			break
		}
	}

	decision := Decision{URL: pageURL}
	if anchors != nil {
		decision.Links = c.Links(anchors, pageURL)
	}
	if c.products != nil {
		decision.Products = doc.FindMatcher(c.products).Length()
	}

	decision.Branch, decision.Rule = c.policy.Decide(len(decision.Links), decision.Products)

	log.Debugf("Classified %s: links=%d products=%d rule=%s branch=%t",
		pageURL, len(decision.Links), decision.Products, decision.Rule, decision.Branch)

	return decision
}

func (c *classifier) Links(anchors *goquery.Selection, pageURL string) []Link {
	links := make([]Link, 0, anchors.Length())

	anchors.Each(func(i int, a *goquery.Selection) {
		name := strings.Join(strings.Fields(a.Text()), " ")
		if name == "" {
			return
		}

		href := a.AttrOr("href", "")
		if c.rules.IsSocial(name, href) {
			return
		}

		abs := c.rules.Normalize(href)
		if abs == "" || c.rules.SameURL(abs, pageURL) {
			return
		}

		links = append(links, Link{
			Name:  name,
			URL:   abs,
			Image: extractor.CategoryImage(a),
		})
	})

	return links
}
