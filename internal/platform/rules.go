package platform

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"menucrawler/crawler/internal/config"
)

// Rules describes how category links look on the hosting platform and which
// links must never be treated as categories.
type Rules struct {
	Name                     string
	CategoryLinkSelector     string
	SubcategoryLinkSelectors []string
	ProductSelector          string
	MinSubcategoryNameLength int

	baseURL        *url.URL
	detailPattern  *regexp.Regexp
	socialKeywords []string
}

// NewRules compiles the platform configuration
func NewRules(cfg config.PlatformConfig) (*Rules, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid platform base URL %q", cfg.BaseURL)
	}

	var pattern *regexp.Regexp
	if cfg.DetailURLPattern != "" {
		pattern, err = regexp.Compile(cfg.DetailURLPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid detail URL pattern: %w", err)
		}
	}

	subSelectors := cfg.SubcategoryLinkSelectors
	if len(subSelectors) == 0 && cfg.CategoryLinkSelector != "" {
		subSelectors = []string{cfg.CategoryLinkSelector}
	}

	keywords := make([]string, 0, len(cfg.SocialKeywords))
	for _, k := range cfg.SocialKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Rules{
		Name:                     cfg.Name,
		CategoryLinkSelector:     cfg.CategoryLinkSelector,
		SubcategoryLinkSelectors: subSelectors,
		ProductSelector:          cfg.ProductSelector,
		MinSubcategoryNameLength: cfg.MinSubcategoryNameLength,
		baseURL:                  base,
		detailPattern:            pattern,
		socialKeywords:           keywords,
	}, nil
}

// BaseURL returns the platform origin links are resolved against
func (r *Rules) BaseURL() string {
	return r.baseURL.String()
}

// Normalize turns an href found on a platform page into an absolute URL.
// Relative hrefs are resolved against the platform base origin; fragments are dropped.
func (r *Rules) Normalize(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := r.baseURL.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}

// SameURL reports whether two hrefs point at the same page once normalized
func (r *Rules) SameURL(a, b string) bool {
	na, nb := r.Normalize(a), r.Normalize(b)
	return na != "" && na == nb
}

// IsSocial reports whether a link is a social or share link. Keywords match
// case-insensitively against both the link text and the href.
func (r *Rules) IsSocial(text, href string) bool {
	text = strings.ToLower(text)
	href = strings.ToLower(href)
	for _, keyword := range r.socialKeywords {
		if strings.Contains(text, keyword) || strings.Contains(href, keyword) {
			return true
		}
	}
	return false
}

// IsDetailURL reports whether an absolute URL looks like a platform category page
func (r *Rules) IsDetailURL(absURL string) bool {
	if absURL == "" {
		return false
	}
	if r.detailPattern == nil {
		return true
	}
	return r.detailPattern.MatchString(absURL)
}

// LongEnough reports whether a subcategory link text passes the minimum name length.
// Length is counted in runes.
func (r *Rules) LongEnough(name string) bool {
	return len([]rune(name)) >= r.MinSubcategoryNameLength
}
