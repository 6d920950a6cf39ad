package domain

// MenuItem is a single product row extracted from a menu page.
type MenuItem struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Price       string `json:"price" yaml:"price"`
	Image       string `json:"image" yaml:"image"`           // Used verbatim, never resolved
	Category    string `json:"category" yaml:"category"`     // Category name at extraction time
	SourceURL   string `json:"source_url" yaml:"source_url"` // Page the item was extracted from
}

// Accepted reports whether the item carries enough data to be kept.
// Rows with neither a name nor a price are selector noise.
func (m MenuItem) Accepted() bool {
	return m.Name != "" || m.Price != ""
}

// WithSource returns a copy of the item tagged with its category and page.
func (m MenuItem) WithSource(category, sourceURL string) MenuItem {
	m.Category = category
	m.SourceURL = sourceURL
	return m
}

// TagItems tags every item with the same category and source page.
func TagItems(items []MenuItem, category, sourceURL string) []MenuItem {
	tagged := make([]MenuItem, 0, len(items))
	for _, item := range items {
		tagged = append(tagged, item.WithSource(category, sourceURL))
	}
	return tagged
}
