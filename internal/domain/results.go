package domain

import "time"

// CategoryReport is the crawl log entry for one category.
type CategoryReport struct {
	Category       string `json:"category"`
	URL            string `json:"url"`
	Success        bool   `json:"success"`
	Count          int    `json:"count"`
	Error          string `json:"error,omitempty"`
	IsMainCategory bool   `json:"is_main_category"`
	IsSubcategory  bool   `json:"is_subcategory"`
}

// DiscoveryResult is returned by category discovery.
type DiscoveryResult struct {
	Success    bool       `json:"success"`
	Categories []Category `json:"categories,omitempty"`
	Count      int        `json:"count"`
	SourceURL  string     `json:"source_url,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// CrawlReport is returned by a discovery-driven crawl of a whole menu.
type CrawlReport struct {
	Success              bool             `json:"success"`
	Data                 []MenuItem       `json:"data,omitempty"`
	Count                int              `json:"count"`
	CategoriesDiscovered int              `json:"categories_discovered"`
	CrawlResults         []CategoryReport `json:"crawl_results,omitempty"`
	SourceMenuURL        string           `json:"source_menu_url,omitempty"`
	Timestamp            time.Time        `json:"timestamp"`
	Error                string           `json:"error,omitempty"`
}

// FailedCategories returns the log entries of categories that could not be crawled.
func (r *CrawlReport) FailedCategories() []CategoryReport {
	var failed []CategoryReport
	for _, res := range r.CrawlResults {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	return failed
}

// PageResult is returned by a single-page crawl.
type PageResult struct {
	Success   bool       `json:"success"`
	Data      []MenuItem `json:"data,omitempty"`
	Count     int        `json:"count"`
	URL       string     `json:"url"`
	Timestamp time.Time  `json:"timestamp"`
	Error     string     `json:"error,omitempty"`
}

// SelectorSample is one matched element shown while testing a selector.
type SelectorSample struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// FieldTestResult describes what a single selector matched on a page.
type FieldTestResult struct {
	Selector   string           `json:"selector"`
	FoundCount int              `json:"found_count"`
	SampleData []SelectorSample `json:"sample_data"`
	Error      string           `json:"error,omitempty"`
}

// SelectorTestResult is returned when testing selectors against a page.
type SelectorTestResult struct {
	Success bool                       `json:"success"`
	Results map[string]FieldTestResult `json:"results,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// ExportResult holds a serialized export ready to be saved or downloaded.
type ExportResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Filepath string `json:"filepath,omitempty"`
	Content  []byte `json:"-"`
	Size     int    `json:"size"`
	Error    string `json:"error,omitempty"`
}

// ImageArchiveResult holds a ZIP archive of category images.
type ImageArchiveResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Content  []byte `json:"-"`
	Size     int    `json:"size"`
	Images   int    `json:"images"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// RetryResult summarizes one drain of the failed-category queue.
type RetryResult struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Recovered int    `json:"recovered"`
	Requeued  int    `json:"requeued"`
	Dropped   int    `json:"dropped"`
	Items     int    `json:"items"`
	Error     string `json:"error,omitempty"`
}
