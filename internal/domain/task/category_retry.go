package task

import "menucrawler/crawler/internal/domain"

const CategoryRetryTaskType = "CategoryRetryTask"

// CategoryRetryTask is published when a category page could not be crawled.
type CategoryRetryTask struct {
	ID         string             `json:"id"`
	SessionID  string             `json:"session_id"`  // Session the recovered items are appended to
	Category   domain.Category    `json:"category"`    // Category exactly as discovered
	Selectors  domain.SelectorSet `json:"selectors"`   // Selector set of the original crawl
	RetryCount int                `json:"retry_count"` // Number of times this category has been retried
	Error      string             `json:"error"`       // Error message from the last failure
}

func (t *CategoryRetryTask) TaskType() string {
	return CategoryRetryTaskType
}

func (t *CategoryRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
