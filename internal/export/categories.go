package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"menucrawler/crawler/internal/domain"

	"gopkg.in/yaml.v3"
)

// WriteCategories dumps a discovered category list as JSON or YAML.
func WriteCategories(w io.Writer, categories []domain.Category, format string) error {
	if categories == nil {
		categories = []domain.Category{}
	}

	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(categories); err != nil {
			return fmt.Errorf("failed to encode categories: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(categories); err != nil {
			return fmt.Errorf("failed to encode categories: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to flush categories: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	return nil
}
