package domain

import (
	"fmt"
	"strings"
)

// Selector field names, in the order they are reported.
const (
	FieldContainer   = "container"
	FieldItem        = "item"
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldImage       = "image"
)

// SelectorSet is the caller-supplied set of CSS selectors that drives extraction.
// Container and Item are required; the rest are optional per-field selectors
// evaluated inside each item.
type SelectorSet struct {
	Container   string `json:"container" mapstructure:"container" yaml:"container"`
	Item        string `json:"item" mapstructure:"item" yaml:"item"`
	Name        string `json:"name" mapstructure:"name" yaml:"name"`
	Description string `json:"description" mapstructure:"description" yaml:"description"`
	Price       string `json:"price" mapstructure:"price" yaml:"price"`
	Image       string `json:"image" mapstructure:"image" yaml:"image"`
}

// NamedSelector pairs a field name with its selector.
type NamedSelector struct {
	Field    string
	Selector string
}

// Validate checks that the selectors required for extraction are present.
func (s SelectorSet) Validate() error {
	if strings.TrimSpace(s.Container) == "" {
		return fmt.Errorf("%w: container", ErrMissingSelector)
	}
	if strings.TrimSpace(s.Item) == "" {
		return fmt.Errorf("%w: item", ErrMissingSelector)
	}
	return nil
}

// Named returns the six selectors in reporting order.
func (s SelectorSet) Named() []NamedSelector {
	return []NamedSelector{
		{Field: FieldContainer, Selector: s.Container},
		{Field: FieldItem, Selector: s.Item},
		{Field: FieldName, Selector: s.Name},
		{Field: FieldDescription, Selector: s.Description},
		{Field: FieldPrice, Selector: s.Price},
		{Field: FieldImage, Selector: s.Image},
	}
}

// Merge returns s with every empty field filled from fallback.
func (s SelectorSet) Merge(fallback SelectorSet) SelectorSet {
	pick := func(v, f string) string {
		if v != "" {
			return v
		}
		return f
	}
	return SelectorSet{
		Container:   pick(s.Container, fallback.Container),
		Item:        pick(s.Item, fallback.Item),
		Name:        pick(s.Name, fallback.Name),
		Description: pick(s.Description, fallback.Description),
		Price:       pick(s.Price, fallback.Price),
		Image:       pick(s.Image, fallback.Image),
	}
}
