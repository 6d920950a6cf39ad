package domain

import "strings"

// CategoryPathSeparator joins parent and child names in a flattened category path.
const CategoryPathSeparator = " > "

// Category is one node of a menu's category hierarchy, flattened for crawling.
type Category struct {
	Name           string `json:"name" yaml:"name"` // "Drinks" or "Drinks > Hot"
	URL            string `json:"url" yaml:"url"`   // Absolute, unique within a discovery run
	IsMainCategory bool   `json:"is_main_category" yaml:"is_main_category"`
	ParentCategory string `json:"parent_category,omitempty" yaml:"parent_category,omitempty"`
	Image          string `json:"image,omitempty" yaml:"image,omitempty"`
	Depth          int    `json:"depth" yaml:"depth"`
}

// ChildName builds the flattened name of a subcategory of parent.
func ChildName(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + CategoryPathSeparator + child
}

// IsSubcategory reports whether the category was found below a main category.
func (c Category) IsSubcategory() bool {
	return !c.IsMainCategory
}

// Path splits the flattened name back into its levels.
func (c Category) Path() []string {
	return strings.Split(c.Name, CategoryPathSeparator)
}
