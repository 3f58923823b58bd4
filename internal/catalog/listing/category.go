package listing

import "strings"

// Category is one catalog section, e.g. hydrocycles or boat motors.
type Category struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug,omitempty"`
	SeeAlso string `json:"seeAlso,omitempty"`
}

// FindCategory resolves ref against category ids, slugs and titles, in that
// order. Title matching ignores case.
func FindCategory(categories []Category, ref string) (Category, bool) {
	for _, c := range categories {
		if c.ID == ref {
			return c, true
		}
	}
	for _, c := range categories {
		if c.Slug != "" && c.Slug == ref {
			return c, true
		}
	}
	for _, c := range categories {
		if strings.EqualFold(c.Title, ref) {
			return c, true
		}
	}
	return Category{}, false
}
