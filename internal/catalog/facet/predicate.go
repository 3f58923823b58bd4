package facet

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
)

// Admits reports whether the listing satisfies the active filter. A listing
// without the filtered attribute, or with a null or malformed value, never
// satisfies it.
func Admits(r *listing.Record, f Active) bool {
	value, ok := r.Get(f.Attribute)
	switch {
	case f.Kind == KindRange:
		if !ok {
			return false
		}
		return admitsRange(value, f.Range)
	case f.Kind.IsOption():
		if !ok {
			return false
		}
		return admitsOption(value, f.Options)
	case f.Kind == KindBoolean:
		return ok && value.Truthy()
	default:
		return false
	}
}

func admitsRange(value listing.Value, r Range) bool {
	if value.IsNull() {
		return false
	}
	n, ok := value.Float()
	if !ok {
		return false
	}
	if r.Min != nil && n < *r.Min {
		return false
	}
	if r.Max != nil && n > *r.Max {
		return false
	}
	return true
}

func admitsOption(value listing.Value, keys []string) bool {
	if value.IsNull() {
		return false
	}
	text := strings.ToLower(value.Text())
	for _, k := range keys {
		if text == strings.ToLower(k) {
			return true
		}
	}
	return false
}
