// Package listing defines classifieds listing records, their dynamically named
// attribute values, and the immutable per-category listing sets the browsing
// pipeline operates on.
package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Well-known attribute names present on every listing.
const (
	AttrID        = "bulletin.id"
	AttrRelevance = "dateRelevance"
	AttrPrice     = "sell.priceNum"
	attrImages    = "images"
)

// ErrNotScalar is returned when an attribute value is an object or array.
var ErrNotScalar = errors.New("attribute value is not a scalar")

// Image describes one listing photo.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Record is one classifieds listing. Attribute names depend on the
// category's schema and are looked up by name.
type Record struct {
	attrs  map[string]Value
	Images []Image
}

// NewRecord builds a record from an attribute map. The map is copied.
func NewRecord(attrs map[string]Value, images ...Image) *Record {
	r := &Record{attrs: make(map[string]Value, len(attrs)), Images: images}
	for k, v := range attrs {
		r.attrs[k] = v
	}
	return r
}

// Get returns the named attribute. The second result is false when the
// record has no such attribute.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// Attributes returns the attribute names in sorted order.
func (r *Record) Attributes() []string {
	names := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *Record) ID() string {
	v, ok := r.attrs[AttrID]
	if !ok || v.IsNull() {
		return ""
	}
	return v.Text()
}

func (r *Record) Relevance() float64 { return r.number(AttrRelevance) }
func (r *Record) Price() float64     { return r.number(AttrPrice) }

func (r *Record) number(name string) float64 {
	n, ok := r.attrs[name].Float()
	if !ok {
		return 0
	}
	return n
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.attrs)+1)
	for k, v := range r.attrs {
		out[k] = v
	}
	images := r.Images
	if images == nil {
		images = []Image{}
	}
	out[attrImages] = images
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat JSON object. Scalar members become
// attributes, "images" becomes the image list and any other object or array
// member is dropped.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding listing: %w", err)
	}
	r.attrs = make(map[string]Value, len(raw))
	r.Images = nil
	for name, msg := range raw {
		if name == attrImages {
			if err := json.Unmarshal(msg, &r.Images); err != nil {
				return fmt.Errorf("decoding listing images: %w", err)
			}
			continue
		}
		var v Value
		if err := v.UnmarshalJSON(msg); err != nil {
			if errors.Is(err, ErrNotScalar) {
				continue
			}
			return fmt.Errorf("decoding attribute %q: %w", name, err)
		}
		r.attrs[name] = v
	}
	return nil
}
