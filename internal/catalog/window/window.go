// Package window reveals an ordered listing set page by page, the way an
// infinite-scroll list grows as the visitor reaches its end.
package window

import "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"

// DefaultPageSize is the number of listings revealed per page.
const DefaultPageSize = 15

// Window tracks how much of an ordered set has been revealed. It is not safe
// for concurrent use.
type Window struct {
	set      *listing.Set
	pageSize int
	revealed int
	loading  bool
}

func New(pageSize int) *Window {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Window{pageSize: pageSize}
}

// Sync points the window at set. When set is a different pointer from the
// current one the window resets to a single page and drops any pending
// load. It reports whether a reset happened.
func (w *Window) Sync(set *listing.Set) bool {
	if w.set == set && set != nil {
		return false
	}
	w.set = set
	w.revealed = min(w.pageSize, set.Len())
	w.loading = false
	return true
}

// HasMore reports whether part of the set is still hidden.
func (w *Window) HasMore() bool {
	return w.revealed < w.set.Len()
}

// RevealNext appends the next page to the revealed prefix and returns the
// newly revealed listings. It does nothing once everything is revealed or
// while a load is in progress.
func (w *Window) RevealNext() []*listing.Record {
	if w.loading || !w.HasMore() {
		return nil
	}
	w.loading = true
	next := w.set.Slice(w.revealed, w.revealed+w.pageSize)
	w.revealed += len(next)
	w.loading = false
	return next
}

// Visible returns the revealed prefix of the set.
func (w *Window) Visible() []*listing.Record {
	return w.set.Slice(0, w.revealed)
}

func (w *Window) Revealed() int { return w.revealed }
func (w *Window) Total() int    { return w.set.Len() }
func (w *Window) PageSize() int { return w.pageSize }

// Pages returns how many pages have been revealed so far.
func (w *Window) Pages() int {
	return (w.revealed + w.pageSize - 1) / w.pageSize
}
