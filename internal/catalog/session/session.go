// Package session keeps one visitor's browsing state for one category: the
// active filters, the chosen sort, the derived listing order and how much of
// it has been revealed.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/sorting"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/store"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/window"
	apperrors "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/errors"
)

// Hooks receive notifications for metrics. Any field may be nil.
type Hooks struct {
	Pipeline      pipeline.ObserveFunc
	PageRevealed  func()
	FilterChanged func(op string)
}

// View is a point-in-time rendering of a session.
type View struct {
	ID        string            `json:"id"`
	Category  listing.Category  `json:"category"`
	Total     int               `json:"total"`
	Original  int               `json:"original"`
	Revealed  int               `json:"revealed"`
	PageSize  int               `json:"pageSize"`
	Pages     int               `json:"pages"`
	HasMore   bool              `json:"hasMore"`
	Listings  []*listing.Record `json:"listings"`
	Filters   []facet.Active    `json:"filters"`
	Sort      *sorting.Option   `json:"sort"`
	SortTitle string            `json:"sortTitle"`
}

// Page is the result of revealing more listings.
type Page struct {
	Listings []*listing.Record `json:"listings"`
	View     View              `json:"view"`
}

// FacetState pairs a filter definition with its current value, if any.
type FacetState struct {
	facet.Definition
	Active *facet.Active `json:"active,omitempty"`
}

// Session serialises every operation on its state behind one mutex, so a
// change to filters or sort, the resulting reorder and the pagination reset
// are observed together.
type Session struct {
	ID        string
	CreatedAt time.Time

	category listing.Category
	listings *listing.Set
	defs     []facet.Definition
	hooks    Hooks
	lastSeen atomic.Int64

	mu       sync.Mutex
	filters  *store.ActiveFilters
	sort     *store.SortPreference
	pipeline *pipeline.Pipeline
	window   *window.Window
}

func newSession(id string, category listing.Category, listings *listing.Set, defs []facet.Definition, pageSize int, sorts []sorting.Option, hooks Hooks, now time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		category:  category,
		listings:  listings,
		defs:      defs,
		hooks:     hooks,
		filters:   store.NewActiveFilters(),
		sort:      store.NewSortPreference(sorts),
		pipeline:  pipeline.New(hooks.Pipeline),
		window:    window.New(pageSize),
	}
	s.touch(now)
	s.refresh()
	return s
}

func (s *Session) Category() listing.Category { return s.category }

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen reports when the session was last used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// refresh runs the pipeline and points the window at its result. The caller
// must hold s.mu.
func (s *Session) refresh() {
	result := s.pipeline.Process(s.listings, s.filters.Snapshot(), s.sort.Current())
	s.window.Sync(result)
}

func (s *Session) view() View {
	visible := s.window.Visible()
	if visible == nil {
		visible = []*listing.Record{}
	}
	return View{
		ID:        s.ID,
		Category:  s.category,
		Total:     s.window.Total(),
		Original:  s.listings.Len(),
		Revealed:  s.window.Revealed(),
		PageSize:  s.window.PageSize(),
		Pages:     s.window.Pages(),
		HasMore:   s.window.HasMore(),
		Listings:  visible,
		Filters:   s.filters.Snapshot().All(),
		Sort:      s.sort.Current(),
		SortTitle: s.sort.Title(),
	}
}

// View returns the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	return s.view()
}

// LoadMore reveals the next page. At the end of the list it returns an empty
// page and leaves the state unchanged.
func (s *Session) LoadMore() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	next := s.window.RevealNext()
	if len(next) > 0 && s.hooks.PageRevealed != nil {
		s.hooks.PageRevealed()
	}
	if next == nil {
		next = []*listing.Record{}
	}
	return Page{Listings: next, View: s.view()}
}

// Facets lists the category's filter definitions with active ones first.
func (s *Session) Facets() []FacetState {
	s.mu.Lock()
	snapshot := s.filters.Snapshot()
	s.mu.Unlock()
	return Facets(s.defs, snapshot)
}

// Facets orders defs with the active ones in snapshot first and attaches
// their values.
func Facets(defs []facet.Definition, snapshot *facet.Set) []FacetState {
	ordered := facet.Order(defs, func(d facet.Definition) bool { return snapshot.Has(d.Attribute) })
	out := make([]FacetState, len(ordered))
	for i, d := range ordered {
		out[i] = FacetState{Definition: d}
		if f, ok := snapshot.Get(d.Attribute); ok {
			out[i].Active = &f
		}
	}
	return out
}

// ApplyFilter validates f against the category's definitions and applies
// it, replacing any filter on the same attribute. A value that selects
// nothing, a range without bounds or an option filter without options,
// removes the filter instead.
func (s *Session) ApplyFilter(f facet.Active) (View, error) {
	def, err := s.definition(f.Attribute)
	if err != nil {
		return View{}, err
	}
	if err := conform(def, &f); err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.filters.Snapshot()
	switch {
	case f.Kind == facet.KindRange:
		err = s.filters.SetRange(f.Attribute, f.Range.Min, f.Range.Max)
	case f.Kind.IsOption() && len(f.Options) == 0:
		s.filters.Update(f.Attribute, "")
	case f.Kind.IsOption() && len(f.Options) == 1:
		if _, ok := s.filters.Get(f.Attribute); ok {
			s.filters.Update(f.Attribute, f.Options[0])
		} else {
			err = s.filters.Add(f)
		}
	case f.Kind == facet.KindBoolean:
		s.filters.SetBoolean(f.Attribute, true)
	default:
		err = s.filters.Add(f)
	}
	if err != nil {
		return View{}, apperrors.New(apperrors.ErrInvalidFilter, http.StatusBadRequest, err.Error())
	}
	s.noteChange(before, f.Attribute)
	s.refresh()
	return s.view(), nil
}

// SetBoolean switches a boolean filter on or off. Off is stored as the
// filter's absence.
func (s *Session) SetBoolean(attribute string, on bool) (View, error) {
	def, err := s.definition(attribute)
	if err != nil {
		return View{}, err
	}
	if def.Kind != facet.KindBoolean {
		return View{}, apperrors.Newf(apperrors.ErrInvalidFilter, http.StatusBadRequest,
			"filter %q is %s, not boolean", attribute, def.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.filters.Snapshot()
	s.filters.SetBoolean(attribute, on)
	s.noteChange(before, attribute)
	s.refresh()
	return s.view(), nil
}

func (s *Session) definition(attribute string) (facet.Definition, error) {
	def, ok := facet.Lookup(s.defs, attribute)
	if !ok {
		return facet.Definition{}, apperrors.Newf(apperrors.ErrInvalidFilter, http.StatusBadRequest,
			"category %s has no filter %q", s.category.ID, attribute)
	}
	return def, nil
}

// noteChange reports a filter mutation when the snapshot moved. The caller
// must hold s.mu.
func (s *Session) noteChange(before *facet.Set, attribute string) {
	after := s.filters.Snapshot()
	if after == before {
		return
	}
	if after.Has(attribute) {
		s.changed("apply")
	} else {
		s.changed("remove")
	}
}

// conform checks f against def and adopts the definition's kind, so an
// option filter may be submitted as either option variant.
func conform(def facet.Definition, f *facet.Active) error {
	switch {
	case def.Kind == f.Kind:
	case def.Kind.IsOption() && f.Kind.IsOption():
		f.Kind = def.Kind
	default:
		return apperrors.Newf(apperrors.ErrInvalidFilter, http.StatusBadRequest,
			"filter %q is %s, got %s", def.Attribute, def.Kind, f.Kind)
	}
	if def.Kind.IsOption() {
		for _, key := range f.Options {
			if !def.HasOption(key) {
				return apperrors.Newf(apperrors.ErrInvalidFilter, http.StatusBadRequest,
					"filter %q has no option %q", def.Attribute, key)
			}
		}
	}
	return nil
}

// RemoveFilter drops the filter on attribute. Removing an absent filter
// leaves the state untouched.
func (s *Session) RemoveFilter(attribute string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filters.Remove(attribute) {
		s.changed("remove")
	}
	s.refresh()
	return s.view()
}

// RemoveOption deselects one option; the filter goes away with its last
// option.
func (s *Session) RemoveOption(attribute, option string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filters.RemoveOption(attribute, option) {
		s.changed("remove_option")
	}
	s.refresh()
	return s.view()
}

// ClearFilters removes every active filter.
func (s *Session) ClearFilters() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filters.HasActive() {
		s.filters.Clear()
		s.changed("clear")
	}
	s.refresh()
	return s.view()
}

// SetSort selects a sort option by id.
func (s *Session) SetSort(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sort.Set(id); err != nil {
		if errors.Is(err, store.ErrUnknownSort) {
			return View{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownSort, id)
		}
		return View{}, err
	}
	s.refresh()
	return s.view(), nil
}

// ResetSort returns to relevance order.
func (s *Session) ResetSort() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort.Reset()
	s.refresh()
	return s.view()
}

// Sorts lists the sort options this session offers.
func (s *Session) Sorts() []sorting.Option {
	return s.sort.Available()
}

// PipelineStats reports the session pipeline's cache hits and misses.
func (s *Session) PipelineStats() (hits, misses int64) {
	return s.pipeline.Stats()
}

func (s *Session) changed(op string) {
	if s.hooks.FilterChanged != nil {
		s.hooks.FilterChanged(op)
	}
}
