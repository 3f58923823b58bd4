// Package handler exposes catalog browsing over HTTP: categories, filter
// definitions, sort options and per-visitor browsing sessions.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/session"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/sorting"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/ratelimit"
)

// CatalogProvider returns the current catalog.
type CatalogProvider interface {
	Current() (*source.Catalog, error)
}

// Tracker receives browse events. *analytics.Collector satisfies it.
type Tracker interface {
	Track(event analytics.BrowseEvent)
}

// ReloadFunc triggers a catalog reload. It returns once the reload has been
// performed or, when reloads are broadcast, requested.
type ReloadFunc func(ctx context.Context) error

// Config wires a Handler. Tracker, Reload and CreateLimiter are optional.
type Config struct {
	Catalog  CatalogProvider
	Sessions *session.Manager
	Sorts    []sorting.Option
	Tracker  Tracker
	Reload   ReloadFunc

	// CreateLimiter throttles session creation per client address.
	CreateLimiter *ratelimit.Limiter

	// AdminKey, when set, is required to trigger a reload.
	AdminKey string
}

type Handler struct {
	catalog  CatalogProvider
	sessions *session.Manager
	sorts    []sorting.Option
	tracker  Tracker
	reload   ReloadFunc
	limiter  *ratelimit.Limiter
	adminKey string
	logger   *slog.Logger
}

func New(cfg Config) *Handler {
	sorts := cfg.Sorts
	if len(sorts) == 0 {
		sorts = sorting.Defaults()
	}
	return &Handler{
		catalog:  cfg.Catalog,
		sessions: cfg.Sessions,
		sorts:    sorts,
		tracker:  cfg.Tracker,
		reload:   cfg.Reload,
		limiter:  cfg.CreateLimiter,
		adminKey: cfg.AdminKey,
		logger:   slog.Default().With("component", "catalog-handler"),
	}
}

// Routes registers the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Route("/categories/{category}", func(r chi.Router) {
		r.Get("/", h.GetCategory)
		r.Get("/filters", h.ListFilters)
		r.Get("/filters/{attribute}/options", h.SearchOptions)
	})
	r.Get("/sorts", h.ListSorts)

	create := r.With()
	if h.limiter != nil {
		create = r.With(middleware.RateLimit(h.limiter, middleware.ClientIP))
	}
	create.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Post("/more", h.LoadMore)
		r.Delete("/filters", h.ClearFilters)
		r.Put("/filters/{attribute}", h.ApplyFilter)
		r.Delete("/filters/{attribute}", h.RemoveFilter)
		r.Delete("/filters/{attribute}/options/{option}", h.RemoveOption)
		r.Put("/sort", h.SetSort)
		r.Delete("/sort", h.ResetSort)
	})

	admin := r.With()
	if h.adminKey != "" {
		admin = r.With(middleware.AdminKey(h.adminKey))
	}
	admin.Post("/catalog/reload", h.Reload)
}

type categorySummary struct {
	listing.Category
	Listings int `json:"listings"`
	Filters  int `json:"filters"`
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.Current()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]categorySummary, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, summarize(c, cat))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, cat, ok := h.category(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, summarize(c, cat))
}

func summarize(c *source.Catalog, cat listing.Category) categorySummary {
	return categorySummary{
		Category: cat,
		Listings: c.Listings(cat.ID).Len(),
		Filters:  len(c.Filters(cat.ID)),
	}
}

// ListFilters returns a category's facets. With ?session= the session's
// active facets come first and carry their values.
func (h *Handler) ListFilters(w http.ResponseWriter, r *http.Request) {
	c, cat, ok := h.category(w, r)
	if !ok {
		return
	}
	if id := r.URL.Query().Get("session"); id != "" {
		s, err := h.sessions.Get(id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if s.Category().ID != cat.ID {
			h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"session %s browses category %s", id, s.Category().ID))
			return
		}
		h.writeJSON(w, http.StatusOK, s.Facets())
		return
	}
	h.writeJSON(w, http.StatusOK, session.Facets(c.Filters(cat.ID), nil))
}

func (h *Handler) SearchOptions(w http.ResponseWriter, r *http.Request) {
	c, cat, ok := h.category(w, r)
	if !ok {
		return
	}
	attribute := chi.URLParam(r, "attribute")
	def, found := facet.Lookup(c.Filters(cat.ID), attribute)
	if !found {
		h.writeError(w, r, fmt.Errorf("%w: %q", apperrors.ErrFilterNotFound, attribute))
		return
	}
	if !def.Kind.IsOption() {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"filter %q has no options", attribute))
		return
	}
	h.writeJSON(w, http.StatusOK, def.SearchOptions(r.URL.Query().Get("q")))
}

func (h *Handler) ListSorts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sorts)
}

type createSessionRequest struct {
	Category string `json:"category"`
	PageSize int    `json:"pageSize"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Category == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "category is required"))
		return
	}
	c, err := h.catalog.Current()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.sessions.Create(c, req.Category, req.PageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view := s.View()
	logger.FromContext(logger.WithSessionID(r.Context(), s.ID)).Info("session started",
		"category", view.Category.ID,
		"total", view.Total,
	)
	h.track(r, analytics.EventSessionStarted, view, "", start)
	w.Header().Set("Location", "/api/v1/sessions/"+s.ID)
	h.writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	page := s.LoadMore()
	if len(page.Listings) > 0 {
		h.track(r, analytics.EventPageRevealed, page.View, "", start)
	}
	h.writeJSON(w, http.StatusOK, page)
}

// ApplyFilter sets the filter on the path attribute. A value that selects
// nothing, including a boolean switched off, removes it.
func (h *Handler) ApplyFilter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	attribute := chi.URLParam(r, "attribute")

	var f facet.Active
	err := decodeBody(r, &f)
	off := errors.Is(err, facet.ErrBooleanOff)
	if err != nil && !off {
		h.writeError(w, r, err)
		return
	}
	if f.Attribute == "" {
		f.Attribute = attribute
	}
	if f.Attribute != attribute {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"body names attribute %q but the path names %q", f.Attribute, attribute))
		return
	}

	var view session.View
	if off {
		view, err = s.SetBoolean(attribute, false)
	} else {
		view, err = s.ApplyFilter(f)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	event := analytics.EventFilterApplied
	if !slices.ContainsFunc(view.Filters, func(a facet.Active) bool { return a.Attribute == attribute }) {
		event = analytics.EventFilterRemoved
	}
	h.track(r, event, view, attribute, start)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	attribute := chi.URLParam(r, "attribute")
	view := s.RemoveFilter(attribute)
	h.track(r, analytics.EventFilterRemoved, view, attribute, start)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) RemoveOption(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	attribute := chi.URLParam(r, "attribute")
	view := s.RemoveOption(attribute, chi.URLParam(r, "option"))
	h.track(r, analytics.EventFilterRemoved, view, attribute, start)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view := s.ClearFilters()
	h.track(r, analytics.EventFiltersCleared, view, "", start)
	h.writeJSON(w, http.StatusOK, view)
}

type setSortRequest struct {
	ID string `json:"id"`
}

func (h *Handler) SetSort(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req setSortRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := s.SetSort(req.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.track(r, analytics.EventSortChanged, view, "", start)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ResetSort(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view := s.ResetSort()
	h.track(r, analytics.EventSortChanged, view, "", start)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog reload is disabled"))
		return
	}
	if err := h.reload(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload requested"})
}

func (h *Handler) category(w http.ResponseWriter, r *http.Request) (*source.Catalog, listing.Category, bool) {
	c, err := h.catalog.Current()
	if err != nil {
		h.writeError(w, r, err)
		return nil, listing.Category{}, false
	}
	cat, err := c.Category(chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, listing.Category{}, false
	}
	return c, cat, true
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) track(r *http.Request, typ analytics.EventType, view session.View, attribute string, start time.Time) {
	if h.tracker == nil {
		return
	}
	event := analytics.BrowseEvent{
		Type:      typ,
		SessionID: view.ID,
		Category:  view.Category.ID,
		Attribute: attribute,
		Total:     view.Total,
		Revealed:  view.Revealed,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
	if view.Sort != nil {
		event.Sort = string(view.Sort.Value)
	}
	h.tracker.Track(event)
}

const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, facet.ErrBooleanOff) {
			return err
		}
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	h.writeJSON(w, status, map[string]string{"error": apperrors.Message(err)})
}
