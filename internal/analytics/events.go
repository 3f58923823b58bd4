// Package analytics collects browsing events from catalog sessions, ships
// them over Kafka and aggregates them into dashboard statistics.
package analytics

import "time"

type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventPageRevealed   EventType = "page_revealed"
	EventFilterApplied  EventType = "filter_applied"
	EventFilterRemoved  EventType = "filter_removed"
	EventFiltersCleared EventType = "filters_cleared"
	EventSortChanged    EventType = "sort_changed"
)

// BrowseEvent describes one visitor action and the resulting view.
type BrowseEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Category  string    `json:"category"`
	Attribute string    `json:"attribute,omitempty"`
	Sort      string    `json:"sort,omitempty"`
	Total     int       `json:"total"`
	Revealed  int       `json:"revealed"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
