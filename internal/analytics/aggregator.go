package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/kafka"
)

type AggregatedStats struct {
	TotalEvents       int64         `json:"total_events"`
	SessionsStarted   int64         `json:"sessions_started"`
	PagesRevealed     int64         `json:"pages_revealed"`
	FilterChanges     int64         `json:"filter_changes"`
	SortChanges       int64         `json:"sort_changes"`
	ZeroResultViews   int64         `json:"zero_result_views"`
	AvgLatencyMs      float64       `json:"avg_latency_ms"`
	P50LatencyMs      int64         `json:"p50_latency_ms"`
	P95LatencyMs      int64         `json:"p95_latency_ms"`
	P99LatencyMs      int64         `json:"p99_latency_ms"`
	AvgRevealed       float64       `json:"avg_revealed"`
	TopCategories     []CountedItem `json:"top_categories"`
	TopFilters        []CountedItem `json:"top_filters"`
	TopSorts          []CountedItem `json:"top_sorts"`
	EventsPerMinute   float64       `json:"events_per_minute"`
}

type CountedItem struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Aggregator folds browse events into running counters. It is safe for
// concurrent use.
type Aggregator struct {
	mu             sync.RWMutex
	totalEvents    atomic.Int64
	sessions       atomic.Int64
	pages          atomic.Int64
	filterChanges  atomic.Int64
	sortChanges    atomic.Int64
	zeroResults    atomic.Int64
	latencies      []int64
	nextLatency    int
	revealedSum    int64
	categoryCounts map[string]int64
	filterCounts   map[string]int64
	sortCounts     map[string]int64
	startTime      time.Time

	// maxSamples bounds latencies; once full the oldest sample is
	// overwritten so percentiles follow recent traffic.
	maxSamples int

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:      make([]int64, 0, 10000),
		categoryCounts: make(map[string]int64),
		filterCounts:   make(map[string]int64),
		sortCounts:     make(map[string]int64),
		startTime:      time.Now(),
		maxSamples:     100000,
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent is the Kafka message handler for the browse events topic.
// Undecodable messages are logged and skipped so they do not block the
// partition.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[BrowseEvent](value)
		if err != nil || event.Type == "" {
			a.logger.Error("failed to decode browse event", "error", err, "key", string(key))
			return nil
		}
		a.Record(event)
		return nil
	}
}

// Record adds one event to the running statistics.
func (a *Aggregator) Record(event BrowseEvent) {
	a.totalEvents.Add(1)
	switch event.Type {
	case EventSessionStarted:
		a.sessions.Add(1)
	case EventPageRevealed:
		a.pages.Add(1)
	case EventFilterApplied, EventFilterRemoved, EventFiltersCleared:
		a.filterChanges.Add(1)
	case EventSortChanged:
		a.sortChanges.Add(1)
	}
	if event.Total == 0 && event.Type != EventPageRevealed {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < a.maxSamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % a.maxSamples
	}
	switch event.Type {
	case EventSessionStarted:
		a.categoryCounts[event.Category]++
	case EventFilterApplied:
		a.filterCounts[event.Attribute]++
	case EventSortChanged:
		a.sortCounts[event.Sort]++
	case EventPageRevealed:
		a.revealedSum += int64(event.Revealed)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalEvents:     a.totalEvents.Load(),
		SessionsStarted: a.sessions.Load(),
		PagesRevealed:   a.pages.Load(),
		FilterChanges:   a.filterChanges.Load(),
		SortChanges:     a.sortChanges.Load(),
		ZeroResultViews: a.zeroResults.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if stats.PagesRevealed > 0 {
		stats.AvgRevealed = float64(a.revealedSum) / float64(stats.PagesRevealed)
	}
	stats.TopCategories = topN(a.categoryCounts, 10)
	stats.TopFilters = topN(a.filterCounts, 10)
	stats.TopSorts = topN(a.sortCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.EventsPerMinute = float64(stats.TotalEvents) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []CountedItem {
	result := make([]CountedItem, 0, len(counts))
	for name, count := range counts {
		result = append(result, CountedItem{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
