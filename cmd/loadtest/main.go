// Command loadtest drives the catalog service with simulated visitors. Each
// worker opens a session, scrolls, applies a filter, changes the sort order,
// scrolls again and closes the session, recording latency per step.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Categories  []string
	Scrolls     int
}

// step holds the results of one scenario step across all workers.
type step struct {
	latencies []time.Duration
	errors    int64
}

type Stats struct {
	totalRequests atomic.Int64
	errorCount    atomic.Int64
	scenarios     atomic.Int64

	mu          sync.Mutex
	steps       map[string]*step
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		steps:       make(map[string]*step),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) Record(name string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	failed := err != nil || statusCode < 200 || statusCode >= 300
	if failed {
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.steps[name]
	if !ok {
		st = &step{}
		s.steps[name] = st
	}
	if failed {
		st.errors++
	}
	if err == nil {
		st.latencies = append(st.latencies, duration)
		s.statusCodes[statusCode]++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the catalog service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent visitors")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	categories := flag.String("categories", "hydrocycles,boat-motors", "comma-separated category ids or slugs")
	scrolls := flag.Int("scrolls", 2, "pages to reveal before and after filtering")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Categories:  strings.Split(*categories, ","),
		Scrolls:     *scrolls,
	}

	fmt.Println("=== Catalog Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Categories:  %s\n", strings.Join(cfg.Categories, ", "))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Print("Running")
	stats := runLoadTest(ctx, cfg, client, func() { fmt.Print(".") })
	fmt.Println(" done!")
	fmt.Println()

	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

type visitor struct {
	cfg    Config
	client *http.Client
	stats  *Stats
}

func runLoadTest(ctx context.Context, cfg Config, client *http.Client, progress func()) *Stats {
	stats := NewStats()
	filters := discoverFilters(ctx, cfg, client)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			v := &visitor{cfg: cfg, client: client, stats: stats}
			for i := workerID; ctx.Err() == nil; i++ {
				category := cfg.Categories[i%len(cfg.Categories)]
				v.browse(ctx, category, filters[category])
				stats.scenarios.Add(1)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if progress != nil {
					progress()
				}
			}
		}
	}()

	wg.Wait()
	close(done)
	return stats
}

// discoverFilters picks, per category, a filter body every visitor applies:
// the first boolean facet, or else the first option of the first option
// facet.
func discoverFilters(ctx context.Context, cfg Config, client *http.Client) map[string]filterChoice {
	out := make(map[string]filterChoice, len(cfg.Categories))
	for _, category := range cfg.Categories {
		var defs []struct {
			Attribute string            `json:"attributeName"`
			Kind      string            `json:"type"`
			Options   map[string]string `json:"options"`
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/categories/"+category+"/filters", nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		err = json.NewDecoder(resp.Body).Decode(&defs)
		resp.Body.Close()
		if err != nil {
			continue
		}
		for _, d := range defs {
			if d.Kind == "boolean" {
				out[category] = filterChoice{attribute: d.Attribute, body: `{"type":"boolean","value":true}`}
				break
			}
		}
		if _, ok := out[category]; ok {
			continue
		}
		for _, d := range defs {
			if strings.HasPrefix(d.Kind, "optionSelect") && len(d.Options) > 0 {
				keys := make([]string, 0, len(d.Options))
				for k := range d.Options {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				body, _ := json.Marshal(map[string]any{"type": d.Kind, "value": keys[0]})
				out[category] = filterChoice{attribute: d.Attribute, body: string(body)}
				break
			}
		}
	}
	return out
}

type filterChoice struct {
	attribute string
	body      string
}

func (v *visitor) browse(ctx context.Context, category string, filter filterChoice) {
	var created struct {
		ID string `json:"id"`
	}
	body := fmt.Sprintf(`{"category":%q}`, category)
	if !v.call(ctx, "create", http.MethodPost, "/api/v1/sessions", body, &created) || created.ID == "" {
		return
	}
	base := "/api/v1/sessions/" + created.ID

	for i := 0; i < v.cfg.Scrolls; i++ {
		v.call(ctx, "more", http.MethodPost, base+"/more", "", nil)
	}
	if filter.attribute != "" {
		v.call(ctx, "filter", http.MethodPut, base+"/filters/"+filter.attribute, filter.body, nil)
	}
	v.call(ctx, "sort", http.MethodPut, base+"/sort", `{"id":"price_asc"}`, nil)
	for i := 0; i < v.cfg.Scrolls; i++ {
		v.call(ctx, "more", http.MethodPost, base+"/more", "", nil)
	}
	v.call(ctx, "delete", http.MethodDelete, base, "", nil)
}

// call performs one request and records it under name. It reports whether
// the request succeeded; out, when non-nil, receives the decoded body.
func (v *visitor) call(ctx context.Context, name, method, path, body string, out any) bool {
	if ctx.Err() != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, method, v.cfg.BaseURL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		v.stats.Record(name, 0, 0, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := v.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		// Requests cut off by the end of the run are not failures.
		if ctx.Err() == nil {
			v.stats.Record(name, duration, 0, err)
		}
		return false
	}
	defer resp.Body.Close()
	v.stats.Record(name, duration, resp.StatusCode, nil)

	if out != nil && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(out) == nil
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 300
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	errs := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Scenarios:       %d\n", stats.scenarios.Load())
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Errors:          %d\n", errs)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	names := make([]string, 0, len(stats.steps))
	for name := range stats.steps {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency by step ===")
	fmt.Fprintf(w, "%-8s %8s %6s %10s %10s %10s %10s\n", "STEP", "COUNT", "ERR", "AVG", "P50", "P95", "P99")
	for _, name := range names {
		st := stats.steps[name]
		latencies := append([]time.Duration(nil), st.latencies...)
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Fprintf(w, "%-8s %8d %6d %10s %10s %10s %10s\n",
			name, len(latencies), st.errors,
			average(latencies), percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code])
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the catalog service running?")
		return false
	}
	return true
}

func average(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return (sum / time.Duration(len(latencies))).Round(time.Microsecond)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx].Round(time.Microsecond)
}
