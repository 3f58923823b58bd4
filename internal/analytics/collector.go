package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/kafka"
)

// CollectorConfig tunes buffering and batching.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// OnDrop is called when an event is dropped because the buffer is full.
	OnDrop func()
}

// Collector buffers browse events in memory and publishes them to Kafka in
// batches, either when a batch fills up or when the flush interval elapses.
// Track never blocks the request path.
type Collector struct {
	publisher kafka.Publisher
	cfg       CollectorConfig
	eventCh   chan BrowseEvent
	logger    *slog.Logger
	done      chan struct{}
}

func NewCollector(publisher kafka.Publisher, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.OnDrop == nil {
		cfg.OnDrop = func() {}
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		eventCh:   make(chan BrowseEvent, cfg.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publishing loop. It runs until ctx is cancelled or
// Close is called, then flushes whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.cfg.BatchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, kafka.Event{Key: event.SessionID, Value: event})
				if len(batch) >= c.cfg.BatchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.drainRemaining(batch)
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

// Track enqueues an event, dropping it if the buffer is full.
func (c *Collector) Track(event BrowseEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.cfg.OnDrop()
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
	return make([]kafka.Event, 0, c.cfg.BatchSize)
}

func (c *Collector) drainRemaining(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(ctx, batch)
				return
			}
			batch = append(batch, kafka.Event{Key: event.SessionID, Value: event})
		default:
			c.flush(ctx, batch)
			return
		}
	}
}
