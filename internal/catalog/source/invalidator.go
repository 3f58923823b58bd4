package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/kafka"
)

// Update announces that the stored catalog changed. It travels on the
// catalog updates topic so every catalog instance reloads.
type Update struct {
	Reason      string    `json:"reason"`
	Origin      string    `json:"origin,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Invalidator is a kafka.MessageHandler that drops the shared cache and
// reloads the registry on every Update.
type Invalidator struct {
	registry *Registry
	cache    *Cached
	logger   *slog.Logger
}

// NewInvalidator builds an Invalidator. cache may be nil when no shared cache
// is configured.
func NewInvalidator(registry *Registry, cache *Cached) *Invalidator {
	return &Invalidator{
		registry: registry,
		cache:    cache,
		logger:   slog.Default().With("component", "catalog-invalidator"),
	}
}

// Handle processes one catalog update message.
func (i *Invalidator) Handle(ctx context.Context, key, value []byte) error {
	update, err := kafka.DecodeJSON[Update](value)
	if err != nil {
		return err
	}
	i.logger.Info("catalog update received",
		"reason", update.Reason,
		"origin", update.Origin,
		"requested_at", update.RequestedAt,
	)
	return i.Apply(ctx)
}

// Apply invalidates the cache and reloads the catalog.
func (i *Invalidator) Apply(ctx context.Context) error {
	if i.cache != nil {
		if err := i.cache.Invalidate(ctx); err != nil {
			i.logger.Warn("cache invalidation failed, reloading anyway", "error", err)
		}
	}
	if _, err := i.registry.Reload(ctx); err != nil {
		return fmt.Errorf("reloading catalog: %w", err)
	}
	return nil
}

// Notifier publishes Updates so that all instances reload.
type Notifier struct {
	publisher kafka.Publisher
	origin    string
}

func NewNotifier(publisher kafka.Publisher, origin string) *Notifier {
	return &Notifier{publisher: publisher, origin: origin}
}

func (n *Notifier) Notify(ctx context.Context, reason string) error {
	return n.publisher.Publish(ctx, kafka.Event{
		Key: "catalog",
		Value: Update{
			Reason:      reason,
			Origin:      n.origin,
			RequestedAt: time.Now().UTC(),
		},
	})
}
