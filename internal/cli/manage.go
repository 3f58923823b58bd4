package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/source"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/postgres"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var from string
	var notify bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load stub files into PostgreSQL",
		Long: `Read bulletins.json, filters.json and dirs.json from a stub directory and
replace the catalog stored in PostgreSQL with their contents. With --notify
running catalog services are asked to reload afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if from == "" {
				from = cfg.Catalog.DataDir
			}
			ctx := cmd.Context()
			data, err := source.Fetch(ctx, source.NewDir(os.DirFS(from)))
			if err != nil {
				return fmt.Errorf("reading stubs from %s: %w", from, err)
			}

			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			if err := source.NewPostgres(db).Import(ctx, data); err != nil {
				return err
			}

			listings := 0
			for _, records := range data.Bulletins {
				listings += len(records)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d categories and %d listings from %s\n",
				len(data.Categories), listings, from)

			if notify {
				return publishReload(ctx, cfg, "catalog imported by catalogctl")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "stub directory (default catalog.dataDir)")
	cmd.Flags().BoolVar(&notify, "notify", false, "publish a catalog update after importing")
	return cmd
}

func newReloadCommand(opts *globalOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask running catalog services to reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := publishReload(cmd.Context(), cfg, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog update published to %s\n", cfg.Kafka.Topics.CatalogUpdates)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "requested by catalogctl", "reason recorded with the update")
	return cmd
}

var errKafkaDisabled = errors.New("kafka is disabled; enable kafka.enabled or CC_KAFKA_ENABLED to broadcast reloads")

func publishReload(ctx context.Context, cfg *config.Config, reason string) error {
	if !cfg.Kafka.Enabled {
		return errKafkaDisabled
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates)
	defer producer.Close()
	return notifyReload(ctx, producer, reason)
}

func notifyReload(ctx context.Context, publisher kafka.Publisher, reason string) error {
	hostname, _ := os.Hostname()
	if err := source.NewNotifier(publisher, "catalogctl@"+hostname).Notify(ctx, reason); err != nil {
		return fmt.Errorf("publishing catalog update: %w", err)
	}
	return nil
}
