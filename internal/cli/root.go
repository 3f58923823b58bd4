// Package cli implements catalogctl, the operator tool for inspecting,
// browsing and importing the classifieds catalog.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/source"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/postgres"
)

type globalOptions struct {
	configPath string
	source     string
	dataDir    string
	logLevel   string
}

// NewRootCommand builds the catalogctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Inspect and manage the classifieds catalog",
		Long: `catalogctl loads the catalog from stub files or PostgreSQL and lets
operators list categories and filters, browse listings with the same
filtering, sorting and paging the catalog service applies, import stub
data into PostgreSQL and ask running services to reload.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.source, "source", "", "catalog source override (json or postgres)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "stub directory override for the json source")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newCategoriesCommand(opts),
		newFiltersCommand(opts),
		newListCommand(opts),
		newImportCommand(opts),
		newReloadCommand(opts),
	)
	return root
}

// Execute runs catalogctl with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.source != "" {
		cfg.Catalog.Source = o.source
	}
	if o.dataDir != "" {
		cfg.Catalog.DataDir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSource returns the configured catalog source and a function that
// releases it.
func openSource(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
	if cfg.Catalog.Source == "postgres" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return source.NewPostgres(db), func() { db.Close() }, nil
	}
	return source.NewDir(os.DirFS(cfg.Catalog.DataDir)), func() {}, nil
}

func (o *globalOptions) catalog(ctx context.Context) (*source.Catalog, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	src, release, err := openSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s source: %w", cfg.Catalog.Source, err)
	}
	defer release()
	return source.Load(ctx, src)
}
