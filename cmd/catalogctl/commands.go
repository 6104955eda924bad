package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/SofiaQuintana/products-inventory/internal/app"
	"github.com/SofiaQuintana/products-inventory/internal/config"
	"github.com/SofiaQuintana/products-inventory/internal/event"
	"github.com/SofiaQuintana/products-inventory/internal/ingest"
	"github.com/SofiaQuintana/products-inventory/internal/service"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	"github.com/SofiaQuintana/products-inventory/pkg/breaker"
	"github.com/SofiaQuintana/products-inventory/pkg/httpclient"
	pkgkafka "github.com/SofiaQuintana/products-inventory/pkg/kafka"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
)

// openStore is swapped in tests.
var openStore = app.OpenStore

// indexDropper is implemented by stores whose indexes can be rebuilt.
type indexDropper interface {
	DropIndexes(ctx context.Context) error
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Catalog maintenance commands",
		SilenceUsage: true,
	}
	root.AddCommand(newLoadCmd(), newCreateIndexesCmd(), newGenerateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("catalogctl version %s\n", app.Version)
		},
	}
}

func newLoadCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "load [path]",
		Short: "Ingest a catalog file or URL into the product store",
		Long: `Reads a CSV or XLSX catalog, normalizes every row and upserts the
products by SKU. Without a path, CSV_PATH is loaded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			if batchSize > 0 {
				cfg.IngestBatchSize = batchSize
			}

			ctx := cmd.Context()
			st, err := openReadyStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close(context.Background()) }()

			var publisher service.CompletionPublisher
			if cfg.EnableKafka {
				producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
				defer func() { _ = producer.Close() }()
				publisher = event.NewPublisher(producer, log)
			}

			clientCfg := httpclient.DefaultConfig()
			clientCfg.Timeout = 0
			fetcher := httpclient.NewCircuitBreakerClient(httpclient.New(clientCfg), breaker.DefaultConfig("catalog-source"), log)

			svc := service.NewIngestService(st, fetcher, publisher, service.IngestConfig{
				DefaultPath: cfg.CSVPath,
				BatchSize:   cfg.IngestBatchSize,
				Timeout:     cfg.IngestTimeout,
			}, log)

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			stats, err := svc.Load(ctx, path)
			if err != nil {
				return fmt.Errorf("load failed: %w", err)
			}

			cmd.Printf("run %s: loaded %s\n", stats.RunID, stats.Source)
			cmd.Printf("  inserted:  %d\n", stats.Inserted)
			cmd.Printf("  updated:   %d\n", stats.Updated)
			cmd.Printf("  errors:    %d\n", stats.Errors)
			cmd.Printf("  processed: %d in %d ms (%d docs/s)\n", stats.TotalProcessed, stats.DurationMs(), stats.DocsPerSecond())
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per upsert batch (default INGEST_BATCH_SIZE)")
	return cmd
}

func newCreateIndexesCmd() *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "create-indexes",
		Short: "Create the store's search indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close(context.Background()) }()

			if rebuild {
				d, ok := st.(indexDropper)
				if !ok {
					return fmt.Errorf("store backend %q does not support --rebuild", cfg.StoreBackend)
				}
				if err := d.DropIndexes(ctx); err != nil {
					return fmt.Errorf("drop indexes: %w", err)
				}
				cmd.Println("Dropped existing indexes.")
			}

			if err := st.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("create indexes: %w", err)
			}
			cmd.Printf("Indexes ready on %s store.\n", cfg.StoreBackend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop existing indexes first")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		count int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "generate <out.csv>",
		Short: "Write a synthetic catalog CSV for load testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			if err := ingest.WriteSample(f, count, seed); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", args[0], err)
			}
			cmd.Printf("Wrote %d products to %s.\n", count, args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10000, "number of products")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter("catalogctl", cfg.LogLevel, cmd.ErrOrStderr())
	return cfg, log, nil
}

func openReadyStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.ProductStore, error) {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		_ = st.Close(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return st, nil
}
