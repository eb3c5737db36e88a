package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/community-solar/internal/ingest"
)

var loadSource string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Download and bulk load source datasets",
}

func newLoadDatasetCmd(d ingest.Dataset) *cobra.Command {
	return &cobra.Command{
		Use:   d.Name,
		Short: fmt.Sprintf("Load the %s table", d.Table),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, "load")
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			source := loadSource
			if source == "" {
				if source, err = sourceFor(d); err != nil {
					return err
				}
			}

			metrics, reg := newMetrics(st)
			result, err := newLoader(st, metrics).Load(ctx, d, source)
			logCounters(reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d inserted, %d failed\n", d.Table, result.Inserted, result.Failed())
			return nil
		},
	}
}

var loadAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Load every dataset: downloads run in parallel, loads run in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadSource != "" {
			return fmt.Errorf("--source applies to a single dataset, not all")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "load")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		metrics, reg := newMetrics(st)
		defer logCounters(reg)
		loader := newLoader(st, metrics)

		sources := make([]string, len(ingest.Datasets))
		paths := make([]string, len(ingest.Datasets))
		for i, d := range ingest.Datasets {
			if sources[i], err = sourceFor(d); err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for i, d := range ingest.Datasets {
			g.Go(func() error {
				p, err := loader.Fetch(gctx, d, sources[i])
				if err != nil {
					return err
				}
				paths[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// One connection: loads are sequential.
		for i, d := range ingest.Datasets {
			result, err := loader.LoadFile(ctx, d, paths[i], sources[i])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d inserted, %d failed\n", d.Table, result.Inserted, result.Failed())
		}

		zap.L().Info("all datasets loaded", zap.Int("datasets", len(ingest.Datasets)))
		return nil
	},
}

func init() {
	loadCmd.PersistentFlags().StringVar(&loadSource, "source", "", "override the configured source path or URL (single dataset only)")
	for _, d := range ingest.Datasets {
		loadCmd.AddCommand(newLoadDatasetCmd(d))
	}
	loadCmd.AddCommand(loadAllCmd)
	rootCmd.AddCommand(loadCmd)
}
