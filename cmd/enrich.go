package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/enrich"
	"github.com/sells-group/community-solar/internal/store"
	"github.com/sells-group/community-solar/pkg/solar"
)

var enrichFlags struct {
	limit            int
	classPrefix      string
	includeUnchecked bool
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch Google Solar estimates for pending commercial locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("limit") {
			cfg.Enrich.Limit = enrichFlags.limit
		}
		if cmd.Flags().Changed("class-prefix") {
			cfg.Enrich.ClassPrefix = enrichFlags.classPrefix
		}
		if cmd.Flags().Changed("include-unchecked") {
			cfg.Enrich.IncludeUnchecked = enrichFlags.includeUnchecked
		}

		st, err := openStore(ctx, "enrich")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		apiKey, err := cfg.ResolveAPIKey()
		if err != nil {
			return err
		}

		metrics, reg := newMetrics(st)
		client := solar.NewClient(apiKey,
			solar.WithBaseURL(cfg.Solar.BaseURL),
			solar.WithHTTPClient(&http.Client{Timeout: cfg.Solar.Timeout}),
			solar.WithRequiredQuality(cfg.Solar.RequiredQuality),
			solar.WithMinInterval(cfg.Solar.MinInterval),
			solar.WithThrottleCooldown(cfg.Solar.ThrottleCooldown),
			solar.WithMaxThrottleRetries(cfg.Solar.MaxThrottleRetries),
			solar.WithObserver(metrics),
		)

		summary, runErr := enrich.NewRunner(st, client, metrics).Run(ctx, enrich.Options{
			Filter: store.CandidateFilter{
				Limit:            cfg.Enrich.Limit,
				ClassPrefix:      cfg.Enrich.ClassPrefix,
				IncludeUnchecked: cfg.Enrich.IncludeUnchecked,
			},
		})
		logCounters(reg)
		if summary != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
		}
		if errors.Is(runErr, solar.ErrPermissionDenied) {
			zap.L().Error("solar api key rejected; check solar.api_key")
			return eris.Wrap(runErr, "enrich: halted")
		}
		return runErr
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichFlags.limit, "limit", 100, "maximum locations to request")
	enrichCmd.Flags().StringVar(&enrichFlags.classPrefix, "class-prefix", "6", "property class code prefix to enrich")
	enrichCmd.Flags().BoolVar(&enrichFlags.includeUnchecked, "include-unchecked", false, "also enrich locations never offered before")
	rootCmd.AddCommand(enrichCmd)
}
