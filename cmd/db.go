package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/monitoring"
	"github.com/sells-group/community-solar/internal/report"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the pipeline database",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the estimate and load log tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), "db")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("database ready", zap.String("path", cfg.Store.Path))
		return nil
	},
}

var dbResetConfirm bool

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every pipeline table",
	Long:  "Drops LOCATIONS, GOOGLE_SOLAR, CEJST, PROPERTY_CODES and LOAD_LOG. Enrichment results are lost.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dbResetConfirm {
			return fmt.Errorf("refusing to drop tables in %s without --yes", cfg.Store.Path)
		}
		st, err := openStore(cmd.Context(), "db")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Reset(cmd.Context()); err != nil {
			return err
		}
		zap.L().Warn("database reset", zap.String("path", cfg.Store.Path))
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show table sizes, enrichment progress and recent loads",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), "db")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st, 10).Collect(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var dbDictionaryOut string

var dbDictionaryCmd = &cobra.Command{
	Use:   "dictionary",
	Short: "Export the data dictionary workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), "db")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tables, err := st.DataDictionary(cmd.Context())
		if err != nil {
			return err
		}

		if dir := filepath.Dir(dbDictionaryOut); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := report.WriteDictionary(dbDictionaryOut, tables); err != nil {
			return err
		}
		zap.L().Info("data dictionary written",
			zap.String("path", dbDictionaryOut),
			zap.Int("tables", len(tables)),
		)
		return nil
	},
}

func init() {
	dbResetCmd.Flags().BoolVar(&dbResetConfirm, "yes", false, "confirm dropping all tables")
	dbDictionaryCmd.Flags().StringVar(&dbDictionaryOut, "out", report.DictionaryFile, "output workbook path")

	dbCmd.AddCommand(dbInitCmd, dbResetCmd, dbStatusCmd, dbDictionaryCmd)
	rootCmd.AddCommand(dbCmd)
}
