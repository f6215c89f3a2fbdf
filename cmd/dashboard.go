package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/report"
)

var (
	dashboardJSON bool
	exportOut     string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show accuracy across all scored matches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "accuracy")
		if err != nil {
			return err
		}
		defer env.Close()

		d, err := env.Accuracy.Dashboard(ctx)
		if err != nil {
			return err
		}

		if dashboardJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}
		report.WriteDashboard(cmd.OutOrStdout(), d)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the accuracy dashboard and per-match snapshots to an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "accuracy")
		if err != nil {
			return err
		}
		defer env.Close()

		d, err := env.Accuracy.Dashboard(ctx)
		if err != nil {
			return err
		}
		snaps, err := env.Store.LatestSnapshots(ctx)
		if err != nil {
			return eris.Wrap(err, "load latest snapshots")
		}
		if err := report.SaveXLSX(exportOut, d, snaps); err != nil {
			return err
		}

		zap.L().Info("report exported", zap.String("path", exportOut), zap.Int("matches", len(snaps)))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d matches)\n", exportOut, len(snaps))
		return nil
	},
}

func init() {
	dashboardCmd.Flags().BoolVar(&dashboardJSON, "json", false, "print JSON instead of tables")
	exportCmd.Flags().StringVar(&exportOut, "out", "accuracy-report.xlsx", "workbook path")
	rootCmd.AddCommand(dashboardCmd, exportCmd)
}
