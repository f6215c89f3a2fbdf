package main

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/annotations"
	"github.com/sells-group/review-cli/internal/model"
	"github.com/sells-group/review-cli/internal/report"
)

var (
	calibrationFile   string
	calibrationMatch  int64
	calibrationLength float64
	calibrationWidth  float64
)

var calibrationCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Manage per-match pitch calibrations",
}

var calibrationApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Compute and store a calibration from a point file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := annotations.Load(calibrationFile)
		if err != nil {
			return err
		}
		if f.Calibration == nil {
			return eris.Errorf("%s has no calibration section", calibrationFile)
		}

		env, err := initApp(ctx, "calibrate")
		if err != nil {
			return err
		}
		defer env.Close()

		cal, err := env.Calibration.Recompute(ctx, *f.Calibration)
		if err != nil {
			return err
		}
		zap.L().Info("calibration applied",
			zap.Int64("match_id", cal.MatchID),
			zap.Int64("version", cal.Version),
			zap.Float64("reprojection_error", cal.ReprojectionError),
		)
		report.WriteCalibration(cmd.OutOrStdout(), cal)
		return nil
	},
}

var calibrationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the calibration state of a match",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "calibrate")
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Calibration.Status(ctx, calibrationMatch)
		if err != nil {
			return err
		}
		report.WriteStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var calibrationDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the calibration of a match",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "calibrate")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Calibration.Delete(ctx, calibrationMatch); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Calibration of match %d deleted\n", calibrationMatch)
		return nil
	},
}

var calibrationPointsCmd = &cobra.Command{
	Use:   "points",
	Short: "List standard landmark coordinates for a pitch size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		coords := model.StandardPitchCoordinates(calibrationLength, calibrationWidth)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "POINT\tX\tY")
		_, _ = fmt.Fprintln(w, "-----\t-\t-")
		for _, pt := range slices.Sorted(maps.Keys(coords)) {
			p := coords[pt]
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", pt, p.X, p.Y)
		}
		return w.Flush()
	},
}

func init() {
	calibrationApplyCmd.Flags().StringVar(&calibrationFile, "file", "", "YAML or JSON file with a calibration section (required)")
	_ = calibrationApplyCmd.MarkFlagRequired("file")

	for _, c := range []*cobra.Command{calibrationStatusCmd, calibrationDeleteCmd} {
		c.Flags().Int64Var(&calibrationMatch, "match", 0, "match ID (required)")
		_ = c.MarkFlagRequired("match")
	}

	calibrationPointsCmd.Flags().Float64Var(&calibrationLength, "length", model.DefaultPitchLength, "pitch length in meters")
	calibrationPointsCmd.Flags().Float64Var(&calibrationWidth, "width", model.DefaultPitchWidth, "pitch width in meters")

	calibrationCmd.AddCommand(calibrationApplyCmd, calibrationStatusCmd, calibrationDeleteCmd, calibrationPointsCmd)
	rootCmd.AddCommand(calibrationCmd)
}
