package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/annotations"
	"github.com/sells-group/review-cli/internal/report"
)

var (
	importFile  string
	importScore bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import match annotations (and optionally a calibration) from a YAML or JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := annotations.Load(importFile)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		if f.Calibration != nil {
			cal, err := env.Calibration.Recompute(ctx, *f.Calibration)
			if err != nil {
				return err
			}
			zap.L().Info("calibration applied",
				zap.Int64("match_id", cal.MatchID),
				zap.Int64("version", cal.Version),
			)
		}

		ann := f.Annotations()
		converted, err := env.Calibration.Enrich(ctx, ann)
		if err != nil {
			return eris.Wrap(err, "convert pitch coordinates")
		}

		if err := env.Store.SaveTracks(ctx, ann.Tracks); err != nil {
			return eris.Wrap(err, "save tracks")
		}
		if err := env.Store.SaveEvents(ctx, ann.Events); err != nil {
			return eris.Wrap(err, "save events")
		}
		if err := env.Store.SaveBalls(ctx, ann.Balls); err != nil {
			return eris.Wrap(err, "save ball positions")
		}

		zap.L().Info("import complete",
			zap.Int64("match_id", f.MatchID),
			zap.Int("events", len(ann.Events)),
			zap.Int("tracks", len(ann.Tracks)),
			zap.Int("ball_positions", len(ann.Balls)),
			zap.Int("converted", converted),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported match %d: %d events, %d tracks, %d ball positions\n",
			f.MatchID, len(ann.Events), len(ann.Tracks), len(ann.Balls))

		if !importScore {
			return nil
		}
		snap, err := env.Accuracy.ComputeMatchAccuracy(ctx, f.MatchID)
		if err != nil {
			return err
		}
		report.WriteSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to annotation file (required)")
	importCmd.Flags().BoolVar(&importScore, "score", false, "compute accuracy after importing")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
