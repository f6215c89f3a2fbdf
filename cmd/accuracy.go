package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/review-cli/internal/report"
)

var (
	accuracyMatches []int64
	accuracyAll     bool
	showMatch       int64
	compareMatch    int64
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Compute accuracy snapshots for the given matches or for all of them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "accuracy")
		if err != nil {
			return err
		}
		defer env.Close()

		// An empty list scores every known match.
		ids := accuracyMatches
		if accuracyAll {
			ids = nil
		}
		res, err := env.Accuracy.RecomputeAll(ctx, ids)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "MATCH\tRESULT")
		_, _ = fmt.Fprintln(w, "-----\t------")
		for _, id := range res.Computed {
			_, _ = fmt.Fprintf(w, "%d\tcomputed\n", id)
		}
		for _, f := range res.Failed {
			_, _ = fmt.Fprintf(w, "%d\tfailed: %s\n", f.MatchID, f.Error)
		}
		_ = w.Flush()
		_, _ = fmt.Fprintf(out, "\n%d computed, %d failed\n", len(res.Computed), len(res.Failed))

		if len(res.Computed) == 0 && len(res.Failed) > 0 {
			return eris.Errorf("no match could be scored (%d failed)", len(res.Failed))
		}
		return nil
	},
}

var accuracyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest accuracy snapshot of a match",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "accuracy")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Accuracy.Latest(ctx, showMatch)
		if err != nil {
			return err
		}
		report.WriteSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare AI annotations with reviewer corrections for a match",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "accuracy")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Accuracy.Comparison(ctx, compareMatch)
		if err != nil {
			return err
		}
		report.WriteComparison(cmd.OutOrStdout(), c)
		return nil
	},
}

func init() {
	accuracyCmd.Flags().Int64SliceVar(&accuracyMatches, "match", nil, "match IDs to score (repeatable)")
	accuracyCmd.Flags().BoolVar(&accuracyAll, "all", false, "score every match with annotations")
	accuracyCmd.MarkFlagsOneRequired("match", "all")
	accuracyCmd.MarkFlagsMutuallyExclusive("match", "all")

	accuracyShowCmd.Flags().Int64Var(&showMatch, "match", 0, "match ID (required)")
	_ = accuracyShowCmd.MarkFlagRequired("match")

	compareCmd.Flags().Int64Var(&compareMatch, "match", 0, "match ID (required)")
	_ = compareCmd.MarkFlagRequired("match")

	accuracyCmd.AddCommand(accuracyShowCmd)
	rootCmd.AddCommand(accuracyCmd, compareCmd)
}
