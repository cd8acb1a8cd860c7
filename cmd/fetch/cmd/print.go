package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fetchgo/internal/filequery"
)

// printRanked prints up to limit ranked results, sorted by rank ascending.
func printRanked(cmd *cobra.Command, results []filequery.RankDiff, limit int) {
	out := cmd.OutOrStdout()
	n := len(results)
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		r := results[i]
		if r.OldRank != nil {
			fmt.Fprintf(out, "%3d. %-60s %.4f  (was #%d)\n", r.Rank, r.Path, r.Score, *r.OldRank)
		} else {
			fmt.Fprintf(out, "%3d. %-60s %.4f\n", r.Rank, r.Path, r.Score)
		}
	}
}
