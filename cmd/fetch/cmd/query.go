package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		numResults    int
		chunksPerPage int
		page          int
		cursorFlag    string
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a natural-language query over the index",
		Long: `Run a natural-language query over the index.

Each call advances the query's cursor by --chunks-per-query and prints
the ranked results that changed since the last call. Pass the cursor ID
printed by a prior call via --cursor to continue paging into the same
query; --page is accepted for parity with the external interface but
only gates whether a --cursor is required (page 1 starts fresh).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var cursorID *string
			if cursorFlag != "" {
				cursorID = &cursorFlag
			} else if page > 1 {
				return fmt.Errorf("--page %d requires --cursor from a prior call", page)
			}

			resp, err := a.Queryer.QueryN(cmd.Context(), args[0], chunksPerPage, cursorID)
			if err != nil {
				return err
			}

			printRanked(cmd, resp.ChangedResults, numResults)
			if resp.CursorID != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\ncursor: %s (%d total results tracked)\n", *resp.CursorID, resp.ResultsLen)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "\nend of results")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&numResults, "num-results", 20, "Maximum ranked results to print")
	cmd.Flags().IntVar(&chunksPerPage, "chunks-per-query", 100, "Chunks requested per provider per call")
	cmd.Flags().IntVar(&page, "page", 1, "Page number; page > 1 requires --cursor")
	cmd.Flags().StringVar(&cursorFlag, "cursor", "", "Cursor ID returned by a prior query call")

	return cmd
}
