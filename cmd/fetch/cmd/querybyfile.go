package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newQueryByFileCmd() *cobra.Command {
	var numResults int

	cmd := &cobra.Command{
		Use:   "query-by-file <path>",
		Short: "Embed a file as an image chunk and ANN-query the image store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}

			vec, err := a.Resources.EmbedImageFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("embed query file: %w", err)
			}

			hits, err := a.SiglipStore.QueryVectorN(cmd.Context(), vec, numResults, 0)
			if err != nil {
				return fmt.Errorf("query image store: %w", err)
			}

			out := cmd.OutOrStdout()
			for i, h := range hits {
				fmt.Fprintf(out, "%3d. %s\n", i+1, h.OriginalFile)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&numResults, "num-results", 20, "Maximum results to print")

	return cmd
}
