package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
)

func newDropCmd() *cobra.Command {
	var (
		dataDirectory string
		tableName     string
	)

	cmd := &cobra.Command{
		Use:   "drop --data-directory D --table-name T",
		Short: "Destroy one table outright",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDirectory == "" || tableName == "" {
				return fmt.Errorf("--data-directory and --table-name are required")
			}
			path := filepath.Join(dataDirectory, storeFileFor(tableName))
			if err := chunkstore.DropTable(path, tableName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped table %s\n", tableName)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDirectory, "data-directory", "", "Index directory containing the table's database file")
	cmd.Flags().StringVar(&tableName, "table-name", "", "Table to destroy (siglip2_chunkfile, gemma_chunkfile, cursor)")

	return cmd
}

// storeFileFor maps a table name to the physical database file it lives
// in: the two chunk tables share store.db, the cursor table has its own
// file, per the on-disk layout.
func storeFileFor(table string) string {
	if table == "cursor" {
		return "cursor.db"
	}
	return "store.db"
}
