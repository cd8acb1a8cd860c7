// Command fetch is the CLI front-end for the local file indexing and
// semantic search engine: index files, query them, query by example
// file, and drop a table outright.
package main

import (
	"os"

	"github.com/Aman-CERP/fetchgo/cmd/fetch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
