package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fetchgo/internal/fileindex"
	"github.com/Aman-CERP/fetchgo/internal/progress"
)

func newIndexCmd() *cobra.Command {
	var (
		jobs      int
		recursive bool
		force     bool
		metrics   bool
		noTUI     bool
	)

	cmd := &cobra.Command{
		Use:   "index [--jobs N] [--recursive] [--force] [--metrics] <paths...>",
		Short: "Index one or more files (or directories, with --recursive)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args, jobs, recursive, force, metrics, noTUI)
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", 4, "Bounded-parallelism indexing permits")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Recurse into directory arguments")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the Y/N confirmation prompt")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Log each file's indexing time as it completes")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the progress bar, print plain lines")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, jobs int, recursive, force, metrics, noTUI bool) error {
	paths, err := resolvePaths(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no files to index")
		return nil
	}

	if !force {
		ok, err := confirm(cmd, fmt.Sprintf("Index %d file(s)? [y/N] ", len(paths)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if jobs <= 0 {
		jobs = a.Config.Indexing.Jobs
	}

	renderer := progress.New(cmd.OutOrStdout(), noTUI)
	renderer.Start()

	start := time.Now()
	var (
		mu               sync.Mutex
		indexed, skipped int
		failed           []string
		done             int
	)

	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup
	for _, path := range paths {
		path := path
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			fileStart := time.Now()
			result, err := a.Indexer.Index(ctx, path, nil)

			mu.Lock()
			done++
			if err != nil {
				failed = append(failed, path)
				renderer.Warn(path, err)
			} else if result.Outcome == fileindex.OutcomeSkipped {
				skipped++
			} else {
				indexed++
			}
			renderer.Update(progress.Event{Done: done, Total: len(paths), Current: path, Failed: len(failed)})
			mu.Unlock()

			if metrics {
				a.Logger.Info("indexed file", "path", path, "duration", time.Since(fileStart))
			}
		}()
	}
	wg.Wait()

	renderer.Finish(progress.Summary{
		Indexed:  indexed,
		Skipped:  skipped,
		Failed:   len(failed),
		Duration: time.Since(start),
	})

	if len(failed) > 0 {
		return fmt.Errorf("%d file(s) failed to index", len(failed))
	}
	return nil
}

// resolvePaths expands directory arguments when recursive is set;
// non-recursive directory arguments are rejected, matching the external
// interface's "caller supplies already-resolved paths" contract for
// anything beyond a single directory walk.
func resolvePaths(args []string, recursive bool) ([]string, error) {
	var out []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}
		if !recursive {
			return nil, fmt.Errorf("%s is a directory; pass --recursive to walk it", arg)
		}
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			out = append(out, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return out, nil
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}
