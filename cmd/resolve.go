package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/progress"
	"github.com/JakeFAU/urlfinder/internal/resolver"
)

type resolveOptions struct {
	input        string
	parallelism  int
	showProgress bool
}

// newResolveCmd creates the 'resolve' subcommand. Names come from the
// arguments or, with --input, one per line from a file ("-" for stdin).
// Outcomes are printed as JSON lines in input order.
func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [name...]",
		Short: "Resolve company names to website URLs",
		Example: `  urlfinder resolve "Acme Corp" "Globex"
  urlfinder resolve --input companies.txt --parallelism 16
  urlfinder resolve --domains --input domains.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runResolve(ctx, cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", `file with one name per line ("-" for stdin)`)
	cmd.Flags().IntVarP(&opts.parallelism, "parallelism", "p", 0, "max concurrent resolutions (default from config)")
	cmd.Flags().BoolVar(&opts.showProgress, "progress", false, "print progress to stderr")
	return cmd
}

// runResolve resolves the batch under ctx; cancelling it marks unfinished
// names as errored and still prints every outcome.
func runResolve(ctx context.Context, cmd *cobra.Command, args []string, opts *resolveOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	candidates, err := collectCandidates(cmd.InOrStdin(), args, opts.input)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.New("no names given: pass them as arguments or with --input")
	}

	exec := appInstance.Executor(opts.parallelism)
	reporter := progress.NewReporter(appInstance.Progress(), uuid.New(), len(candidates))
	onProgress := reporter.Observe
	if opts.showProgress {
		stderr := cmd.ErrOrStderr()
		onProgress = func(completed, total int) {
			reporter.Observe(completed, total)
			fmt.Fprintf(stderr, "\rresolved %d/%d", completed, total)
			if completed == total {
				fmt.Fprintln(stderr)
			}
		}
	}

	logger.Info("resolving batch",
		zap.String("batch_id", reporter.BatchID().String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("parallelism", exec.MaxParallelism()),
	)
	reporter.Start()
	outcomes, err := exec.Run(ctx, candidates, onProgress)
	if err != nil {
		reporter.Done("failed")
		return fmt.Errorf("run batch: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	counts := make(map[resolver.Status]int, 3)
	for _, c := range candidates {
		out := outcomes[c.ID]
		counts[out.Status]++
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write outcome: %w", err)
		}
	}
	reporter.Done(fmt.Sprintf("resolved=%d unresolved=%d errored=%d",
		counts[resolver.StatusResolved], counts[resolver.StatusUnresolved], counts[resolver.StatusErrored]))
	return nil
}

// collectCandidates reads names from args and/or the input source. IDs are
// 1-based positions across the combined list. Blank lines are skipped.
func collectCandidates(stdin io.Reader, args []string, input string) ([]resolver.Candidate, error) {
	names := append([]string(nil), args...)
	if input != "" {
		lines, err := readLines(stdin, input)
		if err != nil {
			return nil, err
		}
		names = append(names, lines...)
	}
	candidates := make([]resolver.Candidate, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, resolver.Candidate{
			ID:    strconv.Itoa(len(candidates) + 1),
			Input: name,
		})
	}
	return candidates, nil
}

func readLines(stdin io.Reader, input string) ([]string, error) {
	r := stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}
