// assertlens instruments Go assertion sites so a failing condition prints a
// reconstruction of the expression with the runtime values that falsified
// it, instead of a bare abort.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"assertlens/internal/config"
	"assertlens/internal/goast"
	"assertlens/internal/logging"
	"assertlens/internal/store"
	"assertlens/internal/watch"
)

var (
	verbose      bool
	workspace    string
	parallel     int
	writeInPlace bool
	outputSuffix string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assertlens",
	Short: "assertlens - assertion introspection for Go",
	Long: `assertlens rewrites assertion sites so failures explain themselves.

A condition like assert(x == y && z < limit) is instrumented to capture each
operand exactly once as it evaluates, then print the expression shape with
the captured values when the check fails. Short-circuit behavior of the
original condition is preserved exactly: operands the source never reached
are never touched, and never shown.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}

		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}
		if err := logging.Initialize(workspace, logging.Options{
			Debug: verbose || cfg.Logging.Debug,
			Level: cfg.Logging.Level,
		}); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [files or directories...]",
	Short: "Instrument assertion sites in Go files",
	Long: `Rewrite parses each file, instruments every supported assertion site,
and writes the result next to the original under the configured suffix, or
over the original with --write. Unsupported sites are skipped with a
warning; the rest of the file still gets instrumented.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRewrite,
}

var scanCmd = &cobra.Command{
	Use:   "scan [files or directories...]",
	Short: "List assertion sites without rewriting",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

var watchCmd = &cobra.Command{
	Use:   "watch [directories...]",
	Short: "Re-instrument files as they change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent instrumentation runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rewriteCmd.Flags().IntVarP(&parallel, "parallel", "j", 4, "Maximum concurrent file rewrites")
	rewriteCmd.Flags().BoolVar(&writeInPlace, "write", false, "Rewrite files in place instead of writing suffixed copies")
	rewriteCmd.Flags().StringVar(&outputSuffix, "suffix", "", "Suffix for generated files (overrides config)")

	var historyLimit int
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")

	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRewrite(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if outputSuffix != "" {
		cfg.OutputSuffix = outputSuffix
	}
	if writeInPlace {
		cfg.OutputSuffix = ""
	}

	files, err := collectGoFiles(args, cfg.OutputSuffix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no Go files found under %s", strings.Join(args, ", "))
	}

	run := store.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Workspace: workspace,
		Files:     len(files),
	}
	logger.Info("Rewriting files",
		zap.String("run", run.ID),
		zap.Int("files", len(files)),
		zap.Int("parallel", parallel))

	rw := goast.NewRewriter(cfg)

	var (
		g       errgroup.Group
		results = make([]*goast.Report, len(files))
	)
	g.SetLimit(parallel)
	for i, path := range files {
		g.Go(func() error {
			report, err := rw.RewriteFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var occs []store.Occurrence
	for _, report := range results {
		run.Instrumented += report.Instrumented
		run.Skipped += report.Skipped
		for _, o := range report.Outcomes {
			occs = append(occs, store.Occurrence{
				RunID:        run.ID,
				File:         report.File,
				Pos:          o.Pos.String(),
				Source:       o.Source,
				Instrumented: o.Instrumented,
				Reason:       o.Reason,
			})
			if !o.Instrumented && o.Reason != "" {
				fmt.Fprintf(os.Stderr, "skipped %s: %s\n", o.Pos, o.Reason)
			}
		}
		fmt.Printf("%s -> %s (%d instrumented, %d skipped)\n",
			report.File, report.Output, report.Instrumented, report.Skipped)
	}

	if cfg.History.Enabled {
		if err := recordRun(cfg, run, occs); err != nil {
			logger.Warn("failed to record run history", zap.Error(err))
		}
	}

	logger.Info("Rewrite complete",
		zap.Int("instrumented", run.Instrumented),
		zap.Int("skipped", run.Skipped))
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	files, err := collectGoFiles(args, cfg.OutputSuffix)
	if err != nil {
		return err
	}

	rw := goast.NewRewriter(cfg)
	total := 0
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, report, err := rw.RewriteSource(path, src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		for _, o := range report.Outcomes {
			if o.Instrumented {
				fmt.Printf("%s: %s\n", o.Pos, o.Source)
				total++
			} else if o.Reason != "" {
				fmt.Printf("%s: unsupported: %s\n", o.Pos, o.Reason)
			}
		}
	}
	fmt.Printf("%d supported site(s) in %d file(s)\n", total, len(files))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	rw := goast.NewRewriter(cfg)
	w, err := watch.New(args, cfg.OutputSuffix, func(ctx context.Context, path string) error {
		_, err := rw.RewriteFile(path)
		return err
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	logger.Info("Watching for changes", zap.Strings("dirs", args))
	fmt.Println("watching; press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := store.Open(historyPath(cfg))
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.History(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  files=%d instrumented=%d skipped=%d\n",
			r.StartedAt.Local().Format(time.RFC3339), r.ID, r.Files, r.Instrumented, r.Skipped)
	}
	return nil
}

func recordRun(cfg *config.Config, run store.Run, occs []store.Occurrence) error {
	s, err := store.Open(historyPath(cfg))
	if err != nil {
		return err
	}
	defer s.Close()
	return s.RecordRun(run, occs)
}

func historyPath(cfg *config.Config) string {
	path := cfg.History.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	return path
}

// collectGoFiles expands directory arguments one level of walk deep enough
// for package trees, skipping tests and previously generated output.
func collectGoFiles(args []string, outputSuffix string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		base := filepath.Base(path)
		if !strings.HasSuffix(base, ".go") || strings.HasSuffix(base, "_test.go") {
			return
		}
		if outputSuffix != "" && strings.HasSuffix(strings.TrimSuffix(base, ".go"), outputSuffix) {
			return
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if name != "." && (strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
