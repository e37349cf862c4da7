// Command keybarrier runs a simulated workload against a keyed barrier and
// keeps a history of the results.
//
//	keybarrier run --callers 100 --keys 10 --work 5s
//	keybarrier run -c keybarrier.yaml --store runs.db
//	keybarrier history --store runs.db
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/config"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/report"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/workload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keybarrier",
		Short:         "Run once-per-key work under a striped lock barrier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(newRunCommand(), newHistoryCommand())
	return rootCmd
}

type runFlags struct {
	configPath  string
	callers     int
	keys        int
	work        time.Duration
	failureRate float64
	concurrency int
	attempts    int
	seed        uint64
	stripes     int
	lockTimeout time.Duration
	store       string
	logLevel    string
	jsonOutput  bool
}

func newRunCommand() *cobra.Command {
	var f runFlags
	defaults := config.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workload and print its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.LoadSettings(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd, &s)
			if err := s.Validate(); err != nil {
				return err
			}
			return runWorkload(cmd, s, f.jsonOutput)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "Path to YAML or JSON configuration")
	flags.IntVar(&f.callers, "callers", defaults.Workload.Callers, "Number of concurrent callers")
	flags.IntVar(&f.keys, "keys", defaults.Workload.Keys, "Size of the key space")
	flags.DurationVar(&f.work, "work", defaults.Workload.Work, "Duration of the guarded work")
	flags.Float64Var(&f.failureRate, "failure-rate", 0, "Probability that one run of the work fails")
	flags.IntVar(&f.concurrency, "concurrency", 0, "Maximum callers in flight (0 = unlimited)")
	flags.IntVar(&f.attempts, "attempts", defaults.Workload.Attempts, "Barrier calls per caller before giving up on failing work")
	flags.Uint64Var(&f.seed, "seed", defaults.Workload.Seed, "Seed for key choice and failure injection")
	flags.IntVar(&f.stripes, "stripes", defaults.Stripes, "Number of lock stripes")
	flags.DurationVar(&f.lockTimeout, "lock-timeout", 0, "Maximum wait for a key's lock (0 = no limit)")
	flags.StringVar(&f.store, "store", defaults.Store, "Report store: memory, *.db (SQLite) or *.bolt (bbolt)")
	flags.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
	flags.BoolVar(&f.jsonOutput, "json", false, "Print the report as JSON and log in JSON")
	return cmd
}

// apply overrides s with every flag set on the command line.
func (f *runFlags) apply(cmd *cobra.Command, s *config.Settings) {
	changed := cmd.Flags().Changed
	if changed("callers") {
		s.Workload.Callers = f.callers
	}
	if changed("keys") {
		s.Workload.Keys = f.keys
	}
	if changed("work") {
		s.Workload.Work = f.work
	}
	if changed("failure-rate") {
		s.Workload.FailureRate = f.failureRate
	}
	if changed("concurrency") {
		s.Workload.Concurrency = f.concurrency
	}
	if changed("attempts") {
		s.Workload.Attempts = f.attempts
	}
	if changed("seed") {
		s.Workload.Seed = f.seed
	}
	if changed("stripes") {
		s.Stripes = f.stripes
	}
	if changed("lock-timeout") {
		s.LockTimeout = f.lockTimeout
	}
	if changed("store") {
		s.Store = f.store
	}
	if changed("log-level") {
		s.LogLevel = f.logLevel
	}
	if f.jsonOutput {
		s.LogFormat = "json"
	}
}

func runWorkload(cmd *cobra.Command, s config.Settings, jsonOutput bool) error {
	logger, err := s.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, err := report.Open(s.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	b := keybarrier.New[string](s.BarrierOptions(logger)...)

	rep, runErr := workload.Run(cmd.Context(), b, s.Workload, workload.WithLogger(logger))
	if rep == nil {
		return runErr
	}

	if err := store.Save(rep); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := rep.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintln(out, rep.Summary())
		fmt.Fprintf(out, "end : %d\n", rep.Duration.Milliseconds())
	}
	return runErr
}

func newHistoryCommand() *cobra.Command {
	var storeTarget string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved workload reports, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := report.Open(storeTarget)
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.List()
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), infos)
		},
	}
	cmd.Flags().StringVar(&storeTarget, "store", "memory", "Report store: memory, *.db (SQLite) or *.bolt (bbolt)")
	return cmd
}

func printHistory(w io.Writer, infos []report.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tCALLERS\tEXECUTED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			info.ID,
			info.StartedAt.Format(time.RFC3339),
			info.Duration.Round(time.Millisecond),
			info.Callers,
			info.Executed,
		)
	}
	return tw.Flush()
}
