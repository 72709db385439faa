package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine"
	"github.com/datallboy/bossfetch/internal/events"
	"github.com/datallboy/bossfetch/internal/mirror"
	"github.com/datallboy/bossfetch/internal/store"
)

type fetchOptions struct {
	itemSource
	workers    int
	dryRun     bool
	report     string
	noProgress bool
}

func (c *cli) fetchCommand() *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch [path...]",
		Short: "Mirror remote files into the local root",
		Long: `Fetch mirrors each remote path (relative to the data release server root)
into the local mirror. Paths come from the arguments, a --list file, or a
--where query against the spAll metadata database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				opts.workers = c.cfg.Fetch.Workers
			}
			return c.runFetch(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.list, "list", "l", "", "file with one remote path per line (- for stdin)")
	flags.StringVarP(&opts.where, "where", "w", "", "SQL condition selecting observations from the metadata database")
	flags.BoolVar(&opts.full, "full", false, "fetch full spectra instead of lite spectra for --where")
	flags.IntVarP(&opts.workers, "workers", "n", 0, fmt.Sprintf("number of parallel workers [%d,%d] (default fetch.workers)", domain.MinWorkers, domain.MaxWorkers))
	flags.BoolVar(&opts.dryRun, "dry-run", false, "list what would be fetched without fetching it")
	flags.StringVar(&opts.report, "report", "", "write a YAML summary of the run to this file")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "disable the progress bar")

	return cmd
}

func (c *cli) runFetch(parent context.Context, out io.Writer, args []string, opts *fetchOptions) error {
	if err := c.cfg.RequireLocalRoot(); err != nil {
		return usageError(err)
	}

	// The first signal interrupts the job. Restoring default handling lets
	// a second one terminate the process.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)

	items, err := c.collectItems(ctx, args, opts.itemSource)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return c.dryRun(ctx, out, items)
	}

	job := &domain.Job{
		ID:        ksuid.New().String(),
		Items:     engine.Dedupe(items),
		Workers:   opts.workers,
		Status:    domain.StatusRunning,
		CreatedAt: time.Now(),
	}

	history := c.openHistory(parent)
	if history != nil {
		defer history.Close()
	}

	var observers []engine.Observer
	if c.cfg.Fetch.Progress && !opts.noProgress {
		observers = append(observers, engine.NewProgressBar(out))
	}
	if url := c.cfg.Events.RabbitMQURL; url != "" {
		pub, err := events.Dial(url, c.cfg.Events.Exchange, c.log)
		if err != nil {
			c.log.Warn("Result events disabled: %v", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
		}
	}

	coord := engine.NewCoordinator(c.log, mirror.Factory(parent, c.cfg.Mirror), engine.Options{
		GracePeriod: c.cfg.Fetch.GracePeriod,
		KillTimeout: c.cfg.Fetch.KillTimeout,
		Observers:   observers,
	})

	c.log.Info("Mirroring into %s", c.cfg.Mirror.LocalRoot)

	summary, runErr := coord.Run(ctx, job)

	if errors.Is(runErr, domain.ErrEmptyJob) {
		fmt.Fprintln(out, "Nothing to fetch.")
		return nil
	}
	var partErr *domain.PartitionError
	if errors.As(runErr, &partErr) {
		return runErr
	}

	job.Summary = summary
	switch {
	case runErr == nil:
		job.Status = domain.StatusCompleted
	case errors.Is(runErr, domain.ErrInterrupted):
		job.Status = domain.StatusInterrupted
		job.Error = "Interrupted by signal"
	default:
		job.Status = domain.StatusFailed
		job.Error = runErr.Error()
	}

	if history != nil {
		if err := history.SaveJob(context.Background(), job); err != nil {
			c.log.Warn("failed to record job %s: %v", job.ID, err)
		}
	}

	printSummary(out, summary)

	if opts.report != "" {
		if err := writeReport(opts.report, job); err != nil {
			return err
		}
	}

	if runErr != nil {
		if errors.Is(runErr, domain.ErrInterrupted) {
			fmt.Fprintf(out, "Interrupted after %d of %d items.\n", summary.ItemsSeen, summary.ItemsTotal)
		}
		return runErr
	}
	if n := len(summary.Failures); n > 0 {
		return &codedError{code: exitFailures, err: fmt.Errorf("%d of %d items failed", n, summary.ItemsTotal)}
	}
	return nil
}

// openHistory returns nil when the job history database is unavailable;
// a fetch does not depend on it.
func (c *cli) openHistory(ctx context.Context) *store.PersistentStore {
	s, err := store.NewPersistentStore(ctx, c.cfg.Store.DSN, c.log)
	if err != nil {
		c.log.Warn("Job history disabled: %v", err)
		return nil
	}
	return s
}

func (c *cli) dryRun(ctx context.Context, out io.Writer, items []domain.RemoteItem) error {
	items = engine.Dedupe(items)
	if len(items) == 0 {
		fmt.Fprintln(out, "Nothing to fetch.")
		return nil
	}

	client, err := c.mirrorClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	mirrored := 0
	for _, item := range items {
		size, ok, err := client.Stat(ctx, item)
		switch {
		case err != nil:
			fmt.Fprintf(out, "  [error]    %s: %v\n", item, err)
		case ok:
			mirrored++
			fmt.Fprintf(out, "  [mirrored] %s (%s)\n", item, humanize.IBytes(uint64(size)))
		default:
			fmt.Fprintf(out, "  [missing]  %s\n", client.URL(item))
		}
	}

	fmt.Fprintf(out, "%d items planned, %d already mirrored, %d to fetch.\n", len(items), mirrored, len(items)-mirrored)
	return nil
}

func printSummary(out io.Writer, s domain.Summary) {
	fmt.Fprintf(out, "Fetched %d/%d items (%s) in %s\n",
		s.Succeeded(), s.ItemsTotal, humanize.IBytes(uint64(s.BytesTotal)), s.Elapsed().Truncate(time.Millisecond))

	if s.WorkersKilled > 0 {
		fmt.Fprintf(out, "%d workers did not stop in time and were killed\n", s.WorkersKilled)
	}

	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintf(out, "%d failures:\n", len(s.Failures))
	for _, f := range s.Failures {
		fmt.Fprintf(out, "  %s: %s\n", f.Item, strings.TrimSpace(f.Message))
	}
}
