package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/store"
)

func (c *cli) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [job-id]",
		Short: "Show past fetch jobs",
		Args:  positional(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.NewPersistentStore(cmd.Context(), c.cfg.Store.DSN, c.log)
			if err != nil {
				return fmt.Errorf("failed to open job history: %w", err)
			}
			defer s.Close()

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				job, err := s.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return usageError(fmt.Errorf("job %s not found", args[0]))
				}
				printJob(out, job)
				return nil
			}

			jobs, err := s.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printJobs(out, jobs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of jobs to list")
	return cmd
}

func printJobs(out io.Writer, jobs []*domain.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tWORKERS\tITEMS\tFAILED\tSIZE\tCREATED")
	for _, job := range jobs {
		s := job.Summary
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%d\t%s\t%s\n",
			job.ID, job.Status, job.Workers, s.ItemsSeen, len(job.Items), len(s.Failures),
			humanize.IBytes(uint64(s.BytesTotal)), job.CreatedAt.Format(time.DateTime))
	}
	w.Flush()
}

func printJob(out io.Writer, job *domain.Job) {
	s := job.Summary

	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.Error)
	}
	fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Format(time.DateTime))
	fmt.Fprintf(out, "Workers:  %d requested, %d used, %d killed\n", job.Workers, s.Workers, s.WorkersKilled)
	fmt.Fprintf(out, "Items:    %d/%d seen, %d failed\n", s.ItemsSeen, len(job.Items), len(s.Failures))
	fmt.Fprintf(out, "Size:     %s\n", humanize.IBytes(uint64(s.BytesTotal)))
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(out, "Elapsed:  %s\n", s.Elapsed().Truncate(time.Millisecond))
	}

	for _, f := range s.Failures {
		fmt.Fprintf(out, "  [FAIL] %s: %s\n", f.Item, f.Message)
	}
}
