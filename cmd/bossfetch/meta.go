package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datallboy/bossfetch/internal/finder"
	"github.com/datallboy/bossfetch/internal/meta"
)

func (c *cli) metaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Build and query the spAll metadata database",
	}
	cmd.AddCommand(c.metaCreateCommand(), c.metaSelectCommand())
	return cmd
}

func (c *cli) metaCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Mirror the lite spAll file and load it into sqlite",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := c.finder()
			if err != nil {
				return err
			}

			spAll := f.SpAllPath(true)
			dbPath, err := c.metaPath(spAll)
			if err != nil {
				return err
			}

			rows, err := c.createMeta(cmd.Context(), spAll, dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d observations into %s\n", rows, dbPath)
			return nil
		},
	}
}

func (c *cli) metaSelectCommand() *cobra.Command {
	var (
		what    string
		where   string
		maxRows int
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Print observations matching a query",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := c.finder()
			if err != nil {
				return err
			}

			db, err := c.openMeta(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer db.Close()

			cols, err := db.PrepareColumns(what)
			if err != nil {
				return usageError(err)
			}

			rows, err := db.SelectAll(cmd.Context(), what, where, maxRows)
			if err != nil {
				return err
			}
			printRows(cmd.OutOrStdout(), cols, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&what, "what", "PLATE,MJD,FIBER", "comma separated columns, or *")
	cmd.Flags().StringVar(&where, "where", "", "SQL condition")
	cmd.Flags().IntVar(&maxRows, "max-rows", meta.DefaultMaxRows, "maximum number of rows")
	return cmd
}

func (c *cli) finder() (*finder.Finder, error) {
	if err := c.cfg.RequireFinder(); err != nil {
		return nil, usageError(err)
	}
	f, err := finder.New(c.cfg.Finder.SASRoot, c.cfg.Finder.ReduxVersion)
	if err != nil {
		return nil, usageError(err)
	}
	return f, nil
}

func printRows(out io.Writer, cols []meta.Column, rows []meta.Row) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	values := make([]string, len(cols))
	for _, row := range rows {
		for i, name := range names {
			values[i] = fmt.Sprint(row[name])
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	w.Flush()
}
