// Command bossfetch mirrors BOSS spectroscopic data files from the SDSS
// data release servers using a small pool of parallel workers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/infra/config"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitFailures    = 3
	exitInterrupted = 130
)

// codedError carries an explicit process exit code.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func usageError(err error) error { return &codedError{code: exitUsage, err: err} }

// cli holds what every subcommand needs once flags are parsed.
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logger.Logger
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	c := &cli{}
	root := c.rootCommand()
	root.SetArgs(args)

	err := root.Execute()
	if c.log != nil {
		c.log.Close()
	}
	if err != nil && !errors.Is(err, domain.ErrInterrupted) {
		fmt.Fprintf(os.Stderr, "bossfetch: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var coded *codedError
	var partErr *domain.PartitionError

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &coded):
		return coded.code
	case errors.Is(err, domain.ErrInterrupted):
		return exitInterrupted
	case errors.As(err, &partErr):
		return exitUsage
	default:
		return exitError
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bossfetch",
		Short:         "Mirror BOSS data files from the SDSS servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./config.yaml when present)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		c.fetchCommand(),
		c.historyCommand(),
		c.serveCommand(),
		c.metaCommand(),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return usageError(fmt.Errorf("config error: %w", err))
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", cfg.Log.Path, err)
	}

	c.cfg = cfg
	c.log = log
	return nil
}

// positional wraps a cobra argument validator so a bad argument count is
// reported as a usage error.
func positional(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
