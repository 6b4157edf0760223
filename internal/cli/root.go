// Package cli implements the regcopy command-line interface.
//
// The root command takes package names (or npm PURLs) as arguments and
// copies their missing versions from the --from registry to the --to
// registry. Configuration comes from an optional TOML file, REGCOPY_*
// environment variables (a .env file is loaded when present) and flags, in
// increasing order of precedence.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/regcopy"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

type rootFlags struct {
	from       endpointFlags
	to         endpointFlags
	dryRun     bool
	configPath string
	envFile    string
	verbose    bool
	timeout    time.Duration
	retries    int
}

// SyncFunc runs a synchronization. It is regcopy.Sync outside of tests.
type SyncFunc func(ctx context.Context, cfg regcopy.Config, opts ...regcopy.Option) (*regcopy.Report, error)

// CLI holds the state shared by the command tree.
type CLI struct {
	out    io.Writer
	logger *log.Logger
	getenv func(string) string
	sync   SyncFunc
	flags  rootFlags
}

// New returns a CLI logging to w at level.
func New(w io.Writer, level LogLevel) *CLI {
	return &CLI{
		out:    w,
		logger: newLogger(w, level),
		getenv: os.Getenv,
		sync:   regcopy.Sync,
	}
}

// SetLogLevel changes the verbosity of the CLI's logger.
func (c *CLI) SetLogLevel(level LogLevel) {
	c.logger.SetLevel(level)
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "regcopy [flags] package [package...]",
		Short:        "Copy package versions between npm registries",
		Long:         `regcopy publishes every version of the given packages that exists on the source registry but not on the destination, replaying the original metadata and tarball.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.flags.verbose {
				c.SetLogLevel(LogDebug)
			}
		},
		RunE: c.run,
	}

	root.SetVersionTemplate(fmt.Sprintf("regcopy %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	c.flags.from.register(root, "from")
	c.flags.to.register(root, "to")
	f := root.Flags()
	f.BoolVar(&c.flags.dryRun, "dry-run", false, "report what would be copied without publishing")
	f.StringVar(&c.flags.configPath, "config", "", "TOML file with from, to, packages and dry_run settings")
	f.StringVar(&c.flags.envFile, "env-file", "", "file of REGCOPY_* variables to load (default ./.env if present)")
	f.DurationVar(&c.flags.timeout, "timeout", 30*time.Second, "timeout for each registry API request")
	f.IntVar(&c.flags.retries, "retries", 3, "retries for failed registry reads")
	root.PersistentFlags().BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable verbose logging")

	return root
}

func (c *CLI) run(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig(cmd, args)
	if err != nil {
		return err
	}

	report, err := c.sync(cmd.Context(), cfg,
		regcopy.WithLogger(c.logger),
		regcopy.WithTimeout(c.flags.timeout),
		regcopy.WithMaxRetries(c.flags.retries),
		regcopy.WithUserAgent("regcopy/"+version),
	)
	if errors.Is(err, regcopy.ErrInvalidConfig) {
		_, _ = fmt.Fprintln(c.out, regcopy.Usage)
		return err
	}
	if err != nil {
		return err
	}

	c.logger.Debug("sync finished",
		"published", report.Count(regcopy.Published),
		"present", report.Count(regcopy.SkippedAlreadyPresent),
		"conflicts", report.Count(regcopy.SkippedConflict),
		"dry-run", report.Count(regcopy.WouldPublish))
	return nil
}

// Execute runs the regcopy CLI against os.Args and returns an error if the
// run fails.
func Execute(ctx context.Context) error {
	c := New(os.Stderr, LogInfo)
	return c.RootCommand().ExecuteContext(ctx)
}
