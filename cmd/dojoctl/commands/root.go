package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dojo-hub/dojo-management/config"
	"github.com/dojo-hub/dojo-management/internal/app"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-management/internal/infrastructure/snapshot"
	"github.com/dojo-hub/dojo-management/pkg/logger"
	"github.com/dojo-hub/dojo-management/pkg/timeutil"
)

// cli carries the persistent flags and what PersistentPreRunE derives from
// them.
type cli struct {
	snapshotPath string
	catalogPath  string
	envFile      string
	asOf         string
	output       string
	verbose      bool

	cfg   *config.Config
	log   *logger.Logger
	clock timeutil.Clock
}

// Execute runs dojoctl with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree. Each call returns an independent
// tree, which lets tests run commands side by side.
func NewRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "dojoctl",
		Short:        "Evaluate dojo grade progression offline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.snapshotPath, "snapshot", "s", "", "member snapshot file (YAML or JSON)")
	flags.StringVar(&c.catalogPath, "catalog", "", "grade catalog file (default: built-in catalog)")
	flags.StringVar(&c.envFile, "env-file", "", "load settings from this env file first")
	flags.StringVar(&c.asOf, "as-of", "", "evaluate as of this date, YYYY-MM-DD (default: today)")
	flags.StringVarP(&c.output, "output", "o", "json", "output format: json or yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		reportCmd(c),
		rosterCmd(c),
		validateCmd(c),
		ladderCmd(c),
		estimateCmd(c),
		migrateCmd(c),
	)
	return root
}

func (c *cli) init(stderr io.Writer) error {
	switch strings.ToLower(c.output) {
	case "json", "yaml", "yml":
	default:
		return fmt.Errorf("unsupported output format %q (json, yaml)", c.output)
	}

	var err error
	if c.envFile != "" {
		c.cfg, err = config.LoadFile(c.envFile)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if c.catalogPath != "" {
		c.cfg.Progression.CatalogFile = c.catalogPath
	}

	level := logger.LevelWarn
	if c.verbose {
		level = logger.LevelDebug
	}
	c.log = logger.New(logger.Options{Output: stderr, Level: level, Console: true})

	c.clock = timeutil.SystemClock{}
	if c.asOf != "" {
		at, err := timeutil.ParseDate(c.asOf)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
		c.clock = timeutil.FixedClock{At: at}
	}
	return nil
}

// withApp builds an App over the snapshot and runs fn with it. Without
// --snapshot the roster is empty, which is enough for ladder and estimate.
// Offline evaluation never touches Redis or the configured storage driver.
func (c *cli) withApp(ctx context.Context, requireSnapshot bool, fn func(*app.App) error) error {
	store := memory.NewMemberStore()
	switch {
	case c.snapshotPath != "":
		members, err := snapshot.Load(c.snapshotPath)
		if err != nil {
			return err
		}
		c.log.Debug("snapshot loaded", logger.String("path", c.snapshotPath), logger.Int("members", len(members)))
		store = memory.NewMemberStore(members...)
	case requireSnapshot:
		return errors.New("--snapshot is required")
	}

	cfg := *c.cfg
	cfg.Redis.Disabled = true
	cfg.StorageDriver = config.StorageMemory

	a, err := app.New(ctx, &cfg, c.log, app.Options{Clock: c.clock, Members: store})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) print(cmd *cobra.Command, v any) error {
	return writeOutput(cmd.OutOrStdout(), c.output, v)
}
