// Command asar packs, inspects and mounts asar archives.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigma/asar"
	"github.com/meigma/asar/internal/config"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globals holds persistent flag values shared by every subcommand.
type globals struct {
	logLevel  levelFlag
	noArchive bool
	verify    bool
	noColor   bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "asar",
		Short: "Pack, inspect, extract and mount asar archives",
		Long: `Pack, inspect, extract and mount asar archives.

Paths given to cat, stat and realpath may point inside archives, for
example app.asar/lib/index.js. Defaults for the global flags can be set in
$XDG_CONFIG_HOME/asar/config.toml; ASAR_NO_ARCHIVE overrides the file and
flags override both.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	g.logLevel.level = slog.LevelWarn
	pf.Var(&g.logLevel, "log-level", "log level (debug, info, warn, error)")
	pf.BoolVar(&g.noArchive, "no-archive", false, "treat archive files as plain files")
	pf.BoolVar(&g.verify, "verify", false, "check file content against integrity records")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newPackCmd(g),
		newListCmd(g),
		newExtractCmd(g),
		newExtractFileCmd(g),
		newCatCmd(g),
		newStatCmd(g),
		newRealpathCmd(g),
		newMountCmd(g),
	)
	return rootCmd
}

// setup loads the config file and applies its defaults to flags that were
// not set on the command line.
func (g *globals) setup(cmd *cobra.Command, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	g.cfg = cfg

	flags := cmd.Flags()
	level := g.logLevel.level
	if !flags.Changed("log-level") {
		if level, err = cfg.LogLevel(); err != nil {
			return err
		}
	}
	if !flags.Changed("no-archive") {
		g.noArchive = cfg.NoArchive()
	}
	if !flags.Changed("verify") {
		g.verify = cfg.Verify()
	}
	if g.noColor {
		color.NoColor = true
	}

	g.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// newFS returns an overlay configured from the global flags.
func (g *globals) newFS() *asar.FS {
	opts := []asar.Option{
		asar.WithLogger(g.logger),
		asar.WithNoArchive(g.noArchive),
		asar.WithVerifyIntegrity(g.verify),
	}
	if n := g.cfg.MaxSymlinks(); n > 0 {
		opts = append(opts, asar.WithMaxSymlinks(n))
	}
	return asar.New(opts...)
}

// levelFlag is a pflag.Value that parses slog level names.
type levelFlag struct {
	level slog.Level
}

var _ pflag.Value = (*levelFlag)(nil)

func (f *levelFlag) String() string { return f.level.String() }
func (*levelFlag) Type() string     { return "level" }

func (f *levelFlag) Set(val string) error {
	level, err := config.ParseLevel(val)
	if err != nil {
		return err
	}
	f.level = level
	return nil
}
