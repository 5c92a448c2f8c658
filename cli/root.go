package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/byte4ever/vkt/config"
	"github.com/byte4ever/vkt/forge"
	"github.com/byte4ever/vkt/report"
)

// ProviderFactory builds the forge client for a
// loaded configuration.
type ProviderFactory func(cfg *config.Config) (forge.Provider, error)

// Env carries the process-level collaborators of the
// commands. Zero fields fall back to the real ones.
type Env struct {
	Stdout      io.Writer
	Stderr      io.Writer
	NewProvider ProviderFactory
	Now         func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}

	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}

	if e.NewProvider == nil {
		e.NewProvider = NewProvider
	}

	if e.Now == nil {
		e.Now = time.Now
	}

	return e
}

// globalFlags are the persistent flags of the root
// command.
type globalFlags struct {
	configPath string
	format     string
	verbose    bool
}

// app is shared by every subcommand of one root.
type app struct {
	env    Env
	flags  globalFlags
	format report.Format
}

// NewRootCmd returns the vkt command tree.
func NewRootCmd(env Env) *cobra.Command {
	a := &app{env: env.withDefaults()}

	cmd := &cobra.Command{
		Use:   "vkt",
		Short: "Contribute files to a forge without a local clone",
		Long: `vkt browses, downloads and submits files through the HTTP API of
GitCode, GitLab or GitHub. A submission creates a branch, uploads the
files, and opens a pull request in one step.`,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(a.env.Stdout)
	cmd.SetErr(a.env.Stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(
		&a.flags.configPath, "config", "",
		"config file (default <user config dir>/vkt/config.toml)",
	)
	pf.StringVar(
		&a.flags.format, "format", string(report.FormatText),
		"output format: text, json or yaml",
	)
	pf.BoolVarP(
		&a.flags.verbose, "verbose", "v", false,
		"enable debug logging",
	)

	cmd.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newSubmitCmd(a),
		newConfigCmd(a),
	)

	return cmd
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, env Env, args []string) error {
	cmd := NewRootCmd(env)
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}

func (a *app) setup() error {
	f, err := report.ParseFormat(a.flags.format)
	if err != nil {
		return err
	}

	a.format = f

	level := slog.LevelInfo
	if a.flags.verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		a.env.Stderr, &slog.HandlerOptions{Level: level},
	)))

	return nil
}

func (a *app) configPath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}

	return config.DefaultPath()
}

// load returns the validated configuration and the
// forge client built from it.
func (a *app) load() (*config.Config, forge.Provider, error) {
	const errCtx = "loading configuration"

	path, err := a.configPath()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%w (run 'vkt config --init' to create %s)", err, path,
		)
	}

	pv, err := a.env.NewProvider(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg, pv, nil
}
