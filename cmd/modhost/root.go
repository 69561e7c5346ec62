package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/modbridge/config"
	hosterrors "github.com/reglet-dev/modbridge/errors"
	"github.com/reglet-dev/modbridge/host"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

// NewRootCmd creates the root command for the modhost CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "modhost",
		Short: "Load and exercise modules compiled to WebAssembly",
		Long: `modhost loads modules built against the modbridge guest ABI into the
reference host, describes what they register, calls their commands and
raises keyspace events for their handlers.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newDescribeCmd(opts))
	cmd.AddCommand(newCallCmd(opts))
	cmd.AddCommand(newNotifyCmd(opts))
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newVerifyCmd(opts))
	return cmd
}

// loadConfig reads the config file and the command's flags.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(o.configFile, cmd.Flags())
}

// modulePaths returns args when given, otherwise the configured modules.
func modulePaths(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return cfg.ResolveModules()
}

// withModule loads the module at path into a fresh executor, runs fn and
// tears everything down again.
func withModule(cmd *cobra.Command, cfg *config.Config, path string, fn func(ctx context.Context, inst *host.Instance) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts, err := host.OptionsFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	opts = append(opts, host.WithGuestOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))

	exec, err := host.NewExecutor(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := exec.Close(ctx); cerr != nil {
			hosterrors.LogError(logger, "closing executor", cerr)
		}
	}()

	wasm, err := os.ReadFile(path) //nolint:gosec // G304: module paths come from the operator
	if err != nil {
		return err
	}
	inst, err := exec.LoadModule(ctx, wasm, cfg.Args...)
	if err != nil {
		return err
	}
	return fn(ctx, inst)
}
