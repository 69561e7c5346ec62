package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/modbridge/config"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/host"
)

type describeOptions struct {
	jsonOutput bool
}

func newDescribeCmd(root *rootOptions) *cobra.Command {
	opts := &describeOptions{}

	cmd := &cobra.Command{
		Use:   "describe [module.wasm...]",
		Short: "Print the manifest of what each module registers",
		Long: `Load each module and print its name, version, data types, commands and
keyspace subscriptions. Without arguments the configured modules are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDescribe(cmd, cfg, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output manifests as JSON")
	return cmd
}

func runDescribe(cmd *cobra.Command, cfg *config.Config, opts *describeOptions, args []string) error {
	paths, err := modulePaths(cfg, args)
	if err != nil {
		return err
	}

	var manifests []*entities.Manifest
	for _, path := range paths {
		err := withModule(cmd, cfg, path, func(_ context.Context, inst *host.Instance) error {
			manifests = append(manifests, inst.Manifest())
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(manifests) == 1 {
			return enc.Encode(manifests[0])
		}
		return enc.Encode(manifests)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	for _, m := range manifests {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	return enc.Close()
}
