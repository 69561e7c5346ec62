package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	hosterrors "github.com/reglet-dev/modbridge/errors"
	"github.com/reglet-dev/modbridge/host"
)

type verifyOptions struct {
	values map[string]string
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify [module.wasm...]",
		Short: "Check modules register what an expected manifest declares",
		Long: `Load each module and compare what it registered against the manifest
named by --expect. The manifest is a template: --set values are available as
{{ .config.key }} and the load arguments as {{ .config.args }}.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Expect == "" {
				return oops.Code(hosterrors.CodeConfigInvalid).Errorf("--expect is required")
			}
			raw, err := os.ReadFile(cfg.Expect)
			if err != nil {
				return oops.Code(hosterrors.CodeConfigInvalid).With("path", cfg.Expect).Wrap(err)
			}

			values := map[string]any{"args": cfg.Args}
			for k, v := range opts.values {
				values[k] = v
			}
			expected, err := host.NewLoader().LoadManifest(raw, values)
			if err != nil {
				return err
			}

			paths, err := modulePaths(cfg, args)
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range paths {
				err := withModule(cmd, cfg, path, func(_ context.Context, inst *host.Instance) error {
					return host.Verify(expected, inst.Manifest())
				})
				if err != nil {
					failed++
					cmd.Printf("FAIL %s: %v\n", path, err)
					continue
				}
				cmd.Printf("ok   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d module(s) failed verification", failed, len(paths))
			}
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&opts.values, "set", nil, "template values (key=value)")
	return cmd
}
