package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/host"
)

func newNotifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <module.wasm> <categories> <event> <key>",
		Short: "Raise a keyspace event for the module's handlers",
		Long: `Load the module and raise one keyspace event. Categories are joined with
"|", e.g. "generic|expired". The number of handlers notified is printed.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := parseCategories(args[1])
			if err != nil {
				return err
			}
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			return withModule(cmd, cfg, args[0], func(ctx context.Context, inst *host.Instance) error {
				n, err := inst.Notify(ctx, events.Bits(), args[2], args[3])
				if err != nil {
					return err
				}
				cmd.Printf("notified %d handler(s)\n", n)
				return nil
			})
		},
	}
}

func parseCategories(s string) (entities.NotifyEvent, error) {
	var events entities.NotifyEvent
	for _, name := range strings.Split(s, "|") {
		ev, ok := entities.ParseNotifyEvent(strings.TrimSpace(name))
		if !ok {
			return 0, fmt.Errorf("unknown event category %q", name)
		}
		events |= ev
	}
	return events, nil
}
