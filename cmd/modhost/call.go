package main

import (
	"context"
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/host"
	"github.com/reglet-dev/modbridge/wireformat"
)

func newCallCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <module.wasm> <command> [args...]",
		Short: "Call a module command and print its reply",
		Long: `Load the module and run one command the way a client would. Error
replies are printed with an "(error)" prefix.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			return withModule(cmd, cfg, args[0], func(ctx context.Context, inst *host.Instance) error {
				v, err := inst.Call(ctx, args[1], args[2:]...)
				return printReply(cmd, v, err)
			})
		},
	}
}

// printReply prints v, or err when it is an error reply. Other errors are
// returned.
func printReply(cmd *cobra.Command, v entities.Value, err error) error {
	var reply *errors.ReplyError
	if stderrors.As(err, &reply) {
		cmd.Println("(error) " + errors.ReplyMessage(reply))
		return nil
	}
	if err != nil {
		return err
	}
	cmd.Println(wireformat.Format(v))
	return nil
}
