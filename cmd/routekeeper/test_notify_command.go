package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"routekeeper/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				out := cmd.OutOrStdout()
				kind := statusWarn
				if resp.Sent {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine("Notification", kind, resp.Message, shouldColorize(out)))
				return nil
			})
		},
	}
}
