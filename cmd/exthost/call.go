package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moosync/exthost/internal/protocol"
)

func newCallCmd(c *cli) *cobra.Command {
	var (
		timeout time.Duration
		runner  bool
	)

	cmd := &cobra.Command{
		Use:   "call <json|->",
		Short: "Send one command to the loaded extensions and print the reply",
		Long: `call loads every extension, sends a single command and prints the reply.

The command is given as JSON, or read from stdin when the argument is "-":

  exthost call '{"type":"getProviderScopes","data":{"packageName":"moosync.example"}}'
  exthost call --runner '{"type":"getInstalledExtensions"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArg(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := c.call(ctx, raw, runner)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the reply")
	cmd.Flags().BoolVar(&runner, "runner", false, "send a runner command instead of an extension command")
	return cmd
}

func readArg(stdin io.Reader, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

func (c *cli) call(ctx context.Context, raw []byte, runner bool) ([]byte, error) {
	var cmd protocol.Command
	if !runner {
		var err error
		if cmd, err = protocol.DecodeCommand(raw); err != nil {
			return nil, err
		}
	}

	application, err := c.newApp()
	if err != nil {
		return nil, err
	}
	defer application.Shutdown(context.WithoutCancel(ctx))
	if err := application.Start(ctx); err != nil {
		return nil, err
	}

	if runner {
		result, err := application.Plugins().HandleRunnerCommand(ctx, raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}

	resp, err := application.Plugins().Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return protocol.MarshalResponse(resp)
}
