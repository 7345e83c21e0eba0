package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/moosync/exthost/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the extension host and its websocket endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, cmd)
		},
	}
}

func (c *cli) serve(ctx context.Context, cmd *cobra.Command) error {
	application, err := c.newApp()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{Host: application.Plugins(), Logger: c.log})
	application.SetNotifier(srv)

	if err := application.Start(ctx); err != nil {
		return errors.Join(err, application.Shutdown(context.WithoutCancel(ctx)))
	}

	out := cmd.OutOrStdout()
	color.New(color.FgGreen, color.Bold).Fprintf(out, "exthost %s\n", version)
	color.New(color.FgCyan).Fprintf(out, "extensions: %s\n", c.cfg.ExtensionsDir)
	color.New(color.FgCyan).Fprintf(out, "listening:  ws://%s/ws\n", c.cfg.ListenAddr)

	serveErr := srv.ListenAndServe(ctx, c.cfg.ListenAddr)
	return errors.Join(serveErr, application.Shutdown(context.WithoutCancel(ctx)))
}
