package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/moosync/exthost/internal/plugin"
)

// Output formats of list.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func newListCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Load every installed extension and print what was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.installed(cmd.Context())
			if err != nil {
				return err
			}
			return renderExtensions(cmd.OutOrStdout(), output, c.cfg.ExtensionsDir, list)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

// installed spawns every extension, collects their details and shuts down.
func (c *cli) installed(ctx context.Context) ([]plugin.ExtensionDetail, error) {
	application, err := c.newApp()
	if err != nil {
		return nil, err
	}
	if err := application.Start(ctx); err != nil {
		return nil, err
	}
	list := application.Plugins().GetInstalledExtensions()
	if err := application.Shutdown(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn().Err(err).Msg("shutdown")
	}
	return list, nil
}

func renderExtensions(w io.Writer, format, dir string, list []plugin.ExtensionDetail) error {
	if list == nil {
		list = []plugin.ExtensionDetail{}
	}

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()
	case outputTable:
		return renderTable(w, dir, list)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, dir string, list []plugin.ExtensionDetail) error {
	if len(list) == 0 {
		color.New(color.FgYellow).Fprintf(w, "No extensions installed in %s\n", dir)
		return nil
	}

	color.New(color.FgGreen).Fprintf(w, "Installed Extensions (%d)\n\n", len(list))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPACKAGE\tVERSION\tAUTHOR\tSTATE\tENTRY")
	fmt.Fprintln(tw, "----\t-------\t-------\t------\t-----\t-----")
	for _, e := range list {
		author := "-"
		if e.Author != nil && *e.Author != "" {
			author = *e.Author
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			color.CyanString(e.Name),
			e.PackageName,
			color.GreenString(e.Version),
			author,
			stateString(e.State),
			e.Entry,
		)
	}
	return tw.Flush()
}

func stateString(state string) string {
	switch state {
	case plugin.StateError.String():
		return color.RedString(state)
	case plugin.StateRunning.String():
		return color.GreenString(state)
	default:
		return state
	}
}
