package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/HerbHall/mediatheme/internal/theme"
	"github.com/spf13/cobra"
)

func (a *app) newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List bundled and user themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := theme.NewRegistry(theme.WithDir(a.v.GetString("themes.dir")))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSOURCE")
			for _, t := range registry.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, t.Source)
			}
			return tw.Flush()
		},
	}
}
