package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/HerbHall/mediatheme/internal/configstore"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the add-on config document",
	}

	var output string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print config.json merged over the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			doc := store.Load(cmd.Context())

			var data []byte
			switch output {
			case "json":
				data, err = json.MarshalIndent(doc, "", "  ")
			case "yaml":
				data, err = yaml.Marshal(map[string]any(doc))
			default:
				return fmt.Errorf("unknown output format %q: must be \"json\" or \"yaml\"", output)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
			return nil
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml)")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a config document without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := configstore.ParseDocument(data)
			if err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
			return nil
		},
	})

	return cmd
}
