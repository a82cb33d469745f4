package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/HerbHall/mediatheme/internal/configstore"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// openStore opens the config store named by store.config_dir without
// starting the server.
func (a *app) openStore() (*configstore.Store, error) {
	return configstore.New(a.v.GetString("store.config_dir"),
		configstore.WithMaxBackups(a.v.GetInt("store.max_backups")),
	)
}

func (a *app) newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage config backups",
		Long: `List, restore, and delete config.json snapshots.

Examples:
  # Show snapshots, newest first
  mediatheme backup list

  # Roll config.json back to a snapshot
  mediatheme backup restore config_backup_2026-10-19_14-03-22.json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			backups, err := store.ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups in", store.BackupDir())
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILENAME\tDATE\tSIZE\tAGE")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					b.Filename, b.Date, humanize.IBytes(uint64(b.Size)), humanize.Time(b.Created)) //nolint:gosec // G115: sizes are non-negative
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <filename>",
		Short: "Replace config.json with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := store.RestoreBackup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := store.DeleteBackup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}
