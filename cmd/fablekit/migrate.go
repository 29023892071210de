package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var migrateOutput string

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <world-file>",
		Short: "Normalize a world document to the current schema version",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrate,
	}
	cmd.Flags().StringVarP(&migrateOutput, "output", "o", "", "Write the migrated document to a file instead of stdout")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	w, err := loadWorldFile(args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if migrateOutput != "" {
		if err := os.WriteFile(migrateOutput, out, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Migrated %q to version %s (%s)\n", w.Name, w.Version, migrateOutput)
		return nil
	}
	_, err = os.Stdout.Write(out)
	return err
}
