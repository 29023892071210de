package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func worldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "Manage imported worlds",
	}
	cmd.AddCommand(worldsImportCmd())
	cmd.AddCommand(worldsListCmd())
	return cmd
}

func worldsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <world-file>",
		Short: "Migrate a world document and store it",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorldsImport,
	}
}

func runWorldsImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := readWorldDocument(args[0])
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := newSessionService(cfg, st).ImportWorld(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Imported %q (id %s, version %s)\n", w.Name, w.ID, w.Version)
	return nil
}

func worldsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored worlds",
		Args:  cobra.NoArgs,
		RunE:  runWorldsList,
	}
}

func runWorldsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	worlds, err := st.ListWorlds()
	if err != nil {
		return err
	}
	if len(worlds) == 0 {
		fmt.Fprintln(os.Stdout, "No worlds imported.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tUPDATED")
	for _, w := range worlds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			w.ID, w.Name, w.Version,
			time.UnixMilli(w.UpdatedAt).Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
