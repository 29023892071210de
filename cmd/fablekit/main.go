package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "fablekit",
		Short: "Prompt assembly engine for interactive fiction worlds",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(migrateCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(worldsCmd())
	root.AddCommand(sessionCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
