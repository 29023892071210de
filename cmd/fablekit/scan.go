package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fablekit/fablekit/pkg/match"
	"github.com/fablekit/fablekit/pkg/world"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <world-file> <message>...",
		Short: "Show which lorebook entries a message would trigger",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runScan,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w, err := loadWorldFile(args[0])
	if err != nil {
		return err
	}

	message := strings.Join(args[1:], " ")
	state := world.NewGameState(w)
	sel := match.Select(w.Entries, []string{message}, state, cfg.TokenBudget, cfg.RecursionDepth)

	if len(sel.AlwaysSend) > 0 {
		fmt.Fprintf(os.Stdout, "Always sent (%d):\n", len(sel.AlwaysSend))
		for _, e := range sel.AlwaysSend {
			fmt.Fprintf(os.Stdout, "  - %s (%s, ~%d tokens)\n", entryLabel(e), e.Position, match.EstimateTokens(e.Content))
		}
	}

	if len(sel.Triggered) == 0 {
		fmt.Fprintln(os.Stdout, "No entries triggered.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Triggered (%d, ~%d tokens of %d budget):\n",
		len(sel.Triggered), sel.TriggeredTokens, cfg.TokenBudget)
	for _, e := range sel.Triggered {
		fmt.Fprintf(os.Stdout, "  - %s (priority %d, keys: %s)\n",
			entryLabel(e), e.Priority, strings.Join(e.Keywords, ", "))
	}
	return nil
}

func entryLabel(e world.WorldEntry) string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}
