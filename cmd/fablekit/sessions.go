package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fablekit/fablekit/pkg/world"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage and play sessions",
	}
	cmd.AddCommand(sessionNewCmd())
	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionTurnCmd())
	cmd.AddCommand(sessionActionCmd())
	return cmd
}

var sessionName string

func sessionNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <world-id>",
		Short: "Start a session with state built from the world's defaults",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionNew,
	}
	cmd.Flags().StringVar(&sessionName, "name", "", "Session name")
	return cmd
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := newSessionService(cfg, st)
	sess, err := svc.CreateSession(args[0], sessionName)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Session %s created.\n", sess.ID)

	if greeting, err := svc.Greeting(sess.ID); err == nil && greeting != "" {
		fmt.Fprintf(os.Stdout, "\n%s\n", greeting)
	}
	return nil
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [world-id]",
		Short: "List sessions, optionally for one world",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSessionList,
	}
}

func runSessionList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	worldID := ""
	if len(args) == 1 {
		worldID = args[0]
	}
	sessions, err := st.ListSessions(worldID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stdout, "No sessions.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORLD\tNAME\tTURNS\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.WorldID, s.Name, s.TurnCount,
			time.UnixMilli(s.UpdatedAt).Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func sessionTurnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "turn <session-id> <message>...",
		Short: "Run one conversation turn",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSessionTurn,
	}
}

func runSessionTurn(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if newProvider(cfg) == nil {
		return fmt.Errorf("no provider configured: set FABLEKIT_API_KEY and FABLEKIT_MODEL")
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := newSessionService(cfg, st)
	res, err := svc.RunTurn(context.Background(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, res.Narrative)
	printTurnExtras(res.Effects, res.AudioEffects, res.Choices, res.Notifications)
	return nil
}

func sessionActionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action <session-id> <action-id>",
		Short: "Fire an action-triggered rule",
		Args:  cobra.ExactArgs(2),
		RunE:  runSessionAction,
	}
}

func runSessionAction(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := newSessionService(cfg, st).TriggerAction(args[0], args[1])
	if err != nil {
		return err
	}
	printTurnExtras(res.Effects, res.AudioEffects, nil, res.Notifications)
	return nil
}

func printTurnExtras(effects []world.Effect, audio []world.AudioEffect, choices, notifications []string) {
	for _, e := range effects {
		fmt.Fprintf(os.Stderr, "  [state] %s %s %v\n", e.VariableID, e.Operation, e.Value)
	}
	for _, a := range audio {
		fmt.Fprintf(os.Stderr, "  [audio] %s %s\n", a.TrackID, a.Action)
	}
	for _, n := range notifications {
		fmt.Fprintf(os.Stderr, "  [note]  %s\n", n)
	}
	if len(choices) > 0 {
		fmt.Fprintln(os.Stdout, "\nChoices:")
		for i, c := range choices {
			fmt.Fprintf(os.Stdout, "  %d. %s\n", i+1, c)
		}
	}
}
