package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fablekit/fablekit/pkg/world"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <world-file>",
		Short: "Check a world document for referential inconsistencies",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	w, err := loadWorldFile(args[0])
	if err != nil {
		return err
	}

	report := world.Validate(w)

	var warnings, infos []world.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case world.SeverityWarn:
			warnings = append(warnings, issue)
		case world.SeverityInfo:
			infos = append(infos, issue)
		}
	}

	if len(warnings) == 0 && len(infos) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(warnings) > 0 {
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnings))
		printIssues(warnings)
	}
	if len(infos) > 0 {
		if len(warnings) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Notes (%d):\n", len(infos))
		printIssues(infos)
	}

	// Nothing the validator finds is fatal. The report is for authors.
	return nil
}

func printIssues(issues []world.Issue) {
	for _, issue := range issues {
		fmt.Fprintf(os.Stdout, "  - %s: %s (%s)\n", issue.Subject, issue.Message, issue.Code)
	}
}
