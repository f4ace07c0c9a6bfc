package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/wemcdonald/sqlseed/pkg/sample"
	"github.com/wemcdonald/sqlseed/pkg/script"
)

func newSplitCmd() *cobra.Command {
	var phased bool
	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Print the statements of a script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			raw, err := readScript(args)
			if err != nil {
				return err
			}
			return printStatements(cmd.OutOrStdout(), raw, phased)
		},
	}
	cmd.Flags().BoolVar(&phased, "phased", false, "Order schema statements before data statements")
	return cmd
}

// readScript returns the file named by args, or the bundled seed script
func readScript(args []string) (string, error) {
	if len(args) == 0 {
		return sample.Script(), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

func printStatements(w io.Writer, raw string, phased bool) error {
	result := script.Parse(raw)
	for _, warning := range result.Warnings {
		slog.Warn("Script parsed with warnings", "warning", warning)
	}

	stmts := result.Statements
	if phased {
		schema, data := script.Phases(stmts)
		stmts = append(schema, data...)
	}

	for i, stmt := range stmts {
		if _, err := fmt.Fprintf(w, "%4d  %-14s %-16s rows=%-5d %s\n",
			i+1, script.Label(stmt), script.ObjectName(stmt), script.CountRows(stmt), abbreviate(stmt, 60)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d statements, %d skipped\n", len(result.Statements), result.Skipped)
	return err
}

// abbreviate shortens s to at most n bytes without splitting a rune
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
