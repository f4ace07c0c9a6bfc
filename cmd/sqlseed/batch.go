package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wemcdonald/sqlseed/pkg/loader"
	"github.com/wemcdonald/sqlseed/pkg/sample"
	"github.com/wemcdonald/sqlseed/pkg/script"
)

type batchOptions struct {
	file     string
	table    string
	generate int
	seed     uint64
	size     int
}

func newBatchCmd() *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Split an INSERT statement into bounded batches",
		Long: `batch prints the statements a multi-row INSERT is split into. The INSERT is
the first one found in --file, or a generated one when --generate is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			stmt, err := opts.statement()
			if err != nil {
				return err
			}
			return printBatches(cmd.OutOrStdout(), stmt, opts.size)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Script containing the INSERT statement")
	cmd.Flags().StringVarP(&opts.table, "table", "t", "Person", "Table name for generated statements")
	cmd.Flags().IntVarP(&opts.generate, "generate", "g", 0, "Generate an INSERT with this many rows")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Seed for generated values")
	cmd.Flags().IntVarP(&opts.size, "size", "s", loader.DefaultMaxBatchSize, "Maximum tuples per batch")
	return cmd
}

func (o *batchOptions) statement() (string, error) {
	if o.generate > 0 {
		return sample.Generate(o.table, o.generate, o.seed), nil
	}
	if o.file == "" {
		return "", errors.New("either --file or --generate is required")
	}

	data, err := os.ReadFile(o.file)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	for _, stmt := range script.Split(string(data)) {
		if script.Classify(stmt) == script.KindInsert {
			return stmt, nil
		}
	}
	return "", fmt.Errorf("no INSERT statement in %s", o.file)
}

func printBatches(w io.Writer, stmt string, size int) error {
	if size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", size)
	}

	batches := script.SplitBatch(stmt, size)
	for i, batch := range batches {
		if _, err := fmt.Fprintf(w, "-- batch %d/%d, %d rows\n%s;\n", i+1, len(batches), script.CountRows(batch), batch); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "-- %d rows in %d batches of at most %d\n", script.CountRows(stmt), len(batches), size)
	return err
}
