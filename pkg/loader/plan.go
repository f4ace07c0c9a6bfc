package loader

import (
	"fmt"

	"github.com/wemcdonald/sqlseed/pkg/script"
)

// Step is one statement ready for execution
type Step struct {
	SQL   string
	Kind  script.Kind
	Label string
	Table string
	// Rows is the estimated tuple count, 1 for statements without VALUES.
	Rows int
}

// Plan is a script split into its schema and data phases
type Plan struct {
	Schema []Step
	Data   []Step

	Parsed   int
	Skipped  int
	Warnings []string
	// Batched counts INSERT statements that were split into batches.
	Batched int
	// Batches counts the statements those INSERTs were split into.
	Batches int
}

// Steps returns every step in execution order
func (p *Plan) Steps() []Step {
	steps := make([]Step, 0, len(p.Schema)+len(p.Data))
	steps = append(steps, p.Schema...)
	return append(steps, p.Data...)
}

// Rows returns the estimated number of rows inserted by the data phase
func (p *Plan) Rows() int {
	total := 0
	for _, step := range p.Data {
		if step.Kind == script.KindInsert {
			total += step.Rows
		}
	}
	return total
}

// Plan splits raw into statements, orders them schema first and breaks
// oversized INSERT statements into batches of at most MaxBatchSize tuples.
func (l *Loader) Plan(raw string) *Plan {
	parsed := script.Parse(raw)
	plan := &Plan{
		Schema:   make([]Step, 0),
		Data:     make([]Step, 0),
		Parsed:   len(parsed.Statements),
		Skipped:  parsed.Skipped,
		Warnings: append([]string(nil), parsed.Warnings...),
	}

	schema, data := script.Phases(parsed.Statements)
	for _, stmt := range schema {
		plan.Schema = append(plan.Schema, newStep(stmt))
	}

	for _, stmt := range data {
		step := newStep(stmt)
		if step.Kind != script.KindInsert {
			plan.Data = append(plan.Data, step)
			continue
		}

		values, ok := script.ParseValues(stmt)
		if ok && values.Residual != "" {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("INSERT INTO %s has unparsed trailing content, executing as is", step.Table))
		}
		if step.Rows <= l.config.MaxBatchSize {
			plan.Data = append(plan.Data, step)
			continue
		}

		batches := script.SplitBatch(stmt, l.config.MaxBatchSize)
		if len(batches) == 1 {
			plan.Data = append(plan.Data, step)
			continue
		}
		plan.Batched++
		plan.Batches += len(batches)
		for _, batch := range batches {
			plan.Data = append(plan.Data, newStep(batch))
		}
	}

	return plan
}

func newStep(stmt string) Step {
	return Step{
		SQL:   stmt,
		Kind:  script.Classify(stmt),
		Label: script.Label(stmt),
		Table: script.ObjectName(stmt),
		Rows:  script.CountRows(stmt),
	}
}
