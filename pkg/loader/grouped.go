package loader

import (
	"context"
	"strings"

	"github.com/wemcdonald/sqlseed/pkg/workflow"
)

// LoadGrouped runs the schema phase in order, then loads the data of each
// table as one task of a staged workflow: reference tables on a pool of
// workers, core tables one after another, business tables on the pool.
// Statements of a single table keep their script order.
func (l *Loader) LoadGrouped(ctx context.Context, exec Executor, raw string, groups workflow.Groups, workers int) (*Stats, error) {
	r := l.start(raw)

	if err := l.runSteps(ctx, exec, r, r.plan.Schema); err != nil {
		return r.finish(), err
	}

	var plan workflow.Plan
	for _, table := range tableSteps(r.plan.Data) {
		table := table
		stage := groups.StageOf(table.name)
		r.logger.Debug("Scheduled table", "table", table.name, "stage", stage.String(), "statements", len(table.steps))
		plan.Add(stage, workflow.Task{
			Name: table.name,
			Run: func(ctx context.Context) error {
				return l.runSteps(ctx, exec, r, table.steps)
			},
		})
	}

	if err := workflow.RunPlan(ctx, plan, workers); err != nil {
		return r.finish(), err
	}

	stats := r.finish()
	l.logFinalStatistics(ctx, stats)
	return stats, nil
}

type tableGroup struct {
	name  string
	steps []Step
}

// tableSteps groups steps by target table in order of first appearance.
// Table names compare case-insensitively.
func tableSteps(steps []Step) []*tableGroup {
	var groups []*tableGroup
	index := make(map[string]*tableGroup)
	for _, step := range steps {
		key := strings.ToLower(step.Table)
		group, ok := index[key]
		if !ok {
			group = &tableGroup{name: step.Table}
			index[key] = group
			groups = append(groups, group)
		}
		group.steps = append(group.steps, step)
	}
	return groups
}
