// Package workflow orchestrates demo loads: staged worker pools, chained
// transactional steps and a circuit breaker around repeated operations.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker pool size used when none is given
const DefaultWorkers = 4

// Stage is a loading phase for a group of entities
type Stage int

const (
	StageReference Stage = iota
	StageCore
	StageBusiness
)

// String implements the Stringer interface for Stage
func (s Stage) String() string {
	switch s {
	case StageReference:
		return "reference"
	case StageCore:
		return "core"
	case StageBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// Groups assigns tables to stages. Reference tables have no dependencies,
// core tables reference each other and load in order, business tables
// depend on both.
type Groups struct {
	Reference []string `yaml:"reference"`
	Core      []string `yaml:"core"`
	Business  []string `yaml:"business"`
}

// StageOf returns the stage of a table. Unlisted tables are core.
func (g Groups) StageOf(table string) Stage {
	for _, name := range g.Reference {
		if strings.EqualFold(name, table) {
			return StageReference
		}
	}
	for _, name := range g.Business {
		if strings.EqualFold(name, table) {
			return StageBusiness
		}
	}
	return StageCore
}

// Task is a named unit of work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Plan lists the tasks of each stage
type Plan struct {
	Reference []Task
	Core      []Task
	Business  []Task
}

// Add appends a task to a stage
func (p *Plan) Add(stage Stage, task Task) {
	switch stage {
	case StageReference:
		p.Reference = append(p.Reference, task)
	case StageBusiness:
		p.Business = append(p.Business, task)
	default:
		p.Core = append(p.Core, task)
	}
}

// TaskError reports the task that failed a stage
type TaskError struct {
	Stage Stage
	Task  string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s task %s: %v", e.Stage, e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// RunPlan runs reference tasks on a pool of workers, then core tasks one
// at a time, then business tasks on the pool. A stage starts only after
// every task of the previous stage has finished. The first failure stops
// the plan.
func RunPlan(ctx context.Context, plan Plan, workers int) error {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if err := runParallel(ctx, StageReference, plan.Reference, workers); err != nil {
		return err
	}
	if err := runSequential(ctx, StageCore, plan.Core); err != nil {
		return err
	}
	return runParallel(ctx, StageBusiness, plan.Business, workers)
}

func runParallel(ctx context.Context, stage Stage, tasks []Task, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := task.Run(gctx); err != nil {
				return &TaskError{Stage: stage, Task: task.Name, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func runSequential(ctx context.Context, stage Stage, tasks []Task) error {
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := task.Run(ctx); err != nil {
			return &TaskError{Stage: stage, Task: task.Name, Err: err}
		}
	}
	return nil
}
