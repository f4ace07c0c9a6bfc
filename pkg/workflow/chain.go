package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Txn is the transaction surface a Chain needs
type Txn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// BeginFunc starts a transaction
type BeginFunc func(ctx context.Context) (Txn, error)

type link struct {
	name string
	fn   func(ctx context.Context, tx Txn) error
}

// Chain runs named steps in order inside one transaction
type Chain struct {
	links []link
}

// NewChain creates an empty chain
func NewChain() *Chain {
	return &Chain{}
}

// Then appends a step
func (c *Chain) Then(name string, fn func(ctx context.Context, tx Txn) error) *Chain {
	c.links = append(c.links, link{name: name, fn: fn})
	return c
}

// Run begins a transaction, runs every step and commits. Any failing step
// rolls the transaction back and stops the chain.
func (c *Chain) Run(ctx context.Context, begin BeginFunc) error {
	tx, err := begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, l := range c.links {
		if err := ctx.Err(); err != nil {
			return rollback(tx, fmt.Errorf("step %s: %w", l.name, err))
		}
		if err := l.fn(ctx, tx); err != nil {
			return rollback(tx, fmt.Errorf("step %s: %w", l.name, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return rollback(tx, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Go runs the chain in its own goroutine. The returned channel receives
// the result and is then closed.
func (c *Chain) Go(ctx context.Context, begin BeginFunc) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- c.Run(ctx, begin)
	}()
	return done
}

func rollback(tx Txn, cause error) error {
	if err := tx.Rollback(); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}
