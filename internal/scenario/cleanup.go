package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

type cleanupAction struct {
	key  string
	name string
	fn   func(ctx context.Context) error
}

// Cleanup is a stack of compensating actions for resources created on chain.
type Cleanup struct {
	mu      sync.Mutex
	actions []cleanupAction
}

// Push registers fn under key. A key pushed again replaces the earlier action
// and moves to the top of the stack.
func (c *Cleanup) Push(key, name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
	c.actions = append(c.actions, cleanupAction{key: key, name: name, fn: fn})
}

// Forget drops the action registered under key.
func (c *Cleanup) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

// Len returns the number of pending actions.
func (c *Cleanup) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}

// Run executes the pending actions in reverse order of registration.
// Every action runs even if an earlier one fails.
func (c *Cleanup) Run(ctx context.Context) error {
	c.mu.Lock()
	actions := c.actions
	c.actions = nil
	c.mu.Unlock()

	var result *multierror.Error
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		slog.Info("Cleaning up", "action", a.name)
		if err := a.fn(ctx); err != nil {
			slog.Error("Cleanup action failed", "action", a.name, "error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", a.name, err))
		}
	}
	return result.ErrorOrNil()
}

func (c *Cleanup) remove(key string) {
	for i, a := range c.actions {
		if a.key == key {
			c.actions = append(c.actions[:i], c.actions[i+1:]...)
			return
		}
	}
}
