package client

import (
	"context"
	"sync"
)

// fakeExecutor records commands and replies with canned output.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []Command
	reply    func(cmd Command) (*Output, error)
}

func (f *fakeExecutor) Run(_ context.Context, cmd Command) (*Output, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if f.reply == nil {
		return &Output{}, nil
	}
	return f.reply(cmd)
}
