// Package build runs the external step that compiles the contract binaries.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/afero"

	"github.com/manifest-network/factoryctl/internal/client"
)

// Builder runs the build command and the optional disassembler.
type Builder struct {
	Command  string
	Dir      string
	Wasm2Wat string

	fs   afero.Fs
	exec client.Executor
}

// New returns a builder running command in dir.
func New(command, dir string, fs afero.Fs, exec client.Executor) *Builder {
	return &Builder{
		Command: command,
		Dir:     dir,
		fs:      fs,
		exec:    exec,
	}
}

// Run executes the build command. Its output is logged line by line.
func (b *Builder) Run(ctx context.Context) error {
	argv, err := shlex.Split(b.Command)
	if err != nil {
		return fmt.Errorf("failed to parse build command %q: %w", b.Command, err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("build command is empty")
	}
	if b.Dir != "" {
		if ok, err := afero.DirExists(b.fs, b.Dir); err != nil || !ok {
			return fmt.Errorf("build directory %s does not exist", b.Dir)
		}
	}

	slog.Info("Building contracts", "cmd", b.Command, "dir", b.Dir)
	out, err := b.exec.Run(ctx, client.Command{Name: argv[0], Args: argv[1:], Dir: b.Dir})
	if out != nil {
		logLines("build", out.Stdout)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

// Disassemble writes the text format of the wasm binary at in to out,
// creating the output directory when needed.
func (b *Builder) Disassemble(ctx context.Context, in, out string) error {
	if ok, err := afero.Exists(b.fs, in); err != nil || !ok {
		return fmt.Errorf("wasm binary %s does not exist", in)
	}
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".wat"
	}
	if err := b.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := client.Wasm2Wat(ctx, b.exec, b.Wasm2Wat, in, out); err != nil {
		return err
	}
	slog.Info("Disassembled wasm binary", "in", in, "out", out)
	return nil
}

func logLines(source, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line != "" {
			slog.Debug(line, "source", source)
		}
	}
}
