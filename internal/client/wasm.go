package client

import (
	"context"
	"fmt"
)

// Wasm2Wat disassembles a wasm binary into its text format.
func Wasm2Wat(ctx context.Context, e Executor, bin, in, out string) error {
	if bin == "" {
		bin = "wasm2wat"
	}
	if _, err := e.Run(ctx, Command{Name: bin, Args: []string{in, "-o", out}}); err != nil {
		return fmt.Errorf("failed to disassemble %s: %w", in, err)
	}
	return nil
}
