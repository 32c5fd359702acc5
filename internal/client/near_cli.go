package client

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/manifest-network/factoryctl/internal/utils"
)

// NearCLI drives the external near command-line client.
type NearCLI struct {
	Bin         string
	Network     string
	NodeURL     string
	CallTimeout time.Duration
	Exec        Executor
}

// CallRequest describes a `near call` invocation.
type CallRequest struct {
	Contract  string
	Method    string
	Args      string
	Base64    bool
	AccountID string
	Gas       uint64
	Amount    string
}

// CallResult is what a `near call` printed.
type CallResult struct {
	Stdout        string
	Stderr        string
	TransactionID string
	Value         string
}

// NewNearCLI creates a near CLI driver running real processes.
func NewNearCLI(bin, network, nodeURL string, callTimeout time.Duration) *NearCLI {
	return &NearCLI{
		Bin:         bin,
		Network:     network,
		NodeURL:     nodeURL,
		CallTimeout: callTimeout,
		Exec:        ProcessExecutor{},
	}
}

// CreateAccount creates account funded by master.
func (c *NearCLI) CreateAccount(ctx context.Context, account, master, initialBalance string) error {
	_, err := c.run(ctx, "create-account", account, "--masterAccount", master, "--initialBalance", initialBalance)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account, err)
	}
	return nil
}

// Deploy deploys wasmPath to account and calls initFunction with initArgs.
func (c *NearCLI) Deploy(ctx context.Context, account, wasmPath, initFunction, initArgs string) error {
	args := []string{"deploy", account, "--wasmFile", wasmPath}
	if initFunction != "" {
		args = append(args, "--initFunction", initFunction, "--initArgs", initArgs)
	}
	if _, err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to deploy %s to %s: %w", wasmPath, account, err)
	}
	return nil
}

// Call invokes a contract method and returns the printed result.
func (c *NearCLI) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	args := []string{"call", req.Contract, req.Method}
	if req.Args != "" {
		args = append(args, req.Args)
	}
	args = append(args, "--accountId", req.AccountID)
	if req.Gas > 0 {
		args = append(args, "--gas", strconv.FormatUint(req.Gas, 10))
	}
	if req.Amount != "" {
		args = append(args, "--amount", req.Amount)
	}
	if req.Base64 {
		args = append(args, "--base64")
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s.%s: %w", req.Contract, req.Method, err)
	}

	res := &CallResult{
		Stdout:        out.Stdout,
		Stderr:        out.Stderr,
		TransactionID: utils.ParseTransactionID(out.Stdout),
		Value:         utils.LastValue(out.Stdout),
	}
	slog.Debug("Call finished", "contract", req.Contract, "method", req.Method, "tx", res.TransactionID)
	return res, nil
}

// DeleteAccount deletes account and sends its balance to beneficiary.
func (c *NearCLI) DeleteAccount(ctx context.Context, account, beneficiary string) error {
	if _, err := c.run(ctx, "delete", account, beneficiary); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", account, err)
	}
	return nil
}

func (c *NearCLI) run(ctx context.Context, args ...string) (*Output, error) {
	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}
	if c.NodeURL != "" {
		args = append(args, "--nodeUrl", c.NodeURL)
	}

	cmd := Command{Name: c.Bin, Args: args}
	if c.Network != "" {
		cmd.Env = []string{"NEAR_ENV=" + c.Network}
	}
	return c.Exec.Run(ctx, cmd)
}
