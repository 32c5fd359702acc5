package scenario

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/manifest-network/factoryctl/internal/client"
	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/models"
)

// fakeChain simulates the near CLI, the RPC endpoint and a factory contract.
type fakeChain struct {
	mu       sync.Mutex
	accounts map[string]bool
	code     map[string][]byte
	latest   string
	daos     []string
	daoCode  map[string]string
	methods  []string

	// upgradedView is the hash whose code exposes get_10_for_testing.
	upgradedView string
	// corruptStore makes store report a wrong hash for this code.
	corruptStore string
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		accounts: map[string]bool{"master.testnet": true},
		code:     map[string][]byte{},
		daoCode:  map[string]string{},
	}
}

func panicked(msg string) error {
	return &client.CommandError{ExitCode: 1, Stdout: "Smart contract panicked: " + msg}
}

func (c *fakeChain) Call(_ context.Context, req client.CallRequest) (*client.CallResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods = append(c.methods, req.Method)

	if !c.accounts[req.Contract] {
		return nil, &client.CommandError{ExitCode: 1, Stderr: fmt.Sprintf("Account %s does not exist while viewing", req.Contract)}
	}

	var args map[string]string
	if req.Args != "" && !req.Base64 {
		_ = json.Unmarshal([]byte(req.Args), &args)
	}

	value := ""
	switch req.Method {
	case "store":
		code, err := base64.StdEncoding.DecodeString(req.Args)
		if err != nil {
			return nil, err
		}
		h := codehash.Sum(code).String()
		if _, ok := c.code[h]; ok {
			return nil, panicked("ERR_ALREADY_EXISTS")
		}
		c.code[h] = code
		if string(code) == c.corruptStore {
			h = codehash.Sum([]byte("corrupted")).String()
		}
		value = "'" + h + "'"
	case "get_code":
		code, ok := c.code[args["code_hash"]]
		if !ok {
			return nil, panicked("Contract doesn't exist")
		}
		value = "'" + string(code) + "'"
	case "set_code_hash":
		c.latest = args["code_hash"]
	case "get_latest_code_hash":
		value = "'" + c.latest + "'"
	case "create":
		account := args["name"] + "." + req.Contract
		c.daos = append(c.daos, account)
		c.daoCode[account] = c.latest
		c.accounts[account] = true
		value = "true"
	case "get_dao_list":
		quoted := make([]string, 0, len(c.daos))
		for _, d := range c.daos {
			quoted = append(quoted, "'"+d+"'")
		}
		value = "[ " + strings.Join(quoted, ", ") + " ]"
	case "get_last_proposal_id":
		value = "0"
	case "upgrade":
		c.daoCode[args["account_id"]] = c.latest
	case "get_10_for_testing":
		if c.daoCode[req.Contract] != c.upgradedView {
			return nil, panicked("MethodNotFound")
		}
		value = "10"
	case "delete_contract":
		delete(c.code, args["code_hash"])
	default:
		return nil, panicked("MethodNotFound")
	}
	return &client.CallResult{Value: value, TransactionID: "tx"}, nil
}

func (c *fakeChain) CallFunction(ctx context.Context, contract, method string, args []byte) ([]byte, error) {
	if method == "get_code" {
		var a map[string]string
		_ = json.Unmarshal(args, &a)
		c.mu.Lock()
		defer c.mu.Unlock()
		code, ok := c.code[a["code_hash"]]
		if !ok {
			return nil, &client.RPCError{Name: "HANDLER_ERROR", Message: "Contract doesn't exist"}
		}
		return code, nil
	}
	res, err := c.Call(ctx, client.CallRequest{Contract: contract, Method: method, Args: string(args)})
	if err != nil {
		return nil, err
	}
	converted := strings.ReplaceAll(res.Value, "'", `"`)
	return []byte(converted), nil
}

func (c *fakeChain) ViewAccount(_ context.Context, account string) (*client.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts[account] {
		return nil, &client.RPCError{Name: "HANDLER_ERROR", Cause: "UNKNOWN_ACCOUNT"}
	}
	return &client.Account{CodeHash: c.daoCode[account]}, nil
}

func (c *fakeChain) CreateAccount(_ context.Context, account, master, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts[master] {
		return fmt.Errorf("master %s missing", master)
	}
	c.accounts[account] = true
	return nil
}

func (c *fakeChain) Deploy(_ context.Context, account, _, _, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts[account] {
		return &client.CommandError{ExitCode: 1, Stderr: fmt.Sprintf("Account %s does not exist while viewing", account)}
	}
	return nil
}

func (c *fakeChain) DeleteAccount(_ context.Context, account, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts[account] {
		return &client.CommandError{ExitCode: 1, Stderr: fmt.Sprintf("Account %s does not exist while viewing", account)}
	}
	delete(c.accounts, account)
	return nil
}

// memoryHandler keeps journal records in memory.
type memoryHandler struct {
	mu        sync.Mutex
	runs      []models.Run
	steps     []models.StepResult
	artifacts []models.ArtifactRecord
}

func (h *memoryHandler) WriteRun(_ context.Context, run *models.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, *run)
	return nil
}

func (h *memoryHandler) WriteStep(_ context.Context, step *models.StepResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, *step)
	return nil
}

func (h *memoryHandler) WriteArtifact(_ context.Context, a *models.ArtifactRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.artifacts = append(h.artifacts, *a)
	return nil
}

func (h *memoryHandler) Close() error { return nil }

func (h *memoryHandler) stepStatus() map[string]models.Status {
	out := map[string]models.Status{}
	for _, s := range h.steps {
		out[s.Name] = s.Status
	}
	return out
}
