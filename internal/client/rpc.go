package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/manifest-network/factoryctl/internal/utils"
)

const (
	unknownAccountCause = "UNKNOWN_ACCOUNT"
	finalityFinal       = "final"
)

// ErrUnknownAccount is returned when the queried account does not exist.
var ErrUnknownAccount = errors.New("account does not exist")

// RPCError is an error object returned by the JSON-RPC endpoint.
type RPCError struct {
	Name    string
	Cause   string
	Message string
}

func (e *RPCError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("rpc error %s (%s): %s", e.Name, e.Cause, e.Message)
	}
	return fmt.Sprintf("rpc error %s: %s", e.Name, e.Message)
}

// Is makes errors.Is(err, ErrUnknownAccount) hold for unknown account errors.
func (e *RPCError) Is(target error) bool {
	return target == ErrUnknownAccount && e.Cause == unknownAccountCause
}

// Account is the state returned by view_account.
type Account struct {
	Amount       string
	Locked       string
	CodeHash     string
	StorageUsage uint64
	BlockHeight  uint64
}

// RPC is a NEAR JSON-RPC client used for structured reads.
type RPC struct {
	client *resty.Client
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// NewRPC creates a client for the endpoint at url.
func NewRPC(url string, timeout time.Duration, maxRetries uint) *RPC {
	c := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetRetryCount(int(maxRetries)).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &RPC{client: c}
}

// ViewAccount returns the state of account.
func (r *RPC) ViewAccount(ctx context.Context, account string) (*Account, error) {
	res, err := r.query(ctx, map[string]any{
		"request_type": "view_account",
		"finality":     finalityFinal,
		"account_id":   account,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to view account %s: %w", account, err)
	}

	return &Account{
		Amount:       res.Get("amount").String(),
		Locked:       res.Get("locked").String(),
		CodeHash:     res.Get("code_hash").String(),
		StorageUsage: res.Get("storage_usage").Uint(),
		BlockHeight:  res.Get("block_height").Uint(),
	}, nil
}

// CallFunction runs a view method and returns the raw bytes it returned.
func (r *RPC) CallFunction(ctx context.Context, contract, method string, args []byte) ([]byte, error) {
	if len(args) == 0 {
		args = []byte("{}")
	}
	res, err := r.query(ctx, map[string]any{
		"request_type": "call_function",
		"finality":     finalityFinal,
		"account_id":   contract,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(args),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to view %s.%s: %w", contract, method, err)
	}

	raw := res.Get("result")
	if !raw.IsArray() {
		return nil, fmt.Errorf("view %s.%s returned no result", contract, method)
	}
	out := make([]byte, 0, len(raw.Array()))
	raw.ForEach(func(_, v gjson.Result) bool {
		out = append(out, byte(v.Uint()))
		return true
	})
	return out, nil
}

func (r *RPC) query(ctx context.Context, params map[string]any) (gjson.Result, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: "factoryctl", Method: "query", Params: params}).
		Post("/")
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("rpc endpoint returned %s", resp.Status())
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("rpc endpoint returned invalid JSON")
	}
	parsed := gjson.ParseBytes(body)

	if e := parsed.Get("error"); e.Exists() {
		msg := e.Get("data").String()
		if msg == "" {
			msg = e.Get("message").String()
		}
		return gjson.Result{}, &RPCError{
			Name:    e.Get("name").String(),
			Cause:   e.Get("cause.name").String(),
			Message: msg,
		}
	}

	result := parsed.Get("result")
	// Older nodes report execution failures inside the result object.
	if e := result.Get("error"); e.Exists() {
		rpcErr := &RPCError{Name: "HANDLER_ERROR", Message: e.String()}
		if utils.IsMissingAccountError(rpcErr.Message) {
			rpcErr.Cause = unknownAccountCause
		}
		return gjson.Result{}, rpcErr
	}
	return result, nil
}
