package factory

import (
	"context"
	"fmt"

	"github.com/manifest-network/factoryctl/internal/client"
)

type fakeCaller struct {
	requests []client.CallRequest
	replies  map[string]string
	errs     map[string]error
}

func (f *fakeCaller) Call(_ context.Context, req client.CallRequest) (*client.CallResult, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.Method]; ok {
		return nil, err
	}
	return &client.CallResult{Value: f.replies[req.Method], TransactionID: "tx-" + req.Method}, nil
}

func (f *fakeCaller) last() client.CallRequest {
	return f.requests[len(f.requests)-1]
}

type fakeViewer struct {
	results  map[string][]byte
	accounts map[string]*client.Account
	args     map[string][]byte
}

func (f *fakeViewer) CallFunction(_ context.Context, contract, method string, args []byte) ([]byte, error) {
	if f.args == nil {
		f.args = map[string][]byte{}
	}
	f.args[method] = args
	out, ok := f.results[contract+"."+method]
	if !ok {
		return nil, fmt.Errorf("no result for %s.%s", contract, method)
	}
	return out, nil
}

func (f *fakeViewer) ViewAccount(_ context.Context, account string) (*client.Account, error) {
	acc, ok := f.accounts[account]
	if !ok {
		return nil, &client.RPCError{Name: "HANDLER_ERROR", Cause: "UNKNOWN_ACCOUNT"}
	}
	return acc, nil
}
