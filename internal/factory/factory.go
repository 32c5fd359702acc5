// Package factory calls the factory contract and the DAO contracts it creates.
//
// Methods that change state go through the near CLI, which signs with the
// local key store. Read-only methods use the JSON-RPC viewer when one is
// configured and fall back to the CLI otherwise.
package factory

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/manifest-network/factoryctl/internal/client"
	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/utils"
)

const (
	// storageBytesPerNEAR is the storage one NEAR pays for at 10^19 yoctoNEAR per byte.
	storageBytesPerNEAR = 100_000
	// storeDepositMargin covers the map entry written next to the code.
	storeDepositMargin  = 1
)

var (
	// ErrAlreadyStored is returned by Store when the factory already holds the code.
	ErrAlreadyStored = errors.New("code is already stored in the factory")
	// ErrNoViewer is returned by reads that need the JSON-RPC endpoint.
	ErrNoViewer = errors.New("operation requires an rpc endpoint")
)

// Caller sends signed contract calls.
type Caller interface {
	Call(ctx context.Context, req client.CallRequest) (*client.CallResult, error)
}

// Viewer performs read-only queries.
type Viewer interface {
	CallFunction(ctx context.Context, contract, method string, args []byte) ([]byte, error)
	ViewAccount(ctx context.Context, account string) (*client.Account, error)
}

// Factory is a deployed factory contract.
type Factory struct {
	Account      string
	Signer       string
	StoreDeposit string
	StoreGas     uint64

	caller Caller
	viewer Viewer
}

// CreateRequest holds the arguments of a DAO creation.
type CreateRequest struct {
	Name     string
	Purpose  string
	Metadata string
	Policy   []string
	Gas      uint64
	Deposit  string
}

// Metadata describes a code version stored in the factory.
type Metadata struct {
	CodeHash string `json:"code_hash"`
	Version  string `json:"version"`
	CommitID string `json:"commit_id"`
	Readme   string `json:"readme"`
}

type codeHashArgs struct {
	CodeHash string `json:"code_hash"`
}

// New returns a factory bound to account. viewer may be nil.
func New(account, signer string, caller Caller, viewer Viewer) *Factory {
	return &Factory{
		Account: account,
		Signer:  signer,
		caller:  caller,
		viewer:  viewer,
	}
}

// CanVerifyCode reports whether GetCode returns the exact stored bytes.
func (f *Factory) CanVerifyCode() bool {
	return f.viewer != nil
}

// Exists reports whether the factory account exists.
func (f *Factory) Exists(ctx context.Context) (bool, error) {
	if f.viewer == nil {
		return false, ErrNoViewer
	}
	return accountExists(ctx, f.viewer, f.Account)
}

// DAO returns a handle on a DAO created by this factory.
func (f *Factory) DAO(name string) *DAO {
	return &DAO{
		Account: name + "." + f.Account,
		Signer:  f.Signer,
		caller:  f.caller,
		viewer:  f.viewer,
	}
}

// Store uploads the artifact's bytecode and checks the hash the factory reports.
// Without StoreDeposit the deposit is computed from the code size.
func (f *Factory) Store(ctx context.Context, a *codehash.Artifact) (codehash.Digest, error) {
	args := a.Base64()
	if len(args) > client.MaxArgLen {
		return codehash.Digest{}, fmt.Errorf("%w: %s artifact is %d bytes as base64, the near CLI takes at most %d",
			client.ErrArgTooLong, a.Label, len(args), client.MaxArgLen)
	}
	deposit := f.StoreDeposit
	if deposit == "" {
		deposit = StorageDeposit(len(a.Code))
	}

	res, err := f.caller.Call(ctx, client.CallRequest{
		Contract:  f.Account,
		Method:    "store",
		Args:      args,
		Base64:    true,
		AccountID: f.Signer,
		Gas:       f.StoreGas,
		Amount:    deposit,
	})
	if err != nil {
		if utils.IsAlreadyStoredError(errorOutput(err)) {
			return a.Hash, fmt.Errorf("%w: %s", ErrAlreadyStored, a.Hash)
		}
		return codehash.Digest{}, err
	}

	reported := utils.TrimQuotes(res.Value)
	if err := codehash.Verify(a.Hash, reported); err != nil {
		return codehash.Digest{}, err
	}
	slog.Info("Stored code in factory", "factory", f.Account, "artifact", a.Label, "hash", reported, "tx", res.TransactionID)
	return a.Hash, nil
}

// StorageDeposit returns the deposit in NEAR that covers storing size bytes
// of code in the factory.
func StorageDeposit(size int) string {
	near := (size + storageBytesPerNEAR - 1) / storageBytesPerNEAR
	return strconv.Itoa(near + storeDepositMargin)
}

// GetCode returns the code stored under hash. When read over RPC the bytes
// are checked against hash.
func (f *Factory) GetCode(ctx context.Context, hash codehash.Digest) ([]byte, error) {
	args := mustJSON(codeHashArgs{CodeHash: hash.String()})
	if f.viewer == nil {
		res, err := f.call(ctx, "get_code", args)
		if err != nil {
			return nil, err
		}
		slog.Debug("Code read through the CLI cannot be verified", "hash", hash)
		return []byte(res.Value), nil
	}

	code, err := f.viewer.CallFunction(ctx, f.Account, "get_code", args)
	if err != nil {
		return nil, err
	}
	if err := codehash.Verify(hash, codehash.Sum(code).String()); err != nil {
		return nil, err
	}
	return code, nil
}

// SetCodeHash makes hash the code used for new and upgraded DAOs.
func (f *Factory) SetCodeHash(ctx context.Context, hash codehash.Digest) error {
	_, err := f.call(ctx, "set_code_hash", mustJSON(codeHashArgs{CodeHash: hash.String()}))
	return err
}

// LatestCodeHash returns the code hash new DAOs are created from.
func (f *Factory) LatestCodeHash(ctx context.Context) (codehash.Digest, error) {
	res, err := f.view(ctx, "get_latest_code_hash", nil)
	if err != nil {
		return codehash.Digest{}, err
	}
	return codehash.ParseDigest(res.String())
}

// Create instantiates a DAO from the latest code and returns its account.
func (f *Factory) Create(ctx context.Context, req CreateRequest) (string, error) {
	policy := req.Policy
	if policy == nil {
		policy = []string{}
	}
	inner := mustJSON(map[string]any{
		"config": map[string]string{
			"name":     req.Name,
			"purpose":  req.Purpose,
			"metadata": req.Metadata,
		},
		"policy": policy,
	})
	args := mustJSON(map[string]string{
		"name": req.Name,
		"args": base64.StdEncoding.EncodeToString(inner),
	})

	res, err := f.caller.Call(ctx, client.CallRequest{
		Contract:  f.Account,
		Method:    "create",
		Args:      string(args),
		AccountID: f.Signer,
		Gas:       req.Gas,
		Amount:    req.Deposit,
	})
	if err != nil {
		return "", err
	}
	// on_create returns false and refunds the deposit when the DAO init failed.
	if res.Value == "false" {
		return "", fmt.Errorf("factory %s failed to create dao %s, deposit refunded", f.Account, req.Name)
	}

	account := f.DAO(req.Name).Account
	slog.Info("Created DAO", "account", account, "tx", res.TransactionID)
	return account, nil
}

// DAOList returns every DAO created by the factory.
func (f *Factory) DAOList(ctx context.Context) ([]string, error) {
	res, err := f.view(ctx, "get_dao_list", nil)
	if err != nil {
		return nil, err
	}
	return stringArray(res)
}

// DAOs returns up to limit DAOs starting at from.
func (f *Factory) DAOs(ctx context.Context, from, limit uint64) ([]string, error) {
	res, err := f.view(ctx, "get_daos", mustJSON(map[string]uint64{"from_index": from, "limit": limit}))
	if err != nil {
		return nil, err
	}
	return stringArray(res)
}

// NumberDAOs returns how many DAOs the factory created.
func (f *Factory) NumberDAOs(ctx context.Context) (uint64, error) {
	res, err := f.view(ctx, "get_number_daos", nil)
	if err != nil {
		return 0, err
	}
	return number(res)
}

// Upgrade moves a DAO created by the factory to the latest code.
func (f *Factory) Upgrade(ctx context.Context, account string, gas uint64) error {
	res, err := f.caller.Call(ctx, client.CallRequest{
		Contract:  f.Account,
		Method:    "upgrade",
		Args:      string(mustJSON(map[string]string{"account_id": account})),
		AccountID: f.Signer,
		Gas:       gas,
	})
	if err != nil {
		return err
	}
	slog.Info("Upgraded DAO", "account", account, "tx", res.TransactionID)
	return nil
}

// DeleteContract removes the code stored under hash.
func (f *Factory) DeleteContract(ctx context.Context, hash codehash.Digest) error {
	_, err := f.call(ctx, "delete_contract", mustJSON(codeHashArgs{CodeHash: hash.String()}))
	return err
}

// Owner returns the factory owner.
func (f *Factory) Owner(ctx context.Context) (string, error) {
	res, err := f.view(ctx, "get_owner", nil)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// SetOwner transfers factory ownership.
func (f *Factory) SetOwner(ctx context.Context, owner string) error {
	_, err := f.call(ctx, "set_owner", mustJSON(map[string]string{"owner_id": owner}))
	return err
}

// StoreMetadata records metadata for a stored code version and makes it the latest.
func (f *Factory) StoreMetadata(ctx context.Context, m Metadata) error {
	if _, err := codehash.ParseDigest(m.CodeHash); err != nil {
		return err
	}
	_, err := f.call(ctx, "store_contract_metadata", mustJSON(map[string]Metadata{"metadata": m}))
	return err
}

// Metadata returns the metadata of every stored code version.
func (f *Factory) Metadata(ctx context.Context) ([]Metadata, error) {
	res, err := f.view(ctx, "get_contract_metadata", nil)
	if err != nil {
		return nil, err
	}
	var out []Metadata
	if err := json.Unmarshal([]byte(res.Raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode contract metadata: %w", err)
	}
	return out, nil
}

func (f *Factory) call(ctx context.Context, method string, args []byte) (*client.CallResult, error) {
	return f.caller.Call(ctx, client.CallRequest{
		Contract:  f.Account,
		Method:    method,
		Args:      string(args),
		AccountID: f.Signer,
	})
}

func (f *Factory) view(ctx context.Context, method string, args []byte) (gjson.Result, error) {
	return view(ctx, f.caller, f.viewer, f.Account, f.Signer, method, args)
}

// view runs a read-only method and returns its JSON result.
func view(ctx context.Context, caller Caller, viewer Viewer, contract, signer, method string, args []byte) (gjson.Result, error) {
	var raw []byte
	if viewer != nil {
		out, err := viewer.CallFunction(ctx, contract, method, args)
		if err != nil {
			return gjson.Result{}, err
		}
		raw = out
	} else {
		req := client.CallRequest{Contract: contract, Method: method, AccountID: signer}
		if len(args) > 0 {
			req.Args = string(args)
		}
		res, err := caller.Call(ctx, req)
		if err != nil {
			return gjson.Result{}, err
		}
		if raw, err = utils.JSLiteralToJSON(res.Value); err != nil {
			return gjson.Result{}, fmt.Errorf("failed to parse %s.%s result: %w", contract, method, err)
		}
	}

	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%s.%s returned invalid JSON %q", contract, method, raw)
	}
	return gjson.ParseBytes(raw), nil
}

func stringArray(res gjson.Result) ([]string, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("expected an array, got %s", res.Raw)
	}
	items := res.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out, nil
}

func number(res gjson.Result) (uint64, error) {
	switch res.Type {
	case gjson.Number:
		return res.Uint(), nil
	case gjson.String:
		// u64 values may be serialized as strings
		n, err := strconv.ParseUint(res.Str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %s", res.Raw)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %s", res.Raw)
	}
}

// Normalize renders a JSON result the way checks compare it: strings
// unquoted, everything else compacted.
func Normalize(res gjson.Result) string {
	if res.Type == gjson.String {
		return res.Str
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(res.Raw)); err != nil {
		return res.Raw
	}
	return buf.String()
}

func errorOutput(err error) string {
	var cmdErr *client.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Output()
	}
	return err.Error()
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal %T: %v", v, err))
	}
	return b
}
