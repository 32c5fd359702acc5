package factory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/factoryctl/internal/client"
	"github.com/manifest-network/factoryctl/internal/codehash"
)

const factoryAccount = "sputnikdao-factory2.master.testnet"

func testArtifact(code string) *codehash.Artifact {
	return &codehash.Artifact{Label: "dao", Path: "dao.wasm", Code: []byte(code), Hash: codehash.Sum([]byte(code))}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	a := testArtifact("old dao code")

	caller := &fakeCaller{replies: map[string]string{"store": "'" + a.Hash.String() + "'"}}
	f := New(factoryAccount, factoryAccount, caller, nil)
	f.StoreDeposit = "5"

	got, err := f.Store(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, got)

	req := caller.last()
	assert.Equal(t, "store", req.Method)
	assert.True(t, req.Base64)
	assert.Equal(t, a.Base64(), req.Args)
	assert.Equal(t, "5", req.Amount)
	assert.Equal(t, factoryAccount, req.AccountID)
}

func TestStoreSizeAndDefaultDeposit(t *testing.T) {
	a := testArtifact(strings.Repeat("w", 250_000))
	caller := &fakeCaller{replies: map[string]string{"store": "'" + a.Hash.String() + "'"}}
	f := New(factoryAccount, factoryAccount, caller, nil)
	f.StoreGas = 300_000_000_000_000

	_, err := f.Store(context.Background(), a)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrArgTooLong)
	assert.Empty(t, caller.requests)

	a = testArtifact(strings.Repeat("w", 90_000))
	caller.replies["store"] = "'" + a.Hash.String() + "'"
	_, err = f.Store(context.Background(), a)
	require.NoError(t, err)

	req := caller.last()
	assert.Equal(t, "2", req.Amount)
	assert.Equal(t, uint64(300_000_000_000_000), req.Gas)
}

func TestStorageDeposit(t *testing.T) {
	cases := []struct {
		size int
		want string
	}{
		{size: 1, want: "2"},
		{size: 100_000, want: "2"},
		{size: 100_001, want: "3"},
		{size: 420_000, want: "6"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StorageDeposit(tc.size), "size %d", tc.size)
	}
}

func TestStoreMismatch(t *testing.T) {
	a := testArtifact("old dao code")
	other := codehash.Sum([]byte("something else"))
	caller := &fakeCaller{replies: map[string]string{"store": "'" + other.String() + "'"}}

	_, err := New(factoryAccount, factoryAccount, caller, nil).Store(context.Background(), a)
	var mismatch *codehash.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, other.String(), mismatch.Reported)
}

func TestStoreAlreadyExists(t *testing.T) {
	a := testArtifact("old dao code")
	caller := &fakeCaller{errs: map[string]error{
		"store": &client.CommandError{ExitCode: 1, Stdout: "Smart contract panicked: ERR_ALREADY_EXISTS"},
	}}

	got, err := New(factoryAccount, factoryAccount, caller, nil).Store(context.Background(), a)
	assert.ErrorIs(t, err, ErrAlreadyStored)
	assert.Equal(t, a.Hash, got)
}

func TestGetCode(t *testing.T) {
	ctx := context.Background()
	a := testArtifact("stored code")

	viewer := &fakeViewer{results: map[string][]byte{factoryAccount + ".get_code": a.Code}}
	f := New(factoryAccount, factoryAccount, &fakeCaller{}, viewer)
	assert.True(t, f.CanVerifyCode())

	code, err := f.GetCode(ctx, a.Hash)
	require.NoError(t, err)
	assert.Equal(t, a.Code, code)
	assert.JSONEq(t, `{"code_hash":"`+a.Hash.String()+`"}`, string(viewer.args["get_code"]))

	viewer.results[factoryAccount+".get_code"] = []byte("tampered")
	_, err = f.GetCode(ctx, a.Hash)
	var mismatch *codehash.MismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestGetCodeThroughCLI(t *testing.T) {
	a := testArtifact("stored code")
	caller := &fakeCaller{replies: map[string]string{"get_code": "'stored code'"}}
	f := New(factoryAccount, factoryAccount, caller, nil)
	assert.False(t, f.CanVerifyCode())

	code, err := f.GetCode(context.Background(), a.Hash)
	require.NoError(t, err)
	assert.Equal(t, "'stored code'", string(code))
	assert.JSONEq(t, `{"code_hash":"`+a.Hash.String()+`"}`, caller.last().Args)
}

func TestSetAndLatestCodeHash(t *testing.T) {
	ctx := context.Background()
	h := codehash.Sum([]byte("new"))

	caller := &fakeCaller{replies: map[string]string{"get_latest_code_hash": "'" + h.String() + "'"}}
	f := New(factoryAccount, "master.testnet", caller, nil)

	require.NoError(t, f.SetCodeHash(ctx, h))
	assert.Equal(t, "set_code_hash", caller.last().Method)
	assert.Equal(t, "master.testnet", caller.last().AccountID)
	assert.JSONEq(t, `{"code_hash":"`+h.String()+`"}`, caller.last().Args)

	got, err := f.LatestCodeHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Empty(t, caller.last().Args)
}

func TestLatestCodeHashThroughViewer(t *testing.T) {
	h := codehash.Sum([]byte("new"))
	viewer := &fakeViewer{results: map[string][]byte{factoryAccount + ".get_latest_code_hash": []byte(`"` + h.String() + `"`)}}
	caller := &fakeCaller{}

	got, err := New(factoryAccount, factoryAccount, caller, viewer).LatestCodeHash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Empty(t, caller.requests)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	caller := &fakeCaller{replies: map[string]string{"create": "true"}}
	f := New(factoryAccount, factoryAccount, caller, nil)

	account, err := f.Create(ctx, CreateRequest{
		Name:    "dao2",
		Purpose: "testing",
		Policy:  []string{"master.testnet"},
		Gas:     300000000000000,
		Deposit: "10",
	})
	require.NoError(t, err)
	assert.Equal(t, "dao2."+factoryAccount, account)

	req := caller.last()
	assert.Equal(t, uint64(300000000000000), req.Gas)
	assert.Equal(t, "10", req.Amount)

	var outer struct {
		Name string `json:"name"`
		Args string `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Args), &outer))
	assert.Equal(t, "dao2", outer.Name)
	inner, err := base64.StdEncoding.DecodeString(outer.Args)
	require.NoError(t, err)
	assert.JSONEq(t, `{"config":{"name":"dao2","purpose":"testing","metadata":""},"policy":["master.testnet"]}`, string(inner))

	caller.replies["create"] = "false"
	_, err = f.Create(ctx, CreateRequest{Name: "dao3"})
	assert.ErrorContains(t, err, "deposit refunded")
}

func TestDAOListing(t *testing.T) {
	ctx := context.Background()
	caller := &fakeCaller{replies: map[string]string{
		"get_dao_list":    "[ 'dao2." + factoryAccount + "' ]",
		"get_daos":        "[\n  'a." + factoryAccount + "',\n  'b." + factoryAccount + "'\n]",
		"get_number_daos": "2",
	}}
	f := New(factoryAccount, factoryAccount, caller, nil)

	list, err := f.DAOList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dao2." + factoryAccount}, list)

	page, err := f.DAOs(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"a." + factoryAccount, "b." + factoryAccount}, page)
	assert.JSONEq(t, `{"from_index":0,"limit":100}`, caller.last().Args)

	n, err := f.NumberDAOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	caller.replies["get_dao_list"] = "'not a list'"
	_, err = f.DAOList(ctx)
	assert.ErrorContains(t, err, "expected an array")
}

func TestUpgradeAndDelete(t *testing.T) {
	ctx := context.Background()
	caller := &fakeCaller{}
	f := New(factoryAccount, factoryAccount, caller, nil)
	h := codehash.Sum([]byte("old"))

	require.NoError(t, f.Upgrade(ctx, "dao2."+factoryAccount, 300000000000000))
	assert.Equal(t, "upgrade", caller.last().Method)
	assert.JSONEq(t, `{"account_id":"dao2.`+factoryAccount+`"}`, caller.last().Args)
	assert.Equal(t, uint64(300000000000000), caller.last().Gas)

	require.NoError(t, f.DeleteContract(ctx, h))
	assert.Equal(t, "delete_contract", caller.last().Method)
	assert.JSONEq(t, `{"code_hash":"`+h.String()+`"}`, caller.last().Args)

	caller.errs = map[string]error{"upgrade": errors.New("Must be contract created by factory")}
	assert.ErrorContains(t, f.Upgrade(ctx, "other.testnet", 1), "Must be contract created by factory")
}

func TestOwnerAndMetadata(t *testing.T) {
	ctx := context.Background()
	h := codehash.Sum([]byte("v2"))
	caller := &fakeCaller{replies: map[string]string{
		"get_owner":             "'master.testnet'",
		"get_contract_metadata": "[ { code_hash: '" + h.String() + "', version: 'v2', commit_id: 'abc', readme: '' } ]",
	}}
	f := New(factoryAccount, factoryAccount, caller, nil)

	owner, err := f.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master.testnet", owner)

	require.NoError(t, f.SetOwner(ctx, "alice.testnet"))
	assert.JSONEq(t, `{"owner_id":"alice.testnet"}`, caller.last().Args)

	m := Metadata{CodeHash: h.String(), Version: "v2", CommitID: "abc"}
	require.NoError(t, f.StoreMetadata(ctx, m))
	assert.Equal(t, "store_contract_metadata", caller.last().Method)
	assert.JSONEq(t, `{"metadata":{"code_hash":"`+h.String()+`","version":"v2","commit_id":"abc","readme":""}}`, caller.last().Args)

	assert.Error(t, f.StoreMetadata(ctx, Metadata{CodeHash: "bad"}))

	got, err := f.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Metadata{m}, got)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	viewer := &fakeViewer{accounts: map[string]*client.Account{factoryAccount: {}}}
	f := New(factoryAccount, factoryAccount, &fakeCaller{}, viewer)

	ok, err := f.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.DAO("gone").Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = New(factoryAccount, factoryAccount, &fakeCaller{}, nil).Exists(ctx)
	assert.ErrorIs(t, err, ErrNoViewer)
}
