package scenario

import (
	"context"
	"errors"
	"log/slog"

	"github.com/manifest-network/factoryctl/internal/client"
	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/factory"
	"github.com/manifest-network/factoryctl/internal/utils"
)

// AccountManager creates, deploys to and deletes accounts.
type AccountManager interface {
	CreateAccount(ctx context.Context, account, master, initialBalance string) error
	Deploy(ctx context.Context, account, wasmPath, initFunction, initArgs string) error
	DeleteAccount(ctx context.Context, account, beneficiary string) error
}

// Teardown removes what a run leaves on chain. Every operation succeeds when
// the resource is already gone.
type Teardown struct {
	Factory     *factory.Factory
	Accounts    AccountManager
	Beneficiary string
}

// DeleteCode removes the code stored under hash from the factory.
func (t *Teardown) DeleteCode(ctx context.Context, hash codehash.Digest) error {
	err := t.Factory.DeleteContract(ctx, hash)
	if isGone(err) {
		slog.Info("Code already removed", "hash", hash)
		return nil
	}
	return err
}

// DeleteFactoryAccount deletes the factory account, sending its balance to
// the beneficiary.
func (t *Teardown) DeleteFactoryAccount(ctx context.Context) error {
	exists, err := t.Factory.Exists(ctx)
	switch {
	case err == nil && !exists:
		slog.Info("Factory account already deleted", "account", t.Factory.Account)
		return nil
	case err != nil && !errors.Is(err, factory.ErrNoViewer):
		return err
	}

	err = t.Accounts.DeleteAccount(ctx, t.Factory.Account, t.Beneficiary)
	if isGone(err) {
		slog.Info("Factory account already deleted", "account", t.Factory.Account)
		return nil
	}
	return err
}

func isGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, client.ErrUnknownAccount) {
		return true
	}
	msg := err.Error()
	var cmdErr *client.CommandError
	if errors.As(err, &cmdErr) {
		msg = cmdErr.Output()
	}
	return utils.IsMissingAccountError(msg) || utils.IsMissingCodeError(msg)
}
