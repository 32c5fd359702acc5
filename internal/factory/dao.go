package factory

import (
	"context"
	"errors"

	"github.com/manifest-network/factoryctl/internal/client"
	"github.com/manifest-network/factoryctl/internal/codehash"
)

// DAO is a contract instance created by the factory.
type DAO struct {
	Account string
	Signer  string

	caller Caller
	viewer Viewer
}

// LastProposalID returns the id of the DAO's last proposal.
func (d *DAO) LastProposalID(ctx context.Context) (uint64, error) {
	res, err := view(ctx, d.caller, d.viewer, d.Account, d.Signer, "get_last_proposal_id", nil)
	if err != nil {
		return 0, err
	}
	return number(res)
}

// View runs a read-only method on the DAO and returns its normalized result.
func (d *DAO) View(ctx context.Context, method string, args []byte) (string, error) {
	res, err := view(ctx, d.caller, d.viewer, d.Account, d.Signer, method, args)
	if err != nil {
		return "", err
	}
	return Normalize(res), nil
}

// CodeHash returns the hash of the code deployed on the DAO account.
func (d *DAO) CodeHash(ctx context.Context) (codehash.Digest, error) {
	if d.viewer == nil {
		return codehash.Digest{}, ErrNoViewer
	}
	acc, err := d.viewer.ViewAccount(ctx, d.Account)
	if err != nil {
		return codehash.Digest{}, err
	}
	return codehash.ParseDigest(acc.CodeHash)
}

// Exists reports whether the DAO account exists.
func (d *DAO) Exists(ctx context.Context) (bool, error) {
	if d.viewer == nil {
		return false, ErrNoViewer
	}
	return accountExists(ctx, d.viewer, d.Account)
}

func accountExists(ctx context.Context, v Viewer, account string) (bool, error) {
	_, err := v.ViewAccount(ctx, account)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, client.ErrUnknownAccount):
		return false, nil
	default:
		return false, err
	}
}
