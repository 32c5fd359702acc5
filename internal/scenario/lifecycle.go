package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"

	"github.com/manifest-network/factoryctl/internal/build"
	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/config"
	"github.com/manifest-network/factoryctl/internal/factory"
	"github.com/manifest-network/factoryctl/internal/models"
	"github.com/manifest-network/factoryctl/internal/output"
)

const (
	labelFactory = "factory"
	labelOld     = "old"
	labelNew     = "new"

	keyFactoryAccount = "account:factory"
)

// Deps are the collaborators the lifecycle drives.
type Deps struct {
	Accounts AccountManager
	Factory  *factory.Factory
	Builder  *build.Builder
	Fs       afero.Fs
	Handler  output.OutputHandler
}

// Lifecycle builds the factory deployment and upgrade scenario.
type Lifecycle struct {
	cfg      config.RunConfig
	deps     Deps
	runID    string
	cleanup  *Cleanup
	teardown *Teardown

	artifacts map[string]*codehash.Artifact
}

// NewLifecycle returns the scenario for cfg. Resources it creates are
// registered on cleanup.
func NewLifecycle(cfg config.RunConfig, deps Deps, runID string, cleanup *Cleanup) *Lifecycle {
	return &Lifecycle{
		cfg:     cfg,
		deps:    deps,
		runID:   runID,
		cleanup: cleanup,
		teardown: &Teardown{
			Factory:     deps.Factory,
			Accounts:    deps.Accounts,
			Beneficiary: cfg.Accounts.Master,
		},
		artifacts: map[string]*codehash.Artifact{},
	}
}

// Steps returns the steps of the selected phases.
func (l *Lifecycle) Steps() []Step {
	var steps []Step
	if !l.cfg.Build.Skip && l.deps.Builder != nil {
		steps = append(steps, Step{Name: "build contracts", Phase: config.PhaseSetup, Run: l.deps.Builder.Run})
	}
	steps = append(steps,
		Step{Name: "hash artifacts", Always: true, Run: l.hashArtifacts},
		Step{Name: "create factory account", Phase: config.PhaseSetup, Run: l.createFactoryAccount},
		Step{Name: "deploy factory", Phase: config.PhaseSetup, Run: l.deployFactory},
	)
	steps = append(steps, l.releaseSteps(config.PhaseCreate, labelOld)...)
	steps = append(steps,
		Step{Name: "create dao", Phase: config.PhaseCreate, Run: l.createDAO},
		Step{Name: "verify dao list", Phase: config.PhaseCreate, Run: l.verifyDAOList},
		Step{Name: "verify last proposal id", Phase: config.PhaseCreate, Run: l.verifyLastProposalID},
	)
	steps = append(steps, l.releaseSteps(config.PhaseUpgrade, labelNew)...)
	steps = append(steps,
		Step{Name: "upgrade dao", Phase: config.PhaseUpgrade, Run: l.upgradeDAO},
		Step{Name: "verify dao code hash", Phase: config.PhaseUpgrade, Run: l.verifyDAOCodeHash},
	)
	for _, check := range l.cfg.Checks {
		check := check
		steps = append(steps, Step{
			Name:  "check " + check.Method,
			Phase: config.PhaseUpgrade,
			Run:   func(ctx context.Context) error { return l.runCheck(ctx, check) },
		})
	}
	steps = append(steps,
		Step{Name: "delete old code", Phase: config.PhaseCleanup, Run: l.deleteCode(labelOld)},
		Step{Name: "delete new code", Phase: config.PhaseCleanup, Run: l.deleteCode(labelNew)},
		Step{Name: "delete factory account", Phase: config.PhaseCleanup, Run: l.deleteFactoryAccount},
	)
	return Select(steps, l.cfg.Phases)
}

// releaseSteps stores a DAO code version and makes it the latest.
func (l *Lifecycle) releaseSteps(phase, label string) []Step {
	return []Step{
		{Name: "store " + label + " code", Phase: phase, Run: func(ctx context.Context) error { return l.storeCode(ctx, label) }},
		{Name: "read " + label + " code", Phase: phase, Run: func(ctx context.Context) error { return l.readCode(ctx, label) }},
		{Name: "set " + label + " code hash", Phase: phase, Run: func(ctx context.Context) error { return l.setCodeHash(ctx, label) }},
		{Name: "verify " + label + " latest code hash", Phase: phase, Run: func(ctx context.Context) error { return l.verifyLatestCodeHash(ctx, label) }},
	}
}

func (l *Lifecycle) artifactSpecs() []codehash.ArtifactSpec {
	var specs []codehash.ArtifactSpec
	add := func(label, path string) {
		if path != "" {
			specs = append(specs, codehash.ArtifactSpec{Label: label, Path: l.cfg.Artifacts.Resolve(path)})
		}
	}
	add(labelFactory, l.cfg.Artifacts.FactoryWasm)
	add(labelOld, l.cfg.Artifacts.OldDAOWasm)
	add(labelNew, l.cfg.Artifacts.NewDAOWasm)
	return specs
}

func (l *Lifecycle) hashArtifacts(ctx context.Context) error {
	artifacts, err := codehash.ReadArtifacts(ctx, l.deps.Fs, l.artifactSpecs())
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		l.artifacts[a.Label] = a
		rec := &models.ArtifactRecord{RunID: l.runID, Label: a.Label, Path: a.Path, Hash: a.Hash.String(), Size: len(a.Code)}
		if err := l.deps.Handler.WriteArtifact(ctx, rec); err != nil {
			return fmt.Errorf("failed to record artifact: %w", err)
		}
	}
	return nil
}

func (l *Lifecycle) artifact(label string) (*codehash.Artifact, error) {
	a, ok := l.artifacts[label]
	if !ok {
		return nil, fmt.Errorf("%s artifact is not configured", label)
	}
	return a, nil
}

func (l *Lifecycle) createFactoryAccount(ctx context.Context) error {
	f := l.deps.Factory
	if err := l.deps.Accounts.CreateAccount(ctx, f.Account, l.cfg.Accounts.Master, l.cfg.Deploy.InitialBalance); err != nil {
		return err
	}
	l.cleanup.Push(keyFactoryAccount, "delete factory account", l.teardown.DeleteFactoryAccount)
	return nil
}

func (l *Lifecycle) deployFactory(ctx context.Context) error {
	a, err := l.artifact(labelFactory)
	if err != nil {
		return err
	}
	return l.deps.Accounts.Deploy(ctx, l.deps.Factory.Account, a.Path, "new", "{}")
}

func (l *Lifecycle) storeCode(ctx context.Context, label string) error {
	a, err := l.artifact(label)
	if err != nil {
		return err
	}
	_, err = l.deps.Factory.Store(ctx, a)
	switch {
	case errors.Is(err, factory.ErrAlreadyStored):
		slog.Warn("Code was already stored", "artifact", label, "hash", a.Hash)
	case err != nil:
		return err
	}
	l.cleanup.Push(codeKey(a.Hash), "delete "+label+" code", func(ctx context.Context) error {
		return l.teardown.DeleteCode(ctx, a.Hash)
	})
	return nil
}

func (l *Lifecycle) readCode(ctx context.Context, label string) error {
	a, err := l.artifact(label)
	if err != nil {
		return err
	}
	return verifyEventually(ctx, l.cfg.VerifyTimeout, func() error {
		code, err := l.deps.Factory.GetCode(ctx, a.Hash)
		if err != nil {
			return err
		}
		if l.deps.Factory.CanVerifyCode() {
			slog.Debug("Stored code matches artifact", "artifact", label, "size", len(code))
		}
		return nil
	})
}

func (l *Lifecycle) setCodeHash(ctx context.Context, label string) error {
	a, err := l.artifact(label)
	if err != nil {
		return err
	}
	return l.deps.Factory.SetCodeHash(ctx, a.Hash)
}

func (l *Lifecycle) verifyLatestCodeHash(ctx context.Context, label string) error {
	a, err := l.artifact(label)
	if err != nil {
		return err
	}
	return verifyEventually(ctx, l.cfg.VerifyTimeout, func() error {
		latest, err := l.deps.Factory.LatestCodeHash(ctx)
		if err != nil {
			return err
		}
		return codehash.Verify(a.Hash, latest.String())
	})
}

func (l *Lifecycle) createDAO(ctx context.Context) error {
	_, err := l.deps.Factory.Create(ctx, factory.CreateRequest{
		Name:     l.cfg.Accounts.DAOName,
		Purpose:  l.cfg.Deploy.DAOPurpose,
		Metadata: l.cfg.Deploy.DAOMetadata,
		Policy:   l.cfg.Deploy.Policy,
		Gas:      l.cfg.Deploy.CreateGas,
		Deposit:  l.cfg.Deploy.CreateDeposit,
	})
	return err
}

func (l *Lifecycle) verifyDAOList(ctx context.Context) error {
	account := l.cfg.Accounts.DAOAccount()
	return verifyEventually(ctx, l.cfg.VerifyTimeout, func() error {
		list, err := l.deps.Factory.DAOList(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(list, account) {
			return fmt.Errorf("dao %s missing from factory list %v", account, list)
		}
		return nil
	})
}

func (l *Lifecycle) verifyLastProposalID(ctx context.Context) error {
	dao := l.deps.Factory.DAO(l.cfg.Accounts.DAOName)
	return verifyEventually(ctx, l.cfg.VerifyTimeout, func() error {
		id, err := dao.LastProposalID(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			return fmt.Errorf("new dao %s has last proposal id %d, expected 0", dao.Account, id)
		}
		return nil
	})
}

func (l *Lifecycle) upgradeDAO(ctx context.Context) error {
	return l.deps.Factory.Upgrade(ctx, l.cfg.Accounts.DAOAccount(), l.cfg.Deploy.UpgradeGas)
}

func (l *Lifecycle) verifyDAOCodeHash(ctx context.Context) error {
	a, err := l.artifact(labelNew)
	if err != nil {
		return err
	}
	dao := l.deps.Factory.DAO(l.cfg.Accounts.DAOName)
	err = verifyEventually(ctx, l.cfg.VerifyTimeout, func() error {
		got, err := dao.CodeHash(ctx)
		if errors.Is(err, factory.ErrNoViewer) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		return codehash.Verify(a.Hash, got.String())
	})
	if errors.Is(err, factory.ErrNoViewer) {
		return fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	return err
}

func (l *Lifecycle) runCheck(ctx context.Context, check config.Check) error {
	dao := l.deps.Factory.DAO(l.cfg.Accounts.DAOName)
	return verifyEventually(ctx, l.cfg.VerifyTimeout, func() error {
		got, err := dao.View(ctx, check.Method, nil)
		if err != nil {
			return err
		}
		if got != check.Expected {
			return fmt.Errorf("%s.%s returned %q, expected %q", dao.Account, check.Method, got, check.Expected)
		}
		return nil
	})
}

func (l *Lifecycle) deleteCode(label string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		a, err := l.artifact(label)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSkipped, err)
		}
		if err := l.teardown.DeleteCode(ctx, a.Hash); err != nil {
			return err
		}
		l.cleanup.Forget(codeKey(a.Hash))
		return nil
	}
}

func (l *Lifecycle) deleteFactoryAccount(ctx context.Context) error {
	if err := l.teardown.DeleteFactoryAccount(ctx); err != nil {
		return err
	}
	l.cleanup.Forget(keyFactoryAccount)
	return nil
}

func codeKey(h codehash.Digest) string {
	return "code:" + h.String()
}
