package factoryctl

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/config"
	"github.com/manifest-network/factoryctl/internal/scenario"
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete stored DAO code and the factory account",
	Long: `Deletes the given code hashes from the factory, or the hashes of the configured
DAO binaries when none are given, then deletes the factory account. Resources that
are already gone are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		raw, err := cmd.Flags().GetStringSlice("code-hash")
		if err != nil {
			return err
		}
		hashes, err := teardownHashes(cfg, raw)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		cli, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		t := &scenario.Teardown{Factory: f, Accounts: cli, Beneficiary: cfg.Accounts.Master}

		var result *multierror.Error
		for _, h := range hashes {
			if err := t.DeleteCode(ctx, h); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to delete code %s: %w", h, err))
			}
		}
		if err := t.DeleteFactoryAccount(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := result.ErrorOrNil(); err != nil {
			return err
		}
		slog.Info("Teardown finished", "factory", f.Account, "codes", len(hashes))
		return nil
	},
}

func teardownHashes(cfg config.RunConfig, raw []string) ([]codehash.Digest, error) {
	var hashes []codehash.Digest
	for _, s := range raw {
		h, err := codehash.ParseDigest(s)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if len(hashes) > 0 {
		return hashes, nil
	}

	for _, path := range []string{cfg.Artifacts.OldDAOWasm, cfg.Artifacts.NewDAOWasm} {
		if path == "" {
			continue
		}
		path = cfg.Artifacts.Resolve(path)
		if ok, _ := afero.Exists(appFs, path); !ok {
			slog.Debug("Skipping missing artifact", "path", path)
			continue
		}
		a, err := codehash.ReadArtifact(appFs, path, path)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, a.Hash)
	}
	return hashes, nil
}

func init() {
	teardownCmd.Flags().StringSlice("code-hash", nil, "base58 code hash to delete from the factory")
}
