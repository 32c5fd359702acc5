package factoryctl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manifest-network/factoryctl/internal/build"
	"github.com/manifest-network/factoryctl/internal/client"
	"github.com/manifest-network/factoryctl/internal/config"
	"github.com/manifest-network/factoryctl/internal/factory"
	"github.com/manifest-network/factoryctl/internal/output"
	"github.com/manifest-network/factoryctl/internal/output/postgresql"
)

const (
	defaultGas           = 300_000_000_000_000
	defaultCallTimeout   = 5 * time.Minute
	defaultVerifyTimeout = time.Minute
)

// newFactory returns the near CLI driver and a factory handle signing as the
// factory account. Reads go over JSON-RPC when an endpoint is configured.
func newFactory(near config.NearConfig, accounts config.AccountsConfig, deploy config.DeployConfig) (*client.NearCLI, *factory.Factory) {
	cli := client.NewNearCLI(near.Bin, near.Network, near.NodeURL, near.CallTimeout)

	var viewer factory.Viewer
	if near.RPCURL != "" {
		viewer = client.NewRPC(near.RPCURL, near.CallTimeout, near.MaxRetries)
	} else {
		slog.Warn("No rpc endpoint for network, reads go through the near CLI and stored code cannot be verified", "network", near.Network)
	}

	f := factory.New(accounts.Factory, accounts.Factory, cli, viewer)
	f.StoreDeposit = deploy.StoreDeposit
	f.StoreGas = deploy.StoreGas
	return cli, f
}

// newBuilder returns a builder running in the build directory, falling back
// to the repository path.
func newBuilder(cfg config.RunConfig) *build.Builder {
	dir := cfg.Build.Dir
	if dir == "" {
		dir = cfg.Artifacts.RepoPath
	}
	return build.New(cfg.Build.Command, dir, appFs, client.ProcessExecutor{})
}

func newOutputHandler(ctx context.Context, conn string) (output.OutputHandler, error) {
	if conn == "" {
		return output.NewLogHandler(slog.Default()), nil
	}
	h, err := postgresql.NewPostgresOutputHandler(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return h, nil
}

// loadConfig reads the run configuration and validates the parts every
// chain command needs.
func loadConfig() (config.RunConfig, error) {
	cfg, err := config.LoadRunConfigFromCLI()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Near.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid near configuration: %w", err)
	}
	if err := cfg.Accounts.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid account configuration: %w", err)
	}
	return cfg, nil
}
