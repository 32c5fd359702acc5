// Package factoryctl implements the factoryctl command line.
package factoryctl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	appFs   = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:           "factoryctl",
	Short:         "Deploy, upgrade and tear down DAO factory contracts on NEAR",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setLogLevel(viper.GetString("logLevel"))
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./factoryctl.yaml)")
	pf.StringP("logLevel", "l", "info", "log level (debug|info|warn|error)")

	pf.String("near-bin", "near", "path to the near CLI")
	pf.String("network", "testnet", "NEAR network, exported as NEAR_ENV")
	pf.String("node-url", "", "node URL passed to the near CLI")
	pf.String("rpc-url", "", "JSON-RPC endpoint for reads (default the public endpoint of the network)")
	pf.Duration("call-timeout", defaultCallTimeout, "timeout of a single near CLI or RPC call")
	pf.Uint("max-retries", 3, "RPC retries")

	pf.String("master-account", "", "account funding the factory")
	pf.String("factory-account", "", "factory account (default sputnikdao-factory2.<master>)")
	pf.String("dao-name", "", "DAO name (default dao-<random>)")
	pf.StringSlice("dao-policy", nil, "DAO council members (default the master account)")

	pf.String("repo-path", ".", "contracts repository")
	pf.String("factory-wasm", "sputnikdao-factory2/res/sputnikdao_factory2.wasm", "factory contract binary")
	pf.String("old-dao-wasm", "sputnikdao2/res/old_sputnikdao2.wasm", "DAO contract binary the DAO is created with")
	pf.String("new-dao-wasm", "sputnikdao2/res/sputnikdao2.wasm", "DAO contract binary the DAO is upgraded to")
	pf.String("build-command", "./build.sh", "command building the contracts")
	pf.String("build-dir", "", "directory the build command runs in (default the repo path)")
	pf.Bool("skip-build", false, "do not run the build command")

	pf.String("initial-balance", "25", "factory account initial balance in NEAR")
	pf.Uint64("create-gas", defaultGas, "gas attached to create")
	pf.String("create-deposit", "10", "deposit attached to create in NEAR")
	pf.Uint64("upgrade-gas", defaultGas, "gas attached to upgrade")
	pf.Uint64("store-gas", defaultGas, "gas attached to store")
	pf.String("store-deposit", "", "deposit attached to store in NEAR (default computed from the code size)")
	pf.String("dao-purpose", "testing", "DAO purpose")
	pf.String("dao-metadata", "", "DAO metadata")
	pf.StringSlice("checks", []string{"get_10_for_testing=10"}, "view calls on the upgraded DAO as method=expected")
	pf.Duration("verify-timeout", defaultVerifyTimeout, "how long reads are retried before a check fails")

	pf.String("postgres-conn", "", "PostgreSQL connection string for the run journal")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile")

	cobra.CheckErr(viper.BindPFlags(pf))

	rootCmd.AddCommand(
		runCmd,
		buildCmd,
		hashCmd,
		storeCmd,
		daosCmd,
		createDAOCmd,
		upgradeCmd,
		teardownCmd,
		disasmCmd,
		metadataCmd,
		ownerCmd,
	)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	viper.SetEnvPrefix("FACTORYCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("factoryctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			slog.Error("Failed to read config", "error", err)
			os.Exit(1)
		}
	}
}

func setLogLevel(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
	return nil
}
