package factoryctl

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/factory"
)

var daosCmd = &cobra.Command{
	Use:   "daos",
	Short: "List the DAOs created by the factory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		from, err := cmd.Flags().GetUint64("from")
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetUint64("limit")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		_, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		var daos []string
		if limit == 0 && from == 0 {
			daos, err = f.DAOList(ctx)
		} else {
			if limit == 0 {
				n, err := f.NumberDAOs(ctx)
				if err != nil {
					return err
				}
				limit = n
			}
			daos, err = f.DAOs(ctx, from, limit)
		}
		if err != nil {
			return err
		}
		for _, dao := range daos {
			fmt.Fprintln(cmd.OutOrStdout(), dao)
		}
		return nil
	},
}

var createDAOCmd = &cobra.Command{
	Use:   "create-dao <name>",
	Short: "Create a DAO from the factory's latest code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Accounts.DAOName = args[0]
		if err := cfg.Accounts.Validate(); err != nil {
			return err
		}

		_, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		account, err := f.Create(cmd.Context(), factory.CreateRequest{
			Name:     cfg.Accounts.DAOName,
			Purpose:  cfg.Deploy.DAOPurpose,
			Metadata: cfg.Deploy.DAOMetadata,
			Policy:   cfg.Deploy.Policy,
			Gas:      cfg.Deploy.CreateGas,
			Deposit:  cfg.Deploy.CreateDeposit,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), account)
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <dao-account>",
	Short: "Upgrade a DAO to the factory's latest code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)

		account := args[0]
		name, ok := strings.CutSuffix(account, "."+f.Account)
		if !ok || strings.Contains(name, ".") {
			return fmt.Errorf("%s is not a dao of factory %s", account, f.Account)
		}

		ctx := cmd.Context()
		if err := f.Upgrade(ctx, account, cfg.Deploy.UpgradeGas); err != nil {
			return err
		}
		if !f.CanVerifyCode() {
			return nil
		}

		latest, err := f.LatestCodeHash(ctx)
		if err != nil {
			return err
		}
		got, err := f.DAO(name).CodeHash(ctx)
		if err != nil {
			return err
		}
		if err := codehash.Verify(latest, got.String()); err != nil {
			slog.Warn("Dao code does not match the latest code yet", "dao", account, "error", err)
			return nil
		}
		slog.Info("Dao runs the latest code", "dao", account, "hash", got)
		return nil
	},
}

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Show or transfer the factory owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		newOwner, err := cmd.Flags().GetString("set")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		_, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		if newOwner != "" {
			if err := f.SetOwner(ctx, newOwner); err != nil {
				return err
			}
			slog.Info("Transferred factory ownership", "factory", f.Account, "owner", newOwner)
			return nil
		}
		owner, err := f.Owner(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), owner)
		return nil
	},
}

func init() {
	daosCmd.Flags().Uint64("from", 0, "index of the first DAO")
	daosCmd.Flags().Uint64("limit", 0, "number of DAOs to list, 0 for all")
	ownerCmd.Flags().String("set", "", "transfer ownership to this account")
}
