package factoryctl

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/manifest-network/factoryctl/internal/factory"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata [code-hash]",
	Short: "List or store code version metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		store, err := flags.GetBool("store")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		_, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		if !store {
			list, err := f.Metadata(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		if len(args) != 1 {
			return errors.New("a code hash is required with --store")
		}
		m := factory.Metadata{CodeHash: args[0]}
		if m.Version, err = flags.GetString("version"); err != nil {
			return err
		}
		if m.CommitID, err = flags.GetString("commit"); err != nil {
			return err
		}
		if m.Readme, err = flags.GetString("readme"); err != nil {
			return err
		}
		if err := f.StoreMetadata(ctx, m); err != nil {
			return err
		}
		slog.Info("Stored code metadata", "factory", f.Account, "hash", m.CodeHash, "version", m.Version)
		return nil
	},
}

func init() {
	metadataCmd.Flags().Bool("store", false, "store metadata for the given code hash")
	metadataCmd.Flags().String("version", "", "code version")
	metadataCmd.Flags().String("commit", "", "commit id the code was built from")
	metadataCmd.Flags().String("readme", "", "readme text")
}
