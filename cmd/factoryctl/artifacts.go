package factoryctl

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/manifest-network/factoryctl/internal/codehash"
	"github.com/manifest-network/factoryctl/internal/config"
	"github.com/manifest-network/factoryctl/internal/factory"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the contract build command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRunConfigFromCLI()
		if err != nil {
			return err
		}
		return newBuilder(cfg).Run(cmd.Context())
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash <wasm>...",
	Short: "Print the base58 code hash of contract binaries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs := make([]codehash.ArtifactSpec, 0, len(args))
		for _, path := range args {
			specs = append(specs, codehash.ArtifactSpec{Label: filepath.Base(path), Path: path})
		}
		artifacts, err := codehash.ReadArtifacts(cmd.Context(), appFs, specs)
		if err != nil {
			return err
		}
		for _, a := range artifacts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d\n", a.Hash, a.Path, len(a.Code))
		}
		return nil
	},
}

var storeCmd = &cobra.Command{
	Use:   "store <wasm>",
	Short: "Store a DAO contract binary in the factory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := codehash.ReadArtifact(appFs, filepath.Base(args[0]), args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		_, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		if _, err := f.Store(ctx, a); err != nil {
			if !errors.Is(err, factory.ErrAlreadyStored) {
				return err
			}
			slog.Warn("Code was already stored", "hash", a.Hash)
		}

		setLatest, err := cmd.Flags().GetBool("set-latest")
		if err != nil {
			return err
		}
		if setLatest {
			if err := f.SetCodeHash(ctx, a.Hash); err != nil {
				return err
			}
			slog.Info("Set latest code hash", "factory", f.Account, "hash", a.Hash)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Hash)
		return nil
	},
}

var disasmCmd = &cobra.Command{
	Use:   "disasm <in.wasm>",
	Short: "Convert a contract binary to the WebAssembly text format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		bin, err := cmd.Flags().GetString("wasm2wat")
		if err != nil {
			return err
		}
		cfg, err := config.LoadRunConfigFromCLI()
		if err != nil {
			return err
		}
		b := newBuilder(cfg)
		b.Wasm2Wat = bin
		return b.Disassemble(cmd.Context(), args[0], out)
	},
}

func init() {
	storeCmd.Flags().Bool("set-latest", false, "make the stored code the one new DAOs are created with")
	disasmCmd.Flags().StringP("output", "o", "", "output file (default <in>.wat)")
	disasmCmd.Flags().String("wasm2wat", "wasm2wat", "path to wasm2wat")
}
