package factoryctl

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manifest-network/factoryctl/internal/config"
	"github.com/manifest-network/factoryctl/internal/metrics"
	"github.com/manifest-network/factoryctl/internal/models"
	"github.com/manifest-network/factoryctl/internal/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deploy the factory, create and upgrade a DAO, then tear everything down",
	Long: `Runs the factory lifecycle. Phases can be selected to split the scenario
across invocations; resources created by a failed run are removed unless --keep is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRunConfigFromCLI()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx := cmd.Context()
		handler, err := newOutputHandler(ctx, cfg.PostgresConn)
		if err != nil {
			return err
		}
		defer func() {
			if err := handler.Close(); err != nil {
				slog.Warn("Failed to close journal", "error", err)
			}
		}()

		cli, f := newFactory(cfg.Near, cfg.Accounts, cfg.Deploy)
		runID := uuid.NewString()
		cleanup := &scenario.Cleanup{}
		lifecycle := scenario.NewLifecycle(cfg, scenario.Deps{
			Accounts: cli,
			Factory:  f,
			Builder:  newBuilder(cfg),
			Fs:       appFs,
			Handler:  handler,
		}, runID, cleanup)

		m := metrics.New()
		runner := &scenario.Runner{
			Handler:      handler,
			Metrics:      m,
			Cleanup:      cleanup,
			Keep:         cfg.Keep,
			ShowProgress: true,
		}
		run := &models.Run{
			ID:             runID,
			MasterAccount:  cfg.Accounts.Master,
			FactoryAccount: cfg.Accounts.Factory,
			DAOAccount:     cfg.Accounts.DAOAccount(),
			Network:        cfg.Near.Network,
			Phases:         cfg.Phases,
		}

		slog.Info("Starting run",
			"run", runID,
			"factory", cfg.Accounts.Factory,
			"dao", cfg.Accounts.DAOAccount(),
			"phases", cfg.Phases,
		)
		runErr := runner.Execute(ctx, run, lifecycle.Steps())

		if cfg.MetricsFile != "" {
			if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
				slog.Warn("Failed to write metrics", "error", err)
			}
		}
		if runErr != nil {
			return runErr
		}
		slog.Info("Run finished", "run", runID, "duration", run.FinishedAt.Sub(run.StartedAt))
		return nil
	},
}

func init() {
	runCmd.Flags().StringSlice("phases", config.AllPhases, "phases to run")
	runCmd.Flags().Bool("keep", false, "keep resources created before a failure")
	for _, name := range []string{"phases", "keep"} {
		cobra.CheckErr(viper.BindPFlag(name, runCmd.Flags().Lookup(name)))
	}
}
