package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/pwmblock/pkg/controller"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep a servo back and forth",
	Long: `Sweeps the configured channel between the lower and upper pulse widths
of the config file (1.1 ms to 2.1 ms by default) in 0.02 ms steps.

Stops on SIGINT, SIGTERM or a press of the stop button, and clears all
outputs before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		hw, err := openHardware(cfg, logger)
		if err != nil {
			logger.Errorw("failed to open hardware", "error", err)
			return err
		}
		defer func() {
			if err := hw.Close(); err != nil {
				logger.Warnw("teardown incomplete", "error", err)
			}
		}()

		ctx, cancel := withSignals(cmd.Context())
		defer cancel()
		if err := controller.NewSweeper(hw.driver, cfg.Channel, cfg.Sweep, logger).Run(ctx, hw.stop); err != nil {
			logger.Errorw("sweep stopped", "error", err)
			return err
		}

		fmt.Println("pwmblock sweep finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
