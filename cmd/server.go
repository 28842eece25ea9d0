package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/pwmblock/pkg/controller"
)

var listen string

// serverCmd represents the serve command
var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the PWM controller over HTTP",
	Long: `Serves a small JSON API for the PWM controller:

  GET  /api/frequency
  PUT  /api/frequency          {"hz": 50}
  PUT  /api/channels/{channel} {"on_us": 1500} | {"percent": 0.5} | {"on": 0, "off": 307}
  POST /api/clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen = listen
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
		if err := controller.NewServer(hw.driver, cfg.Listen, logger).Start(ctx); err != nil {
			return err
		}

		fmt.Println("pwmblock server finished")
		return nil
	},
}

func init() {
	serverCmd.Flags().StringVar(&listen, "listen", "0.0.0.0:8080", "listen address")
	rootCmd.AddCommand(serverCmd)
}
