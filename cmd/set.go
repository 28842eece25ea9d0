package cmd

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var setFreq float64

var setCmd = &cobra.Command{
	Use:   "set <channel> <on_us>",
	Short: "Hold one channel at a pulse width until interrupted",
	Long: `Sets the pulse width of one channel in microseconds and holds it until
SIGINT or SIGTERM. Outputs are cleared on exit.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrap(err, "channel")
		}
		onUs, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return errors.Wrap(err, "on_us")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("freq") {
			cfg.FrequencyHz = setFreq
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		hw, err := openHardware(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := hw.Close(); err != nil {
				logger.Warnw("teardown incomplete", "error", err)
			}
		}()

		if err := hw.driver.SetPW(channel, onUs); err != nil {
			return err
		}
		logger.Infow("holding pulse width", "channel", channel, "on_us", onUs, "frequency_hz", hw.driver.Frequency().Hz)

		ctx, cancel := withSignals(cmd.Context())
		defer cancel()
		<-ctx.Done()
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Turn every output off and put the chip to sleep",
	Args:  cobra.NoArgs,
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
			return err
		}
		return hw.Close()
	},
}

func init() {
	setCmd.Flags().Float64Var(&setFreq, "freq", 100, "PWM frequency in Hz")
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(clearCmd)
}
