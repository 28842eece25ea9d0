package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Seann-Moser/pwmblock/pkg/controller"
	"github.com/Seann-Moser/pwmblock/pkg/io"
	"github.com/Seann-Moser/pwmblock/pkg/logging"
	"github.com/Seann-Moser/pwmblock/pkg/pca9685"
)

var (
	cfgFile  string
	bus      int
	address  uint8
	backend  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pwmblock",
	Short: "Drive a PCA9685 16-channel PWM controller over I2C",
	Long: `pwmblock programs a PCA9685 PWM controller for RC servos and similar
actuators: it sets the PWM frequency and per-channel pulse widths.

Settings are read from a JSON config file and can be overridden with flags.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", controller.ConfigFile, "config file")
	flags.IntVar(&bus, "bus", 1, "I2C bus number")
	flags.Uint8Var(&address, "address", pca9685.DefaultAddress, "PCA9685 I2C address")
	flags.StringVar(&backend, "backend", controller.BackendPeriph, "bus backend: periph or gobot")
	flags.StringVar(&logLevel, "log-level", "info", "log level")
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (controller.Configuration, error) {
	cfg, err := controller.LoadConfiguration(cfgFile)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("bus") {
		cfg.Bus = bus
	}
	if flags.Changed("address") {
		cfg.Address = address
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	return cfg, cfg.Validate()
}

func newLogger() (*zap.SugaredLogger, error) {
	return logging.NewLogger("pwmblock", logLevel)
}

// hardware is the driver plus the GPIO lines it was opened with.
type hardware struct {
	driver *pca9685.Driver
	gpio   *io.GPIO
	stop   <-chan io.ButtonEvent
}

func openTransport(cfg controller.Configuration) (pca9685.Transport, error) {
	if cfg.Backend == controller.BackendGobot {
		g, err := io.OpenGobot(cfg.Bus)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	p, err := io.OpenPeriph(cfg.Bus)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func openHardware(cfg controller.Configuration, logger *zap.SugaredLogger) (*hardware, error) {
	t, err := openTransport(cfg)
	if err != nil {
		return nil, err
	}
	hw := &hardware{}
	opts := []pca9685.Option{
		pca9685.WithAddress(cfg.Address),
		pca9685.WithFrequency(cfg.FrequencyHz),
		pca9685.WithLogger(logger.Named("pca9685")),
	}
	if cfg.OELine >= 0 || cfg.StopLine >= 0 {
		if hw.gpio, err = io.NewGPIO(cfg.GPIOChip); err != nil {
			return nil, multierr.Append(err, t.Close())
		}
	}
	if cfg.OELine >= 0 {
		oe, err := hw.gpio.OutputEnable(cfg.OELine)
		if err != nil {
			return nil, multierr.Combine(err, hw.gpio.Close(), t.Close())
		}
		opts = append(opts, pca9685.WithOutputEnable(oe))
	}
	if cfg.StopLine >= 0 {
		b, err := hw.gpio.WatchButton(cfg.StopLine)
		if err != nil {
			return nil, multierr.Combine(err, hw.gpio.Close(), t.Close())
		}
		hw.stop = b.Event
	}
	if hw.driver, err = pca9685.New(t, opts...); err != nil {
		if hw.gpio != nil {
			err = multierr.Append(err, hw.gpio.Close())
		}
		return nil, errors.Wrapf(err, "open pca9685 at 0x%02x on bus %d", cfg.Address, cfg.Bus)
	}
	logger.Infow("pca9685 opened", "bus", cfg.Bus, "address", cfg.Address, "backend", cfg.Backend)
	return hw, nil
}

// Close runs the driver teardown before the GPIO lines go away.
func (hw *hardware) Close() error {
	err := hw.driver.Close()
	if hw.gpio != nil {
		err = multierr.Append(err, hw.gpio.Close())
	}
	return err
}

// withSignals cancels the returned context on SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
