package pca9685

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAddress is the chip address with all address pins low.
	DefaultAddress uint8 = 0x40
	// SettleDelay is the minimum wait after a mode-affecting write.
	SettleDelay = 5 * time.Millisecond
)

// Drive selects the output stage configuration written to MODE2.
type Drive int

const (
	// TotemPole drives outputs from VCC, as RC servos expect.
	TotemPole Drive = iota
	// OpenDrain leaves outputs floating when high.
	OpenDrain
)

func (d Drive) mode2() byte {
	if d == OpenDrain {
		return 0
	}
	return mode2OutDrv
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithAddress sets the chip address. Default DefaultAddress.
func WithAddress(addr uint8) Option {
	return func(d *Driver) { d.addr = addr }
}

// WithFrequency sets the frequency programmed during construction.
func WithFrequency(hz float64) Option {
	return func(d *Driver) { d.initHz = hz }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithOutputDrive(drive Drive) Option {
	return func(d *Driver) { d.drive = drive }
}

// WithOutputEnable hands the driver the chip's OE line. The driver enables it
// during construction and disables it on Close; the caller still owns it.
func WithOutputEnable(oe OutputEnabler) Option {
	return func(d *Driver) { d.oe = oe }
}

// WithSleeper replaces time.Sleep for the settle waits.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(d *Driver) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// WithSettleDelay lengthens the settle wait. Values below SettleDelay are
// raised to it.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Driver) {
		if delay < SettleDelay {
			delay = SettleDelay
		}
		d.settleDelay = delay
	}
}
