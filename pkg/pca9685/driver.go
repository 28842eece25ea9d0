// Package pca9685 drives the NXP PCA9685 16-channel, 12-bit PWM controller
// over I2C.
//
// The driver programs the oscillator prescaler for a requested PWM frequency
// and sets each channel's on and off tick within the 4096-tick cycle. It
// assumes it is the only writer to the chip for its lifetime.
//
// # Datasheet
//
// https://www.nxp.com/docs/en/data-sheet/PCA9685.pdf
package pca9685

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Transport is the bus access the driver needs.
type Transport interface {
	// Address selects the device the following transactions go to.
	Address(addr uint8) error
	WriteRegister(reg uint8, data ...byte) error
	ReadRegister(reg uint8) (byte, error)
	Close() error
}

// OutputEnabler controls the chip's active-low OE pin.
type OutputEnabler interface {
	Enable() error
	Disable() error
}

// Driver is a PCA9685 on a bus.
type Driver struct {
	mu          sync.Mutex
	bus         Transport
	addr        uint8
	initHz      float64
	freq        FrequencyState
	drive       Drive
	oe          OutputEnabler
	logger      *zap.SugaredLogger
	sleep       func(time.Duration)
	settleDelay time.Duration
	closed      bool
}

// New takes ownership of t, initializes the chip and programs the default
// frequency. On error t has already been closed.
func New(t Transport, opts ...Option) (*Driver, error) {
	d := &Driver{
		bus:         t,
		addr:        DefaultAddress,
		initHz:      DefaultFrequency,
		drive:       TotemPole,
		logger:      zap.NewNop().Sugar(),
		sleep:       time.Sleep,
		settleDelay: SettleDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.freq = newFrequencyState(DefaultFrequency)
	if err := d.init(); err != nil {
		err = errors.Wrap(err, "pca9685: init")
		if d.oe != nil {
			err = multierr.Append(err, d.oe.Disable())
		}
		return nil, multierr.Append(err, t.Close())
	}
	d.logger.Debugw("pca9685 ready", "address", d.addr, "frequency_hz", d.freq.Hz)
	return d, nil
}

func (d *Driver) init() error {
	if err := d.clear(); err != nil {
		return err
	}
	if d.oe != nil {
		if err := d.oe.Enable(); err != nil {
			return errors.Wrap(err, "enable outputs")
		}
	}
	if err := d.writeReg(Mode2, d.drive.mode2()&^mode2Invert); err != nil {
		return err
	}
	d.settle()
	if err := d.setSleep(false); err != nil {
		return err
	}
	return d.setFreq(d.initHz)
}

// Close clears every output, puts the chip to sleep and releases the bus.
// All steps run even when one fails.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	if cerr := d.clear(); cerr != nil {
		d.logger.Warnw("failed to clear outputs on close", "error", cerr)
		err = multierr.Append(err, cerr)
	}
	if serr := d.setSleep(true); serr != nil {
		d.logger.Warnw("failed to sleep chip on close", "error", serr)
		err = multierr.Append(err, serr)
	}
	if d.oe != nil {
		if oerr := d.oe.Disable(); oerr != nil {
			d.logger.Warnw("failed to disable outputs on close", "error", oerr)
			err = multierr.Append(err, oerr)
		}
	}
	if berr := d.bus.Close(); berr != nil {
		d.logger.Warnw("failed to release bus", "error", berr)
		err = multierr.Append(err, berr)
	}
	return err
}

// Address returns the chip address.
func (d *Driver) Address() uint8 {
	return d.addr
}

// Frequency returns the cached frequency state.
func (d *Driver) Frequency() FrequencyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freq
}

// SetFreq programs the prescaler for freqHz.
func (d *Driver) SetFreq(freqHz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.setFreq(freqHz)
}

func (d *Driver) setFreq(freqHz float64) error {
	prescale, err := Prescale(freqHz)
	if err != nil {
		return err
	}
	mode1, err := d.readReg(Mode1)
	if err != nil {
		return err
	}
	c := prescaleChange{d: d, mode1: mode1, prescale: prescale, step: stepAwake}
	if err := c.run(); err != nil {
		return err
	}
	d.freq = newFrequencyState(freqHz)
	d.logger.Debugw("frequency set", "frequency_hz", freqHz, "prescale", prescale)
	return nil
}

// SetPWOnOff sets the tick at which channel turns on and the tick at which
// it turns off.
func (d *Driver) SetPWOnOff(channel int, on, off uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.setPWOnOff(channel, on, off)
}

func (d *Driver) setPWOnOff(channel int, on, off uint16) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	if on > MaxCount {
		return &RangeError{Param: "on_count", Value: float64(on), Min: 0, Max: MaxCount}
	}
	if off > MaxCount {
		return &RangeError{Param: "off_count", Value: float64(off), Min: 0, Max: MaxCount}
	}
	base, _ := ChannelAddr(channel, OnL)
	for i, b := range [...]byte{byte(on), byte(on >> 8), byte(off), byte(off >> 8)} {
		if err := d.writeAddr(base+uint8(i), b); err != nil {
			return errors.Wrapf(err, "channel %d %s", channel, LEDField(i))
		}
	}
	return nil
}

// SetPW turns channel on at tick 0 for onUs microseconds of each cycle.
func (d *Driver) SetPW(channel int, onUs float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.setPW(channel, onUs)
}

func (d *Driver) setPW(channel int, onUs float64) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	count, err := Count(onUs, d.freq.PeriodUs)
	if err != nil {
		return err
	}
	return d.setPWOnOff(channel, 0, count)
}

// SetPulse is SetPW with the width as a duration.
func (d *Driver) SetPulse(channel int, width time.Duration) error {
	return d.SetPW(channel, float64(width)/float64(time.Microsecond))
}

// SetPercentOn keeps channel high for the fraction pct of each cycle.
func (d *Driver) SetPercentOn(channel int, pct float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !(pct >= 0 && pct <= 1) {
		return &RangeError{Param: "percent", Value: pct, Min: 0, Max: 1}
	}
	return d.setPW(channel, pct*d.freq.PeriodUs)
}

// Clear forces every output low through the broadcast register.
func (d *Driver) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.clear()
}

func (d *Driver) clear() error {
	return d.writeReg(AllLEDOffH, ledFullOff)
}

// SetSleep stops (true) or starts (false) the oscillator.
func (d *Driver) SetSleep(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.setSleep(on)
}

func (d *Driver) setSleep(on bool) error {
	mode1, err := d.readReg(Mode1)
	if err != nil {
		return err
	}
	mode1 &^= mode1Restart
	if on {
		mode1 |= mode1Sleep
	} else {
		mode1 &^= mode1Sleep
	}
	if err := d.writeReg(Mode1, mode1); err != nil {
		return err
	}
	d.settle()
	return nil
}

func (d *Driver) settle() {
	d.sleep(d.settleDelay)
}

func (d *Driver) writeReg(r Register, b byte) error {
	if err := d.bus.Address(d.addr); err != nil {
		return errors.Wrapf(err, "select 0x%02x", d.addr)
	}
	return errors.Wrapf(d.bus.WriteRegister(r.Addr(), b), "write %s", r)
}

func (d *Driver) writeAddr(reg uint8, b byte) error {
	if err := d.bus.Address(d.addr); err != nil {
		return errors.Wrapf(err, "select 0x%02x", d.addr)
	}
	return errors.Wrapf(d.bus.WriteRegister(reg, b), "write 0x%02x", reg)
}

func (d *Driver) readReg(r Register) (byte, error) {
	if err := d.bus.Address(d.addr); err != nil {
		return 0, errors.Wrapf(err, "select 0x%02x", d.addr)
	}
	b, err := d.bus.ReadRegister(r.Addr())
	if err != nil {
		return 0, errors.Wrapf(err, "read %s", r)
	}
	return b, nil
}
