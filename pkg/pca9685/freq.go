package pca9685

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const (
	// OscillatorClock is the rate of the chip's internal oscillator in Hz.
	OscillatorClock = 25_000_000.0
	// DefaultFrequency is programmed at construction unless overridden.
	DefaultFrequency = 100.0

	minPrescale = 3 // hardware floor
	maxPrescale = 255
)

// FrequencyState is the cached PWM cycle rate and its period.
type FrequencyState struct {
	Hz       float64
	PeriodUs float64
}

func newFrequencyState(hz float64) FrequencyState {
	return FrequencyState{Hz: hz, PeriodUs: 1_000_000 / hz}
}

// Prescale returns the PRESCALE register value for freqHz.
//
// The datasheet formula is round(osc / (4096 * freq)) - 1; rounding adds 0.5
// and truncates.
func Prescale(freqHz float64) (uint8, error) {
	lo, hi := minFrequency(), maxFrequency()
	if !(freqHz >= lo && freqHz <= hi) {
		return 0, &RangeError{Param: "frequency", Value: freqHz, Min: lo, Max: hi}
	}
	v := math.Floor(OscillatorClock/(CycleCounts*freqHz) - 1 + 0.5)
	return uint8(math.Max(minPrescale, math.Min(maxPrescale, v))), nil
}

func minFrequency() float64 { return OscillatorClock / (CycleCounts * (maxPrescale + 1)) }
func maxFrequency() float64 { return OscillatorClock / (CycleCounts * (minPrescale + 1)) }

// Count converts an on-duration to ticks of a 4096-tick cycle of periodUs.
// A duration equal to the whole period saturates at MaxCount.
func Count(onUs, periodUs float64) (uint16, error) {
	if !(periodUs > 0) {
		return 0, &RangeError{Param: "period_us", Value: periodUs, Min: 0, Max: math.Inf(1)}
	}
	if math.IsNaN(onUs) || onUs < 0 || onUs > periodUs {
		return 0, &RangeError{Param: "on_us", Value: onUs, Min: 0, Max: periodUs}
	}
	c := math.Round(CycleCounts * onUs / periodUs)
	if c > MaxCount {
		c = MaxCount
	}
	return uint16(c), nil
}

type freqStep int

const (
	stepAwake freqStep = iota
	stepSleeping
	stepPrescaleSet
	stepWoken
	stepRestarted
)

func (s freqStep) String() string {
	switch s {
	case stepAwake:
		return "awake"
	case stepSleeping:
		return "sleeping"
	case stepPrescaleSet:
		return "prescale-set"
	case stepWoken:
		return "woken"
	case stepRestarted:
		return "restarted"
	}
	return fmt.Sprintf("freqStep(%d)", int(s))
}

// prescaleChange walks the chip through the only order in which it accepts a
// new prescaler: the oscillator has to be stopped while PRESCALE is written,
// and the channels resumed with RESTART once it runs again.
type prescaleChange struct {
	d        *Driver
	mode1    byte
	prescale uint8
	step     freqStep
}

func (c *prescaleChange) advance() error {
	awake := c.mode1 &^ (mode1Sleep | mode1Restart)
	switch c.step {
	case stepAwake:
		if err := c.d.writeReg(Mode1, (c.mode1&^mode1Restart)|mode1Sleep); err != nil {
			return err
		}
		c.step = stepSleeping
	case stepSleeping:
		if err := c.d.writeReg(PreScale, c.prescale); err != nil {
			return err
		}
		c.step = stepPrescaleSet
	case stepPrescaleSet:
		if err := c.d.writeReg(Mode1, awake); err != nil {
			return err
		}
		c.d.settle()
		c.step = stepWoken
	case stepWoken:
		if err := c.d.writeReg(Mode1, awake|mode1Restart); err != nil {
			return err
		}
		c.step = stepRestarted
	default:
		return errors.Errorf("pca9685: no transition out of %s", c.step)
	}
	return nil
}

func (c *prescaleChange) run() error {
	for c.step != stepRestarted {
		from := c.step
		if err := c.advance(); err != nil {
			return errors.Wrapf(err, "prescale change failed leaving %s", from)
		}
	}
	return nil
}
