// Package io holds the hardware access the PWM driver and its clients sit
// on: I2C register transports and GPIO lines.
package io

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// GPIO hands out lines of one gpiocdev chip and releases them on Close.
type GPIO struct {
	chip  *gpiocdev.Chip
	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewGPIO opens the named chip, e.g. "gpiochip0".
func NewGPIO(chipName string) (*GPIO, error) {
	c, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", chipName)
	}
	return &GPIO{
		chip:  c,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

func (g *GPIO) request(offset int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.lines[offset]; ok {
		return nil, errors.Errorf("line %d already requested", offset)
	}
	l, err := g.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "request line %d", offset)
	}
	g.lines[offset] = l
	return l, nil
}

// OutputEnable requests the PCA9685 OE line. It starts high, outputs
// disabled.
func (g *GPIO) OutputEnable(offset int) (*OutputEnable, error) {
	l, err := g.request(offset, gpiocdev.AsOutput(1))
	if err != nil {
		return nil, err
	}
	return &OutputEnable{line: l}, nil
}

// Close releases every requested line as an input, then the chip.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	for offset, l := range g.lines {
		err = multierr.Append(err, l.Reconfigure(gpiocdev.AsInput))
		err = multierr.Append(err, l.Close())
		delete(g.lines, offset)
	}
	return multierr.Append(err, g.chip.Close())
}

type valueSetter interface {
	SetValue(value int) error
}

// OutputEnable drives the active-low OE pin.
type OutputEnable struct {
	line valueSetter
}

func (o *OutputEnable) Enable() error {
	return errors.Wrap(o.line.SetValue(0), "enable outputs")
}

func (o *OutputEnable) Disable() error {
	return errors.Wrap(o.line.SetValue(1), "disable outputs")
}
