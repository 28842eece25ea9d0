package io

import (
	"fmt"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// ErrNoAddress is returned by a transaction issued before Address.
var ErrNoAddress = errors.New("io: no device address selected")

// PeriphBus is a register transport over a periph.io I2C bus.
type PeriphBus struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenPeriph opens /dev/i2c-<bus>. Most Raspberry Pi boards use bus 1.
func OpenPeriph(bus int) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	b, err := i2creg.Open(BusName(bus))
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %d", bus)
	}
	return NewPeriph(b), nil
}

// NewPeriph wraps an already open bus. Close closes it.
func NewPeriph(bus i2c.BusCloser) *PeriphBus {
	return &PeriphBus{bus: bus}
}

// BusName is the periph registry name of the numbered bus.
func BusName(bus int) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}

func (p *PeriphBus) Address(addr uint8) error {
	if p.dev == nil || p.dev.Addr != uint16(addr) {
		p.dev = &i2c.Dev{Bus: p.bus, Addr: uint16(addr)}
	}
	return nil
}

// WriteRegister sends reg followed by data in one transaction.
func (p *PeriphBus) WriteRegister(reg uint8, data ...byte) error {
	if p.dev == nil {
		return ErrNoAddress
	}
	buf := append([]byte{reg}, data...)
	if err := p.dev.Tx(buf, nil); err != nil {
		return errors.Wrapf(err, "i2c write 0x%02x", reg)
	}
	return nil
}

func (p *PeriphBus) ReadRegister(reg uint8) (byte, error) {
	if p.dev == nil {
		return 0, ErrNoAddress
	}
	var r [1]byte
	if err := p.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, errors.Wrapf(err, "i2c read 0x%02x", reg)
	}
	return r[0], nil
}

func (p *PeriphBus) Close() error {
	return p.bus.Close()
}
