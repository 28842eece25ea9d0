package io

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"
)

// GobotBus is a register transport over a gobot I2C connector.
type GobotBus struct {
	connector i2c.Connector
	bus       int
	conn      i2c.Connection
	addr      int
	finalize  func() error
}

// OpenGobot connects the Raspberry Pi adaptor and uses its numbered bus.
// A negative bus selects the adaptor's default.
func OpenGobot(bus int) (*GobotBus, error) {
	r := raspi.NewAdaptor()
	if err := r.Connect(); err != nil {
		return nil, errors.Wrap(err, "connect raspi adaptor")
	}
	if bus < 0 {
		bus = r.GetDefaultBus()
	}
	g := NewGobot(r, bus)
	g.finalize = r.Finalize
	return g, nil
}

// NewGobot uses connections from c on bus.
func NewGobot(c i2c.Connector, bus int) *GobotBus {
	return &GobotBus{connector: c, bus: bus, addr: -1}
}

// Address opens a connection to addr, reusing the current one when it
// already points there.
func (g *GobotBus) Address(addr uint8) error {
	if g.conn != nil && g.addr == int(addr) {
		return nil
	}
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			return errors.Wrapf(err, "close connection to 0x%02x", g.addr)
		}
		g.conn = nil
	}
	conn, err := g.connector.GetConnection(int(addr), g.bus)
	if err != nil {
		return errors.Wrapf(err, "connect to 0x%02x on bus %d", addr, g.bus)
	}
	g.conn, g.addr = conn, int(addr)
	return nil
}

func (g *GobotBus) WriteRegister(reg uint8, data ...byte) error {
	if g.conn == nil {
		return ErrNoAddress
	}
	var err error
	if len(data) == 1 {
		err = g.conn.WriteByteData(reg, data[0])
	} else {
		err = g.conn.WriteBlockData(reg, data)
	}
	return errors.Wrapf(err, "i2c write 0x%02x", reg)
}

func (g *GobotBus) ReadRegister(reg uint8) (byte, error) {
	if g.conn == nil {
		return 0, ErrNoAddress
	}
	b, err := g.conn.ReadByteData(reg)
	if err != nil {
		return 0, errors.Wrapf(err, "i2c read 0x%02x", reg)
	}
	return b, nil
}

// Close releases the connection and, when OpenGobot created it, the adaptor.
func (g *GobotBus) Close() error {
	var err error
	if g.conn != nil {
		err = g.conn.Close()
		g.conn = nil
	}
	if g.finalize != nil {
		err = multierr.Append(err, g.finalize())
	}
	return err
}
