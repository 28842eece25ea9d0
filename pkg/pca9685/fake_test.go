package pca9685

import (
	"time"
)

type op struct {
	kind string
	reg  uint8
	val  byte
}

func w(reg, val uint8) op { return op{kind: "write", reg: reg, val: val} }
func r(reg uint8) op      { return op{kind: "read", reg: reg} }
func s() op               { return op{kind: "sleep"} }

// fakeBus is a register file that logs every transaction.
type fakeBus struct {
	ops       []op
	addrs     []uint8
	regs      map[uint8]byte
	failWrite map[uint8]error
	failRead  error
	closeErr  error
	closed    int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		// power-on values: ALLCALL and SLEEP set, OUTDRV set, 200 Hz
		regs:      map[uint8]byte{0x00: 0x11, 0x01: 0x04, 0xFE: 0x1E},
		failWrite: map[uint8]error{},
	}
}

func (f *fakeBus) Address(addr uint8) error {
	f.addrs = append(f.addrs, addr)
	return nil
}

func (f *fakeBus) WriteRegister(reg uint8, data ...byte) error {
	if err := f.failWrite[reg]; err != nil {
		return err
	}
	for i, b := range data {
		f.regs[reg+uint8(i)] = b
		f.ops = append(f.ops, w(reg+uint8(i), b))
	}
	return nil
}

func (f *fakeBus) ReadRegister(reg uint8) (byte, error) {
	if f.failRead != nil {
		return 0, f.failRead
	}
	f.ops = append(f.ops, r(reg))
	return f.regs[reg], nil
}

func (f *fakeBus) Close() error {
	f.closed++
	return f.closeErr
}

func (f *fakeBus) sleep(time.Duration) {
	f.ops = append(f.ops, s())
}

func (f *fakeBus) reset() {
	f.ops = nil
	f.addrs = nil
}

func (f *fakeBus) writes() []op {
	var out []op
	for _, o := range f.ops {
		if o.kind == "write" {
			out = append(out, o)
		}
	}
	return out
}

type fakeOE struct {
	calls      []string
	disableErr error
}

func (o *fakeOE) Enable() error {
	o.calls = append(o.calls, "enable")
	return nil
}

func (o *fakeOE) Disable() error {
	o.calls = append(o.calls, "disable")
	return o.disableErr
}
