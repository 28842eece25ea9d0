package pca9685

import "fmt"

// Register is one of the named PCA9685 registers this driver touches.
type Register int

const (
	Mode1 Register = iota
	Mode2
	LED0OnL
	LED0OnH
	LED0OffL
	LED0OffH
	AllLEDOnL
	AllLEDOnH
	AllLEDOffL
	AllLEDOffH
	PreScale
)

var registerAddrs = [...]uint8{
	Mode1:      0x00,
	Mode2:      0x01,
	LED0OnL:    0x06,
	LED0OnH:    0x07,
	LED0OffL:   0x08,
	LED0OffH:   0x09,
	AllLEDOnL:  0xFA,
	AllLEDOnH:  0xFB,
	AllLEDOffL: 0xFC,
	AllLEDOffH: 0xFD,
	PreScale:   0xFE,
}

var registerNames = [...]string{
	Mode1:      "MODE1",
	Mode2:      "MODE2",
	LED0OnL:    "LED0_ON_L",
	LED0OnH:    "LED0_ON_H",
	LED0OffL:   "LED0_OFF_L",
	LED0OffH:   "LED0_OFF_H",
	AllLEDOnL:  "ALL_LED_ON_L",
	AllLEDOnH:  "ALL_LED_ON_H",
	AllLEDOffL: "ALL_LED_OFF_L",
	AllLEDOffH: "ALL_LED_OFF_H",
	PreScale:   "PRESCALE",
}

// Addr returns the register's address on the chip.
func (r Register) Addr() uint8 {
	return registerAddrs[r]
}

func (r Register) String() string {
	if r < 0 || int(r) >= len(registerNames) {
		return fmt.Sprintf("Register(%d)", int(r))
	}
	return registerNames[r]
}

// Bits
const (
	mode1AllCall byte = 0x01
	mode1Sleep   byte = 0x10
	mode1Restart byte = 0x80

	mode2OutDrv byte = 0x04
	mode2Invert byte = 0x10

	// bit 4 of any *_OFF_H register forces the output fully off
	ledFullOff byte = 0x10
)

const (
	// Channels is the number of PWM outputs on the chip.
	Channels = 16
	// MaxCount is the largest value of a 12-bit on/off count.
	MaxCount = 4095
	// CycleCounts is the number of ticks in one PWM cycle.
	CycleCounts = 4096

	channelStride = 4
)

// LEDField selects one of the four timing bytes of a channel.
type LEDField int

const (
	OnL LEDField = iota
	OnH
	OffL
	OffH
)

func (f LEDField) String() string {
	switch f {
	case OnL:
		return "ON_L"
	case OnH:
		return "ON_H"
	case OffL:
		return "OFF_L"
	case OffH:
		return "OFF_H"
	}
	return fmt.Sprintf("LEDField(%d)", int(f))
}

// ChannelAddr returns the address of field f for the given channel.
func ChannelAddr(channel int, f LEDField) (uint8, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	if f < OnL || f > OffH {
		return 0, &RangeError{Param: "field", Value: float64(f), Min: float64(OnL), Max: float64(OffH)}
	}
	return LED0OnL.Addr() + uint8(f) + uint8(channelStride*channel), nil
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= Channels {
		return &RangeError{Param: "channel", Value: float64(channel), Min: 0, Max: Channels - 1}
	}
	return nil
}
