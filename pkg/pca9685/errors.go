package pca9685

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange is returned, wrapped in a *RangeError, for any argument
	// the chip cannot represent.
	ErrOutOfRange = errors.New("pca9685: value out of range")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("pca9685: driver closed")
)

// RangeError describes a rejected argument.
type RangeError struct {
	Param string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("pca9685: %s %g out of range [%g, %g]", e.Param, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}
