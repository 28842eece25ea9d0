// Package controller holds the clients of the PWM driver: the servo sweep
// demonstration and the HTTP control surface.
package controller

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Seann-Moser/pwmblock/pkg/io"
)

const usPerMs = 1000

// PulseWidthSetter is the part of the driver the sweep needs.
type PulseWidthSetter interface {
	SetPW(channel int, onUs float64) error
	Clear() error
}

// Sweeper swings one servo channel back and forth between two pulse widths.
type Sweeper struct {
	pwm     PulseWidthSetter
	channel int
	setting SweepSetting
	logger  *zap.SugaredLogger

	widthMs float64
	up      bool
}

func NewSweeper(pwm PulseWidthSetter, channel int, setting SweepSetting, logger *zap.SugaredLogger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sweeper{
		pwm:     pwm,
		channel: channel,
		setting: setting,
		logger:  logger,
		widthMs: setting.StartMs,
		up:      true,
	}
}

// Width is the pulse width in ms the next Step applies.
func (s *Sweeper) Width() float64 {
	return s.widthMs
}

// Step applies the current width, then moves it one step, turning around
// once it passes a bound.
func (s *Sweeper) Step() error {
	if err := s.pwm.SetPW(s.channel, s.widthMs*usPerMs); err != nil {
		return err
	}
	if s.up {
		s.widthMs += s.setting.StepMs
	} else {
		s.widthMs -= s.setting.StepMs
	}
	if s.widthMs > s.setting.UpperMs {
		s.up = false
	} else if s.widthMs < s.setting.LowerMs {
		s.up = true
	}
	return nil
}

// Run steps at the configured interval until ctx is done or stop reports a
// press, then clears every output.
func (s *Sweeper) Run(ctx context.Context, stop <-chan io.ButtonEvent) (err error) {
	defer func() {
		err = multierr.Append(err, s.pwm.Clear())
	}()
	ticker := time.NewTicker(s.setting.Interval)
	defer ticker.Stop()
	s.logger.Infow("sweeping", "channel", s.channel, "lower_ms", s.setting.LowerMs, "upper_ms", s.setting.UpperMs)
	for {
		if err := s.Step(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case evt := <-stop:
			if evt.Pressed {
				s.logger.Infow("stop button pressed")
				return nil
			}
		case <-ticker.C:
		}
	}
}
