package controller

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/Seann-Moser/pwmblock/pkg/pca9685"
)

// ConfigFile is read from the working directory when no path is given.
const ConfigFile = ".pwmblock.config.json"

const (
	BackendPeriph = "periph"
	BackendGobot  = "gobot"
)

type Configuration struct {
	Bus         int          `json:"bus"`
	Address     uint8        `json:"address"`
	Backend     string       `json:"backend"`
	FrequencyHz float64      `json:"frequencyHz"`
	Channel     int          `json:"channel"`
	Sweep       SweepSetting `json:"sweep"`
	Listen      string       `json:"listen"`
	GPIOChip    string       `json:"gpioChip"`
	// negative offsets leave the line unused
	OELine   int `json:"oeLine"`
	StopLine int `json:"stopLine"`
}

// SweepSetting bounds the demonstration sweep, in milliseconds of pulse width.
type SweepSetting struct {
	StartMs  float64       `json:"startMs"`
	LowerMs  float64       `json:"lowerMs"`
	UpperMs  float64       `json:"upperMs"`
	StepMs   float64       `json:"stepMs"`
	Interval time.Duration `json:"interval"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Bus:         1,
		Address:     pca9685.DefaultAddress,
		Backend:     BackendPeriph,
		FrequencyHz: pca9685.DefaultFrequency,
		Channel:     0,
		Sweep: SweepSetting{
			StartMs:  1.65,
			LowerMs:  1.1,
			UpperMs:  2.1,
			StepMs:   0.02,
			Interval: 50 * time.Millisecond,
		},
		Listen:   "0.0.0.0:8080",
		GPIOChip: "gpiochip0",
		OELine:   -1,
		StopLine: -1,
	}
}

// LoadConfiguration overlays the JSON file at path on the defaults. A
// missing file is not an error.
func LoadConfiguration(path string) (Configuration, error) {
	config := DefaultConfiguration()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return config, errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "parse %s", path)
	}
	return config, config.Validate()
}

func (c Configuration) Validate() error {
	switch c.Backend {
	case BackendPeriph, BackendGobot:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := pca9685.Prescale(c.FrequencyHz); err != nil {
		return err
	}
	if _, err := pca9685.ChannelAddr(c.Channel, pca9685.OnL); err != nil {
		return err
	}
	s := c.Sweep
	if s.StepMs <= 0 || s.Interval <= 0 {
		return errors.New("sweep step and interval must be positive")
	}
	if s.LowerMs < 0 || s.LowerMs >= s.UpperMs {
		return errors.Errorf("sweep bounds [%g, %g] ms are inverted or negative", s.LowerMs, s.UpperMs)
	}
	if s.StartMs < s.LowerMs || s.StartMs > s.UpperMs {
		return errors.Errorf("sweep start %g ms outside [%g, %g]", s.StartMs, s.LowerMs, s.UpperMs)
	}
	// the sweep overshoots each bound by up to one step before turning
	periodMs := 1000 / c.FrequencyHz
	if s.UpperMs+s.StepMs > periodMs {
		return errors.Errorf("sweep upper bound %g ms does not fit a %g ms period", s.UpperMs, periodMs)
	}
	return nil
}
