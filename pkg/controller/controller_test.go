package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/Seann-Moser/pwmblock/pkg/io"
	"github.com/Seann-Moser/pwmblock/pkg/pca9685"
)

type fakePWM struct {
	freq    pca9685.FrequencyState
	widths  []float64
	percent []float64
	onOff   [][2]uint16
	clears  int
	err     error
}

func newFakePWM() *fakePWM {
	return &fakePWM{freq: pca9685.FrequencyState{Hz: 100, PeriodUs: 10000}}
}

func (f *fakePWM) SetFreq(hz float64) error {
	if f.err != nil {
		return f.err
	}
	if _, err := pca9685.Prescale(hz); err != nil {
		return err
	}
	f.freq = pca9685.FrequencyState{Hz: hz, PeriodUs: 1e6 / hz}
	return nil
}

func (f *fakePWM) SetPW(channel int, onUs float64) error {
	if f.err != nil {
		return f.err
	}
	f.widths = append(f.widths, onUs)
	return nil
}

func (f *fakePWM) SetPercentOn(channel int, pct float64) error {
	f.percent = append(f.percent, pct)
	return f.err
}

func (f *fakePWM) SetPWOnOff(channel int, on, off uint16) error {
	if channel > 15 {
		return &pca9685.RangeError{Param: "channel", Value: float64(channel), Max: 15}
	}
	f.onOff = append(f.onOff, [2]uint16{on, off})
	return f.err
}

func (f *fakePWM) Clear() error {
	f.clears++
	return nil
}

func (f *fakePWM) Frequency() pca9685.FrequencyState {
	return f.freq
}

func TestLoadConfiguration(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadConfiguration(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, config, test.ShouldResemble, DefaultConfiguration())

	path := filepath.Join(dir, ConfigFile)
	err = os.WriteFile(path, []byte(`{"bus": 0, "backend": "gobot", "frequencyHz": 50, "sweep": {"startMs": 1.5, "lowerMs": 1, "upperMs": 2, "stepMs": 0.05, "interval": 20000000}}`), 0o644)
	test.That(t, err, test.ShouldBeNil)
	config, err = LoadConfiguration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, config.Bus, test.ShouldEqual, 0)
	test.That(t, config.Backend, test.ShouldEqual, BackendGobot)
	test.That(t, config.FrequencyHz, test.ShouldEqual, 50.0)
	test.That(t, config.Sweep.Interval, test.ShouldEqual, 20*time.Millisecond)
	test.That(t, config.Address, test.ShouldEqual, pca9685.DefaultAddress)
	test.That(t, config.OELine, test.ShouldEqual, -1)

	err = os.WriteFile(path, []byte(`{"bus": `), 0o644)
	test.That(t, err, test.ShouldBeNil)
	_, err = LoadConfiguration(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parse")
}

func TestConfigurationValidate(t *testing.T) {
	test.That(t, DefaultConfiguration().Validate(), test.ShouldBeNil)

	for name, mutate := range map[string]func(*Configuration){
		"backend":   func(c *Configuration) { c.Backend = "mraa" },
		"frequency": func(c *Configuration) { c.FrequencyHz = 5000 },
		"channel":   func(c *Configuration) { c.Channel = 16 },
		"step":      func(c *Configuration) { c.Sweep.StepMs = 0 },
		"interval":  func(c *Configuration) { c.Sweep.Interval = 0 },
		"bounds":    func(c *Configuration) { c.Sweep.LowerMs = 3 },
		"start":     func(c *Configuration) { c.Sweep.StartMs = 0.5 },
		"period": func(c *Configuration) {
			c.FrequencyHz = 1000
			c.Sweep.UpperMs = 0.99
			c.Sweep.LowerMs = 0.1
			c.Sweep.StartMs = 0.5
		},
	} {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfiguration()
			mutate(&c)
			test.That(t, c.Validate(), test.ShouldNotBeNil)
		})
	}
}

func TestSweeperSequence(t *testing.T) {
	pwm := newFakePWM()
	s := NewSweeper(pwm, 0, SweepSetting{StartMs: 1.65, LowerMs: 1.1, UpperMs: 2.1, StepMs: 0.02, Interval: time.Millisecond}, nil)

	// 23 steps up from 1.65 passes 2.1, then it turns around
	for i := 0; i < 60; i++ {
		test.That(t, s.Step(), test.ShouldBeNil)
	}
	test.That(t, pwm.widths[0], test.ShouldAlmostEqual, 1650, 1e-6)
	test.That(t, pwm.widths[1], test.ShouldAlmostEqual, 1670, 1e-6)
	peak := 0.0
	for _, us := range pwm.widths {
		if us > peak {
			peak = us
		}
	}
	test.That(t, peak, test.ShouldAlmostEqual, 2110, 1e-6)
	test.That(t, pwm.widths[23], test.ShouldAlmostEqual, 2110, 1e-6)
	test.That(t, pwm.widths[24], test.ShouldBeLessThan, pwm.widths[23])

	for i := 0; i < 60; i++ {
		test.That(t, s.Step(), test.ShouldBeNil)
	}
	for _, us := range pwm.widths {
		test.That(t, us, test.ShouldBeGreaterThanOrEqualTo, 1090-1e-6)
		test.That(t, us, test.ShouldBeLessThanOrEqualTo, 2110+1e-6)
	}
	test.That(t, pwm.clears, test.ShouldEqual, 0)
}

func TestSweeperRun(t *testing.T) {
	setting := DefaultConfiguration().Sweep
	setting.Interval = time.Hour

	t.Run("stop button", func(t *testing.T) {
		pwm := newFakePWM()
		stop := make(chan io.ButtonEvent, 1)
		stop <- io.ButtonEvent{Pressed: true}
		err := NewSweeper(pwm, 0, setting, nil).Run(context.Background(), stop)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pwm.widths, test.ShouldHaveLength, 1)
		test.That(t, pwm.clears, test.ShouldEqual, 1)
	})

	t.Run("context", func(t *testing.T) {
		pwm := newFakePWM()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewSweeper(pwm, 0, setting, nil).Run(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pwm.clears, test.ShouldEqual, 1)
	})

	t.Run("driver error", func(t *testing.T) {
		pwm := newFakePWM()
		pwm.err = errors.New("bus gone")
		err := NewSweeper(pwm, 0, setting, nil).Run(context.Background(), nil)
		test.That(t, errors.Is(err, pwm.err), test.ShouldBeTrue)
		test.That(t, pwm.clears, test.ShouldEqual, 1)
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer(t *testing.T) {
	pwm := newFakePWM()
	h := NewServer(pwm, "127.0.0.1:0", nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/frequency", "")
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Body.String(), test.ShouldEqual, "{\"hz\":100,\"period_us\":10000}\n")

	rec = do(t, h, http.MethodPut, "/api/frequency", `{"hz": 50}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Body.String(), test.ShouldContainSubstring, `"period_us":20000`)

	rec = do(t, h, http.MethodPut, "/api/frequency", `{"hz": 4000}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)

	rec = do(t, h, http.MethodPut, "/api/channels/3", `{"on_us": 1500}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, pwm.widths, test.ShouldResemble, []float64{1500})

	rec = do(t, h, http.MethodPut, "/api/channels/3", `{"percent": 0.25}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, pwm.percent, test.ShouldResemble, []float64{0.25})

	rec = do(t, h, http.MethodPut, "/api/channels/3", `{"on": 0, "off": 676}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, pwm.onOff, test.ShouldResemble, [][2]uint16{{0, 676}})

	rec = do(t, h, http.MethodPut, "/api/channels/20", `{"on": 0, "off": 1}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)

	rec = do(t, h, http.MethodPut, "/api/channels/3", `{"on_us": 1500, "percent": 0.1}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)

	rec = do(t, h, http.MethodPut, "/api/channels/3", `not json`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)

	rec = do(t, h, http.MethodPut, "/api/channels/x", `{"on_us": 1}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusNotFound)

	rec = do(t, h, http.MethodPost, "/api/clear", "")
	test.That(t, rec.Code, test.ShouldEqual, http.StatusNoContent)
	test.That(t, pwm.clears, test.ShouldEqual, 1)

	pwm.err = errors.New("bus gone")
	rec = do(t, h, http.MethodPut, "/api/channels/1", `{"on_us": 1500}`)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusInternalServerError)
}

func TestServerStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(newFakePWM(), "127.0.0.1:0", nil).Start(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
