package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Seann-Moser/pwmblock/pkg/pca9685"
)

// PWM is the driver surface the HTTP API exposes.
type PWM interface {
	SetFreq(hz float64) error
	SetPW(channel int, onUs float64) error
	SetPercentOn(channel int, pct float64) error
	SetPWOnOff(channel int, on, off uint16) error
	Clear() error
	Frequency() pca9685.FrequencyState
}

type Server struct {
	pwm    PWM
	addr   string
	logger *zap.SugaredLogger
	router *mux.Router
}

type frequencyBody struct {
	Hz       float64 `json:"hz"`
	PeriodUs float64 `json:"period_us,omitempty"`
}

// channelBody carries exactly one of: on_us, percent, or on and off counts.
type channelBody struct {
	OnUs    *float64 `json:"on_us,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
	On      *uint16  `json:"on,omitempty"`
	Off     *uint16  `json:"off,omitempty"`
}

func NewServer(pwm PWM, addr string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{pwm: pwm, addr: addr, logger: logger, router: mux.NewRouter()}
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/frequency", s.handleGetFrequency).Methods(http.MethodGet)
	api.HandleFunc("/frequency", s.handleSetFrequency).Methods(http.MethodPut)
	api.HandleFunc("/channels/{channel:[0-9]+}", s.handleSetChannel).Methods(http.MethodPut)
	api.HandleFunc("/clear", s.handleClear).Methods(http.MethodPost)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Infow("server running", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

func (s *Server) handleGetFrequency(w http.ResponseWriter, r *http.Request) {
	s.writeFrequency(w)
}

func (s *Server) handleSetFrequency(w http.ResponseWriter, r *http.Request) {
	var body frequencyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.pwm.SetFreq(body.Hz); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeFrequency(w)
}

func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := strconv.Atoi(mux.Vars(r)["channel"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var body channelBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch {
	case body.OnUs != nil && body.Percent == nil && body.On == nil && body.Off == nil:
		err = s.pwm.SetPW(channel, *body.OnUs)
	case body.Percent != nil && body.OnUs == nil && body.On == nil && body.Off == nil:
		err = s.pwm.SetPercentOn(channel, *body.Percent)
	case body.On != nil && body.Off != nil && body.OnUs == nil && body.Percent == nil:
		err = s.pwm.SetPWOnOff(channel, *body.On, *body.Off)
	default:
		http.Error(w, "expected one of on_us, percent, or on and off", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.pwm.Clear(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeFrequency(w http.ResponseWriter) {
	f := s.pwm.Frequency()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(frequencyBody{Hz: f.Hz, PeriodUs: f.PeriodUs})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, pca9685.ErrOutOfRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Errorw("driver request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
