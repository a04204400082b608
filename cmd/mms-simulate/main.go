// The mms-simulate tool plays a synthetic two-channel sensor against the
// broker, so the ingest service can be exercised without hardware. It
// publishes well-formed notification frames carrying a sine per channel plus
// noise around the idle value, and can inject duplicate notifications to
// exercise the suppressor.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/lmittmann/tint"
	"github.com/sosodev/duration"

	"github.com/sandrayoe/mms-version2/source"
)

const (
	defaultInterval  = 80 * time.Millisecond
	defaultSamples   = 4
	defaultAmplitude = 600
	defaultIdleValue = 2048

	// Channel tones in hertz, far enough apart that the two channels are
	// distinguishable on a chart.
	ch1Frequency = 1.3
	ch2Frequency = 2.1

	maxRawValue = 4095
)

type simulatorConfig struct {
	Interval       time.Duration
	Samples        int
	Amplitude      float64
	IdleValue      float64
	DuplicateEvery int
}

type Simulator struct {
	cfg      simulatorConfig
	settings *source.Settings
	client   *paho.Client
	rnd      *rand.Rand
	log      *slog.Logger

	phase1 float64
	phase2 float64
	sent   int
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: slog.LevelInfo,
	}))

	sim, err := NewSimulator(log)
	if err != nil {
		log.Error("failed to initialize simulator", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down...")
		cancel()
	}()

	if err := sim.Run(ctx); err != nil {
		log.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func NewSimulator(log *slog.Logger) (*Simulator, error) {
	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	settings, err := source.SettingsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read MQTT settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid MQTT settings: %w", err)
	}

	return &Simulator{
		cfg:      cfg,
		settings: settings,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 waveform noise needs no cryptographic strength
		log:      log,
	}, nil
}

func configFromEnv() (simulatorConfig, error) {
	cfg := simulatorConfig{
		Interval:  defaultInterval,
		Samples:   defaultSamples,
		Amplitude: defaultAmplitude,
		IdleValue: defaultIdleValue,
	}

	for _, env := range os.Environ() {
		idx := strings.IndexByte(env, '=')
		if idx < 0 {
			continue
		}
		key := env[:idx]
		val := env[idx+1:]

		var err error
		switch key {
		case "MMS_SIM_INTERVAL":
			var d *duration.Duration
			if d, err = duration.Parse(val); err == nil {
				cfg.Interval = d.ToTimeDuration()
			}

		case "MMS_SIM_SAMPLES":
			cfg.Samples, err = strconv.Atoi(val)

		case "MMS_SIM_AMPLITUDE":
			cfg.Amplitude, err = strconv.ParseFloat(val, 64)

		case "MMS_SIM_IDLE_VALUE":
			cfg.IdleValue, err = strconv.ParseFloat(val, 64)

		case "MMS_SIM_DUPLICATE_EVERY":
			cfg.DuplicateEvery, err = strconv.Atoi(val)
		}
		if err != nil {
			return simulatorConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if cfg.Interval <= 0 {
		return simulatorConfig{}, errors.New("simulation interval must be positive")
	}
	if cfg.Samples < 1 {
		return simulatorConfig{}, errors.New("samples per notification must be at least 1")
	}
	if cfg.DuplicateEvery < 0 {
		return simulatorConfig{}, errors.New("duplicate interval must not be negative")
	}
	return cfg, nil
}

// Run connects to the broker and publishes one notification per interval
// until the context is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	conn, err := s.settings.Provider()(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}

	s.client = paho.NewClient(paho.ClientConfig{Conn: conn})
	connack, err := s.client.Connect(ctx, s.settings.ConnectPacket())
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	if connack != nil && connack.ReasonCode >= 0x80 {
		return fmt.Errorf("broker refused connection with reason code %d", connack.ReasonCode)
	}
	defer func() {
		_ = s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}()

	s.log.Info("publishing notifications",
		"topic", s.settings.Topic,
		"client_id", s.settings.ClientID,
		"interval", s.cfg.Interval.String(),
		"samples", s.cfg.Samples)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulator stopped", "notifications", s.sent)
			return nil
		case <-ticker.C:
		}

		payload := s.nextFrame()
		if err := s.publish(ctx, payload); err != nil {
			return err
		}
		s.sent++

		if s.cfg.DuplicateEvery > 0 && s.sent%s.cfg.DuplicateEvery == 0 {
			if err := s.publish(ctx, payload); err != nil {
				return err
			}
			s.log.Debug("injected duplicate notification", "sent", s.sent)
		}
	}
}

// nextFrame advances both waveforms by one notification's worth of samples
// and packs them as little-endian u16 pairs.
func (s *Simulator) nextFrame() []byte {
	dt := s.cfg.Interval.Seconds() / float64(s.cfg.Samples)
	payload := make([]byte, s.cfg.Samples*4)
	for i := 0; i < s.cfg.Samples; i++ {
		s.phase1 += 2 * math.Pi * ch1Frequency * dt
		s.phase2 += 2 * math.Pi * ch2Frequency * dt
		binary.LittleEndian.PutUint16(payload[i*4:], s.rawValue(math.Sin(s.phase1)))
		binary.LittleEndian.PutUint16(payload[i*4+2:], s.rawValue(math.Sin(s.phase2)))
	}
	return payload
}

// rawValue maps a [-1,1] waveform sample onto the 12-bit range around the
// idle value, with a little noise so consecutive frames differ.
func (s *Simulator) rawValue(wave float64) uint16 {
	noise := (s.rnd.Float64() - 0.5) * s.cfg.Amplitude * 0.1
	v := math.Round(s.cfg.IdleValue + wave*s.cfg.Amplitude + noise)
	if v < 0 {
		v = 0
	}
	if v > maxRawValue {
		v = maxRawValue
	}
	return uint16(v)
}

func (s *Simulator) publish(ctx context.Context, payload []byte) error {
	_, err := s.client.Publish(ctx, &paho.Publish{
		Topic:   s.settings.Topic,
		QoS:     0,
		Payload: payload,
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
