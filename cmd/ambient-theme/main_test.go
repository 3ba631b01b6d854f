package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/ambient-theme/internal/gpio"
	"github.com/sweeney/ambient-theme/internal/iio"
	"github.com/sweeney/ambient-theme/internal/light"
	"github.com/sweeney/ambient-theme/internal/mqtt"
	"github.com/sweeney/ambient-theme/internal/sensor"
	"github.com/sweeney/ambient-theme/internal/status"
)

func newTracker() *status.Tracker {
	return status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{Sensor: "fake"})
}

// waitFor polls the tracker until cond holds or a second passes.
func waitFor(t *testing.T, tr *status.Tracker, what string, cond func(status.Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond(tr.Snapshot()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last snapshot %+v", what, tr.Snapshot())
}

// startLoop runs runLoop in the background and returns the signal channel
// and the loop's result channel.
func startLoop(sub *sensor.Subscription, sel *light.Selector, tr *status.Tracker) (chan os.Signal, chan error) {
	sig := make(chan os.Signal, 1)
	result := make(chan error, 1)
	go func() { result <- runLoop(sub, sel, tr, sig) }()
	return sig, result
}

func waitResult(t *testing.T, result chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func TestRunLoopReadingSequence(t *testing.T) {
	p := sensor.NewFakeProvider()
	sub := sensor.NewSubscription(p)
	sub.Start()

	tr := newTracker()
	sel := light.NewSelector()
	sig, result := startLoop(sub, sel, tr)

	waitFor(t, tr, "supported", func(s status.Snapshot) bool { return s.State.Status == light.StatusSupported })
	if got := tr.Snapshot().Theme; got != light.ThemeLight {
		t.Errorf("theme before first reading: got %q, want light", got)
	}

	p.Handle.Emit(50)
	waitFor(t, tr, "dark at 50 lux", func(s status.Snapshot) bool {
		return s.Theme == light.ThemeDark && s.State.Reading == light.Lux(50)
	})
	if tr.Snapshot().LastReading.IsZero() {
		t.Error("expected LastReading to be set")
	}

	p.Handle.Emit(150)
	waitFor(t, tr, "light at 150 lux", func(s status.Snapshot) bool { return s.Theme == light.ThemeLight })

	p.Handle.Fail(errors.New("i2c timeout"))
	waitFor(t, tr, "error recorded", func(s status.Snapshot) bool { return s.State.Err != nil })

	snap := tr.Snapshot()
	if snap.Theme != light.ThemeLight {
		t.Errorf("theme after error: got %q, want light", snap.Theme)
	}
	if snap.Counts.Readings != 2 || snap.Counts.Errors != 1 {
		t.Errorf("counts: got %+v, want 2 readings 1 error", snap.Counts)
	}

	sig <- syscall.SIGTERM
	if err := waitResult(t, result); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if !p.Handle.Closed {
		t.Error("expected handle closed on shutdown")
	}
}

func TestRunLoopCapabilityAbsent(t *testing.T) {
	sub := sensor.NewSubscription(sensor.Unavailable{})
	sub.Start()

	tr := newTracker()
	sig, result := startLoop(sub, light.NewSelector(), tr)

	waitFor(t, tr, "unsupported", func(s status.Snapshot) bool { return s.State.Status == light.StatusUnsupported })
	snap := tr.Snapshot()
	if snap.State.Reading.Known {
		t.Error("expected unknown reading")
	}
	if snap.State.Err != nil {
		t.Errorf("expected no error, got %v", snap.State.Err)
	}
	if snap.Theme != light.ThemeLight {
		t.Errorf("Theme: got %q, want light", snap.Theme)
	}

	sig <- syscall.SIGINT
	if err := waitResult(t, result); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
}

func TestRunLoopAcquisitionFailure(t *testing.T) {
	p := sensor.NewFakeProvider()
	p.Handle.StartError = errors.New("permission denied")
	sub := sensor.NewSubscription(p)
	sub.Start()

	tr := newTracker()
	sig, result := startLoop(sub, light.NewSelector(), tr)

	waitFor(t, tr, "error recorded", func(s status.Snapshot) bool { return s.State.Err != nil })
	snap := tr.Snapshot()
	if snap.State.Status == light.StatusSupported {
		t.Error("status must not be supported after a start failure")
	}
	var acqErr *sensor.AcquisitionError
	if !errors.As(snap.State.Err, &acqErr) {
		t.Errorf("Err: got %T, want *sensor.AcquisitionError", snap.State.Err)
	}

	sig <- syscall.SIGTERM
	waitResult(t, result)
}

func TestRunLoopReturnsWhenReleased(t *testing.T) {
	sub := sensor.NewSubscription(sensor.NewFakeProvider())
	sub.Start()
	if err := sub.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// A nil signal channel never fires; only the closed update channel ends the loop.
	result := make(chan error, 1)
	go func() { result <- runLoop(sub, light.NewSelector(), nil, nil) }()
	if err := waitResult(t, result); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
}

func TestRunLoopReportsReleaseError(t *testing.T) {
	p := sensor.NewFakeProvider()
	p.Handle.CloseError = errors.New("device busy")
	sub := sensor.NewSubscription(p)
	sub.Start()

	sig, result := startLoop(sub, light.NewSelector(), newTracker())
	sig <- syscall.SIGTERM

	err := waitResult(t, result)
	if err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Errorf("got %v, want close error", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Sensor != sensorIIO {
		t.Errorf("Sensor: got %q, want iio", cfg.Sensor)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: got %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Refresh != 5*time.Second {
		t.Errorf("Refresh: got %v, want 5s", cfg.Refresh)
	}
	if cfg.IIO.Root != iio.DefaultRoot || cfg.IIO.Interval != time.Second {
		t.Errorf("IIO: got %+v", cfg.IIO)
	}
	if cfg.GPIO.Chip != "gpiochip0" || cfg.GPIO.Line != 17 || cfg.GPIO.Debounce != 50*time.Millisecond {
		t.Errorf("GPIO: got %+v", cfg.GPIO)
	}
	if cfg.MQTT.Field != "illuminance" || cfg.MQTT.ClientID != "ambient-theme" {
		t.Errorf("MQTT: got %+v", cfg.MQTT)
	}
	if cfg.Sim.Base != 500 || cfg.Sim.Variation != 100 || cfg.Sim.Interval != 2*time.Second {
		t.Errorf("Sim: got %+v", cfg.Sim)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "sensor: mqtt\nrefresh: 10s\nmqtt:\n  broker: tcp://file:1883\n  topic: zigbee2mqtt/hall\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AMBIENT_MQTT_BROKER", "tcp://env:1883")

	v := viper.New()
	setDefaults(v)
	initConfig(v, path)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Sensor != sensorMQTT {
		t.Errorf("Sensor: got %q, want mqtt", cfg.Sensor)
	}
	if cfg.Refresh != 10*time.Second {
		t.Errorf("Refresh: got %v, want 10s", cfg.Refresh)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" {
		t.Errorf("Broker: got %q, env should win over file", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Topic != "zigbee2mqtt/hall" {
		t.Errorf("Topic: got %q", cfg.MQTT.Topic)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown sensor", "sensor", "lidar"},
		{"negative refresh", "refresh", -time.Second},
		{"zero iio interval", "iio.interval", time.Duration(0)},
		{"zero sim interval", "sim.interval", time.Duration(0)},
		{"negative debounce", "gpio.debounce", -time.Millisecond},
		{"negative variation", "sim.variation", -1.0},
		{"bad log format", "log.format", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			v.Set(tt.key, tt.val)
			if _, err := loadConfig(v); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	base, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	kinds := []string{sensorIIO, sensorGPIO, sensorMQTT, sensorSimulated, sensorNone}
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			cfg := base
			cfg.Sensor = kind
			p, _ := newProvider(cfg)

			var ok bool
			switch kind {
			case sensorIIO:
				_, ok = p.(*iio.Provider)
			case sensorGPIO:
				_, ok = p.(*gpio.Provider)
			case sensorMQTT:
				_, ok = p.(*mqtt.Provider)
			case sensorSimulated:
				_, ok = p.(sensor.Simulated)
			case sensorNone:
				_, ok = p.(sensor.Unavailable)
			}
			if !ok {
				t.Errorf("got %T", p)
			}
		})
	}
}

func TestRunProbe(t *testing.T) {
	var out bytes.Buffer
	err := runProbe(Config{Sensor: sensorNone}, &out)
	if !errors.Is(err, light.ErrUnsupported) {
		t.Errorf("none: got %v, want ErrUnsupported", err)
	}
	if !strings.Contains(out.String(), "none: unsupported") {
		t.Errorf("output: got %q", out.String())
	}

	out.Reset()
	cfg := Config{Sensor: sensorSimulated, Sim: sensor.Simulated{Base: 500, Variation: 100, Interval: time.Second}}
	if err := runProbe(cfg, &out); err != nil {
		t.Errorf("simulated: %v", err)
	}
	if !strings.Contains(out.String(), "simulated: supported") {
		t.Errorf("output: got %q", out.String())
	}
}

func TestProbeCommandExitsNonZero(t *testing.T) {
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"probe", "--sensor", "none"})

	if err := cmd.Execute(); !errors.Is(err, light.ErrUnsupported) {
		t.Errorf("Execute: got %v, want ErrUnsupported", err)
	}
	if !strings.Contains(out.String(), "unsupported") {
		t.Errorf("output: got %q", out.String())
	}
}

func TestRootCommandsReadOwnConfigFile(t *testing.T) {
	dir := t.TempDir()
	simPath := filepath.Join(dir, "sim.yaml")
	nonePath := filepath.Join(dir, "none.yaml")
	if err := os.WriteFile(simPath, []byte("sensor: simulated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nonePath, []byte("sensor: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	execute := func(path string) (string, error) {
		cmd := newRootCmd(viper.New())
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"probe", "--config", path, "--log-level", "error"})
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := execute(simPath)
	if err != nil {
		t.Fatalf("simulated: %v", err)
	}
	if !strings.Contains(out, "simulated: supported") {
		t.Errorf("simulated output: got %q", out)
	}

	out, err = execute(nonePath)
	if !errors.Is(err, light.ErrUnsupported) {
		t.Errorf("none: got %v, want ErrUnsupported", err)
	}
	if !strings.Contains(out, "none: unsupported") {
		t.Errorf("none output: got %q", out)
	}

	// The first file still applies; the second command left nothing behind.
	if out, err := execute(simPath); err != nil || !strings.Contains(out, "simulated: supported") {
		t.Errorf("simulated again: got %q, %v", out, err)
	}
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	if err := setupLogging("debug", "json", &buf); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	if err := setupLogging("loud", "json", &buf); err == nil {
		t.Error("expected error for unknown level")
	}
}
