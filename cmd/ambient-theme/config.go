package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/ambient-theme/internal/gpio"
	"github.com/sweeney/ambient-theme/internal/iio"
	"github.com/sweeney/ambient-theme/internal/mqtt"
	"github.com/sweeney/ambient-theme/internal/sensor"
)

// Sensor kinds accepted by the "sensor" key.
const (
	sensorIIO       = "iio"
	sensorGPIO      = "gpio"
	sensorMQTT      = "mqtt"
	sensorSimulated = "simulated"
	sensorNone      = "none"
)

// Config is the resolved daemon configuration.
type Config struct {
	Sensor    string
	HTTPAddr  string
	Refresh   time.Duration
	LogLevel  string
	LogFormat string

	IIO  iio.Config
	GPIO gpio.Config
	MQTT mqtt.Config
	Sim  sensor.Simulated
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sensor", sensorIIO)
	v.SetDefault("http", ":8080")
	v.SetDefault("refresh", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("iio.root", iio.DefaultRoot)
	v.SetDefault("iio.device", "")
	v.SetDefault("iio.interval", time.Second)

	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.line", gpio.DefaultLine)
	v.SetDefault("gpio.debounce", 50*time.Millisecond)
	v.SetDefault("gpio.bright_level", 0)
	v.SetDefault("gpio.bright_lux", gpio.DefaultBrightLux)
	v.SetDefault("gpio.dark_lux", gpio.DefaultDarkLux)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "")
	v.SetDefault("mqtt.field", mqtt.DefaultField)
	v.SetDefault("mqtt.client_id", "ambient-theme")

	v.SetDefault("sim.base", 500.0)
	v.SetDefault("sim.variation", 100.0)
	v.SetDefault("sim.interval", 2*time.Second)
}

// bindFlags connects the persistent flags to their config keys so a flag
// set on the command line wins over env and file. It returns the --config
// value, which is only set once the command line is parsed.
func bindFlags(v *viper.Viper, cmd *cobra.Command) *string {
	flags := cmd.PersistentFlags()
	cfgFile := flags.StringP("config", "c", "", "config file (default is $HOME/.config/ambient-theme/config.yaml)")
	flags.String("sensor", sensorIIO, "light sensor: iio, gpio, mqtt, simulated or none")
	flags.String("http", ":8080", "HTTP address for serve")
	flags.Duration("refresh", 5*time.Second, "page auto-refresh interval (0 to disable)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")

	_ = v.BindPFlag("sensor", flags.Lookup("sensor"))
	_ = v.BindPFlag("http", flags.Lookup("http"))
	_ = v.BindPFlag("refresh", flags.Lookup("refresh"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	return cfgFile
}

func initConfig(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		configDir, err := os.UserConfigDir()
		if err != nil {
			homeDir, err := os.UserHomeDir()
			if err == nil {
				configDir = filepath.Join(homeDir, ".config")
			}
		}
		if configDir != "" {
			v.AddConfigPath(filepath.Join(configDir, "ambient-theme"))
			if homeDir, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(filepath.Join(homeDir, ".config", "ambient-theme"))
			}
		}
		v.AddConfigPath("/etc/ambient-theme")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("AMBIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env still apply.
	_ = v.ReadInConfig()
}

// loadConfig resolves and validates the layered configuration.
func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Sensor:    strings.ToLower(strings.TrimSpace(v.GetString("sensor"))),
		HTTPAddr:  v.GetString("http"),
		Refresh:   v.GetDuration("refresh"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		IIO: iio.Config{
			Root:     v.GetString("iio.root"),
			Device:   v.GetString("iio.device"),
			Interval: v.GetDuration("iio.interval"),
		},
		GPIO: gpio.Config{
			Chip:        v.GetString("gpio.chip"),
			Line:        v.GetInt("gpio.line"),
			Debounce:    v.GetDuration("gpio.debounce"),
			BrightLevel: v.GetInt("gpio.bright_level"),
			BrightLux:   v.GetFloat64("gpio.bright_lux"),
			DarkLux:     v.GetFloat64("gpio.dark_lux"),
		},
		MQTT: mqtt.Config{
			Broker:   v.GetString("mqtt.broker"),
			Topic:    v.GetString("mqtt.topic"),
			Field:    v.GetString("mqtt.field"),
			ClientID: v.GetString("mqtt.client_id"),
		},
		Sim: sensor.Simulated{
			Base:      v.GetFloat64("sim.base"),
			Variation: v.GetFloat64("sim.variation"),
			Interval:  v.GetDuration("sim.interval"),
		},
	}

	switch cfg.Sensor {
	case sensorIIO, sensorGPIO, sensorMQTT, sensorSimulated, sensorNone:
	default:
		return Config{}, fmt.Errorf("unknown sensor %q (want iio, gpio, mqtt, simulated or none)", cfg.Sensor)
	}
	if cfg.Refresh < 0 {
		return Config{}, fmt.Errorf("refresh must not be negative: %v", cfg.Refresh)
	}
	if cfg.IIO.Interval <= 0 {
		return Config{}, fmt.Errorf("iio.interval must be positive: %v", cfg.IIO.Interval)
	}
	if cfg.Sim.Interval <= 0 {
		return Config{}, fmt.Errorf("sim.interval must be positive: %v", cfg.Sim.Interval)
	}
	if cfg.GPIO.Debounce < 0 {
		return Config{}, fmt.Errorf("gpio.debounce must not be negative: %v", cfg.GPIO.Debounce)
	}
	if cfg.Sim.Variation < 0 {
		return Config{}, fmt.Errorf("sim.variation must not be negative: %v", cfg.Sim.Variation)
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("unknown log format %q (want console or json)", cfg.LogFormat)
	}
	return cfg, nil
}

// newProvider builds the configured capability and a description of its source.
func newProvider(cfg Config) (sensor.Provider, string) {
	switch cfg.Sensor {
	case sensorIIO:
		src := cfg.IIO.Root
		if cfg.IIO.Device != "" {
			src = filepath.Join(src, cfg.IIO.Device)
		}
		return iio.New(cfg.IIO), src
	case sensorGPIO:
		return gpio.New(cfg.GPIO), fmt.Sprintf("%s line %d", cfg.GPIO.Chip, cfg.GPIO.Line)
	case sensorMQTT:
		return mqtt.New(cfg.MQTT), cfg.MQTT.Broker + " " + cfg.MQTT.Topic
	case sensorSimulated:
		return cfg.Sim, fmt.Sprintf("%g±%g lux", cfg.Sim.Base, cfg.Sim.Variation)
	default:
		return sensor.Unavailable{}, ""
	}
}
