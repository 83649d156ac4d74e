// Package config defines the environment-driven runtime configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every tunable the background loops depend on. All values
// come from the environment with defaults suitable for a Raspberry Pi
// deployment; the listen address, database path and dev mode are flags on the
// binary instead (see main.go).
type Config struct {
	// Climate sensor
	ClimateInterval   time.Duration `env:"VIVARIUM_CLIMATE_INTERVAL" envDefault:"30s"`
	ClimateSerialPort string        `env:"VIVARIUM_CLIMATE_SERIAL_PORT" envDefault:"/dev/ttyUSB0"`
	ClimateBaudRate   int           `env:"VIVARIUM_CLIMATE_BAUD" envDefault:"9600"`

	// Weather API
	WeatherInterval time.Duration `env:"VIVARIUM_WEATHER_INTERVAL" envDefault:"10m"`
	WeatherLat      float64       `env:"VIVARIUM_WEATHER_LAT" envDefault:"52.52"`
	WeatherLon      float64       `env:"VIVARIUM_WEATHER_LON" envDefault:"13.41"`

	// Host resource sampling and aggregation
	SampleInterval    time.Duration `env:"VIVARIUM_SAMPLE_INTERVAL" envDefault:"5s"`
	AggregateInterval time.Duration `env:"VIVARIUM_AGGREGATE_INTERVAL" envDefault:"1m"`
	StatsRetention    time.Duration `env:"VIVARIUM_STATS_RETENTION" envDefault:"720h"`
	RingRetention     time.Duration `env:"VIVARIUM_RING_RETENTION" envDefault:"15m"`

	// Motion pipeline
	MotionInterval     time.Duration `env:"VIVARIUM_MOTION_INTERVAL" envDefault:"2s"`
	MotionSensitivity  float64       `env:"VIVARIUM_MOTION_SENSITIVITY" envDefault:"0.05"`
	MinCaptureGap      time.Duration `env:"VIVARIUM_MIN_CAPTURE_GAP" envDefault:"30s"`
	CaptureDir         string        `env:"VIVARIUM_CAPTURE_DIR" envDefault:"captures"`
	CaptureMaxAge      time.Duration `env:"VIVARIUM_CAPTURE_MAX_AGE" envDefault:"168h"`
	CaptureMaxCount    int           `env:"VIVARIUM_CAPTURE_MAX_COUNT" envDefault:"500"`
	CameraCommand      string        `env:"VIVARIUM_CAMERA_COMMAND" envDefault:"rpicam-jpeg"`
	CameraCaptureFlags string        `env:"VIVARIUM_CAMERA_FLAGS" envDefault:"--nopreview -t 500 -o -"`

	// Classification pipeline
	ClassifyInterval     time.Duration `env:"VIVARIUM_CLASSIFY_INTERVAL" envDefault:"15s"`
	ClassifyInitialDelay time.Duration `env:"VIVARIUM_CLASSIFY_INITIAL_DELAY" envDefault:"30s"`
	ClassifierURL        string        `env:"VIVARIUM_CLASSIFIER_URL" envDefault:"http://127.0.0.1:5000/detect"`

	// MQTT command bot; empty broker disables the bot.
	MQTTBroker       string `env:"VIVARIUM_MQTT_BROKER" envDefault:""`
	MQTTClientID     string `env:"VIVARIUM_MQTT_CLIENT_ID" envDefault:"vivarium"`
	MQTTCommandTopic string `env:"VIVARIUM_MQTT_COMMAND_TOPIC" envDefault:"vivarium/commands"`
	MQTTReplyTopic   string `env:"VIVARIUM_MQTT_REPLY_TOPIC" envDefault:"vivarium/replies"`
}

// Load parses the configuration from the environment and validates the
// values the pipelines cannot tolerate being out of range.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would wedge or crash a loop at runtime.
func (c *Config) Validate() error {
	if c.MotionSensitivity <= 0 || c.MotionSensitivity > 1 {
		return fmt.Errorf("motion sensitivity %v out of range (0,1]", c.MotionSensitivity)
	}
	if c.CaptureMaxCount < 1 {
		return fmt.Errorf("capture max count %d must be at least 1", c.CaptureMaxCount)
	}
	for _, iv := range []struct {
		name string
		d    time.Duration
	}{
		{"climate interval", c.ClimateInterval},
		{"weather interval", c.WeatherInterval},
		{"sample interval", c.SampleInterval},
		{"aggregate interval", c.AggregateInterval},
		{"motion interval", c.MotionInterval},
		{"classify interval", c.ClassifyInterval},
	} {
		if iv.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", iv.name, iv.d)
		}
	}
	return nil
}
