package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	want := &Config{
		ClimateInterval:      30 * time.Second,
		ClimateSerialPort:    "/dev/ttyUSB0",
		ClimateBaudRate:      9600,
		WeatherInterval:      10 * time.Minute,
		WeatherLat:           52.52,
		WeatherLon:           13.41,
		SampleInterval:       5 * time.Second,
		AggregateInterval:    time.Minute,
		StatsRetention:       720 * time.Hour,
		RingRetention:        15 * time.Minute,
		MotionInterval:       2 * time.Second,
		MotionSensitivity:    0.05,
		MinCaptureGap:        30 * time.Second,
		CaptureDir:           "captures",
		CaptureMaxAge:        168 * time.Hour,
		CaptureMaxCount:      500,
		CameraCommand:        "rpicam-jpeg",
		CameraCaptureFlags:   "--nopreview -t 500 -o -",
		ClassifyInterval:     15 * time.Second,
		ClassifyInitialDelay: 30 * time.Second,
		ClassifierURL:        "http://127.0.0.1:5000/detect",
		MQTTClientID:         "vivarium",
		MQTTCommandTopic:     "vivarium/commands",
		MQTTReplyTopic:       "vivarium/replies",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VIVARIUM_MOTION_SENSITIVITY", "0.01")
	t.Setenv("VIVARIUM_CLIMATE_INTERVAL", "1m30s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 0.01, cfg.MotionSensitivity)
	require.Equal(t, 90*time.Second, cfg.ClimateInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero sensitivity", "VIVARIUM_MOTION_SENSITIVITY", "0"},
		{"sensitivity above one", "VIVARIUM_MOTION_SENSITIVITY", "1.5"},
		{"zero capture count", "VIVARIUM_CAPTURE_MAX_COUNT", "0"},
		{"negative interval", "VIVARIUM_SAMPLE_INTERVAL", "-5s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
