package config

import (
	"context"
	"strings"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/dolphain/internal/detect"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadWith(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "interestingness", cfg.Mode)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Zero(t, cfg.NFiles)
	assert.Equal(t, "results", cfg.OutputDir)
	assert.Equal(t, 10, cfg.CheckpointEvery)
	assert.Equal(t, 20, cfg.TopN)
	assert.Equal(t, "db20", cfg.Wavelet)
	assert.Equal(t, "dolphain.sqlite3", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogCaller)
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, "us-east-1", cfg.S3.Region)

	assert.Equal(t, detect.DefaultChirpParams(), cfg.Chirp, "env defaults match the detector defaults")
	assert.Equal(t, detect.DefaultClickParams(), cfg.Click, "env defaults match the detector defaults")
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"DOLPHAIN_MODE":              "unique",
		"DOLPHAIN_SEED":              "7",
		"DOLPHAIN_N_FILES":           "100",
		"DOLPHAIN_OUTPUT_DIR":        "/tmp/out",
		"DOLPHAIN_CHECKPOINT_EVERY":  "5",
		"DOLPHAIN_WAVELET":           "db4",
		"CHIRP_MIN_SWEEP_HZ":         "2500",
		"CHIRP_NPERSEG":              "8192",
		"CLICK_MIN_CLICKS":           "15",
		"CLICK_FILTER_ORDER":         "8",
		"DOLPHAIN_S3_BUCKET":         "hydrophone-triage",
		"DOLPHAIN_S3_ENDPOINT":       "http://localhost:9000",
		"DOLPHAIN_S3_USE_PATH_STYLE": "true",
		"LOG_LEVEL":                  "debug",
		"LOG_CALLER":                 "true",
	})
	require.NoError(t, err)

	assert.Equal(t, "unique", cfg.Mode)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 100, cfg.NFiles)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 5, cfg.CheckpointEvery)
	assert.Equal(t, "db4", cfg.Wavelet)
	assert.Equal(t, 2500.0, cfg.Chirp.MinSweepHz)
	assert.Equal(t, 8192, cfg.Chirp.NPerSeg)
	assert.Equal(t, 15, cfg.Click.MinClicks)
	assert.Equal(t, 8, cfg.Click.FilterOrder)
	assert.True(t, cfg.S3.Enabled())
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogCaller)
}

func TestLoad_FromProcessEnv(t *testing.T) {
	t.Setenv("DOLPHAIN_TOP_N", "3")
	t.Setenv("CLICK_MAX_CV", "0.3")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, 0.3, cfg.Click.MaxCV)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"unknown mode", map[string]string{"DOLPHAIN_MODE": "novelty"}, "novelty"},
		{"unknown wavelet", map[string]string{"DOLPHAIN_WAVELET": "sym8"}, "sym8"},
		{"negative file count", map[string]string{"DOLPHAIN_N_FILES": "-1"}, "NFiles"},
		{"zero checkpoint interval", map[string]string{"DOLPHAIN_CHECKPOINT_EVERY": "0"}, "CheckpointEvery"},
		{"small chirp segment", map[string]string{"CHIRP_NPERSEG": "1024"}, "Chirp.NPerSeg"},
		{"inverted click band", map[string]string{"CLICK_BAND_LOW_HZ": "90000", "CLICK_BAND_HIGH_HZ": "30000"}, "Click.BandHighHz"},
		{"odd filter order", map[string]string{"CLICK_FILTER_ORDER": "7"}, "filter order 7"},
		{"low filter order", map[string]string{"CLICK_FILTER_ORDER": "4"}, "Click.FilterOrder"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "verbose"},
		{"bad endpoint", map[string]string{"DOLPHAIN_S3_BUCKET": "b", "DOLPHAIN_S3_ENDPOINT": "not a url"}, "Endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.env)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_EndpointWithoutBucket(t *testing.T) {
	_, err := load(t, map[string]string{"DOLPHAIN_S3_ENDPOINT": "http://localhost:9000"})
	assert.ErrorIs(t, err, ErrS3BucketRequired)
}

func TestLoad_UnparsableValue(t *testing.T) {
	_, err := load(t, map[string]string{"DOLPHAIN_SEED": "forty-two"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "config:"))
}

func TestString_MasksCredentials(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"DOLPHAIN_S3_BUCKET":            "b",
		"DOLPHAIN_S3_ACCESS_KEY_ID":     "AKIDSECRET",
		"DOLPHAIN_S3_SECRET_ACCESS_KEY": "very-secret",
	})
	require.NoError(t, err)

	s := cfg.String()
	assert.Contains(t, s, "S3Bucket: b")
	assert.NotContains(t, s, "AKIDSECRET")
	assert.NotContains(t, s, "very-secret")
}
