package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for a successful Load.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RAW_BUCKET", "raw-videos")
	t.Setenv("PROCESSED_BUCKET", "processed-videos")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "raw-videos", cfg.RawBucket)
	assert.Equal(t, "processed-videos", cfg.ProcessedBucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, 360, cfg.TargetHeight)
	assert.Equal(t, 15*time.Minute, cfg.ClaimTTL)
	assert.Equal(t, 5*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 15*time.Minute, cfg.TranscodeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_MissingRawBucket(t *testing.T) {
	t.Setenv("RAW_BUCKET", "")
	t.Setenv("PROCESSED_BUCKET", "processed-videos")

	_, err := Load()
	assert.ErrorIs(t, err, ErrRawBucketRequired)
}

func TestLoad_MissingProcessedBucket(t *testing.T) {
	t.Setenv("RAW_BUCKET", "raw-videos")
	t.Setenv("PROCESSED_BUCKET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrProcessedBucketRequired)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("TARGET_HEIGHT", "1080")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CLAIM_TTL", "5m")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 1080, cfg.TargetHeight)
	assert.Equal(t, 5*time.Minute, cfg.ClaimTTL)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoad_TargetHeightBounds(t *testing.T) {
	tests := []struct {
		name    string
		height  string
		wantErr bool
	}{
		{name: "lower bound", height: "144", wantErr: false},
		{name: "upper bound", height: "2160", wantErr: false},
		{name: "below range", height: "143", wantErr: true},
		{name: "above range", height: "4320", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("TARGET_HEIGHT", tt.height)

			_, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		RawBucket:       "raw",
		ProcessedBucket: "processed",
		TargetHeight:    360,
	}
	assert.NoError(t, cfg.Validate())

	cfg.RawBucket = ""
	assert.ErrorIs(t, cfg.Validate(), ErrRawBucketRequired)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		cfg := &Config{LogFormat: format, LogLevel: "debug"}
		assert.NotNil(t, cfg.NewLogger())
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		RawBucket:          "raw",
		ProcessedBucket:    "processed",
		AWSSecretAccessKey: "super-secret",
		RedisPassword:      "hunter2",
	}

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "hunter2")
}
