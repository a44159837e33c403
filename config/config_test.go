package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{"GO_ENV": "test"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8080", cfg.Port)
				assert.Equal(t, StorePostgres, cfg.StoreDriver)
				assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
				assert.Equal(t, "noop", cfg.Email.Provider)
				assert.NotEmpty(t, cfg.JWTSecret)
			},
		},
		{
			name: "explicit values",
			env: map[string]string{
				"GO_ENV":               "test",
				"PORT":                 "9090",
				"STORE_DRIVER":         " Memory ",
				"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
				"REQUEST_TIMEOUT":      "3s",
				"EMAIL_PROVIDER":       "ses",
				"AWS_REGION":           "us-west-2",
				"JWT_SECRET":           "s3cret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9090", cfg.Port)
				assert.Equal(t, StoreMemory, cfg.StoreDriver)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
				assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
				assert.Equal(t, "us-west-2", cfg.Email.AWSRegion)
				assert.Equal(t, "s3cret", cfg.JWTSecret)
			},
		},
		{
			name:    "unknown store driver",
			env:     map[string]string{"GO_ENV": "test", "STORE_DRIVER": "mongo"},
			wantErr: true,
		},
		{
			name:    "production requires a secret",
			env:     map[string]string{"GO_ENV": "production", "JWT_SECRET": ""},
			wantErr: true,
		},
		{
			name:    "bad duration",
			env:     map[string]string{"GO_ENV": "test", "REQUEST_TIMEOUT": "soon"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"PORT", "STORE_DRIVER", "CORS_ALLOWED_ORIGINS", "REQUEST_TIMEOUT", "EMAIL_PROVIDER", "AWS_REGION", "JWT_SECRET", "DATABASE_URL"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "warn")
	logger.Info("hidden")
	logger.Warn("shown", "year", 2025)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "birdcount", line["service"])
	assert.InDelta(t, 2025, line["year"], 0)

	dev := newLogger(&buf, "development", "")
	assert.True(t, dev.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, dev.Enabled(context.Background(), slog.LevelDebug))
}
