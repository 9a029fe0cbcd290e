package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, int64(50), cfg.MaxFileSize)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSizeBytes())
	assert.Equal(t, 20, cfg.Cleaning.PreviewRows)
	assert.Equal(t, 50, cfg.Cleaning.DetectionSampleSize)
	assert.Equal(t, 0.5, cfg.Cleaning.DetectionThreshold)
	assert.Equal(t, "exact10", cfg.Cleaning.LengthPolicy)
	assert.Equal(t, "detected", cfg.Cleaning.CountryCodePolicy)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SESSION_BACKEND", "REDIS")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("MAX_FILE_SIZE_MB", "5")
	t.Setenv("PHONE_LENGTH_POLICY", "lenient")
	t.Setenv("PHONE_COUNTRY_CODE_POLICY", "Always")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "localhost:6380", cfg.Cache.GetRedisURL())
	assert.Equal(t, 6380, cfg.Queue.RedisPort)
	assert.Equal(t, int64(5), cfg.MaxFileSize)
	assert.Equal(t, "lenient", cfg.Cleaning.LengthPolicy)
	assert.Equal(t, "always", cfg.Cleaning.CountryCodePolicy)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			MaxFileSize: 50,
			Session:     SessionConfig{Backend: BackendMemory, TTL: time.Minute},
			Cleaning:    CleaningConfig{LengthPolicy: "exact10", CountryCodePolicy: "detected", DetectionThreshold: 0.5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad backend", func(c *Config) { c.Session.Backend = "etcd" }, "SESSION_BACKEND"},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, "SESSION_TTL_MINUTES"},
		{"bad policy", func(c *Config) { c.Cleaning.LengthPolicy = "loose" }, "PHONE_LENGTH_POLICY"},
		{"bad country code policy", func(c *Config) { c.Cleaning.CountryCodePolicy = "never" }, "PHONE_COUNTRY_CODE_POLICY"},
		{"bad threshold", func(c *Config) { c.Cleaning.DetectionThreshold = 1.5 }, "DETECTION_THRESHOLD"},
		{"db without user", func(c *Config) { c.Database.Enabled = true }, "DB_USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
