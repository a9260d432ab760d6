package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"604800s", 604800 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"", 0, true},
		{"s", 0, true},
		{"10x", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		d, err := ParseDuration(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
		} else {
			require.NoError(t, err, "input %q", tt.input)
			assert.Equal(t, tt.expected, d, "input %q", tt.input)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	TestInit()
	cfg := Config()
	require.NotNil(t, cfg)

	assert.Equal(t, Version, cfg.FormatVersion)
	assert.NotEmpty(t, cfg.ServerPort)
	assert.NotEmpty(t, cfg.Issuer)
	assert.Contains(t, cfg.DSN(), "dbname=")
}

func TestTokenValidityDefaults(t *testing.T) {
	TestInit()
	cfg := Config()

	assert.Equal(t, 7*24*time.Hour, cfg.Auth.GetAccessTokenValidityOrDefault())
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.GetRefreshTokenValidityOrDefault())
	assert.Equal(t, time.Hour, cfg.Auth.GetIDTokenValidityOrDefault())
	assert.Equal(t, time.Minute, cfg.Auth.GetAuthCodeValidityOrDefault())
	assert.Equal(t, 30*time.Minute, cfg.Auth.GetDeviceCodeValidityOrDefault())
	assert.Equal(t, 365*24*time.Hour, cfg.Auth.GetKeyValidityOrDefault())
}

func TestTokenValidityEnvOverride(t *testing.T) {
	TestInit()
	cfg := Config()

	t.Setenv(EnvAccessTokenMaxAge, "3600")
	assert.Equal(t, time.Hour, cfg.Auth.GetAccessTokenValidityOrDefault())

	t.Setenv(EnvRefreshTokenMaxAge, "7200")
	assert.Equal(t, 2*time.Hour, cfg.Auth.GetRefreshTokenValidityOrDefault())

	t.Setenv(EnvIDTokenMaxAge, "600")
	assert.Equal(t, 10*time.Minute, cfg.Auth.GetIDTokenValidityOrDefault())

	// malformed overrides fall back to the config file value
	t.Setenv(EnvAccessTokenMaxAge, "not-a-number")
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.GetAccessTokenValidityOrDefault())
}

func TestValidateConfigRejectsMissingFields(t *testing.T) {
	TestInit()
	good := *Config()

	bad := good
	bad.ServerPort = ""
	assert.Error(t, ValidateConfig(&bad))

	bad = good
	bad.Issuer = ""
	assert.Error(t, ValidateConfig(&bad))

	bad = good
	bad.Auth.AccessTokenValidity = "oops"
	assert.Error(t, ValidateConfig(&bad))

	bad = good
	bad.DB.Host = ""
	assert.Error(t, ValidateConfig(&bad))

	bad = good
	bad.FormatVersion = "9.9.9"
	assert.Error(t, ValidateConfig(&bad))
}
