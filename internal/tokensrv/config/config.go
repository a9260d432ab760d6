package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the supported configuration file format version.
const Version = "0.1.0"

// AuthConfig holds token, code, and key lifetime configuration.
type AuthConfig struct {
	AccessTokenValidity  string `toml:"access_token_validity"`  // Lifetime of issued access tokens
	RefreshTokenValidity string `toml:"refresh_token_validity"` // Lifetime of issued refresh tokens
	IDTokenValidity      string `toml:"id_token_validity"`      // Lifetime of issued ID tokens
	AuthCodeValidity     string `toml:"auth_code_validity"`     // Lifetime of authorization codes
	DeviceCodeValidity   string `toml:"device_code_validity"`   // Lifetime of device codes
	KeyValidity          string `toml:"key_validity"`           // Lifetime of generated signing keys
	ClockSkew            string `toml:"clock_skew"`             // Allowed clock skew for time-based claims
	SweepInterval        string `toml:"sweep_interval"`         // Interval between expired-record sweeps
	UserCodeLength       int    `toml:"user_code_length"`       // Length of device flow user codes
}

// Environment variables that override the token lifetimes. Values are
// integral seconds.
const (
	EnvAccessTokenMaxAge  = "OAUTH_ACCESS_TOKEN_MAX_AGE"
	EnvRefreshTokenMaxAge = "OAUTH_REFRESH_TOKEN_MAX_AGE"
	EnvIDTokenMaxAge      = "OAUTH_ID_TOKEN_MAX_AGE"
)

// GetAccessTokenValidity returns the access token lifetime as time.Duration.
// The environment override takes precedence over the config file value.
func (a *AuthConfig) GetAccessTokenValidity() (time.Duration, error) {
	if d, ok := durationFromEnv(EnvAccessTokenMaxAge); ok {
		return d, nil
	}
	return ParseDuration(a.AccessTokenValidity)
}

// GetRefreshTokenValidity returns the refresh token lifetime as time.Duration.
// The environment override takes precedence over the config file value.
func (a *AuthConfig) GetRefreshTokenValidity() (time.Duration, error) {
	if d, ok := durationFromEnv(EnvRefreshTokenMaxAge); ok {
		return d, nil
	}
	return ParseDuration(a.RefreshTokenValidity)
}

// GetIDTokenValidity returns the ID token lifetime as time.Duration.
// The environment override takes precedence over the config file value.
func (a *AuthConfig) GetIDTokenValidity() (time.Duration, error) {
	if d, ok := durationFromEnv(EnvIDTokenMaxAge); ok {
		return d, nil
	}
	return ParseDuration(a.IDTokenValidity)
}

// GetAuthCodeValidity returns the authorization code lifetime as time.Duration.
func (a *AuthConfig) GetAuthCodeValidity() (time.Duration, error) {
	return ParseDuration(a.AuthCodeValidity)
}

// GetDeviceCodeValidity returns the device code lifetime as time.Duration.
func (a *AuthConfig) GetDeviceCodeValidity() (time.Duration, error) {
	return ParseDuration(a.DeviceCodeValidity)
}

// GetKeyValidity returns the signing key lifetime as time.Duration.
func (a *AuthConfig) GetKeyValidity() (time.Duration, error) {
	return ParseDuration(a.KeyValidity)
}

// GetClockSkew returns the allowed clock skew as time.Duration.
func (a *AuthConfig) GetClockSkew() (time.Duration, error) {
	return ParseDuration(a.ClockSkew)
}

// GetSweepInterval returns the sweep interval as time.Duration.
func (a *AuthConfig) GetSweepInterval() (time.Duration, error) {
	return ParseDuration(a.SweepInterval)
}

// GetAccessTokenValidityOrDefault returns the access token lifetime
// or panics if the value is invalid.
func (a *AuthConfig) GetAccessTokenValidityOrDefault() time.Duration {
	d, err := a.GetAccessTokenValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid access token validity: %v", err))
	}
	return d
}

// GetRefreshTokenValidityOrDefault returns the refresh token lifetime
// or panics if the value is invalid.
func (a *AuthConfig) GetRefreshTokenValidityOrDefault() time.Duration {
	d, err := a.GetRefreshTokenValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid refresh token validity: %v", err))
	}
	return d
}

// GetIDTokenValidityOrDefault returns the ID token lifetime
// or panics if the value is invalid.
func (a *AuthConfig) GetIDTokenValidityOrDefault() time.Duration {
	d, err := a.GetIDTokenValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid id token validity: %v", err))
	}
	return d
}

// GetAuthCodeValidityOrDefault returns the authorization code lifetime
// or panics if the value is invalid.
func (a *AuthConfig) GetAuthCodeValidityOrDefault() time.Duration {
	d, err := a.GetAuthCodeValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid auth code validity: %v", err))
	}
	return d
}

// GetDeviceCodeValidityOrDefault returns the device code lifetime
// or panics if the value is invalid.
func (a *AuthConfig) GetDeviceCodeValidityOrDefault() time.Duration {
	d, err := a.GetDeviceCodeValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid device code validity: %v", err))
	}
	return d
}

// GetKeyValidityOrDefault returns the signing key lifetime
// or panics if the value is invalid.
func (a *AuthConfig) GetKeyValidityOrDefault() time.Duration {
	d, err := a.GetKeyValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid key validity: %v", err))
	}
	return d
}

// GetClockSkewOrDefault returns the allowed clock skew
// or panics if the value is invalid.
func (a *AuthConfig) GetClockSkewOrDefault() time.Duration {
	d, err := a.GetClockSkew()
	if err != nil {
		panic(fmt.Sprintf("invalid clock skew: %v", err))
	}
	return d
}

// GetSweepIntervalOrDefault returns the sweep interval
// or panics if the value is invalid.
func (a *AuthConfig) GetSweepIntervalOrDefault() time.Duration {
	d, err := a.GetSweepInterval()
	if err != nil {
		panic(fmt.Sprintf("invalid sweep interval: %v", err))
	}
	return d
}

// ConfigParam holds all configuration parameters for the token service.
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName     string `toml:"server_hostname"`       // Hostname for the server
	ServerPort         string `toml:"server_port"`           // Port for the server
	HandleCORS         bool   `toml:"handle_cors"`           // Whether to handle CORS
	MaxRequestBodySize int64  `toml:"max_request_body_size"` // Maximum size of request body in bytes
	SupportTLS         bool   `toml:"support_tls"`           // Whether to support TLS
	TLSCertFile        string `toml:"tls_cert_file"`         // Path to TLS certificate file
	TLSKeyFile         string `toml:"tls_key_file"`          // Path to TLS key file

	// Issuer placed in the iss claim and the discovery document
	Issuer string `toml:"issuer"`

	// Auth configuration
	Auth AuthConfig `toml:"auth"`

	// Database configuration
	DB struct {
		Host     string `toml:"host"`     // Database host
		Port     int    `toml:"port"`     // Database port
		DBName   string `toml:"dbname"`   // Database name
		User     string `toml:"user"`     // Database user
		Password string `toml:"password"` // Database password
		SSLMode  string `toml:"sslmode"`  // SSL mode for database connection
	} `toml:"db"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// DSN returns the database connection string
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// TokenStoreDSN returns the DSN for the token store database.
func TokenStoreDSN() string {
	return cfg.DSN()
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - y: years
// - d: days
// - h: hours
// - m: minutes
// - s: seconds
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	// Extract the unit and the value from the input string
	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	// Convert the value to a duration based on the unit
	var duration time.Duration
	switch unit {
	case "s":
		duration = time.Duration(value) * time.Second
	case "m":
		duration = time.Duration(value) * time.Minute
	case "h":
		duration = time.Duration(value) * time.Hour
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "y":
		// Assuming 1 year = 365 days for simplicity
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// durationFromEnv reads an integral-seconds override from the environment.
// Reports false if the variable is unset or not a positive integer.
func durationFromEnv(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateAuthConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	return nil
}

func validateAuthConfig(cfg *ConfigParam) error {
	durations := map[string]string{
		"auth.access_token_validity":  cfg.Auth.AccessTokenValidity,
		"auth.refresh_token_validity": cfg.Auth.RefreshTokenValidity,
		"auth.id_token_validity":      cfg.Auth.IDTokenValidity,
		"auth.auth_code_validity":     cfg.Auth.AuthCodeValidity,
		"auth.device_code_validity":   cfg.Auth.DeviceCodeValidity,
		"auth.key_validity":           cfg.Auth.KeyValidity,
		"auth.clock_skew":             cfg.Auth.ClockSkew,
		"auth.sweep_interval":         cfg.Auth.SweepInterval,
	}
	for name, value := range durations {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	if cfg.Auth.UserCodeLength <= 0 {
		return fmt.Errorf("auth.user_code_length must be positive")
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if cfg.DB.Port <= 0 {
		return fmt.Errorf("db.port must be positive")
	}
	if cfg.DB.DBName == "" {
		return fmt.Errorf("db.dbname is required")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if cfg.DB.Password == "" {
		return fmt.Errorf("db.password is required")
	}
	if cfg.DB.SSLMode == "" {
		return fmt.Errorf("db.sslmode is required")
	}
	return nil
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	cfg = &ConfigParam{}
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	return nil
}

var isTest = false

func IsTest() bool {
	return isTest
}

func SetTestMode(test bool) {
	isTest = test
}

func TestInit() {
	isTest = true
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	// Walk up to the project root by looking for go.mod
	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			panic("could not find project root (go.mod)")
		}
		projectRoot = parent
	}
	if err := LoadConfig(filepath.Join(projectRoot, "securetokensrv.conf")); err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
}
