// Package config loads the process-wide settings once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr           string  `toml:"http_addr"`
	DatabaseURL        string  `toml:"database_url"`
	DatabasePath       string  `toml:"database_path"`
	SecretKey          string  `toml:"secret_key"`
	Algorithm          string  `toml:"algorithm"`
	AccessTokenMinutes int     `toml:"access_token_expire_minutes"`
	LoginRate          float64 `toml:"login_rate"`
	LoginBurst         int     `toml:"login_burst"`
	ConsulAddr         string  `toml:"consul_addr"`
}

func Default() Config {
	return Config{
		HTTPAddr:           ":8000",
		DatabasePath:       "todokit.db",
		Algorithm:          "HS256",
		AccessTokenMinutes: 30,
		LoginRate:          1,
		LoginBurst:         100,
	}
}

var (
	ErrSecretMissing    = errors.New("SECRET_KEY must be set")
	ErrUnknownAlgorithm = errors.New("ALGORITHM must be one of HS256, HS384, HS512")
)

// Load applies the defaults, then the TOML file at path (if path is not
// empty), then the environment.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := c.fromEnv(); err != nil {
		return Config{}, err
	}

	return c, c.Validate()
}

func (c *Config) fromEnv() error {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.SecretKey = getEnv("SECRET_KEY", c.SecretKey)
	c.Algorithm = getEnv("ALGORITHM", c.Algorithm)
	c.ConsulAddr = getEnv("CONSUL_ADDR", c.ConsulAddr)

	var err error
	if c.AccessTokenMinutes, err = getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", c.AccessTokenMinutes); err != nil {
		return err
	}
	if c.LoginBurst, err = getEnvAsInt("LOGIN_BURST", c.LoginBurst); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("LOGIN_RATE"); ok {
		if c.LoginRate, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("LOGIN_RATE: %w", err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.SecretKey == "" {
		return ErrSecretMissing
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return ErrUnknownAlgorithm
	}
	if c.AccessTokenMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	return nil
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}

	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
