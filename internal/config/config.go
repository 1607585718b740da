// Package config loads the pricing proxy's environment-driven
// configuration: the upstream API's address/token, the shared Redis
// address, and every cache/lock/breaker tunable named in spec §3/§6. All
// tunables are process-lifetime constants — unlike the gateway config this
// package is adapted from, there is no hot-reload here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the pricing proxy's full runtime configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// RateAPIURL is the pricing API origin, e.g. "http://rate-api:3001".
	RateAPIURL string

	// RateAPIToken is sent as the "token" header when non-empty.
	RateAPIToken string

	// UserAgent identifies this proxy to the upstream.
	UserAgent string

	// RedisURL is the shared cache/lock store address.
	RedisURL string

	// RedisPassword authenticates against RedisURL when non-empty.
	RedisPassword string

	// TFresh is the fresh-namespace cache TTL.
	TFresh time.Duration

	// TStale is the stale-namespace cache TTL.
	TStale time.Duration

	// THold is the distributed lock's hold TTL.
	THold time.Duration

	// TWait is the distributed lock's acquire-wait budget.
	TWait time.Duration

	// TPoll is the distributed lock's poll cadence.
	TPoll time.Duration

	// FOpen is the circuit breaker's failure threshold.
	FOpen int

	// W is the circuit breaker's rolling failure window.
	W time.Duration

	// V is the circuit breaker's minimum observed calls before tripping.
	V int

	// S is the circuit breaker's sleep window before probing.
	S time.Duration

	// R is the circuit breaker's consecutive-success-to-close threshold.
	R int
}

// Load reads configuration from the environment, applying the defaults
// named in spec §3/§6 for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		RateAPIURL:    getEnv("RATE_API_URL", "http://rate-api:3001"),
		RateAPIToken:  os.Getenv("RATE_API_TOKEN"),
		UserAgent:     getEnv("USER_AGENT", "pricing-proxy/1.0"),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.TFresh, err = getDuration("T_FRESH", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.TStale, err = getDuration("T_STALE", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.THold, err = getDuration("T_HOLD", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TWait, err = getDuration("T_WAIT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TPoll, err = getDuration("T_POLL", 100*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.FOpen, err = getInt("F_OPEN", 5); err != nil {
		return Config{}, err
	}
	if cfg.W, err = getDuration("W", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.V, err = getInt("V", 5); err != nil {
		return Config{}, err
	}
	if cfg.S, err = getDuration("S", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.R, err = getInt("R", 2); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RateAPIURL == "" {
		return fmt.Errorf("RATE_API_URL must not be empty")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must not be empty")
	}
	if c.THold < c.TWait {
		return fmt.Errorf("T_HOLD (%s) should be >= T_WAIT (%s) to cap tail latency without starving holders", c.THold, c.TWait)
	}
	if c.FOpen <= 0 || c.V <= 0 || c.R <= 0 {
		return fmt.Errorf("F_OPEN, V, and R must be positive (got %d, %d, %d)", c.FOpen, c.V, c.R)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
