package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the alarm service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	Timezone        string
	PollInterval    time.Duration
	PowerSupplyRoot string
	ArmMaxRetries   int
	ArmRetryDelay   time.Duration
}

// Load parses configuration values from the current process environment.
//
// Every field has a default, so an empty environment yields a working
// configuration. Values that are set but unparsable are collected and
// reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		SQLiteDSN:     "file:alarmd.db?_pragma=busy_timeout(5000)",
		PollInterval:  500 * time.Millisecond,
		ArmMaxRetries: 3,
		ArmRetryDelay: 100 * time.Millisecond,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ALARMD_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "ALARMD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ALARMD_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("ALARMD_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "ALARMD_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("ALARMD_POLL_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "ALARMD_POLL_INTERVAL")
		} else {
			cfg.PollInterval = interval
		}
	}

	if root := strings.TrimSpace(os.Getenv("ALARMD_POWER_SUPPLY_ROOT")); root != "" {
		cfg.PowerSupplyRoot = root
	}

	if retriesValue := strings.TrimSpace(os.Getenv("ALARMD_ARM_MAX_RETRIES")); retriesValue != "" {
		retries, err := strconv.Atoi(retriesValue)
		if err != nil || retries < 0 {
			invalid = append(invalid, "ALARMD_ARM_MAX_RETRIES")
		} else {
			cfg.ArmMaxRetries = retries
		}
	}

	if delayValue := strings.TrimSpace(os.Getenv("ALARMD_ARM_RETRY_DELAY")); delayValue != "" {
		delay, err := time.ParseDuration(delayValue)
		if err != nil || delay <= 0 {
			invalid = append(invalid, "ALARMD_ARM_RETRY_DELAY")
		} else {
			cfg.ArmRetryDelay = delay
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to the system
// local zone when unset.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
