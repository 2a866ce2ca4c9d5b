// Package utils holds CustomSetValue hooks shared by the coordinator's
// cobra subcommands, following the same config.ConfigOption pattern the
// rest of the CLI is built on.
package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/agentmarket/coordinator/internal/logging"
)

func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level: %w", err)
	}

	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = logLevel
	logging.SetLevel(logLevel)
	return nil
}

func SetCorsAllowedOrigins(co *config.ConfigOption) error {
	raw := viper.GetString(co.Name)
	if raw == "" {
		return fmt.Errorf("cors allowed origins cannot be empty")
	}

	origins := strings.Split(raw, ",")
	for _, origin := range origins {
		if origin == "*" {
			continue
		}
		if _, err := url.ParseRequestURI(origin); err != nil {
			return fmt.Errorf("parsing cors origin %q: %w", origin, err)
		}
	}

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}
	*key = origins
	return nil
}

// SetEscrowBackend validates the escrow backend discriminator against the
// three variants the coordinator's escrow.Adapter actually implements.
func SetEscrowBackend(co *config.ConfigOption) error {
	raw := strings.ToLower(viper.GetString(co.Name))
	switch raw {
	case "onchain", "channel", "simulated":
	default:
		return fmt.Errorf("unsupported escrow backend %q: must be one of onchain, channel, simulated", raw)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}
	*key = raw
	return nil
}
