package config

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/normalization"
)

// Mode selects development or production output.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Environment variables consulted for the mode signal, in precedence order.
const (
	EnvMode     = "SITEBUILDER_ENV"
	EnvNodeMode = "NODE_ENV"
)

var modeNormalizer = normalization.NewNormalizer("mode", map[string]Mode{
	"development": ModeDevelopment,
	"dev":         ModeDevelopment,
	"production":  ModeProduction,
	"prod":        ModeProduction,
}, ModeDevelopment)

// NormalizeMode maps user input onto a Mode. Anything unrecognized is development.
func NormalizeMode(raw string) Mode {
	return modeNormalizer.Normalize(raw)
}

// ParseMode is the strict variant used for CLI flags.
func ParseMode(raw string) (Mode, error) {
	return modeNormalizer.NormalizeWithError(raw)
}

// resolveMode applies precedence: explicit flag > SITEBUILDER_ENV > NODE_ENV > file > default.
func resolveMode(flag Mode, fromFile Mode) Mode {
	if flag != "" {
		return flag
	}
	for _, key := range []string{EnvMode, EnvNodeMode} {
		if v := os.Getenv(key); v != "" {
			mode := NormalizeMode(v)
			if fromFile != "" && fromFile != mode {
				slog.Info("Overriding configured mode from environment", "env", key, "configured", fromFile, "mode", mode)
			}
			return mode
		}
	}
	if fromFile != "" {
		return NormalizeMode(string(fromFile))
	}
	return ModeDevelopment
}
