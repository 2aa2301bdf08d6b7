package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Option overrides a loaded value. Options are applied after the file and
// environment, so CLI flags always win.
type Option func(*overrides)

type overrides struct {
	projectDir  string
	mode        Mode
	port        int
	controlPort int
	poll        time.Duration
	liveReload  *bool
}

// WithProjectDir sets the project root. Relative config paths resolve against it.
func WithProjectDir(dir string) Option {
	return func(o *overrides) { o.projectDir = dir }
}

// WithMode forces the build mode regardless of environment.
func WithMode(mode Mode) Option {
	return func(o *overrides) { o.mode = mode }
}

// WithPorts overrides the docs and control ports. Zero keeps the loaded value.
func WithPorts(port, controlPort int) Option {
	return func(o *overrides) {
		o.port = port
		o.controlPort = controlPort
	}
}

// WithPoll enables the polling watcher fallback.
func WithPoll(interval time.Duration) Option {
	return func(o *overrides) { o.poll = interval }
}

// WithLiveReload toggles browser notification.
func WithLiveReload(enabled bool) Option {
	return func(o *overrides) { o.liveReload = &enabled }
}

// Load builds the configuration for one invocation.
//
// path may be empty or point at a missing file, in which case defaults are used;
// when required is true (an explicit --config flag) a missing file is an error.
func Load(path string, required bool, opts ...Option) (*Config, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	projectDir := o.projectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve working directory").Fatal().Build()
		}
		projectDir = wd
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve project directory").Fatal().Build()
	}

	loadEnvFiles(projectDir)

	cfg := &Config{}
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(projectDir, path)
		}
		if err := decodeFile(path, cfg); err != nil {
			if errors.Is(err, os.ErrNotExist) && !required {
				slog.Debug("No config file, using defaults", "path", path)
			} else {
				return nil, err
			}
		}
	}
	cfg.ProjectDir = projectDir

	applyDefaults(cfg)
	cfg.Mode = resolveMode(o.mode, cfg.Mode)

	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.controlPort != 0 {
		cfg.Server.ControlPort = o.controlPort
	}
	if o.poll != 0 {
		cfg.Server.Poll = o.poll
	}
	if o.liveReload != nil {
		cfg.Server.LiveReload = o.liveReload
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ferrors.WrapError(err, ferrors.CategoryNotFound, "configuration file not found").
				Fatal().WithContext("path", path).Build()
		}
		return ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").
			WithContext("path", path).Build()
	}

	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "parse configuration file").
			Fatal().WithContext("path", path).Build()
	}
	return nil
}

// loadEnvFiles reads .env then .env.local from the project root. Existing
// process variables are never overwritten.
func loadEnvFiles(projectDir string) {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(projectDir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", "path", p, "error", err)
			continue
		}
		slog.Debug("Loaded environment file", "path", p)
	}
}
