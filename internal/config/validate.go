package config

import (
	"fmt"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/normalization"
)

var pngCompression = normalization.NewNormalizer("png compression", map[string]string{
	"default": "default",
	"speed":   "speed",
	"best":    "best",
	"none":    "none",
}, DefaultPNGCompression)

// Validate checks a fully defaulted Config.
func Validate(cfg *Config) error {
	if err := validatePaths(cfg); err != nil {
		return err
	}
	if err := validateLayout(cfg); err != nil {
		return err
	}
	if cfg.Images.JPEGQuality < 1 || cfg.Images.JPEGQuality > 100 {
		return invalid("images.jpeg_quality must be between 1 and 100", "jpeg_quality", cfg.Images.JPEGQuality)
	}
	compression, err := pngCompression.NormalizeWithError(cfg.Images.PNGCompression)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "images.png_compression").Fatal().Build()
	}
	cfg.Images.PNGCompression = compression

	if cfg.Markup.LeftDelim == cfg.Markup.RightDelim {
		return invalid("markup delimiters must differ", "delim", cfg.Markup.LeftDelim)
	}
	return validateServer(cfg.Server)
}

func validatePaths(cfg *Config) error {
	src, dist, root := cfg.SourcePath(), cfg.DistPath(), filepath.Clean(cfg.ProjectDir)

	switch {
	case dist == root:
		return invalid("dist must not be the project root", "dist", dist)
	case dist == src:
		return invalid("dist must differ from source", "dist", dist)
	case within(src, dist) || within(root, dist):
		return invalid("dist must not contain the source tree or project root", "dist", dist)
	case within(dist, src):
		return invalid("dist must not be inside source", "dist", dist)
	case within(cfg.IndexPath(), dist) || cfg.IndexPath() == dist:
		return invalid("index file must live outside dist", "index", cfg.IndexPath())
	case within(cfg.CachePath(), dist):
		return invalid("image cache must live outside dist", "cache_dir", cfg.CachePath())
	}
	if filepath.IsAbs(cfg.DataFile) || strings.HasPrefix(filepath.Clean(cfg.DataFile), "..") {
		return invalid("data_file must be relative to source", "data_file", cfg.DataFile)
	}
	return nil
}

func validateLayout(cfg *Config) error {
	dirs := map[string]string{
		"styles":  cfg.Layout.Styles,
		"scripts": cfg.Layout.Scripts,
		"images":  cfg.Layout.Images,
		"lib":     cfg.Layout.Lib,
	}
	seen := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		clean := filepath.ToSlash(filepath.Clean(dir))
		if filepath.IsAbs(dir) || clean == "." || strings.HasPrefix(clean, "..") {
			return invalid(fmt.Sprintf("layout.%s must be a relative directory inside source", name), "layout", dir)
		}
		if other, ok := seen[clean]; ok {
			return invalid(fmt.Sprintf("layout.%s and layout.%s point at the same directory", name, other), "layout", dir)
		}
		seen[clean] = name
	}
	return nil
}

func validateServer(s ServerConfig) error {
	for _, p := range []int{s.Port, s.ControlPort} {
		if p < 1 || p > 65535 {
			return invalid("server ports must be between 1 and 65535", "port", p)
		}
	}
	if s.Port == s.ControlPort {
		return invalid("server.port and server.control_port must differ", "port", s.Port)
	}
	if s.Debounce < 0 || s.Poll < 0 {
		return invalid("server durations must not be negative", "debounce", s.Debounce)
	}
	return nil
}

// within reports whether p is strictly below dir.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func invalid(msg, key string, value any) error {
	return ferrors.ValidationError(msg).WithContext(key, value).Build()
}
