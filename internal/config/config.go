// Package config builds the immutable per-invocation configuration for sitebuilder.
//
// A Config is constructed once by Load (defaults → optional sitebuilder.yaml →
// environment → CLI options), validated, and then passed explicitly to every
// stage, the orchestrator and the dev server. Nothing mutates it afterwards.
package config

import (
	"path/filepath"
	"time"
)

// DefaultConfigFile is the config file looked up when no --config flag is given.
const DefaultConfigFile = "sitebuilder.yaml"

// Config is the complete build configuration. Treat it as read-only after Load.
type Config struct {
	// ProjectDir is the absolute project root. The dev server serves this directory
	// and the generated index page is written here.
	ProjectDir string `yaml:"-"`

	SourceDir   string `yaml:"source"`
	DistDir     string `yaml:"dist"`
	IndexFile   string `yaml:"index"`
	DataFile    string `yaml:"data_file"`
	CacheDir    string `yaml:"cache_dir"`
	JournalFile string `yaml:"journal"`
	Mode        Mode   `yaml:"mode"`

	Layout LayoutConfig `yaml:"layout"`
	Images ImagesConfig `yaml:"images"`
	Markup MarkupConfig `yaml:"markup"`
	Server ServerConfig `yaml:"server"`
}

// LayoutConfig names the asset directories, relative to the source root.
type LayoutConfig struct {
	Styles  string `yaml:"styles"`
	Scripts string `yaml:"scripts"`
	Images  string `yaml:"images"`
	Lib     string `yaml:"lib"`
}

// ImagesConfig tunes the image codecs.
type ImagesConfig struct {
	JPEGQuality    int    `yaml:"jpeg_quality"`
	PNGCompression string `yaml:"png_compression"` // default|speed|best|none
}

// MarkupConfig controls template rendering.
type MarkupConfig struct {
	LeftDelim     string `yaml:"left_delim"`
	RightDelim    string `yaml:"right_delim"`
	PartialPrefix string `yaml:"partial_prefix"`
}

// ServerConfig configures the develop command.
type ServerConfig struct {
	Port        int           `yaml:"port"`
	ControlPort int           `yaml:"control_port"`
	LiveReload  *bool         `yaml:"live_reload,omitempty"`
	Debounce    time.Duration `yaml:"debounce"`
	Poll        time.Duration `yaml:"poll"`
}

// LiveReloadEnabled reports whether browser notification is on (default true).
func (s ServerConfig) LiveReloadEnabled() bool {
	return s.LiveReload == nil || *s.LiveReload
}

// IsProduction reports whether production-only transforms (HTML minification) apply.
func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// SourcePath returns the absolute source root.
func (c *Config) SourcePath() string { return c.abs(c.SourceDir) }

// DistPath returns the absolute destination root.
func (c *Config) DistPath() string { return c.abs(c.DistDir) }

// IndexPath returns the absolute path of the generated index page.
func (c *Config) IndexPath() string { return c.abs(c.IndexFile) }

// DataPath returns the absolute path of the page data context file.
func (c *Config) DataPath() string { return filepath.Join(c.SourcePath(), c.DataFile) }

// CachePath returns the absolute image cache directory.
func (c *Config) CachePath() string { return c.abs(c.CacheDir) }

// JournalOff disables the build journal when used as the journal path.
const JournalOff = "off"

// JournalPath returns the absolute build journal path, or "" when disabled.
func (c *Config) JournalPath() string {
	if c.JournalFile == "" || c.JournalFile == JournalOff {
		return ""
	}
	return c.abs(c.JournalFile)
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.ProjectDir, p)
}
