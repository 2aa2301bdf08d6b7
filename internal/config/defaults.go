package config

import "time"

// Defaults mirror the conventional develop/ → view/ project layout.
const (
	DefaultSourceDir   = "develop"
	DefaultDistDir     = "view"
	DefaultIndexFile   = "index.html"
	DefaultDataFile    = "data.json"
	DefaultCacheDir    = ".imagecache"
	DefaultJournalFile = ".sitebuilder/journal.db"

	DefaultStylesDir  = "assets/css"
	DefaultScriptsDir = "assets/js"
	DefaultImagesDir  = "assets/images"
	DefaultLibDir     = "assets/lib"

	DefaultJPEGQuality    = 75
	DefaultPNGCompression = "best"
	DefaultPartialPrefix  = "_"

	DefaultPort        = 3000
	DefaultControlPort = 3001
	DefaultDebounce    = 300 * time.Millisecond
)

// Default returns a Config populated with defaults for the given project root.
func Default(projectDir string) *Config {
	cfg := &Config{ProjectDir: projectDir}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	setString(&cfg.SourceDir, DefaultSourceDir)
	setString(&cfg.DistDir, DefaultDistDir)
	setString(&cfg.IndexFile, DefaultIndexFile)
	setString(&cfg.DataFile, DefaultDataFile)
	setString(&cfg.CacheDir, DefaultCacheDir)
	setString(&cfg.JournalFile, DefaultJournalFile)

	setString(&cfg.Layout.Styles, DefaultStylesDir)
	setString(&cfg.Layout.Scripts, DefaultScriptsDir)
	setString(&cfg.Layout.Images, DefaultImagesDir)
	setString(&cfg.Layout.Lib, DefaultLibDir)

	if cfg.Images.JPEGQuality == 0 {
		cfg.Images.JPEGQuality = DefaultJPEGQuality
	}
	setString(&cfg.Images.PNGCompression, DefaultPNGCompression)

	setString(&cfg.Markup.LeftDelim, "{{")
	setString(&cfg.Markup.RightDelim, "}}")
	setString(&cfg.Markup.PartialPrefix, DefaultPartialPrefix)

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ControlPort == 0 {
		cfg.Server.ControlPort = DefaultControlPort
	}
	if cfg.Server.Debounce == 0 {
		cfg.Server.Debounce = DefaultDebounce
	}
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}
