package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func clearModeEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvMode, "")
	t.Setenv(EnvNodeMode, "")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearModeEnv(t)
	dir := t.TempDir()

	cfg, err := Load(DefaultConfigFile, false, WithProjectDir(dir))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "develop"), cfg.SourcePath())
	assert.Equal(t, filepath.Join(dir, "view"), cfg.DistPath())
	assert.Equal(t, filepath.Join(dir, "index.html"), cfg.IndexPath())
	assert.Equal(t, filepath.Join(dir, "develop", "data.json"), cfg.DataPath())
	assert.Equal(t, filepath.Join(dir, ".imagecache"), cfg.CachePath())
	assert.Equal(t, filepath.Join(dir, ".sitebuilder", "journal.db"), cfg.JournalPath())
	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, 75, cfg.Images.JPEGQuality)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 3001, cfg.Server.ControlPort)
	assert.Equal(t, 300*time.Millisecond, cfg.Server.Debounce)
	assert.True(t, cfg.Server.LiveReloadEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_JournalOff(t *testing.T) {
	clearModeEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultConfigFile), "journal: off\n")

	cfg, err := Load(DefaultConfigFile, false, WithProjectDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.JournalPath())
}

func TestLoad_RequiredFileMissing(t *testing.T) {
	clearModeEnv(t)
	dir := t.TempDir()

	_, err := Load("custom.yaml", true, WithProjectDir(dir))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	clearModeEnv(t)
	dir := t.TempDir()
	t.Setenv("SB_TEST_DIST", "public")
	writeFile(t, filepath.Join(dir, DefaultConfigFile), `
source: src
dist: ${SB_TEST_DIST}
journal: .sitebuilder/journal.db
mode: production
images:
  jpeg_quality: 80
  png_compression: SPEED
server:
  port: 8000
  control_port: 8001
  debounce: 50ms
`)

	cfg, err := Load(DefaultConfigFile, false, WithProjectDir(dir))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "public"), cfg.DistPath())
	assert.Equal(t, filepath.Join(dir, "src"), cfg.SourcePath())
	assert.Equal(t, filepath.Join(dir, ".sitebuilder", "journal.db"), cfg.JournalPath())
	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, 80, cfg.Images.JPEGQuality)
	assert.Equal(t, "speed", cfg.Images.PNGCompression)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.Debounce)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	clearModeEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultConfigFile), "sauce: develop\n")

	_, err := Load(DefaultConfigFile, false, WithProjectDir(dir))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_OptionsOverrideFile(t *testing.T) {
	clearModeEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultConfigFile), "mode: production\n")

	cfg, err := Load(DefaultConfigFile, false,
		WithProjectDir(dir),
		WithMode(ModeDevelopment),
		WithPorts(4000, 4001),
		WithPoll(2*time.Second),
		WithLiveReload(false),
	)
	require.NoError(t, err)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, 4001, cfg.Server.ControlPort)
	assert.Equal(t, 2*time.Second, cfg.Server.Poll)
	assert.False(t, cfg.Server.LiveReloadEnabled())
}

func TestResolveMode_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		flag     Mode
		sbEnv    string
		nodeEnv  string
		fromFile Mode
		want     Mode
	}{
		{name: "default", want: ModeDevelopment},
		{name: "file", fromFile: ModeProduction, want: ModeProduction},
		{name: "node env beats file", nodeEnv: "development", fromFile: ModeProduction, want: ModeDevelopment},
		{name: "sitebuilder env beats node env", sbEnv: "production", nodeEnv: "development", want: ModeProduction},
		{name: "flag beats env", flag: ModeDevelopment, sbEnv: "production", want: ModeDevelopment},
		{name: "unknown env value is development", nodeEnv: "staging", want: ModeDevelopment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvMode, tt.sbEnv)
			t.Setenv(EnvNodeMode, tt.nodeEnv)
			assert.Equal(t, tt.want, resolveMode(tt.flag, tt.fromFile))
		})
	}
}

func TestLoad_DotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvMode, "")
	t.Setenv(EnvNodeMode, "development")
	writeFile(t, filepath.Join(dir, ".env"), "NODE_ENV=production\n")

	cfg, err := Load("", false, WithProjectDir(dir))
	require.NoError(t, err)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Prod ")
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, m)

	_, err = ParseMode("staging")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dist equals source", func(c *Config) { c.DistDir = c.SourceDir }},
		{"dist is project root", func(c *Config) { c.DistDir = "." }},
		{"dist inside source", func(c *Config) { c.DistDir = "develop/out" }},
		{"source inside dist", func(c *Config) { c.SourceDir = "view/src" }},
		{"index inside dist", func(c *Config) { c.IndexFile = "view/index.html" }},
		{"jpeg quality", func(c *Config) { c.Images.JPEGQuality = 101 }},
		{"png compression", func(c *Config) { c.Images.PNGCompression = "ultra" }},
		{"same ports", func(c *Config) { c.Server.ControlPort = c.Server.Port }},
		{"port range", func(c *Config) { c.Server.Port = 70000 }},
		{"layout escapes source", func(c *Config) { c.Layout.Lib = "../lib" }},
		{"layout duplicate", func(c *Config) { c.Layout.Scripts = c.Layout.Styles }},
		{"same delimiters", func(c *Config) { c.Markup.RightDelim = c.Markup.LeftDelim }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), "got %v", err)
		})
	}

	require.NoError(t, Validate(Default(t.TempDir())))
}
