package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// silence redirects stdout and stderr to the null device for the test.
func silence(t *testing.T) {
	t.Helper()
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	stdout, stderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = devNull, devNull
	t.Cleanup(func() {
		os.Stdout, os.Stderr = stdout, stderr
		_ = devNull.Close()
	})
}

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv("SITEBUILDER_ENV", "")
	t.Setenv("NODE_ENV", "")
	t.Chdir(t.TempDir())
	silence(t)

	assert.Equal(t, 2, run([]string{"no-such-command"}))
	assert.Equal(t, 2, run([]string{"--mode", "staging", "clean"}))
	assert.Equal(t, 3, run([]string{"-c", "missing.yaml", "clean"}))
	assert.Equal(t, 0, run([]string{"clean"}))
}

func TestRun_FatalBuildExitsNonZero(t *testing.T) {
	t.Setenv("SITEBUILDER_ENV", "")
	t.Setenv("NODE_ENV", "")
	dir := t.TempDir()
	t.Chdir(dir)
	silence(t)

	page := filepath.Join(dir, "develop", "a.html")
	if err := os.MkdirAll(filepath.Dir(page), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(page, []byte("<html><body>a</body></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, run([]string{"build"}))

	// The index page path is now a non-empty directory, so clean fails.
	if err := os.Remove(filepath.Join(dir, "index.html")); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "index.html", "keep"), 0o750); err != nil {
		t.Fatal(err)
	}
	code := run([]string{"build"})
	assert.NotEqual(t, 0, code)
	assert.Equal(t, 11, code)
}
