// Package transform wraps the third-party compilers and minifiers used by the
// stages. Each transform is a pure bytes-in/bytes-out function with a
// documented contract; none of them touch the filesystem except through the
// include paths handed to the Sass compiler.
package transform

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
)

// ErrCompilerUnavailable means the external Sass compiler could not be started.
// Stages treat it as a stage-level failure rather than a per-file one.
var ErrCompilerUnavailable = errors.New("sass compiler unavailable")

// SassInput is one stylesheet to compile.
type SassInput struct {
	Path         string // absolute path, used for error messages and relative imports
	Source       string
	IncludePaths []string
}

// StyleCompiler compiles Sass/SCSS into compressed CSS.
type StyleCompiler interface {
	Compile(in SassInput) (string, error)
	Close() error
}

// DartSass compiles through the embedded Dart Sass protocol. The transpiler
// process is started lazily on first use and shared by concurrent callers.
type DartSass struct {
	binary  string
	timeout time.Duration

	once       sync.Once
	transpiler *godartsass.Transpiler
	startErr   error
}

// NewDartSass returns a compiler using the given dart-sass binary ("" = sass from $PATH).
func NewDartSass(binary string) *DartSass {
	return &DartSass{binary: binary, timeout: 30 * time.Second}
}

func (d *DartSass) start() error {
	d.once.Do(func() {
		t, err := godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: d.binary,
			Timeout:                  d.timeout,
		})
		if err != nil {
			d.startErr = fmt.Errorf("%w: %w", ErrCompilerUnavailable, err)
			return
		}
		d.transpiler = t
	})
	return d.startErr
}

// Compile returns compressed CSS for in.
func (d *DartSass) Compile(in SassInput) (string, error) {
	if err := d.start(); err != nil {
		return "", err
	}
	includes := append([]string{filepath.Dir(in.Path)}, in.IncludePaths...)
	res, err := d.transpiler.Execute(godartsass.Args{
		Source:       in.Source,
		URL:          fileURL(in.Path),
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		OutputStyle:  godartsass.OutputStyleCompressed,
		IncludePaths: includes,
	})
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// Close stops the transpiler process if it was started.
func (d *DartSass) Close() error {
	if d.transpiler == nil {
		return nil
	}
	if err := d.transpiler.Close(); err != nil && !errors.Is(err, godartsass.ErrShutdown) {
		return err
	}
	return nil
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
