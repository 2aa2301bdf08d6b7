// Package pagedata loads the key/value document that markup templates render against.
package pagedata

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Context is the page data document. The zero value is an empty context.
type Context map[string]any

// Load reads and parses the data file at path.
//
// A missing file yields an empty context. A malformed file, or one whose top
// level is not an object, is logged as a warning and also yields an empty
// context so rendering can proceed.
func Load(path string) Context {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read page data", logfields.Path(path), logfields.Error(err))
		}
		return Context{}
	}
	ctx, err := Parse(data)
	if err != nil {
		slog.Warn("Ignoring malformed page data", logfields.Path(path), logfields.Error(err))
		return Context{}
	}
	return ctx
}

// Parse decodes a JSON object.
func Parse(data []byte) (Context, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse page data: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("page data must be a JSON object, got %T", v)
	}
	return Context(obj), nil
}

// Query evaluates a JSONPath expression against the context.
// A single match is returned unwrapped; no match returns nil.
func (c Context) Query(expr string) (any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath %q: %w", expr, err)
	}
	results := x.Get(map[string]any(c))
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
