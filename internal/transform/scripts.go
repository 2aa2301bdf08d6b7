package transform

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// MinifyJS minifies whitespace, syntax and identifiers of a standalone script.
// No source map and no legal comments are emitted. filename only labels errors.
func MinifyJS(src []byte, filename string) ([]byte, error) {
	res := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        filename,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
		Sourcemap:         api.SourceMapNone,
		Charset:           api.CharsetUTF8,
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("minify js: %s", formatMessages(res.Errors))
	}
	return res.Code, nil
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
