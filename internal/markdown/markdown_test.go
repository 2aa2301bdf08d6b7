package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	r := New()

	out, err := r.ToHTML("# Services\n\nWe fix **teeth** and ~~gums~~.")
	require.NoError(t, err)
	require.Contains(t, string(out), `<h1 id="services">Services</h1>`)
	require.Contains(t, string(out), "<strong>teeth</strong>")
	require.Contains(t, string(out), "<del>gums</del>")
}

func TestToHTML_DropsRawHTML(t *testing.T) {
	out, err := New().ToHTML("hello <script>alert(1)</script>")
	require.NoError(t, err)
	require.NotContains(t, string(out), "<script>")
}
