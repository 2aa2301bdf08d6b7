package pagedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	ctx := Load(filepath.Join(t.TempDir(), "data.json"))
	require.NotNil(t, ctx)
	assert.Empty(t, ctx)
}

func TestLoad_MalformedFileIsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"title": `), 0o600))
	assert.Empty(t, Load(p))
}

func TestLoad_NonObjectIsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(p, []byte(`[1,2,3]`), 0o600))
	assert.Empty(t, Load(p))
}

func TestLoad_Object(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"title":"Portfolio","projects":[{"name":"a"},{"name":"b"}]}`), 0o600))

	ctx := Load(p)
	assert.Equal(t, "Portfolio", ctx["title"])

	names, err := ctx.Query("$.projects[*].name")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, names)

	title, err := ctx.Query("$.title")
	require.NoError(t, err)
	assert.Equal(t, "Portfolio", title)

	missing, err := ctx.Query("$.nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ctx.Query("$[")
	require.Error(t, err)
}
