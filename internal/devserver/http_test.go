package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func docsRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	write("index.html", "<html><body><h1>Index</h1></body></html>")
	write("view/about.html", "<html><body>About</body></html>")
	write("view/assets/css/main.css", "body{color:red}")
	write("view/site.webmanifest", `{"name":"site"}`)
	write("view/assets/docs/guide.pdf", "%PDF-1.4")
	return root
}

func TestDocsHandler_FallbackAndInjection(t *testing.T) {
	h := docsHandler(handlerDeps{root: docsRoot(t), controlPort: 3001, liveReload: true})

	resp, body := get(t, h, "/some/deep/link")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1>Index</h1>")
	assert.Contains(t, body, `<script async src="http://localhost:3001/livereload.js"></script></body>`)

	_, body = get(t, h, "/view/about.html")
	assert.Contains(t, body, "About")
	assert.Contains(t, body, "livereload.js")

	_, body = get(t, h, "/view/assets/css/main.css")
	assert.Equal(t, "body{color:red}", body)

	resp, _ = get(t, h, "/view/missing.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocsHandler_ExistingFilesBypassFallback(t *testing.T) {
	h := docsHandler(handlerDeps{root: docsRoot(t), controlPort: 3001, liveReload: true})

	resp, body := get(t, h, "/view/site.webmanifest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"name":"site"}`, body)

	_, body = get(t, h, "/view/assets/docs/guide.pdf")
	assert.Equal(t, "%PDF-1.4", body)

	_, body = get(t, h, "/view/missing.webmanifest")
	assert.Contains(t, body, "<h1>Index</h1>")
}

func TestDocsHandler_NoInjectionWhenDisabled(t *testing.T) {
	h := docsHandler(handlerDeps{root: docsRoot(t), controlPort: 3001})
	_, body := get(t, h, "/")
	assert.NotContains(t, body, "livereload.js")
}

func TestInjector_LargeBodyPassesThrough(t *testing.T) {
	big := strings.Repeat("x", maxInjectBuffer+10) + "</body>"
	h := injectScript(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(big[:1000]))
		_, _ = w.Write([]byte(big[1000:]))
	}), 3001)

	_, body := get(t, h, "/page.html")
	assert.Equal(t, big, body)
}

func TestInjector_NonHTMLContentType(t *testing.T) {
	h := injectScript(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"a":"</body>"}`))
	}), 3001)

	resp, body := get(t, h, "/data.html")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, `{"a":"</body>"}`, body)
}

type fixedStatus struct{ report *pipeline.Report }

func (f fixedStatus) Last() *pipeline.Report { return f.report }

func TestControlHandler(t *testing.T) {
	var reasons []string
	deps := handlerDeps{
		controlPort: 3001,
		liveReload:  true,
		hub:         NewHub(nil),
		status:      fixedStatus{report: &pipeline.Report{BuildID: "b-1", Outcome: pipeline.OutcomeSuccess}},
		rebuild: func(_ context.Context, reason string) error {
			reasons = append(reasons, reason)
			return nil
		},
		started: time.Now(),
		errors:  ferrors.NewHTTPErrorAdapter(nil),
	}
	defer deps.hub.Shutdown()
	h := controlHandler(deps)

	resp, body := get(t, h, "/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st struct {
		LastBuild struct {
			BuildID string `json:"build_id"`
			Outcome string `json:"outcome"`
		} `json:"last_build"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, "b-1", st.LastBuild.BuildID)
	assert.Equal(t, "success", st.LastBuild.Outcome)

	_, body = get(t, h, "/livereload.js")
	assert.Contains(t, body, ":3001/livereload")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebuild", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"control endpoint"}, reasons)

	resp, _ = get(t, h, "/rebuild")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestControlHandler_RebuildError(t *testing.T) {
	deps := handlerDeps{
		hub: NewHub(nil),
		rebuild: func(context.Context, string) error {
			return ferrors.RuntimeError("event bus is closed").Build()
		},
		errors: ferrors.NewHTTPErrorAdapter(nil),
	}
	rec := httptest.NewRecorder()
	controlHandler(deps).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rebuild", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
