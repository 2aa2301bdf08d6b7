package stage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/storage"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// fakeCompiler passes SCSS through as CSS and fails on a marker.
type fakeCompiler struct {
	unavailable bool
	calls       atomic.Int32
}

func (f *fakeCompiler) Compile(in transform.SassInput) (string, error) {
	f.calls.Add(1)
	if f.unavailable {
		return "", transform.ErrCompilerUnavailable
	}
	if strings.Contains(in.Source, "@@syntax-error") {
		return "", errors.New("expected \"{\"")
	}
	return in.Source, nil
}

func (f *fakeCompiler) Close() error { return nil }

// countingOptimizer halves its input and counts invocations.
type countingOptimizer struct {
	calls atomic.Int32
}

func (o *countingOptimizer) Optimize(_ string, data []byte) ([]byte, error) {
	o.calls.Add(1)
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data[:len(data)/2+1], nil
}

func (o *countingOptimizer) Signature() string { return "counting/v1" }

type project struct {
	cfg *config.Config
}

func newProject(t *testing.T) *project {
	t.Helper()
	return &project{cfg: config.Default(t.TempDir())}
}

func (p *project) write(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(p.cfg.SourcePath(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (p *project) dist(rel string) string {
	return filepath.Join(p.cfg.DistPath(), filepath.FromSlash(rel))
}

func (p *project) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(p.dist(rel))
	require.NoError(t, err)
	return string(data)
}

func (p *project) run(t *testing.T, name Name, deps Deps) (*Result, error) {
	t.Helper()
	deps.Config = p.cfg
	if deps.Compiler == nil {
		deps.Compiler = &fakeCompiler{}
	}
	if deps.Optimizer == nil {
		deps.Optimizer = &countingOptimizer{}
	}
	s, err := New(name, deps)
	require.NoError(t, err)
	res, runErr := s.Run(t.Context())
	require.NotNil(t, res)
	return res, runErr
}

func TestLayout_Ownership(t *testing.T) {
	l := NewLayout(config.Default(t.TempDir()))

	tests := []struct {
		rel  string
		want Name
	}{
		{"assets/css/main.scss", Styles},
		{"assets/css/_vars.scss", Styles},
		{"assets/css/plain.css", Static},
		{"assets/js/main.js", Scripts},
		{"assets/images/logo.png", Images},
		{"assets/images/photos/team.jpeg", Images},
		{"assets/images/readme.txt", Static},
		{"index.html", Markup},
		{"pages/about.ejs", Markup},
		{"legacy/old.xhtml", Markup},
		{"data.json", Markup},
		{"assets/lib/swiper/demo.html", Lib},
		{"assets/lib/swiper/.bower.json", Lib},
		{"assets/fonts/inter.woff2", Static},
		{"manifest.webmanifest", Static},
		{".htaccess", Static},
		{"assets/css/.draft.scss", Static},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Owner(tt.rel))
			for _, name := range Names() {
				assert.Equal(t, name == tt.want, l.Owns(name, tt.rel), "stage %s", name)
			}
		})
	}
}

func TestLayout_CheckDisjoint(t *testing.T) {
	p := newProject(t)
	p.write(t, "index.html", "x")
	p.write(t, "assets/lib/a/b.js", "x")
	p.write(t, "assets/images/a.png", "x")
	require.NoError(t, NewLayout(p.cfg).CheckDisjoint(p.cfg.SourcePath()))

	p.cfg.Layout.Images = "assets/lib/img"
	p.write(t, "assets/lib/img/logo.png", "x")
	err := NewLayout(p.cfg).CheckDisjoint(p.cfg.SourcePath())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Contains(t, err.Error(), "assets/lib/img/logo.png")
}

func TestLayout_CheckDisjointMissingSource(t *testing.T) {
	p := newProject(t)
	require.NoError(t, NewLayout(p.cfg).CheckDisjoint(p.cfg.SourcePath()))
}

func TestOutputPath(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cases := []struct {
		name Name
		rel  string
		want string
	}{
		{Styles, "assets/css/main.scss", "assets/css/main.css"},
		{Styles, "assets/css/_vars.scss", ""},
		{Markup, "b.ejs", "b.html"},
		{Markup, "pages/c.xhtml", "pages/c.html"},
		{Markup, "_header.html", ""},
		{Markup, "data.json", ""},
		{Scripts, "assets/js/app.js", "assets/js/app.js"},
		{Static, "robots.txt", "robots.txt"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, OutputPath(cfg, tc.name, tc.rel), "%s %s", tc.name, tc.rel)
	}
}

func TestParseName(t *testing.T) {
	n, err := ParseName("CSS")
	require.NoError(t, err)
	assert.Equal(t, Styles, n)

	_, err = ParseName("fonts")
	require.Error(t, err)
}

func TestStyles_SyntaxErrorIsolated(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/css/main.scss", ".a { user-select: none; }")
	p.write(t, "assets/css/broken.scss", ".b { @@syntax-error")
	p.write(t, "assets/css/pages/home.scss", ".c { color: red; }")
	p.write(t, "assets/css/_vars.scss", "$x: 1;")

	res, err := p.run(t, Styles, Deps{})
	require.NoError(t, err)

	assert.Equal(t, []string{"assets/css/main.css", "assets/css/pages/home.css"}, res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "assets/css/broken.scss", res.Failures[0].Path)
	assert.True(t, ferrors.HasCategory(res.Failures[0].Err, ferrors.CategoryTransform))

	assert.Contains(t, p.read(t, "assets/css/main.css"), "-webkit-user-select:none")
	assert.NoFileExists(t, p.dist("assets/css/broken.css"))
	assert.NoFileExists(t, p.dist("assets/css/_vars.css"))
}

func TestStyles_CompilerUnavailableFailsStageOnly(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/css/main.scss", ".a{}")

	res, err := p.run(t, Styles, Deps{Compiler: &fakeCompiler{unavailable: true}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, transform.ErrCompilerUnavailable))
	assert.Equal(t, err, res.Err)
	assert.Empty(t, res.Failures)
	assert.False(t, res.OK())
}

func TestScripts_Minified(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/js/main.js", "// header\nfunction greet(personName) {\n  return 'hi ' + personName;\n}\nwindow.greet = greet;\n")
	p.write(t, "assets/js/vendor/broken.js", "function (")

	res, err := p.run(t, Scripts, Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/js/main.js"}, res.Written)
	require.Len(t, res.Failures, 1)

	out := p.read(t, "assets/js/main.js")
	assert.NotContains(t, out, "// header")
	assert.NotContains(t, out, "personName")
	assert.NotContains(t, out, "sourceMappingURL")
}

func TestImages_IncrementalAndCached(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/images/a.png", "AAAAAAAAAAAAAAAA")
	p.write(t, "assets/images/icons/b.svg", "<svg>BBBBBBBB</svg>")

	opt := &countingOptimizer{}
	cache := incremental.NewOptimizedCache(storage.NewMemoryStore())
	deps := Deps{Optimizer: opt, Cache: cache}

	res, err := p.run(t, Images, deps)
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)
	assert.EqualValues(t, 2, opt.calls.Load())
	assert.Less(t, len(p.read(t, "assets/images/a.png")), 16)

	// Unchanged inputs with fresh destinations: no re-encoding at all.
	res, err = p.run(t, Images, deps)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, 2, res.Skipped)
	assert.EqualValues(t, 2, opt.calls.Load())

	// A wiped destination is restored from the cache.
	require.NoError(t, os.RemoveAll(p.cfg.DistPath()))
	res, err = p.run(t, Images, deps)
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)
	assert.Equal(t, 2, res.CacheHits)
	assert.EqualValues(t, 2, opt.calls.Load())
}

func TestImages_NeverLarger(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/images/tiny.gif", "G")

	res, err := p.run(t, Images, Deps{Optimizer: growingOptimizer{}})
	require.NoError(t, err)
	assert.Len(t, res.Written, 1)
	assert.Equal(t, "G", p.read(t, "assets/images/tiny.gif"))
}

type growingOptimizer struct{}

func (growingOptimizer) Optimize(_ string, data []byte) ([]byte, error) {
	return append(data, data...), nil
}

func (growingOptimizer) Signature() string { return "growing" }

func TestMarkup_ExtensionsAndPartials(t *testing.T) {
	p := newProject(t)
	p.write(t, "data.json", `{"clinic":"Smile","intro":"**Welcome**"}`)
	p.write(t, "_header.html", `<header>{{ .clinic }}</header>`)
	p.write(t, "a.html", `{{ template "_header.html" . }}<main>A</main>`)
	p.write(t, "b.ejs", `<main>{{ markdown .intro }}</main>`)
	p.write(t, "c.xhtml", `<main>C</main>`)
	p.write(t, "bad.html", `{{ .clinic | nosuchfunc }}`)

	res, err := p.run(t, Markup, Deps{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.html", "b.html", "c.html"}, res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad.html", res.Failures[0].Path)
	assert.True(t, ferrors.HasCategory(res.Failures[0].Err, ferrors.CategoryRender))

	assert.Equal(t, "<header>Smile</header><main>A</main>", p.read(t, "a.html"))
	assert.Contains(t, p.read(t, "b.html"), "<strong>Welcome</strong>")
	assert.NoFileExists(t, p.dist("_header.html"))
	assert.NoFileExists(t, p.dist("data.json"))
	assert.NoFileExists(t, p.dist("b.ejs"))
}

func TestMarkup_MalformedDataStillRenders(t *testing.T) {
	p := newProject(t)
	p.write(t, "data.json", `{"broken": `)
	p.write(t, "index.html", `<p>ok</p>`)

	res, err := p.run(t, Markup, Deps{})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "<p>ok</p>", p.read(t, "index.html"))
}

func TestMarkup_ProductionMinifies(t *testing.T) {
	p := newProject(t)
	p.cfg.Mode = config.ModeProduction
	src := "<html>\n  <body>\n    <!-- note -->\n    <p>hi</p>\n  </body>\n</html>\n"
	p.write(t, "index.html", src)

	_, err := p.run(t, Markup, Deps{})
	require.NoError(t, err)
	out := p.read(t, "index.html")
	assert.NotContains(t, out, "note")
	assert.Less(t, len(out), len(src))
}

func TestLib_CopiesDotfiles(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/lib/swiper/swiper.min.js", "lib")
	p.write(t, "assets/lib/swiper/.keep", "")
	p.write(t, "assets/lib/swiper/demo.html", "<p>{{ not a template }}</p>")

	res, err := p.run(t, Lib, Deps{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"assets/lib/swiper/.keep",
		"assets/lib/swiper/demo.html",
		"assets/lib/swiper/swiper.min.js",
	}, res.Written)
	assert.Equal(t, "<p>{{ not a template }}</p>", p.read(t, "assets/lib/swiper/demo.html"))
}

func TestStatic_SkipsFreshDestinations(t *testing.T) {
	p := newProject(t)
	p.write(t, "assets/fonts/inter.woff2", "font")
	p.write(t, "robots.txt", "User-agent: *")
	p.write(t, "assets/css/main.scss", "not static")

	res, err := p.run(t, Static, Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/fonts/inter.woff2", "robots.txt"}, res.Written)

	// Destination newer than source: left alone.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(p.dist("robots.txt"), []byte("hand edited"), 0o644))
	require.NoError(t, os.Chtimes(p.dist("robots.txt"), future, future))

	res, err = p.run(t, Static, Deps{})
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "hand edited", p.read(t, "robots.txt"))
}

func TestAll_ReturnsEveryStage(t *testing.T) {
	stages := All(Deps{Config: config.Default(t.TempDir()), Compiler: &fakeCompiler{}})
	require.Len(t, stages, len(Names()))
	for i, s := range stages {
		assert.Equal(t, Names()[i], s.Name())
	}
}

func TestMissingRootsProduceEmptyResults(t *testing.T) {
	p := newProject(t)
	for _, name := range Names() {
		res, err := p.run(t, name, Deps{})
		require.NoError(t, err, name)
		assert.Empty(t, res.Written, name)
	}
}
