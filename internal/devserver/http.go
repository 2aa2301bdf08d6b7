package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"regexp"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

// staticExt matches request paths always served as files. Other paths are
// served as files when they exist and fall back to the root index otherwise.
var staticExt = regexp.MustCompile(`(?i)\.(css|js|map|json|txt|xml|ico|gif|jpe?g|png|svg|webp|woff2?|ttf|eot|html?)$`)

func spaFallback(root http.FileSystem, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && !staticExt.MatchString(r.URL.Path) && !exists(root, r.URL.Path) {
			r2 := r.Clone(r.Context())
			// "/" rather than "/index.html": http.FileServer redirects the latter.
			r2.URL.Path = "/"
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

func exists(root http.FileSystem, name string) bool {
	f, err := root.Open(path.Clean("/" + name))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusProvider exposes the last build report.
type statusProvider interface {
	Last() *pipeline.Report
}

// rebuildRequester queues a full rebuild.
type rebuildRequester func(ctx context.Context, reason string) error

type status struct {
	Started    time.Time        `json:"started"`
	Clients    int              `json:"livereload_clients"`
	LiveReload bool             `json:"live_reload"`
	LastBuild  *pipeline.Report `json:"last_build,omitempty"`
}

// httpServers owns the docs and control listeners.
type httpServers struct {
	docs    *http.Server
	control *http.Server
	logger  *slog.Logger
}

type handlerDeps struct {
	root        string
	controlPort int
	liveReload  bool
	hub         *Hub
	status      statusProvider
	rebuild     rebuildRequester
	registry    prom.Gatherer
	started     time.Time
	errors      *ferrors.HTTPErrorAdapter
}

func docsHandler(d handlerDeps) http.Handler {
	root := http.Dir(d.root)
	var h http.Handler = http.FileServer(root)
	if d.liveReload {
		h = injectScript(h, d.controlPort)
	}
	return spaFallback(root, h)
}

func controlHandler(d handlerDeps) http.Handler {
	mux := http.NewServeMux()
	if d.liveReload {
		mux.Handle("/livereload", cors(d.hub))
		script := clientScript(d.controlPort)
		mux.Handle("/livereload.js", cors(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			_, _ = w.Write([]byte(script))
		})))
	}
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		st := status{Started: d.started, Clients: d.hub.Clients(), LiveReload: d.liveReload}
		if d.status != nil {
			st.LastBuild = d.status.Last()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.Handle("POST /rebuild", cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.rebuild(r.Context(), "control endpoint"); err != nil {
			d.errors.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	})))
	return mux
}

// listen pre-binds both ports so a busy port fails startup before anything serves.
func listen(port, controlPort int) (docs, control net.Listener, err error) {
	docs, err = net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, ferrors.ServerError("failed to bind docs port").WithCause(err).WithContext("port", port).Build()
	}
	control, err = net.Listen("tcp", fmt.Sprintf(":%d", controlPort))
	if err != nil {
		_ = docs.Close()
		return nil, nil, ferrors.ServerError("failed to bind control port").WithCause(err).WithContext("port", controlPort).Build()
	}
	return docs, control, nil
}

func startHTTP(d handlerDeps, docsLn, controlLn net.Listener, logger *slog.Logger) *httpServers {
	s := &httpServers{
		docs:   &http.Server{Handler: docsHandler(d), ReadHeaderTimeout: 10 * time.Second},
		// SSE connections are long-lived, so no write timeout.
		control: &http.Server{Handler: controlHandler(d), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second},
		logger:  logger,
	}
	s.serve("docs", s.docs, docsLn)
	s.serve("control", s.control, controlLn)
	return s
}

func (s *httpServers) serve(name string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "server", name, "error", err)
		}
	}()
}

// stop shuts servers down in reverse start order.
func (s *httpServers) stop(ctx context.Context) error {
	var errs []error
	if err := s.control.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("control server shutdown: %w", err))
	}
	if err := s.docs.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("docs server shutdown: %w", err))
	}
	return errors.Join(errs...)
}
