package devserver

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
)

const maxInjectBuffer = 512 * 1024

// injectScript rewrites HTML responses to load the live reload client before </body>.
func injectScript(next http.Handler, controlPort int) http.Handler {
	tag := []byte(fmt.Sprintf(`<script async src="http://localhost:%d/livereload.js"></script></body>`, controlPort))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isHTMLPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		inj := &scriptInjector{ResponseWriter: w, status: http.StatusOK, tag: tag}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

func isHTMLPath(p string) bool {
	return p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}

// scriptInjector buffers HTML up to maxInjectBuffer, then falls back to passthrough.
type scriptInjector struct {
	http.ResponseWriter
	status      int
	tag         []byte
	buf         []byte
	buffering   bool
	passthrough bool
	wroteHeader bool
}

func (s *scriptInjector) WriteHeader(code int) {
	s.status = code
	if s.passthrough {
		s.writeHeader()
	}
}

func (s *scriptInjector) writeHeader() {
	if !s.wroteHeader {
		s.ResponseWriter.WriteHeader(s.status)
		s.wroteHeader = true
	}
}

func (s *scriptInjector) Write(data []byte) (int, error) {
	if !s.buffering && !s.passthrough {
		ct := s.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			s.passthrough = true
		} else {
			s.buffering = true
		}
	}
	if s.passthrough {
		s.writeHeader()
		return s.ResponseWriter.Write(data)
	}

	if len(s.buf)+len(data) > maxInjectBuffer {
		s.buffering = false
		s.passthrough = true
		s.Header().Del("Content-Length")
		s.writeHeader()
		if len(s.buf) > 0 {
			if _, err := s.ResponseWriter.Write(s.buf); err != nil {
				return 0, err
			}
			s.buf = nil
		}
		return s.ResponseWriter.Write(data)
	}
	s.buf = append(s.buf, data...)
	return len(data), nil
}

// finalize writes the buffered body with the script tag inserted.
func (s *scriptInjector) finalize() {
	if s.passthrough {
		return
	}
	if len(s.buf) == 0 {
		s.writeHeader()
		return
	}
	body := s.buf
	if i := bytes.LastIndex(body, []byte("</body>")); i >= 0 {
		out := make([]byte, 0, len(body)+len(s.tag))
		out = append(out, body[:i]...)
		out = append(out, s.tag...)
		out = append(out, body[i+len("</body>"):]...)
		body = out
	}
	s.Header().Del("Content-Length")
	s.writeHeader()
	_, _ = s.ResponseWriter.Write(body)
}
