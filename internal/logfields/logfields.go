package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyDest       = "dest"
	KeyEvent      = "event"
	KeyMode       = "mode"
	KeyDurationMS = "duration_ms"
	KeyFiles      = "files"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Dest(p string) slog.Attr          { return slog.String(KeyDest, p) }
func Event(op string) slog.Attr        { return slog.String(KeyEvent, op) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Files(n int) slog.Attr            { return slog.Int(KeyFiles, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
