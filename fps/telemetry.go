package fps

import (
	"io"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Logger is the module's shared structured logger. Telemetry is
// emitted, never persisted: callers choose the io.Writer (stderr by
// default, a test buffer, ...), but this package never opens a log
// file itself.
type Logger struct {
	l *charmlog.Logger
}

// NewLogger wraps w in a structured, leveled logger tagged with
// component.
func NewLogger(w io.Writer, component string) *Logger {
	if w == nil {
		w = os.Stderr
	}

	l := charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          component,
		ReportTimestamp: true,
		ReportCaller:    false,
	})

	return &Logger{l: l}
}

func (lg *Logger) With(fields ...any) *Logger {
	return &Logger{l: lg.l.With(fields...)}
}

func (lg *Logger) Debugf(format string, args ...any) { lg.l.Debugf(format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.l.Infof(format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.l.Warnf(format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.l.Errorf(format, args...) }

// timestampFormatter renders last-seen / telemetry timestamps using a
// strftime layout instead of Go's reference-time layout, since
// operators of this class of system expect strftime-style formats in
// config and logs.
var timestampFormatter, _ = strftime.New("%Y-%m-%d %H:%M:%S")

// FormatTimestamp renders t using the module's strftime layout, or
// "never" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if timestampFormatter == nil {
		return t.Format(time.RFC3339)
	}
	return timestampFormatter.FormatString(t)
}
