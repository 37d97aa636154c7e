package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used throughout vision-runner. It is an
// alias (not a wrapper) so call sites keep the full logrus field API.
type Logger = *logrus.Entry

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	root.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}

// NewLogger returns a logger scoped to the given component. Components show
// up as a structured field so interleaved subsystem output stays greppable.
func NewLogger(component string) Logger {
	return root.WithField("component", component)
}

// SetLevel adjusts the root level from its string form. Unknown names fall
// back to info rather than failing startup.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		root.Warnf("unknown log level %q, using info", level)
		parsed = logrus.InfoLevel
	}
	root.SetLevel(parsed)
}

// SetJSONFormat switches the root formatter to JSON output for log
// aggregation setups.
func SetJSONFormat(enabled bool) {
	if enabled {
		root.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	root.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}

// SetOutput redirects all loggers created by NewLogger. Tests use this to
// capture or silence output.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}
