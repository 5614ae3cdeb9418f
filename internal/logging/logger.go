// Package logging builds the charm loggers of the CLI. Level, prefix,
// format and destination come from EVMNORM_LOG_* variables so batch runs
// can switch to machine-readable logs without touching the config file.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Environment variables read by NewLogger and NewLoggerWithWriter.
const (
	EnvLevel  = "EVMNORM_LOG_LEVEL"  // debug, info, warn, error
	EnvPrefix = "EVMNORM_LOG_PREFIX" // default "evmnorm "
	EnvFormat = "EVMNORM_LOG_FORMAT" // text, json, logfmt
	EnvToFile = "EVMNORM_LOG_TO_FILE"
)

const defaultPrefix = "evmnorm "

// LoggerCloser is a logger that may own its output file.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the log file, if any.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps a config or environment level name to a log level.
// Unknown names give info.
func ParseLevel(name string) log.Level {
	switch name {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormatter maps a format name to a formatter; anything unknown is text.
func ParseFormatter(name string) log.Formatter {
	switch name {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	formatter := ParseFormatter(os.Getenv(EnvFormat))
	timeFormat := time.Kitchen
	if formatter != log.TextFormatter {
		timeFormat = time.RFC3339
	}
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Formatter:       formatter,
		Level:           ParseLevel(os.Getenv(EnvLevel)),
	})

	prefix := os.Getenv(EnvPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}

	// never close the process's standard streams
	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger logs to stderr, or to evmnorm-<time>-<pid>.log in the working
// directory when ToFile reports true. A file that cannot be created falls
// back to stderr.
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)
	if ToFile() {
		name := fmt.Sprintf("evmnorm-%s-%d.log", time.Now().Format("20060102-150405"), os.Getpid())
		if f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
			output = f
		}
	}
	return NewLoggerWithWriter(output)
}

// ToFile reports whether EVMNORM_LOG_TO_FILE asks for file output.
func ToFile() bool {
	return os.Getenv(EnvToFile) == "1"
}

// IsDebug reports whether EVMNORM_LOG_LEVEL is debug.
func IsDebug() bool {
	return os.Getenv(EnvLevel) == "debug"
}
