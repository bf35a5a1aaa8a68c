// Package logger provides structured logging for discovery sessions.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is a zerolog level.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Logger is a zerolog logger carrying session fields.
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Pretty     bool // console writer instead of JSON lines
	Output     io.Writer
	TimeFormat string
	Component  string
}

// DefaultConfig logs info and above to stderr through the console writer.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Pretty:     true,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// LevelFor maps the verbose and debug switches to a level. Without either
// only warnings and errors are written so the progress line stays readable.
func LevelFor(verbose, debug bool) Level {
	switch {
	case debug:
		return DebugLevel
	case verbose:
		return InfoLevel
	default:
		return WarnLevel
	}
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	var out io.Writer = cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).Level(cfg.Level).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return &Logger{zl: ctx.Logger()}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{zl: fn(l.zl.With()).Logger()}
}

// WithComponent tags entries with the emitting package.
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("component", component) })
}

// WithRun tags entries with a run ID.
func (l *Logger) WithRun(id string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("run", id) })
}

// WithURL tags entries with a URL.
func (l *Logger) WithURL(url string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("url", url) })
}

// WithField adds an arbitrary field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

// WithError attaches err.
func (l *Logger) WithError(err error) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Err(err) })
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *Logger) Infof(format string, args ...interface{}) { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.zl.Warn().Msgf(format, args...) }

// Event starts an entry at level for callers that add their own fields.
func (l *Logger) Event(level Level) *zerolog.Event {
	return l.zl.WithLevel(level)
}

// DiscoveryEvent logs a newly recorded endpoint.
func (l *Logger) DiscoveryEvent(protocol, method, url, source string) {
	l.zl.Info().
		Str("type", protocol).
		Str("method", method).
		Str("url", url).
		Str("source", source).
		Msg("Discovered endpoint")
}

// TransitionEvent logs a session state change.
func (l *Logger) TransitionEvent(from, to string, retryCount int) {
	l.zl.Debug().
		Str("from", from).
		Str("to", to).
		Int("retry", retryCount).
		Msg("Session transition")
}

// ErrorEvent logs the error that ended a session phase.
func (l *Logger) ErrorEvent(err error, url, phase string) {
	l.zl.Error().
		Err(err).
		Str("url", url).
		Str("phase", phase).
		Msg("Session phase failed")
}

// StatsEvent logs the end-of-run counters.
func (l *Logger) StatsEvent(stats map[string]interface{}) {
	l.zl.Info().Fields(stats).Msg("Discovery statistics")
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(name string) (Level, error) {
	return zerolog.ParseLevel(name)
}
