package logging

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	CONSOLE = "console"
	JOURNAL = "journald"
)

// Logger is a wrapper around zap.SugaredLogger that supports a periodic
// interval for rate-limited Delay-style logging (see DelayedMsg). Loggers
// derived via Logger.With/Named carry over name and interval but keep their
// own DelayedMsg state; the parent does not record them.
type Logger struct {
	*zap.SugaredLogger

	name     string
	interval time.Duration

	mu       sync.Mutex
	lastLogs map[string]time.Time
}

// NewLogger wraps z, associating it with name and interval for the benefit
// of DelayedMsg.
func NewLogger(z *zap.SugaredLogger, name string, interval time.Duration) *Logger {
	return &Logger{SugaredLogger: z, name: name, interval: interval, lastLogs: make(map[string]time.Time)}
}

// With returns a Logger with l's fields plus args, carrying over name and interval.
func (l *Logger) With(args ...interface{}) *Logger {
	return NewLogger(l.SugaredLogger.With(args...), l.name, l.interval)
}

// Named returns a Logger scoped to a dotted child of l's name.
func (l *Logger) Named(name string) *Logger {
	return NewLogger(l.SugaredLogger.Named(name), l.name+"."+name, l.interval)
}

// DelayedMsg logs msg at the given level at most once per Logger.interval for
// the given key, dropping repeats that arrive sooner. Useful for connection
// retry loops that would otherwise log every failed attempt.
func (l *Logger) DelayedMsg(key string, level zapcore.Level, msg string, fields ...zap.Field) {
	l.mu.Lock()
	last, seen := l.lastLogs[key]
	now := time.Now()
	if seen && now.Sub(last) < l.interval {
		l.mu.Unlock()
		return
	}
	l.lastLogs[key] = now
	l.mu.Unlock()

	ce := l.Desugar().Check(level, msg)
	if ce != nil {
		ce.Write(fields...)
	}
}

// NewLoggerFromConfig builds the root *zap.Logger core described by c and
// wraps a named Logger around it.
func NewLoggerFromConfig(c *Config, name string) (*Logger, error) {
	if err := AssertOutput(c.Output); err != nil {
		return nil, errors.WithStack(err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	switch c.Output {
	case JOURNAL:
		core = NewJournaldCore(name, c.Level)
	default:
		core = zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(zapcore.AddSync(os.Stderr)),
			c.Level,
		)
	}

	if lvl, ok := c.Options[name]; ok {
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(os.Stderr)), lvl)
	}

	z := zap.New(core).Sugar().Named(name)

	return NewLogger(z, name, c.Interval), nil
}
