// Package logging wires logrus into lastgood.
//
// Library packages only see the small Logger interface below; the CLI
// builds a logrus logger from the configured level and hands out an
// adapter. Tests and library callers that do not care get Noop.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides structured logging with key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Noop returns a Logger that discards everything.
func Noop() Logger {
	return noopLogger{}
}

// ParseLevel maps a level name to a logrus level.
// Trace and panic levels are not exposed.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warning", "warn", "":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.WarnLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// New builds a logrus logger writing to out at the given level.
func New(out io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return log, nil
}

// Adapter exposes a logrus entry as a Logger.
type Adapter struct {
	entry *logrus.Entry
}

// NewAdapter wraps log. Fields are attached to every record.
func NewAdapter(log *logrus.Logger, fields logrus.Fields) *Adapter {
	return &Adapter{entry: log.WithFields(fields)}
}

// With returns an adapter carrying extra key/value pairs.
func (a *Adapter) With(keysAndValues ...interface{}) *Adapter {
	return &Adapter{entry: a.entry.WithFields(toFields(keysAndValues))}
}

func (a *Adapter) Debug(msg string, keysAndValues ...interface{}) {
	a.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (a *Adapter) Info(msg string, keysAndValues ...interface{}) {
	a.entry.WithFields(toFields(keysAndValues)).Info(msg)
}

func (a *Adapter) Warn(msg string, keysAndValues ...interface{}) {
	a.entry.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (a *Adapter) Error(msg string, keysAndValues ...interface{}) {
	a.entry.WithFields(toFields(keysAndValues)).Error(msg)
}

// toFields pairs up keysAndValues. A trailing key without a value is
// recorded under "!BADKEY".
func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			fields["!BADKEY"] = keysAndValues[i]
			break
		}
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
