package logging

import (
	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a *logrus.Logger to the Logger interface, for
// embedders that want structured, leveled production logging instead of
// the stdlib-backed DefaultLogger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps logger with a "component" field so mempool output
// is easy to filter out of a validator's combined log stream.
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logger.WithField("component", "mempool")}
}

func (l *LogrusLogger) Debug(v ...interface{})                 { l.entry.Debug(v...) }
func (l *LogrusLogger) Debugf(format string, v ...interface{})  { l.entry.Debugf(format, v...) }
func (l *LogrusLogger) Info(v ...interface{})                   { l.entry.Info(v...) }
func (l *LogrusLogger) Infof(format string, v ...interface{})   { l.entry.Infof(format, v...) }
func (l *LogrusLogger) Warn(v ...interface{})                   { l.entry.Warn(v...) }
func (l *LogrusLogger) Warnf(format string, v ...interface{})   { l.entry.Warnf(format, v...) }
func (l *LogrusLogger) Error(v ...interface{})                  { l.entry.Error(v...) }
func (l *LogrusLogger) Errorf(format string, v ...interface{})  { l.entry.Errorf(format, v...) }
func (l *LogrusLogger) Fatal(v ...interface{})                  { l.entry.Fatal(v...) }
func (l *LogrusLogger) Fatalf(format string, v ...interface{})  { l.entry.Fatalf(format, v...) }
