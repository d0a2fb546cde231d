// Package logrus adapts a logrus entry to cacheloader.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/cacheloader"
)

var _ cacheloader.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New scopes every line to the given cache name.
func New(l *logrus.Logger, cache string) Logger {
	return Logger{E: l.WithField("cache", cache)}
}

func (l Logger) Debug(msg string, f cacheloader.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f cacheloader.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f cacheloader.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f cacheloader.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f cacheloader.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f)-1)
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
