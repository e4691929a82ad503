// Package logrus adapts a *logrus.Entry to querycache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l (a *logrus.Logger) as an entry with no preset fields.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: logrus.NewEntry(l)}
}

func (l Logger) Debug(msg string, f querycache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f querycache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f querycache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f querycache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f querycache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	// logrus renders errors only under logrus.ErrorKey; other keys keep the value as is.
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f))
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
