// Package zerolog adapts a zerolog.Logger to querycache.Logger.
package zerolog

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func New(l zerolog.Logger) Logger { return Logger{L: l} }

func (z Logger) Debug(msg string, f querycache.Fields) { emit(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f querycache.Fields)  { emit(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f querycache.Fields)  { emit(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f querycache.Fields) { emit(z.L.Error(), msg, f) }

// emit is a no-op when e is nil (level disabled).
func emit(e *zerolog.Event, msg string, f querycache.Fields) {
	if e == nil {
		return
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := f[k].(type) {
		case error:
			e = e.AnErr(k, v)
		case string:
			e = e.Str(k, v)
		default:
			e = e.Interface(k, v)
		}
	}
	e.Msg(msg)
}
