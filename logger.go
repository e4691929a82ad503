package querycache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around your logging stack
// (see log/zap, log/logrus, log/slog and log/zerolog).
// If Logger is nil in Options, logging is disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// WithFields returns a Logger that adds base to every call. Per-call fields win on
// conflicting names. A nil l yields NopLogger.
func WithFields(l Logger, base Fields) Logger {
	if l == nil {
		return NopLogger{}
	}
	if _, nop := l.(NopLogger); nop || len(base) == 0 {
		return l
	}
	if fl, ok := l.(fieldLogger); ok {
		return fieldLogger{next: fl.next, base: merge(fl.base, base)}
	}
	return fieldLogger{next: l, base: merge(nil, base)}
}

type fieldLogger struct {
	next Logger
	base Fields
}

func (l fieldLogger) Debug(msg string, f Fields) { l.next.Debug(msg, merge(l.base, f)) }
func (l fieldLogger) Info(msg string, f Fields)  { l.next.Info(msg, merge(l.base, f)) }
func (l fieldLogger) Warn(msg string, f Fields)  { l.next.Warn(msg, merge(l.base, f)) }
func (l fieldLogger) Error(msg string, f Fields) { l.next.Error(msg, merge(l.base, f)) }

func merge(a, b Fields) Fields {
	out := make(Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
