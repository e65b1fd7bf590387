package logger

import "sync"

// Event is one captured log call.
type Event struct {
	Level   Level
	Message string
	Fields  map[string]interface{}
}

// Recorder is a Logger that keeps every event in memory.
//
// It is safe for concurrent use; loggers derived with With share the
// same event list.
type Recorder struct {
	mu     *sync.Mutex
	events *[]Event
	fields []interface{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		mu:     &sync.Mutex{},
		events: &[]Event{},
	}
}

// Log implements Logger.Log.
func (r *Recorder) Log(level Level, msg string, keysAndValues ...interface{}) {
	fields := make(map[string]interface{})
	collect(fields, r.fields)
	collect(fields, keysAndValues)

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.events = append(*r.events, Event{Level: level, Message: msg, Fields: fields})
}

// Debug implements Logger.Debug.
func (r *Recorder) Debug(msg string, keysAndValues ...interface{}) {
	r.Log(LevelDebug, msg, keysAndValues...)
}

// Info implements Logger.Info.
func (r *Recorder) Info(msg string, keysAndValues ...interface{}) {
	r.Log(LevelInfo, msg, keysAndValues...)
}

// Warn implements Logger.Warn.
func (r *Recorder) Warn(msg string, keysAndValues ...interface{}) {
	r.Log(LevelWarn, msg, keysAndValues...)
}

// Error implements Logger.Error.
func (r *Recorder) Error(msg string, keysAndValues ...interface{}) {
	r.Log(LevelError, msg, keysAndValues...)
}

// With implements Logger.With.
func (r *Recorder) With(keysAndValues ...interface{}) Logger {
	fields := make([]interface{}, 0, len(r.fields)+len(keysAndValues))
	fields = append(fields, r.fields...)
	fields = append(fields, keysAndValues...)
	return &Recorder{mu: r.mu, events: r.events, fields: fields}
}

// Events returns a copy of the captured events in call order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(*r.events))
	copy(out, *r.events)
	return out
}

// Filter returns the captured events at the given level.
func (r *Recorder) Filter(level Level) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Level == level {
			out = append(out, ev)
		}
	}
	return out
}

// collect folds alternating key/value pairs into dst. A trailing key
// without a value is stored under "!BADKEY", matching slog.
func collect(dst map[string]interface{}, kv []interface{}) {
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			dst["!BADKEY"] = kv[i]
			continue
		}
		dst[key] = kv[i+1]
	}
}
