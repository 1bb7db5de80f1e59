package logging

import (
	"context"
	"sync"
)

// Entry is one record captured by a Recorder.
type Entry struct {
	Level   string
	Message string
	Fields  []Field
}

// Field returns the value of the named field and whether it was present.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Recorder is a Logger that keeps every entry in memory.
// Loggers derived through With share the parent's entry list.
type Recorder struct {
	sink   *recorderSink
	fields []Field
}

type recorderSink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{sink: &recorderSink{}}
}

func (r *Recorder) record(level, msg string, fields []Field) {
	all := make([]Field, 0, len(r.fields)+len(fields))
	all = append(all, r.fields...)
	all = append(all, fields...)

	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	r.sink.entries = append(r.sink.entries, Entry{Level: level, Message: msg, Fields: all})
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.record("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.record("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.record("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.record("error", msg, fields) }

// With returns a recorder that prefixes fields to every entry.
func (r *Recorder) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(r.fields)+len(fields))
	merged = append(merged, r.fields...)
	merged = append(merged, fields...)
	return &Recorder{sink: r.sink, fields: merged}
}

func (r *Recorder) WithContext(ctx context.Context) Logger { return r }

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	out := make([]Entry, len(r.sink.entries))
	copy(out, r.sink.entries)
	return out
}

// Count returns how many entries were recorded at level. An empty level
// counts everything.
func (r *Recorder) Count(level string) int {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	if level == "" {
		return len(r.sink.entries)
	}
	n := 0
	for _, e := range r.sink.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	r.sink.entries = nil
}
