package logger

import "sync"

// Entry is one captured log line
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// Recorder is a Logger that keeps entries in memory so tests can assert
// on what a component logged: state transitions, account picks,
// challenge warnings. Field binding returns views over the same store,
// mirroring how the real logger derives tagged loggers.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) capture(level, msg string, bound, extra map[string]interface{}) {
	fields := make(map[string]interface{}, len(bound)+len(extra))
	for k, v := range bound {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: fields})
}

// Entries returns a copy of everything captured so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ByLevel returns the captured entries at the given level
func (r *Recorder) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entry with the given message
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Reset discards everything captured so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

func (r *Recorder) Debug(msg string) { r.capture("debug", msg, nil, nil) }
func (r *Recorder) Info(msg string)  { r.capture("info", msg, nil, nil) }
func (r *Recorder) Warn(msg string)  { r.capture("warn", msg, nil, nil) }
func (r *Recorder) Error(msg string) { r.capture("error", msg, nil, nil) }

func (r *Recorder) WithField(key string, value interface{}) Logger {
	return &recorderView{rec: r, bound: map[string]interface{}{key: value}}
}

func (r *Recorder) WithFields(fields map[string]interface{}) Logger {
	return (&recorderView{rec: r}).WithFields(fields)
}

func (r *Recorder) WithError(err error) Logger {
	if err == nil {
		return r
	}
	return r.WithField("error", err.Error())
}

func (r *Recorder) DebugWithFields(msg string, fields map[string]interface{}) {
	r.capture("debug", msg, nil, fields)
}

func (r *Recorder) InfoWithFields(msg string, fields map[string]interface{}) {
	r.capture("info", msg, nil, fields)
}

func (r *Recorder) WarnWithFields(msg string, fields map[string]interface{}) {
	r.capture("warn", msg, nil, fields)
}

func (r *Recorder) ErrorWithFields(msg string, fields map[string]interface{}) {
	r.capture("error", msg, nil, fields)
}

// recorderView is a recorder handle with bound fields
type recorderView struct {
	rec   *Recorder
	bound map[string]interface{}
}

func (v *recorderView) Debug(msg string) { v.rec.capture("debug", msg, v.bound, nil) }
func (v *recorderView) Info(msg string)  { v.rec.capture("info", msg, v.bound, nil) }
func (v *recorderView) Warn(msg string)  { v.rec.capture("warn", msg, v.bound, nil) }
func (v *recorderView) Error(msg string) { v.rec.capture("error", msg, v.bound, nil) }

func (v *recorderView) WithField(key string, value interface{}) Logger {
	merged := make(map[string]interface{}, len(v.bound)+1)
	for k, val := range v.bound {
		merged[k] = val
	}
	merged[key] = value
	return &recorderView{rec: v.rec, bound: merged}
}

func (v *recorderView) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(v.bound)+len(fields))
	for k, val := range v.bound {
		merged[k] = val
	}
	for k, val := range fields {
		merged[k] = val
	}
	return &recorderView{rec: v.rec, bound: merged}
}

func (v *recorderView) WithError(err error) Logger {
	if err == nil {
		return v
	}
	return v.WithField("error", err.Error())
}

func (v *recorderView) DebugWithFields(msg string, fields map[string]interface{}) {
	v.rec.capture("debug", msg, v.bound, fields)
}

func (v *recorderView) InfoWithFields(msg string, fields map[string]interface{}) {
	v.rec.capture("info", msg, v.bound, fields)
}

func (v *recorderView) WarnWithFields(msg string, fields map[string]interface{}) {
	v.rec.capture("warn", msg, v.bound, fields)
}

func (v *recorderView) ErrorWithFields(msg string, fields map[string]interface{}) {
	v.rec.capture("error", msg, v.bound, fields)
}
