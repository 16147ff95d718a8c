package logger

import "sync"

// TestLogEntry is a single captured log record.
type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
}

type testLogState struct {
	mu   sync.Mutex
	logs []TestLogEntry
}

// TestLogger is a Logger which captures everything logged through it.
// It is safe for use from multiple goroutines so tests can observe
// background workers.
type TestLogger struct {
	state    *testLogState
	metadata map[string]interface{}
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{state: c.state, metadata: kv}
}

func (c *TestLogger) log(severity string, msg string, args ...interface{}) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.logs = append(c.state.logs, TestLogEntry{severity, msg, args})
}

func (c *TestLogger) Trace(msg string, args ...interface{}) { c.log("TRACE", msg, args...) }
func (c *TestLogger) Debug(msg string, args ...interface{}) { c.log("DEBUG", msg, args...) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.log("INFO", msg, args...) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.log("WARN", msg, args...) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.log("ERROR", msg, args...) }

// Logs returns a copy of everything captured so far.
func (c *TestLogger) Logs() []TestLogEntry {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	out := make([]TestLogEntry, len(c.state.logs))
	copy(out, c.state.logs)
	return out
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{state: &testLogState{}}
}
