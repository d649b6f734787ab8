package logger

import (
	"time"
)

// LogFetch logs the outcome of one media HTTP request
func LogFetch(l Logger, url string, statusCode int, bytes int, duration time.Duration) {
	fields := map[string]interface{}{
		"url":         url,
		"status_code": statusCode,
		"bytes":       bytes,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("Media request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("Media request client error", fields)
	default:
		l.ErrorWithFields("Media request server error", fields)
	}
}

// LogStage logs the counters produced by one pipeline stage
func LogStage(l Logger, stage string, counters map[string]interface{}) {
	fields := map[string]interface{}{"stage": stage}
	for k, v := range counters {
		fields[k] = v
	}
	l.InfoWithFields("Stage finished", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                     {}
func (n nopLogger) Info(string)                                      {}
func (n nopLogger) Warn(string)                                      {}
func (n nopLogger) Error(string)                                     {}
func (n nopLogger) WithField(string, interface{}) Logger             { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger         { return n }
func (n nopLogger) WithError(error) Logger                           { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{})   {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})    {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})    {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{})   {}
