// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger writes one JSON object per line, tagged with the calling component
// and the subject the request is metered against.
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	mu  sync.Mutex
	out *log.Logger
}

// LogEntry is the wire shape of a single log line
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	SubjectID  string                 `json:"subject_id"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for the specified component writing to stdout
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		out:        log.New(os.Stdout, "", 0),
	}
}

// NewWithWriter is New with a custom destination. Tests use it to capture output.
func NewWithWriter(component string, w io.Writer) *Logger {
	l := New(component)
	l.out = log.New(w, "", 0)
	return l
}

// With returns a copy of the logger for a sub-component sharing the same output
func (l *Logger) With(component string) *Logger {
	return &Logger{
		Component:  component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		out:        l.out,
	}
}

// Log creates a structured log entry and writes it out
func (l *Logger) Log(level LogLevel, subjectID, requestID, message string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		SubjectID:  subjectID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		l.out = log.New(os.Stdout, "", 0)
	}
	l.out.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(subjectID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, subjectID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(subjectID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, subjectID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(subjectID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, subjectID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(subjectID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, subjectID, requestID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(subjectID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(subjectID, requestID, message, fields)
}

// ErrorWithCode logs an error with the HTTP status code it was answered with
func (l *Logger) ErrorWithCode(subjectID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(subjectID, requestID, message, fields)
}
