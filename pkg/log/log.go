// Copyright 2025 The uniOS Authors.
//
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

// Package log provides the leveled logger used by all kernel components.
//
// The interface is deliberately small (Debugf, Infof, Warningf) so callers
// never depend on the backend; the backend is logrus.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Level is a logging level.
type Level uint32

const (
	// Warning indicates a problem the kernel survived.
	Warning Level = iota

	// Info is the normal operational level.
	Info

	// Debug is verbose and intended for development only.
	Debug
)

// Logger is a logging interface.
type Logger interface {
	// Debugf logs a debug message.
	Debugf(format string, v ...any)

	// Infof logs an informational message.
	Infof(format string, v ...any)

	// Warningf logs a warning.
	Warningf(format string, v ...any)

	// IsLogging returns whether the given level would be logged.
	IsLogging(level Level) bool
}

func levelToLogrus(level Level) logrus.Level {
	switch level {
	case Warning:
		return logrus.WarnLevel
	case Info:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Debugf(format string, v ...any) {
	l.entry.Debugf(format, v...)
}

func (l *logrusLogger) Infof(format string, v ...any) {
	l.entry.Infof(format, v...)
}

func (l *logrusLogger) Warningf(format string, v ...any) {
	l.entry.Warningf(format, v...)
}

func (l *logrusLogger) IsLogging(level Level) bool {
	return l.entry.Logger.IsLevelEnabled(levelToLogrus(level))
}

var global = logrus.New()

// Log returns the global logger.
func Log() Logger {
	return &logrusLogger{entry: logrus.NewEntry(global)}
}

// New returns a logger tagged with the given component name.
func New(component string) Logger {
	return &logrusLogger{entry: global.WithField("component", component)}
}

// SetLevel sets the level of the global logger.
func SetLevel(level Level) {
	global.SetLevel(levelToLogrus(level))
}

// SetOutput redirects the global logger.
func SetOutput(w io.Writer) {
	global.SetOutput(w)
}
