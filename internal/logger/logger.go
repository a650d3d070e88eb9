// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package logger

import (
	"io"
	"log"
	"os"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type defaultLogger struct {
	prefix string
	out    *log.Logger
}

// New creates a logger writing to stderr. Stdout stays free for the
// worker's event protocol.
func New(prefix string) Logger {
	return NewWithWriter(prefix, os.Stderr)
}

// NewWithWriter creates a logger with an explicit sink.
func NewWithWriter(prefix string, w io.Writer) Logger {
	return &defaultLogger{
		prefix: prefix,
		out:    log.New(w, "", log.LstdFlags),
	}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.out.Printf("[INFO] "+l.prefix+" "+format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.out.Printf("[WARN] "+l.prefix+" "+format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.out.Printf("[ERROR] "+l.prefix+" "+format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.out.Printf("[DEBUG] "+l.prefix+" "+format, args...)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Warn(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
