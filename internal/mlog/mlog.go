// Copyright 2017 The Minstall Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mlog is a minimal leveled logger: a thin wrapper around an
// io.Writer rather than a full logging framework.
package mlog

import (
	"fmt"
	"io"
)

// Level controls which messages a Logger actually writes.
type Level uint8

const (
	Silent Level = iota
	Critical
	Error
	Warn
	Info
	Verbose
	Debug
	Silly
)

// ParseLevel maps the CLI's --loglevel values onto a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "critical":
		return Critical, nil
	case "error":
		return Error, nil
	case "warn":
		return Warn, nil
	case "info":
		return Info, nil
	case "verbose":
		return Verbose, nil
	case "debug":
		return Debug, nil
	case "silly":
		return Silly, nil
	}
	return Silent, fmt.Errorf("unknown loglevel %q", s)
}

// String renders a Level back to the --loglevel spelling ParseLevel accepts.
func (l Level) String() string {
	switch l {
	case Critical:
		return "critical"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Verbose:
		return "verbose"
	case Debug:
		return "debug"
	case Silly:
		return "silly"
	}
	return "silent"
}

// Logger is a minimal wrapper around an io.Writer, gated by Level.
type Logger struct {
	io.Writer
	level Level
}

// New returns a new Logger which writes messages at lvl or more critical to w.
func New(w io.Writer, lvl Level) *Logger {
	return &Logger{Writer: w, level: lvl}
}

func (l *Logger) enabled(lvl Level) bool {
	return l != nil && lvl <= l.level
}

// Logln logs a line at the given level.
func (l *Logger) Logln(lvl Level, args ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string at the given level.
func (l *Logger) Logf(lvl Level, format string, args ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	fmt.Fprintf(l, format, args...)
}

// LogMinstallfln logs a formatted line, prefixed with "minstall: ", at the
// given level.
func (l *Logger) LogMinstallfln(lvl Level, format string, args ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	fmt.Fprintf(l, "minstall: "+format+"\n", args...)
}
