/*
Copyright (C) 2026  MemCP Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package core

import (
	"log"
	"os"
)

// Logger is a minimal leveled wrapper around the standard logger. The
// teacher never reaches for a structured logging library (settings.go's
// Trace/TracePrint flags just gate plain fmt.Println calls); we keep that
// idiom rather than bolting on zap/logrus for a single counter of
// diagnostic lines.
type Logger struct {
	verbose bool
	std     *log.Logger
}

// NewLogger creates a Logger writing to stderr, matching the teacher's
// habit of leaving stdout free for REPL/query output.
func NewLogger(verbose bool) *Logger {
	return &Logger{verbose: verbose, std: log.New(os.Stderr, "[dictcache] ", log.LstdFlags)}
}

func (l *Logger) SetVerbose(v bool) { l.verbose = v }

// Debugf only prints when verbose logging is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !l.verbose {
		return
	}
	l.std.Printf(format, args...)
}

// Infof always prints, regardless of verbose.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.std.Printf(format, args...)
}

// Errorf always prints; used when a background goroutine recovers from a
// panic or a call returns a non-nil error it cannot propagate further.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.std.Printf("ERROR: "+format, args...)
}
