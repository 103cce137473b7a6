// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package logger

import (
	"fmt"
	"sync"
)

// MacLogger is a log object for one MAC context (node + group). Its display level can be raised per context
// to watch it, independently of the global log level.
type MacLogger struct {
	NodeId       int
	Context      string
	displayLevel Level
	prefix       string
}

var (
	macLogs = make(map[string]*MacLogger, 10)
	mutex   = sync.Mutex{}
)

// GetMacLogger gets the MacLogger instance for the given (node, context) pair; it is created on first use.
func GetMacLogger(nodeid int, context fmt.Stringer) *MacLogger {
	mutex.Lock()
	defer mutex.Unlock()

	key := fmt.Sprintf("%d/%s", nodeid, context)
	ml, ok := macLogs[key]
	if !ok {
		ml = &MacLogger{
			NodeId:       nodeid,
			Context:      context.String(),
			displayLevel: OffLevel,
			prefix:       fmt.Sprintf("Node<%d>%-6s", nodeid, context.String()),
		}
		macLogs[key] = ml
	}
	return ml
}

// WatchNode sets the display level of all MAC contexts of a node.
func WatchNode(nodeid int, level Level) {
	mutex.Lock()
	defer mutex.Unlock()

	for _, ml := range macLogs {
		if ml.NodeId == nodeid {
			ml.displayLevel = level
		}
	}
}

func (ml *MacLogger) SetDisplayLevel(level Level) {
	ml.displayLevel = level
}

func (ml *MacLogger) isEnabled(level Level) bool {
	return level <= currentLevel || level <= ml.displayLevel
}

func (ml *MacLogger) Logf(level Level, format string, args []interface{}) {
	if !ml.isEnabled(level) {
		return
	}
	logAlways(level, ml.prefix+" "+getMessage(format, args))
}

func (ml *MacLogger) Tracef(format string, args ...interface{}) {
	ml.Logf(TraceLevel, format, args)
}

func (ml *MacLogger) Debugf(format string, args ...interface{}) {
	ml.Logf(DebugLevel, format, args)
}

func (ml *MacLogger) Infof(format string, args ...interface{}) {
	ml.Logf(InfoLevel, format, args)
}

func (ml *MacLogger) Warnf(format string, args ...interface{}) {
	ml.Logf(WarnLevel, format, args)
}

func (ml *MacLogger) Errorf(format string, args ...interface{}) {
	ml.Logf(ErrorLevel, format, args)
}

// Panicf reports a broken protocol invariant of this context and panics.
func (ml *MacLogger) Panicf(format string, args ...interface{}) {
	Panicf(ml.prefix+" "+format, args...)
}
