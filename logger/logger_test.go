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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type ctxName string

func (c ctxName) String() string {
	return string(c)
}

func TestParseLevelString(t *testing.T) {
	lv, err := ParseLevelString("debug")
	assert.Nil(t, err)
	assert.Equal(t, DebugLevel, lv)

	lv, err = ParseLevelString("W")
	assert.Nil(t, err)
	assert.Equal(t, WarnLevel, lv)

	lv, err = ParseLevelString("none")
	assert.Nil(t, err)
	assert.Equal(t, OffLevel, lv)

	_, err = ParseLevelString("loud")
	assert.NotNil(t, err)

	for _, l := range []Level{TraceLevel, DebugLevel, InfoLevel, NoteLevel, WarnLevel, ErrorLevel, OffLevel} {
		parsed, err := ParseLevelString(GetLevelString(l))
		assert.Nil(t, err)
		assert.Equal(t, l, parsed)
	}
}

func TestAssertPanics(t *testing.T) {
	assert.NotPanics(t, func() { AssertTrue(true) })
	assert.Panics(t, func() { AssertTrue(false) })
	assert.Panics(t, func() { AssertEqual(1, 2) })
	assert.Panics(t, func() { Panicf("broken invariant %d", 42) })
}

func TestMacLoggerWatch(t *testing.T) {
	ml := GetMacLogger(7, ctxName("intra"))
	assert.Same(t, ml, GetMacLogger(7, ctxName("intra")))
	assert.NotSame(t, ml, GetMacLogger(7, ctxName("inter")))

	SetLevel(WarnLevel)
	defer SetLevel(DefaultLevel)
	assert.False(t, ml.isEnabled(DebugLevel))
	WatchNode(7, DebugLevel)
	assert.True(t, ml.isEnabled(DebugLevel))
	assert.False(t, ml.isEnabled(TraceLevel))
}

func TestSimTimeStamp(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "sim.log")
	SetOutput([]string{fn})
	defer SetOutput([]string{"stderr"})
	SetTimeSource(func() uint64 { return 1234 })
	defer SetTimeSource(nil)
	SetLevel(InfoLevel)
	defer SetLevel(DefaultLevel)

	Infof("channel %d selected", 3)
	Debugf("not shown")
	_ = zaplogger.Sync()

	data, err := os.ReadFile(fn)
	assert.Nil(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "       1234\tinfo\t"))
	assert.True(t, strings.HasSuffix(lines[0], "channel 3 selected"))
}

func TestSimClock(t *testing.T) {
	c := simClock{now: func() uint64 { return 2_500_000 }}
	assert.Equal(t, 2500*time.Millisecond, c.Now().Sub(simEpoch))
}
