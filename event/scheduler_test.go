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

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_Order(t *testing.T) {
	s := NewScheduler()
	var fired []int
	s.Schedule(20, func() { fired = append(fired, 2) })
	s.Schedule(10, func() { fired = append(fired, 1) })
	s.Schedule(20, func() { fired = append(fired, 3) })
	s.Schedule(30, func() { fired = append(fired, 4) })
	assert.Equal(t, 4, s.Pending())
	assert.Equal(t, uint64(10), s.NextTimestamp())

	s.Run(25)
	assert.Equal(t, []int{1, 2, 3}, fired)
	assert.Equal(t, uint64(25), s.Now())
	s.Run(Ever)
	assert.Equal(t, []int{1, 2, 3, 4}, fired)
	assert.Equal(t, uint64(30), s.Now())
	assert.Equal(t, Ever, s.NextTimestamp())
}

func TestScheduler_RunEverDrainsQueue(t *testing.T) {
	s := NewScheduler()
	fired := 0
	s.Schedule(7, func() { fired++ })
	s.Run(Ever)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, uint64(7), s.Now())
	assert.Equal(t, uint64(1), s.Executed)

	// an empty queue returns right away and keeps the time
	s.Run(Ever)
	assert.Equal(t, uint64(7), s.Now())
	assert.Equal(t, uint64(1), s.Executed)
}

func TestScheduler_ZeroDelayRunsAfterSameTimeEvents(t *testing.T) {
	s := NewScheduler()
	var fired []string
	s.Schedule(5, func() {
		fired = append(fired, "a")
		s.Schedule(0, func() { fired = append(fired, "c") })
	})
	s.Schedule(5, func() { fired = append(fired, "b") })
	s.Run(Ever)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
}

func TestTimer_Cancel(t *testing.T) {
	s := NewScheduler()
	count := 0
	t1 := s.Schedule(10, func() { count++ })
	t2 := s.Schedule(5, func() { count += 10 })
	assert.True(t, t1.IsPending())
	assert.Equal(t, uint64(10), t1.Left())
	assert.Equal(t, uint64(10), t1.Expires())

	t1.Cancel()
	assert.False(t, t1.IsPending())
	assert.Equal(t, uint64(0), t1.Left())
	assert.Equal(t, Ever, t1.Expires())
	t1.Cancel() // no-op

	s.Run(Ever)
	assert.Equal(t, 10, count)
	assert.False(t, t2.IsPending())

	var nilTimer *Timer
	assert.False(t, nilTimer.IsPending())
	nilTimer.Cancel()
}

func TestTimer_CancelFromCallback(t *testing.T) {
	s := NewScheduler()
	fired := false
	var later *Timer
	s.Schedule(1, func() { later.Cancel() })
	later = s.Schedule(1, func() { fired = true })
	s.Run(Ever)
	assert.False(t, fired)
}

func TestScheduler_RearmNeverDoubleSchedules(t *testing.T) {
	s := NewScheduler()
	var handle *Timer
	count := 0
	s.Rearm(&handle, 10, func() { count++ })
	first := handle
	s.Rearm(&handle, 20, func() { count += 100 })
	assert.False(t, first.IsPending())
	assert.Equal(t, 1, s.Pending())

	s.RunFor(15)
	assert.Equal(t, 0, count)
	assert.Equal(t, uint64(5), handle.Left())
	s.Run(Ever)
	assert.Equal(t, 100, count)
}

func TestScheduler_Stop(t *testing.T) {
	s := NewScheduler()
	count := 0
	s.Schedule(1, func() { count++; s.Stop() })
	s.Schedule(2, func() { count++ })
	s.Run(100)
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(1), s.Now())
	s.Run(100)
	assert.Equal(t, 2, count)
	assert.Equal(t, uint64(100), s.Now())
}
