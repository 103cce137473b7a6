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

// Package event implements the single-threaded, virtual-time event scheduler that drives the simulation.
// All protocol activity runs inside callbacks fired by the Scheduler; waiting is expressed by scheduling
// a future callback via a cancellable Timer.
package event

import (
	"container/heap"

	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/types"
)

// Ever is the timestamp (us) of an event that never happens.
const Ever = types.Ever

// Timer is a cancellable handle of one scheduled callback.
type Timer struct {
	Timestamp uint64 // virtual time (us) at which the callback fires

	seq   uint64
	index int // position in the heap, or -1 when not pending
	fn    func()
	sched *Scheduler
}

// IsPending returns true if the timer is scheduled and has neither fired nor been cancelled.
func (t *Timer) IsPending() bool {
	return t != nil && t.index >= 0
}

// Cancel removes the timer from the queue. A cancelled timer never fires; cancelling a timer that is
// not pending (or nil) is a no-op.
func (t *Timer) Cancel() {
	if !t.IsPending() {
		return
	}
	heap.Remove(&t.sched.q, t.index)
}

// Left returns the remaining delay until the timer fires, or 0 if not pending.
func (t *Timer) Left() uint64 {
	if !t.IsPending() {
		return 0
	}
	return t.Timestamp - t.sched.now
}

// Expires returns the firing timestamp, or Ever if not pending.
func (t *Timer) Expires() uint64 {
	if !t.IsPending() {
		return Ever
	}
	return t.Timestamp
}

type timerQueue []*Timer

func (tq timerQueue) Len() int {
	return len(tq)
}

// Less orders by timestamp, then by scheduling order so that equal-time events run FIFO.
func (tq timerQueue) Less(i, j int) bool {
	if tq[i].Timestamp != tq[j].Timestamp {
		return tq[i].Timestamp < tq[j].Timestamp
	}
	return tq[i].seq < tq[j].seq
}

func (tq timerQueue) Swap(i, j int) {
	a, b := tq[i], tq[j]
	if a.index != i || b.index != j {
		logger.Panicf("wrong index")
	}

	tq[i], tq[j] = b, a             // swap the elements
	tq[i].index, tq[j].index = i, j // fix the indexes
}

func (tq *timerQueue) Push(x interface{}) {
	t := x.(*Timer)
	*tq = append(*tq, t)
	t.index = len(*tq) - 1
}

func (tq *timerQueue) Pop() (elem interface{}) {
	n := len(*tq)
	t := (*tq)[n-1]
	(*tq)[n-1] = nil
	*tq = (*tq)[:n-1]
	t.index = -1
	return t
}

// Scheduler is the virtual-time event queue. It is not safe for concurrent use; callers that share a
// Scheduler between goroutines must serialize access themselves.
type Scheduler struct {
	q       timerQueue
	now     uint64
	nextSeq uint64
	stopped bool

	// Executed counts the callbacks that have fired.
	Executed uint64
}

func NewScheduler() *Scheduler {
	s := &Scheduler{
		q: timerQueue{},
	}
	heap.Init(&s.q)
	return s
}

// Now returns the current virtual time in us.
func (s *Scheduler) Now() uint64 {
	return s.now
}

// Schedule schedules fn to run after delay us and returns its handle.
func (s *Scheduler) Schedule(delay uint64, fn func()) *Timer {
	logger.AssertNotNil(fn)
	t := &Timer{
		Timestamp: s.now + delay,
		seq:       s.nextSeq,
		index:     -1,
		fn:        fn,
		sched:     s,
	}
	s.nextSeq++
	heap.Push(&s.q, t)
	return t
}

// Rearm cancels the timer held by handle if it is still pending, then schedules fn after delay and stores
// the new timer in handle. This is the only way protocol code (re)arms a purpose-bound timer.
func (s *Scheduler) Rearm(handle **Timer, delay uint64, fn func()) {
	(*handle).Cancel()
	*handle = s.Schedule(delay, fn)
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	return len(s.q)
}

// NextTimestamp returns the time of the next scheduled event, or Ever.
func (s *Scheduler) NextTimestamp() uint64 {
	if len(s.q) == 0 {
		return Ever
	}
	return s.q[0].Timestamp
}

// Step fires the next event, advancing time to its timestamp. It returns false if the queue is empty.
func (s *Scheduler) Step() bool {
	if len(s.q) == 0 {
		return false
	}
	t := heap.Pop(&s.q).(*Timer)
	logger.AssertTrue(t.Timestamp >= s.now)
	s.now = t.Timestamp
	s.Executed++
	t.fn()
	return true
}

// Run fires all events scheduled up to and including time until, then advances time to until.
// It returns early if Stop is called from within a callback.
func (s *Scheduler) Run(until uint64) {
	s.stopped = false
	for !s.stopped && len(s.q) > 0 && s.q[0].Timestamp <= until {
		s.Step()
	}
	if !s.stopped && until != Ever && until > s.now {
		s.now = until
	}
}

// RunFor runs the scheduler for duration us of virtual time.
func (s *Scheduler) RunFor(duration uint64) {
	s.Run(s.now + duration)
}

// Stop makes a running Run return after the current callback.
func (s *Scheduler) Stop() {
	s.stopped = true
}
