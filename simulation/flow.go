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

package simulation

import (
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	. "github.com/crmac/crmac-ns/types"
)

// Flow generates packets of a fixed size at a fixed interval from one node to another.
type Flow struct {
	FlowConfig
	sim   *Simulation
	timer *event.Timer
	sent  int

	received   uint64
	delaySumUs uint64
}

func (f *Flow) start() {
	f.sim.sched.Rearm(&f.timer, f.Start, f.emit)
}

func (f *Flow) stop() {
	f.timer.Cancel()
}

func (f *Flow) IsActive() bool {
	return f.timer.IsPending()
}

func (f *Flow) Sent() int {
	return f.sent
}

func (f *Flow) delivered(delay uint64) {
	f.received++
	f.delaySumUs += delay
}

// expected returns the number of deliveries the packets sent so far would make if none were lost.
func (f *Flow) expected() uint64 {
	if f.Dst != InvalidNodeId {
		return uint64(f.sent)
	}
	receivers := len(f.sim.nodes) - 1
	if receivers < 0 {
		receivers = 0
	}
	return uint64(f.sent * receivers)
}

func (f *Flow) destination() Address {
	if f.Dst == InvalidNodeId {
		return BroadcastAddress
	}
	return NewAddress(f.Dst, GroupIntra)
}

func (f *Flow) emit() {
	src := f.sim.nodes[f.Src]
	if src == nil {
		logger.Debugf("flow %d: source node %d gone, stopping", f.ID, f.Src)
		return
	}
	uid := f.sim.nextPacketUid()
	hdr := flowHeader{
		Uid:       uid,
		FlowId:    uint32(f.ID),
		CreatedAt: f.sim.sched.Now(),
	}
	src.send(&Packet{Uid: uid, Payload: hdr.encode(f.Size)}, f.destination())
	f.sent++
	if f.Count > 0 && f.sent >= f.Count {
		return
	}
	f.sim.sched.Rearm(&f.timer, f.Interval, f.emit)
}
