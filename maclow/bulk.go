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

package maclow

import (
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/frame"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/txqueue"
	. "github.com/crmac/crmac-ns/types"
)

// bulkExchange is the initiator-side progress of a bulk-access cycle, and the responder's window timer.
type bulkExchange struct {
	plan      []*txqueue.Batch
	current   *txqueue.Batch
	windowEnd uint64

	responseTimer *event.Timer
	ackTimer      *event.Timer
	windowTimer   *event.Timer
}

func (b *bulkExchange) reset() {
	b.plan = nil
	b.current = nil
}

func (b *bulkExchange) cancelTimers() {
	b.responseTimer.Cancel()
	b.ackTimer.Cancel()
	b.windowTimer.Cancel()
}

// exchangeActive returns true while the group takes part in a bulk exchange, on either side.
func (l *MacLow) exchangeActive() bool {
	return l.bulk.current != nil || len(l.bulk.plan) > 0 || l.sendTimer.IsPending() ||
		l.bulk.responseTimer.IsPending() || l.bulk.ackTimer.IsPending() || l.bulk.windowTimer.IsPending() ||
		l.coord.Responder(l.group).Active
}

// requestBulk starts contending for bulk access if the queue has work for the group's channel and no
// request or exchange is outstanding.
func (l *MacLow) requestBulk() {
	if l.state != StateTransmission || l.access.IsAccessRequested() || l.exchangeActive() {
		return
	}
	if !l.coord.HasPendingWork(l.group) {
		return
	}
	l.access.StartRequestAccess(AccessBulk)
}

// startBulk runs a bulk-access cycle: one exchange per destination found in the queue.
func (l *MacLow) startBulk() {
	if l.state != StateTransmission || l.exchangeActive() {
		l.log.Debugf("bulk access granted in state %v, ignored", l.state)
		return
	}
	l.bulk.plan = l.coord.GetBulkAccessRequestsInQueue(l.group)
	l.log.Debugf("bulk access for %d destinations", len(l.bulk.plan))
	l.nextDestination()
}

func (l *MacLow) nextDestination() {
	l.bulk.current = nil
	if l.state != StateTransmission {
		l.bulk.reset()
		return
	}
	if len(l.bulk.plan) == 0 {
		l.behavior.bulkDone()
		return
	}
	b := l.bulk.plan[0]
	l.bulk.plan = l.bulk.plan[1:]
	l.bulk.current = b

	if b.Dest.IsGroup() {
		l.startGroupBurst(b)
	} else {
		l.sendBulkRequest(b)
	}
}

// continueBulk moves on to the next destination one SIFS after an exchange ended. If the channel was
// taken meanwhile, the rest of the cycle contends again.
func (l *MacLow) continueBulk() {
	l.bulk.current = nil
	if len(l.bulk.plan) == 0 {
		l.behavior.bulkDone()
		return
	}
	if l.access.IsBusy() || !l.phy.IsStateIdle() {
		l.bulk.reset()
		l.requestBulk()
		return
	}
	l.nextDestination()
}

func (l *MacLow) startGroupBurst(b *txqueue.Batch) {
	if l.coord.SetAccessBuffer(l.group, b.Dest, b.TxDuration) == 0 {
		l.nextDestination()
		return
	}
	l.bulk.windowEnd = l.sched.Now() + b.TxDuration
	l.sendNextData()
}

func (l *MacLow) sendBulkRequest(b *txqueue.Batch) {
	sifs := l.phy.Sifs()
	respDur := l.controlTxDuration(frame.KindBulkResponse)
	ackDur := l.controlTxDuration(frame.KindBulkAck)

	req := frame.NewBulkRequest(b.Dest, l.address(), b.TxDuration, l.coord.PeekNextSequence(b.Dest), len(b.Items))
	req.SetDuration(sifs + respDur + sifs + b.TxDuration + sifs + ackDur)
	sent := l.send(req, phy.ControlMode, func() {
		timeout := sifs + respDur + l.phy.Slot()
		l.access.BulkTimeoutStart(timeout)
		l.sched.Rearm(&l.bulk.responseTimer, timeout, l.missedBulkResponse)
	})
	if !sent {
		l.bulk.reset()
		return
	}
	l.stats.NumBulkRequests++
}

func (l *MacLow) missedBulkResponse() {
	l.stats.NumResponseTimeouts++
	l.log.Debugf("no bulk response from %s", l.bulk.current.Dest)
	l.coord.MissedBulkResponse(l.group)
	l.sched.Rearm(&l.sendTimer, l.phy.Sifs(), l.continueBulk)
}

func (l *MacLow) receiveBulkResponse(f *frame.Frame) {
	b := l.bulk.current
	if b == nil || !l.bulk.responseTimer.IsPending() || f.Addr2 != b.Dest {
		l.log.Debugf("unexpected %s", f)
		return
	}
	l.bulk.responseTimer.Cancel()
	l.access.BulkTimeoutReset()

	sifs := l.phy.Sifs()
	agreed := uint64(f.BulkResponse.TxDuration)
	n := l.coord.SetAccessBuffer(l.group, b.Dest, agreed)
	l.log.Debugf("bulk response from %s: %d us, %d packets", b.Dest, agreed, n)

	l.bulk.windowEnd = l.sched.Now() + sifs + agreed
	deadline := sifs + agreed + sifs + l.controlTxDuration(frame.KindBulkAck) + l.phy.Slot()
	l.access.AckTimeoutStart(deadline)
	l.sched.Rearm(&l.bulk.ackTimer, deadline, l.missedBulkAck)
	if n > 0 {
		l.sched.Rearm(&l.sendTimer, sifs, l.sendNextData)
	}
}

// sendNextData sends the buffered fragments back to back. The duration field of each frame covers the
// rest of the burst window and, for a unicast burst, the bulk ack.
func (l *MacLow) sendNextData() {
	b := l.bulk.current
	if b == nil {
		return
	}
	f, mode, ok := l.coord.NotifyAccessGranted(l.group)
	if !ok {
		if b.Dest.IsGroup() {
			l.coord.GroupBurstDone(l.group)
			l.sched.Rearm(&l.sendTimer, l.phy.Sifs(), l.continueBulk)
		}
		return
	}
	end := l.sched.Now() + l.phy.TxDuration(f.Size(), mode)
	var nav uint64
	if l.bulk.windowEnd > end {
		nav = l.bulk.windowEnd - end
	}
	if !b.Dest.IsGroup() {
		nav += l.phy.Sifs() + l.controlTxDuration(frame.KindBulkAck)
	}
	f.SetDuration(nav)
	if !l.send(f, mode, l.sendNextData) {
		if b.Dest.IsGroup() {
			l.coord.GroupBurstDone(l.group)
			l.bulk.reset()
		}
		return
	}
	l.stats.NumDataTx++
}

func (l *MacLow) missedBulkAck() {
	l.stats.NumAckTimeouts++
	l.log.Debugf("no bulk ack from %s", l.bulk.current.Dest)
	l.coord.MissedBulkAck(l.group)
	l.bulk.reset()
	l.sched.Rearm(&l.sendTimer, l.phy.Sifs(), l.behavior.bulkDone)
}

func (l *MacLow) receiveBulkAck(f *frame.Frame) {
	b := l.bulk.current
	if b == nil || !l.bulk.ackTimer.IsPending() || f.Addr2 != b.Dest {
		l.log.Debugf("unexpected %s", f)
		return
	}
	l.bulk.ackTimer.Cancel()
	l.access.AckTimeoutReset()
	l.coord.GotBulkAck(l.group, f.BulkAck.StartSeqCtrl, f.BulkAck.Bitmap)
	l.sched.Rearm(&l.sendTimer, l.phy.Sifs(), l.continueBulk)
}

// receiveBulkRequest answers a reservation addressed to this radio, if it is free to take part.
func (l *MacLow) receiveBulkRequest(f *frame.Frame) {
	if l.state != StateTransmission || !l.phy.IsStateIdle() || l.access.IsNavBusy() || l.exchangeActive() {
		l.stats.NumRejectedRequests++
		l.log.Debugf("cannot respond to %s in state %v", f, l.state)
		return
	}
	req := f.BulkRequest
	agreed := uint64(req.TxDuration)
	if agreed > l.cfg.MaxBulkDuration {
		agreed = l.cfg.MaxBulkDuration
	}
	peer := f.Addr2
	l.coord.StartResponse(l.group, peer, agreed, req.StartSeqCtrl, int(req.Count))
	l.sched.Rearm(&l.sendTimer, l.phy.Sifs(), func() {
		l.sendBulkResponse(peer, agreed)
	})
}

func (l *MacLow) sendBulkResponse(peer Address, agreed uint64) {
	sifs := l.phy.Sifs()
	ackDur := l.controlTxDuration(frame.KindBulkAck)
	rsp := frame.NewBulkResponse(peer, l.address(), agreed)
	rsp.SetDuration(sifs + agreed + sifs + ackDur)
	sent := l.send(rsp, phy.ControlMode, func() {
		l.access.BulkTimeoutStart(sifs + agreed + sifs + ackDur)
		l.sched.Rearm(&l.bulk.windowTimer, sifs+agreed+sifs, l.sendBulkAck)
	})
	if !sent {
		l.coord.EndResponse(l.group)
		return
	}
	l.stats.NumBulkResponses++
}

func (l *MacLow) sendBulkAck() {
	info := l.coord.EndResponse(l.group)
	ack := frame.NewBulkAck(info.Peer, l.address(), info.StartSeq, info.Bitmap)
	l.log.Debugf("bulk ack to %s: %d/%d packets, bitmap %#x", info.Peer, info.Received, info.Count, info.Bitmap)
	if l.send(ack, phy.ControlMode, l.responseDone) {
		l.stats.NumBulkAcks++
	} else {
		l.responseDone()
	}
}

// responseDone releases the channel after the responder's part of an exchange.
func (l *MacLow) responseDone() {
	l.access.BulkTimeoutReset()
	l.behavior.bulkDone()
}
