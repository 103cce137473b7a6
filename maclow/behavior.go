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
	. "github.com/crmac/crmac-ns/types"
)

// behavior is the group-specific part of a MAC low.
type behavior interface {
	start()
	stop()
	switchDone()
	endDetection()
	beaconGranted()
	detectionGranted()
	detectionRequestReceived()
	// trigger is called when the queue got work for the group.
	trigger()
	// bulkDone is called when a bulk-access cycle ended.
	bulkDone()
}

// intraBehavior coordinates the node with its same-channel neighbors: periodic beacons, fast spectrum
// sensing announced by detection requests, and channel changes announced in a beacon.
type intraBehavior struct {
	l              *MacLow
	beaconTimer    *event.Timer
	detectionTimer *event.Timer
	pendingSwitch  ChannelId
	firstBeacon    bool
}

func (b *intraBehavior) start() {
	l := b.l
	b.firstBeacon = true
	if !l.cfg.MultiChannel {
		if l.phy.ChannelNumber() == InvalidChannel {
			l.phy.SetChannelNumber(l.cfg.Channels[0])
		}
		b.enterTransmission()
		return
	}
	cur := l.phy.ChannelNumber()
	rec := l.host.RecommendedChannel(cur)
	if rec == InvalidChannel {
		rec = l.cfg.Channels[0]
	}
	if rec != cur {
		l.switchTo(rec)
		return
	}
	b.enterTransmission()
}

func (b *intraBehavior) stop() {
	b.beaconTimer.Cancel()
	b.detectionTimer.Cancel()
	b.pendingSwitch = InvalidChannel
}

func (b *intraBehavior) enterTransmission() {
	l := b.l
	l.setState(StateTransmission)
	if !b.beaconTimer.IsPending() && l.access.PendingAccess() != AccessBeacon {
		delay := l.cfg.BeaconInterval
		if b.firstBeacon {
			// desynchronize nodes started at the same time
			delay = l.phy.UniformInt(0, l.cfg.BeaconInterval-1)
			b.firstBeacon = false
		}
		l.sched.Rearm(&b.beaconTimer, delay, b.requestBeacon)
	}
	if l.cfg.MultiChannel && !b.detectionTimer.IsPending() {
		l.sched.Rearm(&b.detectionTimer, l.cfg.DetectionInterval, b.requestDetection)
	}
	l.requestBulk()
}

func (b *intraBehavior) requestBeacon() {
	if b.l.state != StateTransmission {
		// re-armed on return to Transmission
		return
	}
	b.l.access.StartRequestAccess(AccessBeacon)
}

func (b *intraBehavior) requestDetection() {
	if b.l.state != StateTransmission {
		return
	}
	b.l.access.StartRequestAccess(AccessDetection)
}

// beaconGranted sends the beacon. A pending channel decision is announced in it and taken when the
// beacon is on the air.
func (b *intraBehavior) beaconGranted() {
	l := b.l
	if l.state != StateTransmission {
		return
	}
	ch := l.phy.ChannelNumber()
	switchAfter := b.pendingSwitch != InvalidChannel && b.pendingSwitch != ch
	if switchAfter {
		ch = b.pendingSwitch
	}
	b.pendingSwitch = InvalidChannel
	f := frame.NewBeacon(l.address(), ch)
	sent := l.send(f, phy.ControlMode, func() {
		if switchAfter {
			l.switchTo(ch)
			return
		}
		l.sched.Rearm(&b.beaconTimer, l.cfg.BeaconInterval, b.requestBeacon)
		l.requestBulk()
	})
	if !sent {
		l.sched.Rearm(&b.beaconTimer, l.cfg.BeaconInterval, b.requestBeacon)
		return
	}
	l.stats.NumBeacons++
}

// detectionGranted announces a sensing period with a detection request and senses when it is on the air.
func (b *intraBehavior) detectionGranted() {
	l := b.l
	if l.state != StateTransmission {
		return
	}
	if !l.send(frame.NewDetectionRequest(l.address()), phy.ControlMode, b.enterDetection) {
		l.sched.Rearm(&b.detectionTimer, l.cfg.DetectionInterval, b.requestDetection)
		return
	}
	l.stats.NumDetectionRequests++
}

func (b *intraBehavior) enterDetection() {
	l := b.l
	b.beaconTimer.Cancel()
	b.detectionTimer.Cancel()
	l.startDetection(phy.DetectionFast, l.cfg.FastDetectionDuration)
}

func (b *intraBehavior) endDetection() {
	l := b.l
	cur := l.phy.ChannelNumber()
	if rec := l.host.RecommendedChannel(cur); rec != InvalidChannel && rec != cur {
		l.log.Debugf("channel %d recommended, announcing in next beacon", rec)
		b.pendingSwitch = rec
	}
	b.enterTransmission()
	if b.pendingSwitch != InvalidChannel {
		b.beaconTimer.Cancel()
		l.access.StartRequestAccess(AccessBeacon)
	}
}

// detectionRequestReceived joins the sensing period of a neighbor, unless a bulk exchange is running.
func (b *intraBehavior) detectionRequestReceived() {
	l := b.l
	if l.state != StateTransmission || l.exchangeActive() {
		return
	}
	b.enterDetection()
}

func (b *intraBehavior) switchDone() {
	l := b.l
	b.enterTransmission()
	if l.coord.HasPendingWork(GroupInter) {
		l.host.TriggerBulkAccess(GroupInter)
	} else if _, ok := l.coord.NeededChannel(); ok {
		l.host.TriggerBulkAccess(GroupInter)
	}
}

func (b *intraBehavior) trigger() {
	b.l.requestBulk()
}

func (b *intraBehavior) bulkDone() {
	b.l.requestBulk()
}

// interBehavior serves queued packets whose destination operates on another channel than the intra group.
// It visits the needed channels one after the other and suspends when there is nothing left.
type interBehavior struct {
	l      *MacLow
	target ChannelId
}

func (b *interBehavior) start() {
	l := b.l
	if !l.cfg.MultiChannel {
		l.suspend(true)
		return
	}
	l.suspend(false)
	b.trigger()
}

func (b *interBehavior) stop() {
	b.target = InvalidChannel
}

// trigger is the bulk-access entry of the inter group.
func (b *interBehavior) trigger() {
	l := b.l
	if !l.cfg.MultiChannel || l.state == StateSwitch || l.phy.IsStateTx() || l.exchangeActive() {
		return
	}
	intraCh := l.host.GroupChannel(GroupIntra)
	if b.target != InvalidChannel && b.target == intraCh {
		// the intra group operates on the channel we were heading to: it serves the packets
		l.log.Debugf("channel %d shared with intra group", intraCh)
		b.target = InvalidChannel
		l.access.CancelAccess()
		if l.phy.ChannelNumber() != intraCh {
			l.switchTo(intraCh)
		} else {
			l.setState(StateTransmission)
		}
		l.host.TriggerBulkAccess(GroupIntra)
		return
	}
	if l.state == StateTransmission && l.access.IsAccessRequested() {
		return
	}

	ch, ok := l.coord.NeededChannel()
	if !ok {
		b.target = InvalidChannel
		if l.state != StateSuspend {
			l.log.Debugf("no inter-channel work, suspending")
		}
		l.access.CancelAccess()
		l.suspend(false)
		return
	}
	b.target = ch
	if l.phy.ChannelNumber() != ch {
		l.switchTo(ch)
		return
	}
	b.enterTransmission()
}

func (b *interBehavior) enterTransmission() {
	l := b.l
	l.setState(StateTransmission)
	if l.coord.HasPendingWork(GroupInter) {
		l.requestBulk()
		return
	}
	b.target = InvalidChannel
	b.trigger()
}

func (b *interBehavior) switchDone() {
	l := b.l
	if b.target == InvalidChannel || b.target == l.host.GroupChannel(GroupIntra) {
		// conflict resolved while switching
		l.setState(StateTransmission)
		b.target = InvalidChannel
		b.trigger()
		return
	}
	b.enterTransmission()
}

func (b *interBehavior) endDetection() {
	b.l.log.Warnf("unexpected end of detection")
}

func (b *interBehavior) beaconGranted() {
	b.l.log.Warnf("unexpected beacon access")
}

func (b *interBehavior) detectionGranted() {
	b.l.log.Warnf("unexpected detection access")
}

func (b *interBehavior) detectionRequestReceived() {}

func (b *interBehavior) bulkDone() {
	b.trigger()
}

// probeBehavior scans the operating channels round robin with fine sensing.
type probeBehavior struct {
	l    *MacLow
	next int
}

func (b *probeBehavior) start() {
	l := b.l
	if !l.cfg.MultiChannel {
		l.suspend(true)
		return
	}
	b.next = 0
	b.advance()
}

func (b *probeBehavior) stop() {}

// advance tunes to the next channel of the scan, or senses again if it is already there.
func (b *probeBehavior) advance() {
	l := b.l
	ch := l.cfg.Channels[b.next%len(l.cfg.Channels)]
	b.next = (b.next + 1) % len(l.cfg.Channels)
	if l.phy.ChannelNumber() == ch {
		l.startDetection(phy.DetectionFine, l.cfg.FineDetectionDuration)
		return
	}
	l.switchTo(ch)
}

func (b *probeBehavior) switchDone() {
	b.l.startDetection(phy.DetectionFine, b.l.cfg.FineDetectionDuration)
}

func (b *probeBehavior) endDetection() {
	b.advance()
}

func (b *probeBehavior) beaconGranted() {
	b.l.log.Warnf("unexpected beacon access")
}

func (b *probeBehavior) detectionGranted() {
	b.l.log.Warnf("unexpected detection access")
}

func (b *probeBehavior) detectionRequestReceived() {}

func (b *probeBehavior) trigger() {}

func (b *probeBehavior) bulkDone() {}
