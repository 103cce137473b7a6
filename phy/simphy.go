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

package phy

import (
	"fmt"

	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/prng"
	"github.com/crmac/crmac-ns/types"
)

// Medium is the shared air a SimPhy transmits on.
type Medium interface {
	// Transmit puts a frame of the given duration on the air of the sender's current channel.
	Transmit(src *SimPhy, data []byte, duration uint64)
	// PrimaryUserActivity returns the remaining on-time (us) of a primary user audible at pos on ch, or 0.
	PrimaryUserActivity(ch types.ChannelId, pos types.Position) uint64
}

type SimPhyStats struct {
	NumTx      uint64
	NumRxOk    uint64
	NumRxError uint64
	NumSwitch  uint64
	BytesTx    uint64
}

// SimPhy is a simulated radio of one MAC group of a node.
type SimPhy struct {
	Node  types.NodeId
	Group types.Group

	params   Params
	sched    *event.Scheduler
	medium   Medium
	pos      types.Position
	rng      *prng.Stream
	state    types.RadioStates
	channel  types.ChannelId
	stateEnd uint64

	listeners []Listener
	receiver  Receiver
	reporter  DetectionReporter

	stateTimer *event.Timer
	rxData     []byte
	rxCorrupt  bool
	rxEnd      uint64

	detecting     bool
	detectionMode DetectionMode
	puDetected    bool

	stats SimPhyStats
}

func NewSimPhy(sched *event.Scheduler, medium Medium, nodeid types.NodeId, group types.Group,
	pos types.Position, params Params) *SimPhy {
	return &SimPhy{
		Node:    nodeid,
		Group:   group,
		params:  params,
		sched:   sched,
		medium:  medium,
		pos:     pos,
		rng:     prng.NewStream(fmt.Sprintf("node-%d/%s", nodeid, group)),
		state:   types.RadioIdle,
		channel: types.InvalidChannel,
	}
}

func (p *SimPhy) String() string {
	return fmt.Sprintf("phy-%d/%s", p.Node, p.Group)
}

func (p *SimPhy) Sifs() uint64 {
	return p.params.Sifs
}

func (p *SimPhy) Slot() uint64 {
	return p.params.Slot
}

func (p *SimPhy) ChannelSwitchDelay() uint64 {
	return p.params.ChannelSwitchDelay
}

// TxDuration returns the air time of a frame of size bytes: preamble plus the payload bits at the mode's rate.
func (p *SimPhy) TxDuration(size int, mode TxMode) uint64 {
	logger.AssertTrue(mode.DataRate > 0)
	bits := uint64(size) * 8 * 1_000_000
	return p.params.Preamble + (bits+mode.DataRate-1)/mode.DataRate
}

func (p *SimPhy) State() types.RadioStates {
	return p.state
}

func (p *SimPhy) IsStateIdle() bool {
	return p.state == types.RadioIdle
}

func (p *SimPhy) IsStateTx() bool {
	return p.state == types.RadioTx
}

func (p *SimPhy) IsStateRx() bool {
	return p.state == types.RadioRx
}

func (p *SimPhy) IsStateOff() bool {
	return p.state == types.RadioOff
}

func (p *SimPhy) ChannelNumber() types.ChannelId {
	return p.channel
}

func (p *SimPhy) Position() types.Position {
	return p.pos
}

func (p *SimPhy) SetPosition(pos types.Position) {
	p.pos = pos
}

func (p *SimPhy) Params() Params {
	return p.params
}

func (p *SimPhy) Stats() SimPhyStats {
	return p.stats
}

func (p *SimPhy) RegisterListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

func (p *SimPhy) SetReceiver(r Receiver) {
	p.receiver = r
}

func (p *SimPhy) SetDetectionReporter(r DetectionReporter) {
	p.reporter = r
}

func (p *SimPhy) UniformInt(min, max uint64) uint64 {
	return p.rng.UniformInt(min, max)
}

func (p *SimPhy) setState(state types.RadioStates, duration uint64, onEnd func()) {
	p.stateTimer.Cancel()
	p.state = state
	if onEnd == nil {
		p.stateEnd = types.Ever
		p.stateTimer = nil
		return
	}
	p.stateEnd = p.sched.Now() + duration
	p.stateTimer = p.sched.Schedule(duration, onEnd)
}

// abortRx drops an ongoing reception without reporting it to the receiver.
func (p *SimPhy) abortRx() {
	if p.state != types.RadioRx {
		return
	}
	p.stateTimer.Cancel()
	p.rxData = nil
	p.state = types.RadioIdle
}

// SetChannelNumber tunes the radio. An active radio is unavailable for the channel-switch delay; a
// sleeping or powered-down radio changes channel immediately.
func (p *SimPhy) SetChannelNumber(ch types.ChannelId) {
	logger.AssertTrue(p.state != types.RadioTx, "%s: channel switch while transmitting", p)
	p.stopDetection()
	if p.state == types.RadioSleep || p.state == types.RadioOff || p.channel == types.InvalidChannel {
		p.channel = ch
		return
	}
	p.abortRx()
	p.channel = ch
	p.stats.NumSwitch++
	delay := p.params.ChannelSwitchDelay
	p.setState(types.RadioSwitching, delay, p.endSwitching)
	for _, l := range p.listeners {
		l.NotifySwitchingStart(delay)
	}
}

func (p *SimPhy) endSwitching() {
	p.setState(types.RadioIdle, 0, nil)
	if busy := p.medium.PrimaryUserActivity(p.channel, p.pos); busy > 0 {
		p.notifyCcaBusy(busy)
	}
}

func (p *SimPhy) SetSleepMode() {
	if p.state == types.RadioSleep || p.state == types.RadioOff {
		return
	}
	logger.AssertTrue(p.state != types.RadioTx, "%s: sleep while transmitting", p)
	p.abortRx()
	p.stopDetection()
	p.setState(types.RadioSleep, 0, nil)
	for _, l := range p.listeners {
		l.NotifySleep()
	}
}

func (p *SimPhy) ResumeFromSleep() {
	if p.state != types.RadioSleep {
		return
	}
	p.setState(types.RadioIdle, 0, nil)
	for _, l := range p.listeners {
		l.NotifyWakeup()
	}
}

func (p *SimPhy) SetOffMode() {
	if p.state == types.RadioOff {
		return
	}
	p.abortRx()
	p.stopDetection()
	p.setState(types.RadioOff, 0, nil)
	for _, l := range p.listeners {
		l.NotifyOff()
	}
}

func (p *SimPhy) ResumeFromOff() {
	if p.state != types.RadioOff {
		return
	}
	p.setState(types.RadioIdle, 0, nil)
	for _, l := range p.listeners {
		l.NotifyOn()
	}
}

// Send transmits a frame. An ongoing reception is aborted and reported as failed.
func (p *SimPhy) Send(data []byte, mode TxMode) {
	logger.AssertTrue(p.state == types.RadioIdle || p.state == types.RadioRx, "%s: send in state %s", p, p.state)
	if p.state == types.RadioRx {
		p.abortRx()
		for _, l := range p.listeners {
			l.NotifyRxEndError()
		}
	}
	duration := p.TxDuration(len(data), mode)
	p.stats.NumTx++
	p.stats.BytesTx += uint64(len(data))
	p.setState(types.RadioTx, duration, func() {
		p.setState(types.RadioIdle, 0, nil)
	})
	for _, l := range p.listeners {
		l.NotifyTxStart(duration, p.params.TxPowerDbm)
	}
	p.medium.Transmit(p, data, duration)
}

// StartReceive is called by the medium when a frame of another radio reaches this one. A radio that is
// already receiving sees a collision; a radio that is transmitting, switching, asleep or off misses it.
func (p *SimPhy) StartReceive(data []byte, duration uint64, corrupt bool) {
	now := p.sched.Now()
	switch p.state {
	case types.RadioIdle:
		p.rxData = data
		p.rxCorrupt = corrupt
		p.rxEnd = now + duration
		p.setState(types.RadioRx, duration, p.endReceive)
		for _, l := range p.listeners {
			l.NotifyRxStart(duration)
		}
	case types.RadioRx:
		p.rxCorrupt = true
		if now+duration > p.rxEnd {
			p.notifyCcaBusy(now + duration - p.rxEnd)
		}
	default:
		break
	}
}

func (p *SimPhy) endReceive() {
	data, corrupt := p.rxData, p.rxCorrupt
	p.rxData = nil
	p.setState(types.RadioIdle, 0, nil)
	if corrupt {
		p.stats.NumRxError++
		for _, l := range p.listeners {
			l.NotifyRxEndError()
		}
		if p.receiver != nil {
			p.receiver.ReceiveError()
		}
		return
	}
	p.stats.NumRxOk++
	for _, l := range p.listeners {
		l.NotifyRxEndOk()
	}
	if p.receiver != nil {
		p.receiver.ReceiveOk(data)
	}
}

// SignalInterference is called by the medium when energy that cannot be decoded arrives for duration us.
// Primary-user energy is also registered by an armed signal detection.
func (p *SimPhy) SignalInterference(duration uint64, primaryUser bool) {
	if primaryUser && p.detecting {
		p.puDetected = true
	}
	switch p.state {
	case types.RadioRx:
		p.rxCorrupt = true
		if now := p.sched.Now(); now+duration > p.rxEnd {
			p.notifyCcaBusy(now + duration - p.rxEnd)
		}
	case types.RadioIdle:
		p.notifyCcaBusy(duration)
	default:
		break
	}
}

func (p *SimPhy) notifyCcaBusy(duration uint64) {
	for _, l := range p.listeners {
		l.NotifyMaybeCcaBusyStart(duration)
	}
}

// SetSignalDetectionMode arms primary-user sensing on the current channel.
func (p *SimPhy) SetSignalDetectionMode(mode DetectionMode) {
	p.detecting = true
	p.detectionMode = mode
	p.puDetected = p.medium.PrimaryUserActivity(p.channel, p.pos) > 0
}

// ResetSignalDetection ends the sensing period, reports its outcome and returns whether a primary user
// was detected.
func (p *SimPhy) ResetSignalDetection() bool {
	if !p.detecting {
		return false
	}
	detected := p.puDetected
	p.stopDetection()
	if p.reporter != nil {
		p.reporter.ReportDetection(p.channel, detected, p.sched.Now())
	}
	return detected
}

func (p *SimPhy) IsDetecting() bool {
	return p.detecting
}

func (p *SimPhy) stopDetection() {
	p.detecting = false
	p.puDetected = false
}
