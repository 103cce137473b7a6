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

// Package maclow implements the per-group protocol engine of the cognitive-radio MAC: the Suspend, Switch,
// Transmission and Detection states, the beacon and detection-request protocols and both sides of the
// bulk-access reservation exchange.
package maclow

import (
	"github.com/crmac/crmac-ns/access"
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/frame"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/txqueue"
	. "github.com/crmac/crmac-ns/types"
)

type Config struct {
	// MultiChannel enables channel switching, spectrum sensing and the inter and probe groups.
	MultiChannel bool
	// Channels are the operating channels; the first one is used in single-channel mode.
	Channels              []ChannelId
	BeaconInterval        uint64 // us
	DetectionInterval     uint64 // us
	FastDetectionDuration uint64 // us
	FineDetectionDuration uint64 // us
	// MaxBulkDuration bounds the burst window a responder grants (us).
	MaxBulkDuration uint64
}

func DefaultConfig() Config {
	return Config{
		MultiChannel:          true,
		Channels:              []ChannelId{1, 2, 3, 4},
		BeaconInterval:        102_400,
		DetectionInterval:     1_000_000,
		FastDetectionDuration: 1_000,
		FineDetectionDuration: 10_000,
		MaxBulkDuration:       frame.MaxDuration,
	}
}

// Host is the MAC that owns the MAC lows of a node.
type Host interface {
	// RecommendedChannel asks the spectrum repository for the channel the intra group should operate on.
	RecommendedChannel(current ChannelId) ChannelId
	RefreshNeighbor(addr Address, ch ChannelId)
	GroupChannel(g Group) ChannelId
	TriggerBulkAccess(g Group)
	Deliver(g Group, src Address, payload []byte)
	ChannelSwitched(g Group, ch ChannelId)
}

type Stats struct {
	NumBeacons           uint64 `json:"beacons" yaml:"beacons"`
	NumDetectionRequests uint64 `json:"detection-requests" yaml:"detection-requests"`
	NumDetections        uint64 `json:"detections" yaml:"detections"`
	NumPuDetected        uint64 `json:"pu-detected" yaml:"pu-detected"`
	NumSwitches          uint64 `json:"switches" yaml:"switches"`
	NumBulkRequests      uint64 `json:"bulk-requests" yaml:"bulk-requests"`
	NumBulkResponses     uint64 `json:"bulk-responses" yaml:"bulk-responses"`
	NumBulkAcks          uint64 `json:"bulk-acks" yaml:"bulk-acks"`
	NumResponseTimeouts  uint64 `json:"response-timeouts" yaml:"response-timeouts"`
	NumAckTimeouts       uint64 `json:"ack-timeouts" yaml:"ack-timeouts"`
	NumDataTx            uint64 `json:"data-tx" yaml:"data-tx"`
	NumDataRx            uint64 `json:"data-rx" yaml:"data-rx"`
	NumRxErrors          uint64 `json:"rx-errors" yaml:"rx-errors"`
	NumRejectedRequests  uint64 `json:"rejected-requests" yaml:"rejected-requests"`
}

// MacLow is the protocol engine of one group, bound to the group's radio and access manager.
type MacLow struct {
	cfg    Config
	sched  *event.Scheduler
	nodeId NodeId
	group  Group
	phy    phy.Phy
	access *access.Manager
	coord  *txqueue.Coordinator
	host   Host
	log    *logger.MacLogger

	behavior behavior
	state    MacLowState
	started  bool

	stateTimer *event.Timer
	sendTimer  *event.Timer
	txEndTimer *event.Timer

	bulk bulkExchange

	stats Stats
}

// New creates the MAC low of group g. The access manager is attached with SetAccessManager before Start.
func New(sched *event.Scheduler, cfg Config, nodeid NodeId, g Group, p phy.Phy, coord *txqueue.Coordinator,
	host Host, log *logger.MacLogger) *MacLow {
	logger.AssertTrue(len(cfg.Channels) > 0, "no operating channels")
	l := &MacLow{
		cfg:    cfg,
		sched:  sched,
		nodeId: nodeid,
		group:  g,
		phy:    p,
		coord:  coord,
		host:   host,
		log:    log,
		state:  StateSuspend,
	}
	switch g {
	case GroupIntra:
		l.behavior = &intraBehavior{l: l, pendingSwitch: InvalidChannel}
	case GroupInter:
		l.behavior = &interBehavior{l: l, target: InvalidChannel}
	case GroupProbe:
		l.behavior = &probeBehavior{l: l}
	default:
		logger.Panicf("invalid group %d", int(g))
	}
	p.SetReceiver(l)
	return l
}

func (l *MacLow) SetAccessManager(m *access.Manager) {
	l.access = m
}

func (l *MacLow) AccessManager() *access.Manager {
	return l.access
}

func (l *MacLow) Group() Group {
	return l.group
}

func (l *MacLow) State() MacLowState {
	return l.state
}

func (l *MacLow) Channel() ChannelId {
	return l.phy.ChannelNumber()
}

func (l *MacLow) Stats() Stats {
	return l.stats
}

func (l *MacLow) address() Address {
	return NewAddress(l.nodeId, l.group)
}

// isOwn returns true for the address of any radio of this node.
func (l *MacLow) isOwn(addr Address) bool {
	for _, g := range AllGroups {
		if addr == NewAddress(l.nodeId, g) {
			return true
		}
	}
	return false
}

// Start leaves the initial Suspend state.
func (l *MacLow) Start() {
	logger.AssertNotNil(l.access)
	if l.started {
		return
	}
	l.started = true
	l.log.Debugf("start, multi-channel=%v", l.cfg.MultiChannel)
	l.behavior.start()
}

// Stop cancels every timer and outstanding access request and powers the radio down.
func (l *MacLow) Stop() {
	if !l.started {
		return
	}
	l.started = false
	l.stateTimer.Cancel()
	l.sendTimer.Cancel()
	l.txEndTimer.Cancel()
	l.bulk.cancelTimers()
	l.bulk.reset()
	l.behavior.stop()
	l.access.CancelAccess()
	l.setState(StateSuspend)
	l.phy.SetOffMode()
}

// TriggerBulkAccess is called when the queue got new work for this group.
func (l *MacLow) TriggerBulkAccess() {
	if !l.started {
		return
	}
	l.behavior.trigger()
}

func (l *MacLow) setState(s MacLowState) {
	if s != l.state {
		l.log.Tracef("state %v -> %v", l.state, s)
	}
	l.state = s
}

// suspend enters Suspend; the radio is powered down if off is set, else it keeps listening.
func (l *MacLow) suspend(off bool) {
	l.stateTimer.Cancel()
	l.setState(StateSuspend)
	if off {
		l.phy.SetOffMode()
	}
}

// switchTo tunes the radio to ch and enters Switch for the channel-switch delay.
func (l *MacLow) switchTo(ch ChannelId) {
	logger.AssertTrue(ch != InvalidChannel)
	l.access.CancelAccess()
	if l.phy.IsStateOff() {
		l.phy.ResumeFromOff()
	}
	l.log.Debugf("switch channel %d -> %d", l.phy.ChannelNumber(), ch)
	l.stats.NumSwitches++
	l.setState(StateSwitch)
	l.phy.SetChannelNumber(ch)
	l.sched.Rearm(&l.stateTimer, l.phy.ChannelSwitchDelay(), l.switchDone)
}

func (l *MacLow) switchDone() {
	l.host.ChannelSwitched(l.group, l.phy.ChannelNumber())
	l.behavior.switchDone()
}

// startDetection arms signal detection for duration and enters Detection.
func (l *MacLow) startDetection(mode phy.DetectionMode, duration uint64) {
	l.access.CancelAccess()
	if l.phy.IsStateOff() {
		l.phy.ResumeFromOff()
	}
	l.setState(StateDetection)
	l.phy.SetSignalDetectionMode(mode)
	l.sched.Rearm(&l.stateTimer, duration, l.endDetection)
}

func (l *MacLow) endDetection() {
	l.stats.NumDetections++
	if l.phy.ResetSignalDetection() {
		l.stats.NumPuDetected++
		l.log.Debugf("primary user detected on channel %d", l.phy.ChannelNumber())
	}
	l.behavior.endDetection()
}

// send puts a frame on the air. onTxEnd runs when the transmission is over. It returns false, sending
// nothing, if the radio cannot transmit.
func (l *MacLow) send(f *frame.Frame, mode phy.TxMode, onTxEnd func()) bool {
	if !l.phy.IsStateIdle() && !l.phy.IsStateRx() {
		l.log.Debugf("cannot send %s, radio is %v", f, l.phy.State())
		return false
	}
	data := f.Encode()
	l.log.Tracef("send %s", f)
	l.phy.Send(data, mode)
	if onTxEnd != nil {
		l.sched.Rearm(&l.txEndTimer, l.phy.TxDuration(len(data), mode), onTxEnd)
	}
	return true
}

func (l *MacLow) controlTxDuration(k frame.Kind) uint64 {
	return l.phy.TxDuration(frame.Size(k, 0), phy.ControlMode)
}

// AccessGranted is called by the access manager when a requested access is granted.
func (l *MacLow) AccessGranted(t AccessType) {
	l.log.Tracef("access %v granted in state %v", t, l.state)
	switch t {
	case AccessBeacon:
		l.behavior.beaconGranted()
	case AccessDetection:
		l.behavior.detectionGranted()
	case AccessBulk:
		l.startBulk()
	default:
		logger.Panicf("invalid access type %v", t)
	}
}

// ReceiveOk handles a frame received without error.
func (l *MacLow) ReceiveOk(data []byte) {
	f, err := frame.Decode(data)
	if err != nil {
		l.log.Warnf("dropping frame: %v", err)
		return
	}
	if l.isOwn(f.Addr2) {
		return
	}
	l.log.Tracef("recv %s", f)
	if f.FrameControl.IsMgtOrData() {
		l.access.NavStart(uint64(f.Duration))
	}

	switch f.Kind() {
	case frame.KindBeacon:
		l.host.RefreshNeighbor(f.Addr2, ChannelId(f.Beacon.Channel))
		l.updateRotationFactor()
	case frame.KindDetectionRequest:
		l.host.RefreshNeighbor(f.Addr2, l.phy.ChannelNumber())
		l.updateRotationFactor()
		l.behavior.detectionRequestReceived()
	case frame.KindBulkRequest:
		if f.Addr1 == l.address() {
			l.receiveBulkRequest(f)
		}
	case frame.KindBulkResponse:
		if f.Addr1 == l.address() {
			l.receiveBulkResponse(f)
		}
	case frame.KindBulkAck:
		if f.Addr1 == l.address() {
			l.receiveBulkAck(f)
		}
	case frame.KindData:
		if f.Addr1 == l.address() || f.Addr1.IsGroup() {
			l.receiveData(f)
		}
	default:
		l.log.Warnf("unexpected frame %s", f)
	}
}

// ReceiveError handles a frame that could not be decoded by the PHY.
func (l *MacLow) ReceiveError() {
	l.stats.NumRxErrors++
}

func (l *MacLow) updateRotationFactor() {
	if l.access.IsAccessRequested() {
		l.access.UpdateRotationFactor()
	}
}

func (l *MacLow) receiveData(f *frame.Frame) {
	l.stats.NumDataRx++
	if payload, ok := l.coord.ReceiveData(l.group, f); ok {
		l.host.Deliver(l.group, f.Addr3, payload)
	}
}
