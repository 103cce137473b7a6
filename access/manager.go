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

// Package access implements the channel access manager of one MAC group: busy-interval bookkeeping from
// PHY notifications, contention-window backoff scaled by the rotation factor, and access-grant scheduling.
package access

import (
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/phy"
	. "github.com/crmac/crmac-ns/types"
)

const (
	// beaconCwBase is the contention-window base of beacon and detection access (BEIFS).
	beaconCwBase = 64
	// bulkCwBase is the contention-window base of bulk access (BUIFS).
	bulkCwBase = 128
	// rotationK divides the contention window base.
	rotationK = 8
)

// Sender performs the transmission of a granted access. It is implemented by the MAC low of the group.
type Sender interface {
	AccessGranted(t AccessType)
}

// NeighborCounter reports the number of known neighbors on a channel.
type NeighborCounter interface {
	NeighborCountOnChannel(ch ChannelId) int
}

type interval struct {
	start    uint64
	duration uint64
}

func (iv *interval) end() uint64 {
	return iv.start + iv.duration
}

func (iv *interval) set(start, duration uint64) {
	iv.start = start
	iv.duration = duration
}

// truncate makes an interval that is still running end at now.
func (iv *interval) truncate(now uint64) {
	if iv.end() > now {
		if iv.start > now {
			iv.start = now
		}
		iv.duration = now - iv.start
	}
}

type Stats struct {
	NumRequests    uint64
	NumGrants      uint64
	NumReRequests  uint64
	NumEscalations uint64
}

// Manager is the channel access manager of one MAC group.
type Manager struct {
	sched     *event.Scheduler
	phy       phy.Phy
	sender    Sender
	neighbors NeighborCounter
	log       *logger.MacLogger

	lastRx          interval
	lastRxReceiveOk bool
	lastTx          interval
	lastNav         interval
	lastCcaBusy     interval
	lastAckTimeout  interval
	lastBulkTimeout interval
	lastSwitching   interval
	sleeping        bool
	off             bool

	pending      AccessType
	pendingIfs   uint64
	requestTimer *event.Timer

	gamma             int
	gammaInit         int
	lastNeighborCount int

	stats Stats
}

// NewManager creates the access manager of a group and registers it as listener of the group's PHY.
func NewManager(sched *event.Scheduler, p phy.Phy, sender Sender, neighbors NeighborCounter, log *logger.MacLogger) *Manager {
	m := &Manager{
		sched:           sched,
		phy:             p,
		sender:          sender,
		neighbors:       neighbors,
		log:             log,
		lastRxReceiveOk: true,
		pending:         AccessNone,
		gamma:           1,
		gammaInit:       1,
	}
	p.RegisterListener(m)
	return m
}

func (m *Manager) Stats() Stats {
	return m.stats
}

// IsBusy returns true iff now precedes the end of any tracked interval.
func (m *Manager) IsBusy() bool {
	now := m.sched.Now()
	for _, iv := range []*interval{&m.lastRx, &m.lastTx, &m.lastNav, &m.lastCcaBusy, &m.lastAckTimeout,
		&m.lastBulkTimeout, &m.lastSwitching} {
		if now < iv.end() {
			return true
		}
	}
	return false
}

// GetAccessGrantStart returns the earliest instant the channel may be seized: one SIFS after the latest
// busy interval, with an extra SIFS after a failed reception.
func (m *Manager) GetAccessGrantStart(ignoreNav bool) uint64 {
	sifs := m.phy.Sifs()
	rxAccessStart := m.lastRx.end() + sifs
	if !m.lastRxReceiveOk {
		rxAccessStart += sifs
	}
	accessGrantStart := rxAccessStart
	for _, iv := range []*interval{&m.lastCcaBusy, &m.lastTx, &m.lastAckTimeout, &m.lastBulkTimeout,
		&m.lastSwitching} {
		if end := iv.end() + sifs; end > accessGrantStart {
			accessGrantStart = end
		}
	}
	if !ignoreNav {
		if end := m.lastNav.end() + sifs; end > accessGrantStart {
			accessGrantStart = end
		}
	}
	return accessGrantStart
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// InterFrameGap draws the inter-frame gap of an access type: BEIFS for beacon and detection, BUIFS for
// bulk access. The contention window is [ceil(base*gamma/k), ceil(base*(gamma+1)/k)] slots.
func (m *Manager) InterFrameGap(t AccessType) uint64 {
	var base int
	switch t {
	case AccessDetection, AccessBeacon:
		base = beaconCwBase
	case AccessBulk:
		base = bulkCwBase
	default:
		m.log.Panicf("no inter-frame gap for access type %v", t)
	}
	minCw := ceilDiv(base*m.gamma, rotationK)
	maxCw := ceilDiv(base*(m.gamma+1), rotationK)
	draws := m.phy.UniformInt(uint64(minCw), uint64(maxCw))
	return m.phy.Sifs() + draws*m.phy.Slot()
}

// IsAccessRequested returns true if a request is outstanding, scheduled or parked while the radio sleeps.
func (m *Manager) IsAccessRequested() bool {
	return m.pending != AccessNone
}

// PendingAccess returns the outstanding access type, or AccessNone.
func (m *Manager) PendingAccess() AccessType {
	return m.pending
}

// PendingGrantTime returns the time the outstanding request fires, or Ever if none is scheduled.
func (m *Manager) PendingGrantTime() uint64 {
	return m.requestTimer.Expires()
}

// StartRequestAccess starts a fresh contention round: the rotation factor is reset if no request is pending.
func (m *Manager) StartRequestAccess(t AccessType) {
	if m.pending == AccessNone {
		m.ResetRotationFactor()
	}
	m.RequestAccess(t)
}

// RequestAccess requests access of type t. A pending request can only be escalated to a strictly higher
// priority type; the escalated request keeps the remaining delay, shortened by the difference of the
// inter-frame gaps.
func (m *Manager) RequestAccess(t AccessType) {
	logger.AssertTrue(t != AccessNone)
	if m.pending != AccessNone {
		if !t.HasPriorityOver(m.pending) {
			m.log.Tracef("access %v already pending, %v ignored", m.pending, t)
			return
		}
		m.escalate(t)
		return
	}

	m.stats.NumRequests++
	m.pending = t
	if m.sleeping || m.off {
		m.log.Debugf("access %v parked while radio inactive", t)
		return
	}
	m.scheduleRequest(t)
}

func (m *Manager) scheduleRequest(t AccessType) {
	now := m.sched.Now()
	var delay uint64
	if grant := m.GetAccessGrantStart(false); grant > now {
		delay = grant - now
	}
	m.pendingIfs = m.InterFrameGap(t)
	delay += m.pendingIfs
	m.log.Tracef("request access %v in %d us (gamma=%d)", t, delay, m.gamma)
	m.sched.Rearm(&m.requestTimer, delay, m.requestAccessCallback)
}

func (m *Manager) escalate(t AccessType) {
	m.stats.NumEscalations++
	old := m.pending
	m.pending = t
	if !m.requestTimer.IsPending() {
		// parked; the new type is scheduled on wakeup
		return
	}
	left := m.requestTimer.Left()
	newIfs := m.InterFrameGap(t)
	if m.pendingIfs > newIfs {
		delta := m.pendingIfs - newIfs
		if delta > left {
			delta = left
		}
		left -= delta
	}
	m.pendingIfs = newIfs
	m.log.Debugf("access %v escalated to %v, fires in %d us", old, t, left)
	m.sched.Rearm(&m.requestTimer, left, m.requestAccessCallback)
}

func (m *Manager) requestAccessCallback() {
	t := m.pending
	m.pending = AccessNone
	m.requestTimer = nil
	if m.IsBusy() {
		m.stats.NumReRequests++
		m.log.Tracef("channel busy, re-request access %v", t)
		m.RequestAccess(t)
		return
	}
	logger.AssertTruef(m.phy.IsStateIdle(), "access %v granted while PHY is %v", t, m.phy.State())
	m.stats.NumGrants++
	m.sender.AccessGranted(t)
}

// CancelAccess drops any outstanding request.
func (m *Manager) CancelAccess() {
	m.requestTimer.Cancel()
	m.requestTimer = nil
	m.pending = AccessNone
}

// reissueRequest re-computes the grant time of a pending request, after the earliest access time changed.
func (m *Manager) reissueRequest() {
	if m.pending == AccessNone || m.sleeping || m.off {
		return
	}
	t := m.pending
	m.requestTimer.Cancel()
	m.scheduleRequest(t)
}

// ResetRotationFactor sets gamma to the current number of neighbors on the channel (at least 1).
func (m *Manager) ResetRotationFactor() {
	n := m.neighbors.NeighborCountOnChannel(m.phy.ChannelNumber())
	m.lastNeighborCount = n
	m.gammaInit = n
	if m.gammaInit < 1 {
		m.gammaInit = 1
	}
	m.gamma = m.gammaInit
}

// UpdateRotationFactor decrements gamma toward 1 while the neighbor count is unchanged, else resets it.
func (m *Manager) UpdateRotationFactor() {
	n := m.neighbors.NeighborCountOnChannel(m.phy.ChannelNumber())
	if n != m.lastNeighborCount {
		m.ResetRotationFactor()
		return
	}
	if m.gamma > 1 {
		m.gamma--
	}
}

func (m *Manager) RotationFactor() int {
	return m.gamma
}

// NavStart extends the NAV to now+duration if that is later than its current end.
func (m *Manager) NavStart(duration uint64) {
	m.extendNav(duration)
}

// NavReset applies the NAV of a frame that resets it, and re-issues a pending request.
func (m *Manager) NavReset(duration uint64) {
	m.extendNav(duration)
	m.reissueRequest()
}

// IsNavBusy returns true while the NAV set by overheard frames is running.
func (m *Manager) IsNavBusy() bool {
	return m.sched.Now() < m.lastNav.end()
}

func (m *Manager) extendNav(duration uint64) {
	now := m.sched.Now()
	if now+duration > m.lastNav.end() {
		m.lastNav.set(now, duration)
	}
}

func (m *Manager) AckTimeoutStart(duration uint64) {
	m.lastAckTimeout.set(m.sched.Now(), duration)
}

func (m *Manager) AckTimeoutReset() {
	m.lastAckTimeout.truncate(m.sched.Now())
	m.reissueRequest()
}

func (m *Manager) BulkTimeoutStart(duration uint64) {
	m.lastBulkTimeout.set(m.sched.Now(), duration)
}

func (m *Manager) BulkTimeoutReset() {
	m.lastBulkTimeout.truncate(m.sched.Now())
	m.reissueRequest()
}

func (m *Manager) NotifyRxStart(duration uint64) {
	m.lastRx.set(m.sched.Now(), duration)
	m.reissueRequest()
}

func (m *Manager) NotifyRxEndOk() {
	m.lastRx.truncate(m.sched.Now())
	m.lastRxReceiveOk = true
	m.reissueRequest()
}

func (m *Manager) NotifyRxEndError() {
	m.lastRx.truncate(m.sched.Now())
	m.lastRxReceiveOk = false
	m.reissueRequest()
}

func (m *Manager) NotifyTxStart(duration uint64, txPowerDbm float64) {
	m.lastTx.set(m.sched.Now(), duration)
	m.reissueRequest()
}

func (m *Manager) NotifyMaybeCcaBusyStart(duration uint64) {
	now := m.sched.Now()
	if now+duration > m.lastCcaBusy.end() {
		m.lastCcaBusy.set(now, duration)
	}
	m.reissueRequest()
}

// NotifySwitchingStart ends all channel-bound intervals: they belong to the channel being left.
func (m *Manager) NotifySwitchingStart(duration uint64) {
	now := m.sched.Now()
	m.lastRx.truncate(now)
	m.lastCcaBusy.truncate(now)
	m.lastNav.truncate(now)
	m.lastAckTimeout.truncate(now)
	m.lastBulkTimeout.truncate(now)
	m.lastSwitching.set(now, duration)
	m.reissueRequest()
}

func (m *Manager) NotifySleep() {
	m.sleeping = true
	m.requestTimer.Cancel()
	m.requestTimer = nil
}

func (m *Manager) NotifyOff() {
	m.off = true
	m.requestTimer.Cancel()
	m.requestTimer = nil
}

func (m *Manager) NotifyWakeup() {
	m.sleeping = false
	m.wakeup()
}

func (m *Manager) NotifyOn() {
	m.off = false
	m.wakeup()
}

func (m *Manager) wakeup() {
	if m.pending != AccessNone && !m.sleeping && !m.off {
		m.scheduleRequest(m.pending)
	}
}
