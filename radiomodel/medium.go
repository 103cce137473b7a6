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

// Package radiomodel implements the shared wireless medium: frame delivery between SU radios, collisions
// and primary-user activity.
package radiomodel

import (
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/pcap"
	"github.com/crmac/crmac-ns/phy"
	. "github.com/crmac/crmac-ns/types"
)

type MediumConfig struct {
	RadioRange       float64 // disc limit, meters
	RxSensitivityDbm DbValue
	Pathloss         PathlossParams
}

func DefaultMediumConfig() MediumConfig {
	return MediumConfig{
		RadioRange:       defaultRadioRange,
		RxSensitivityDbm: defaultRxSensitivityDbm,
		Pathloss:         DefaultPathlossParams(),
	}
}

type MediumStats struct {
	NumFrames     int
	NumDeliveries int
	NumCorrupted  int
	NumPuOn       int
}

// ChannelStats accumulates the SU airtime of one channel.
type ChannelStats struct {
	TxTimeUs  uint64
	NumFrames uint64
}

type transmission struct {
	src     *RadioNode
	channel ChannelId
	end     uint64
}

// Medium is the shared air of all SU radios and primary users of a simulation.
type Medium struct {
	cfg     MediumConfig
	sched   *event.Scheduler
	radios  []*RadioNode
	byPhy   map[*phy.SimPhy]*RadioNode
	pus     []*PrimaryUser
	active  []*transmission
	capture pcap.File
	stats   MediumStats
	chStats map[ChannelId]*ChannelStats
}

func NewMedium(sched *event.Scheduler, cfg MediumConfig) *Medium {
	return &Medium{
		cfg:     cfg,
		sched:   sched,
		byPhy:   map[*phy.SimPhy]*RadioNode{},
		chStats: map[ChannelId]*ChannelStats{},
	}
}

// AddRadio attaches a radio to the medium.
func (m *Medium) AddRadio(p *phy.SimPhy) *RadioNode {
	logger.AssertNil(m.byPhy[p])
	rn := newRadioNode(p)
	m.radios = append(m.radios, rn)
	m.byPhy[p] = rn
	return rn
}

// AddPrimaryUser attaches a primary user and starts its ON/OFF activity.
func (m *Medium) AddPrimaryUser(pu *PrimaryUser) {
	m.pus = append(m.pus, pu)
	pu.start(m)
}

// RemovePrimaryUser stops and detaches the PU with the given id. It returns false if there is none.
func (m *Medium) RemovePrimaryUser(id int) bool {
	for i, pu := range m.pus {
		if pu.Id == id {
			pu.stop()
			m.pus = append(m.pus[:i], m.pus[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Medium) PrimaryUsers() []*PrimaryUser {
	return m.pus
}

func (m *Medium) Radios() []*RadioNode {
	return m.radios
}

// SetCapture sets the PCAP file that receives every frame put on the air, or nil to disable capture.
func (m *Medium) SetCapture(f pcap.File) {
	m.capture = f
}

func (m *Medium) Stats() MediumStats {
	return m.stats
}

// GetChannelStats returns the airtime counted on ch since the last reset, or nil if ch was never used.
func (m *Medium) GetChannelStats(ch ChannelId) *ChannelStats {
	if cs := m.chStats[ch]; cs != nil {
		res := *cs
		return &res
	}
	return nil
}

func (m *Medium) ResetChannelStats() {
	m.chStats = map[ChannelId]*ChannelStats{}
}

// canHear returns true if a frame of tx is decodable at rx when no other signal is present.
func (m *Medium) canHear(tx *RadioNode, rx *RadioNode) bool {
	dist := tx.GetDistanceTo(rx)
	if dist > m.cfg.RadioRange {
		return false
	}
	rssi := computeRssi(dist, tx.Phy.Params().TxPowerDbm, &m.cfg.Pathloss)
	return rssi >= m.cfg.RxSensitivityDbm
}

func (m *Medium) pruneActive() {
	now := m.sched.Now()
	n := 0
	for _, t := range m.active {
		if t.end > now {
			m.active[n] = t
			n++
		}
	}
	for i := n; i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = m.active[:n]
}

// interfered returns true if rx currently hears another ongoing transmission on ch, other than from src.
func (m *Medium) interfered(rx *RadioNode, src *RadioNode, ch ChannelId) bool {
	for _, t := range m.active {
		if t.src != src && t.src != rx && t.channel == ch && m.canHear(t.src, rx) {
			return true
		}
	}
	return false
}

// Transmit delivers a frame to every other radio on the sender's channel that can hear it. The frame is
// corrupted at a receiver that also hears another transmission or an active primary user.
func (m *Medium) Transmit(src *phy.SimPhy, data []byte, duration uint64) {
	tx := m.byPhy[src]
	logger.AssertNotNil(tx)
	ch := src.ChannelNumber()
	now := m.sched.Now()

	m.pruneActive()
	m.stats.NumFrames++
	tx.stats.NumFramesTx++
	tx.stats.NumBytesTx += len(data)
	cs := m.chStats[ch]
	if cs == nil {
		cs = &ChannelStats{}
		m.chStats[ch] = cs
	}
	cs.TxTimeUs += duration
	cs.NumFrames++
	if m.capture != nil {
		if err := m.capture.AppendFrame(pcap.Frame{
			Timestamp: now,
			Data:      data,
			Channel:   ch,
		}); err != nil {
			logger.Errorf("pcap capture failed: %v", err)
		}
	}

	for _, rx := range m.radios {
		if rx == tx || rx.Id == tx.Id || rx.Channel() != ch || !m.canHear(tx, rx) {
			continue
		}
		corrupt := m.interfered(rx, tx, ch) || m.PrimaryUserActivity(ch, rx.Position()) > 0
		if rx.Phy.IsStateIdle() {
			m.stats.NumDeliveries++
			rx.stats.NumFramesRx++
			if corrupt {
				m.stats.NumCorrupted++
				rx.stats.NumCorrupted++
			}
		}
		rx.Phy.StartReceive(data, duration, corrupt)
	}
	m.active = append(m.active, &transmission{src: tx, channel: ch, end: now + duration})
}

// PrimaryUserActivity returns the remaining on-time of the longest active PU on ch audible at pos, or 0.
func (m *Medium) PrimaryUserActivity(ch ChannelId, pos Position) uint64 {
	var left uint64
	now := m.sched.Now()
	for _, pu := range m.pus {
		if pu.on && pu.Channel == ch && pu.Covers(pos) && pu.onUntil > now && pu.onUntil-now > left {
			left = pu.onUntil - now
		}
	}
	return left
}

// IsChannelOccupied returns true if any PU on ch is currently on, regardless of position.
func (m *Medium) IsChannelOccupied(ch ChannelId) bool {
	for _, pu := range m.pus {
		if pu.on && pu.Channel == ch {
			return true
		}
	}
	return false
}

func (m *Medium) primaryUserOn(pu *PrimaryUser) {
	m.stats.NumPuOn++
	for _, rn := range m.radios {
		if rn.Channel() == pu.Channel && pu.Covers(rn.Position()) {
			rn.Phy.SignalInterference(pu.OnTime, true)
		}
	}
}
