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

// Package phy defines the physical-layer surface consumed by the MAC (timing, state, channel control,
// signal detection and event notification) and provides SimPhy, a simulated radio front-end.
package phy

import (
	"github.com/crmac/crmac-ns/types"
)

// TxMode is the modulation used for a transmission; only its data rate matters for timing.
type TxMode struct {
	Name     string
	DataRate uint64 // bit/s
}

var (
	// ControlMode is the robust mode used for beacons and control frames.
	ControlMode = TxMode{Name: "ctrl", DataRate: 27_500_000}
	// DefaultDataMode is used for data frames when no station manager overrides it.
	DefaultDataMode = TxMode{Name: "sc-mcs4", DataRate: 1_540_000_000}
)

// DetectionMode selects the sensing procedure armed during a MAC detection period.
type DetectionMode int

const (
	DetectionFast DetectionMode = iota
	DetectionFine
)

func (m DetectionMode) String() string {
	switch m {
	case DetectionFast:
		return "fast"
	case DetectionFine:
		return "fine"
	default:
		return "unknown"
	}
}

// Params holds the PHY timing constants, all in us.
type Params struct {
	Sifs               uint64
	Slot               uint64
	ChannelSwitchDelay uint64
	Preamble           uint64
	TxPowerDbm         float64
}

func DefaultParams() Params {
	return Params{
		Sifs:               3,
		Slot:               5,
		ChannelSwitchDelay: 100,
		Preamble:           3,
		TxPowerDbm:         10.0,
	}
}

// Listener receives the PHY state notifications used for busy-interval bookkeeping.
type Listener interface {
	NotifyRxStart(duration uint64)
	NotifyRxEndOk()
	NotifyRxEndError()
	NotifyTxStart(duration uint64, txPowerDbm float64)
	NotifyMaybeCcaBusyStart(duration uint64)
	NotifySwitchingStart(duration uint64)
	NotifySleep()
	NotifyOff()
	NotifyWakeup()
	NotifyOn()
}

// Receiver is the MAC side of a PHY: it gets the outcome of each completed reception.
type Receiver interface {
	ReceiveOk(data []byte)
	ReceiveError()
}

// DetectionReporter gets the outcome of every completed signal-detection period.
type DetectionReporter interface {
	ReportDetection(ch types.ChannelId, puPresent bool, at uint64)
}

// Phy is the radio front-end of one MAC group.
type Phy interface {
	Sifs() uint64
	Slot() uint64
	ChannelSwitchDelay() uint64
	TxDuration(size int, mode TxMode) uint64

	State() types.RadioStates
	IsStateIdle() bool
	IsStateTx() bool
	IsStateRx() bool
	IsStateOff() bool

	ChannelNumber() types.ChannelId
	SetChannelNumber(ch types.ChannelId)

	SetSleepMode()
	ResumeFromSleep()
	SetOffMode()
	ResumeFromOff()

	Send(data []byte, mode TxMode)

	SetSignalDetectionMode(mode DetectionMode)
	ResetSignalDetection() bool

	RegisterListener(l Listener)
	SetReceiver(r Receiver)

	// UniformInt draws from the reproducible random stream of this radio, in [min, max].
	UniformInt(min, max uint64) uint64
}
