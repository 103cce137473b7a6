// Copyright (c) 2022-2024, The OTNS Authors.
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

package energy

import (
	"github.com/crmac/crmac-ns/logger"
	. "github.com/crmac/crmac-ns/types"
)

// RadioEnergy tracks the time one radio spends in each state. It is registered as a PHY listener.
type RadioEnergy struct {
	group Group
	now   func() uint64
	radio RadioStatus
	// txEnd is the end of the ongoing transmission; the PHY returns to idle without a notification.
	txEnd uint64
	// switchEnd is the end of the ongoing channel switch.
	switchEnd uint64
}

func (re *RadioEnergy) ComputeRadioState(timestamp uint64) {
	if re.radio.State == RadioTx && re.txEnd <= timestamp {
		re.account(re.txEnd)
		re.radio.State = RadioIdle
	}
	if re.radio.State == RadioSwitching && re.switchEnd <= timestamp {
		re.account(re.switchEnd)
		re.radio.State = RadioIdle
	}
	re.account(timestamp)
}

func (re *RadioEnergy) account(timestamp uint64) {
	if timestamp < re.radio.Timestamp {
		return
	}
	delta := timestamp - re.radio.Timestamp
	switch re.radio.State {
	case RadioOff:
		re.radio.SpentOff += delta
	case RadioSleep:
		re.radio.SpentSleep += delta
	case RadioIdle:
		re.radio.SpentIdle += delta
	case RadioSwitching:
		re.radio.SpentSwitching += delta
	case RadioTx:
		re.radio.SpentTx += delta
	case RadioRx:
		re.radio.SpentRx += delta
	default:
		logger.Panicf("unknown radio state: %v", re.radio.State)
	}
	re.radio.Timestamp = timestamp
}

func (re *RadioEnergy) SetRadioState(state RadioStates) {
	//Mandatory: compute energy consumed by the radio first.
	re.ComputeRadioState(re.now())
	re.radio.State = state
}

func (re *RadioEnergy) Status() RadioStatus {
	re.ComputeRadioState(re.now())
	return re.radio
}

func (re *RadioEnergy) NotifyRxStart(duration uint64) {
	re.SetRadioState(RadioRx)
}

func (re *RadioEnergy) NotifyRxEndOk() {
	re.SetRadioState(RadioIdle)
}

func (re *RadioEnergy) NotifyRxEndError() {
	re.SetRadioState(RadioIdle)
}

func (re *RadioEnergy) NotifyTxStart(duration uint64, txPowerDbm float64) {
	re.SetRadioState(RadioTx)
	re.txEnd = re.now() + duration
}

func (re *RadioEnergy) NotifyMaybeCcaBusyStart(duration uint64) {
}

func (re *RadioEnergy) NotifySwitchingStart(duration uint64) {
	re.SetRadioState(RadioSwitching)
	re.switchEnd = re.now() + duration
}

func (re *RadioEnergy) NotifySleep() {
	re.SetRadioState(RadioSleep)
}

func (re *RadioEnergy) NotifyOff() {
	re.SetRadioState(RadioOff)
}

func (re *RadioEnergy) NotifyWakeup() {
	re.SetRadioState(RadioIdle)
}

func (re *RadioEnergy) NotifyOn() {
	re.SetRadioState(RadioIdle)
}

// NodeEnergy aggregates the radios of one node.
type NodeEnergy struct {
	nodeId int
	radios [NumGroups]*RadioEnergy
}

func (node *NodeEnergy) Radio(g Group) *RadioEnergy {
	return node.radios[g]
}

// Energy returns the energy (mJ) spent by all radios of the node.
func (node *NodeEnergy) Energy() RadioEnergyConsumption {
	var total RadioEnergyConsumption
	for _, r := range node.radios {
		st := r.Status()
		total.add(st.Energy(), 1.0)
	}
	return total
}

func newNode(nodeID int, now func() uint64) *NodeEnergy {
	node := &NodeEnergy{
		nodeId: nodeID,
	}
	for _, g := range AllGroups {
		node.radios[g] = &RadioEnergy{
			group: g,
			now:   now,
			radio: RadioStatus{
				State:     RadioIdle,
				Timestamp: now(),
			},
		}
	}
	return node
}
