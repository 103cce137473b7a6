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
	. "github.com/crmac/crmac-ns/types"
)

/*
 * Default consumption values by state of a 60 GHz single-carrier transceiver.
 * Consumption in kilowatts, time in microseconds, resulting energy in mJ.
 */
const (
	RadioOffConsumption       float64 = 0.0
	RadioSleepConsumption     float64 = 0.00005 //kilowatts, 50 mW
	RadioIdleConsumption      float64 = 0.00040 //kilowatts, 400 mW
	RadioSwitchingConsumption float64 = 0.00040 //kilowatts, 400 mW
	RadioTxConsumption        float64 = 0.00120 //kilowatts, 1.2 W
	RadioRxConsumption        float64 = 0.00100 //kilowatts, 1.0 W
)

const (
	ComputePeriod uint64 = 1000000 // in microseconds
)

type RadioStatus struct {
	State          RadioStates
	SpentOff       uint64
	SpentSleep     uint64
	SpentIdle      uint64
	SpentSwitching uint64
	SpentTx        uint64
	SpentRx        uint64
	Timestamp      uint64
}

// Energy returns the energy (mJ) spent per radio state.
func (rs *RadioStatus) Energy() RadioEnergyConsumption {
	return RadioEnergyConsumption{
		Off:       float64(rs.SpentOff) * RadioOffConsumption,
		Sleep:     float64(rs.SpentSleep) * RadioSleepConsumption,
		Idle:      float64(rs.SpentIdle) * RadioIdleConsumption,
		Switching: float64(rs.SpentSwitching) * RadioSwitchingConsumption,
		Tx:        float64(rs.SpentTx) * RadioTxConsumption,
		Rx:        float64(rs.SpentRx) * RadioRxConsumption,
	}
}

type RadioEnergyConsumption struct {
	Off       float64 `json:"off" yaml:"off"`
	Sleep     float64 `json:"sleep" yaml:"sleep"`
	Idle      float64 `json:"idle" yaml:"idle"`
	Switching float64 `json:"switching" yaml:"switching"`
	Tx        float64 `json:"tx" yaml:"tx"`
	Rx        float64 `json:"rx" yaml:"rx"`
}

func (c RadioEnergyConsumption) Total() float64 {
	return c.Off + c.Sleep + c.Idle + c.Switching + c.Tx + c.Rx
}

func (c *RadioEnergyConsumption) add(o RadioEnergyConsumption, scale float64) {
	c.Off += o.Off * scale
	c.Sleep += o.Sleep * scale
	c.Idle += o.Idle * scale
	c.Switching += o.Switching * scale
	c.Tx += o.Tx * scale
	c.Rx += o.Rx * scale
}

type NodeEnergySnapshot struct {
	NodeId int                    `json:"node" yaml:"node"`
	Energy RadioEnergyConsumption `json:"energy" yaml:"energy"`
}

type NetworkConsumption struct {
	Timestamp uint64                 `json:"time" yaml:"time"`
	Average   RadioEnergyConsumption `json:"average" yaml:"average"`
}
