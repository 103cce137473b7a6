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
	"github.com/crmac/crmac-ns/mac"
	. "github.com/crmac/crmac-ns/types"
)

type KpiTimeUs struct {
	StartTimeUs uint64 `json:"start" yaml:"start"`
	EndTimeUs   uint64 `json:"end" yaml:"end"`
	PeriodUs    uint64 `json:"duration" yaml:"duration"`
}

type KpiTimeSec struct {
	StartTimeSec float64 `json:"start" yaml:"start"`
	EndTimeSec   float64 `json:"end" yaml:"end"`
	PeriodSec    float64 `json:"duration" yaml:"duration"`
}

type KpiChannel struct {
	TxTimeUs      uint64  `json:"tx_time_us" yaml:"tx_time_us"`
	TxPercentage  float64 `json:"tx_percent" yaml:"tx_percent"`
	NumFrames     uint64  `json:"tx_frames" yaml:"tx_frames"`
	AvgFps        float64 `json:"tx_avg_fps" yaml:"tx_avg_fps"`
	NumNodes      int     `json:"intra_nodes" yaml:"intra_nodes"`
	PuActivations int     `json:"pu_activations" yaml:"pu_activations"`
	Occupancy     float64 `json:"pu_occupancy" yaml:"pu_occupancy"`
}

type KpiMac struct {
	NoAckPercentage  map[NodeId]float64 `json:"noack_percent" yaml:"noack_percent"`
	ResponseTimeouts uint64             `json:"response_timeouts" yaml:"response_timeouts"`
	AckTimeouts      uint64             `json:"ack_timeouts" yaml:"ack_timeouts"`
	ChannelSwitches  uint64             `json:"channel_switches" yaml:"channel_switches"`
}

type KpiNode struct {
	Counters       NodeCounters `json:"counters" yaml:"counters"`
	ThroughputKbps float64      `json:"throughput_kbps" yaml:"throughput_kbps"`
	AvgDelayUs     float64      `json:"avg_delay_us" yaml:"avg_delay_us"`
	EnergyMj       float64      `json:"energy_mj" yaml:"energy_mj"`
	Mac            mac.Counters `json:"mac" yaml:"mac"`
}

type KpiFlow struct {
	Src           NodeId  `json:"src" yaml:"src"`
	Dst           NodeId  `json:"dst" yaml:"dst"`
	Sent          uint64  `json:"sent" yaml:"sent"`
	Received      uint64  `json:"received" yaml:"received"`
	DeliveryRatio float64 `json:"delivery_ratio" yaml:"delivery_ratio"`
	AvgDelayUs    float64 `json:"avg_delay_us" yaml:"avg_delay_us"`
}

type KpiNetwork struct {
	Sent           uint64  `json:"sent" yaml:"sent"`
	Received       uint64  `json:"received" yaml:"received"`
	DeliveryRatio  float64 `json:"delivery_ratio" yaml:"delivery_ratio"`
	ThroughputKbps float64 `json:"throughput_kbps" yaml:"throughput_kbps"`
	AvgDelayUs     float64 `json:"avg_delay_us" yaml:"avg_delay_us"`
	EnergyMj       float64 `json:"energy_mj" yaml:"energy_mj"`
	Events         uint64  `json:"events" yaml:"events"`
}

type Kpi struct {
	RunId    string                   `json:"run_id" yaml:"run_id"`
	FileTime string                   `json:"created" yaml:"created"`
	Status   string                   `json:"status" yaml:"status"`
	TimeUs   KpiTimeUs                `json:"time_us" yaml:"time_us"`
	TimeSec  KpiTimeSec               `json:"time_sec" yaml:"time_sec"`
	Channels map[ChannelId]KpiChannel `json:"channels" yaml:"channels"`
	Mac      KpiMac                   `json:"mac" yaml:"mac"`
	Nodes    map[NodeId]KpiNode       `json:"nodes" yaml:"nodes"`
	Flows    map[int]KpiFlow          `json:"flows" yaml:"flows"`
	Network  KpiNetwork               `json:"network" yaml:"network"`
}
