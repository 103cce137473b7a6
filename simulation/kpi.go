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
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/mac"
	. "github.com/crmac/crmac-ns/types"
)

type KpiFormat string

const (
	KpiFormatJson KpiFormat = "json"
	KpiFormatYaml KpiFormat = "yaml"
	KpiFormatCbor KpiFormat = "cbor"
)

// KpiFormatFromFileName picks the export format by file extension; unknown extensions use json.
func KpiFormatFromFileName(fn string) KpiFormat {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".yaml", ".yml":
		return KpiFormatYaml
	case ".cbor":
		return KpiFormatCbor
	default:
		return KpiFormatJson
	}
}

// KpiManager computes the KPIs of the period between Start and the latest calculation.
type KpiManager struct {
	sim       *Simulation
	data      *Kpi
	isRunning bool
}

func NewKpiManager() *KpiManager {
	return &KpiManager{}
}

func (km *KpiManager) Init(sim *Simulation) {
	logger.AssertNil(km.sim)
	logger.AssertFalse(km.isRunning)
	km.sim = sim
	km.data = &Kpi{Status: "ok", RunId: sim.RunId()}
}

func (km *KpiManager) Start() {
	logger.AssertNotNil(km.sim)
	km.data.TimeUs.StartTimeUs = km.sim.sched.Now()
	km.sim.medium.ResetChannelStats()
	km.isRunning = true
}

func (km *KpiManager) Stop() {
	if km.isRunning {
		km.calculateKpis()
		km.isRunning = false
	}
}

func (km *KpiManager) IsRunning() bool {
	return km.isRunning
}

// Kpi returns the KPIs, recalculated if the period is still running.
func (km *KpiManager) Kpi() *Kpi {
	if km.isRunning {
		km.calculateKpis()
	}
	return km.data
}

func (km *KpiManager) Marshal(format KpiFormat) ([]byte, error) {
	km.Kpi()
	km.data.FileTime = time.Now().Format(time.RFC3339)
	var data []byte
	var err error
	switch format {
	case KpiFormatJson:
		data, err = json.MarshalIndent(km.data, "", "    ")
	case KpiFormatYaml:
		data, err = yaml.Marshal(km.data)
	case KpiFormatCbor:
		data, err = cbor.Marshal(km.data)
	default:
		return nil, errors.Errorf("unknown KPI format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "marshal KPI data as %s", format)
	}
	return data, nil
}

func (km *KpiManager) SaveDefaultFile() error {
	return km.SaveFile(km.getDefaultSaveFileName())
}

func (km *KpiManager) SaveFile(fn string) error {
	logger.AssertNotNil(km.sim)
	data, err := km.Marshal(KpiFormatFromFileName(fn))
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fn), 0777); err != nil {
		return errors.Wrapf(err, "create directory for %s", fn)
	}
	if err = os.WriteFile(fn, data, 0644); err != nil {
		return errors.Wrapf(err, "write KPI file %s", fn)
	}
	return nil
}

func ratio(num, den float64) float64 {
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0.0
	}
	return r
}

func (km *KpiManager) calculateKpis() {
	sim := km.sim
	d := km.data

	// time
	d.TimeUs.EndTimeUs = sim.sched.Now()
	d.TimeUs.PeriodUs = d.TimeUs.EndTimeUs - d.TimeUs.StartTimeUs
	d.TimeSec.StartTimeSec = float64(d.TimeUs.StartTimeUs) / 1e6
	d.TimeSec.EndTimeSec = float64(d.TimeUs.EndTimeUs) / 1e6
	d.TimeSec.PeriodSec = float64(d.TimeUs.PeriodUs) / 1e6
	period := float64(d.TimeUs.PeriodUs)

	// channels
	d.Channels = make(map[ChannelId]KpiChannel, len(sim.cfg.Channels))
	for _, ch := range sim.cfg.Channels {
		kc := KpiChannel{}
		if stats := sim.medium.GetChannelStats(ch); stats != nil {
			kc.TxTimeUs = stats.TxTimeUs
			kc.TxPercentage = 100.0 * ratio(float64(stats.TxTimeUs), period)
			kc.NumFrames = stats.NumFrames
			kc.AvgFps = 1.0e6 * ratio(float64(stats.NumFrames), period)
		}
		for _, pu := range sim.medium.PrimaryUsers() {
			if pu.Channel == ch {
				kc.PuActivations += pu.NumActivations()
			}
		}
		occupancy := 0.0
		for _, node := range sim.nodes {
			if node.mac.Channel(GroupIntra) == ch {
				kc.NumNodes++
			}
			occupancy += node.repo.Occupancy(ch)
		}
		kc.Occupancy = ratio(occupancy, float64(len(sim.nodes)))
		d.Channels[ch] = kc
	}

	// nodes and MAC
	d.Mac = KpiMac{NoAckPercentage: map[NodeId]float64{}}
	d.Nodes = make(map[NodeId]KpiNode, len(sim.nodes))
	d.Network = KpiNetwork{Events: sim.sched.Executed}
	var delaySum uint64
	for nid, node := range sim.nodes {
		ctr := node.Counters()
		macCtr := node.mac.Counters()
		kn := KpiNode{
			Counters:       ctr,
			ThroughputKbps: 1.0e3 * ratio(float64(ctr.BytesReceived*8), period),
			AvgDelayUs:     ratio(float64(ctr.DelaySumUs), float64(ctr.Received)),
			EnergyMj:       node.Energy().Total(),
			Mac:            macCtr,
		}
		d.Nodes[nid] = kn
		d.Mac.NoAckPercentage[nid] = 100.0 * ratio(float64(ctr.TxFailed), float64(ctr.TxOk+ctr.TxFailed))
		for _, g := range []mac.GroupCounters{macCtr.Intra, macCtr.Inter, macCtr.Probe} {
			d.Mac.ResponseTimeouts += g.Mac.NumResponseTimeouts
			d.Mac.AckTimeouts += g.Mac.NumAckTimeouts
			d.Mac.ChannelSwitches += g.Mac.NumSwitches
		}
		d.Network.EnergyMj += kn.EnergyMj
		d.Network.ThroughputKbps += kn.ThroughputKbps
		d.Network.Received += ctr.Received
		delaySum += ctr.DelaySumUs
	}
	d.Network.AvgDelayUs = ratio(float64(delaySum), float64(d.Network.Received))

	// flows
	d.Flows = make(map[int]KpiFlow, len(sim.flows))
	var expected uint64
	for id, f := range sim.flows {
		d.Flows[id] = KpiFlow{
			Src:           f.Src,
			Dst:           f.Dst,
			Sent:          uint64(f.sent),
			Received:      f.received,
			DeliveryRatio: ratio(float64(f.received), float64(f.expected())),
			AvgDelayUs:    ratio(float64(f.delaySumUs), float64(f.received)),
		}
		d.Network.Sent += uint64(f.sent)
		expected += f.expected()
	}
	d.Network.DeliveryRatio = ratio(float64(d.Network.Received), float64(expected))
}

func (km *KpiManager) getDefaultSaveFileName() string {
	return filepath.Join(km.sim.cfg.OutputDir, fmt.Sprintf("%d_kpi.json", km.sim.cfg.Id))
}
