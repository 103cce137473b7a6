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
	"fmt"

	"github.com/crmac/crmac-ns/energy"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/mac"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/spectrum"
	. "github.com/crmac/crmac-ns/types"
)

type NodeCounters struct {
	Sent          uint64 `json:"sent" yaml:"sent"`
	TxOk          uint64 `json:"tx-ok" yaml:"tx-ok"`
	TxFailed      uint64 `json:"tx-failed" yaml:"tx-failed"`
	TxDropped     uint64 `json:"tx-dropped" yaml:"tx-dropped"`
	Received      uint64 `json:"received" yaml:"received"`
	Duplicates    uint64 `json:"duplicates" yaml:"duplicates"`
	BytesReceived uint64 `json:"bytes-received" yaml:"bytes-received"`
	DelaySumUs    uint64 `json:"delay-sum-us" yaml:"delay-sum-us"`
}

// Node is a secondary user of the simulation: three group radios driven by one MAC.
type Node struct {
	S        *Simulation
	Id       NodeId
	cfg      NodeConfig
	mac      *mac.CrMac
	radios   [NumGroups]*phy.SimPhy
	repo     *spectrum.OccupancyRepository
	energy   *energy.NodeEnergy
	counters NodeCounters
	seen     map[uint64]struct{}
}

func newNode(s *Simulation, cfg NodeConfig) *Node {
	node := &Node{
		S:    s,
		Id:   cfg.ID,
		cfg:  cfg,
		repo: spectrum.NewOccupancyRepository(s.cfg.Spectrum),
		seen: map[uint64]struct{}{},
	}
	node.energy = s.energyAnalyser.AddNode(cfg.ID)

	var radios [NumGroups]mac.Radio
	for _, g := range AllGroups {
		p := phy.NewSimPhy(s.sched, s.medium, cfg.ID, g, cfg.Position, phy.DefaultParams())
		p.RegisterListener(node.energy.Radio(g))
		s.medium.AddRadio(p)
		node.radios[g] = p
		radios[g] = p
	}
	node.mac = mac.New(s.sched, s.cfg.Mac, cfg.ID, radios, node.repo, nil, node)
	node.mac.SetMetrics(s.metrics)
	return node
}

func (node *Node) String() string {
	return fmt.Sprintf("Node<%d>", node.Id)
}

func (node *Node) Mac() *mac.CrMac {
	return node.mac
}

func (node *Node) Position() Position {
	return node.cfg.Position
}

func (node *Node) Counters() NodeCounters {
	return node.counters
}

func (node *Node) Spectrum() *spectrum.OccupancyRepository {
	return node.repo
}

func (node *Node) Energy() energy.RadioEnergyConsumption {
	return node.energy.Energy()
}

func (node *Node) send(p *Packet, dest Address) {
	node.counters.Sent++
	node.mac.Enqueue(p, dest)
}

func (node *Node) OnTxOk(p *Packet, dest Address) {
	node.counters.TxOk++
}

func (node *Node) OnTxFailed(p *Packet, dest Address) {
	node.counters.TxFailed++
}

func (node *Node) OnTxDropped(p *Packet, dest Address) {
	node.counters.TxDropped++
}

// OnReceive counts a packet of a flow once; copies received over several radios count as duplicates.
func (node *Node) OnReceive(src Address, payload []byte) {
	hdr, err := decodeFlowHeader(payload)
	if err != nil {
		logger.Warnf("%s: dropping packet from %s: %v", node, src, err)
		return
	}
	if _, ok := node.seen[hdr.Uid]; ok {
		node.counters.Duplicates++
		return
	}
	node.seen[hdr.Uid] = struct{}{}
	node.counters.Received++
	node.counters.BytesReceived += uint64(len(payload))
	delay := node.S.sched.Now() - hdr.CreatedAt
	node.counters.DelaySumUs += delay
	if f := node.S.flows[int(hdr.FlowId)]; f != nil {
		f.delivered(delay)
	}
}
