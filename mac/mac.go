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

// Package mac composes the cognitive-radio MAC of one node: a shared transmit queue and bulk-access
// coordinator, and one channel access manager and MAC low per group radio.
package mac

import (
	"sort"

	"github.com/crmac/crmac-ns/access"
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/maclow"
	"github.com/crmac/crmac-ns/metrics"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/spectrum"
	"github.com/crmac/crmac-ns/station"
	"github.com/crmac/crmac-ns/txqueue"
	. "github.com/crmac/crmac-ns/types"
)

type Config struct {
	MacLow  maclow.Config
	Queue   txqueue.Config
	Station station.Config
	// NeighborLifetime is the number of beacon intervals a neighbor stays known without being heard.
	NeighborLifetime uint64
}

func DefaultConfig() Config {
	return Config{
		MacLow:           maclow.DefaultConfig(),
		Queue:            txqueue.DefaultConfig(),
		Station:          station.DefaultConfig(),
		NeighborLifetime: 5,
	}
}

// UpperLayer gets the outcome of every enqueued packet and every packet received for the node.
type UpperLayer interface {
	OnTxOk(p *Packet, dest Address)
	OnTxFailed(p *Packet, dest Address)
	OnTxDropped(p *Packet, dest Address)
	OnReceive(src Address, payload []byte)
}

// Radio is the front-end of one group radio as seen by the MAC.
type Radio interface {
	phy.Phy
	Position() Position
	SetDetectionReporter(r phy.DetectionReporter)
}

type GroupCounters struct {
	Channel ChannelId    `json:"channel" yaml:"channel"`
	State   string       `json:"state" yaml:"state"`
	Mac     maclow.Stats `json:"mac" yaml:"mac"`
	Access  access.Stats `json:"access" yaml:"access"`
}

type Counters struct {
	Queue     txqueue.Stats `json:"queue" yaml:"queue"`
	QueueLen  int           `json:"queue-len" yaml:"queue-len"`
	Neighbors int           `json:"neighbors" yaml:"neighbors"`
	Intra     GroupCounters `json:"intra" yaml:"intra"`
	Inter     GroupCounters `json:"inter" yaml:"inter"`
	Probe     GroupCounters `json:"probe" yaml:"probe"`
}

type queueContext struct{}

func (queueContext) String() string {
	return "queue"
}

// CrMac is the MAC of one secondary-user node.
type CrMac struct {
	cfg     Config
	sched   *event.Scheduler
	nodeId  NodeId
	radios  [NumGroups]Radio
	coord   *txqueue.Coordinator
	access  [NumGroups]*access.Manager
	lows    [NumGroups]*maclow.MacLow
	repo    spectrum.Repository
	station station.Manager
	upper   UpperLayer
	metrics *metrics.Collector
	log     *logger.MacLogger

	neighbors map[Address]*NeighborDevice
	published [NumGroups]maclow.Stats
	started   bool
}

// New builds the MAC of node nodeid on the given group radios. A nil station manager selects the
// constant-rate manager of cfg.Station.
func New(sched *event.Scheduler, cfg Config, nodeid NodeId, radios [NumGroups]Radio, repo spectrum.Repository,
	st station.Manager, upper UpperLayer) *CrMac {
	logger.AssertNotNil(repo)
	logger.AssertNotNil(upper)
	if st == nil {
		st = station.NewConstantRateManager(cfg.Station)
	}

	m := &CrMac{
		cfg:       cfg,
		sched:     sched,
		nodeId:    nodeid,
		radios:    radios,
		repo:      repo,
		station:   st,
		upper:     upper,
		log:       logger.GetMacLogger(nodeid, queueContext{}),
		neighbors: map[Address]*NeighborDevice{},
	}

	var phys [NumGroups]phy.Phy
	for _, g := range AllGroups {
		phys[g] = radios[g]
		radios[g].SetDetectionReporter(m)
	}
	m.coord = txqueue.NewCoordinator(sched, cfg.Queue, nodeid, phys, st, m, m.log)
	for _, g := range AllGroups {
		log := logger.GetMacLogger(nodeid, g)
		m.lows[g] = maclow.New(sched, cfg.MacLow, nodeid, g, radios[g], m.coord, m, log)
		m.access[g] = access.NewManager(sched, radios[g], m.lows[g], m, log)
		m.lows[g].SetAccessManager(m.access[g])
	}
	return m
}

// SetMetrics attaches a metrics collector; nil disables metrics.
func (m *CrMac) SetMetrics(c *metrics.Collector) {
	m.metrics = c
}

func (m *CrMac) NodeId() NodeId {
	return m.nodeId
}

func (m *CrMac) Address() Address {
	return NewAddress(m.nodeId, GroupIntra)
}

func (m *CrMac) Position() Position {
	return m.radios[GroupIntra].Position()
}

// Start starts the three groups. The inter and probe groups only operate in multi-channel mode.
func (m *CrMac) Start() {
	if m.started {
		return
	}
	m.started = true
	for _, l := range m.lows {
		l.Start()
	}
}

func (m *CrMac) Stop() {
	if !m.started {
		return
	}
	m.started = false
	for _, l := range m.lows {
		l.Stop()
	}
}

func (m *CrMac) IsStarted() bool {
	return m.started
}

// Enqueue hands a packet to the MAC. Its outcome is reported through the UpperLayer.
func (m *CrMac) Enqueue(p *Packet, dest Address) {
	logger.AssertNotNil(p)
	m.coord.Queue(p, dest)
	m.metrics.SetQueueDepth(m.nodeId, m.coord.QueueLen())
}

func (m *CrMac) QueueLen() int {
	return m.coord.QueueLen()
}

func (m *CrMac) State(g Group) MacLowState {
	return m.lows[g].State()
}

func (m *CrMac) Channel(g Group) ChannelId {
	return m.lows[g].Channel()
}

func (m *CrMac) Counters() Counters {
	group := func(g Group) GroupCounters {
		return GroupCounters{
			Channel: m.lows[g].Channel(),
			State:   m.lows[g].State().String(),
			Mac:     m.lows[g].Stats(),
			Access:  m.access[g].Stats(),
		}
	}
	return Counters{
		Queue:     m.coord.Stats(),
		QueueLen:  m.coord.QueueLen(),
		Neighbors: len(m.Neighbors()),
		Intra:     group(GroupIntra),
		Inter:     group(GroupInter),
		Probe:     group(GroupProbe),
	}
}

// PublishMetrics exports the protocol events counted since the previous call.
func (m *CrMac) PublishMetrics() {
	if m.metrics == nil {
		return
	}
	for _, g := range AllGroups {
		cur, prev := m.lows[g].Stats(), m.published[g]
		name := g.String()
		m.metrics.AddMacEvents(m.nodeId, name, "beacon", int(cur.NumBeacons-prev.NumBeacons))
		m.metrics.AddMacEvents(m.nodeId, name, "detection", int(cur.NumDetections-prev.NumDetections))
		m.metrics.AddMacEvents(m.nodeId, name, "pu-detected", int(cur.NumPuDetected-prev.NumPuDetected))
		m.metrics.AddMacEvents(m.nodeId, name, "response-timeout", int(cur.NumResponseTimeouts-prev.NumResponseTimeouts))
		m.metrics.AddMacEvents(m.nodeId, name, "ack-timeout", int(cur.NumAckTimeouts-prev.NumAckTimeouts))
		m.published[g] = cur
	}
	m.metrics.SetQueueDepth(m.nodeId, m.coord.QueueLen())
}

func (m *CrMac) isOwn(addr Address) bool {
	for _, g := range AllGroups {
		if addr == NewAddress(m.nodeId, g) {
			return true
		}
	}
	return false
}

func (m *CrMac) neighborLifetime() uint64 {
	return m.cfg.NeighborLifetime * m.cfg.MacLow.BeaconInterval
}

func (m *CrMac) pruneNeighbors() {
	now := m.sched.Now()
	lifetime := m.neighborLifetime()
	for addr, n := range m.neighbors {
		if now-n.LastSeen > lifetime {
			m.log.Debugf("neighbor %s expired", addr)
			delete(m.neighbors, addr)
		}
	}
}

// Neighbors returns the known neighbors ordered by address.
func (m *CrMac) Neighbors() []NeighborDevice {
	m.pruneNeighbors()
	res := make([]NeighborDevice, 0, len(m.neighbors))
	for _, n := range m.neighbors {
		res = append(res, *n)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Address < res[j].Address
	})
	return res
}

func (m *CrMac) NeighborCountOnChannel(ch ChannelId) int {
	m.pruneNeighbors()
	cnt := 0
	for _, n := range m.neighbors {
		if n.Channel == ch {
			cnt++
		}
	}
	return cnt
}

func (m *CrMac) RefreshNeighbor(addr Address, ch ChannelId) {
	if m.isOwn(addr) || addr.IsGroup() {
		return
	}
	n := m.neighbors[addr]
	if n == nil {
		n = &NeighborDevice{Address: addr}
		m.neighbors[addr] = n
		m.log.Debugf("new neighbor %s on channel %d", addr, ch)
	}
	n.Channel = ch
	n.LastSeen = m.sched.Now()
}

func (m *CrMac) NeighborChannel(addr Address) (ChannelId, bool) {
	m.pruneNeighbors()
	if n := m.neighbors[addr]; n != nil {
		return n.Channel, true
	}
	return InvalidChannel, false
}

func (m *CrMac) GroupChannel(g Group) ChannelId {
	return m.radios[g].ChannelNumber()
}

func (m *CrMac) OperatingChannels() []ChannelId {
	if m.cfg.MacLow.MultiChannel {
		return m.cfg.MacLow.Channels
	}
	return m.cfg.MacLow.Channels[:1]
}

func (m *CrMac) RecommendedChannel(current ChannelId) ChannelId {
	ch := m.repo.GetRecommendedChannel(current, m.Position(), m.Neighbors())
	if ch == InvalidChannel {
		if current != InvalidChannel {
			return current
		}
		return m.cfg.MacLow.Channels[0]
	}
	return ch
}

func (m *CrMac) ReportDetection(ch ChannelId, puPresent bool, at uint64) {
	m.repo.ReportDetection(ch, puPresent, at)
}

func (m *CrMac) TriggerBulkAccess(g Group) {
	m.lows[g].TriggerBulkAccess()
}

func (m *CrMac) ChannelSwitched(g Group, ch ChannelId) {
	m.log.Debugf("%s radio on channel %d", g, ch)
	m.metrics.IncChannelSwitch(m.nodeId, g.String())
}

func (m *CrMac) Deliver(g Group, src Address, payload []byte) {
	m.metrics.IncRxDelivered(m.nodeId)
	m.upper.OnReceive(src, payload)
}

func (m *CrMac) TxOk(p *Packet, dest Address) {
	m.metrics.IncTxOk(m.nodeId)
	m.upper.OnTxOk(p, dest)
}

func (m *CrMac) TxFailed(p *Packet, dest Address) {
	m.metrics.IncTxFailed(m.nodeId)
	m.upper.OnTxFailed(p, dest)
}

func (m *CrMac) TxDropped(p *Packet, dest Address) {
	m.metrics.IncTxDropped(m.nodeId)
	m.upper.OnTxDropped(p, dest)
}

func (m *CrMac) BurstAcked(g Group, packets int) {
	m.metrics.ObserveBurst(packets)
}
