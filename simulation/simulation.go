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
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/crmac/crmac-ns/energy"
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/metrics"
	"github.com/crmac/crmac-ns/pcap"
	"github.com/crmac/crmac-ns/prng"
	"github.com/crmac/crmac-ns/progctx"
	"github.com/crmac/crmac-ns/radiomodel"
	. "github.com/crmac/crmac-ns/types"
)

// Simulation owns the virtual-time scheduler, the medium and all nodes, primary users and flows. Its
// exported methods are safe for concurrent use; the scheduler itself runs on the caller of Go.
type Simulation struct {
	ctx            *progctx.ProgCtx
	cfg            *Config
	mu             sync.Mutex
	sched          *event.Scheduler
	medium         *radiomodel.Medium
	nodes          map[NodeId]*Node
	flows          map[int]*Flow
	energyAnalyser *energy.EnergyAnalyser
	energyTimer    *event.Timer
	kpiMgr         *KpiManager
	metrics        *metrics.Collector
	capture        pcap.File
	statsLog       *statsLog
	runId          uuid.UUID
	lastPacketUid  uint64
	lastFlowId     int
	stopped        bool
}

func NewSimulation(ctx *progctx.ProgCtx, cfg *Config) (*Simulation, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Channels) == 0 {
		return nil, errors.Errorf("no operating channels configured")
	}
	cfg.finalize()
	prng.Init(cfg.Seed)

	s := &Simulation{
		ctx:    ctx,
		cfg:    cfg,
		sched:  event.NewScheduler(),
		nodes:  map[NodeId]*Node{},
		flows:  map[int]*Flow{},
		kpiMgr: NewKpiManager(),
		runId:  uuid.New(),
	}
	logger.SetLevel(cfg.LogLevel)
	logger.SetTimeSource(s.sched.Now)
	s.medium = radiomodel.NewMedium(s.sched, cfg.Medium)
	s.energyAnalyser = energy.NewEnergyAnalyser(s.sched.Now)
	s.energyAnalyser.SetTitle(fmt.Sprintf("%d_energy", cfg.Id))
	s.sched.Rearm(&s.energyTimer, energy.ComputePeriod, s.storeEnergy)

	if cfg.DumpPackets {
		if err := os.MkdirAll(cfg.OutputDir, 0777); err != nil {
			return nil, errors.Wrapf(err, "create output directory %s", cfg.OutputDir)
		}
		fn := filepath.Join(cfg.OutputDir, fmt.Sprintf("%d_wlan.pcap", cfg.Id))
		f, err := pcap.NewFile(fn, pcap.FrameTypeWlan, true)
		if err != nil {
			return nil, errors.Wrapf(err, "create pcap file %s", fn)
		}
		s.capture = f
		s.medium.SetCapture(f)
	}

	if cfg.SaveStats {
		s.statsLog = newStatsLog(cfg.OutputDir, cfg.Id)
	}

	s.kpiMgr.Init(s)
	s.kpiMgr.Start()
	logger.Infof("simulation %s created: channels %v, multi-channel %v, seed %d", s.runId, cfg.Channels,
		cfg.MultiChannel, cfg.Seed)
	return s, nil
}

func (s *Simulation) storeEnergy() {
	s.energyAnalyser.StoreNetworkEnergy()
	s.sched.Rearm(&s.energyTimer, energy.ComputePeriod, s.storeEnergy)
}

func (s *Simulation) nextPacketUid() uint64 {
	s.lastPacketUid++
	return s.lastPacketUid
}

func (s *Simulation) Config() *Config {
	return s.cfg
}

func (s *Simulation) RunId() string {
	return s.runId.String()
}

func (s *Simulation) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Now()
}

// SetMetrics attaches a metrics collector to the simulation and all its nodes.
func (s *Simulation) SetMetrics(c *metrics.Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = c
	for _, node := range s.nodes {
		node.mac.SetMetrics(c)
	}
}

func (s *Simulation) genNodeId() NodeId {
	nodeid := 1
	for s.nodes[nodeid] != nil {
		nodeid++
	}
	return nodeid
}

// AddNode creates a node and starts its MAC. An ID of InvalidNodeId picks the lowest free id.
func (s *Simulation) AddNode(cfg NodeConfig) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, CommandInterruptedError
	}
	if cfg.ID < InvalidNodeId {
		return nil, errors.Errorf("invalid node id %d", cfg.ID)
	}
	if cfg.ID == InvalidNodeId {
		cfg.ID = s.genNodeId()
	}
	if s.nodes[cfg.ID] != nil {
		return nil, errors.Errorf("node %d already exists", cfg.ID)
	}

	node := newNode(s, cfg)
	s.nodes[cfg.ID] = node
	node.mac.Start()
	logger.Debugf("simulation:AddNode: %+v", cfg)
	return node, nil
}

func (s *Simulation) GetNodes() []NodeId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNodeIds()
}

func (s *Simulation) sortedNodeIds() []NodeId {
	ids := make([]NodeId, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s *Simulation) GetNode(id NodeId) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[id]
}

// NodeInfo is a snapshot of the state of one node.
type NodeInfo struct {
	Id        NodeId       `json:"id" yaml:"id"`
	Position  Position     `json:"position" yaml:"position"`
	Address   string       `json:"address" yaml:"address"`
	Channels  [3]ChannelId `json:"channels" yaml:"channels,flow"`
	States    [3]string    `json:"states" yaml:"states,flow"`
	QueueLen  int          `json:"queue" yaml:"queue"`
	Neighbors []string     `json:"neighbors" yaml:"neighbors,flow"`
	Counters  NodeCounters `json:"counters" yaml:"counters"`
	Energy    float64      `json:"energy_mj" yaml:"energy_mj"`
}

func (s *Simulation) nodeInfo(node *Node) NodeInfo {
	info := NodeInfo{
		Id:       node.Id,
		Position: node.Position(),
		Address:  node.mac.Address().String(),
		QueueLen: node.mac.QueueLen(),
		Counters: node.Counters(),
		Energy:   node.Energy().Total(),
	}
	for _, g := range AllGroups {
		info.Channels[g] = node.mac.Channel(g)
		info.States[g] = node.mac.State(g).String()
	}
	for _, n := range node.mac.Neighbors() {
		info.Neighbors = append(info.Neighbors, fmt.Sprintf("%s@%d", n.Address, n.Channel))
	}
	return info
}

// NodeInfos returns a snapshot of all nodes ordered by id.
func (s *Simulation) NodeInfos() []NodeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]NodeInfo, 0, len(s.nodes))
	for _, id := range s.sortedNodeIds() {
		res = append(res, s.nodeInfo(s.nodes[id]))
	}
	return res
}

func (s *Simulation) NodeInfo(id NodeId) (NodeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.nodes[id]
	if node == nil {
		return NodeInfo{}, errors.Wrapf(noSuchNodeError, "node %d", id)
	}
	return s.nodeInfo(node), nil
}

// AddPrimaryUser starts an ON/OFF primary user on one of the operating channels.
func (s *Simulation) AddPrimaryUser(cfg radiomodel.PrimaryUserConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOperatingChannel(cfg.Channel) {
		return errors.Errorf("channel %d is not an operating channel", cfg.Channel)
	}
	if cfg.OnTime == 0 {
		return errors.Errorf("primary user on-time must be positive")
	}
	if cfg.Id <= 0 {
		cfg.Id = 1
		for s.findPrimaryUser(cfg.Id) != nil {
			cfg.Id++
		}
	}
	if s.findPrimaryUser(cfg.Id) != nil {
		return errors.Errorf("primary user %d already exists", cfg.Id)
	}
	s.medium.AddPrimaryUser(radiomodel.NewPrimaryUser(cfg))
	return nil
}

func (s *Simulation) RemovePrimaryUser(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.medium.RemovePrimaryUser(id) {
		return errors.Errorf("primary user %d does not exist", id)
	}
	return nil
}

func (s *Simulation) PrimaryUsers() []radiomodel.PrimaryUserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]radiomodel.PrimaryUserConfig, 0, len(s.medium.PrimaryUsers()))
	for _, pu := range s.medium.PrimaryUsers() {
		res = append(res, pu.PrimaryUserConfig)
	}
	return res
}

func (s *Simulation) findPrimaryUser(id int) *radiomodel.PrimaryUser {
	for _, pu := range s.medium.PrimaryUsers() {
		if pu.Id == id {
			return pu
		}
	}
	return nil
}

func (s *Simulation) isOperatingChannel(ch ChannelId) bool {
	for _, c := range s.cfg.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// AddFlow starts a constant bit-rate flow and returns its id.
func (s *Simulation) AddFlow(cfg FlowConfig) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	if s.nodes[cfg.Src] == nil {
		return 0, errors.Wrapf(noSuchNodeError, "flow source %d", cfg.Src)
	}
	if cfg.Dst != InvalidNodeId && s.nodes[cfg.Dst] == nil {
		return 0, errors.Wrapf(noSuchNodeError, "flow destination %d", cfg.Dst)
	}
	if cfg.ID <= 0 {
		cfg.ID = s.lastFlowId + 1
	}
	if s.flows[cfg.ID] != nil {
		return 0, errors.Errorf("flow %d already exists", cfg.ID)
	}
	if cfg.ID > s.lastFlowId {
		s.lastFlowId = cfg.ID
	}
	f := &Flow{FlowConfig: cfg, sim: s}
	s.flows[cfg.ID] = f
	f.start()
	return cfg.ID, nil
}

func (s *Simulation) Flows() []FlowConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.flows))
	for id := range s.flows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	res := make([]FlowConfig, 0, len(ids))
	for _, id := range ids {
		res = append(res, s.flows[id].FlowConfig)
	}
	return res
}

// Go advances virtual time by duration us. Time advances in chunks; between two chunks the lock is
// released and the program context is checked, so a cancelled run returns CommandInterruptedError.
func (s *Simulation) Go(duration uint64) error {
	s.mu.Lock()
	end := s.sched.Now() + duration
	s.mu.Unlock()

	for {
		if s.ctx != nil && s.ctx.Err() != nil {
			return CommandInterruptedError
		}
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return CommandInterruptedError
		}
		until := s.sched.Now() + s.cfg.RunChunk
		if until > end {
			until = end
		}
		s.sched.Run(until)
		s.publishMetrics()
		if s.statsLog != nil {
			s.statsLog.sample(s.sched.Now(), s.calcStats())
		}
		done := s.sched.Now() >= end
		s.mu.Unlock()
		if done {
			return nil
		}
	}
}

func (s *Simulation) publishMetrics() {
	if s.metrics == nil {
		return
	}
	for _, node := range s.nodes {
		node.mac.PublishMetrics()
	}
}

// Run executes a batch run of the configured duration and saves the KPIs.
func (s *Simulation) Run() error {
	if err := s.Go(s.cfg.Duration); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kpiMgr.SaveDefaultFile()
}

// Kpi returns the KPIs of the simulation so far.
func (s *Simulation) Kpi() Kpi {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.kpiMgr.Kpi()
}

// SaveKpi writes the KPIs to fn in the format selected by its extension. An empty fn selects the
// default JSON file in the output directory.
func (s *Simulation) SaveKpi(fn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == "" {
		return s.kpiMgr.SaveDefaultFile()
	}
	return s.kpiMgr.SaveFile(fn)
}

func (s *Simulation) MarshalKpi(format KpiFormat) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kpiMgr.Marshal(format)
}

func (s *Simulation) IsStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop stops all flows and nodes, finalizes the KPIs and closes the output files.
func (s *Simulation) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	for _, f := range s.flows {
		f.stop()
	}
	for _, id := range s.sortedNodeIds() {
		s.nodes[id].mac.Stop()
	}
	s.energyTimer.Cancel()
	s.kpiMgr.Stop()

	var result error
	if s.statsLog != nil {
		s.statsLog.stop(s.sched.Now(), s.calcStats())
	}
	if s.cfg.SaveEnergy {
		if err := s.energyAnalyser.SaveEnergyDataToFile(s.cfg.OutputDir, ""); err != nil {
			result = err
		}
	}
	if s.capture != nil {
		s.medium.SetCapture(nil)
		if err := s.capture.Close(); err != nil && result == nil {
			result = errors.Wrap(err, "close pcap file")
		}
		s.capture = nil
	}
	logger.Infof("simulation %s stopped", s.runId)
	return result
}
