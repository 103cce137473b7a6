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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/crmac/crmac-ns/logger"
)

type EnergyAnalyser struct {
	now                  func() uint64
	nodes                map[int]*NodeEnergy
	networkHistory       []NetworkConsumption
	energyHistoryByNodes [][]NodeEnergySnapshot
	title                string
}

func (e *EnergyAnalyser) AddNode(nodeID int) *NodeEnergy {
	if node, ok := e.nodes[nodeID]; ok {
		return node
	}
	node := newNode(nodeID, e.now)
	e.nodes[nodeID] = node
	return node
}

func (e *EnergyAnalyser) DeleteNode(nodeID int) {
	delete(e.nodes, nodeID)

	if len(e.nodes) == 0 {
		e.ClearEnergyData()
	}
}

func (e *EnergyAnalyser) GetNode(nodeID int) *NodeEnergy {
	return e.nodes[nodeID]
}

func (e *EnergyAnalyser) GetNetworkEnergyHistory() []NetworkConsumption {
	return e.networkHistory
}

func (e *EnergyAnalyser) GetEnergyHistoryByNodes() [][]NodeEnergySnapshot {
	return e.energyHistoryByNodes
}

func (e *EnergyAnalyser) GetLatestEnergyOfNodes() []NodeEnergySnapshot {
	if len(e.energyHistoryByNodes) == 0 {
		return nil
	}
	return e.energyHistoryByNodes[len(e.energyHistoryByNodes)-1]
}

func (e *EnergyAnalyser) sortedNodeIds() []int {
	ids := make([]int, 0, len(e.nodes))
	for id := range e.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *EnergyAnalyser) StoreNetworkEnergy() {
	nodesEnergySnapshot := make([]NodeEnergySnapshot, 0, len(e.nodes))
	networkSnapshot := NetworkConsumption{
		Timestamp: e.now(),
	}

	netSize := float64(len(e.nodes))
	for _, id := range e.sortedNodeIds() {
		snap := NodeEnergySnapshot{
			NodeId: id,
			Energy: e.nodes[id].Energy(),
		}
		networkSnapshot.Average.add(snap.Energy, 1.0/netSize)
		nodesEnergySnapshot = append(nodesEnergySnapshot, snap)
	}

	e.networkHistory = append(e.networkHistory, networkSnapshot)
	e.energyHistoryByNodes = append(e.energyHistoryByNodes, nodesEnergySnapshot)
}

// SaveEnergyDataToFile writes the per-node and the network energy tables into dir.
func (e *EnergyAnalyser) SaveEnergyDataToFile(dir string, name string) error {
	if name == "" {
		if e.title == "" {
			name = "energy"
		} else {
			name = e.title
		}
	}

	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	path := filepath.Join(dir, name)
	fileNodes, err := os.Create(path + "_nodes.txt")
	if err != nil {
		return errors.Wrap(err, "create energy file")
	}
	defer fileNodes.Close()

	fileNetwork, err := os.Create(path + ".txt")
	if err != nil {
		return errors.Wrap(err, "create energy file")
	}
	defer fileNetwork.Close()

	//Save all nodes' energy data to file
	e.writeEnergyByNodes(fileNodes)

	//Save network energy data to file (timestamp converted to milliseconds)
	e.writeNetworkEnergy(fileNetwork)
	return nil
}

func (e *EnergyAnalyser) writeEnergyByNodes(w io.Writer) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", e.now()/1000)
	fmt.Fprintf(w, "ID\tOff (mJ)\tSleep (mJ)\tIdle (mJ)\tSwitching (mJ)\tTransmitting (mJ)\tReceiving (mJ)\n")

	for _, id := range e.sortedNodeIds() {
		c := e.nodes[id].Energy()
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\t%f\t%f\n", id, c.Off, c.Sleep, c.Idle, c.Switching, c.Tx, c.Rx)
	}
}

func (e *EnergyAnalyser) writeNetworkEnergy(w io.Writer) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", e.now()/1000)
	fmt.Fprintf(w, "Time (ms)\tOff (mJ)\tSleep (mJ)\tIdle (mJ)\tSwitching (mJ)\tTransmitting (mJ)\tReceiving (mJ)\n")
	for _, snapshot := range e.networkHistory {
		c := snapshot.Average
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\t%f\t%f\n", snapshot.Timestamp/1000, c.Off, c.Sleep, c.Idle,
			c.Switching, c.Tx, c.Rx)
	}
}

func (e *EnergyAnalyser) ClearEnergyData() {
	logger.Debugf("Node's energy data cleared")
	e.networkHistory = make([]NetworkConsumption, 0, 3600)
	e.energyHistoryByNodes = make([][]NodeEnergySnapshot, 0, 3600)
}

func (e *EnergyAnalyser) SetTitle(title string) {
	e.title = title
}

// NewEnergyAnalyser creates an analyser; now returns the current simulation time (us).
func NewEnergyAnalyser(now func() uint64) *EnergyAnalyser {
	ea := &EnergyAnalyser{
		now:                  now,
		nodes:                make(map[int]*NodeEnergy),
		networkHistory:       make([]NetworkConsumption, 0, 3600),
		energyHistoryByNodes: make([][]NodeEnergySnapshot, 0, 3600),
	}
	return ea
}
