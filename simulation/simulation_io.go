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
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/radiomodel"
	. "github.com/crmac/crmac-ns/types"
)

type YamlNetworkConfig struct {
	Channels     []ChannelId `yaml:"channels,flow,omitempty"`
	MultiChannel *bool       `yaml:"multi-channel,omitempty"`
	Seed         *int64      `yaml:"seed,omitempty"`
	DurationSec  *float64    `yaml:"duration,omitempty"`
	RadioRange   *float64    `yaml:"radio-range,omitempty"`
	Position     [3]float64  `yaml:"pos-shift,flow"`
	BaseId       *int        `yaml:"base-id,omitempty"`
}

type YamlNodeConfig struct {
	ID       int        `yaml:"id"`
	Position [3]float64 `yaml:"pos,flow"`
}

type YamlPrimaryUserConfig struct {
	ID       int        `yaml:"id"`
	Channel  ChannelId  `yaml:"channel"`
	Position [3]float64 `yaml:"pos,flow"`
	Range    float64    `yaml:"range"`
	OnUs     uint64     `yaml:"on"`
	OffUs    uint64     `yaml:"off"`
	StartUs  uint64     `yaml:"start,omitempty"`
}

type YamlFlowConfig struct {
	Src        NodeId `yaml:"src"`
	Dst        NodeId `yaml:"dst,omitempty"`
	IntervalUs uint64 `yaml:"interval"`
	Size       int    `yaml:"size"`
	StartUs    uint64 `yaml:"start,omitempty"`
	Count      int    `yaml:"count,omitempty"`
}

// YamlConfigFile is a scenario: the network settings, the nodes, the primary users and the traffic.
type YamlConfigFile struct {
	NetworkConfig YamlNetworkConfig       `yaml:"network"`
	NodesList     []YamlNodeConfig        `yaml:"nodes"`
	PrimaryUsers  []YamlPrimaryUserConfig `yaml:"primary-users,omitempty"`
	Flows         []YamlFlowConfig        `yaml:"flows,omitempty"`
}

func ParseScenario(data []byte) (*YamlConfigFile, error) {
	cfgFile := &YamlConfigFile{}
	if err := yaml.Unmarshal(data, cfgFile); err != nil {
		return nil, errors.Wrap(err, "parse scenario")
	}
	return cfgFile, nil
}

func LoadScenario(fn string) (*YamlConfigFile, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", fn)
	}
	cfgFile, err := ParseScenario(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", fn)
	}
	return cfgFile, nil
}

func toPosition(p [3]float64, offset [3]float64) Position {
	return Position{X: p[0] + offset[0], Y: p[1] + offset[1], Z: p[2] + offset[2]}
}

// ApplyNetwork copies the network settings of a scenario into cfg; it must be used before the
// simulation is created.
func (y *YamlNetworkConfig) ApplyNetwork(cfg *Config) {
	if len(y.Channels) > 0 {
		cfg.Channels = append([]ChannelId(nil), y.Channels...)
	}
	if y.MultiChannel != nil {
		cfg.MultiChannel = *y.MultiChannel
	}
	if y.Seed != nil {
		cfg.Seed = *y.Seed
	}
	if y.DurationSec != nil {
		cfg.Duration = uint64(*y.DurationSec * 1e6)
	}
	if y.RadioRange != nil {
		cfg.Medium.RadioRange = *y.RadioRange
	}
}

// ImportScenario adds the nodes, primary users and flows of a scenario. Items that fail are logged and
// skipped; an error reports that not all of them could be added.
func (s *Simulation) ImportScenario(cfgFile *YamlConfigFile) error {
	allOk := true
	nw := cfgFile.NetworkConfig
	nodeIdOffset := 0
	if nw.BaseId != nil {
		nodeIdOffset = *nw.BaseId
	}

	for _, node := range cfgFile.NodesList {
		cfg := DefaultNodeConfig()
		cfg.ID = node.ID + nodeIdOffset
		cfg.Position = toPosition(node.Position, nw.Position)
		if _, err := s.AddNode(cfg); err != nil {
			logger.Warnf("Warn: %s", err)
			allOk = false
		}
	}

	for _, pu := range cfgFile.PrimaryUsers {
		err := s.AddPrimaryUser(radiomodel.PrimaryUserConfig{
			Id:          pu.ID,
			Channel:     pu.Channel,
			Position:    toPosition(pu.Position, nw.Position),
			Range:       pu.Range,
			OnTime:      pu.OnUs,
			OffTime:     pu.OffUs,
			StartOffset: pu.StartUs,
		})
		if err != nil {
			logger.Warnf("Warn: %s", err)
			allOk = false
		}
	}

	for _, flow := range cfgFile.Flows {
		dst := flow.Dst
		if dst != InvalidNodeId {
			dst += nodeIdOffset
		}
		_, err := s.AddFlow(FlowConfig{
			Src:      flow.Src + nodeIdOffset,
			Dst:      dst,
			Interval: flow.IntervalUs,
			Size:     flow.Size,
			Start:    flow.StartUs,
			Count:    flow.Count,
		})
		if err != nil {
			logger.Warnf("Warn: %s", err)
			allOk = false
		}
	}

	if !allOk {
		return errors.Errorf("not all scenario items could be imported - see error log above")
	}
	return nil
}

// ExportScenario describes the current simulation as a scenario.
func (s *Simulation) ExportScenario() YamlConfigFile {
	multi := s.cfg.MultiChannel
	seed := s.cfg.Seed
	rr := s.cfg.Medium.RadioRange
	res := YamlConfigFile{
		NetworkConfig: YamlNetworkConfig{
			Channels:     s.cfg.Channels,
			MultiChannel: &multi,
			Seed:         &seed,
			RadioRange:   &rr,
		},
	}
	for _, info := range s.NodeInfos() {
		p := info.Position
		res.NodesList = append(res.NodesList, YamlNodeConfig{ID: info.Id, Position: [3]float64{p.X, p.Y, p.Z}})
	}
	for _, pu := range s.PrimaryUsers() {
		p := pu.Position
		res.PrimaryUsers = append(res.PrimaryUsers, YamlPrimaryUserConfig{
			ID:       pu.Id,
			Channel:  pu.Channel,
			Position: [3]float64{p.X, p.Y, p.Z},
			Range:    pu.Range,
			OnUs:     pu.OnTime,
			OffUs:    pu.OffTime,
			StartUs:  pu.StartOffset,
		})
	}
	for _, f := range s.Flows() {
		res.Flows = append(res.Flows, YamlFlowConfig{
			Src:        f.Src,
			Dst:        f.Dst,
			IntervalUs: f.Interval,
			Size:       f.Size,
			StartUs:    f.Start,
			Count:      f.Count,
		})
	}
	return res
}
