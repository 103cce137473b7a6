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

// Package spectrum keeps the local view of channel occupancy by primary users and recommends the channel
// a node's intra-group should operate on.
package spectrum

import (
	"sort"

	"github.com/crmac/crmac-ns/logger"
	. "github.com/crmac/crmac-ns/types"
)

// Repository is the spectrum oracle consulted by the MAC.
type Repository interface {
	// GetRecommendedChannel returns the channel to operate on, given the current one, the node position and
	// the known neighbors.
	GetRecommendedChannel(current ChannelId, pos Position, neighbors []NeighborDevice) ChannelId
	// ReportDetection records the outcome of one signal-detection period on ch.
	ReportDetection(ch ChannelId, puPresent bool, at uint64)
}

type Config struct {
	Channels []ChannelId
	// Alpha is the weight of a new sensing result in the exponential occupancy average.
	Alpha float64
	// OccupancyThreshold is the occupancy estimate at or above which a channel is avoided.
	OccupancyThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Channels:           []ChannelId{1, 2, 3, 4},
		Alpha:              0.3,
		OccupancyThreshold: 0.5,
	}
}

type ChannelStats struct {
	Occupancy     float64 `json:"occupancy" yaml:"occupancy"`
	NumDetections int     `json:"detections" yaml:"detections"`
	NumPuPresent  int     `json:"pu-present" yaml:"pu-present"`
	LastReport    uint64  `json:"last-report" yaml:"last-report"`
}

// OccupancyRepository is the default Repository: an exponential average of sensing results per channel.
type OccupancyRepository struct {
	cfg      Config
	channels map[ChannelId]*ChannelStats
}

func NewOccupancyRepository(cfg Config) *OccupancyRepository {
	logger.AssertTrue(len(cfg.Channels) > 0)
	logger.AssertTrue(cfg.Alpha > 0 && cfg.Alpha <= 1)
	r := &OccupancyRepository{
		cfg:      cfg,
		channels: map[ChannelId]*ChannelStats{},
	}
	for _, ch := range cfg.Channels {
		r.channels[ch] = &ChannelStats{}
	}
	return r
}

func (r *OccupancyRepository) ReportDetection(ch ChannelId, puPresent bool, at uint64) {
	cs := r.channels[ch]
	if cs == nil {
		logger.Warnf("detection report for unknown channel %d", ch)
		return
	}
	sample := 0.0
	if puPresent {
		sample = 1.0
		cs.NumPuPresent++
	}
	cs.NumDetections++
	cs.Occupancy = (1-r.cfg.Alpha)*cs.Occupancy + r.cfg.Alpha*sample
	cs.LastReport = at
}

// Occupancy returns the current occupancy estimate of ch, in [0, 1].
func (r *OccupancyRepository) Occupancy(ch ChannelId) float64 {
	if cs := r.channels[ch]; cs != nil {
		return cs.Occupancy
	}
	return 1.0
}

func (r *OccupancyRepository) Stats() map[ChannelId]ChannelStats {
	res := make(map[ChannelId]ChannelStats, len(r.channels))
	for ch, cs := range r.channels {
		res[ch] = *cs
	}
	return res
}

// GetRecommendedChannel avoids channels occupied by primary users and balances load across the remaining
// ones: among channels below the occupancy threshold the one with the fewest neighbors wins. Ties favor the
// current channel, then the lowest channel number. If every channel is occupied, the least occupied wins.
func (r *OccupancyRepository) GetRecommendedChannel(current ChannelId, pos Position, neighbors []NeighborDevice) ChannelId {
	load := map[ChannelId]int{}
	for _, n := range neighbors {
		load[n.Channel]++
	}

	chans := append([]ChannelId(nil), r.cfg.Channels...)
	sort.Ints(chans)

	best := InvalidChannel
	better := func(ch ChannelId, key func(ChannelId) float64) bool {
		if best == InvalidChannel {
			return true
		}
		kc, kb := key(ch), key(best)
		if kc != kb {
			return kc < kb
		}
		return ch == current && best != current
	}

	byLoad := func(ch ChannelId) float64 { return float64(load[ch]) }
	for _, ch := range chans {
		if r.Occupancy(ch) >= r.cfg.OccupancyThreshold {
			continue
		}
		if better(ch, byLoad) {
			best = ch
		}
	}
	if best != InvalidChannel {
		return best
	}

	for _, ch := range chans {
		if better(ch, r.Occupancy) {
			best = ch
		}
	}
	return best
}
