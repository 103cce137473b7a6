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

// Package station implements the remote station manager: fragmentation policy, data rate selection and
// per-peer delivery accounting.
package station

import (
	"github.com/crmac/crmac-ns/frame"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/phy"
	. "github.com/crmac/crmac-ns/types"
)

// Manager is the remote station manager consulted by the MAC for every data frame.
type Manager interface {
	FragmentationThreshold() int
	NeedFragmentation(payloadSize int) bool
	NumberOfFragments(payloadSize int) int
	FragmentSize(payloadSize int, frag int) int
	FragmentOffset(payloadSize int, frag int) int
	IsLastFragment(payloadSize int, frag int) bool
	ReportDataOk(peer Address)
	ReportFinalDataFailed(peer Address)
	DataTxMode(peer Address) phy.TxMode
}

type Config struct {
	// FragmentationThreshold is the largest data frame (header, payload and FCS) sent unfragmented.
	FragmentationThreshold int
	DataMode               phy.TxMode
}

func DefaultConfig() Config {
	return Config{
		FragmentationThreshold: 2346,
		DataMode:               phy.DefaultDataMode,
	}
}

type Stats struct {
	NumOk               int `json:"ok" yaml:"ok"`
	NumFailed           int `json:"failed" yaml:"failed"`
	ConsecutiveFailures int `json:"consecutive-failures" yaml:"consecutive-failures"`
}

// ConstantRateManager uses one data mode for every peer and keeps delivery counters per peer.
type ConstantRateManager struct {
	cfg   Config
	stats map[Address]*Stats
}

const frameOverhead = frame.HeaderSize + frame.FcsSize

func NewConstantRateManager(cfg Config) *ConstantRateManager {
	logger.AssertTrue(cfg.FragmentationThreshold > frameOverhead, "fragmentation threshold too small: %d",
		cfg.FragmentationThreshold)
	return &ConstantRateManager{
		cfg:   cfg,
		stats: map[Address]*Stats{},
	}
}

func (m *ConstantRateManager) FragmentationThreshold() int {
	return m.cfg.FragmentationThreshold
}

func (m *ConstantRateManager) maxFragmentPayload() int {
	return m.cfg.FragmentationThreshold - frameOverhead
}

func (m *ConstantRateManager) NeedFragmentation(payloadSize int) bool {
	return payloadSize+frameOverhead > m.cfg.FragmentationThreshold
}

func (m *ConstantRateManager) NumberOfFragments(payloadSize int) int {
	if !m.NeedFragmentation(payloadSize) {
		return 1
	}
	fp := m.maxFragmentPayload()
	return (payloadSize + fp - 1) / fp
}

func (m *ConstantRateManager) FragmentSize(payloadSize int, frag int) int {
	if !m.NeedFragmentation(payloadSize) {
		return payloadSize
	}
	fp := m.maxFragmentPayload()
	left := payloadSize - frag*fp
	if left > fp {
		return fp
	}
	if left < 0 {
		return 0
	}
	return left
}

func (m *ConstantRateManager) FragmentOffset(payloadSize int, frag int) int {
	if !m.NeedFragmentation(payloadSize) {
		return 0
	}
	return frag * m.maxFragmentPayload()
}

func (m *ConstantRateManager) IsLastFragment(payloadSize int, frag int) bool {
	return frag >= m.NumberOfFragments(payloadSize)-1
}

func (m *ConstantRateManager) getStats(peer Address) *Stats {
	st := m.stats[peer]
	if st == nil {
		st = &Stats{}
		m.stats[peer] = st
	}
	return st
}

func (m *ConstantRateManager) ReportDataOk(peer Address) {
	st := m.getStats(peer)
	st.NumOk++
	st.ConsecutiveFailures = 0
}

func (m *ConstantRateManager) ReportFinalDataFailed(peer Address) {
	st := m.getStats(peer)
	st.NumFailed++
	st.ConsecutiveFailures++
}

func (m *ConstantRateManager) DataTxMode(peer Address) phy.TxMode {
	return m.cfg.DataMode
}

// Stats returns a copy of the counters of peer.
func (m *ConstantRateManager) Stats(peer Address) Stats {
	if st := m.stats[peer]; st != nil {
		return *st
	}
	return Stats{}
}
