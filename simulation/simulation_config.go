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
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/mac"
	"github.com/crmac/crmac-ns/radiomodel"
	"github.com/crmac/crmac-ns/spectrum"
	. "github.com/crmac/crmac-ns/types"
)

const (
	DefaultSeed      = 1
	DefaultRunChunk  = 10_000 // us of virtual time run between two checks of the program context
	DefaultOutputDir = "tmp"
)

type Config struct {
	Id           int
	Seed         int64
	MultiChannel bool
	Channels     []ChannelId
	// Duration is the virtual time (us) a batch run lasts.
	Duration    uint64
	RunChunk    uint64
	OutputDir   string
	DumpPackets bool
	SaveEnergy  bool
	SaveStats   bool
	LogLevel    logger.Level
	Medium      radiomodel.MediumConfig
	Mac         mac.Config
	Spectrum    spectrum.Config
}

func DefaultConfig() *Config {
	cfg := &Config{
		Id:           0,
		Seed:         DefaultSeed,
		MultiChannel: true,
		Channels:     []ChannelId{1, 2, 3, 4},
		Duration:     10_000_000,
		RunChunk:     DefaultRunChunk,
		OutputDir:    DefaultOutputDir,
		LogLevel:     logger.WarnLevel,
		Medium:       radiomodel.DefaultMediumConfig(),
		Mac:          mac.DefaultConfig(),
		Spectrum:     spectrum.DefaultConfig(),
	}
	return cfg
}

// finalize propagates the network-wide channel plan into the per-component configs.
func (cfg *Config) finalize() {
	if cfg.RunChunk == 0 {
		cfg.RunChunk = DefaultRunChunk
	}
	cfg.Mac.MacLow.MultiChannel = cfg.MultiChannel
	cfg.Mac.MacLow.Channels = append([]ChannelId(nil), cfg.Channels...)
	cfg.Spectrum.Channels = append([]ChannelId(nil), cfg.Channels...)
}
