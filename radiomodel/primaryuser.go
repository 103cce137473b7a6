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

package radiomodel

import (
	"fmt"

	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/logger"
	. "github.com/crmac/crmac-ns/types"
)

// PrimaryUserConfig describes an incumbent transmitter that periodically occupies one channel.
type PrimaryUserConfig struct {
	Id          int      `yaml:"id"`
	Channel     int      `yaml:"channel"`
	Position    Position `yaml:"position"`
	Range       float64  `yaml:"range"`
	OnTime      uint64   `yaml:"on-time"`
	OffTime     uint64   `yaml:"off-time"`
	StartOffset uint64   `yaml:"start"`
}

// PrimaryUser alternates between ON (transmitting for OnTime us) and OFF (silent for OffTime us).
type PrimaryUser struct {
	PrimaryUserConfig

	on      bool
	onUntil uint64
	timer   *event.Timer
	numOn   int
}

func NewPrimaryUser(cfg PrimaryUserConfig) *PrimaryUser {
	return &PrimaryUser{
		PrimaryUserConfig: cfg,
	}
}

func (pu *PrimaryUser) String() string {
	return fmt.Sprintf("PU%d(ch=%d)", pu.Id, pu.Channel)
}

func (pu *PrimaryUser) IsOn() bool {
	return pu.on
}

// NumActivations returns how often the PU switched on.
func (pu *PrimaryUser) NumActivations() int {
	return pu.numOn
}

// Covers returns true if a radio at pos hears the PU.
func (pu *PrimaryUser) Covers(pos Position) bool {
	return pu.Position.DistanceTo(pos) <= pu.Range
}

func (pu *PrimaryUser) start(m *Medium) {
	if pu.OnTime == 0 {
		return
	}
	m.sched.Rearm(&pu.timer, pu.StartOffset, func() { pu.turnOn(m) })
}

func (pu *PrimaryUser) stop() {
	pu.timer.Cancel()
	pu.on = false
}

func (pu *PrimaryUser) turnOn(m *Medium) {
	pu.on = true
	pu.numOn++
	pu.onUntil = m.sched.Now() + pu.OnTime
	logger.Debugf("%s on for %d us", pu, pu.OnTime)
	m.primaryUserOn(pu)
	m.sched.Rearm(&pu.timer, pu.OnTime, func() { pu.turnOff(m) })
}

func (pu *PrimaryUser) turnOff(m *Medium) {
	pu.on = false
	logger.Debugf("%s off", pu)
	m.sched.Rearm(&pu.timer, pu.OffTime, func() { pu.turnOn(m) })
}
