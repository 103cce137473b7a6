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

package phy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/prng"
	"github.com/crmac/crmac-ns/types"
)

type fakeMedium struct {
	sent     [][]byte
	puActive uint64
}

func (m *fakeMedium) Transmit(src *SimPhy, data []byte, duration uint64) {
	m.sent = append(m.sent, data)
}

func (m *fakeMedium) PrimaryUserActivity(ch types.ChannelId, pos types.Position) uint64 {
	return m.puActive
}

type recorder struct {
	events []string
	rxOk   [][]byte
	rxErr  int
}

func (r *recorder) NotifyRxStart(d uint64) { r.events = append(r.events, fmt.Sprintf("rxstart:%d", d)) }
func (r *recorder) NotifyRxEndOk() { r.events = append(r.events, "rxok") }
func (r *recorder) NotifyRxEndError() { r.events = append(r.events, "rxerr") }
func (r *recorder) NotifyTxStart(d uint64, _ float64) { r.events = append(r.events, fmt.Sprintf("tx:%d", d)) }
func (r *recorder) NotifyMaybeCcaBusyStart(d uint64) { r.events = append(r.events, fmt.Sprintf("cca:%d", d)) }
func (r *recorder) NotifySwitchingStart(d uint64) { r.events = append(r.events, fmt.Sprintf("switch:%d", d)) }
func (r *recorder) NotifySleep() { r.events = append(r.events, "sleep") }
func (r *recorder) NotifyOff() { r.events = append(r.events, "off") }
func (r *recorder) NotifyWakeup() { r.events = append(r.events, "wakeup") }
func (r *recorder) NotifyOn() { r.events = append(r.events, "on") }
func (r *recorder) ReceiveOk(data []byte) { r.rxOk = append(r.rxOk, data) }
func (r *recorder) ReceiveError() { r.rxErr++ }

func newTestPhy() (*event.Scheduler, *fakeMedium, *SimPhy, *recorder) {
	prng.Init(1)
	s := event.NewScheduler()
	m := &fakeMedium{}
	p := NewSimPhy(s, m, 1, types.GroupIntra, types.Position{}, DefaultParams())
	p.SetChannelNumber(1)
	r := &recorder{}
	p.RegisterListener(r)
	p.SetReceiver(r)
	return s, m, p, r
}

func TestTxDuration(t *testing.T) {
	_, _, p, _ := newTestPhy()
	assert.Equal(t, uint64(3+9), p.TxDuration(29, ControlMode)) // 232 bit at 27.5 Mbit/s
	assert.Equal(t, uint64(3+8), p.TxDuration(1500, DefaultDataMode))
	assert.Equal(t, uint64(3), p.TxDuration(0, ControlMode))
}

func TestSendAndReceive(t *testing.T) {
	s, m, p, r := newTestPhy()
	assert.Equal(t, types.ChannelId(1), p.ChannelNumber())
	p.Send([]byte{1, 2, 3}, ControlMode)
	assert.True(t, p.IsStateTx())
	assert.Len(t, m.sent, 1)
	s.Run(event.Ever)
	assert.True(t, p.IsStateIdle())

	p.StartReceive([]byte{4}, 10, false)
	assert.True(t, p.IsStateRx())
	s.Run(event.Ever)
	assert.Equal(t, [][]byte{{4}}, r.rxOk)

	p.StartReceive([]byte{5}, 10, false)
	s.RunFor(5)
	p.StartReceive([]byte{6}, 10, false)
	s.Run(event.Ever)
	assert.Equal(t, 1, r.rxErr)
	assert.Equal(t, []string{"tx:4", "rxstart:10", "rxok", "rxstart:10", "cca:5", "rxerr"}, r.events)
}

func TestSwitchingAndPowerStates(t *testing.T) {
	s, m, p, r := newTestPhy()
	p.StartReceive([]byte{1}, 50, false)
	p.SetChannelNumber(2)
	assert.Equal(t, types.RadioSwitching, p.State())
	m.puActive = 30
	s.Run(event.Ever)
	assert.True(t, p.IsStateIdle())
	assert.Empty(t, r.rxOk)
	assert.Equal(t, []string{"rxstart:50", "switch:100", "cca:30"}, r.events)

	r.events = nil
	p.SetSleepMode()
	p.StartReceive([]byte{1}, 50, false)
	p.SetChannelNumber(3)
	assert.Equal(t, types.ChannelId(3), p.ChannelNumber())
	p.ResumeFromSleep()
	p.SetOffMode()
	assert.True(t, p.IsStateOff())
	p.ResumeFromOff()
	assert.Equal(t, []string{"sleep", "wakeup", "off", "on"}, r.events)
}

func TestSignalDetection(t *testing.T) {
	_, m, p, _ := newTestPhy()
	assert.False(t, p.ResetSignalDetection())

	p.SetSignalDetectionMode(DetectionFast)
	assert.True(t, p.IsDetecting())
	p.SignalInterference(10, false)
	assert.False(t, p.ResetSignalDetection())

	p.SetSignalDetectionMode(DetectionFine)
	p.SignalInterference(10, true)
	assert.True(t, p.ResetSignalDetection())
	assert.False(t, p.IsDetecting())

	m.puActive = 100
	p.SetSignalDetectionMode(DetectionFine)
	assert.True(t, p.ResetSignalDetection())
}
