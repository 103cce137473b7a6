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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/pcap"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/prng"
	. "github.com/crmac/crmac-ns/types"
)

type rxCounter struct {
	ok, err int
}

func (r *rxCounter) ReceiveOk([]byte) { r.ok++ }
func (r *rxCounter) ReceiveError()    { r.err++ }

func newTestRadio(s *event.Scheduler, m *Medium, id NodeId, x float64) (*phy.SimPhy, *rxCounter) {
	p := phy.NewSimPhy(s, m, id, GroupIntra, Position{X: x}, phy.DefaultParams())
	p.SetChannelNumber(1)
	rc := &rxCounter{}
	p.SetReceiver(rc)
	m.AddRadio(p)
	return p, rc
}

func TestPathloss(t *testing.T) {
	params := DefaultPathlossParams()
	assert.Equal(t, 68.08, params.FixedLossDb)
	assert.InDelta(t, -77.06, computeRssi(50, 10, &params), 0.01)
	assert.Equal(t, 25.0, computeRssi(0, 10, &params))
}

func TestMediumDelivery(t *testing.T) {
	prng.Init(1)
	s := event.NewScheduler()
	m := NewMedium(s, DefaultMediumConfig())
	a, _ := newTestRadio(s, m, 1, 0)
	_, rb := newTestRadio(s, m, 2, 10)
	_, rc := newTestRadio(s, m, 3, 200)

	a.Send(make([]byte, 30), phy.ControlMode)
	s.Run(event.Ever)
	assert.Equal(t, 1, rb.ok)
	assert.Equal(t, 0, rc.ok+rc.err)
	assert.Equal(t, 1, m.Stats().NumFrames)
	assert.Equal(t, 1, m.Stats().NumDeliveries)
}

func TestMediumCollision(t *testing.T) {
	prng.Init(1)
	s := event.NewScheduler()
	m := NewMedium(s, DefaultMediumConfig())
	a, _ := newTestRadio(s, m, 1, 0)
	b, _ := newTestRadio(s, m, 2, 40)
	_, rc := newTestRadio(s, m, 3, 20)

	a.Send(make([]byte, 30), phy.ControlMode)
	s.RunFor(2)
	// b is receiving the frame of a; sending aborts that reception
	b.Send(make([]byte, 30), phy.ControlMode)
	s.Run(event.Ever)
	assert.Equal(t, 0, rc.ok)
	assert.Equal(t, 1, rc.err)
}

func TestPrimaryUser(t *testing.T) {
	prng.Init(1)
	s := event.NewScheduler()
	m := NewMedium(s, DefaultMediumConfig())
	a, _ := newTestRadio(s, m, 1, 0)
	_, rb := newTestRadio(s, m, 2, 10)
	pu := NewPrimaryUser(PrimaryUserConfig{Id: 1, Channel: 1, Range: 100, OnTime: 1000, OffTime: 1000, StartOffset: 100})
	m.AddPrimaryUser(pu)

	s.RunFor(50)
	assert.False(t, pu.IsOn())
	assert.Equal(t, uint64(0), m.PrimaryUserActivity(1, Position{}))
	s.RunFor(100)
	assert.True(t, pu.IsOn())
	assert.True(t, m.IsChannelOccupied(1))
	assert.False(t, m.IsChannelOccupied(2))
	assert.Equal(t, uint64(950), m.PrimaryUserActivity(1, Position{}))
	assert.Equal(t, uint64(0), m.PrimaryUserActivity(2, Position{}))
	assert.Equal(t, uint64(0), m.PrimaryUserActivity(1, Position{X: 500}))

	a.Send(make([]byte, 30), phy.ControlMode)
	s.RunFor(100)
	assert.Equal(t, 0, rb.ok)
	assert.Equal(t, 1, rb.err)

	s.RunFor(1000)
	assert.False(t, pu.IsOn())
	s.RunFor(1000)
	assert.True(t, pu.IsOn())
	assert.Equal(t, 2, pu.NumActivations())

	assert.True(t, m.RemovePrimaryUser(1))
	assert.False(t, m.RemovePrimaryUser(1))
	assert.Equal(t, 0, s.Pending())
}

func TestMediumCapture(t *testing.T) {
	prng.Init(1)
	s := event.NewScheduler()
	m := NewMedium(s, DefaultMediumConfig())
	a, _ := newTestRadio(s, m, 1, 0)
	f, err := pcap.NewFile(filepath.Join(t.TempDir(), "m.pcap"), pcap.FrameTypeWlan, false)
	require.NoError(t, err)
	defer f.Close()
	m.SetCapture(f)
	a.Send(make([]byte, 30), phy.ControlMode)
	s.Run(event.Ever)
	assert.Equal(t, 1, m.Radios()[0].Stats().NumFramesTx)
	assert.Equal(t, 30, m.Radios()[0].Stats().NumBytesTx)
}
