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

package energy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/crmac/crmac-ns/types"
)

func TestRadioEnergy(t *testing.T) {
	var now uint64
	ea := NewEnergyAnalyser(func() uint64 { return now })
	node := ea.AddNode(1)
	assert.Same(t, node, ea.AddNode(1))
	r := node.Radio(GroupIntra)

	now = 100
	r.NotifyTxStart(50, 10)
	now = 200 // tx ended at 150 without notification
	r.NotifyRxStart(20)
	now = 220
	r.NotifyRxEndOk()
	r.NotifySwitchingStart(100)
	now = 400
	r.NotifySleep()
	now = 500
	r.NotifyWakeup()
	r.NotifyOff()
	now = 600

	st := r.Status()
	assert.Equal(t, uint64(50), st.SpentTx)
	assert.Equal(t, uint64(20), st.SpentRx)
	assert.Equal(t, uint64(100), st.SpentSwitching)
	assert.Equal(t, uint64(100+50+80), st.SpentIdle)
	assert.Equal(t, uint64(100), st.SpentSleep)
	assert.Equal(t, uint64(100), st.SpentOff)
	assert.InDelta(t, 50*RadioTxConsumption+20*RadioRxConsumption+100*RadioSwitchingConsumption+
		230*RadioIdleConsumption+100*RadioSleepConsumption, st.Energy().Total(), 1e-12)
}

func TestEnergyAnalyser(t *testing.T) {
	var now uint64
	ea := NewEnergyAnalyser(func() uint64 { return now })
	ea.AddNode(1)
	ea.AddNode(2)
	assert.Nil(t, ea.GetLatestEnergyOfNodes())

	now = ComputePeriod
	ea.StoreNetworkEnergy()
	latest := ea.GetLatestEnergyOfNodes()
	require.Len(t, latest, 2)
	assert.Equal(t, 1, latest[0].NodeId)
	// three idle radios per node
	assert.InDelta(t, 3*float64(ComputePeriod)*RadioIdleConsumption, latest[0].Energy.Idle, 1e-9)
	assert.InDelta(t, latest[0].Energy.Idle, ea.GetNetworkEnergyHistory()[0].Average.Idle, 1e-9)

	dir := t.TempDir()
	require.NoError(t, ea.SaveEnergyDataToFile(dir, ""))
	_, err := os.Stat(filepath.Join(dir, "energy_nodes.txt"))
	assert.NoError(t, err)

	ea.DeleteNode(1)
	ea.DeleteNode(2)
	assert.Empty(t, ea.GetNetworkEnergyHistory())
}
