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

package station

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crmac/crmac-ns/phy"
	. "github.com/crmac/crmac-ns/types"
)

func TestFragmentation(t *testing.T) {
	m := NewConstantRateManager(Config{FragmentationThreshold: 128, DataMode: phy.DefaultDataMode})
	assert.Equal(t, 128, m.FragmentationThreshold())

	assert.False(t, m.NeedFragmentation(100))
	assert.Equal(t, 1, m.NumberOfFragments(100))
	assert.Equal(t, 100, m.FragmentSize(100, 0))
	assert.Equal(t, 0, m.FragmentOffset(100, 0))
	assert.True(t, m.IsLastFragment(100, 0))

	// 100 bytes of payload per fragment
	assert.True(t, m.NeedFragmentation(250))
	assert.Equal(t, 3, m.NumberOfFragments(250))
	assert.Equal(t, 100, m.FragmentSize(250, 0))
	assert.Equal(t, 100, m.FragmentSize(250, 1))
	assert.Equal(t, 50, m.FragmentSize(250, 2))
	assert.Equal(t, 200, m.FragmentOffset(250, 2))
	assert.False(t, m.IsLastFragment(250, 1))
	assert.True(t, m.IsLastFragment(250, 2))
}

func TestDeliveryAccounting(t *testing.T) {
	m := NewConstantRateManager(DefaultConfig())
	peer := NewAddress(2, GroupIntra)
	m.ReportFinalDataFailed(peer)
	m.ReportFinalDataFailed(peer)
	assert.Equal(t, Stats{NumFailed: 2, ConsecutiveFailures: 2}, m.Stats(peer))
	m.ReportDataOk(peer)
	assert.Equal(t, Stats{NumOk: 1, NumFailed: 2}, m.Stats(peer))
	assert.Equal(t, Stats{}, m.Stats(NewAddress(3, GroupIntra)))
	assert.Equal(t, phy.DefaultDataMode, m.DataTxMode(peer))
}
