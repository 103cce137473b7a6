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

package spectrum

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/crmac/crmac-ns/types"
)

func TestOccupancyAverage(t *testing.T) {
	r := NewOccupancyRepository(DefaultConfig())
	r.ReportDetection(2, true, 10)
	assert.InDelta(t, 0.3, r.Occupancy(2), 1e-9)
	r.ReportDetection(2, true, 20)
	assert.InDelta(t, 0.51, r.Occupancy(2), 1e-9)
	r.ReportDetection(2, false, 30)
	assert.InDelta(t, 0.357, r.Occupancy(2), 1e-9)
	r.ReportDetection(9, true, 40)

	st := r.Stats()[2]
	assert.Equal(t, 3, st.NumDetections)
	assert.Equal(t, 2, st.NumPuPresent)
	assert.Equal(t, uint64(30), st.LastReport)
	assert.Equal(t, 1.0, r.Occupancy(9))
}

func TestRecommendedChannel(t *testing.T) {
	r := NewOccupancyRepository(DefaultConfig())
	pos := Position{}

	// all free, no neighbors: stay
	assert.Equal(t, 3, r.GetRecommendedChannel(3, pos, nil))

	neighbors := []NeighborDevice{
		{Address: 1, Channel: 1}, {Address: 2, Channel: 1}, {Address: 3, Channel: 3},
		{Address: 4, Channel: 4},
	}
	// channel 2 has no neighbors
	assert.Equal(t, 2, r.GetRecommendedChannel(1, pos, neighbors))
	assert.Equal(t, 2, r.GetRecommendedChannel(3, pos, neighbors))

	// channel 2 occupied by a PU: 3 and 4 tie, the current one wins, else the lowest
	r.ReportDetection(2, true, 1)
	r.ReportDetection(2, true, 2)
	assert.Equal(t, 4, r.GetRecommendedChannel(4, pos, neighbors))
	assert.Equal(t, 3, r.GetRecommendedChannel(1, pos, neighbors))

	// everything occupied: least occupied
	for _, ch := range []ChannelId{1, 3, 4} {
		for i := 0; i < 3; i++ {
			r.ReportDetection(ch, true, 3)
		}
	}
	r.ReportDetection(2, true, 4)
	assert.Equal(t, 4, r.GetRecommendedChannel(4, pos, neighbors))
	assert.Equal(t, 2, r.GetRecommendedChannel(2, pos, neighbors))

	// channel 1 frees up a little: least occupied wins over the current channel
	r.ReportDetection(1, false, 5)
	assert.Less(t, r.Occupancy(1), r.Occupancy(2))
	assert.Equal(t, 1, r.GetRecommendedChannel(2, pos, neighbors))
}
