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
	"github.com/crmac/crmac-ns/phy"
	. "github.com/crmac/crmac-ns/types"
)

// RadioNode is the status of a single SU radio attached to the medium.
type RadioNode struct {
	Id    NodeId
	Group Group
	Phy   *phy.SimPhy

	stats RadioNodeStats
}

type RadioNodeStats struct {
	NumFramesTx  int
	NumBytesTx   int
	NumFramesRx  int
	NumCorrupted int
}

func newRadioNode(p *phy.SimPhy) *RadioNode {
	return &RadioNode{
		Id:    p.Node,
		Group: p.Group,
		Phy:   p,
	}
}

func (rn *RadioNode) Channel() ChannelId {
	return rn.Phy.ChannelNumber()
}

func (rn *RadioNode) Position() Position {
	return rn.Phy.Position()
}

// GetDistanceTo gets the distance to another RadioNode (in meters).
func (rn *RadioNode) GetDistanceTo(other *RadioNode) float64 {
	return rn.Position().DistanceTo(other.Position())
}

func (rn *RadioNode) Stats() RadioNodeStats {
	return rn.stats
}
