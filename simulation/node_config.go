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
	"github.com/pkg/errors"

	. "github.com/crmac/crmac-ns/types"
)

type NodeConfig struct {
	ID       NodeId
	Position Position
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{}
}

// FlowConfig describes a constant bit-rate packet source. Dst InvalidNodeId sends to the broadcast address.
type FlowConfig struct {
	ID       int
	Src      NodeId
	Dst      NodeId
	Interval uint64 // us
	Size     int    // payload bytes
	Start    uint64 // us after the flow is added
	// Count limits the number of packets, 0 for unlimited.
	Count int
}

func (fc *FlowConfig) validate() error {
	if fc.Src == InvalidNodeId {
		return errors.Errorf("flow source missing")
	}
	if fc.Src == fc.Dst {
		return errors.Errorf("flow source and destination are both node %d", fc.Src)
	}
	if fc.Interval == 0 {
		return errors.Errorf("flow interval must be positive")
	}
	if fc.Size < flowHeaderSize {
		return errors.Errorf("flow packet size %d below minimum %d", fc.Size, flowHeaderSize)
	}
	return nil
}
