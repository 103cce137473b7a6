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

package types

import (
	"fmt"
	"math"

	"github.com/crmac/crmac-ns/logger"
)

type NodeId = int
type ChannelId = int

const (
	InvalidNodeId  NodeId    = 0
	InvalidChannel ChannelId = 0
)

// Ever is the virtual timestamp used for "never". All simulation time values are in microseconds.
const Ever uint64 = math.MaxUint64 / 2

// Address is a 48-bit MAC address; the first octet is stored in the most significant byte.
type Address uint64

const (
	InvalidAddress   Address = 0
	BroadcastAddress Address = 0xffffffffffff
	addressMask      Address = 0xffffffffffff
)

// NewAddress creates the unicast address used by node nodeid for the radio of the given group.
func NewAddress(nodeid NodeId, group Group) Address {
	return Address(0x02_00_00_00_00_00|uint64(nodeid)<<8|uint64(group)) & addressMask
}

// IsGroup returns true for broadcast and multicast addresses (I/G bit of the first octet set).
func (a Address) IsGroup() bool {
	return (a>>40)&0x01 != 0
}

func (a Address) IsBroadcast() bool {
	return a == BroadcastAddress
}

// Bytes returns the 6 octets of the address, in transmission order.
func (a Address) Bytes() [6]byte {
	var b [6]byte
	for i := 0; i < 6; i++ {
		b[i] = byte(a >> (40 - 8*i))
	}
	return b
}

// AddressFromBytes is the inverse of Address.Bytes.
func AddressFromBytes(b []byte) Address {
	logger.AssertTrue(len(b) >= 6)
	var a Address
	for i := 0; i < 6; i++ {
		a = a<<8 | Address(b[i])
	}
	return a
}

func (a Address) String() string {
	b := a.Bytes()
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

// Group identifies one of the three logical MAC contexts of a node, each bound to its own radio.
type Group int

const (
	GroupIntra Group = iota
	GroupInter
	GroupProbe
	NumGroups = 3
)

var AllGroups = [NumGroups]Group{GroupIntra, GroupInter, GroupProbe}

func (g Group) String() string {
	switch g {
	case GroupIntra:
		return "intra"
	case GroupInter:
		return "inter"
	case GroupProbe:
		return "probe"
	default:
		logger.Panicf("invalid group: %d", int(g))
		return "invalid"
	}
}

// AccessType is the kind of channel access a group requests from its access manager.
type AccessType int

const (
	AccessNone AccessType = iota
	AccessBulk
	AccessBeacon
	AccessDetection
)

// HasPriorityOver returns true if access type t may pre-empt a pending request of type other.
func (t AccessType) HasPriorityOver(other AccessType) bool {
	return t > other
}

func (t AccessType) String() string {
	switch t {
	case AccessNone:
		return "none"
	case AccessBulk:
		return "bulk"
	case AccessBeacon:
		return "beacon"
	case AccessDetection:
		return "detection"
	default:
		logger.Panicf("invalid access type: %d", int(t))
		return "invalid"
	}
}

// MacLowState is the protocol state of one group's MAC low.
type MacLowState int

const (
	StateSuspend MacLowState = iota
	StateSwitch
	StateTransmission
	StateDetection
)

func (s MacLowState) String() string {
	switch s {
	case StateSuspend:
		return "Suspend"
	case StateSwitch:
		return "Switch"
	case StateTransmission:
		return "Transmission"
	case StateDetection:
		return "Detection"
	default:
		logger.Panicf("invalid MAC low state: %d", int(s))
		return "invalid"
	}
}

type RadioStates byte

const (
	RadioIdle RadioStates = iota
	RadioTx
	RadioRx
	RadioSwitching
	RadioSleep
	RadioOff
)

func (s RadioStates) String() string {
	switch s {
	case RadioIdle:
		return "Idle"
	case RadioTx:
		return "Tx_"
	case RadioRx:
		return "Rx_"
	case RadioSwitching:
		return "Swi"
	case RadioSleep:
		return "Slp"
	case RadioOff:
		return "Off"
	default:
		logger.Panicf("invalid RadioState: %d", s)
		return "invalid"
	}
}

// Packet is an upper-layer payload handed to the MAC for transmission, or delivered upward after reception.
type Packet struct {
	Uid     uint64
	Payload []byte
}

func (p *Packet) Size() int {
	return len(p.Payload)
}

// Copy creates a packet copy sharing the (immutable) payload.
func (p *Packet) Copy() *Packet {
	c := *p
	return &c
}

// NeighborDevice is a peer SU learned from beacons or detection requests.
type NeighborDevice struct {
	Address  Address
	Channel  ChannelId
	LastSeen uint64
}

// Position is the node position in meters.
type Position struct {
	X, Y, Z float64
}

func (p Position) DistanceTo(other Position) float64 {
	dx := other.X - p.X
	dy := other.Y - p.Y
	dz := other.Z - p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
