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

// Package txqueue implements the outbound packet queue shared by the intra and inter groups, and the
// bulk-access coordinator: batching of bulk requests, burst buffers, per-burst delivery records and
// their reconciliation with the received bitmap.
package txqueue

import (
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/frame"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/station"
	. "github.com/crmac/crmac-ns/types"
)

// MaxBulkPackets is the number of packets one bitmap acknowledges.
const MaxBulkPackets = 64

type Config struct {
	MaxSize  int    // queue capacity in packets
	MaxDelay uint64 // maximum queueing delay (us), 0 for none
	// BulkCap is the maximum number of packets aggregated by one scan of the queue.
	BulkCap int
	// MaxBulkDuration bounds the burst duration requested for one destination (us).
	MaxBulkDuration uint64
}

func DefaultConfig() Config {
	return Config{
		MaxSize:         1000,
		MaxDelay:        500_000,
		BulkCap:         MaxBulkPackets,
		MaxBulkDuration: frame.MaxDuration,
	}
}

// Host is the MAC that owns the coordinator.
type Host interface {
	GroupChannel(g Group) ChannelId
	// OperatingChannels returns the channels group-addressed packets are sent on.
	OperatingChannels() []ChannelId
	NeighborChannel(addr Address) (ChannelId, bool)
	TriggerBulkAccess(g Group)
	TxOk(p *Packet, dest Address)
	TxFailed(p *Packet, dest Address)
	TxDropped(p *Packet, dest Address)
}

// BurstObserver is optionally implemented by the Host to learn how many packets each bulk ack confirmed.
type BurstObserver interface {
	BurstAcked(g Group, packets int)
}

// Batch is the set of queued packets for one destination found by a queue scan.
type Batch struct {
	Dest       Address
	Items      []*Item
	Sizes      []int
	TxDuration uint64
}

type sentRecord struct {
	item *Item
	seq  uint16
}

// BulkAccessInfo is the state of one reservation, on the initiator or the responder side.
type BulkAccessInfo struct {
	Active   bool
	Peer     Address
	Duration uint64
	Count    int
	StartSeq frame.SequenceControl
	Bitmap   uint64
	Received int

	buffer []*Item
	sent   []sentRecord
}

func (b *BulkAccessInfo) clear() {
	*b = BulkAccessInfo{}
}

type Stats struct {
	NumEnqueued       uint64
	NumDropped        uint64
	NumTxOk           uint64
	NumTxFailed       uint64
	NumMissedResponse uint64
	NumMissedAck      uint64
	NumRxDelivered    uint64
}

// Coordinator owns the queue and the bulk-access records of the intra and inter groups of one node.
type Coordinator struct {
	cfg     Config
	sched   *event.Scheduler
	nodeId  NodeId
	phys    [NumGroups]phy.Phy
	station station.Manager
	host    Host
	log     *logger.MacLogger

	queue     *Queue
	sequences map[Address]uint16
	initiator [NumGroups]BulkAccessInfo
	responder [NumGroups]BulkAccessInfo
	rx        *reassembler

	stats Stats
}

func NewCoordinator(sched *event.Scheduler, cfg Config, nodeid NodeId, phys [NumGroups]phy.Phy,
	st station.Manager, host Host, log *logger.MacLogger) *Coordinator {
	if cfg.BulkCap <= 0 || cfg.BulkCap > MaxBulkPackets {
		cfg.BulkCap = MaxBulkPackets
	}
	if cfg.MaxBulkDuration == 0 || cfg.MaxBulkDuration > frame.MaxDuration {
		cfg.MaxBulkDuration = frame.MaxDuration
	}
	return &Coordinator{
		cfg:       cfg,
		sched:     sched,
		nodeId:    nodeid,
		phys:      phys,
		station:   st,
		host:      host,
		log:       log,
		queue:     NewQueue(cfg.MaxSize, cfg.MaxDelay),
		sequences: map[Address]uint16{},
		rx:        newReassembler(),
	}
}

func (c *Coordinator) Stats() Stats {
	return c.stats
}

func (c *Coordinator) QueueLen() int {
	return c.queue.Len()
}

func (c *Coordinator) address(g Group) Address {
	return NewAddress(c.nodeId, g)
}

// Queue enqueues one copy of the packet per target channel: every operating channel for a group
// address; the neighbor's channel, else the intra channel, for a unicast address. Groups that got new
// work are triggered.
func (c *Coordinator) Queue(p *Packet, dest Address) {
	intraCh := c.host.GroupChannel(GroupIntra)
	var targets []ChannelId
	if dest.IsGroup() {
		targets = c.host.OperatingChannels()
	} else if ch, ok := c.host.NeighborChannel(dest); ok {
		targets = []ChannelId{ch}
	} else {
		targets = []ChannelId{intraCh}
	}

	now := c.sched.Now()
	var triggerIntra, triggerInter bool
	for i, ch := range targets {
		pkt := p
		if i > 0 {
			pkt = p.Copy()
		}
		it := &Item{
			Packet:     pkt,
			Dest:       dest,
			Channel:    ch,
			EnqueuedAt: now,
		}
		if !c.queue.Enqueue(it) {
			c.log.Debugf("queue full, dropping %s", it)
			c.drop(it)
			continue
		}
		c.stats.NumEnqueued++
		if ch == intraCh {
			triggerIntra = true
		} else {
			triggerInter = true
		}
	}
	if triggerIntra {
		c.host.TriggerBulkAccess(GroupIntra)
	}
	if triggerInter {
		c.host.TriggerBulkAccess(GroupInter)
	}
}

func (c *Coordinator) drop(it *Item) {
	c.stats.NumDropped++
	c.host.TxDropped(it.Packet, it.Dest)
}

func (c *Coordinator) removeExpired() {
	for _, it := range c.queue.RemoveExpired(c.sched.Now()) {
		c.log.Debugf("queueing delay exceeded, dropping %s", it)
		c.drop(it)
	}
}

// HasPendingWork returns true if the queue holds items for the group's current channel.
func (c *Coordinator) HasPendingWork(g Group) bool {
	c.removeExpired()
	ch := c.host.GroupChannel(g)
	found := false
	c.queue.Each(func(it *Item) bool {
		found = it.Channel == ch
		return !found
	})
	return found
}

// NeededChannel returns the channel of the oldest item that the intra group cannot serve on its current
// channel. This is the channel the inter group has to visit next.
func (c *Coordinator) NeededChannel() (ChannelId, bool) {
	c.removeExpired()
	intraCh := c.host.GroupChannel(GroupIntra)
	ch, found := InvalidChannel, false
	c.queue.Each(func(it *Item) bool {
		if it.Channel != intraCh {
			ch, found = it.Channel, true
		}
		return !found
	})
	return ch, found
}

// AirTime returns the air time (us) of all fragments of an item, sent back to back.
func (c *Coordinator) AirTime(g Group, it *Item) uint64 {
	size := it.Packet.Size()
	mode := c.station.DataTxMode(it.Dest)
	var d uint64
	for i := 0; i < c.station.NumberOfFragments(size); i++ {
		d += c.phys[g].TxDuration(frame.Size(frame.KindData, c.station.FragmentSize(size, i)), mode)
	}
	return d
}

func (c *Coordinator) airSize(it *Item) int {
	size := it.Packet.Size()
	total := 0
	for i := 0; i < c.station.NumberOfFragments(size); i++ {
		total += frame.Size(frame.KindData, c.station.FragmentSize(size, i))
	}
	return total
}

// GetBulkAccessRequestsInQueue scans the items on the group's current channel, up to the bulk cap, and
// aggregates them per destination in order of first appearance.
func (c *Coordinator) GetBulkAccessRequestsInQueue(g Group) []*Batch {
	c.removeExpired()
	ch := c.host.GroupChannel(g)
	var batches []*Batch
	byDest := map[Address]*Batch{}
	n := 0
	c.queue.Each(func(it *Item) bool {
		if it.Channel != ch {
			return true
		}
		b := byDest[it.Dest]
		if b == nil {
			b = &Batch{Dest: it.Dest}
			byDest[it.Dest] = b
			batches = append(batches, b)
		}
		at := c.AirTime(g, it)
		if len(b.Items) >= MaxBulkPackets || (len(b.Items) > 0 && b.TxDuration+at > c.cfg.MaxBulkDuration) {
			return true
		}
		b.Items = append(b.Items, it)
		b.Sizes = append(b.Sizes, c.airSize(it))
		b.TxDuration += at
		n++
		return n < c.cfg.BulkCap
	})
	for _, b := range batches {
		if b.TxDuration > c.cfg.MaxBulkDuration {
			b.TxDuration = c.cfg.MaxBulkDuration
		}
	}
	return batches
}

// PeekNextSequence returns the sequence number the next packet to dest will get.
func (c *Coordinator) PeekNextSequence(dest Address) frame.SequenceControl {
	return frame.NewSequenceControl(c.sequences[dest], 0)
}

func (c *Coordinator) nextSequence(dest Address) uint16 {
	seq := c.sequences[dest]
	c.sequences[dest] = (seq + 1) % frame.SequenceModulo
	return seq
}

// SetAccessBuffer moves the queued items for peer on the group's channel into the group's burst buffer,
// as long as their air time fits into the budget. The first item that does not fit stays at its place
// in the queue, and so does everything after it. It returns the number of buffered items.
func (c *Coordinator) SetAccessBuffer(g Group, peer Address, budget uint64) int {
	info := &c.initiator[g]
	c.requeue(info.buffer)
	info.clear()
	info.Active = true
	info.Peer = peer
	info.Duration = budget
	info.StartSeq = c.PeekNextSequence(peer)

	ch := c.host.GroupChannel(g)
	remaining := budget
	var take []*Item
	c.queue.Each(func(it *Item) bool {
		if it.Channel != ch || it.Dest != peer {
			return true
		}
		at := c.AirTime(g, it)
		if at > remaining || len(take) >= MaxBulkPackets {
			return false
		}
		remaining -= at
		take = append(take, it)
		return true
	})
	for _, it := range take {
		c.queue.Remove(it)
	}
	info.buffer = take
	info.Count = len(take)
	c.log.Debugf("buffered %d packets for %s, budget %d us", len(take), peer, budget)
	return len(take)
}

func (c *Coordinator) requeue(items []*Item) {
	for _, it := range items {
		it.frag = 0
	}
	c.queue.PushFront(items)
}

// requeueUnsent puts back the buffered items whose transmission has not started. A partly sent item is
// already in the sent records and gets reported with them.
func (c *Coordinator) requeueUnsent(items []*Item) {
	var unsent []*Item
	for _, it := range items {
		if it.frag == 0 {
			unsent = append(unsent, it)
		}
	}
	c.queue.PushFront(unsent)
}

func (c *Coordinator) hasBufferedData(g Group) bool {
	return len(c.initiator[g].buffer) > 0
}

// NotifyAccessGranted pops the next fragment from the group's burst buffer and builds its data frame.
// A packet gets its sequence number with its first fragment. It returns false if the buffer is empty.
func (c *Coordinator) NotifyAccessGranted(g Group) (*frame.Frame, phy.TxMode, bool) {
	info := &c.initiator[g]
	if len(info.buffer) == 0 {
		return nil, phy.TxMode{}, false
	}
	it := info.buffer[0]
	if it.frag == 0 {
		it.seq = c.nextSequence(it.Dest)
		info.sent = append(info.sent, sentRecord{item: it, seq: it.seq})
	}
	size := it.Packet.Size()
	off := c.station.FragmentOffset(size, it.frag)
	payload := it.Packet.Payload[off : off+c.station.FragmentSize(size, it.frag)]
	last := c.station.IsLastFragment(size, it.frag)

	f := frame.NewData(it.Dest, c.address(g), c.address(GroupIntra),
		frame.NewSequenceControl(it.seq, uint8(it.frag)), payload)
	f.FrameControl = f.FrameControl.WithMoreFragments(!last)
	if last {
		info.buffer[0] = nil
		info.buffer = info.buffer[1:]
	} else {
		it.frag++
	}
	return f, c.station.DataTxMode(it.Dest), true
}

// GotBulkAck reconciles the packets sent in the burst with the bitmap: bit i acknowledges sequence
// start+i. Acknowledged packets are reported ok, all others failed. The reservation is then cleared.
func (c *Coordinator) GotBulkAck(g Group, start frame.SequenceControl, bitmap uint64) {
	info := &c.initiator[g]
	acked := 0
	for _, rec := range info.sent {
		pos := frame.SequenceDistance(start.Sequence(), rec.seq)
		if pos < MaxBulkPackets && bitmap&(uint64(1)<<pos) != 0 {
			c.txOk(rec.item)
			acked++
		} else {
			c.txFailed(rec.item)
		}
	}
	if o, ok := c.host.(BurstObserver); ok {
		o.BurstAcked(g, acked)
	}
	c.requeueUnsent(info.buffer)
	info.clear()
}

// GroupBurstDone reports the packets of a completed group-addressed burst as sent.
func (c *Coordinator) GroupBurstDone(g Group) {
	info := &c.initiator[g]
	for _, rec := range info.sent {
		c.txOk(rec.item)
	}
	c.requeueUnsent(info.buffer)
	info.clear()
}

// MissedBulkResponse clears the reservation of the group. Nothing was transmitted, so no packet is
// reported; buffered items go back to the queue.
func (c *Coordinator) MissedBulkResponse(g Group) {
	c.stats.NumMissedResponse++
	info := &c.initiator[g]
	c.requeue(info.buffer)
	info.clear()
}

// MissedBulkAck reports every packet of the burst as failed and clears the reservation.
func (c *Coordinator) MissedBulkAck(g Group) {
	c.stats.NumMissedAck++
	info := &c.initiator[g]
	for _, rec := range info.sent {
		c.txFailed(rec.item)
	}
	for _, it := range info.buffer {
		if it.frag == 0 {
			c.txFailed(it)
		}
	}
	info.clear()
}

func (c *Coordinator) txOk(it *Item) {
	c.stats.NumTxOk++
	c.station.ReportDataOk(it.Dest)
	c.host.TxOk(it.Packet, it.Dest)
}

func (c *Coordinator) txFailed(it *Item) {
	c.stats.NumTxFailed++
	c.station.ReportFinalDataFailed(it.Dest)
	c.host.TxFailed(it.Packet, it.Dest)
}

// StartResponse opens the responder-side record of a reservation granted to peer.
func (c *Coordinator) StartResponse(g Group, peer Address, duration uint64, start frame.SequenceControl, count int) {
	info := &c.responder[g]
	info.clear()
	info.Active = true
	info.Peer = peer
	info.Duration = duration
	info.StartSeq = start
	info.Count = count
	c.rx.discard(peer)
}

// Responder returns a copy of the group's responder-side reservation.
func (c *Coordinator) Responder(g Group) BulkAccessInfo {
	return c.responder[g]
}

// ReceiveData processes a received data frame. It returns the reassembled payload when the frame
// completes a packet. Inside an active reservation from the frame's sender, the completed packet's
// bit is set in the delivery bitmap.
func (c *Coordinator) ReceiveData(g Group, f *frame.Frame) ([]byte, bool) {
	payload, complete := c.rx.add(f)
	if !complete {
		return nil, false
	}
	info := &c.responder[g]
	if info.Active && info.Peer == f.Addr2 {
		pos := frame.SequenceDistance(info.StartSeq.Sequence(), f.SeqCtrl.Sequence())
		if pos < MaxBulkPackets && info.Bitmap&(uint64(1)<<pos) == 0 {
			info.Bitmap |= uint64(1) << pos
			info.Received++
		}
	}
	c.stats.NumRxDelivered++
	return payload, true
}

// EndResponse closes the responder-side record and returns it.
func (c *Coordinator) EndResponse(g Group) BulkAccessInfo {
	info := c.responder[g]
	c.responder[g].clear()
	return info
}
