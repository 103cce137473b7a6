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

package maclow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmac/crmac-ns/access"
	"github.com/crmac/crmac-ns/event"
	"github.com/crmac/crmac-ns/frame"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/phy"
	"github.com/crmac/crmac-ns/prng"
	"github.com/crmac/crmac-ns/radiomodel"
	"github.com/crmac/crmac-ns/station"
	"github.com/crmac/crmac-ns/txqueue"
	. "github.com/crmac/crmac-ns/types"
)

type groupContext struct {
	g Group
}

func (c groupContext) String() string {
	return c.g.String()
}

// testNode wires the three groups of one node the way the MAC does.
type testNode struct {
	id          NodeId
	cfg         Config
	phys        [NumGroups]*phy.SimPhy
	lows        [NumGroups]*MacLow
	coord       *txqueue.Coordinator
	neighbors   map[Address]ChannelId
	recommended ChannelId

	ok, failed, dropped []uint64
	delivered           [][]byte
}

func newTestNode(s *event.Scheduler, m *radiomodel.Medium, id NodeId, x float64, cfg Config) *testNode {
	n := &testNode{
		id:          id,
		cfg:         cfg,
		neighbors:   map[Address]ChannelId{},
		recommended: InvalidChannel,
	}
	var phys [NumGroups]phy.Phy
	for _, g := range AllGroups {
		n.phys[g] = phy.NewSimPhy(s, m, id, g, Position{X: x}, phy.DefaultParams())
		m.AddRadio(n.phys[g])
		phys[g] = n.phys[g]
	}
	n.coord = txqueue.NewCoordinator(s, txqueue.DefaultConfig(), id, phys,
		station.NewConstantRateManager(station.DefaultConfig()), n, logger.GetMacLogger(id, groupContext{GroupIntra}))
	for _, g := range AllGroups {
		log := logger.GetMacLogger(id, groupContext{g})
		n.lows[g] = New(s, cfg, id, g, n.phys[g], n.coord, n, log)
		n.lows[g].SetAccessManager(access.NewManager(s, n.phys[g], n.lows[g], n, log))
	}
	return n
}

func (n *testNode) start() {
	for _, l := range n.lows {
		l.Start()
	}
}

func (n *testNode) addr() Address {
	return NewAddress(n.id, GroupIntra)
}

func (n *testNode) GroupChannel(g Group) ChannelId {
	return n.phys[g].ChannelNumber()
}

func (n *testNode) OperatingChannels() []ChannelId {
	if n.cfg.MultiChannel {
		return n.cfg.Channels
	}
	return n.cfg.Channels[:1]
}

func (n *testNode) NeighborChannel(addr Address) (ChannelId, bool) {
	ch, ok := n.neighbors[addr]
	return ch, ok
}

func (n *testNode) NeighborCountOnChannel(ch ChannelId) int {
	cnt := 0
	for _, c := range n.neighbors {
		if c == ch {
			cnt++
		}
	}
	return cnt
}

func (n *testNode) TriggerBulkAccess(g Group) {
	n.lows[g].TriggerBulkAccess()
}

func (n *testNode) TxOk(p *Packet, dest Address) { n.ok = append(n.ok, p.Uid) }
func (n *testNode) TxFailed(p *Packet, dest Address) { n.failed = append(n.failed, p.Uid) }
func (n *testNode) TxDropped(p *Packet, dest Address) { n.dropped = append(n.dropped, p.Uid) }

func (n *testNode) RecommendedChannel(current ChannelId) ChannelId {
	if n.recommended != InvalidChannel {
		return n.recommended
	}
	if current == InvalidChannel {
		return n.cfg.Channels[0]
	}
	return current
}

func (n *testNode) RefreshNeighbor(addr Address, ch ChannelId) {
	n.neighbors[addr] = ch
}

func (n *testNode) Deliver(g Group, src Address, payload []byte) {
	n.delivered = append(n.delivered, payload)
}

func (n *testNode) ChannelSwitched(g Group, ch ChannelId) {}

// sniffer is a passive radio recording the frames it receives.
type sniffer struct {
	s      *event.Scheduler
	frames []*frame.Frame
	at     []uint64
}

func (r *sniffer) ReceiveOk(data []byte) {
	f, err := frame.Decode(data)
	if err != nil {
		return
	}
	r.frames = append(r.frames, f)
	r.at = append(r.at, r.s.Now())
}

func (r *sniffer) ReceiveError() {}

func (r *sniffer) kinds() []frame.Kind {
	var res []frame.Kind
	for _, f := range r.frames {
		res = append(res, f.Kind())
	}
	return res
}

func newSniffer(s *event.Scheduler, m *radiomodel.Medium, ch ChannelId) *sniffer {
	p := phy.NewSimPhy(s, m, 99, GroupIntra, Position{Y: 5}, phy.DefaultParams())
	p.SetChannelNumber(ch)
	r := &sniffer{s: s}
	p.SetReceiver(r)
	m.AddRadio(p)
	return r
}

// txHook calls fn on every transmission start of a radio.
type txHook struct {
	fn func(duration uint64)
}

func (h *txHook) NotifyRxStart(uint64) {}
func (h *txHook) NotifyRxEndOk() {}
func (h *txHook) NotifyRxEndError() {}
func (h *txHook) NotifyTxStart(d uint64, pwr float64) { h.fn(d) }
func (h *txHook) NotifyMaybeCcaBusyStart(uint64) {}
func (h *txHook) NotifySwitchingStart(uint64) {}
func (h *txHook) NotifySleep() {}
func (h *txHook) NotifyOff() {}
func (h *txHook) NotifyWakeup() {}
func (h *txHook) NotifyOn() {}

func singleChannelConfig() Config {
	cfg := DefaultConfig()
	cfg.MultiChannel = false
	cfg.Channels = []ChannelId{1}
	return cfg
}

func newTestNetwork(seed int64) (*event.Scheduler, *radiomodel.Medium) {
	prng.Init(seed)
	s := event.NewScheduler()
	return s, radiomodel.NewMedium(s, radiomodel.DefaultMediumConfig())
}

func payloadOf(i int, size int) []byte {
	b := make([]byte, size)
	for j := range b {
		b[j] = byte(i + j)
	}
	return b
}

func TestSingleChannelStates(t *testing.T) {
	s, m := newTestNetwork(1)
	cfg := singleChannelConfig()
	cfg.Channels = []ChannelId{3}
	n := newTestNode(s, m, 1, 0, cfg)
	n.start()

	assert.Equal(t, StateTransmission, n.lows[GroupIntra].State())
	assert.Equal(t, 3, n.lows[GroupIntra].Channel())
	for _, g := range []Group{GroupInter, GroupProbe} {
		assert.Equal(t, StateSuspend, n.lows[g].State())
		assert.True(t, n.phys[g].IsStateOff())
	}

	// beacons are sent periodically
	s.RunFor(3 * cfg.BeaconInterval)
	st := n.lows[GroupIntra].Stats()
	assert.GreaterOrEqual(t, st.NumBeacons, uint64(2))
	assert.Equal(t, uint64(0), st.NumDetectionRequests)
}

func TestMultiChannelStartup(t *testing.T) {
	s, m := newTestNetwork(1)
	cfg := DefaultConfig()
	cfg.Channels = []ChannelId{1, 2}
	n := newTestNode(s, m, 1, 0, cfg)
	n.recommended = 2
	n.start()

	intra, inter, probe := n.lows[GroupIntra], n.lows[GroupInter], n.lows[GroupProbe]
	assert.Equal(t, StateSwitch, intra.State())
	assert.Equal(t, StateSuspend, inter.State())
	assert.False(t, n.phys[GroupInter].IsStateOff())
	assert.Equal(t, StateSwitch, probe.State())

	s.RunFor(150)
	assert.Equal(t, StateTransmission, intra.State())
	assert.Equal(t, 2, intra.Channel())
	assert.Equal(t, StateDetection, probe.State())
	assert.Equal(t, 1, probe.Channel())
	assert.True(t, n.phys[GroupProbe].IsDetecting())

	// fine detection ends at 100+10000, the probe moves on round robin
	s.Run(10_150)
	assert.Equal(t, StateSwitch, probe.State())
	assert.Equal(t, 2, probe.Channel())
	s.Run(10_250)
	assert.Equal(t, StateDetection, probe.State())
	s.Run(20_250)
	assert.Equal(t, 1, probe.Channel())
	assert.Equal(t, uint64(2), probe.Stats().NumDetections)
}

func TestBulkExchange(t *testing.T) {
	s, m := newTestNetwork(2)
	n1 := newTestNode(s, m, 1, 0, singleChannelConfig())
	n2 := newTestNode(s, m, 2, 10, singleChannelConfig())
	sn := newSniffer(s, m, 1)
	n1.neighbors[n2.addr()] = 1
	n1.start()
	n2.start()

	var sent [][]byte
	for i := 0; i < 3; i++ {
		p := payloadOf(i, 100+i)
		sent = append(sent, p)
		n1.coord.Queue(&Packet{Uid: uint64(i), Payload: p}, n2.addr())
	}
	s.RunFor(5_000)

	assert.Equal(t, []uint64{0, 1, 2}, n1.ok)
	assert.Empty(t, n1.failed)
	assert.Equal(t, sent, n2.delivered)
	assert.Equal(t, 0, n1.coord.QueueLen())
	assert.Equal(t, uint64(1), n1.lows[GroupIntra].Stats().NumBulkRequests)
	assert.Equal(t, uint64(3), n1.lows[GroupIntra].Stats().NumDataTx)
	assert.Equal(t, uint64(1), n2.lows[GroupIntra].Stats().NumBulkResponses)
	assert.Equal(t, uint64(1), n2.lows[GroupIntra].Stats().NumBulkAcks)

	var exchange []frame.Kind
	for _, k := range sn.kinds() {
		if k != frame.KindBeacon {
			exchange = append(exchange, k)
		}
	}
	assert.Equal(t, []frame.Kind{frame.KindBulkRequest, frame.KindBulkResponse, frame.KindData, frame.KindData,
		frame.KindData, frame.KindBulkAck}, exchange)
	for _, f := range sn.frames {
		if f.Kind() == frame.KindBulkAck {
			assert.Equal(t, uint64(0b111), f.BulkAck.Bitmap)
			assert.Equal(t, n1.addr(), f.Addr1)
		}
	}
}

func TestBulkExchangeFragmented(t *testing.T) {
	s, m := newTestNetwork(3)
	n1 := newTestNode(s, m, 1, 0, singleChannelConfig())
	n2 := newTestNode(s, m, 2, 10, singleChannelConfig())
	n1.neighbors[n2.addr()] = 1
	n1.start()
	n2.start()

	big := payloadOf(7, 5000)
	n1.coord.Queue(&Packet{Uid: 7, Payload: big}, n2.addr())
	s.RunFor(5_000)

	assert.Equal(t, []uint64{7}, n1.ok)
	require.Len(t, n2.delivered, 1)
	assert.Equal(t, big, n2.delivered[0])
	assert.Equal(t, uint64(3), n1.lows[GroupIntra].Stats().NumDataTx)
}

func TestBulkResponseTimeout(t *testing.T) {
	s, m := newTestNetwork(4)
	n1 := newTestNode(s, m, 1, 0, singleChannelConfig())
	sn := newSniffer(s, m, 1)
	n1.start()

	a, b := NewAddress(9, GroupIntra), NewAddress(10, GroupIntra)
	n1.coord.Queue(&Packet{Uid: 1, Payload: payloadOf(1, 100)}, a)
	n1.coord.Queue(&Packet{Uid: 2, Payload: payloadOf(2, 100)}, b)
	s.RunFor(2_000)

	assert.Empty(t, n1.failed)
	assert.Empty(t, n1.ok)
	assert.Equal(t, 2, n1.coord.QueueLen())
	st := n1.lows[GroupIntra].Stats()
	assert.GreaterOrEqual(t, st.NumResponseTimeouts, uint64(2))
	assert.Equal(t, uint64(0), st.NumDataTx)

	// the request to the second destination follows the response timeout of the first after one SIFS
	var reqs []int
	for i, f := range sn.frames {
		if f.Kind() == frame.KindBulkRequest {
			reqs = append(reqs, i)
		}
	}
	require.GreaterOrEqual(t, len(reqs), 2)
	first, second := sn.frames[reqs[0]], sn.frames[reqs[1]]
	assert.Equal(t, a, first.Addr1)
	assert.Equal(t, b, second.Addr1)

	p := n1.phys[GroupIntra]
	reqDur := p.TxDuration(frame.Size(frame.KindBulkRequest, 0), phy.ControlMode)
	respDur := p.TxDuration(frame.Size(frame.KindBulkResponse, 0), phy.ControlMode)
	timeout := p.Sifs() + respDur + p.Slot()
	assert.Equal(t, timeout+p.Sifs()+reqDur, sn.at[reqs[1]]-sn.at[reqs[0]])
}

func TestBulkAckTimeout(t *testing.T) {
	s, m := newTestNetwork(5)
	n1 := newTestNode(s, m, 1, 0, singleChannelConfig())
	n2 := newTestNode(s, m, 2, 10, singleChannelConfig())
	n1.neighbors[n2.addr()] = 1
	n1.start()
	n2.start()

	// the responder's radio dies while its bulk response is on the air
	killed := false
	n2.phys[GroupIntra].RegisterListener(&txHook{fn: func(uint64) {
		if !killed && n2.coord.Responder(GroupIntra).Active {
			killed = true
			s.Schedule(1, n2.phys[GroupIntra].SetOffMode)
		}
	}})

	n1.coord.Queue(&Packet{Uid: 1, Payload: payloadOf(1, 100)}, n2.addr())
	n1.coord.Queue(&Packet{Uid: 2, Payload: payloadOf(2, 100)}, n2.addr())
	s.RunFor(5_000)

	assert.True(t, killed)
	assert.Equal(t, []uint64{1, 2}, n1.failed)
	assert.Empty(t, n1.ok)
	assert.Empty(t, n2.delivered)
	assert.Equal(t, uint64(1), n1.lows[GroupIntra].Stats().NumAckTimeouts)
	assert.Equal(t, uint64(2), n1.lows[GroupIntra].Stats().NumDataTx)
	assert.False(t, n2.coord.Responder(GroupIntra).Active)
}

func TestInterGroupServesOtherChannel(t *testing.T) {
	s, m := newTestNetwork(6)
	cfg := DefaultConfig()
	cfg.Channels = []ChannelId{1, 2}
	n1 := newTestNode(s, m, 1, 0, cfg)
	n2 := newTestNode(s, m, 2, 10, cfg)
	n1.recommended = 1
	n2.recommended = 2
	n1.neighbors[n2.addr()] = 2
	n1.start()
	n2.start()
	s.RunFor(200)
	require.Equal(t, 2, n2.lows[GroupIntra].Channel())

	n1.coord.Queue(&Packet{Uid: 1, Payload: payloadOf(1, 200)}, n2.addr())
	assert.Equal(t, StateSwitch, n1.lows[GroupInter].State())
	s.RunFor(5_000)

	assert.Equal(t, []uint64{1}, n1.ok)
	assert.Len(t, n2.delivered, 1)
	assert.Equal(t, uint64(0), n1.lows[GroupIntra].Stats().NumBulkRequests)
	assert.Equal(t, uint64(1), n1.lows[GroupInter].Stats().NumBulkRequests)
	// nothing left: the inter group suspends on the channel it visited
	assert.Equal(t, StateSuspend, n1.lows[GroupInter].State())
	assert.Equal(t, 2, n1.lows[GroupInter].Channel())
}

func TestInterConflictShortcut(t *testing.T) {
	for _, interCh := range []ChannelId{2, 3} {
		t.Run(fmt.Sprintf("inter-on-%d", interCh), func(t *testing.T) {
			s, m := newTestNetwork(7)
			cfg := DefaultConfig()
			cfg.Channels = []ChannelId{1, 2, 3}
			cfg.BeaconInterval = 10_000_000
			n1 := newTestNode(s, m, 1, 0, cfg)
			n1.recommended = 1
			intra, inter := n1.lows[GroupIntra], n1.lows[GroupInter]
			intra.Start()
			s.RunFor(200)

			// the inter group is heading for channel 2 when the intra group moves there
			inter.started = true
			inter.setState(StateTransmission)
			n1.phys[GroupInter].SetChannelNumber(interCh)
			inter.behavior.(*interBehavior).target = 2
			intra.switchTo(2)
			s.RunFor(200)
			require.Equal(t, 2, intra.Channel())
			require.Equal(t, StateTransmission, intra.State())

			n1.neighbors[NewAddress(2, GroupIntra)] = 2
			n1.coord.Queue(&Packet{Uid: 1, Payload: payloadOf(1, 100)}, NewAddress(2, GroupIntra))
			inter.TriggerBulkAccess()

			assert.False(t, inter.AccessManager().IsAccessRequested())
			assert.Equal(t, InvalidChannel, inter.behavior.(*interBehavior).target)
			assert.Equal(t, 2, inter.Channel())
			if interCh == 2 {
				assert.Equal(t, StateTransmission, inter.State())
			} else {
				assert.Equal(t, StateSwitch, inter.State())
			}
			assert.Equal(t, AccessBulk, intra.AccessManager().PendingAccess())
		})
	}
}

func TestDetectionRequestJoinsSensing(t *testing.T) {
	s, m := newTestNetwork(8)
	cfg1 := DefaultConfig()
	cfg1.Channels = []ChannelId{1}
	cfg1.BeaconInterval = 1_000_000
	cfg1.DetectionInterval = 5_000
	cfg2 := cfg1
	cfg2.DetectionInterval = 10_000_000
	n1 := newTestNode(s, m, 1, 0, cfg1)
	n2 := newTestNode(s, m, 2, 10, cfg2)
	n1.lows[GroupIntra].Start()
	n2.lows[GroupIntra].Start()
	s.RunFor(200)

	for s.Now() < 20_000 && n1.lows[GroupIntra].State() != StateDetection {
		s.RunFor(1)
	}
	require.Equal(t, StateDetection, n1.lows[GroupIntra].State())
	assert.Equal(t, uint64(1), n1.lows[GroupIntra].Stats().NumDetectionRequests)
	assert.Equal(t, StateDetection, n2.lows[GroupIntra].State())
	assert.Equal(t, 1, n2.neighbors[n1.addr()])

	s.RunFor(cfg1.FastDetectionDuration + 10)
	assert.Equal(t, StateTransmission, n1.lows[GroupIntra].State())
	assert.Equal(t, StateTransmission, n2.lows[GroupIntra].State())
}

func TestChannelSwitchAnnouncedInBeacon(t *testing.T) {
	s, m := newTestNetwork(9)
	cfg := DefaultConfig()
	cfg.Channels = []ChannelId{1, 2}
	cfg.DetectionInterval = 2_000
	n1 := newTestNode(s, m, 1, 0, cfg)
	cfg2 := cfg
	cfg2.DetectionInterval = 10_000_000
	n2 := newTestNode(s, m, 2, 10, cfg2)
	n1.recommended = 1
	n2.recommended = 1
	n1.lows[GroupIntra].Start()
	n2.lows[GroupIntra].Start()
	s.RunFor(300)
	require.Equal(t, 1, n1.lows[GroupIntra].Channel())

	n1.recommended = 2
	for s.Now() < 50_000 && n1.lows[GroupIntra].Channel() != 2 {
		s.RunFor(1)
	}
	assert.Equal(t, 2, n1.lows[GroupIntra].Channel())
	assert.Equal(t, StateSwitch, n1.lows[GroupIntra].State())
	assert.Equal(t, uint64(2), n1.lows[GroupIntra].Stats().NumSwitches)
	assert.Equal(t, 2, n2.neighbors[n1.addr()])

	s.RunFor(200)
	assert.Equal(t, StateTransmission, n1.lows[GroupIntra].State())
}

func TestStop(t *testing.T) {
	s, m := newTestNetwork(10)
	n := newTestNode(s, m, 1, 0, singleChannelConfig())
	n.start()
	n.coord.Queue(&Packet{Uid: 1, Payload: payloadOf(1, 10)}, NewAddress(5, GroupIntra))
	s.RunFor(10)
	for _, l := range n.lows {
		l.Stop()
		assert.Equal(t, StateSuspend, l.State())
		assert.False(t, l.AccessManager().IsAccessRequested())
		assert.True(t, n.phys[l.Group()].IsStateOff())
	}
	before := n.lows[GroupIntra].Stats()
	s.RunFor(1_000_000)
	assert.Equal(t, before, n.lows[GroupIntra].Stats())
}
