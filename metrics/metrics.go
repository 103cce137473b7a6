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

// Package metrics exposes the MAC counters of a running simulation as Prometheus metrics. All methods are
// safe to call on a nil *Collector, which disables metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector holds the Prometheus metrics of the MAC.
type Collector struct {
	gatherer prometheus.Gatherer

	TxOk            *prometheus.CounterVec
	TxFailed        *prometheus.CounterVec
	TxDropped       *prometheus.CounterVec
	RxDelivered     *prometheus.CounterVec
	MacEvents       *prometheus.CounterVec
	ChannelSwitches *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	BurstPackets    prometheus.Histogram
	RPCRequests     *prometheus.CounterVec
}

// NewCollector registers the MAC metrics against reg, or the default registerer if reg is nil. Metrics
// that are already registered are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error
	nodeCounter := func(name, help string) *prometheus.CounterVec {
		if err != nil {
			return nil
		}
		var vec *prometheus.CounterVec
		vec, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, []string{"node"}), name)
		return vec
	}
	c.TxOk = nodeCounter("crmac_tx_ok_total", "Packets acknowledged by the receiver.")
	c.TxFailed = nodeCounter("crmac_tx_failed_total", "Packets not acknowledged in a bulk ack.")
	c.TxDropped = nodeCounter("crmac_tx_dropped_total", "Packets dropped by the queue.")
	c.RxDelivered = nodeCounter("crmac_rx_delivered_total", "Packets delivered to the upper layer.")
	if err != nil {
		return nil, err
	}

	c.MacEvents, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmac_mac_events_total",
		Help: "Protocol events of the MAC groups (beacons, detections, bulk timeouts).",
	}, []string{"node", "group", "event"}), "crmac_mac_events_total")
	if err != nil {
		return nil, err
	}

	c.ChannelSwitches, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmac_channel_switches_total",
		Help: "Completed channel switches per group radio.",
	}, []string{"node", "group"}), "crmac_channel_switches_total")
	if err != nil {
		return nil, err
	}

	c.QueueDepth, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crmac_queue_depth",
		Help: "Number of packets waiting in the transmit queue.",
	}, []string{"node"}), "crmac_queue_depth")
	if err != nil {
		return nil, err
	}

	c.BurstPackets, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crmac_burst_packets",
		Help:    "Packets acknowledged per bulk ack.",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	}), "crmac_burst_packets")
	if err != nil {
		return nil, err
	}

	c.RPCRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmac_rpc_requests_total",
		Help: "Status service requests by method and code.",
	}, []string{"method", "code"}), "crmac_rpc_requests_total")
	if err != nil {
		return nil, err
	}
	return c, nil
}

func nodeLabel(node int) string {
	return strconv.Itoa(node)
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) IncTxOk(node int) {
	if c == nil || c.TxOk == nil {
		return
	}
	c.TxOk.WithLabelValues(nodeLabel(node)).Inc()
}

func (c *Collector) IncTxFailed(node int) {
	if c == nil || c.TxFailed == nil {
		return
	}
	c.TxFailed.WithLabelValues(nodeLabel(node)).Inc()
}

func (c *Collector) IncTxDropped(node int) {
	if c == nil || c.TxDropped == nil {
		return
	}
	c.TxDropped.WithLabelValues(nodeLabel(node)).Inc()
}

func (c *Collector) IncRxDelivered(node int) {
	if c == nil || c.RxDelivered == nil {
		return
	}
	c.RxDelivered.WithLabelValues(nodeLabel(node)).Inc()
}

// AddMacEvents counts n protocol events of a group.
func (c *Collector) AddMacEvents(node int, group string, event string, n int) {
	if c == nil || c.MacEvents == nil || n <= 0 {
		return
	}
	c.MacEvents.WithLabelValues(nodeLabel(node), group, event).Add(float64(n))
}

func (c *Collector) IncChannelSwitch(node int, group string) {
	if c == nil || c.ChannelSwitches == nil {
		return
	}
	c.ChannelSwitches.WithLabelValues(nodeLabel(node), group).Inc()
}

func (c *Collector) SetQueueDepth(node int, depth int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.WithLabelValues(nodeLabel(node)).Set(float64(depth))
}

func (c *Collector) ObserveBurst(packets int) {
	if c == nil || c.BurstPackets == nil {
		return
	}
	c.BurstPackets.Observe(float64(packets))
}

// UnaryServerInterceptor counts the unary RPCs served by the status service.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if c == nil || c.RPCRequests == nil {
			return resp, err
		}
		method := ""
		if info != nil {
			method = info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
		}
		c.RPCRequests.WithLabelValues(method, status.Code(err).String()).Inc()
		return resp, err
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
