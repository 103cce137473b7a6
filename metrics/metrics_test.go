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

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.IncTxOk(1)
	c.IncTxOk(1)
	c.IncTxFailed(2)
	c.AddMacEvents(1, "intra", "beacon", 3)
	c.AddMacEvents(1, "intra", "beacon", 0)
	c.IncChannelSwitch(1, "probe")
	c.SetQueueDepth(3, 17)
	c.ObserveBurst(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.TxOk.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TxFailed.WithLabelValues("2")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.MacEvents.WithLabelValues("1", "intra", "beacon")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ChannelSwitches.WithLabelValues("1", "probe")))
	assert.Equal(t, 17.0, testutil.ToFloat64(c.QueueDepth.WithLabelValues("3")))

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `crmac_tx_ok_total{node="1"} 2`))
}

func TestCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	c1, err := NewCollector(reg)
	require.NoError(t, err)
	c2, err := NewCollector(reg)
	require.NoError(t, err)
	c1.IncTxDropped(4)
	assert.Equal(t, 1.0, testutil.ToFloat64(c2.TxDropped.WithLabelValues("4")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.IncTxOk(1)
	c.IncRxDelivered(1)
	c.SetQueueDepth(1, 1)
	c.ObserveBurst(1)
	assert.Nil(t, c.Gatherer())
	assert.NotNil(t, c.Handler())
}

func TestUnaryServerInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	info := &grpc.UnaryServerInfo{FullMethod: "/crmac.Status/GetKpi"}
	_, _ = c.UnaryServerInterceptor()(context.Background(), nil, info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unavailable, "no simulation")
		})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RPCRequests.WithLabelValues("GetKpi", "Unavailable")))
}
