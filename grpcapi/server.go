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

// Package grpcapi serves snapshots of a running simulation over gRPC. The service uses the protobuf
// well-known types only, so it needs no generated code.
package grpcapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/metrics"
	"github.com/crmac/crmac-ns/progctx"
	"github.com/crmac/crmac-ns/simulation"
)

const serviceName = "crmac.StatusService"

// Source provides the simulation state served by the status service.
type Source interface {
	Kpi() simulation.Kpi
	NodeInfos() []simulation.NodeInfo
}

// Commander runs one console command and writes its output.
type Commander interface {
	RunCommand(cmd string, output io.Writer) error
}

// StatusServer is the server API of the status service.
type StatusServer interface {
	GetKpi(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetNodes(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Command(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

func unaryHandler[Req any](method string, call func(StatusServer, context.Context, *Req) (interface{}, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StatusServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(StatusServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var statusServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StatusServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetKpi", func(s StatusServer, ctx context.Context, req *emptypb.Empty) (interface{}, error) {
			return s.GetKpi(ctx, req)
		}),
		unaryHandler("GetNodes", func(s StatusServer, ctx context.Context, req *emptypb.Empty) (interface{}, error) {
			return s.GetNodes(ctx, req)
		}),
		unaryHandler("Command", func(s StatusServer, ctx context.Context, req *wrapperspb.StringValue) (interface{}, error) {
			return s.Command(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crmac/status.proto",
}

// toStruct converts a JSON-serializable value into a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal snapshot")
	}
	var m map[string]interface{}
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return structpb.NewStruct(m)
}

// Server is the gRPC status service of one simulation.
type Server struct {
	src    Source
	cmd    Commander
	server *grpc.Server
}

// NewServer creates the service. cmd may be nil, in which case Command is unavailable; a nil collector
// disables request metrics.
func NewServer(src Source, cmd Commander, c *metrics.Collector) *Server {
	logger.AssertNotNil(src)
	s := &Server{
		src: src,
		cmd: cmd,
	}
	s.server = grpc.NewServer(grpc.UnaryInterceptor(c.UnaryServerInterceptor()))
	s.server.RegisterService(&statusServiceDesc, s)
	return s
}

func (s *Server) GetKpi(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	res, err := toStruct(s.src.Kpi())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (s *Server) GetNodes(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	res, err := toStruct(map[string]interface{}{"nodes": s.src.NodeInfos()})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (s *Server) Command(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s.cmd == nil {
		return nil, status.Error(codes.Unimplemented, "commands are not enabled")
	}
	var output strings.Builder
	if err := s.cmd.RunCommand(req.GetValue(), &output); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.String(output.String()), nil
}

func (s *Server) Serve(lis net.Listener) error {
	logger.Infof("gRPC status server serving on %s ...", lis.Addr())
	return s.server.Serve(lis)
}

// Run serves on address until the program context is cancelled.
func (s *Server) Run(ctx *progctx.ProgCtx, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", address)
	}
	ctx.Defer(s.Stop)
	ctx.Go("grpc-server", func() {
		if err := s.Serve(lis); err != nil {
			logger.Errorf("gRPC status server stopped: %v", err)
		}
	})
	return nil
}

func (s *Server) Stop() {
	s.server.Stop()
}

// StatusClient is the client API of the status service.
type StatusClient struct {
	cc grpc.ClientConnInterface
}

func NewStatusClient(cc grpc.ClientConnInterface) *StatusClient {
	return &StatusClient{cc: cc}
}

func (c *StatusClient) GetKpi(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetKpi", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StatusClient) GetNodes(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetNodes", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StatusClient) Command(ctx context.Context, cmd string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Command", wrapperspb.String(cmd), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}
