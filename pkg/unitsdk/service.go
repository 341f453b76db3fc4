// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package unitsdk

import (
	"context"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "arcade.unit.v1.Unit"

// Full method names.
const (
	MethodStart   = "/" + ServiceName + "/Start"
	MethodMessage = "/" + ServiceName + "/Message"
	MethodVersion = "/" + ServiceName + "/Version"
)

// UnitServer is the server API for the unit service. Messages are protobuf
// well-known types, so no generated code is required.
type UnitServer interface {
	Start(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Message(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Version(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// RegisterUnitServer registers srv with s.
func RegisterUnitServer(s grpc.ServiceRegistrar, srv UnitServer) {
	s.RegisterService(&unitServiceDesc, srv)
}

var unitServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UnitServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: startHandler},
		{MethodName: "Message", Handler: messageHandler},
		{MethodName: "Version", Handler: versionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arcade/unit/v1/unit.proto",
}

func startHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UnitServer).Start(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStart}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UnitServer).Start(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func messageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UnitServer).Message(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodMessage}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UnitServer).Message(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func versionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UnitServer).Version(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodVersion}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UnitServer).Version(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// serverAdapter adapts Handler to UnitServer.
type serverAdapter struct {
	handler Handler
}

func (a *serverAdapter) Start(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	text, err := a.handler.Start(ctx)
	if err != nil {
		return nil, status.Error(codes.Unknown, err.Error())
	}
	return wrapperspb.String(text), nil
}

func (a *serverAdapter) Message(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	text, err := a.handler.Message(ctx, in.GetValue())
	if err != nil {
		return nil, status.Error(codes.Unknown, err.Error())
	}
	return wrapperspb.String(text), nil
}

func (a *serverAdapter) Version(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if v, ok := a.handler.(Versioned); ok {
		return wrapperspb.String(v.Version()), nil
	}
	return wrapperspb.String(""), nil
}

// recoverInterceptor turns a handler panic into an Internal status so the
// unit process survives.
func recoverInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Errorf(codes.Internal, "panic: %v\n%s", r, debug.Stack())
		}
	}()
	return handler(ctx, req)
}

// Client is the host-side client for a unit.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Start calls the unit's Start.
func (c *Client) Start(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodStart, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Message calls the unit's Message.
func (c *Client) Message(ctx context.Context, input string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodMessage, wrapperspb.String(input), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Version returns the unit's declared version, or "".
func (c *Client) Version(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodVersion, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}
