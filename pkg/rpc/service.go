// Copyright 2025 Certen Protocol
//
// Hand-written ServiceDesc for the Messenger collaborator,
// inverted from pkg/server's handler-per-operation layout (one handler
// function per RPC, registered into a dispatch table) into a client/server
// pair instead of an HTTP mux.

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const messengerServiceName = "certen.contractexecutor.rpc.Messenger"

// MessengerServer is implemented by whatever backs the gRPC messenger
// endpoint: Send delivers one gossip message, Subscribe streams every
// message broadcast for a contract back to the caller.
type MessengerServer interface {
	Send(ctx context.Context, msg *WireGossipMessage) (*Ack, error)
	Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error
}

func messengerSendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(WireGossipMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessengerServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: messengerServiceName + "/Send"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MessengerServer).Send(ctx, req.(*WireGossipMessage))
	}
	return interceptor(ctx, in, info, handler)
}

func messengerSubscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(MessengerServer).Subscribe(req, stream)
}

// messengerServiceDesc is the ServiceDesc a grpc.Server registers and a
// grpc.ClientConn's Invoke/NewStream calls address by full method name.
var messengerServiceDesc = grpc.ServiceDesc{
	ServiceName: messengerServiceName,
	HandlerType: (*MessengerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: messengerSendHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: messengerSubscribeHandler, ServerStreams: true},
	},
}

// RegisterMessengerServer attaches srv to s under the Messenger service
// name.
func RegisterMessengerServer(s *grpc.Server, srv MessengerServer) {
	s.RegisterService(&messengerServiceDesc, srv)
}
