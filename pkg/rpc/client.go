// Copyright 2025 Certen Protocol

package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

// Client is a gRPC-backed executor.Messenger: Broadcast is a unary Send
// call, Subscribe opens a server-streamed feed and dispatches each message
// to the caller's handler on its own goroutine.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed connection. Dialing itself (credentials,
// retry policy, keepalive) is left to the caller rather than baked into a
// repository or handler type.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

var _ executor.Messenger = (*Client)(nil)

// Broadcast implements executor.Messenger.
func (c *Client) Broadcast(ctx context.Context, msg executor.GossipMessage) error {
	in := &WireGossipMessage{ContractKey: [32]byte(msg.ContractKey), Payload: msg.Payload}
	out := new(Ack)
	err := c.cc.Invoke(ctx, messengerServiceName+"/Send", in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return fmt.Errorf("rpc: broadcast: %w", err)
	}
	return nil
}

// Subscribe implements executor.Messenger. The returned unsubscribe cancels
// the underlying stream; the background goroutine exits on its next recv.
func (c *Client) Subscribe(contractKey calltypes.ContractKey, handler func(executor.GossipMessage)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true},
		messengerServiceName+"/Subscribe", grpc.CallContentSubtype(codecName))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rpc: subscribe: %w", err)
	}

	req := &SubscribeRequest{ContractKey: [32]byte(contractKey)}
	if err := stream.SendMsg(req); err != nil {
		cancel()
		return nil, fmt.Errorf("rpc: subscribe: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, fmt.Errorf("rpc: subscribe: close send: %w", err)
	}

	go func() {
		for {
			wire := new(WireGossipMessage)
			if err := stream.RecvMsg(wire); err != nil {
				return
			}
			handler(executor.GossipMessage{
				ContractKey: calltypes.ContractKey(wire.ContractKey),
				Payload:     wire.Payload,
			})
		}
	}()

	return cancel, nil
}
