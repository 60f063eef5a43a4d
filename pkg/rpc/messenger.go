// Copyright 2025 Certen Protocol
//
// FanoutMessenger composes a locally embedded Hub with one Client per peer
// into the single executor.Messenger a BatchExecutionTask.Config wants,
// mirroring the "one struct injecting several collaborators" shape of
// batchexecution.Config itself.

package rpc

import (
	"context"

	"go.uber.org/multierr"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

// FanoutMessenger broadcasts to its own embedded Hub (for same-process
// subscribers) and to every configured peer Client (for remote ones), and
// subscribes only against the local Hub — a remote peer's own Broadcast
// call reaches this process through that Hub's Send RPC, which already
// fans into SubscribeLocal handlers.
type FanoutMessenger struct {
	hub   *Hub
	peers []*Client
}

// NewFanoutMessenger wires hub to the given peer clients.
func NewFanoutMessenger(hub *Hub, peers ...*Client) *FanoutMessenger {
	return &FanoutMessenger{hub: hub, peers: peers}
}

var _ executor.Messenger = (*FanoutMessenger)(nil)

func (f *FanoutMessenger) Broadcast(ctx context.Context, msg executor.GossipMessage) error {
	f.hub.BroadcastLocal(msg)

	var errs error
	for _, peer := range f.peers {
		if err := peer.Broadcast(ctx, msg); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (f *FanoutMessenger) Subscribe(contractKey calltypes.ContractKey, handler func(executor.GossipMessage)) (func(), error) {
	return f.hub.SubscribeLocal(contractKey, handler)
}
