// Copyright 2025 Certen Protocol
//
// Hub is the reference MessengerServer: an in-memory fanout relay, the
// network-facing counterpart of pkg/executor/mocks.Messenger's in-process
// synchronous fanout. A contract-executor process can also embed Hub
// directly and skip the network hop entirely when colocated with its
// peers, keeping transport out of core semantics for every collaborator.

package rpc

import (
	"context"
	"sync"

	"google.golang.org/grpc"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

// Hub multiplexes Send calls out to every Subscribe stream registered for
// the same contract key, guarded by a mutex the way a Collector/Scheduler
// struct guards its own accumulation state.
type Hub struct {
	mu        sync.RWMutex
	subs      map[[32]byte]map[int]chan *WireGossipMessage
	localSubs map[[32]byte]map[int]func(executor.GossipMessage)
	next      int
}

// NewHub constructs an empty relay.
func NewHub() *Hub {
	return &Hub{
		subs:      make(map[[32]byte]map[int]chan *WireGossipMessage),
		localSubs: make(map[[32]byte]map[int]func(executor.GossipMessage)),
	}
}

// Send implements MessengerServer: it fans the message out to every
// subscriber currently registered for its contract, dropping it for any
// subscriber whose delivery channel is full rather than blocking the
// sender — a slow peer must not stall the whole relay.
func (h *Hub) Send(ctx context.Context, msg *WireGossipMessage) (*Ack, error) {
	h.mu.RLock()
	targets := h.subs[msg.ContractKey]
	chans := make([]chan *WireGossipMessage, 0, len(targets))
	for _, ch := range targets {
		chans = append(chans, ch)
	}
	localTargets := h.localSubs[msg.ContractKey]
	handlers := make([]func(executor.GossipMessage), 0, len(localTargets))
	for _, fn := range localTargets {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- msg:
		default:
		}
	}

	gossipMsg := executor.GossipMessage{ContractKey: calltypes.ContractKey(msg.ContractKey), Payload: msg.Payload}
	for _, fn := range handlers {
		go fn(gossipMsg)
	}
	return &Ack{}, nil
}

// BroadcastLocal delivers msg only to SubscribeLocal handlers, skipping the
// wire entirely — used by FanoutMessenger so a message a process is both
// originating and locally subscribed to doesn't pay a network round trip.
func (h *Hub) BroadcastLocal(msg executor.GossipMessage) {
	key := [32]byte(msg.ContractKey)
	h.mu.RLock()
	targets := h.localSubs[key]
	handlers := make([]func(executor.GossipMessage), 0, len(targets))
	for _, fn := range targets {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		go fn(msg)
	}
}

// SubscribeLocal registers handler for every message Send/BroadcastLocal
// fans out for contractKey, without the gRPC stream plumbing Subscribe
// uses — the in-process counterpart for a Hub embedded directly into the
// process that also serves it over the wire.
func (h *Hub) SubscribeLocal(contractKey calltypes.ContractKey, handler func(executor.GossipMessage)) (func(), error) {
	key := [32]byte(contractKey)
	h.mu.Lock()
	if h.localSubs[key] == nil {
		h.localSubs[key] = make(map[int]func(executor.GossipMessage))
	}
	id := h.next
	h.next++
	h.localSubs[key][id] = handler
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.localSubs[key], id)
		h.mu.Unlock()
	}, nil
}

// Subscribe implements MessengerServer: it registers a delivery channel for
// the requested contract and streams every message Send fans to it until
// the stream's context is cancelled.
func (h *Hub) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	ch := make(chan *WireGossipMessage, 64)

	h.mu.Lock()
	if h.subs[req.ContractKey] == nil {
		h.subs[req.ContractKey] = make(map[int]chan *WireGossipMessage)
	}
	id := h.next
	h.next++
	h.subs[req.ContractKey][id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs[req.ContractKey], id)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}
