// Copyright 2025 Certen Protocol

package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

func TestFanoutMessenger_DeliversLocallyWithoutPeers(t *testing.T) {
	hub := NewHub()
	messenger := NewFanoutMessenger(hub)

	var contractKeyBytes [32]byte
	contractKeyBytes[0] = 0x07
	contractKey := calltypes.ContractKey(contractKeyBytes)

	received := make(chan executor.GossipMessage, 1)
	unsubscribe, err := messenger.Subscribe(contractKey, func(msg executor.GossipMessage) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer unsubscribe()

	if err := messenger.Broadcast(context.Background(), executor.GossipMessage{ContractKey: contractKey, Payload: []byte("local")}); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Payload) != "local" {
			t.Errorf("expected payload %q, got %q", "local", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for local delivery")
	}
}

func TestFanoutMessenger_ForwardsToPeerClients(t *testing.T) {
	cc, stop := startTestServer(t)
	defer stop()

	peerClient := NewClient(cc)
	localHub := NewHub()
	messenger := NewFanoutMessenger(localHub, peerClient)

	var contractKeyBytes [32]byte
	contractKeyBytes[0] = 0x09
	contractKey := calltypes.ContractKey(contractKeyBytes)

	received := make(chan executor.GossipMessage, 1)
	unsubscribe, err := peerClient.Subscribe(contractKey, func(msg executor.GossipMessage) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer unsubscribe()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := messenger.Broadcast(ctx, executor.GossipMessage{ContractKey: contractKey, Payload: []byte("remote")}); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Payload) != "remote" {
			t.Errorf("expected payload %q, got %q", "remote", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer delivery")
	}
}
