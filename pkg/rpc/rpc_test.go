// Copyright 2025 Certen Protocol

package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

func startTestServer(t *testing.T) (*grpc.ClientConn, func()) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	srv := grpc.NewServer()
	RegisterMessengerServer(srv, NewHub())
	go srv.Serve(lis)

	cc, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		srv.Stop()
		t.Fatalf("failed to dial: %v", err)
	}

	return cc, func() {
		cc.Close()
		srv.Stop()
	}
}

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	cc, stop := startTestServer(t)
	defer stop()

	client := NewClient(cc)

	var contractKeyBytes [32]byte
	contractKeyBytes[0] = 0x42
	contractKey := calltypes.ContractKey(contractKeyBytes)

	received := make(chan executor.GossipMessage, 1)
	unsubscribe, err := client.Subscribe(contractKey, func(msg executor.GossipMessage) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer unsubscribe()

	// Give the server time to register the stream before sending, since
	// Subscribe's registration happens on the server goroutine.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Broadcast(ctx, executor.GossipMessage{ContractKey: contractKey, Payload: []byte("hello")}); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Payload) != "hello" {
			t.Errorf("expected payload %q, got %q", "hello", msg.Payload)
		}
		if msg.ContractKey != contractKey {
			t.Errorf("expected contract key %x, got %x", contractKey, msg.ContractKey)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber to receive broadcast")
	}
}

func TestBroadcastToDifferentContractIsNotDelivered(t *testing.T) {
	cc, stop := startTestServer(t)
	defer stop()

	client := NewClient(cc)

	var a, b [32]byte
	a[0] = 0x01
	b[0] = 0x02
	contractA := calltypes.ContractKey(a)
	contractB := calltypes.ContractKey(b)

	received := make(chan executor.GossipMessage, 1)
	unsubscribe, err := client.Subscribe(contractA, func(msg executor.GossipMessage) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer unsubscribe()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Broadcast(ctx, executor.GossipMessage{ContractKey: contractB, Payload: []byte("wrong-contract")}); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	select {
	case msg := <-received:
		t.Fatalf("did not expect a message on contractA's subscription, got %+v", msg)
	case <-time.After(300 * time.Millisecond):
	}
}
