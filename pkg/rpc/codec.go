// Copyright 2025 Certen Protocol
//
// Wire codec for the rpc package's hand-written gRPC stubs. The collaborator
// contracts here are intentionally message shapes simple enough
// (GossipMessage is an opaque ContractKey + byte payload; EndBatchTransaction
// is a flat struct) that round-tripping them through generated protobuf code
// buys nothing a plain JSON codec registered with grpc's encoding package
// doesn't already give, while keeping this package buildable without a
// protoc step in the pipeline.

package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "certen-json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
