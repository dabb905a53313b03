// Package rpc is GLADyS's RPC layer: real google.golang.org/grpc
// transport (streaming, metadata, service descriptions) carrying plain
// JSON-tagged Go structs instead of protoc-generated protobuf messages.
//
// The upstream Python implementation this module is ported from compiles
// real .proto files (memory_pb2, types_pb2, ...), but no .proto source or
// generated *.pb.go code shipped with the retrieved reference pack, and
// protoc cannot be invoked in this build. Hand-authoring protoreflect-
// compliant generated code without ever compiling it is too fragile to
// ship, so this package keeps grpc's real transport/streaming/service-
// description machinery and swaps only the wire codec: messages
// implement no proto.Message interface, they're ordinary structs
// marshaled with encoding/json via a Codec registered under the name
// "json". Service descriptions below (orchestrator.go, memory.go,
// executive.go) are hand-written in the same mechanical shape
// protoc-gen-go-grpc produces.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal into %T: %w", v, err)
	}
	return nil
}
