// Package codec registers a JSON grpc codec so internal RPC surfaces (the
// broker file-service client, the coordinator report client) can move
// plain structs over grpc's connection management and retry/backoff
// plumbing without owning a protoc pipeline.
package codec

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// Name is the grpc content-subtype this codec registers under; callers
// select it per-call with grpc.CallContentSubtype(Name).
const Name = "json"

var api = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return api.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }

func (jsonCodec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
