package api

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// CodecName is the grpc content-subtype of every message on this service.
const CodecName = "proto"

// Codec encodes booking.v1 messages in the protobuf wire format. Generated
// protobuf messages, such as the grpc health service's, go through
// proto.Marshal. The server forces it with grpc.ForceServerCodec and clients
// with grpc.ForceCodec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.appendWire(nil), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("api: cannot marshal %T", v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return m.readWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("api: cannot unmarshal into %T", v)
}

func (Codec) Name() string { return CodecName }
