package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	cbor "github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec marshals message bodies. Every codec here is language neutral so that
// peers written in other languages can interoperate.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

// JSON returns the default body codec. Content-Type: application/json
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string                { return "application/json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a canonical CBOR codec. Nested maps decode as map[string]any so
// payloads look the same as they do with JSON.
func CBOR() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string                { return "application/cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

type protoCodec struct{}

// Proto returns a codec that carries the body as a google.protobuf.Struct.
// Numbers inside the payload decode as float64, as with JSON.
func Proto() Codec { return protoCodec{} }

func (protoCodec) ContentType() string { return "application/x-protobuf" }

func (protoCodec) Marshal(v any) ([]byte, error) {
	if pm, ok := v.(proto.Message); ok {
		return proto.Marshal(pm)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("proto body must be an object: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	if pm, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, pm)
	}
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Registry maps codec names and content types to codecs.
type Registry struct {
	byName map[string]Codec
}

// NewRegistry returns a registry with the json, cbor and proto codecs.
func NewRegistry() (*Registry, error) {
	r := &Registry{byName: make(map[string]Codec)}
	r.Register("json", JSON())
	r.Register("proto", Proto())
	c, err := CBOR()
	if err != nil {
		return nil, err
	}
	r.Register("cbor", c)
	return r, nil
}

// Register adds a codec under a short name and under its content type.
func (r *Registry) Register(name string, c Codec) {
	r.byName[strings.ToLower(name)] = c
	r.byName[c.ContentType()] = c
}

// Lookup returns the codec for a short name or content type.
func (r *Registry) Lookup(name string) (Codec, error) {
	if name == "" {
		return JSON(), nil
	}
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown wire codec %q", name)
	}
	return c, nil
}

// CodecByName is a convenience around NewRegistry().Lookup.
func CodecByName(name string) (Codec, error) {
	r, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return r.Lookup(name)
}
