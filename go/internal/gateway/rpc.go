package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"connectrpc.com/grpcreflect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// StatusServiceName is the fully-qualified name of the status service.
	StatusServiceName = "pathduel.v1.DuelStatusService"
	// StatusProcedure is the Connect procedure serving GetStatus.
	StatusProcedure = "/" + StatusServiceName + "/GetStatus"
)

var registerOnce sync.Once

// registerStatusService adds the service descriptor to the global registry so
// reflection clients (grpcurl, grpcui) can describe it. The messages are the
// well-known Empty and Struct types, so no generated code is needed.
func registerStatusService() {
	registerOnce.Do(func() {
		fdp := &descriptorpb.FileDescriptorProto{
			Name:    proto.String("pathduel/v1/status.proto"),
			Package: proto.String("pathduel.v1"),
			Syntax:  proto.String("proto3"),
			Dependency: []string{
				"google/protobuf/empty.proto",
				"google/protobuf/struct.proto",
			},
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("DuelStatusService"),
				Method: []*descriptorpb.MethodDescriptorProto{{
					Name:       proto.String("GetStatus"),
					InputType:  proto.String(".google.protobuf.Empty"),
					OutputType: proto.String(".google.protobuf.Struct"),
				}},
			}},
		}
		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			log.Error().Err(err).Msg("failed to build status service descriptor")
			return
		}
		if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			log.Warn().Err(err).Msg("status service descriptor already registered")
		}
	})
}

// registerRPC mounts the Connect status procedure and gRPC reflection.
func (s *Server) registerRPC(handle func(pattern string, h http.Handler)) {
	registerStatusService()

	handle(StatusProcedure, connect.NewUnaryHandler(StatusProcedure, s.getStatus))

	reflector := grpcreflect.NewStaticReflector(StatusServiceName)
	path, h := grpcreflect.NewHandlerV1(reflector)
	handle(path+"*", h)
	path, h = grpcreflect.NewHandlerV1Alpha(reflector)
	handle(path+"*", h)
}

func (s *Server) getStatus(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	resp := StatusResponse{
		Session:   s.provider.Snapshot(),
		Transport: s.provider.TransportStats(),
	}

	msg, err := toStruct(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to convert status")
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return structpb.NewStruct(m)
}
