// Package realtime fans persisted Link messages out to live subscribers, both
// in-process (Listen) and over gRPC (link.v1.LinkRealtime).
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"bondedlink/internal/link/model"
)

const (
	ServiceName     = "link.v1.LinkRealtime"
	PublishMethod   = "/" + ServiceName + "/Publish"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"

	conversationField = "conversation_id"
)

// RealtimeServer is the server side of link.v1.LinkRealtime. Messages travel as
// structpb.Struct in the same JSON shape the HTTP API returns.
type RealtimeServer interface {
	Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Subscribe(*structpb.Struct, grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RealtimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler:    publishHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "link/v1/realtime.proto",
}

func RegisterRealtimeServer(s grpc.ServiceRegistrar, srv RealtimeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func publishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RealtimeServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PublishMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RealtimeServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RealtimeServer).Subscribe(in, stream)
}

// ToStruct encodes a message with its JSON wire keys.
func ToStruct(msg model.Message) (*structpb.Struct, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return structpb.NewStruct(fields)
}

func FromStruct(s *structpb.Struct) (model.Message, error) {
	var msg model.Message
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

func subscribeRequest(conversationID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		conversationField: structpb.NewStringValue(conversationID),
	}}
}
