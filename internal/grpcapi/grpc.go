package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName        = "verinex.v1.Records"
	getRecordMethod    = "/" + serviceName + "/GetRecord"
	updateReviewMethod = "/" + serviceName + "/UpdateReview"
)

// RecordsServer is the server API for the Records service. Messages are
// protobuf well-known types so no generated code is needed.
type RecordsServer interface {
	GetRecord(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	UpdateReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRecordsServer can be embedded to have forward compatible implementations.
type UnimplementedRecordsServer struct{}

func (UnimplementedRecordsServer) GetRecord(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRecord not implemented")
}
func (UnimplementedRecordsServer) UpdateReview(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateReview not implemented")
}

// RegisterRecordsServer registers the Records service on a gRPC server.
func RegisterRecordsServer(s grpc.ServiceRegistrar, srv RecordsServer) {
	s.RegisterService(&Records_ServiceDesc, srv)
}

// RecordsClient is the client API for the Records service.
type RecordsClient interface {
	GetRecord(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateReview(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type recordsClient struct{ cc grpc.ClientConnInterface }

func NewRecordsClient(cc grpc.ClientConnInterface) RecordsClient { return &recordsClient{cc: cc} }

func (c *recordsClient) GetRecord(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getRecordMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *recordsClient) UpdateReview(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, updateReviewMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Records_GetRecord_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordsServer).GetRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getRecordMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecordsServer).GetRecord(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Records_UpdateReview_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordsServer).UpdateReview(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: updateReviewMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecordsServer).UpdateReview(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Records_ServiceDesc is the grpc.ServiceDesc for the Records service.
var Records_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecordsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRecord", Handler: _Records_GetRecord_Handler},
		{MethodName: "UpdateReview", Handler: _Records_UpdateReview_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "records.proto",
}
