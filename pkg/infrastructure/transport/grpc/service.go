package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "outreach.v1.Outreach"

const (
	sendNotificationMethod  = "/" + ServiceName + "/SendNotification"
	dispatchBatchMethod     = "/" + ServiceName + "/DispatchBatch"
	getBatchMethod          = "/" + ServiceName + "/GetBatch"
	confirmAttendanceMethod = "/" + ServiceName + "/ConfirmAttendance"
)

// OutreachServer carries requests and replies as protobuf Structs so no generated code
// is needed on either side.
type OutreachServer interface {
	SendNotification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DispatchBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ConfirmAttendance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OutreachServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "SendNotification", Handler: unaryHandler(sendNotificationMethod, OutreachServer.SendNotification)},
		{MethodName: "DispatchBatch", Handler: unaryHandler(dispatchBatchMethod, OutreachServer.DispatchBatch)},
		{MethodName: "GetBatch", Handler: unaryHandler(getBatchMethod, OutreachServer.GetBatch)},
		{MethodName: "ConfirmAttendance", Handler: unaryHandler(confirmAttendanceMethod, OutreachServer.ConfirmAttendance)},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "outreach/v1/outreach.proto",
}

func RegisterOutreachServer(s gogrpc.ServiceRegistrar, srv OutreachServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(OutreachServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) gogrpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor gogrpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OutreachServer), ctx, in)
		}
		info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OutreachServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
