package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "waveplanner.v1.Planner"

// Unary method names.
const (
	MethodListFields          = "ListFields"
	MethodFilterOrders        = "FilterOrders"
	MethodAllocate            = "Allocate"
	MethodCompare             = "Compare"
	MethodCreateStrategy      = "CreateStrategy"
	MethodGetStrategy         = "GetStrategy"
	MethodListStrategies      = "ListStrategies"
	MethodRenameStrategy      = "RenameStrategy"
	MethodUpdateStrategyRules = "UpdateStrategyRules"
)

// FullMethod returns the "/service/method" path of a unary method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PlannerServer is the server API for the Planner service. Every method
// takes and returns a google.protobuf.Struct holding the JSON shape of the
// request and response types in wire.go.
type PlannerServer interface {
	ListFields(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FilterOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Allocate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Compare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateStrategy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStrategy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenameStrategy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateStrategyRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(PlannerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a PlannerServer method to grpc.MethodHandler.
func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PlannerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PlannerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PlannerServiceDesc is the grpc.ServiceDesc for the Planner service.
var PlannerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodListFields, Handler: unaryHandler(MethodListFields, PlannerServer.ListFields)},
		{MethodName: MethodFilterOrders, Handler: unaryHandler(MethodFilterOrders, PlannerServer.FilterOrders)},
		{MethodName: MethodAllocate, Handler: unaryHandler(MethodAllocate, PlannerServer.Allocate)},
		{MethodName: MethodCompare, Handler: unaryHandler(MethodCompare, PlannerServer.Compare)},
		{MethodName: MethodCreateStrategy, Handler: unaryHandler(MethodCreateStrategy, PlannerServer.CreateStrategy)},
		{MethodName: MethodGetStrategy, Handler: unaryHandler(MethodGetStrategy, PlannerServer.GetStrategy)},
		{MethodName: MethodListStrategies, Handler: unaryHandler(MethodListStrategies, PlannerServer.ListStrategies)},
		{MethodName: MethodRenameStrategy, Handler: unaryHandler(MethodRenameStrategy, PlannerServer.RenameStrategy)},
		{MethodName: MethodUpdateStrategyRules, Handler: unaryHandler(MethodUpdateStrategyRules, PlannerServer.UpdateStrategyRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "waveplanner/v1/planner.proto",
}

// RegisterPlannerServer registers srv on s.
func RegisterPlannerServer(s grpc.ServiceRegistrar, srv PlannerServer) {
	s.RegisterService(&PlannerServiceDesc, srv)
}

// PlannerClient calls Planner methods over a connection.
type PlannerClient struct {
	cc grpc.ClientConnInterface
}

// NewPlannerClient creates a client over cc.
func NewPlannerClient(cc grpc.ClientConnInterface) *PlannerClient {
	return &PlannerClient{cc: cc}
}

// Call invokes a unary method by name with a raw Struct request.
func (c *PlannerClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Invoke encodes req, calls method and decodes the response into resp.
func (c *PlannerClient) Invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := ToStruct(req)
	if err != nil {
		return err
	}
	out, err := c.Call(ctx, method, in, opts...)
	if err != nil {
		return err
	}
	return FromStruct(out, resp)
}
