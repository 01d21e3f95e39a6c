package handlers

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Full method names of the kanmon.v1 services.
// Requests and responses are protobuf well-known types.
const (
	PermissionServiceName    = "kanmon.v1.PermissionService"
	FunctionalityServiceName = "kanmon.v1.FunctionalityService"
	AuthorityServiceName     = "kanmon.v1.AuthorityService"

	MethodCheckPermission    = "/" + PermissionServiceName + "/Check"
	MethodRegisterPermission = "/" + PermissionServiceName + "/Register"
	MethodRevokePermission   = "/" + PermissionServiceName + "/Revoke"

	MethodCreateFunctionality = "/" + FunctionalityServiceName + "/Create"
	MethodUpdateFunctionality = "/" + FunctionalityServiceName + "/Update"
	MethodGetFunctionality    = "/" + FunctionalityServiceName + "/Get"
	MethodListFunctionalities = "/" + FunctionalityServiceName + "/List"
	MethodDeleteFunctionality = "/" + FunctionalityServiceName + "/Delete"

	MethodListAuthorities = "/" + AuthorityServiceName + "/List"
	MethodCreateAuthority = "/" + AuthorityServiceName + "/Create"
	MethodDeleteAuthority = "/" + AuthorityServiceName + "/Delete"
)

const serviceMetadata = "kanmon/v1/kanmon.proto"

// PermissionServiceServer is the server API for kanmon.v1.PermissionService
type PermissionServiceServer interface {
	Check(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	Register(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Revoke(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// FunctionalityServiceServer is the server API for kanmon.v1.FunctionalityService
type FunctionalityServiceServer interface {
	Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	List(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
	Delete(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// AuthorityServiceServer is the server API for kanmon.v1.AuthorityService
type AuthorityServiceServer interface {
	List(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
	Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Delete(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// structHandler adapts a typed call to grpc.MethodHandler, running the
// server's interceptor chain the same way generated code does.
func structHandler[S any, R any](fullMethod string, call func(srv S, ctx context.Context, req *structpb.Struct) (R, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(S), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PermissionServiceDesc describes kanmon.v1.PermissionService
var PermissionServiceDesc = grpc.ServiceDesc{
	ServiceName: PermissionServiceName,
	HandlerType: (*PermissionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Check",
			Handler: structHandler(MethodCheckPermission, func(s PermissionServiceServer, ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
				return s.Check(ctx, req)
			}),
		},
		{
			MethodName: "Register",
			Handler: structHandler(MethodRegisterPermission, func(s PermissionServiceServer, ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
				return s.Register(ctx, req)
			}),
		},
		{
			MethodName: "Revoke",
			Handler: structHandler(MethodRevokePermission, func(s PermissionServiceServer, ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
				return s.Revoke(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: serviceMetadata,
}

// FunctionalityServiceDesc describes kanmon.v1.FunctionalityService
var FunctionalityServiceDesc = grpc.ServiceDesc{
	ServiceName: FunctionalityServiceName,
	HandlerType: (*FunctionalityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Create",
			Handler: structHandler(MethodCreateFunctionality, func(s FunctionalityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return s.Create(ctx, req)
			}),
		},
		{
			MethodName: "Update",
			Handler: structHandler(MethodUpdateFunctionality, func(s FunctionalityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return s.Update(ctx, req)
			}),
		},
		{
			MethodName: "Get",
			Handler: structHandler(MethodGetFunctionality, func(s FunctionalityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return s.Get(ctx, req)
			}),
		},
		{
			MethodName: "List",
			Handler: structHandler(MethodListFunctionalities, func(s FunctionalityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
				return s.List(ctx, req)
			}),
		},
		{
			MethodName: "Delete",
			Handler: structHandler(MethodDeleteFunctionality, func(s FunctionalityServiceServer, ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
				return s.Delete(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: serviceMetadata,
}

// AuthorityServiceDesc describes kanmon.v1.AuthorityService
var AuthorityServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthorityServiceName,
	HandlerType: (*AuthorityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "List",
			Handler: structHandler(MethodListAuthorities, func(s AuthorityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
				return s.List(ctx, req)
			}),
		},
		{
			MethodName: "Create",
			Handler: structHandler(MethodCreateAuthority, func(s AuthorityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return s.Create(ctx, req)
			}),
		},
		{
			MethodName: "Delete",
			Handler: structHandler(MethodDeleteAuthority, func(s AuthorityServiceServer, ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
				return s.Delete(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: serviceMetadata,
}

// RegisterPermissionServiceServer registers the permission service
func RegisterPermissionServiceServer(s grpc.ServiceRegistrar, srv PermissionServiceServer) {
	s.RegisterService(&PermissionServiceDesc, srv)
}

// RegisterFunctionalityServiceServer registers the functionality service
func RegisterFunctionalityServiceServer(s grpc.ServiceRegistrar, srv FunctionalityServiceServer) {
	s.RegisterService(&FunctionalityServiceDesc, srv)
}

// RegisterAuthorityServiceServer registers the authority service
func RegisterAuthorityServiceServer(s grpc.ServiceRegistrar, srv AuthorityServiceServer) {
	s.RegisterService(&AuthorityServiceDesc, srv)
}
