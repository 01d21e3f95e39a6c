package handlers

import (
	"context"

	"github.com/asakaida/kanmon/internal/identity"
	"github.com/asakaida/kanmon/internal/services/authorization"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PermissionHandler exposes the authorization gate over gRPC
type PermissionHandler struct {
	gate authorization.GateInterface
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(gate authorization.GateInterface) *PermissionHandler {
	return &PermissionHandler{gate: gate}
}

// Check handles the Check RPC.
// Request: {operation, authority, authorities?}. When authorities is omitted
// the check is made for the calling principal.
func (h *PermissionHandler) Check(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	operation, err := requiredString(req, "operation")
	if err != nil {
		return nil, err
	}
	authority, err := requiredString(req, "authority")
	if err != nil {
		return nil, err
	}

	callerAuthorities, present, err := stringListField(req, "authorities")
	if err != nil {
		return nil, err
	}
	if !present {
		if p, ok := identity.FromContext(ctx); ok {
			callerAuthorities = p.Authorities
		}
	}

	allowed, err := h.gate.IsPermitted(ctx, operation, authority, callerAuthorities)
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Bool(allowed), nil
}

// Register handles the Register RPC. Request: {operation, authority}
func (h *PermissionHandler) Register(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	operation, err := requiredString(req, "operation")
	if err != nil {
		return nil, err
	}
	authority, err := requiredString(req, "authority")
	if err != nil {
		return nil, err
	}

	if err := h.gate.RegisterPermission(ctx, operation, authority); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

// Revoke handles the Revoke RPC. Request: {operation, authority}
func (h *PermissionHandler) Revoke(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	operation, err := requiredString(req, "operation")
	if err != nil {
		return nil, err
	}
	authority, err := requiredString(req, "authority")
	if err != nil {
		return nil, err
	}

	if err := h.gate.RevokePermission(ctx, operation, authority); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}
