package handlers

import (
	"context"

	"github.com/asakaida/kanmon/internal/services"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// AuthorityHandler handles AuthorityService gRPC requests
type AuthorityHandler struct {
	service services.AuthorityServiceInterface
}

// NewAuthorityHandler creates a new AuthorityHandler
func NewAuthorityHandler(service services.AuthorityServiceInterface) *AuthorityHandler {
	return &AuthorityHandler{service: service}
}

// List handles the List RPC
func (h *AuthorityHandler) List(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	list, err := h.service.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	values := make([]*structpb.Value, 0, len(list))
	for _, a := range list {
		values = append(values, structpb.NewStructValue(authorityToStruct(a)))
	}
	return &structpb.ListValue{Values: values}, nil
}

// Create handles the Create RPC. Request: {name}
func (h *AuthorityHandler) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := stringField(req, "name")
	if err != nil {
		return nil, err
	}

	a, err := h.service.Create(ctx, name)
	if err != nil {
		return nil, toStatus(err)
	}

	return authorityToStruct(a), nil
}

// Delete handles the Delete RPC. Request: {name}
func (h *AuthorityHandler) Delete(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}

	if err := h.service.Delete(ctx, name); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}
