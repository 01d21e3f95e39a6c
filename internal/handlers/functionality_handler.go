package handlers

import (
	"context"

	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// FunctionalityHandler handles FunctionalityService gRPC requests
type FunctionalityHandler struct {
	service services.FunctionalityServiceInterface
}

// NewFunctionalityHandler creates a new FunctionalityHandler
func NewFunctionalityHandler(service services.FunctionalityServiceInterface) *FunctionalityHandler {
	return &FunctionalityHandler{service: service}
}

// Create handles the Create RPC. Request: {name, authority}
func (h *FunctionalityHandler) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := structToFunctionality(req)
	if err != nil {
		return nil, err
	}

	created, err := h.service.Create(ctx, f)
	if err != nil {
		return nil, toStatus(err)
	}

	return functionalityToStruct(created), nil
}

// Update handles the Update RPC. Request: {id, name, authority}
func (h *FunctionalityHandler) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := structToFunctionality(req)
	if err != nil {
		return nil, err
	}

	updated, err := h.service.Update(ctx, f)
	if err != nil {
		return nil, toStatus(err)
	}

	return functionalityToStruct(updated), nil
}

// Get handles the Get RPC. Request: {id}
func (h *FunctionalityHandler) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := int64Field(req, "id")
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	f, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}

	return functionalityToStruct(f), nil
}

// List handles the List RPC. Request: {name?, authority?, limit?, offset?}
func (h *FunctionalityHandler) List(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	filter := &repositories.FunctionalityFilter{}

	var err error
	if filter.Name, err = stringField(req, "name"); err != nil {
		return nil, err
	}
	if filter.AuthorityName, err = stringField(req, "authority"); err != nil {
		return nil, err
	}
	limit, err := int64Field(req, "limit")
	if err != nil {
		return nil, err
	}
	offset, err := int64Field(req, "offset")
	if err != nil {
		return nil, err
	}
	filter.Limit = int(limit)
	filter.Offset = int(offset)

	list, err := h.service.List(ctx, filter)
	if err != nil {
		return nil, toStatus(err)
	}

	values := make([]*structpb.Value, 0, len(list))
	for _, f := range list {
		values = append(values, structpb.NewStructValue(functionalityToStruct(f)))
	}
	return &structpb.ListValue{Values: values}, nil
}

// Delete handles the Delete RPC. Request: {id}
func (h *FunctionalityHandler) Delete(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	id, err := int64Field(req, "id")
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	if err := h.service.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}
