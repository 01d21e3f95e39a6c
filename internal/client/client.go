// Package client is a typed Go client for the kanmon.v1 gRPC services.
package client

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/handlers"
	"github.com/asakaida/kanmon/internal/identity"
	"github.com/asakaida/kanmon/internal/repositories"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the permission, functionality and authority services over conn
type Client struct {
	conn grpc.ClientConnInterface
}

// New wraps an established connection
func New(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// As returns ctx carrying p as the calling principal
func As(ctx context.Context, p entities.Principal) context.Context {
	return identity.OutgoingContext(ctx, p)
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]interface{}, out interface{}) error {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.conn.Invoke(ctx, method, req, out)
}

// Check asks whether callerAuthorities may perform operation guarded by authority.
// A nil callerAuthorities checks the principal carried by ctx instead.
func (c *Client) Check(ctx context.Context, operation, authority string, callerAuthorities []string) (bool, error) {
	fields := map[string]interface{}{
		"operation": operation,
		"authority": authority,
	}
	if callerAuthorities != nil {
		list := make([]interface{}, len(callerAuthorities))
		for i, a := range callerAuthorities {
			list[i] = a
		}
		fields["authorities"] = list
	}

	var resp wrapperspb.BoolValue
	if err := c.invoke(ctx, handlers.MethodCheckPermission, fields, &resp); err != nil {
		return false, err
	}
	return resp.GetValue(), nil
}

// Register grants operation to authority
func (c *Client) Register(ctx context.Context, operation, authority string) error {
	return c.invoke(ctx, handlers.MethodRegisterPermission, map[string]interface{}{
		"operation": operation,
		"authority": authority,
	}, &emptypb.Empty{})
}

// Revoke withdraws operation from authority
func (c *Client) Revoke(ctx context.Context, operation, authority string) error {
	return c.invoke(ctx, handlers.MethodRevokePermission, map[string]interface{}{
		"operation": operation,
		"authority": authority,
	}, &emptypb.Empty{})
}

// CreateFunctionality stores a new registry entry
func (c *Client) CreateFunctionality(ctx context.Context, name, authority string) (*entities.Functionality, error) {
	var resp structpb.Struct
	if err := c.invoke(ctx, handlers.MethodCreateFunctionality, map[string]interface{}{
		"name":      name,
		"authority": authority,
	}, &resp); err != nil {
		return nil, err
	}
	return handlers.FunctionalityFromStruct(&resp)
}

// UpdateFunctionality replaces name and authority of entry f.ID
func (c *Client) UpdateFunctionality(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error) {
	var resp structpb.Struct
	if err := c.invoke(ctx, handlers.MethodUpdateFunctionality, map[string]interface{}{
		"id":        float64(f.ID),
		"name":      f.Name,
		"authority": f.AuthorityName,
	}, &resp); err != nil {
		return nil, err
	}
	return handlers.FunctionalityFromStruct(&resp)
}

// GetFunctionality returns the entry with id
func (c *Client) GetFunctionality(ctx context.Context, id int64) (*entities.Functionality, error) {
	var resp structpb.Struct
	if err := c.invoke(ctx, handlers.MethodGetFunctionality, map[string]interface{}{"id": float64(id)}, &resp); err != nil {
		return nil, err
	}
	return handlers.FunctionalityFromStruct(&resp)
}

// ListFunctionalities returns the entries matching filter
func (c *Client) ListFunctionalities(ctx context.Context, filter repositories.FunctionalityFilter) ([]*entities.Functionality, error) {
	fields := map[string]interface{}{}
	if filter.Name != "" {
		fields["name"] = filter.Name
	}
	if filter.AuthorityName != "" {
		fields["authority"] = filter.AuthorityName
	}
	if filter.Limit > 0 {
		fields["limit"] = float64(filter.Limit)
	}
	if filter.Offset > 0 {
		fields["offset"] = float64(filter.Offset)
	}

	var resp structpb.ListValue
	if err := c.invoke(ctx, handlers.MethodListFunctionalities, fields, &resp); err != nil {
		return nil, err
	}

	result := make([]*entities.Functionality, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		f, err := handlers.FunctionalityFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, nil
}

// DeleteFunctionality removes the entry with id
func (c *Client) DeleteFunctionality(ctx context.Context, id int64) error {
	return c.invoke(ctx, handlers.MethodDeleteFunctionality, map[string]interface{}{"id": float64(id)}, &emptypb.Empty{})
}

// CreateAuthority creates a role
func (c *Client) CreateAuthority(ctx context.Context, name string) (*entities.Authority, error) {
	var resp structpb.Struct
	if err := c.invoke(ctx, handlers.MethodCreateAuthority, map[string]interface{}{"name": name}, &resp); err != nil {
		return nil, err
	}
	return handlers.AuthorityFromStruct(&resp)
}

// ListAuthorities returns every role
func (c *Client) ListAuthorities(ctx context.Context) ([]*entities.Authority, error) {
	var resp structpb.ListValue
	if err := c.invoke(ctx, handlers.MethodListAuthorities, nil, &resp); err != nil {
		return nil, err
	}

	result := make([]*entities.Authority, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		a, err := handlers.AuthorityFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// DeleteAuthority removes a role no entry references
func (c *Client) DeleteAuthority(ctx context.Context, name string) error {
	return c.invoke(ctx, handlers.MethodDeleteAuthority, map[string]interface{}{"name": name}, &emptypb.Empty{})
}
