package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/services"
	"github.com/asakaida/kanmon/internal/services/authorization"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// === Shared Helper Functions for all handlers ===

// toStatus maps domain errors to gRPC status errors.
// Denials always carry the same message so callers learn nothing about the registry.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, authorization.ErrForbidden):
		return status.Error(codes.PermissionDenied, authorization.ErrForbidden.Error())
	case errors.Is(err, authorization.ErrRegistryUnavailable):
		return status.Error(codes.Unavailable, authorization.ErrRegistryUnavailable.Error())
	case errors.Is(err, authorization.ErrInvalidArgument),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrIDExists),
		errors.Is(err, services.ErrIDRequired),
		errors.Is(err, repositories.ErrAuthorityNotFound):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, repositories.ErrDuplicateFunctionality):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, repositories.ErrAuthorityInUse):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func fieldError(key, want string) error {
	return status.Errorf(codes.InvalidArgument, "field %q must be a %s", key, want)
}

// stringField returns a string field; absent fields are empty
func stringField(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok || isNull(v) {
		return "", nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fieldError(key, "string")
	}
	return sv.StringValue, nil
}

// requiredString returns a non-empty string field
func requiredString(s *structpb.Struct, key string) (string, error) {
	v, err := stringField(s, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

// int64Field returns an integral number field; absent fields are zero
func int64Field(s *structpb.Struct, key string) (int64, error) {
	v, ok := s.GetFields()[key]
	if !ok || isNull(v) {
		return 0, nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fieldError(key, "number")
	}
	n := nv.NumberValue
	if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
		return 0, fieldError(key, "integer")
	}
	return int64(n), nil
}

// stringListField returns a list of strings and whether the field was present
func stringListField(s *structpb.Struct, key string) ([]string, bool, error) {
	v, ok := s.GetFields()[key]
	if !ok || isNull(v) {
		return nil, false, nil
	}
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, true, fieldError(key, "list of strings")
	}

	result := make([]string, 0, len(lv.ListValue.GetValues()))
	for i, item := range lv.ListValue.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, true, status.Errorf(codes.InvalidArgument, "field %q item %d must be a string", key, i)
		}
		result = append(result, sv.StringValue)
	}
	return result, true, nil
}

func isNull(v *structpb.Value) bool {
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func functionalityToStruct(f *entities.Functionality) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         structpb.NewNumberValue(float64(f.ID)),
		"name":       structpb.NewStringValue(f.Name),
		"authority":  structpb.NewStringValue(f.AuthorityName),
		"created_at": structpb.NewStringValue(formatTime(f.CreatedAt)),
		"updated_at": structpb.NewStringValue(formatTime(f.UpdatedAt)),
	}}
}

func authorityToStruct(a *entities.Authority) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":       structpb.NewStringValue(a.Name),
		"created_at": structpb.NewStringValue(formatTime(a.CreatedAt)),
	}}
}

// structToFunctionality reads id, name and authority from a request
func structToFunctionality(s *structpb.Struct) (*entities.Functionality, error) {
	id, err := int64Field(s, "id")
	if err != nil {
		return nil, err
	}
	name, err := stringField(s, "name")
	if err != nil {
		return nil, err
	}
	authority, err := stringField(s, "authority")
	if err != nil {
		return nil, err
	}
	return &entities.Functionality{ID: id, Name: name, AuthorityName: authority}, nil
}

// FunctionalityFromStruct converts a service response back into an entity.
// Used by clients of the gRPC API.
func FunctionalityFromStruct(s *structpb.Struct) (*entities.Functionality, error) {
	f, err := structToFunctionality(s)
	if err != nil {
		return nil, err
	}
	if f.CreatedAt, err = timeField(s, "created_at"); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = timeField(s, "updated_at"); err != nil {
		return nil, err
	}
	return f, nil
}

// AuthorityFromStruct converts a service response back into an entity
func AuthorityFromStruct(s *structpb.Struct) (*entities.Authority, error) {
	name, err := stringField(s, "name")
	if err != nil {
		return nil, err
	}
	createdAt, err := timeField(s, "created_at")
	if err != nil {
		return nil, err
	}
	return &entities.Authority{Name: name, CreatedAt: createdAt}, nil
}

// timeField parses an RFC 3339 timestamp; absent or empty is the zero time
func timeField(s *structpb.Struct, key string) (time.Time, error) {
	raw, err := stringField(s, key)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}
