package handlers

import (
	"context"
	"io"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"
)

// Mock Gate - implements authorization.GateInterface
type mockGate struct {
	isPermittedFunc func(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) (bool, error)
	registerFunc    func(ctx context.Context, operation, authority string) error
	revokeFunc      func(ctx context.Context, operation, authority string) error
}

func (m *mockGate) IsPermitted(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) (bool, error) {
	if m.isPermittedFunc != nil {
		return m.isPermittedFunc(ctx, operation, requiredAuthority, callerAuthorities)
	}
	return false, nil
}

func (m *mockGate) Authorize(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) error {
	return nil
}

func (m *mockGate) RegisterPermission(ctx context.Context, operation, authority string) error {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, operation, authority)
	}
	return nil
}

func (m *mockGate) RevokePermission(ctx context.Context, operation, authority string) error {
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, operation, authority)
	}
	return nil
}

// Mock FunctionalityService
type mockFunctionalityService struct {
	createFunc func(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error)
	updateFunc func(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error)
	getFunc    func(ctx context.Context, id int64) (*entities.Functionality, error)
	listFunc   func(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error)
	deleteFunc func(ctx context.Context, id int64) error
}

func (m *mockFunctionalityService) Create(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, f)
	}
	return f, nil
}

func (m *mockFunctionalityService) Update(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, f)
	}
	return f, nil
}

func (m *mockFunctionalityService) Get(ctx context.Context, id int64) (*entities.Functionality, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repositories.ErrNotFound
}

func (m *mockFunctionalityService) List(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*entities.Functionality{}, nil
}

func (m *mockFunctionalityService) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

// Mock AuthorityService
type mockAuthorityService struct {
	createFunc func(ctx context.Context, name string) (*entities.Authority, error)
	listFunc   func(ctx context.Context) ([]*entities.Authority, error)
	deleteFunc func(ctx context.Context, name string) error
}

func (m *mockAuthorityService) Create(ctx context.Context, name string) (*entities.Authority, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, name)
	}
	return &entities.Authority{Name: name}, nil
}

func (m *mockAuthorityService) Get(ctx context.Context, name string) (*entities.Authority, error) {
	return &entities.Authority{Name: name}, nil
}

func (m *mockAuthorityService) List(ctx context.Context) ([]*entities.Authority, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*entities.Authority{}, nil
}

func (m *mockAuthorityService) Delete(ctx context.Context, name string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, name)
	}
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustStruct(m map[string]interface{}) *structpb.Struct {
	s, err := structpb.NewStruct(m)
	if err != nil {
		panic(err)
	}
	return s
}
