package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()

	s := NewStore()
	ctx := context.Background()
	for _, name := range []string{entities.AuthorityAdmin, entities.AuthorityUser, entities.AuthorityAnonymous} {
		if err := s.Authorities().Create(ctx, &entities.Authority{Name: name}); err != nil {
			t.Fatalf("failed to create authority %s: %v", name, err)
		}
	}
	return s
}

func TestFunctionalityRepository_InsertFind(t *testing.T) {
	s := newSeededStore(t)
	repo := s.Functionalities()
	ctx := context.Background()

	f, err := repo.Insert(ctx, "deleteUser", entities.AuthorityAdmin)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if f.ID == 0 {
		t.Error("expected a generated id")
	}

	found, err := repo.Find(ctx, "deleteUser", entities.AuthorityAdmin)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found == nil || found.ID != f.ID {
		t.Fatalf("Find() = %+v, want id %d", found, f.ID)
	}

	// Exact match only
	for _, key := range []entities.PermissionKey{
		{Operation: "deleteuser", Authority: entities.AuthorityAdmin},
		{Operation: "deleteUser", Authority: entities.AuthorityUser},
		{Operation: "deleteUser", Authority: "role_admin"},
	} {
		found, err := repo.Find(ctx, key.Operation, key.Authority)
		if err != nil {
			t.Fatalf("Find(%s) error = %v", key, err)
		}
		if found != nil {
			t.Errorf("Find(%s) = %+v, want nil", key, found)
		}
	}
}

func TestFunctionalityRepository_InsertIdempotent(t *testing.T) {
	s := newSeededStore(t)
	repo := s.Functionalities()
	ctx := context.Background()

	first, err := repo.Insert(ctx, "getAccount", entities.AuthorityUser)
	if err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	second, err := repo.Insert(ctx, "getAccount", entities.AuthorityUser)
	if err != nil {
		t.Fatalf("second Insert() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("duplicate insert created a new row: %d != %d", first.ID, second.ID)
	}

	all, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 row, got %d", len(all))
	}
}

func TestFunctionalityRepository_InsertUnknownAuthority(t *testing.T) {
	s := newSeededStore(t)

	_, err := s.Functionalities().Insert(context.Background(), "deleteUser", "ROLE_UNKNOWN")
	if !errors.Is(err, repositories.ErrAuthorityNotFound) {
		t.Errorf("Insert() error = %v, want ErrAuthorityNotFound", err)
	}
}

func TestFunctionalityRepository_Delete(t *testing.T) {
	s := newSeededStore(t)
	repo := s.Functionalities()
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "deleteUser", entities.AuthorityAdmin); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Delete(ctx, "deleteUser", entities.AuthorityAdmin); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	found, _ := repo.Find(ctx, "deleteUser", entities.AuthorityAdmin)
	if found != nil {
		t.Error("entry still present after Delete()")
	}

	// Absent pair is a no-op
	if err := repo.Delete(ctx, "deleteUser", entities.AuthorityAdmin); err != nil {
		t.Errorf("Delete() on absent pair error = %v", err)
	}
}

func TestFunctionalityRepository_Update(t *testing.T) {
	s := newSeededStore(t)
	repo := s.Functionalities()
	ctx := context.Background()

	a, _ := repo.Insert(ctx, "getUser", entities.AuthorityAdmin)
	b, _ := repo.Insert(ctx, "getUser", entities.AuthorityUser)

	t.Run("rename moves the key", func(t *testing.T) {
		err := repo.Update(ctx, &entities.Functionality{ID: a.ID, Name: "getUsers", AuthorityName: entities.AuthorityAdmin})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if old, _ := repo.Find(ctx, "getUser", entities.AuthorityAdmin); old != nil {
			t.Error("old key still resolves")
		}
		if renamed, _ := repo.Find(ctx, "getUsers", entities.AuthorityAdmin); renamed == nil || renamed.ID != a.ID {
			t.Errorf("renamed key = %+v", renamed)
		}
	})

	t.Run("collision is rejected", func(t *testing.T) {
		err := repo.Update(ctx, &entities.Functionality{ID: a.ID, Name: "getUser", AuthorityName: entities.AuthorityUser})
		if !errors.Is(err, repositories.ErrDuplicateFunctionality) {
			t.Errorf("Update() error = %v, want ErrDuplicateFunctionality", err)
		}
		if still, _ := repo.GetByID(ctx, b.ID); still == nil {
			t.Error("colliding row was modified")
		}
	})

	t.Run("missing id", func(t *testing.T) {
		err := repo.Update(ctx, &entities.Functionality{ID: 999, Name: "x", AuthorityName: entities.AuthorityUser})
		if !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestFunctionalityRepository_List(t *testing.T) {
	s := newSeededStore(t)
	repo := s.Functionalities()
	ctx := context.Background()

	if err := repositories.SeedDefaults(ctx, s.Authorities(), repo); err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}

	tests := []struct {
		name   string
		filter *repositories.FunctionalityFilter
		want   int
	}{
		{"all", nil, len(repositories.DefaultFunctionalities)},
		{"by name", &repositories.FunctionalityFilter{Name: "deleteUser"}, 1},
		{"by authority", &repositories.FunctionalityFilter{AuthorityName: entities.AuthorityUser}, 2},
		{"limit", &repositories.FunctionalityFilter{Limit: 5}, 5},
		{"offset past end", &repositories.FunctionalityFilter{Offset: 1000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d rows, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].ID >= got[i].ID {
					t.Fatalf("List() not ordered by id")
				}
			}
		})
	}
}

func TestSeedDefaultsAs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repositories.SeedDefaultsAs(ctx, s.Authorities(), s.Functionalities(), "SUPERUSER", "PUBLIC"); err != nil {
			t.Fatalf("SeedDefaultsAs() run %d error = %v", i, err)
		}
	}

	tests := []struct {
		operation string
		authority string
		want      bool
	}{
		{"deleteUser", "SUPERUSER", true},
		{"activateAccount", "PUBLIC", true},
		{"getAccount", entities.AuthorityUser, true},
		{"deleteUser", entities.AuthorityAdmin, false},
		{"activateAccount", entities.AuthorityAnonymous, false},
	}
	for _, tt := range tests {
		f, err := s.Functionalities().Find(ctx, tt.operation, tt.authority)
		if err != nil {
			t.Fatalf("Find(%s, %s) error = %v", tt.operation, tt.authority, err)
		}
		if (f != nil) != tt.want {
			t.Errorf("Find(%s, %s) found = %v, want %v", tt.operation, tt.authority, f != nil, tt.want)
		}
	}

	all, err := s.Functionalities().List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != len(repositories.DefaultFunctionalities) {
		t.Errorf("List() returned %d rows, want %d", len(all), len(repositories.DefaultFunctionalities))
	}
}

func TestAuthorityRepository_DeleteInUse(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	if _, err := s.Functionalities().Insert(ctx, "getAccount", entities.AuthorityUser); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	err := s.Authorities().Delete(ctx, entities.AuthorityUser)
	if !errors.Is(err, repositories.ErrAuthorityInUse) {
		t.Errorf("Delete() error = %v, want ErrAuthorityInUse", err)
	}

	if err := s.Authorities().Delete(ctx, entities.AuthorityAdmin); err != nil {
		t.Errorf("Delete() unreferenced authority error = %v", err)
	}
	if _, err := s.Authorities().Get(ctx, entities.AuthorityAdmin); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newSeededStore(t)
	repo := s.Functionalities()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = repo.Insert(ctx, "saveAccount", entities.AuthorityUser)
			_ = repo.Delete(ctx, "saveAccount", entities.AuthorityUser)
		}()
		go func() {
			defer wg.Done()
			if f, err := repo.Find(ctx, "saveAccount", entities.AuthorityUser); err == nil && f != nil {
				if f.Name != "saveAccount" || f.AuthorityName != entities.AuthorityUser {
					t.Errorf("observed partial entry %+v", f)
				}
			}
		}()
	}
	wg.Wait()
}

func TestStore_CanceledContext(t *testing.T) {
	s := newSeededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Functionalities().Find(ctx, "deleteUser", entities.AuthorityAdmin); !errors.Is(err, context.Canceled) {
		t.Errorf("Find() error = %v, want context.Canceled", err)
	}
}
