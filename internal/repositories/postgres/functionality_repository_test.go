package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var functionalityRowColumns = []string{"id", "name", "authority_name", "created_at", "updated_at"}

func TestFunctionalityRepository_Find(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("正常系: エントリあり", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(functionalityRowColumns).
			AddRow(int64(3), "deleteUser", "ROLE_ADMIN", now, now)
		mock.ExpectQuery("SELECT (.+) FROM functionalities WHERE name = (.+) AND authority_name = (.+)").
			WithArgs("deleteUser", "ROLE_ADMIN").
			WillReturnRows(rows)

		repo := NewPostgresFunctionalityRepository(db)
		f, err := repo.Find(ctx, "deleteUser", "ROLE_ADMIN")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, int64(3), f.ID)
		assert.Equal(t, "deleteUser", f.Name)
		assert.Equal(t, "ROLE_ADMIN", f.AuthorityName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("正常系: エントリなし", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM functionalities").
			WithArgs("deleteUser", "ROLE_USER").
			WillReturnRows(sqlmock.NewRows(functionalityRowColumns))

		repo := NewPostgresFunctionalityRepository(db)
		f, err := repo.Find(ctx, "deleteUser", "ROLE_USER")
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("異常系: DBエラー", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		dbErr := errors.New("connection refused")
		mock.ExpectQuery("SELECT (.+) FROM functionalities").WillReturnError(dbErr)

		repo := NewPostgresFunctionalityRepository(db)
		f, err := repo.Find(ctx, "deleteUser", "ROLE_ADMIN")
		assert.Nil(t, f)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestFunctionalityRepository_Insert(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("正常系: 挿入", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO functionalities (.+) ON CONFLICT \\(name, authority_name\\)").
			WithArgs("activateAccount", "ROLE_ANONYMOUS", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(functionalityRowColumns).
				AddRow(int64(1), "activateAccount", "ROLE_ANONYMOUS", now, now))

		repo := NewPostgresFunctionalityRepository(db)
		f, err := repo.Insert(ctx, "activateAccount", "ROLE_ANONYMOUS")
		require.NoError(t, err)
		assert.Equal(t, int64(1), f.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("異常系: 存在しない権限", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO functionalities").
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		repo := NewPostgresFunctionalityRepository(db)
		_, err = repo.Insert(ctx, "activateAccount", "ROLE_NOPE")
		assert.ErrorIs(t, err, repositories.ErrAuthorityNotFound)
	})
}

func TestFunctionalityRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Absent rows affect zero rows and are not an error
	mock.ExpectExec("DELETE FROM functionalities WHERE name = (.+) AND authority_name = (.+)").
		WithArgs("deleteUser", "ROLE_ADMIN").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresFunctionalityRepository(db)
	require.NoError(t, repo.Delete(context.Background(), "deleteUser", "ROLE_ADMIN"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFunctionalityRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM functionalities WHERE id = (.+)").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(functionalityRowColumns))

	repo := NewPostgresFunctionalityRepository(db)
	_, err = repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFunctionalityRepository_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "updated",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE functionalities").
					WithArgs("getUsers", "ROLE_ADMIN", sqlmock.AnyArg(), int64(5)).
					WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
			},
		},
		{
			name: "missing row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE functionalities").
					WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
			},
			wantErr: repositories.ErrNotFound,
		},
		{
			name: "unknown authority",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE functionalities").
					WillReturnError(&pq.Error{Code: foreignKeyViolation})
			},
			wantErr: repositories.ErrAuthorityNotFound,
		},
		{
			name: "duplicate pair",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE functionalities").
					WillReturnError(&pq.Error{Code: uniqueViolation})
			},
			wantErr: repositories.ErrDuplicateFunctionality,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			repo := NewPostgresFunctionalityRepository(db)
			f := &entities.Functionality{ID: 5, Name: "getUsers", AuthorityName: "ROLE_ADMIN"}
			err = repo.Update(ctx, f)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, f.UpdatedAt.IsZero())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFunctionalityRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(functionalityRowColumns).
		AddRow(int64(1), "getAccount", "ROLE_USER", now, now).
		AddRow(int64(2), "saveAccount", "ROLE_USER", now, now)
	mock.ExpectQuery("SELECT (.+) FROM functionalities WHERE 1 = 1 AND authority_name = \\$1 ORDER BY id LIMIT \\$2 OFFSET \\$3").
		WithArgs("ROLE_USER", 10, 20).
		WillReturnRows(rows)

	repo := NewPostgresFunctionalityRepository(db)
	got, err := repo.List(context.Background(), &repositories.FunctionalityFilter{
		AuthorityName: "ROLE_USER",
		Limit:         10,
		Offset:        20,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "saveAccount", got[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorityRepository_Delete(t *testing.T) {
	t.Run("referenced authority", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("DELETE FROM authorities").
			WithArgs("ROLE_USER").
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		repo := NewPostgresAuthorityRepository(db)
		assert.ErrorIs(t, repo.Delete(context.Background(), "ROLE_USER"), repositories.ErrAuthorityInUse)
	})

	t.Run("unreferenced authority", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("DELETE FROM authorities").
			WithArgs("ROLE_AUDITOR").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewPostgresAuthorityRepository(db)
		assert.NoError(t, repo.Delete(context.Background(), "ROLE_AUDITOR"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuthorityRepository_CreateAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO authorities").
		WithArgs("ROLE_AUDITOR", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectQuery("SELECT name, created_at FROM authorities ORDER BY name").
		WillReturnRows(sqlmock.NewRows([]string{"name", "created_at"}).
			AddRow("ROLE_ADMIN", created).
			AddRow("ROLE_AUDITOR", created))

	repo := NewPostgresAuthorityRepository(db)
	a := &entities.Authority{Name: "ROLE_AUDITOR"}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, created, a.CreatedAt)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ROLE_ADMIN", list[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
