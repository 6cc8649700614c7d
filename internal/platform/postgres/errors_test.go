package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/jobtrail-api/internal/platform/postgres"
	"github.com/phrazzld/jobtrail-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "application_batch_tasks",
		ColumnName:     "job_id",
		ConstraintName: "application_batch_tasks_batch_id_job_id_key",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		wantIs  error
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "unique violation", err: newPgError("23505"), wantIs: store.ErrDuplicate},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", newPgError("23505")), wantIs: store.ErrDuplicate},
		{name: "foreign key violation", err: newPgError("23503"), wantIs: store.ErrInvalidEntity},
		{name: "check violation", err: newPgError("23514"), wantIs: store.ErrInvalidEntity},
		{name: "not null violation", err: newPgError("23502"), wantIs: store.ErrInvalidEntity},
		{name: "unmapped pg error", err: newPgError("40001"), wantIs: nil},
		{name: "plain error passes through", err: plain, wantIs: plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tt.err)
			if tt.wantNil {
				assert.NoError(t, got)
				return
			}
			assert.Error(t, got)
			if tt.wantIs != nil {
				assert.ErrorIs(t, got, tt.wantIs)
			} else {
				assert.False(t, store.IsNotFoundError(got))
				assert.False(t, store.IsDuplicateError(got))
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503")))
	assert.False(t, postgres.IsUniqueViolation(errors.New("other")))

	assert.True(t, postgres.IsNotFoundError(sql.ErrNoRows))
	assert.True(t, postgres.IsNotFoundError(store.ErrBatchNotFound))
	assert.False(t, postgres.IsNotFoundError(errors.New("other")))
}
