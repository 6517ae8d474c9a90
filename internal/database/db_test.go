package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind models.Kind
	}{
		{"no rows", pgx.ErrNoRows, models.KindNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), models.KindNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.KindConflict},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), models.KindConflict},
		{"not null", &pgconn.PgError{Code: "23502"}, models.KindValidation},
		{"check", &pgconn.PgError{Code: "23514"}, models.KindValidation},
		{"foreign key", &pgconn.PgError{Code: "23503"}, models.KindValidation},
		{"other pg error", &pgconn.PgError{Code: "40001"}, models.KindInternal},
		{"plain error", errors.New("connection reset"), models.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, models.KindOf(MapPostgresError(tt.err)))
		})
	}

	assert.NoError(t, MapPostgresError(nil))
}

func TestMapPostgresError_ConflictKeepsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}
	mapped := MapPostgresError(pgErr)

	assert.ErrorIs(t, mapped, models.ErrConflict)
	var target *pgconn.PgError
	assert.True(t, errors.As(mapped, &target))
	assert.Equal(t, "accounts_email_key", target.ConstraintName)
}
