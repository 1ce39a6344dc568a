package database

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsKeyConflictErr(t *testing.T) {
	assert.True(t, IsKeyConflictErr(ErrKeyConflict))
	assert.True(t, IsKeyConflictErr(errors.Wrap(ErrKeyConflict, "insert")))
	assert.True(t, IsKeyConflictErr(errors.Wrap(&pgconn.PgError{Code: "23505"}, "insert")))
	assert.False(t, IsKeyConflictErr(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsKeyConflictErr(errors.New("other")))
}

func TestIsRecordNotFoundErr(t *testing.T) {
	assert.True(t, IsRecordNotFoundErr(ErrNotFound))
	assert.True(t, IsRecordNotFoundErr(errors.Wrap(pgx.ErrNoRows, "get")))
	assert.False(t, IsRecordNotFoundErr(ErrKeyConflict))
}
