package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/stretchr/testify/assert"
)

func TestDuplicateNicknameErrorWithNickname(t *testing.T) {
	nickname := "worker-1"
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_api_keys_nickname_live"}

	err := duplicateNicknameError(pgErr, &nickname)

	assert.ErrorIs(t, err, ierr.ErrDuplicateNickname)
	assert.Contains(t, err.Error(), "worker-1")
}

func TestDuplicateNicknameErrorNilNickname(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_api_keys_nickname_live"}

	err := duplicateNicknameError(pgErr, nil)

	assert.ErrorIs(t, err, ierr.ErrDuplicateNickname)
	assert.Contains(t, err.Error(), "idx_api_keys_nickname_live")
}

func TestDuplicateNicknameErrorWrapped(t *testing.T) {
	nickname := "worker-1"
	wrapped := fmt.Errorf("exec failed: %w", &pgconn.PgError{Code: "23505"})

	err := duplicateNicknameError(wrapped, &nickname)

	assert.ErrorIs(t, err, ierr.ErrDuplicateNickname)
}

func TestDuplicateNicknameErrorIgnoresOtherFailures(t *testing.T) {
	nickname := "worker-1"

	assert.Nil(t, duplicateNicknameError(errors.New("connection refused"), &nickname))
	assert.Nil(t, duplicateNicknameError(&pgconn.PgError{Code: "23503"}, &nickname))
}
