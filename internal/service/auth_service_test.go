package service

import (
	"context"
	"testing"
	"time"

	"github.com/skedlab/extractor-api/internal/config"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	cfg := &config.JWTConfig{
		Secret: "test-secret",
		TTL:    time.Hour,
	}
	return NewAuthService(memstorage.NewUserRepositoryMock(), cfg, zap.NewNop())
}

func TestLoginAndValidate(t *testing.T) {
	svc := newAuthFixture(t)

	token, err := svc.Login(context.Background(), "admin", "adminpassword")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	ownerID, err := claims.OwnerID()
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", ownerID.String())
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "nobody", "adminpassword")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ierr.ErrInvalidToken)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthFixture(t)

	token, err := svc.Login(context.Background(), "admin", "adminpassword")
	require.NoError(t, err)

	other := NewAuthService(memstorage.NewUserRepositoryMock(), &config.JWTConfig{
		Secret: "different-secret",
		TTL:    time.Hour,
	}, zap.NewNop())

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ierr.ErrInvalidToken)
}
