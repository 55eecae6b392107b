package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradecopier/copier/internal/model"
)

func TestHashAndVerifyPassword(t *testing.T) {
	svc := NewService("test-signing-key", time.Hour)

	hash, err := svc.HashPassword("correct-horse")
	require.NoError(t, err)
	require.NotEqual(t, "correct-horse", hash)

	require.NoError(t, svc.VerifyPassword(hash, "correct-horse"))
	require.ErrorIs(t, svc.VerifyPassword(hash, "wrong"), ErrInvalidCredentials)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-signing-key", time.Hour)
	orgID := "org-1"
	user := &model.User{ID: "user-1", OrganisationID: &orgID, Role: model.RoleAdmin}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "org-1", *claims.OrganisationID)
	require.Equal(t, string(model.RoleAdmin), claims.Role)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	svc := NewService("test-signing-key", -time.Minute)
	user := &model.User{ID: "user-1", Role: model.RoleUser}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RejectsTamperedSignature(t *testing.T) {
	issuer := NewService("issuer-key", time.Hour)
	verifier := NewService("different-key", time.Hour)
	user := &model.User{ID: "user-1", Role: model.RoleUser}

	token, err := issuer.GenerateToken(user)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
