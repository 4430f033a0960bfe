package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIssuedToken(t *testing.T) {
	token, err := IssueToken("secret", Identity{UserID: "u1", Name: "Alice", Role: "patient"}, time.Hour)
	require.NoError(t, err)

	id, err := NewJWTVerifier("secret").Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Name: "Alice", Role: "patient"}, id)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier("other").Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token, err := IssueToken("secret", Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret").Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	token, err := IssueToken("secret", Identity{Name: "nobody"}, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret").Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewJWTVerifier("secret")

	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
