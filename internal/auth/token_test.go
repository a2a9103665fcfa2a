// ABOUTME: Unit tests for reading the subject claim out of session tokens
// ABOUTME: Signatures are ignored; malformed tokens and missing subjects are errors

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("issuer-secret"))
	require.NoError(t, err)
	return tok
}

func TestSubjectFromToken(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "user-42"})

	sub, err := SubjectFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestSubjectFromToken_IgnoresExpiry(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	sub, err := SubjectFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestSubjectFromToken_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty token", token: "", want: ErrInvalidToken},
		{name: "garbage token", token: "not-a-jwt-token", want: ErrInvalidToken},
		{name: "no subject", token: signedToken(t, jwt.MapClaims{"name": "x"}), want: ErrMissingClaim},
		{name: "empty subject", token: signedToken(t, jwt.MapClaims{"sub": ""}), want: ErrMissingClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SubjectFromToken(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
