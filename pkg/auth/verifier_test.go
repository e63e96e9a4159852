package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-unit-tests")

func TestJWTVerifier_ValidToken(t *testing.T) {
	principal := &Principal{
		ID:          "user-123",
		Email:       "jo@example.com",
		DisplayName: "Jo Example",
	}

	token, err := SignToken(testSecret, "hseai-idp", principal, time.Hour)
	require.NoError(t, err)

	verifier := NewJWTVerifier(testSecret, "hseai-idp")
	got, err := verifier.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", got.ID)
	assert.Equal(t, "jo@example.com", got.Email)
	assert.Equal(t, "Jo Example", got.DisplayName)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	token, err := SignToken([]byte("other-secret"), "hseai-idp", &Principal{ID: "user-123"}, time.Hour)
	require.NoError(t, err)

	verifier := NewJWTVerifier(testSecret, "hseai-idp")
	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	token, err := SignToken(testSecret, "hseai-idp", &Principal{ID: "user-123"}, -2*time.Minute)
	require.NoError(t, err)

	verifier := NewJWTVerifier(testSecret, "hseai-idp")
	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestJWTVerifier_WrongIssuer(t *testing.T) {
	token, err := SignToken(testSecret, "someone-else", &Principal{ID: "user-123"}, time.Hour)
	require.NoError(t, err)

	verifier := NewJWTVerifier(testSecret, "hseai-idp")
	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	token, err := SignToken(testSecret, "hseai-idp", &Principal{Email: "no-id@example.com"}, time.Hour)
	require.NoError(t, err)

	verifier := NewJWTVerifier(testSecret, "hseai-idp")
	_, err = verifier.Verify(token)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subject")
}

func TestJWTVerifier_Garbage(t *testing.T) {
	verifier := NewJWTVerifier(testSecret, "")
	_, err := verifier.Verify("not-a-token")
	assert.Error(t, err)
}
