package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestIssueAndValidate(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Issue("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejects(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	_, err := tm.Validate("")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = tm.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenManager("other-secret", time.Hour).Issue("admin")
	require.NoError(t, err)
	_, err = tm.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	tm.ttl = -time.Minute

	token, err := tm.Issue("admin")
	require.NoError(t, err)
	_, err = tm.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	claims := &Claims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeAndPrune(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	token, err := tm.Issue("admin")
	require.NoError(t, err)
	claims, err := tm.Validate(token)
	require.NoError(t, err)

	tm.Revoke(claims)
	_, err = tm.Validate(token)
	assert.ErrorIs(t, err, ErrRevokedToken)
	assert.Equal(t, 1, tm.RevokedCount())

	assert.Zero(t, tm.PruneRevoked(time.Now()))
	assert.Equal(t, 1, tm.PruneRevoked(time.Now().Add(2*time.Hour)))
	assert.Zero(t, tm.RevokedCount())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter3"), ErrBadCredentials)
}

func TestRejectUnknownUserDoesFullBcryptWork(t *testing.T) {
	assert.ErrorIs(t, RejectUnknownUser("hunter2"), ErrBadCredentials)
	cost, err := bcrypt.Cost(dummyHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
