package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer", "rolesync")

func Test_GenerateAccessToken(t *testing.T) {
	accountID := id.NewAccountID()
	token, err := jwtService.GenerateAccessToken(accountID, time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), claims.AccountID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	got, err := jwtService.AccountID(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_Expired(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(id.NewAccountID(), -time.Minute)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "someone-else")
	token, err := other.GenerateAccessToken(id.NewAccountID(), time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsOtherSigningMethods(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AccountID: id.NewAccountID().String()})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_AccountID_MissingClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Audience:  []string{"rolesync"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.AccountID(signed)
	assert.Equal(t, "token has no valid account", dErrors.MessageOf(err))
}
