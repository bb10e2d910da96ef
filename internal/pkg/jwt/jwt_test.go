package jwt

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService_InvalidExpiration(t *testing.T) {
	_, err := NewJWTService("secret", "forever")
	assert.Error(t, err)
}

func TestGenerateAccessToken_Claims(t *testing.T) {
	svc, err := NewJWTService("secret", "15m")
	require.NoError(t, err)

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "company-1", user.RoleManager)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Positive(t, expiresAt)

	decoded, err := svc.JWTAuth().Decode(token)
	require.NoError(t, err)

	claims, err := decoded.AsMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["user_id"])
	assert.Equal(t, "company-1", claims["company_id"])
	assert.Equal(t, "manager", claims["role"])
	assert.Equal(t, "access", claims["type"])
}
