package service

import (
	"context"
	"testing"

	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAdminAndLogin(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db), []byte("test-secret"))
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx))
	// Seeding is a no-op once any user exists
	require.NoError(t, svc.SeedAdmin(ctx))

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	result, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, result.User.Role)

	token, err := jwt.Parse(result.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin", claims["username"])
	assert.Equal(t, model.RoleAdmin, claims["role"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db), []byte("test-secret"))
	ctx := context.Background()
	require.NoError(t, svc.SeedAdmin(ctx))

	_, err := svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
