package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/testutil"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// AuthValidator モック
// =====================

type AuthValidatorMock struct {
	mock.Mock
}

func (m *AuthValidatorMock) ValidateLogin(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *AuthValidatorMock) ValidateStaff(ctx context.Context, email string, password string, creating bool) error {
	args := m.Called(ctx, email, password, creating)
	return args.Error(0)
}

var _ AuthValidator = (*AuthValidatorMock)(nil)

const testJWTSecret = "test-secret"

func seedLoginUser(t *testing.T, env *testEnv, email, password string, active bool) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := testutil.SeedUser(t, env.db, email, nil)
	require.NoError(t, env.db.Model(&model.User{}).Where("id = ?", u.ID).
		Updates(map[string]any{"password_hash": string(hash), "is_active": active}).Error)
	return u
}

func newAuthUsecase(env *testEnv, v AuthValidator) *AuthUsecase {
	cfg := config.Config{JWTSecret: testJWTSecret, JWTAccessTTL: time.Hour}
	return NewAuthUsecase(cfg, infraRepo.NewUserGormRepository(env.db), v, env.cartUsecase(nil), env.clock, zap.NewNop())
}

func TestAuthUsecase_Login_IssuesTokenAndAssignsCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedLoginUser(t, env, "buyer@example.com", "password123", true)
	anon := testutil.SeedCart(t, env.db, nil)

	v := new(AuthValidatorMock)
	v.On("ValidateLogin", mock.Anything, "buyer@example.com", "password123").Return(nil).Once()

	res, err := newAuthUsecase(env, v).Login(ctx, AuthLoginRequest{Email: "buyer@example.com", Password: "password123"}, anon.Token)
	require.NoError(t, err)
	v.AssertExpectations(t)

	assert.True(t, res.CartAssigned)
	assert.Equal(t, user.ID, res.Body.User.ID)
	assert.Equal(t, 3600, res.Body.Token.ExpiresIn)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(res.Body.Token.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	}, jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	assert.Equal(t, itoa64(user.ID), claims["sub"])
	assert.Equal(t, "USER", claims["role"])

	cart, err := env.carts.FindByID(ctx, anon.ID)
	require.NoError(t, err)
	require.NotNil(t, cart.UserID)
	assert.Equal(t, user.ID, *cart.UserID)
}

func TestAuthUsecase_Login_Failures(t *testing.T) {
	env := newTestEnv(t)
	seedLoginUser(t, env, "active@example.com", "password123", true)
	seedLoginUser(t, env, "inactive@example.com", "password123", false)

	v := new(AuthValidatorMock)
	v.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	uc := newAuthUsecase(env, v)

	cases := []struct {
		name  string
		email string
		pw    string
		want  error
	}{
		{"unknown user", "nobody@example.com", "password123", ErrUnauthorized},
		{"wrong password", "active@example.com", "wrong-password", ErrUnauthorized},
		{"inactive", "inactive@example.com", "password123", ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Login(context.Background(), AuthLoginRequest{Email: tc.email, Password: tc.pw}, "")
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestAuthUsecase_Logout_BumpsTokenVersion(t *testing.T) {
	env := newTestEnv(t)
	user := seedLoginUser(t, env, "buyer@example.com", "password123", true)
	uc := newAuthUsecase(env, new(AuthValidatorMock))

	require.NoError(t, uc.Logout(context.Background(), user.ID))

	me, err := uc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.TokenVersion+1, me.TokenVersion)

	assert.True(t, errors.Is(uc.Logout(context.Background(), 0), ErrUnauthorized))
}
