package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	Email        string `json:"email"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepo) List(ctx context.Context, f repository.UserListFilter) ([]model.User, int64, error) {
	args := m.Called(ctx, f)
	u, _ := args.Get(0).([]model.User)
	return u, args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepo) IncrementTokenVersion(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// =====================
// helper
// =====================

const testSecret = "test-secret"

func mustMakeJWT(t *testing.T, secret string, sub any, role string, tv int, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	token := jwt.NewWithClaims(signingMethod, claims)

	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func okHandler(c echo.Context) error {
	res := mwOKResponse{}
	res.UserID, _ = c.Get(CtxUserIDKey).(int64)
	res.Role, _ = c.Get(CtxUserRoleKey).(string)
	res.TokenVersion, _ = c.Get(CtxTokenVersionKey).(int)
	if u := UserFrom(c); u != nil {
		res.Email = u.Email
	}
	return c.JSON(http.StatusOK, res)
}

// =====================
// AuthJWT
// =====================

// Authorizationなし => 401
func TestMiddleware_AuthJWT_Unauthorized_NoHeader(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", okHandler, AuthJWT(cfg))

	rec := runRequest(t, e, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
}

// Bearer以外 / 署名違い / アルゴリズム違い => 401
func TestMiddleware_AuthJWT_Unauthorized_BadTokens(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", okHandler, AuthJWT(cfg))

	cases := map[string]string{
		"basic scheme":    "Basic abc",
		"wrong secret":    "Bearer " + mustMakeJWT(t, "other", "1", "USER", 0, jwt.SigningMethodHS256),
		"wrong algorithm": "Bearer " + mustMakeJWT(t, testSecret, "1", "USER", 0, jwt.SigningMethodHS512),
		"no role":         "Bearer " + mustMakeJWT(t, testSecret, "1", "", 0, jwt.SigningMethodHS256),
		"bad sub":         "Bearer " + mustMakeJWT(t, testSecret, "abc", "USER", 0, jwt.SigningMethodHS256),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runRequest(t, e, http.MethodGet, "/protected", header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

// 正常 => contextにuser_id/role/tv
func TestMiddleware_AuthJWT_OK(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", okHandler, AuthJWT(cfg))

	token := mustMakeJWT(t, testSecret, "42", "ADMIN", 3, jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeMWOK(t, rec)
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "ADMIN", body.Role)
	assert.Equal(t, 3, body.TokenVersion)
}

// cookieのトークンでも通る
func TestMiddleware_AuthJWT_Cookie(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", okHandler, AuthJWT(cfg))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: mustMakeJWT(t, testSecret, float64(7), "USER", 0, jwt.SigningMethodHS256)})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), decodeMWOK(t, rec).UserID)
}

// 匿名でも通る。不正なトークンは無視
func TestMiddleware_OptionalAuthJWT(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/shop", okHandler, OptionalAuthJWT(cfg))

	rec := runRequest(t, e, http.MethodGet, "/shop", "Bearer broken")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decodeMWOK(t, rec).UserID)
}

// =====================
// TokenVersionGuard / StaffGuard
// =====================

func TestMiddleware_TokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	repo := new(MockUserRepo)
	repo.On("FindByID", mock.Anything, int64(5)).Return(&model.User{ID: 5, Email: "a@example.com", Role: model.RoleUser, IsActive: true, TokenVersion: 2}, nil)

	e := echo.New()
	e.GET("/me", okHandler, AuthJWT(cfg), TokenVersionGuard(repo))

	// tv一致
	rec := runRequest(t, e, http.MethodGet, "/me", "Bearer "+mustMakeJWT(t, testSecret, "5", "USER", 2, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@example.com", decodeMWOK(t, rec).Email)

	// ログアウト済み（tvが古い）
	rec = runRequest(t, e, http.MethodGet, "/me", "Bearer "+mustMakeJWT(t, testSecret, "5", "USER", 1, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_OptionalTokenVersionGuard_StaleTokenIsAnonymous(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	repo := new(MockUserRepo)
	repo.On("FindByID", mock.Anything, int64(5)).Return(&model.User{ID: 5, IsActive: true, TokenVersion: 9}, nil)

	e := echo.New()
	e.GET("/shop", okHandler, OptionalAuthJWT(cfg), OptionalTokenVersionGuard(repo))

	rec := runRequest(t, e, http.MethodGet, "/shop", "Bearer "+mustMakeJWT(t, testSecret, "5", "USER", 1, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeMWOK(t, rec)
	assert.Equal(t, int64(0), body.UserID)
	assert.Equal(t, "", body.Email)
}

func TestMiddleware_StaffGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	repo := new(MockUserRepo)
	repo.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, Role: model.RoleUser, IsActive: true}, nil)
	repo.On("FindByID", mock.Anything, int64(2)).Return(&model.User{ID: 2, Role: model.RoleAdmin, IsActive: true}, nil)

	e := echo.New()
	e.GET("/dashboard", okHandler, AuthJWT(cfg), TokenVersionGuard(repo), StaffGuard())

	rec := runRequest(t, e, http.MethodGet, "/dashboard", "Bearer "+mustMakeJWT(t, testSecret, "1", "USER", 0, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runRequest(t, e, http.MethodGet, "/dashboard", "Bearer "+mustMakeJWT(t, testSecret, "2", "ADMIN", 0, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusOK, rec.Code)
}
