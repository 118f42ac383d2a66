package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/infra/session"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCartResolver struct {
	mock.Mock
}

func (m *MockCartResolver) ResolveUserCart(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Cart), args.Error(1)
}

func (m *MockCartResolver) ResolveAnonymousCart(ctx context.Context, token string) (model.Cart, bool, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(model.Cart), args.Bool(1), args.Error(2)
}

func testStore() *session.Store {
	return session.New(config.Config{
		GoEnv:         "test",
		SessionSecret: "session-secret-session-secret-32",
		CookieHashKey: "hash-key-hash-key-hash-key-hash!",
	})
}

func cartHandler(c echo.Context) error {
	cart := CartFrom(c)
	if cart == nil {
		return c.String(http.StatusInternalServerError, "no cart")
	}
	return c.String(http.StatusOK, cart.Token)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// 匿名で初回 => カートを作ってcookieを出す
func TestCartContext_AnonymousCreatesCookie(t *testing.T) {
	store := testStore()
	carts := new(MockCartResolver)
	carts.On("ResolveAnonymousCart", mock.Anything, "").Return(model.Cart{ID: 1, Token: "tok-1"}, true, nil)

	e := echo.New()
	e.GET("/cart", cartHandler, CartContext(carts, store, zap.NewNop()))

	rec := runRequest(t, e, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", rec.Body.String())

	ck := findCookie(rec, session.CartCookieName)
	require.NotNil(t, ck)

	// 次のリクエストではcookieのトークンで引く
	carts.On("ResolveAnonymousCart", mock.Anything, "tok-1").Return(model.Cart{ID: 1, Token: "tok-1"}, false, nil)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "tok-1", rec.Body.String())
	assert.Nil(t, findCookie(rec, session.CartCookieName))
	carts.AssertExpectations(t)
}

// ログイン中はユーザーのカート
func TestCartContext_UserCart(t *testing.T) {
	store := testStore()
	carts := new(MockCartResolver)
	carts.On("ResolveUserCart", mock.Anything, int64(9)).Return(model.Cart{ID: 3, Token: "user-tok"}, nil)

	e := echo.New()
	withUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(CtxUserKey, &model.User{ID: 9, IsActive: true})
			return next(c)
		}
	}
	e.GET("/cart", cartHandler, withUser, CartContext(carts, store, zap.NewNop()))

	rec := runRequest(t, e, http.MethodGet, "/cart", "")
	assert.Equal(t, "user-tok", rec.Body.String())
	assert.Nil(t, findCookie(rec, session.CartCookieName))
	carts.AssertNotCalled(t, "ResolveAnonymousCart", mock.Anything, mock.Anything)
}

func TestCartContext_ResolverError(t *testing.T) {
	store := testStore()
	carts := new(MockCartResolver)
	carts.On("ResolveAnonymousCart", mock.Anything, "").Return(model.Cart{}, false, usecase.ErrInternal)

	e := echo.New()
	e.GET("/cart", cartHandler, CartContext(carts, store, zap.NewNop()))

	rec := runRequest(t, e, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// 変更があればセッションcookieに書き戻される
func TestCheckoutContext_SavesWhenModified(t *testing.T) {
	store := testStore()
	carts := new(MockCartResolver)
	carts.On("ResolveAnonymousCart", mock.Anything, mock.Anything).Return(model.Cart{ID: 1, Token: "tok-1"}, false, nil)
	languages := session.NewLanguageMatcher("en", []string{"en", "ja"})

	e := echo.New()
	mws := []echo.MiddlewareFunc{
		CartContext(carts, store, zap.NewNop()),
		CheckoutContext(store, languages, zap.NewNop()),
	}
	e.GET("/read", func(c echo.Context) error {
		co := CheckoutFrom(c)
		return c.String(http.StatusOK, co.Email())
	}, mws...)
	e.POST("/write", func(c echo.Context) error {
		co := CheckoutFrom(c)
		co.SetEmail("guest@example.com")
		return c.NoContent(http.StatusNoContent)
	}, mws...)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "guest@example.com", rec.Body.String())
}
