package handler

import (
	"errors"
	"net/http"
	"time"

	"storefront/internal/infra/session"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /account のHTTP
type AuthHandler struct {
	uc           *usecase.AuthUsecase
	store        *session.Store
	accessTTL    time.Duration
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(uc *usecase.AuthUsecase, store *session.Store, accessTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{uc: uc, store: store, accessTTL: accessTTL, cookieSecure: cookieSecure}
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Next     string `json:"next" form:"next"`
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/account")
	g.POST("/login", h.login)
	g.POST("/logout", h.logout, mw.Required...)
	g.GET("/me", h.me, mw.Required...)
}

// POST /account/login
func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	res, err := h.uc.Login(c.Request().Context(), usecase.AuthLoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}, h.store.CartToken(c.Request()))
	if err != nil {
		return writeAuthError(c, err)
	}

	h.setAccessCookie(c, res.Body.Token.AccessToken)
	if res.CartAssigned {
		// 匿名カートはユーザーのカートになった
		h.store.ClearCartToken(c.Response())
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, res.Body)
	}
	return seeOther(c, safeNext(req.Next, "/"))
}

// POST /account/logout
func (h *AuthHandler) logout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	if err := h.uc.Logout(c.Request().Context(), userID); err != nil {
		return writeAuthError(c, err)
	}
	h.clearAccessCookie(c)

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, SuccessResponse{Message: "logout success"})
	}
	return seeOther(c, "/")
}

func (h *AuthHandler) me(c echo.Context) error {
	userID, _ := getUserIDFromContext(c)
	u, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func writeAuthError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "user is inactive"})
	case errors.Is(err, usecase.ErrInternal):
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	return writeError(c, err)
}

func (h *AuthHandler) setAccessCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearAccessCookie(c echo.Context) {
	clearAccessCookie(c, h.cookieSecure)
}

// 注文確定後のログアウトでも使う
func clearAccessCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
	})
}
