package middleware

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

// *model.User（TokenVersionGuardが入れる）
const CtxUserKey = "user"

// JWTのtvとDBのtoken_versionの一致するか確認。
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !loadUser(c, userRepo) {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			return next(c)
		}
	}
}

// OptionalAuthJWTの後ろで使う。一致しなければ匿名扱いにして通す
func OptionalTokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(CtxUserIDKey).(int64); ok && !loadUser(c, userRepo) {
				c.Set(CtxUserIDKey, nil)
				c.Set(CtxUserRoleKey, nil)
				c.Set(CtxTokenVersionKey, nil)
			}
			return next(c)
		}
	}
}

func loadUser(c echo.Context, userRepo repository.UserRepository) bool {
	//AuthJWTが入れたuser_id を取得する
	userID, ok := c.Get(CtxUserIDKey).(int64)
	if !ok || userID <= 0 {
		return false
	}

	//AuthJWTが入れたtoken_version(tv)を取得する
	tv, ok := c.Get(CtxTokenVersionKey).(int)
	if !ok || tv < 0 {
		return false
	}

	//DBから最新のuserを取得する
	user, err := userRepo.FindByID(c.Request().Context(), userID)
	if err != nil || user == nil || !user.IsActive {
		return false
	}

	//token_version が一致しなければ強制ログアウト扱い（401）
	if user.TokenVersion != tv {
		return false
	}

	c.Set(CtxUserKey, user)
	return true
}

// ログインしていなければnil
func UserFrom(c echo.Context) *model.User {
	u, _ := c.Get(CtxUserKey).(*model.User)
	return u
}
