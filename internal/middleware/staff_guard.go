package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// StaffGuard は/dashboard用。TokenVersionGuardが入れたDBのユーザーで判定する
// （JWTのroleは発行時点の値なので見ない）
func StaffGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFrom(c)
			switch {
			case user == nil:
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			case !user.IsStaff():
				return c.JSON(http.StatusForbidden, errorJSON("staff only"))
			}
			return next(c)
		}
	}
}
