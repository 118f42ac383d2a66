package server

import (
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
)

// RouteRegistrar は各ハンドラのルート登録
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo, mw handler.RouteMiddlewares)
}

func RegisterRoutes(e *echo.Echo, mw handler.RouteMiddlewares, hs ...RouteRegistrar) {
	for _, h := range hs {
		h.RegisterRoutes(e, mw)
	}
}
