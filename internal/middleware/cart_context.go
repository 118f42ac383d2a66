package middleware

import (
	"context"

	"storefront/internal/domain/model"
	"storefront/internal/infra/session"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// *model.Cart
const CtxCartKey = "cart"

type CartResolver interface {
	ResolveUserCart(ctx context.Context, userID int64) (model.Cart, error)
	ResolveAnonymousCart(ctx context.Context, token string) (model.Cart, bool, error)
}

// CartContext はリクエストのカートを決めてcontextに入れる。
// ログイン中はユーザーのOPENカート、匿名はcookieのトークンのカート（無ければ作ってcookieを出す）
func CartContext(carts CartResolver, store *session.Store, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var cart model.Cart
			if user := UserFrom(c); user != nil {
				uc, err := carts.ResolveUserCart(ctx, user.ID)
				if err != nil {
					return writeMiddlewareError(c, err)
				}
				cart = uc
			} else {
				token := store.CartToken(c.Request())
				ac, created, err := carts.ResolveAnonymousCart(ctx, token)
				if err != nil {
					return writeMiddlewareError(c, err)
				}
				if created || ac.Token != token {
					if err := store.SetCartToken(c.Response(), ac.Token); err != nil {
						log.Warn("set cart cookie", zap.Error(err))
					}
				}
				cart = ac
			}

			c.Set(CtxCartKey, &cart)
			return next(c)
		}
	}
}

func CartFrom(c echo.Context) *model.Cart {
	cart, _ := c.Get(CtxCartKey).(*model.Cart)
	return cart
}

func writeMiddlewareError(c echo.Context, err error) error {
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, errorJSON(he.Message))
	}
	return c.JSON(500, errorJSON("internal error"))
}
