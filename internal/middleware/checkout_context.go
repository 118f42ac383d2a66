package middleware

import (
	"storefront/internal/infra/session"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// *usecase.Checkout
const CtxCheckoutKey = "checkout"

// CheckoutContext はCartContextの後ろで使う。
// セッションからチェックアウト状態を復元し、変更があればレスポンス前に書き戻す
func CheckoutContext(store *session.Store, languages *session.LanguageMatcher, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			co := usecase.NewCheckout(
				CartFrom(c),
				UserFrom(c),
				store.TrackingID(res, req),
				languages.Negotiate(req.Header.Get("Accept-Language")),
			)
			co.LoadStorage(store.CheckoutStorage(req))
			c.Set(CtxCheckoutKey, co)

			// ヘッダーを書く前でないとcookieを出せない
			res.Before(func() {
				if !co.IsModified() {
					return
				}
				var raw []byte
				var err error
				if !co.IsCleared() {
					raw, err = co.ForStorage()
				}
				if err == nil {
					err = store.SaveCheckoutStorage(res, req, raw)
				}
				if err != nil {
					log.Warn("save checkout storage", zap.Error(err))
				}
			})

			return next(c)
		}
	}
}

func CheckoutFrom(c echo.Context) *usecase.Checkout {
	co, _ := c.Get(CtxCheckoutKey).(*usecase.Checkout)
	return co
}
