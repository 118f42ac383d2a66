package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/session"
	"storefront/internal/middleware"
	repo "storefront/internal/repository"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// HealthChecker はDB/Redisの疎通確認
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Cfg       config.Config
	Log       *zap.Logger
	Users     repo.UserRepository
	Carts     middleware.CartResolver
	Store     *session.Store
	Languages *session.LanguageMatcher
	// 名前 -> チェック
	Health map[string]HealthChecker
}

// New はechoを組み立ててハンドラを登録する
func New(d Deps, hs ...RouteRegistrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))

	optional := []echo.MiddlewareFunc{
		middleware.OptionalAuthJWT(d.Cfg),
		middleware.OptionalTokenVersionGuard(d.Users),
	}
	required := []echo.MiddlewareFunc{
		middleware.AuthJWT(d.Cfg),
		middleware.TokenVersionGuard(d.Users),
	}
	staff := append(append([]echo.MiddlewareFunc{}, required...), middleware.StaffGuard())

	mw := handler.RouteMiddlewares{
		Optional: optional,
		Required: required,
		Staff:    staff,
		Cart:     middleware.CartContext(d.Carts, d.Store, d.Log),
		Checkout: middleware.CheckoutContext(d.Store, d.Languages, d.Log),
	}

	e.GET("/health", healthHandler(d.Health))
	RegisterRoutes(e, mw, hs...)
	return e
}

func healthHandler(checks map[string]HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy"}
		code := http.StatusOK
		for name, hc := range checks {
			if err := hc.Ping(ctx); err != nil {
				status[name] = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "healthy"
		}
		if code != http.StatusOK {
			status["status"] = "unhealthy"
		}
		return c.JSON(code, status)
	}
}

// Start はctxがキャンセルされるまで待ち受け、その後graceful shutdownする
func Start(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return e.Shutdown(shutdownCtx)
}
