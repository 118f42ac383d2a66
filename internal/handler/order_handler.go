package handler

import (
	"net/http"

	"storefront/internal/infra/session"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /orders/:token（ログイン不要。トークンを知っていれば見られる）
type OrderHandler struct {
	uc    *usecase.OrderUsecase
	store *session.Store
}

func NewOrderHandler(uc *usecase.OrderUsecase, store *session.Store) *OrderHandler {
	return &OrderHandler{uc: uc, store: store}
}

type orderResponse struct {
	usecase.OrderOutput
	Messages map[string][]string `json:"messages,omitempty"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	e.GET("/orders/:token", h.details, mw.Optional...)
}

func (h *OrderHandler) details(c echo.Context) error {
	out, err := h.uc.GetByToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}
	flashes, _ := h.store.Flashes(c.Response(), c.Request())
	return c.JSON(http.StatusOK, orderResponse{OrderOutput: out, Messages: flashes})
}
