package handler

import (
	"net/http"

	"storefront/internal/infra/session"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /checkout のHTTP
type CheckoutHandler struct {
	uc           *usecase.CheckoutUsecase
	store        *session.Store
	cookieSecure bool
}

// DI
func NewCheckoutHandler(uc *usecase.CheckoutUsecase, store *session.Store, cookieSecure bool) *CheckoutHandler {
	return &CheckoutHandler{uc: uc, store: store, cookieSecure: cookieSecure}
}

type checkoutSummaryRequest struct {
	Email      *string `json:"email" form:"email"`
	EmployeeID *string `json:"employeeid" form:"employeeid"`
	// "save" なら保存だけして注文しない
	Action string `json:"action" form:"action"`
}

type checkoutSummaryResponse struct {
	usecase.CheckoutSummaryOutput
	Messages map[string][]string `json:"messages,omitempty"`
}

type placeOrderResponse struct {
	OrderToken    string `json:"order_token"`
	Next          string `json:"next"`
	Message       string `json:"message"`
	StockAdjusted bool   `json:"stock_adjusted"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/checkout", mw.Optional...)
	g.Use(mw.Cart, mw.Checkout)
	g.GET("/summary", h.summary)
	g.POST("/summary", h.submit)
}

// GET /checkout/summary
func (h *CheckoutHandler) summary(c echo.Context) error {
	out, err := h.uc.Summary(c.Request().Context(), middleware.CheckoutFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	flashes, _ := h.store.Flashes(c.Response(), c.Request())
	return c.JSON(http.StatusOK, checkoutSummaryResponse{CheckoutSummaryOutput: out, Messages: flashes})
}

// POST /checkout/summary
func (h *CheckoutHandler) submit(c echo.Context) error {
	co := middleware.CheckoutFrom(c)

	var req checkoutSummaryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	if err := h.uc.UpdateDetails(co, usecase.CheckoutDetailsInput{
		Email:      req.Email,
		EmployeeID: req.EmployeeID,
	}); err != nil {
		return h.fail(c, err)
	}
	if req.Action == "save" {
		if wantsJSON(c) {
			return c.JSON(http.StatusOK, SuccessResponse{Message: "saved"})
		}
		return seeOther(c, "/checkout/summary")
	}

	res, err := h.uc.PlaceOrder(c.Request().Context(), co)
	if err != nil {
		if he, ok := usecase.AsHTTPError(err); ok && isDuplicateSubmit(he) && co.Cart != nil {
			// 二重送信は既存の注文へ
			next := h.uc.ExistingOrderPath(co.Cart.Token)
			if wantsJSON(c) {
				return c.JSON(http.StatusConflict, map[string]string{"error": he.Message, "next": next})
			}
			_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashWarning, he.Message)
			return seeOther(c, next)
		}
		return h.fail(c, err)
	}

	// 注文後はログアウトしてカートも手放す
	clearAccessCookie(c, h.cookieSecure)
	h.store.ClearCartToken(c.Response())

	next := "/orders/" + res.Order.Token
	if wantsJSON(c) {
		body := placeOrderResponse{
			OrderToken:    res.Order.Token,
			Next:          next,
			Message:       res.Message,
			StockAdjusted: res.StockAdjusted,
		}
		return c.JSON(http.StatusCreated, body)
	}

	if res.StockAdjusted {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashWarning, usecase.MsgStockAdjusted)
	}
	_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashSuccess, res.Message)
	return seeOther(c, next)
}

// 在庫不足や更新競合も409だが、その場合は注文が無いので確認画面に戻す
func isDuplicateSubmit(he *usecase.HTTPError) bool {
	return he.Status == http.StatusConflict && he.Message == usecase.MsgAlreadySubmitted
}

// フォームならフラッシュに積んで確認画面へ戻す
func (h *CheckoutHandler) fail(c echo.Context, err error) error {
	if wantsJSON(c) {
		return writeError(c, err)
	}

	he, ok := usecase.AsHTTPError(err)
	switch {
	case ok && he.Status == http.StatusBadRequest && len(he.Fields) > 0:
		for field, msg := range he.Fields {
			_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, field+": "+msg)
		}
	case ok && he.Status == http.StatusBadRequest:
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, he.Message)
	default:
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashWarning, "We could not place your order. Please try again.")
	}
	return seeOther(c, "/checkout/summary")
}
