package handler

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/infra/session"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cart のHTTP
type CartHandler struct {
	uc    *usecase.CartUsecase
	store *session.Store
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, store *session.Store) *CartHandler {
	return &CartHandler{uc: uc, store: store}
}

type cartResponse struct {
	usecase.CartOutput
	Messages map[string][]string `json:"messages,omitempty"`
}

type updateLineRequest struct {
	Quantity *int `json:"quantity" form:"quantity" validate:"required"`
}

type userFieldsRequest struct {
	Answers map[string]string `json:"answers"`
}

const userFieldFormPrefix = "userfield-"

func (h *CartHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/cart", mw.Optional...)
	g.Use(mw.Cart)
	g.GET("", h.index)
	g.GET("/summary", h.summary)
	g.POST("/update/:variant_id", h.update)
	g.POST("/userfields", h.saveUserFields)
	g.POST("/checkout", h.checkout)
	g.POST("/save", h.save)
}

// GET /cart
func (h *CartHandler) index(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context(), *middleware.CartFrom(c), companyIDOf(c))
	if err != nil {
		return writeError(c, err)
	}
	flashes, _ := h.store.Flashes(c.Response(), c.Request())
	return c.JSON(http.StatusOK, cartResponse{CartOutput: out, Messages: flashes})
}

// GET /cart/summary（ヘッダーのミニカート）
func (h *CartHandler) summary(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context(), *middleware.CartFrom(c), nil)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /cart/update/:variant_id
func (h *CartHandler) update(c echo.Context) error {
	variantID, err := parseID(c, "variant_id")
	if err != nil {
		return writeError(c, err)
	}
	var req updateLineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateLine(c.Request().Context(), middleware.CartFrom(c), variantID, *req.Quantity)
	if wantsJSON(c) {
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}

	if err != nil {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, errorMessage(err))
	} else if out.Message != "" {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashSuccess, out.Message)
	}
	return seeOther(c, "/cart")
}

// POST /cart/userfields
// フォームは userfield-<id>=値、JSONは {"answers": {"<id>": 値}}
func (h *CartHandler) saveUserFields(c echo.Context) error {
	answers, err := h.readAnswers(c)
	if err != nil {
		return writeError(c, err)
	}

	err = h.uc.SaveUserFields(c.Request().Context(), *middleware.CartFrom(c), companyIDOf(c), answers)
	if wantsJSON(c) {
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, SuccessResponse{Message: "saved"})
	}

	if err != nil {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, errorMessage(err))
	}
	return seeOther(c, "/cart")
}

func (h *CartHandler) readAnswers(c echo.Context) (map[int64]string, error) {
	raw := map[string]string{}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var req userFieldsRequest
		if err := c.Bind(&req); err != nil {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		raw = req.Answers
	} else {
		form, err := c.FormParams()
		if err != nil {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		for k, v := range form {
			if !strings.HasPrefix(k, userFieldFormPrefix) || len(v) == 0 {
				continue
			}
			raw[strings.TrimPrefix(k, userFieldFormPrefix)] = v[0]
		}
	}

	answers := make(map[int64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || id <= 0 {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid field id")
		}
		answers[id] = v
	}
	return answers, nil
}

// POST /cart/checkout
func (h *CartHandler) checkout(c echo.Context) error {
	adjusted, err := h.uc.PrepareCheckout(c.Request().Context(), middleware.CartFrom(c))
	if wantsJSON(c) {
		if err != nil {
			return writeError(c, err)
		}
		body := map[string]any{"next": "/checkout/summary", "stock_adjusted": adjusted}
		if adjusted {
			body["message"] = usecase.MsgStockAdjusted
		}
		return c.JSON(http.StatusOK, body)
	}

	if err != nil {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, errorMessage(err))
		return seeOther(c, "/cart")
	}
	if adjusted {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashWarning, usecase.MsgStockAdjusted)
	}
	return seeOther(c, "/checkout/summary")
}

// POST /cart/save
func (h *CartHandler) save(c echo.Context) error {
	err := h.uc.SaveForLater(c.Request().Context(), middleware.CartFrom(c))
	if err == nil && middleware.UserFrom(c) == nil {
		// 匿名カートは次のアクセスで新しいトークンになる
		h.store.ClearCartToken(c.Response())
	}
	if wantsJSON(c) {
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, SuccessResponse{Message: "cart saved"})
	}

	if err != nil {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, errorMessage(err))
	} else {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashSuccess, "Cart saved.")
	}
	return seeOther(c, "/cart")
}
