package handler

import (
	"net/http"

	"storefront/internal/infra/session"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products の公開ページ
type CatalogHandler struct {
	catalog *usecase.CatalogUsecase
	carts   *usecase.CartUsecase
	store   *session.Store
}

// DI
func NewCatalogHandler(catalog *usecase.CatalogUsecase, carts *usecase.CartUsecase, store *session.Store) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, carts: carts, store: store}
}

type addToCartRequest struct {
	VariantID int64          `json:"variant_id" form:"variant" validate:"required,min=1"`
	Quantity  int            `json:"quantity" form:"quantity"`
	Data      map[string]any `json:"data"`
}

func (h *CatalogHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/products", mw.Optional...)
	g.GET("/category/:id", h.category)
	g.GET("/:id", h.detail)
	g.POST("/:id/add", h.add, mw.Cart)
}

func (h *CatalogHandler) category(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	page, limit, err := pageParams(c, 24)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.catalog.CategoryProducts(c.Request().Context(), id, companyIDOf(c), page, limit, c.QueryParam("sort"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) detail(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.catalog.ProductDetail(c.Request().Context(), id, companyIDOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /products/:id/add
func (h *CatalogHandler) add(c echo.Context) error {
	productID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req addToCartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	// 他社の商品はカートに入れられない
	if _, err := h.catalog.ProductDetail(c.Request().Context(), productID, companyIDOf(c)); err != nil {
		return writeError(c, err)
	}

	out, err := h.carts.AddToCart(c.Request().Context(), middleware.CartFrom(c), usecase.AddToCartInput{
		ProductID: productID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Data:      req.Data,
	})
	if wantsJSON(c) {
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}

	if err != nil {
		_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashError, errorMessage(err))
		return seeOther(c, "/products/"+c.Param("id"))
	}
	_ = h.store.AddFlash(c.Response(), c.Request(), session.FlashSuccess, "Product added to cart.")
	return seeOther(c, "/cart")
}
