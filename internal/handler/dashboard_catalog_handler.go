package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /dashboard のカテゴリ（会社）・カスタム項目・商品
type DashboardCatalogHandler struct {
	uc *usecase.AdminCatalogUsecase
}

func NewDashboardCatalogHandler(uc *usecase.AdminCatalogUsecase) *DashboardCatalogHandler {
	return &DashboardCatalogHandler{uc: uc}
}

type categoryRequest struct {
	Name        string `json:"name" form:"name" validate:"required,max=128"`
	Slug        string `json:"slug" form:"slug" validate:"max=128"`
	Description string `json:"description" form:"description"`
	Prices      bool   `json:"prices" form:"prices"`
	ParentID    *int64 `json:"parent_id" form:"parent"`
}

type userFieldRequest struct {
	Name        string `json:"name" form:"name" validate:"required,max=128"`
	Description string `json:"description" form:"description"`
	Required    bool   `json:"required" form:"required"`
}

type productRequest struct {
	Name        string            `json:"name" form:"name" validate:"required,max=128"`
	Description string            `json:"description" form:"description"`
	Price       int64             `json:"price" form:"price" validate:"gte=0"`
	IsPublished bool              `json:"is_published" form:"is_published"`
	CategoryIDs []int64           `json:"categories" form:"categories"`
	Attributes  map[string]string `json:"attributes"`
}

type variantRequest struct {
	SKU        string            `json:"sku" form:"sku" validate:"required,max=32"`
	Name       string            `json:"name" form:"name" validate:"max=255"`
	Attributes map[string]string `json:"attributes"`
	Stock      *int              `json:"stock" form:"stock"`
}

type stockRequest struct {
	// nullで在庫管理しない
	Stock  *int   `json:"stock" form:"stock"`
	Reason string `json:"reason" form:"reason" validate:"max=255"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

func (h *DashboardCatalogHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/dashboard", mw.Staff...)

	g.GET("/categories", h.listCategories)
	g.POST("/categories", h.createCategory)
	g.GET("/categories/:id", h.getCategory)
	g.PUT("/categories/:id", h.updateCategory)
	g.DELETE("/categories/:id", h.deleteCategory)

	g.GET("/categories/:id/userfields", h.listUserFields)
	g.POST("/categories/:id/userfields", h.createUserField)
	g.PUT("/userfields/:id", h.updateUserField)
	g.DELETE("/userfields/:id", h.deleteUserField)

	g.GET("/products", h.listProducts)
	g.POST("/products", h.createProduct)
	g.GET("/products/:id", h.getProduct)
	g.PUT("/products/:id", h.updateProduct)
	g.DELETE("/products/:id", h.deleteProduct)
	g.POST("/products/:id/variants", h.createVariant)
	g.GET("/variants/:id/stock", h.stockHistory)
	g.PUT("/variants/:id/stock", h.setStock)

	g.GET("/activity", h.activity)
}

func (h *DashboardCatalogHandler) listCategories(c echo.Context) error {
	page, limit, err := pageParams(c, 30)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.ListCategories(c.Request().Context(), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardCatalogHandler) getCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	cat, children, err := h.uc.GetCategory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"category": cat, "children": children})
}

func (h *DashboardCatalogHandler) createCategory(c echo.Context) error {
	var req categoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	id, err := h.uc.CreateCategory(c.Request().Context(), actorID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

func (h *DashboardCatalogHandler) updateCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req categoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.UpdateCategory(c.Request().Context(), actorID, id, req.toInput()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *DashboardCatalogHandler) deleteCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.DeleteCategory(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r categoryRequest) toInput() usecase.CategoryInput {
	return usecase.CategoryInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Prices:      r.Prices,
		ParentID:    r.ParentID,
	}
}

func (h *DashboardCatalogHandler) listUserFields(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	fields, err := h.uc.ListUserFields(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, fields)
}

func (h *DashboardCatalogHandler) createUserField(c echo.Context) error {
	companyID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req userFieldRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	id, err := h.uc.CreateUserField(c.Request().Context(), actorID, companyID, usecase.UserFieldInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

func (h *DashboardCatalogHandler) updateUserField(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req userFieldRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.UpdateUserField(c.Request().Context(), actorID, id, usecase.UserFieldInput(req)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *DashboardCatalogHandler) deleteUserField(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.DeleteUserField(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GET /dashboard/products?q=&category=&published=&sort=
func (h *DashboardCatalogHandler) listProducts(c echo.Context) error {
	page, limit, err := pageParams(c, 30)
	if err != nil {
		return writeError(c, err)
	}
	q := repo.ProductListQuery{Page: page, Limit: limit, Q: c.QueryParam("q"), Sort: c.QueryParam("sort")}
	if v := c.QueryParam("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid category"))
		}
		q.CategoryID = &id
	}
	if v := c.QueryParam("published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid published"))
		}
		q.Published = &b
	}

	out, err := h.uc.ListProducts(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardCatalogHandler) getProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.uc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *DashboardCatalogHandler) createProduct(c echo.Context) error {
	var req productRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	id, err := h.uc.CreateProduct(c.Request().Context(), actorID, usecase.ProductInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

func (h *DashboardCatalogHandler) updateProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req productRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.UpdateProduct(c.Request().Context(), actorID, id, usecase.ProductInput(req)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *DashboardCatalogHandler) deleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.DeleteProduct(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DashboardCatalogHandler) createVariant(c echo.Context) error {
	productID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req variantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	id, err := h.uc.CreateVariant(c.Request().Context(), actorID, productID, usecase.VariantInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

func (h *DashboardCatalogHandler) setStock(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req stockRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.SetVariantStock(c.Request().Context(), actorID, id, req.Stock, req.Reason); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "stock updated"})
}

// GET /dashboard/variants/:id/stock
func (h *DashboardCatalogHandler) stockHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.StockHistory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": out})
}

// GET /dashboard/activity?resource=&resource_id=&actor=
func (h *DashboardCatalogHandler) activity(c echo.Context) error {
	page, limit, err := pageParams(c, 50)
	if err != nil {
		return writeError(c, err)
	}
	f := repo.ActivityFilter{
		Resource: model.AuditResourceType(c.QueryParam("resource")),
		Page:     page,
		Limit:    limit,
	}
	if v := c.QueryParam("resource_id"); v != "" {
		if f.ResourceID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid resource_id"))
		}
	}
	if v := c.QueryParam("actor"); v != "" {
		if f.ActorUserID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid actor"))
		}
	}

	out, err := h.uc.Activity(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
