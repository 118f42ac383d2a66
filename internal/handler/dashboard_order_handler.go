package handler

import (
	"bytes"
	"net/http"

	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /dashboard の注文
type DashboardOrderHandler struct {
	orders *usecase.AdminOrderUsecase
	export *usecase.OrderExportUsecase
}

func NewDashboardOrderHandler(orders *usecase.AdminOrderUsecase, export *usecase.OrderExportUsecase) *DashboardOrderHandler {
	return &DashboardOrderHandler{orders: orders, export: export}
}

type noteRequest struct {
	Content string `json:"content" form:"content" validate:"required"`
}

type lineQuantityRequest struct {
	Quantity *int `json:"quantity" form:"quantity" validate:"required"`
}

func (h *DashboardOrderHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/dashboard", mw.Staff...)
	g.GET("/orders", h.list)
	g.GET("/orders/:id", h.detail)
	g.POST("/orders/:id/notes", h.addNote)
	g.POST("/orders/:id/cancel", h.cancel)
	g.POST("/orders/:id/ship", h.ship)
	g.PUT("/orders/:id/lines/:line_id", h.changeLine)
	g.POST("/orders/:id/lines/:line_id/cancel", h.cancelLine)
	g.GET("/categories/:id/orders.csv", h.exportCSV)
}

// GET /dashboard/orders?status=&q=&sort=
func (h *DashboardOrderHandler) list(c echo.Context) error {
	page, limit, err := pageParams(c, 20)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.orders.List(c.Request().Context(), repo.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		Q:      c.QueryParam("q"),
		Sort:   c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardOrderHandler) detail(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.orders.Detail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardOrderHandler) addNote(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req noteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.orders.AddNote(c.Request().Context(), actorID, id, req.Content); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, SuccessResponse{Message: "Note added"})
}

func (h *DashboardOrderHandler) cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.orders.Cancel(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: usecase.MsgOrderCancelled})
}

func (h *DashboardOrderHandler) ship(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.orders.Ship(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: usecase.MsgOrderShipped})
}

// PUT /dashboard/orders/:id/lines/:line_id（0で明細削除）
func (h *DashboardOrderHandler) changeLine(c echo.Context) error {
	orderID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	lineID, err := parseID(c, "line_id")
	if err != nil {
		return writeError(c, err)
	}
	var req lineQuantityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.orders.ChangeLineQuantity(c.Request().Context(), actorID, orderID, lineID, *req.Quantity); err != nil {
		return writeError(c, err)
	}
	return h.detail(c)
}

func (h *DashboardOrderHandler) cancelLine(c echo.Context) error {
	orderID, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	lineID, err := parseID(c, "line_id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.orders.CancelLine(c.Request().Context(), actorID, orderID, lineID); err != nil {
		return writeError(c, err)
	}
	return h.detail(c)
}

// GET /dashboard/categories/:id/orders.csv
func (h *DashboardOrderHandler) exportCSV(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	// ファイル名が決まるまでヘッダーを書けないので一度バッファに置く
	var buf bytes.Buffer
	filename, err := h.export.ExportCompanyOrdersCSV(c.Request().Context(), id, &buf)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
