package handler

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /dashboard のスタッフと顧客
type DashboardStaffHandler struct {
	uc *usecase.StaffUsecase
}

func NewDashboardStaffHandler(uc *usecase.StaffUsecase) *DashboardStaffHandler {
	return &DashboardStaffHandler{uc: uc}
}

type staffRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role" validate:"omitempty,oneof=USER ADMIN"`
	// 省略時は有効。roleは作成時の省略でADMIN、更新時の省略で変更なし
	IsActive  *bool  `json:"is_active" form:"is_active"`
	CompanyID *int64 `json:"company_id" form:"company"`
}

func (r staffRequest) toInput() usecase.StaffInput {
	in := usecase.StaffInput{
		Email:     r.Email,
		Password:  r.Password,
		Role:      model.Role(r.Role),
		IsActive:  true,
		CompanyID: r.CompanyID,
	}
	if r.IsActive != nil {
		in.IsActive = *r.IsActive
	}
	return in
}

func (h *DashboardStaffHandler) RegisterRoutes(e *echo.Echo, mw RouteMiddlewares) {
	g := e.Group("/dashboard", mw.Staff...)
	g.GET("/staff", h.listStaff)
	g.POST("/staff", h.create)
	g.GET("/staff/:id", h.get)
	g.PUT("/staff/:id", h.update)
	g.DELETE("/staff/:id", h.delete)
	g.GET("/customers", h.listCustomers)
}

func (h *DashboardStaffHandler) listStaff(c echo.Context) error {
	page, limit, err := pageParams(c, 30)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.ListStaff(c.Request().Context(), page, limit, c.QueryParam("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardStaffHandler) listCustomers(c echo.Context) error {
	page, limit, err := pageParams(c, 30)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.ListCustomers(c.Request().Context(), page, limit, c.QueryParam("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardStaffHandler) get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardStaffHandler) create(c echo.Context) error {
	var req staffRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	id, err := h.uc.Create(c.Request().Context(), actorID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

func (h *DashboardStaffHandler) update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req staffRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.Update(c.Request().Context(), actorID, id, req.toInput()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *DashboardStaffHandler) delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	actorID, _ := getUserIDFromContext(c)
	if err := h.uc.Delete(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
