package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// RouteMiddlewares はserverで組み立ててRegisterRoutesに渡す。
type RouteMiddlewares struct {
	// OptionalAuthJWT + OptionalTokenVersionGuard
	Optional []echo.MiddlewareFunc
	// AuthJWT + TokenVersionGuard
	Required []echo.MiddlewareFunc
	// Required + StaffGuard
	Staff    []echo.MiddlewareFunc
	Cart     echo.MiddlewareFunc
	Checkout echo.MiddlewareFunc
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Fields: he.Fields})
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// XHRかJSONクライアントならtrue（それ以外はフォーム送信としてリダイレクトで返す）
func wantsJSON(c echo.Context) bool {
	req := c.Request()
	if req.Header.Get(echo.HeaderXRequestedWith) == "XMLHttpRequest" {
		return true
	}
	if strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return true
	}
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func seeOther(c echo.Context, path string) error {
	return c.Redirect(http.StatusSeeOther, path)
}

// 外部サイトへのリダイレクトは許さない
func safeNext(next string, fallback string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	return fallback
}

// エラーをフォーム用のメッセージ1つにする
func errorMessage(err error) string {
	he, ok := usecase.AsHTTPError(err)
	if !ok {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return verr.Error()
		}
		return "internal error"
	}
	if len(he.Fields) == 0 {
		return he.Message
	}
	return (&model.ValidationError{Fields: he.Fields}).Error()
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// page（default 1） / limit（default def）
func pageParams(c echo.Context, def int) (int, int, error) {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid page")
		}
		page = p
	}

	limit := def
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = l
	}
	return page, limit, nil
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

// 会社に属するユーザーならその会社ID
func companyIDOf(c echo.Context) *int64 {
	if u := middleware.UserFrom(c); u != nil {
		return u.CompanyID
	}
	return nil
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return err
		}
	}
	return nil
}
