package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string
	// フォームのfield単位エラー（400のときだけ）
	Fields map[string]string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

const MsgAlreadySubmitted = "This order has already been submitted."

// ドメインのエラーをHTTPErrorに寄せる。既にHTTPErrorならそのまま
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	if he, ok := AsHTTPError(err); ok {
		return he
	}

	var verr *model.ValidationError
	var stock *model.InsufficientStockError
	switch {
	case errors.As(err, &verr):
		return &HTTPError{Status: http.StatusBadRequest, Message: "validation failed", Fields: verr.Fields}
	case errors.As(err, &stock):
		return NewHTTPError(http.StatusConflict, stock.Error())
	case errors.Is(err, model.ErrDuplicateCheckout):
		return NewHTTPError(http.StatusConflict, MsgAlreadySubmitted)
	case errors.Is(err, model.ErrEmptyCart):
		return NewHTTPError(http.StatusBadRequest, "cart is empty")
	case errors.Is(err, model.ErrInvalidArgument):
		return NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, repo.ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrConflict):
		return NewHTTPError(http.StatusConflict, "conflict")
	default:
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
}
