package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type OrderLineOutput struct {
	ID          int64  `json:"id"`
	ProductID   *int64 `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
}

type OrderUserFieldOutput struct {
	FieldID int64  `json:"field_id"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

type OrderOutput struct {
	ID               int64                  `json:"id"`
	Token            string                 `json:"token"`
	Status           model.OrderStatus      `json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
	LastStatusChange time.Time              `json:"last_status_change"`
	UserEmail        string                 `json:"user_email"`
	EmployeeID       string                 `json:"employee_id"`
	Quantity         int                    `json:"quantity"`
	Lines            []OrderLineOutput      `json:"lines"`
	UserFields       []OrderUserFieldOutput `json:"userfields"`
	CanCancel        bool                   `json:"can_cancel"`
	CanShip          bool                   `json:"can_ship"`
}

// OrderUsecase は購入者向けの注文表示。
type OrderUsecase struct {
	orders  repo.OrderRepository
	lines   repo.OrderLineRepository
	entries repo.OrderUserFieldRepository
}

func NewOrderUsecase(orders repo.OrderRepository, lines repo.OrderLineRepository, entries repo.OrderUserFieldRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders, lines: lines, entries: entries}
}

// tokenで注文を引く（URLを知っている人だけが見られる）
func (u *OrderUsecase) GetByToken(ctx context.Context, token string) (OrderOutput, error) {
	token = strings.TrimSpace(token)
	if !TokenIsValid(token) {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	o, err := u.orders.FindByToken(ctx, token)
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}
	return loadOrderOutput(ctx, u.lines, u.entries, o)
}

func loadOrderOutput(ctx context.Context, lineRepo repo.OrderLineRepository, entryRepo repo.OrderUserFieldRepository, o model.Order) (OrderOutput, error) {
	lines, err := lineRepo.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}
	entries, err := entryRepo.ListByOrderIDs(ctx, []int64{o.ID})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}
	return toOrderOutput(o, lines, entries), nil
}

func toOrderOutput(o model.Order, lines []model.OrderLine, entries []model.OrderUserFieldEntry) OrderOutput {
	out := OrderOutput{
		ID:               o.ID,
		Token:            o.Token,
		Status:           o.Status,
		CreatedAt:        o.CreatedAt,
		LastStatusChange: o.LastStatusChange,
		UserEmail:        o.UserEmail,
		EmployeeID:       o.EmployeeID,
		Lines:            make([]OrderLineOutput, 0, len(lines)),
		UserFields:       make([]OrderUserFieldOutput, 0, len(entries)),
		CanCancel:        o.CanCancel(),
		CanShip:          o.CanShip(),
	}
	for _, l := range lines {
		out.Quantity += l.Quantity
		out.Lines = append(out.Lines, OrderLineOutput{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			SKU:         l.ProductSKU,
			Quantity:    l.Quantity,
		})
	}
	for _, e := range entries {
		name := ""
		if e.UserField != nil {
			name = e.UserField.Name
		}
		out.UserFields = append(out.UserFields, OrderUserFieldOutput{
			FieldID: e.UserFieldID,
			Name:    name,
			Value:   e.Data,
		})
	}
	return out
}
