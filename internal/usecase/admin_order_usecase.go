package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// AdminOrderUsecase はダッシュボードの注文操作。
// 状態遷移と明細変更はTx内で注文行をロックしてから行い、必ず履歴を残す
type AdminOrderUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	lines   repo.OrderLineRepository
	entries repo.OrderUserFieldRepository
	history repo.OrderHistoryRepository
	clock   Clock
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	lines repo.OrderLineRepository,
	entries repo.OrderUserFieldRepository,
	history repo.OrderHistoryRepository,
	clock Clock,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:      tx,
		orders:  orders,
		lines:   lines,
		entries: entries,
		history: history,
		clock:   clock,
	}
}

type AdminOrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type AdminOrderDetailOutput struct {
	Order   OrderOutput               `json:"order"`
	History []model.OrderHistoryEntry `json:"history"`
	Notes   []model.OrderNote         `json:"notes"`
}

const (
	MsgOrderCancelledNoItems = "Order cancelled. No items in order"
	MsgOrderCancelled        = "Cancelled order"
	MsgOrderShipped          = "Order marked as shipped"
)

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	if err := checkPaging(f.Page, f.Limit); err != nil {
		return AdminOrderListOutput{}, err
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return AdminOrderListOutput{}, toHTTPError(err)
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	lines, err := u.lines.ListByOrderIDs(ctx, ids)
	if err != nil {
		return AdminOrderListOutput{}, toHTTPError(err)
	}
	byOrder := map[int64][]model.OrderLine{}
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}

	out := AdminOrderListOutput{Items: make([]OrderOutput, 0, len(orders)), Total: total, Page: f.Page, Limit: f.Limit}
	for _, o := range orders {
		out.Items = append(out.Items, toOrderOutput(o, byOrder[o.ID], nil))
	}
	return out, nil
}

func (u *AdminOrderUsecase) Detail(ctx context.Context, orderID int64) (AdminOrderDetailOutput, error) {
	if orderID <= 0 {
		return AdminOrderDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return AdminOrderDetailOutput{}, toHTTPError(err)
	}
	order, err := loadOrderOutput(ctx, u.lines, u.entries, o)
	if err != nil {
		return AdminOrderDetailOutput{}, err
	}
	history, err := u.history.ListHistory(ctx, orderID)
	if err != nil {
		return AdminOrderDetailOutput{}, toHTTPError(err)
	}
	notes, err := u.history.ListNotes(ctx, orderID)
	if err != nil {
		return AdminOrderDetailOutput{}, toHTTPError(err)
	}
	return AdminOrderDetailOutput{Order: order, History: history, Notes: notes}, nil
}

// メモを追加（履歴にも残す）
func (u *AdminOrderUsecase) AddNote(ctx context.Context, actorUserID int64, orderID int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return toHTTPError(model.NewValidationError("content", "This field is required."))
	}
	if len([]rune(content)) > model.MaxOrderNoteLength {
		return toHTTPError(model.NewValidationError("content",
			fmt.Sprintf("Ensure this value has at most %d characters.", model.MaxOrderNoteLength)))
	}

	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		now := u.clock.Now()
		if err := r.OrderHistory().AddNote(ctx, &model.OrderNote{
			OrderID: o.ID,
			UserID:  &actorUserID,
			Date:    now,
			Content: content,
		}); err != nil {
			return err
		}
		return r.OrderHistory().AddHistory(ctx, &model.OrderHistoryEntry{
			OrderID: o.ID,
			Date:    now,
			Status:  o.Status,
			Comment: "Added note",
			UserID:  &actorUserID,
		})
	}))
}

// 明細の数量変更。0なら削除し、明細が無くなった注文はキャンセルする
func (u *AdminOrderUsecase) ChangeLineQuantity(ctx context.Context, actorUserID int64, orderID, lineID int64, quantity int) error {
	if quantity < 0 || quantity > model.MaxLineQuantity {
		return toHTTPError(model.NewValidationError("quantity",
			fmt.Sprintf("Ensure this value is between 0 and %d.", model.MaxLineQuantity)))
	}

	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		line, o, err := u.lockLine(ctx, r, orderID, lineID)
		if err != nil {
			return err
		}
		if line.Quantity == quantity {
			return nil
		}

		now := u.clock.Now()
		if err := r.OrderHistory().AddHistory(ctx, &model.OrderHistoryEntry{
			OrderID: o.ID,
			Date:    now,
			Status:  o.Status,
			Comment: fmt.Sprintf("Changed quantity for product %s from %d to %d", line.ProductName, line.Quantity, quantity),
			UserID:  &actorUserID,
		}); err != nil {
			return err
		}

		if quantity == 0 {
			if err := r.OrderLines().Delete(ctx, line.ID); err != nil {
				return err
			}
			return u.cancelIfEmpty(ctx, r, o, actorUserID, now)
		}
		return r.OrderLines().UpdateQuantity(ctx, line.ID, quantity)
	}))
}

// 明細を取り消す
func (u *AdminOrderUsecase) CancelLine(ctx context.Context, actorUserID int64, orderID, lineID int64) error {
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		line, o, err := u.lockLine(ctx, r, orderID, lineID)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		if err := r.OrderLines().Delete(ctx, line.ID); err != nil {
			return err
		}
		if err := r.OrderHistory().AddHistory(ctx, &model.OrderHistoryEntry{
			OrderID: o.ID,
			Date:    now,
			Status:  o.Status,
			Comment: fmt.Sprintf("Cancelled item %s", line.ProductName),
			UserID:  &actorUserID,
		}); err != nil {
			return err
		}
		return u.cancelIfEmpty(ctx, r, o, actorUserID, now)
	}))
}

func (u *AdminOrderUsecase) Cancel(ctx context.Context, actorUserID int64, orderID int64) error {
	return u.transition(ctx, actorUserID, orderID, model.OrderStatusCancelled, MsgOrderCancelled)
}

func (u *AdminOrderUsecase) Ship(ctx context.Context, actorUserID int64, orderID int64) error {
	return u.transition(ctx, actorUserID, orderID, model.OrderStatusShipped, MsgOrderShipped)
}

func (u *AdminOrderUsecase) transition(ctx context.Context, actorUserID, orderID int64, to model.OrderStatus, comment string) error {
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		return changeOrderStatus(ctx, r, o, to, actorUserID, comment, u.clock.Now())
	}))
}

// 明細とその注文をロックして返す。別注文の明細は無いものとして扱う。NEW以外は編集不可
func (u *AdminOrderUsecase) lockLine(ctx context.Context, r repo.TxRepos, orderID, lineID int64) (model.OrderLine, model.Order, error) {
	if orderID <= 0 || lineID <= 0 {
		return model.OrderLine{}, model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	line, err := r.OrderLines().FindByID(ctx, lineID)
	if err != nil {
		return model.OrderLine{}, model.Order{}, err
	}
	if line.OrderID != orderID {
		return model.OrderLine{}, model.Order{}, repo.ErrNotFound
	}
	o, err := r.Orders().LockByID(ctx, line.OrderID)
	if err != nil {
		return model.OrderLine{}, model.Order{}, err
	}
	if !o.IsEditable() {
		return model.OrderLine{}, model.Order{}, fmt.Errorf("%w: order %d is %s", model.ErrInvalidTransition, o.ID, o.Status)
	}
	return line, o, nil
}

// 明細0件の注文は必ずCANCELLED
func (u *AdminOrderUsecase) cancelIfEmpty(ctx context.Context, r repo.TxRepos, o model.Order, actorUserID int64, now time.Time) error {
	n, err := r.OrderLines().CountByOrderID(ctx, o.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return changeOrderStatus(ctx, r, o, model.OrderStatusCancelled, actorUserID, MsgOrderCancelledNoItems, now)
}

// 遷移表で検証してから更新し、履歴を1件追加する
func changeOrderStatus(
	ctx context.Context,
	r repo.TxRepos,
	o model.Order,
	to model.OrderStatus,
	actorUserID int64,
	comment string,
	now time.Time,
) error {
	if err := o.Status.CanTransitionTo(to); err != nil {
		return err
	}
	if err := r.Orders().UpdateStatus(ctx, o.ID, to, now); err != nil {
		return err
	}
	return r.OrderHistory().AddHistory(ctx, &model.OrderHistoryEntry{
		OrderID: o.ID,
		Date:    now,
		Status:  to,
		Comment: comment,
		UserID:  &actorUserID,
	})
}
