package usecase

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 注文確認メール（非同期で送る）
type OrderConfirmation struct {
	Email      string
	OrderToken string
	URL        string
	Language   string
}

type OrderNotifier interface {
	NotifyOrderPlaced(ctx context.Context, msg OrderConfirmation) error
}

// 同じカートの二重送信を弾くロック。取れなければfalse
type CheckoutGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

type CheckoutUsecase struct {
	tx       repo.TransactionManager
	agg      *CartAggregate
	lines    repo.CartLineRepository
	entries  repo.CartUserFieldRepository
	fields   repo.UserFieldRepository
	history  repo.OrderHistoryRepository
	users    repo.UserRepository
	notifier OrderNotifier
	guard    CheckoutGuard
	clock    Clock
	baseURL  string
	log      *zap.Logger
}

type CheckoutDeps struct {
	Tx         repo.TransactionManager
	Carts      repo.CartRepository
	Lines      repo.CartLineRepository
	Entries    repo.CartUserFieldRepository
	UserFields repo.UserFieldRepository
	History    repo.OrderHistoryRepository
	Users      repo.UserRepository
	Stock      StockChecker
	Notifier   OrderNotifier
	// nilならロックしない
	Guard   CheckoutGuard
	Clock   Clock
	BaseURL string
	Log     *zap.Logger
}

func NewCheckoutUsecase(d CheckoutDeps) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:       d.Tx,
		agg:      NewCartAggregate(d.Carts, d.Lines, d.Stock, d.Clock),
		lines:    d.Lines,
		entries:  d.Entries,
		fields:   d.UserFields,
		history:  d.History,
		users:    d.Users,
		notifier: d.Notifier,
		guard:    d.Guard,
		clock:    d.Clock,
		baseURL:  d.BaseURL,
		log:      d.Log,
	}
}

const (
	MsgEmployeeIDRequired = "Employee ID is a required field."
	MsgEmailRequired      = "Email is a required field."
	MsgFieldRequired      = "This field is required."
	MsgStockAdjusted      = "Sorry. Some products in your cart were not available and the quantities have been adjusted."
	MsgOrderPlaced        = "Your order has been successfully placed! Your order number is %s."
)

type CheckoutSummaryOutput struct {
	Quantity      int              `json:"quantity"`
	Lines         []CartLineOutput `json:"lines"`
	Email         string           `json:"email"`
	EmployeeID    string           `json:"employeeid"`
	MissingFields []string         `json:"missing_fields"`
}

type CheckoutDetailsInput struct {
	Email      *string
	EmployeeID *string
}

type PlaceOrderResult struct {
	Order         model.Order
	StockAdjusted bool
	Message       string
}

// Summary は注文確認画面の内容。
func (u *CheckoutUsecase) Summary(ctx context.Context, co *Checkout) (CheckoutSummaryOutput, error) {
	if co.Cart == nil {
		return CheckoutSummaryOutput{}, toHTTPError(model.ErrEmptyCart)
	}

	lines, err := u.lines.ListByCartID(ctx, co.Cart.ID)
	if err != nil {
		return CheckoutSummaryOutput{}, toHTTPError(err)
	}

	missing := []string{}
	if companyID := co.CompanyID(); companyID != nil {
		fields, err := u.missingUserFields(ctx, u.fields, u.entries, co.Cart.ID, *companyID)
		if err != nil {
			return CheckoutSummaryOutput{}, toHTTPError(err)
		}
		for _, f := range fields {
			missing = append(missing, f.Name)
		}
	}

	return CheckoutSummaryOutput{
		Quantity:      co.Cart.Quantity,
		Lines:         toCartLineOutputs(lines),
		Email:         co.Email(),
		EmployeeID:    co.EmployeeID(),
		MissingFields: missing,
	}, nil
}

// UpdateDetails はメール/社員IDをセッションに入れる（DBには書かない）。
func (u *CheckoutUsecase) UpdateDetails(co *Checkout, in CheckoutDetailsInput) error {
	verr := &model.ValidationError{Fields: map[string]string{}}
	if in.EmployeeID != nil {
		if len(*in.EmployeeID) > 256 {
			verr.Fields["employeeid"] = "Ensure this value has at most 256 characters."
		}
	}
	if in.Email != nil && co.User == nil && len(*in.Email) > 254 {
		verr.Fields["email"] = "Ensure this value has at most 254 characters."
	}
	if len(verr.Fields) > 0 {
		return toHTTPError(verr)
	}

	if in.EmployeeID != nil {
		co.SetEmployeeID(*in.EmployeeID)
	}
	if in.Email != nil && co.User == nil {
		co.SetEmail(*in.Email)
	}
	return nil
}

// 必須なのに回答がない（空も含む）項目
func (u *CheckoutUsecase) missingUserFields(
	ctx context.Context,
	fieldRepo repo.UserFieldRepository,
	entryRepo repo.CartUserFieldRepository,
	cartID int64,
	companyID int64,
) ([]model.UserField, error) {
	fields, err := fieldRepo.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	entries, err := entryRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	answered := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if e.Data != "" {
			answered[e.UserFieldID] = true
		}
	}

	var missing []model.UserField
	for _, f := range fields {
		if f.Required && !answered[f.ID] {
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// PlaceOrder はカートから注文を作る。
// 注文・明細・回答は1トランザクション。カート削除/履歴/メール/ログアウトはcommit後にやり、失敗してもログだけ
func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, co *Checkout) (PlaceOrderResult, error) {
	if co.Cart == nil || co.Cart.ID == 0 {
		return PlaceOrderResult{}, toHTTPError(model.ErrEmptyCart)
	}
	cart := co.Cart

	// フォーム側の必須
	verr := &model.ValidationError{Fields: map[string]string{}}
	if co.EmployeeID() == "" {
		verr.Fields["employeeid"] = MsgEmployeeIDRequired
	}
	if co.Email() == "" {
		verr.Fields["email"] = MsgEmailRequired
	}
	if len(verr.Fields) > 0 {
		return PlaceOrderResult{}, toHTTPError(verr)
	}

	// 二重送信ガード（Redisが落ちていても注文は止めない）
	if u.guard != nil {
		key := "checkout:" + cart.Token
		ok, err := u.guard.Acquire(ctx, key)
		switch {
		case err != nil:
			u.log.Warn("checkout guard unavailable", zap.Error(err), zap.String("cart_token", cart.Token))
		case !ok:
			return PlaceOrderResult{}, toHTTPError(model.ErrDuplicateCheckout)
		default:
			defer u.guard.Release(ctx, key)
		}
	}

	// 在庫不足の明細を直してから続ける
	adjusted, err := u.agg.RemoveUnavailableLines(ctx, cart)
	if err != nil {
		return PlaceOrderResult{}, toHTTPError(err)
	}

	now := u.clock.Now()
	var order model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		exists, err := r.Orders().ExistsByToken(ctx, cart.Token)
		if err != nil {
			return err
		}
		if exists {
			return model.ErrDuplicateCheckout
		}

		lines, err := r.CartLines().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return model.ErrEmptyCart
		}

		if companyID := co.CompanyID(); companyID != nil {
			missing, err := u.missingUserFields(ctx, r.UserFields(), r.CartUserFields(), cart.ID, *companyID)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				fe := &model.ValidationError{Fields: map[string]string{}}
				for _, f := range missing {
					fe.Fields[f.Name] = MsgFieldRequired
				}
				return fe
			}
		}

		order = model.Order{
			Status:           model.OrderStatusNew,
			CreatedAt:        now,
			LastStatusChange: now,
			UserID:           co.UserID(),
			CompanyID:        co.CompanyID(),
			LanguageCode:     co.LanguageCode,
			TrackingClientID: co.TrackingCode,
			UserEmail:        co.Email(),
			Token:            cart.Token,
			EmployeeID:       co.EmployeeID(),
		}
		if err := r.Orders().Create(ctx, &order); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return model.ErrDuplicateCheckout
			}
			return err
		}

		// カートの並び順で明細を作る。名前とSKUは値で持つ
		for _, l := range lines {
			ol := model.OrderLine{OrderID: order.ID, Quantity: l.Quantity}
			if l.Variant != nil {
				pid := l.Variant.ProductID
				ol.ProductID = &pid
				ol.ProductName = truncate(l.Variant.ProductName(), 128)
				ol.ProductSKU = l.Variant.SKU
			}
			if err := r.OrderLines().Create(ctx, &ol); err != nil {
				return fmt.Errorf("create order line: %w", err)
			}
		}

		entries, err := r.CartUserFields().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := r.OrderUserFields().Create(ctx, &model.OrderUserFieldEntry{
				OrderID:     order.ID,
				UserFieldID: e.UserFieldID,
				Data:        e.Data,
			}); err != nil {
				return fmt.Errorf("create order userfield: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return PlaceOrderResult{}, toHTTPError(err)
	}

	u.afterOrderPlaced(ctx, co, order)

	return PlaceOrderResult{
		Order:         order,
		StockAdjusted: adjusted,
		Message:       fmt.Sprintf(MsgOrderPlaced, order.Token),
	}, nil
}

// commit後の後始末。どれも失敗はログだけ
func (u *CheckoutUsecase) afterOrderPlaced(ctx context.Context, co *Checkout, order model.Order) {
	log := u.log.With(zap.Int64("order_id", order.ID), zap.String("order_token", order.Token))

	co.ClearStorage()

	if err := u.agg.Clear(ctx, *co.Cart); err != nil {
		log.Warn("clear cart after checkout", zap.Error(err))
	}

	if err := u.history.AddHistory(ctx, &model.OrderHistoryEntry{
		OrderID: order.ID,
		Date:    u.clock.Now(),
		Status:  model.OrderStatusNew,
		Comment: "Order was placed",
		UserID:  order.UserID,
	}); err != nil {
		log.Error("append order history", zap.Error(err))
	}

	if u.notifier != nil && order.UserEmail != "" {
		if err := u.notifier.NotifyOrderPlaced(ctx, OrderConfirmation{
			Email:      order.UserEmail,
			OrderToken: order.Token,
			URL:        u.baseURL + "/orders/" + order.Token,
			Language:   order.LanguageCode,
		}); err != nil {
			log.Error("enqueue order confirmation", zap.Error(err))
		}
	}

	// 注文後はログアウト扱い（発行済みトークンを無効化）
	if order.UserID != nil {
		if err := u.users.IncrementTokenVersion(ctx, *order.UserID); err != nil {
			log.Warn("revoke tokens after checkout", zap.Error(err))
		}
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// 二重送信時のリダイレクト先
func (u *CheckoutUsecase) ExistingOrderPath(token string) string {
	return "/orders/" + token
}
