package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartUsecase は /cart の業務ロジックです。
// カートの解決（匿名/ログイン）とCartAggregateの呼び出しをまとめます。
type CartUsecase struct {
	tx       repo.TransactionManager
	carts    repo.CartRepository
	lines    repo.CartLineRepository
	entries  repo.CartUserFieldRepository
	products repo.ProductRepository
	fields   repo.UserFieldRepository
	agg      *CartAggregate
	ids      IDGenerator
	clock    Clock
	log      *zap.Logger
}

type CartRepos struct {
	Carts      repo.CartRepository
	Lines      repo.CartLineRepository
	Entries    repo.CartUserFieldRepository
	Products   repo.ProductRepository
	UserFields repo.UserFieldRepository
}

func NewCartUsecase(
	tx repo.TransactionManager,
	r CartRepos,
	stock StockChecker,
	ids IDGenerator,
	clock Clock,
	log *zap.Logger,
) *CartUsecase {
	return &CartUsecase{
		tx:       tx,
		carts:    r.Carts,
		lines:    r.Lines,
		entries:  r.Entries,
		products: r.Products,
		fields:   r.UserFields,
		agg:      NewCartAggregate(r.Carts, r.Lines, stock, clock),
		ids:      ids,
		clock:    clock,
		log:      log,
	}
}

type CartLineOutput struct {
	ID          int64          `json:"id"`
	VariantID   int64          `json:"variant_id"`
	ProductID   int64          `json:"product_id"`
	ProductName string         `json:"product_name"`
	VariantName string         `json:"variant_name"`
	SKU         string         `json:"sku"`
	Quantity    int            `json:"quantity"`
	Data        map[string]any `json:"data"`
}

type CartUserFieldOutput struct {
	FieldID     int64  `json:"field_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Value       string `json:"value"`
}

type CartOutput struct {
	Token      string                `json:"token"`
	Status     model.CartStatus      `json:"status"`
	Quantity   int                   `json:"quantity"`
	Lines      []CartLineOutput      `json:"lines"`
	UserFields []CartUserFieldOutput `json:"userfields"`
	// 在庫不足の明細を直したとき
	Warning string `json:"warning,omitempty"`
}

type AddToCartInput struct {
	ProductID int64
	VariantID int64
	Quantity  int
	Data      map[string]any
}

type UpdateCartLineOutput struct {
	VariantID    int64  `json:"variant_id"`
	LineQuantity int    `json:"line_quantity"`
	CartQuantity int    `json:"cart_quantity"`
	Message      string `json:"message,omitempty"`
}

// トークンの形式チェック（UUIDのみ受け付ける）
func TokenIsValid(token string) bool {
	if token == "" {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}

// ログインユーザーのOPENカート（無ければ作る）。
// 重複しているOPENカートは一番新しいもの以外CANCELEDにする
func (u *CartUsecase) ResolveUserCart(ctx context.Context, userID int64) (model.Cart, error) {
	if userID <= 0 {
		return model.Cart{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	open, err := u.carts.ListOpenByUserID(ctx, userID)
	if err != nil {
		return model.Cart{}, toHTTPError(err)
	}
	if len(open) > 1 {
		u.log.Warn("user has more than one open cart", zap.Int64("user_id", userID), zap.Int("open", len(open)))
		if _, err := u.carts.CancelOpenByUserID(ctx, userID, open[0].ID, u.clock.Now()); err != nil {
			return model.Cart{}, toHTTPError(err)
		}
	}
	if len(open) > 0 {
		return open[0], nil
	}

	cart, err := u.carts.GetOrCreateOpenByUserID(ctx, userID, u.ids.NewID(), u.clock.Now())
	if err != nil {
		return model.Cart{}, toHTTPError(err)
	}
	return cart, nil
}

// cookieのトークンで匿名カートを探す。無い/不正なら新しく作る（createdがtrue）
func (u *CartUsecase) ResolveAnonymousCart(ctx context.Context, token string) (model.Cart, bool, error) {
	if TokenIsValid(token) {
		cart, err := u.carts.FindOpenAnonymousByToken(ctx, token)
		if err == nil {
			return cart, false, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return model.Cart{}, false, toHTTPError(err)
		}
	}

	now := u.clock.Now()
	cart := model.Cart{
		Token:            u.ids.NewID(),
		Status:           model.CartStatusOpen,
		CreatedAt:        now,
		LastStatusChange: now,
	}
	if err := u.carts.Create(ctx, &cart); err != nil {
		return model.Cart{}, false, toHTTPError(err)
	}
	return cart, true, nil
}

// ログイン直後に匿名カートをユーザーへ移す。
// ユーザーの他のOPENカートはCANCELEDになる（1トランザクション）
func (u *CartUsecase) AssignAnonymousCart(ctx context.Context, token string, userID int64) (bool, error) {
	if !TokenIsValid(token) || userID <= 0 {
		return false, nil
	}

	assigned := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindOpenAnonymousByToken(ctx, token)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := u.agg.WithRepos(r).ChangeUser(ctx, &cart, userID); err != nil {
			return err
		}
		assigned = true
		return nil
	})
	if err != nil {
		return false, toHTTPError(err)
	}
	return assigned, nil
}

// GetCart はカートの中身とカスタム項目を返す。
func (u *CartUsecase) GetCart(ctx context.Context, cart model.Cart, companyID *int64) (CartOutput, error) {
	lines, err := u.lines.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}

	out := CartOutput{
		Token:      cart.Token,
		Status:     cart.Status,
		Quantity:   cart.Quantity,
		Lines:      toCartLineOutputs(lines),
		UserFields: []CartUserFieldOutput{},
	}
	if companyID == nil {
		return out, nil
	}

	fields, err := u.fields.ListByCompanyID(ctx, *companyID)
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}
	entries, err := u.entries.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}
	answers := make(map[int64]string, len(entries))
	for _, e := range entries {
		answers[e.UserFieldID] = e.Data
	}
	for _, f := range fields {
		out.UserFields = append(out.UserFields, CartUserFieldOutput{
			FieldID:     f.ID,
			Name:        f.Name,
			Description: f.Description,
			Required:    f.Required,
			Value:       answers[f.ID],
		})
	}
	return out, nil
}

func toCartLineOutputs(lines []model.CartLine) []CartLineOutput {
	out := make([]CartLineOutput, 0, len(lines))
	for _, l := range lines {
		o := CartLineOutput{
			ID:        l.ID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			Data:      l.DataMap(),
		}
		if l.Variant != nil {
			o.ProductID = l.Variant.ProductID
			o.ProductName = l.Variant.ProductName()
			o.VariantName = l.Variant.DisplayName()
			o.SKU = l.Variant.SKU
		}
		out = append(out, o)
	}
	return out
}

// AddToCart は商品ページのフォームから追加（同じvariant+dataは加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, cart *model.Cart, in AddToCartInput) (CartOutput, error) {
	if in.Quantity < 1 || in.Quantity > model.MaxLineQuantity {
		return CartOutput{}, &HTTPError{Status: http.StatusBadRequest, Message: "validation failed",
			Fields: map[string]string{"quantity": "Ensure this value is between 1 and 999."}}
	}

	variant, err := u.products.FindVariantByID(ctx, in.VariantID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartOutput{}, &HTTPError{Status: http.StatusBadRequest, Message: "validation failed",
			Fields: map[string]string{"variant": "Select a valid choice."}}
	}
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}
	// 公開中でproductが一致するものだけ
	if variant.ProductID != in.ProductID || variant.Product == nil || !variant.Product.IsPublished {
		return CartOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return u.agg.WithRepos(r).AddLine(ctx, cart, variant, in.Quantity, in.Data, false, true)
	})
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}

	return u.GetCart(ctx, *cart, nil)
}

// UpdateLine はカート画面の数量変更（置き換え、0で削除）。
func (u *CartUsecase) UpdateLine(ctx context.Context, cart *model.Cart, variantID int64, quantity int) (UpdateCartLineOutput, error) {
	if quantity < 0 || quantity > model.MaxLineQuantity {
		return UpdateCartLineOutput{}, &HTTPError{Status: http.StatusBadRequest, Message: "validation failed",
			Fields: map[string]string{"quantity": "Ensure this value is between 0 and 999."}}
	}

	variant, err := u.products.FindVariantByID(ctx, variantID)
	if err != nil {
		return UpdateCartLineOutput{}, toHTTPError(err)
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return u.agg.WithRepos(r).AddLine(ctx, cart, variant, quantity, nil, true, true)
	})
	var short *model.InsufficientStockError
	if errors.As(err, &short) {
		return UpdateCartLineOutput{}, &HTTPError{Status: http.StatusBadRequest, Message: "validation failed",
			Fields: map[string]string{"quantity": insufficientStockMessage(short)}}
	}
	if err != nil {
		return UpdateCartLineOutput{}, toHTTPError(err)
	}

	out := UpdateCartLineOutput{VariantID: variantID, CartQuantity: cart.Quantity}
	line, found, err := u.agg.GetLine(ctx, *cart, variantID, nil)
	if err != nil {
		return UpdateCartLineOutput{}, toHTTPError(err)
	}
	if found {
		out.LineQuantity = line.Quantity
	} else {
		out.Message = "Product has been removed from the cart."
	}
	return out, nil
}

func insufficientStockMessage(e *model.InsufficientStockError) string {
	if e.Available == 0 {
		return "Sorry. This product is currently not available."
	}
	return "Sorry. Only " + itoa(e.Available) + " remaining in stock."
}

// SaveUserFields はカスタム項目の回答を保存する（会社の項目だけ）。
func (u *CartUsecase) SaveUserFields(ctx context.Context, cart model.Cart, companyID *int64, answers map[int64]string) error {
	if companyID == nil {
		if len(answers) == 0 {
			return nil
		}
		return NewHTTPError(http.StatusBadRequest, "no custom fields for this account")
	}

	fields, err := u.fields.ListByCompanyID(ctx, *companyID)
	if err != nil {
		return toHTTPError(err)
	}
	known := make(map[int64]model.UserField, len(fields))
	for _, f := range fields {
		known[f.ID] = f
	}

	verr := &model.ValidationError{Fields: map[string]string{}}
	for id, v := range answers {
		f, ok := known[id]
		if !ok {
			verr.Fields[itoa64(id)] = "Unknown field."
			continue
		}
		if len([]rune(strings.TrimSpace(v))) > model.MaxUserFieldAnswerLength {
			verr.Fields[f.Name] = "Ensure this value has at most 128 characters."
		}
	}
	if len(verr.Fields) > 0 {
		return toHTTPError(verr)
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		for id, v := range answers {
			if err := r.CartUserFields().Upsert(ctx, model.CartUserFieldEntry{
				CartID:      cart.ID,
				UserFieldID: id,
				Data:        strings.TrimSpace(v),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return toHTTPError(err)
}

// SaveForLater はOPENのカートをSAVEDにする（次のアクセスで新しいカートになる）。
func (u *CartUsecase) SaveForLater(ctx context.Context, cart *model.Cart) error {
	if cart.Quantity == 0 {
		return toHTTPError(model.ErrEmptyCart)
	}
	return toHTTPError(u.agg.ChangeStatus(ctx, cart, model.CartStatusSaved))
}

// PrepareCheckout は注文画面へ進む前に在庫を見直す。adjustedなら数量を直した
func (u *CartUsecase) PrepareCheckout(ctx context.Context, cart *model.Cart) (bool, error) {
	if cart.Quantity == 0 {
		return false, toHTTPError(model.ErrEmptyCart)
	}
	adjusted, err := u.agg.RemoveUnavailableLines(ctx, cart)
	if err != nil {
		return false, toHTTPError(err)
	}
	if cart.Quantity == 0 {
		return adjusted, toHTTPError(model.ErrEmptyCart)
	}
	return adjusted, nil
}
