package usecase

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// カート1つ分の操作。repoはTx内外どちらでも渡せる
type CartAggregate struct {
	carts repo.CartRepository
	lines repo.CartLineRepository
	stock StockChecker
	clock Clock
}

func NewCartAggregate(carts repo.CartRepository, lines repo.CartLineRepository, stock StockChecker, clock Clock) *CartAggregate {
	if stock == nil {
		stock = UnlimitedStock{}
	}
	return &CartAggregate{carts: carts, lines: lines, stock: stock, clock: clock}
}

// Tx用に作り直す
func (a *CartAggregate) WithRepos(r repo.TxRepos) *CartAggregate {
	return &CartAggregate{carts: r.Carts(), lines: r.CartLines(), stock: a.stock, clock: a.clock}
}

// replace=trueなら数量を置き換え、falseなら加算する。
// 0になったら明細を消す。失敗したときは何も書かない
func (a *CartAggregate) AddLine(
	ctx context.Context,
	cart *model.Cart,
	variant model.ProductVariant,
	quantity int,
	data map[string]any,
	replace bool,
	checkQuantity bool,
) error {
	key, err := model.CanonicalLineData(data)
	if err != nil {
		return err
	}
	return a.addLineByKey(ctx, cart, variant, quantity, key, replace, checkQuantity)
}

func (a *CartAggregate) addLineByKey(
	ctx context.Context,
	cart *model.Cart,
	variant model.ProductVariant,
	quantity int,
	key string,
	replace bool,
	checkQuantity bool,
) error {
	line, err := a.lines.FindByKey(ctx, cart.ID, variant.ID, key)
	found := err == nil
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	newQty := quantity
	if !replace && found {
		newQty = line.Quantity + quantity
	}
	if newQty < 0 {
		return fmt.Errorf("%w: %d is not a valid quantity (results in %d)", model.ErrInvalidArgument, quantity, newQty)
	}
	if newQty > model.MaxLineQuantity {
		return fmt.Errorf("%w: quantity %d exceeds %d", model.ErrInvalidArgument, newQty, model.MaxLineQuantity)
	}

	if checkQuantity && newQty > 0 {
		if err := a.stock.CheckQuantity(ctx, variant, newQty); err != nil {
			return err
		}
	}

	switch {
	case newQty == 0 && found:
		if err := a.lines.Delete(ctx, line.ID); err != nil {
			return err
		}
	case newQty == 0:
		// 無い明細を0にしても何も起きない
	case found:
		if newQty != line.Quantity {
			if err := a.lines.UpdateQuantity(ctx, line.ID, newQty); err != nil {
				return err
			}
		}
	default:
		if err := a.lines.Create(ctx, &model.CartLine{
			CartID:    cart.ID,
			VariantID: variant.ID,
			Quantity:  newQty,
			Data:      key,
		}); err != nil {
			return err
		}
	}

	return a.refreshQuantity(ctx, cart)
}

// 明細の合計をcarts.quantityに書く
func (a *CartAggregate) refreshQuantity(ctx context.Context, cart *model.Cart) error {
	total, err := a.lines.SumQuantity(ctx, cart.ID)
	if err != nil {
		return err
	}
	if err := a.carts.UpdateQuantity(ctx, cart.ID, total); err != nil {
		return err
	}
	cart.Quantity = total
	return nil
}

// (variant, data) の明細。無ければfalse
func (a *CartAggregate) GetLine(ctx context.Context, cart model.Cart, variantID int64, data map[string]any) (model.CartLine, bool, error) {
	key, err := model.CanonicalLineData(data)
	if err != nil {
		return model.CartLine{}, false, err
	}
	line, err := a.lines.FindByKey(ctx, cart.ID, variantID, key)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartLine{}, false, nil
	}
	if err != nil {
		return model.CartLine{}, false, err
	}
	return line, true, nil
}

// 遷移表で検証してから書く。同じステータスはno-op
func (a *CartAggregate) ChangeStatus(ctx context.Context, cart *model.Cart, status model.CartStatus) error {
	next := *cart
	changed, err := next.ChangeStatus(status, a.clock.Now())
	if err != nil || !changed {
		return err
	}
	if err := a.carts.UpdateStatus(ctx, cart.ID, next.Status, next.LastStatusChange); err != nil {
		return err
	}
	*cart = next
	return nil
}

// userの他のOPENカートをCANCELEDにしてから持ち主を付け替える。
// Tx内で呼ぶこと（LockOwnerでuser単位に直列化される）
func (a *CartAggregate) ChangeUser(ctx context.Context, cart *model.Cart, userID int64) error {
	if err := a.carts.LockOwner(ctx, userID); err != nil {
		return err
	}
	if _, err := a.carts.CancelOpenByUserID(ctx, userID, cart.ID, a.clock.Now()); err != nil {
		return err
	}
	if err := a.carts.UpdateUser(ctx, cart.ID, userID); err != nil {
		return err
	}
	uid := userID
	cart.UserID = &uid
	return nil
}

// 明細・回答ごと消す
func (a *CartAggregate) Clear(ctx context.Context, cart model.Cart) error {
	return a.carts.Delete(ctx, cart.ID)
}

// 全明細をreplace=trueで入れ直し、在庫不足なら入る分まで減らす（0なら削除）。
// 1つでも変わったらtrue
func (a *CartAggregate) RemoveUnavailableLines(ctx context.Context, cart *model.Cart) (bool, error) {
	lines, err := a.lines.ListByCartID(ctx, cart.ID)
	if err != nil {
		return false, err
	}

	adjusted := false
	for _, l := range lines {
		if l.Variant == nil {
			// バリアントが消えている
			if err := a.lines.Delete(ctx, l.ID); err != nil {
				return adjusted, err
			}
			adjusted = true
			continue
		}

		err := a.addLineByKey(ctx, cart, *l.Variant, l.Quantity, l.Data, true, true)
		var short *model.InsufficientStockError
		if errors.As(err, &short) {
			if err := a.addLineByKey(ctx, cart, *l.Variant, short.Available, l.Data, true, false); err != nil {
				return adjusted, err
			}
			adjusted = true
			continue
		}
		if err != nil {
			return adjusted, err
		}
	}

	if adjusted {
		return true, a.refreshQuantity(ctx, cart)
	}
	return false, nil
}

// 在庫不足の明細があるか（書き込みはしない）
func (a *CartAggregate) ContainsUnavailableLines(ctx context.Context, cart model.Cart) (bool, error) {
	lines, err := a.lines.ListByCartID(ctx, cart.ID)
	if err != nil {
		return false, err
	}
	for _, l := range lines {
		if l.Variant == nil {
			return true, nil
		}
		if err := a.stock.CheckQuantity(ctx, *l.Variant, l.Quantity); err != nil {
			var short *model.InsufficientStockError
			if errors.As(err, &short) {
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}
