package usecase

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ログイン時に匿名カートを引き継ぐと、ユーザーのOPENカートは1つだけになる
func TestCartUsecase_AssignAnonymousCart_LeavesSingleOpenCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)

	user := testutil.SeedUser(t, env.db, "buyer@example.com", nil)
	old := testutil.SeedCart(t, env.db, &user.ID)
	anon := testutil.SeedCart(t, env.db, nil)

	assigned, err := uc.AssignAnonymousCart(ctx, anon.Token, user.ID)
	require.NoError(t, err)
	assert.True(t, assigned)

	open, err := env.carts.ListOpenByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, anon.ID, open[0].ID)

	prev, err := env.carts.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CartStatusCanceled, prev.Status)
}

func TestCartUsecase_AssignAnonymousCart_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	uc := env.cartUsecase(nil)
	user := testutil.SeedUser(t, env.db, "buyer@example.com", nil)

	assigned, err := uc.AssignAnonymousCart(context.Background(), "not-a-uuid", user.ID)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestCartUsecase_ResolveUserCart_CreatesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)
	user := testutil.SeedUser(t, env.db, "buyer@example.com", nil)

	first, err := uc.ResolveUserCart(ctx, user.ID)
	require.NoError(t, err)
	second, err := uc.ResolveUserCart(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.CartStatusOpen, second.Status)
}

func TestCartUsecase_ResolveAnonymousCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)

	created, isNew, err := uc.ResolveAnonymousCart(ctx, "")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, TokenIsValid(created.Token))

	found, isNew, err := uc.ResolveAnonymousCart(ctx, created.Token)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, found.ID)
}

func TestCartUsecase_AddToCart_UnpublishedIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)
	cart := testutil.SeedCart(t, env.db, nil)

	require.NoError(t, env.db.Model(&model.Product{}).Where("id = ?", env.catalog.Product.ID).Update("is_published", false).Error)

	_, err := uc.AddToCart(ctx, &cart, AddToCartInput{
		ProductID: env.catalog.Product.ID,
		VariantID: env.catalog.VariantA.ID,
		Quantity:  1,
	})
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

func TestCartUsecase_UpdateLine_ZeroRemoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)
	cart := testutil.SeedCart(t, env.db, nil)

	_, err := uc.AddToCart(ctx, &cart, AddToCartInput{ProductID: env.catalog.Product.ID, VariantID: env.catalog.VariantA.ID, Quantity: 2})
	require.NoError(t, err)

	out, err := uc.UpdateLine(ctx, &cart, env.catalog.VariantA.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, out.CartQuantity)
	assert.Equal(t, "Product has been removed from the cart.", out.Message)
}

func TestCartUsecase_UpdateLine_StockMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(TrackedStock{})
	cart := testutil.SeedCart(t, env.db, nil)

	require.NoError(t, env.db.Model(&model.ProductVariant{}).Where("id = ?", env.catalog.VariantA.ID).Update("stock_quantity", 3).Error)

	_, err := uc.UpdateLine(ctx, &cart, env.catalog.VariantA.ID, 5)
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, "Sorry. Only 3 remaining in stock.", he.Fields["quantity"])
}

func TestCartUsecase_SaveUserFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)
	cart := testutil.SeedCart(t, env.db, nil)
	companyID := env.catalog.Company.ID

	field := model.UserField{Name: "Cost center", CompanyID: companyID, Required: true}
	require.NoError(t, env.fields.Create(ctx, &field))

	require.NoError(t, uc.SaveUserFields(ctx, cart, &companyID, map[int64]string{field.ID: "  CC-42  "}))
	out, err := uc.GetCart(ctx, cart, &companyID)
	require.NoError(t, err)
	require.Len(t, out.UserFields, 1)
	assert.Equal(t, "CC-42", out.UserFields[0].Value)

	// 他社の項目は受け付けない
	err = uc.SaveUserFields(ctx, cart, &companyID, map[int64]string{field.ID + 100: "x"})
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestCartUsecase_PrepareCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)
	uc := env.cartUsecase(nil)
	cart := testutil.SeedCart(t, env.db, nil)

	_, err := uc.PrepareCheckout(context.Background(), &cart)
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestCartUsecase_SaveForLater(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.cartUsecase(nil)
	cart := testutil.SeedCart(t, env.db, nil)

	_, err := uc.AddToCart(ctx, &cart, AddToCartInput{ProductID: env.catalog.Product.ID, VariantID: env.catalog.VariantA.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, uc.SaveForLater(ctx, &cart))

	stored, err := env.carts.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CartStatusSaved, stored.Status)
}

func TestCheckout_LoadStorage_DropsOtherVersion(t *testing.T) {
	co := NewCheckout(nil, nil, "", "en")
	co.LoadStorage([]byte(`{"version":"0.9.0","email":"old@example.com","employeeid":"E1"}`))
	assert.Equal(t, "", co.Email())
	assert.Equal(t, "", co.EmployeeID())
	assert.True(t, co.IsCleared())
	assert.False(t, co.IsModified())

	co.LoadStorage([]byte(`{"version":"` + CheckoutStorageVersion + `","email":"a@example.com","employeeid":"E1"}`))
	assert.Equal(t, "a@example.com", co.Email())
	assert.Equal(t, "E1", co.EmployeeID())

	co.LoadStorage([]byte(`not json`))
	assert.True(t, co.IsCleared())
}

func TestCheckout_EmailFromUser(t *testing.T) {
	user := &model.User{ID: 7, Email: "staff@example.com"}
	co := NewCheckout(nil, user, "", "en")
	co.SetEmail("other@example.com")

	assert.Equal(t, "staff@example.com", co.Email())
	assert.True(t, co.IsModified())
	assert.Equal(t, int64(7), *co.UserID())
}
