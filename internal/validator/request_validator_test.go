package validator

import (
	"context"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quantityForm struct {
	Quantity int    `form:"quantity" validate:"min=0,max=999"`
	Email    string `form:"email" validate:"omitempty,email"`
	Status   string `json:"status" validate:"required,oneof=NEW SHIPPED"`
}

func TestRequestValidator_FieldMessages(t *testing.T) {
	rv := NewRequestValidator()

	err := rv.Validate(&quantityForm{Quantity: 1000, Email: "nope", Status: ""})
	require.Error(t, err)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Ensure this value is less than or equal to 999.", verr.Fields["quantity"])
	assert.Equal(t, "Enter a valid email address.", verr.Fields["email"])
	assert.Equal(t, "This field is required.", verr.Fields["status"])
}

func TestRequestValidator_OK(t *testing.T) {
	rv := NewRequestValidator()
	assert.NoError(t, rv.Validate(&quantityForm{Quantity: 3, Status: "NEW"}))
}

func TestAuthValidator_Login(t *testing.T) {
	v := &authValidator{v: NewRequestValidator().v}

	err := v.ValidateLogin(context.Background(), "bad", "")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Enter a valid email address.", verr.Fields["email"])
	assert.Equal(t, "This field is required.", verr.Fields["password"])

	assert.NoError(t, v.ValidateLogin(context.Background(), "a@example.com", "secret"))
}

// FindByEmailだけ使う
type stubUsers struct {
	repository.UserRepository
	byEmail map[string]*model.User
}

func (s stubUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return s.byEmail[email], nil
}

func TestAuthValidator_Staff(t *testing.T) {
	users := stubUsers{byEmail: map[string]*model.User{
		"taken@example.com": {ID: 1, Email: "taken@example.com"},
	}}
	v := NewAuthValidator(users)
	ctx := context.Background()

	var verr *model.ValidationError

	err := v.ValidateStaff(ctx, "taken@example.com", "longenough", true)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "User with this Email already exists.", verr.Fields["email"])

	err = v.ValidateStaff(ctx, "new@example.com", "short", true)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Ensure this value has at least 8 characters.", verr.Fields["password"])

	// 更新ではパスワード空・重複チェックなし
	assert.NoError(t, v.ValidateStaff(ctx, "taken@example.com", "", false))
	assert.NoError(t, v.ValidateStaff(ctx, "new@example.com", "longenough", true))
}
