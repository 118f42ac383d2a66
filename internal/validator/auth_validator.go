package validator

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/go-playground/validator/v10"
)

type authValidator struct {
	users repository.UserRepository
	v     *validator.Validate
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users, v: validator.New()}
}

// ログインの入力を検証
func (a *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	verr := &model.ValidationError{Fields: map[string]string{}}

	// 必須チェック + email形式
	if msg := a.checkEmail(email); msg != "" {
		verr.Fields["email"] = msg
	}
	if password == "" {
		verr.Fields["password"] = "This field is required."
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// スタッフ作成/更新の入力を検証。更新時はパスワード空でOK（変更しない）
func (a *authValidator) ValidateStaff(ctx context.Context, email string, password string, creating bool) error {
	verr := &model.ValidationError{Fields: map[string]string{}}

	if msg := a.checkEmail(email); msg != "" {
		verr.Fields["email"] = msg
	}

	// パスワード最低文字数（8）
	if creating || password != "" {
		if err := a.v.Var(password, "required,min=8,max=72"); err != nil {
			verr.Fields["password"] = "Ensure this value has at least 8 characters."
		}
	}

	// email重複チェック（作成時だけ。更新時はDBの一意制約で弾く）
	if creating && verr.Fields["email"] == "" {
		u, err := a.users.FindByEmail(ctx, strings.TrimSpace(email))
		if err == nil && u != nil {
			verr.Fields["email"] = "User with this Email already exists."
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (a *authValidator) checkEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "This field is required."
	}
	if err := a.v.Var(email, "email,max=254"); err != nil {
		return "Enter a valid email address."
	}
	return ""
}
