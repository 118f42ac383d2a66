package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// StaffUsecase はダッシュボードのスタッフ管理と顧客一覧。
type StaffUsecase struct {
	tx        repo.TransactionManager
	users     repo.UserRepository
	orders    repo.OrderRepository
	validator AuthValidator
	clock     Clock
}

func NewStaffUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	orders repo.OrderRepository,
	validator AuthValidator,
	clock Clock,
) *StaffUsecase {
	return &StaffUsecase{tx: tx, users: users, orders: orders, validator: validator, clock: clock}
}

type StaffInput struct {
	Email    string
	Password string
	Role     model.Role
	IsActive bool
	// 空なら会社なし
	CompanyID *int64
}

type UserListOutput struct {
	Items []UserDTO `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

type CustomerOutput struct {
	UserDTO
	Orders int64 `json:"orders"`
}

type CustomerListOutput struct {
	Items []CustomerOutput `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *StaffUsecase) ListStaff(ctx context.Context, page, limit int, q string) (UserListOutput, error) {
	if err := checkPaging(page, limit); err != nil {
		return UserListOutput{}, err
	}
	role := model.RoleAdmin
	users, total, err := u.users.List(ctx, repo.UserListFilter{Page: page, Limit: limit, Q: strings.TrimSpace(q), Role: &role})
	if err != nil {
		return UserListOutput{}, toHTTPError(err)
	}
	out := UserListOutput{Items: make([]UserDTO, 0, len(users)), Total: total, Page: page, Limit: limit}
	for i := range users {
		out.Items = append(out.Items, toUserDTO(&users[i]))
	}
	return out, nil
}

// 顧客（USER）と注文件数
func (u *StaffUsecase) ListCustomers(ctx context.Context, page, limit int, q string) (CustomerListOutput, error) {
	if err := checkPaging(page, limit); err != nil {
		return CustomerListOutput{}, err
	}
	role := model.RoleUser
	users, total, err := u.users.List(ctx, repo.UserListFilter{Page: page, Limit: limit, Q: strings.TrimSpace(q), Role: &role})
	if err != nil {
		return CustomerListOutput{}, toHTTPError(err)
	}

	ids := make([]int64, 0, len(users))
	for _, usr := range users {
		ids = append(ids, usr.ID)
	}
	counts, err := u.orders.CountByUserIDs(ctx, ids)
	if err != nil {
		return CustomerListOutput{}, toHTTPError(err)
	}

	out := CustomerListOutput{Items: make([]CustomerOutput, 0, len(users)), Total: total, Page: page, Limit: limit}
	for i := range users {
		out.Items = append(out.Items, CustomerOutput{UserDTO: toUserDTO(&users[i]), Orders: counts[users[i].ID]})
	}
	return out, nil
}

func (u *StaffUsecase) Get(ctx context.Context, userID int64) (UserDTO, error) {
	usr, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return UserDTO{}, toHTTPError(err)
	}
	if usr == nil {
		return UserDTO{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return toUserDTO(usr), nil
}

func (u *StaffUsecase) Create(ctx context.Context, actorUserID int64, in StaffInput) (int64, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := u.validator.ValidateStaff(ctx, in.Email, in.Password, true); err != nil {
		return 0, toStaffError(err)
	}
	if in.Role == "" {
		in.Role = model.RoleAdmin
	}
	if in.Role != model.RoleAdmin && in.Role != model.RoleUser {
		return 0, toHTTPError(model.NewValidationError("role", "Select a valid choice."))
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "hash error")
	}

	usr := &model.User{
		Email:        in.Email,
		PasswordHash: string(pwHash),
		Role:         in.Role,
		IsActive:     in.IsActive,
		CompanyID:    in.CompanyID,
	}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if in.CompanyID != nil {
			if _, err := r.Categories().FindByID(ctx, *in.CompanyID); err != nil {
				return err
			}
		}
		if err := r.Users().Create(ctx, usr); err != nil {
			return err
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionCreate,
			ResourceType: model.AuditResourceUser,
			ResourceID:   usr.ID,
			AfterJSON:    auditJSON(toUserDTO(usr)),
			CreatedAt:    u.clock.Now(),
		})
	})
	if err != nil {
		return 0, toStaffError(err)
	}
	return usr.ID, nil
}

// パスワードが空なら変更しない
func (u *StaffUsecase) Update(ctx context.Context, actorUserID int64, userID int64, in StaffInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := u.validator.ValidateStaff(ctx, in.Email, in.Password, false); err != nil {
		return toStaffError(err)
	}
	if in.Role != "" && in.Role != model.RoleAdmin && in.Role != model.RoleUser {
		return toHTTPError(model.NewValidationError("role", "Select a valid choice."))
	}

	return toStaffError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		usr, err := r.Users().FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if usr == nil {
			return repo.ErrNotFound
		}
		before := toUserDTO(usr)

		usr.Email = in.Email
		usr.IsActive = in.IsActive
		usr.CompanyID = in.CompanyID
		usr.Company = nil
		if in.Role != "" {
			usr.Role = in.Role
		}
		if in.Password != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			usr.PasswordHash = string(h)
			// パスワード変更で既存のログインは切る
			usr.TokenVersion++
		}
		usr.UpdatedAt = u.clock.Now()
		if err := r.Users().Update(ctx, usr); err != nil {
			return err
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionUpdate,
			ResourceType: model.AuditResourceUser,
			ResourceID:   userID,
			BeforeJSON:   auditJSON(before),
			AfterJSON:    auditJSON(toUserDTO(usr)),
			CreatedAt:    u.clock.Now(),
		})
	}))
}

func (u *StaffUsecase) Delete(ctx context.Context, actorUserID int64, userID int64) error {
	if actorUserID == userID {
		return NewHTTPError(http.StatusBadRequest, "cannot delete yourself")
	}
	return toStaffError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		usr, err := r.Users().FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if usr == nil {
			return repo.ErrNotFound
		}
		if err := r.Users().Delete(ctx, userID); err != nil {
			return err
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionDelete,
			ResourceType: model.AuditResourceUser,
			ResourceID:   userID,
			BeforeJSON:   auditJSON(toUserDTO(usr)),
			CreatedAt:    u.clock.Now(),
		})
	}))
}

// email重複はフォームのエラーにする
func toStaffError(err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return toHTTPError(model.NewValidationError("email", "User with this Email already exists."))
	}
	return toHTTPError(err)
}
