package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// AdminCatalogUsecase はダッシュボードのカテゴリ/カスタム項目/商品/在庫の管理。
// 変更は監査ログと同じTxで書く
type AdminCatalogUsecase struct {
	tx         repo.TransactionManager
	categories repo.CategoryRepository
	fields     repo.UserFieldRepository
	products   repo.ProductRepository
	audit      repo.AuditLogRepository
	inventory  repo.InventoryRepository
	clock      Clock
}

// Tx外の読み取りに使うrepo
type AdminCatalogRepos struct {
	Categories repo.CategoryRepository
	UserFields repo.UserFieldRepository
	Products   repo.ProductRepository
	Audit      repo.AuditLogRepository
	Inventory  repo.InventoryRepository
}

func NewAdminCatalogUsecase(tx repo.TransactionManager, r AdminCatalogRepos, clock Clock) *AdminCatalogUsecase {
	return &AdminCatalogUsecase{
		tx:         tx,
		categories: r.Categories,
		fields:     r.UserFields,
		products:   r.Products,
		audit:      r.Audit,
		inventory:  r.Inventory,
		clock:      clock,
	}
}

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	Prices      bool
	ParentID    *int64
}

type UserFieldInput struct {
	Name        string
	Description string
	Required    bool
}

type ProductInput struct {
	Name        string
	Description string
	Price       int64
	IsPublished bool
	CategoryIDs []int64
	Attributes  map[string]string
}

type VariantInput struct {
	SKU        string
	Name       string
	Attributes map[string]string
	Stock      *int
}

type CategoryListOutput struct {
	Items []model.Category `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 監査ログ1件。before/afterはJSONにして保存
func (u *AdminCatalogUsecase) writeAudit(
	ctx context.Context,
	r repo.TxRepos,
	actorUserID int64,
	action model.AuditAction,
	resource model.AuditResourceType,
	resourceID int64,
	before, after any,
) error {
	return r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   auditJSON(before),
		AfterJSON:    auditJSON(after),
		CreatedAt:    u.clock.Now(),
	})
}

func auditJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (u *AdminCatalogUsecase) ListCategories(ctx context.Context, page, limit int) (CategoryListOutput, error) {
	if err := checkPaging(page, limit); err != nil {
		return CategoryListOutput{}, err
	}
	items, total, err := u.categories.ListRoots(ctx, page, limit)
	if err != nil {
		return CategoryListOutput{}, toHTTPError(err)
	}
	return CategoryListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (u *AdminCatalogUsecase) GetCategory(ctx context.Context, categoryID int64) (model.Category, []model.Category, error) {
	c, err := u.categories.FindByID(ctx, categoryID)
	if err != nil {
		return model.Category{}, nil, toHTTPError(err)
	}
	children, err := u.categories.ListChildren(ctx, categoryID)
	if err != nil {
		return model.Category{}, nil, toHTTPError(err)
	}
	return c, children, nil
}

func validateCategory(in CategoryInput) (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = model.Slugify(in.Name)
	}

	verr := &model.ValidationError{Fields: map[string]string{}}
	if in.Name == "" {
		verr.Fields["name"] = "This field is required."
	} else if len([]rune(in.Name)) > 128 {
		verr.Fields["name"] = "Ensure this value has at most 128 characters."
	}
	if in.Slug != model.Slugify(in.Slug) || len(in.Slug) > 50 {
		verr.Fields["slug"] = "Enter a valid slug."
	}
	if len(verr.Fields) > 0 {
		return in, verr
	}
	return in, nil
}

func (u *AdminCatalogUsecase) CreateCategory(ctx context.Context, actorUserID int64, in CategoryInput) (int64, error) {
	in, err := validateCategory(in)
	if err != nil {
		return 0, toHTTPError(err)
	}

	c := model.Category{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		Prices:      in.Prices,
		ParentID:    in.ParentID,
	}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if in.ParentID != nil {
			if _, err := r.Categories().FindByID(ctx, *in.ParentID); err != nil {
				return err
			}
		}
		if err := r.Categories().Create(ctx, &c); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionCreate, model.AuditResourceCategory, c.ID, nil, c)
	})
	if err != nil {
		return 0, toHTTPError(err)
	}
	return c.ID, nil
}

func (u *AdminCatalogUsecase) UpdateCategory(ctx context.Context, actorUserID int64, categoryID int64, in CategoryInput) error {
	in, err := validateCategory(in)
	if err != nil {
		return toHTTPError(err)
	}
	if in.ParentID != nil && *in.ParentID == categoryID {
		return toHTTPError(model.NewValidationError("parent", "A category can not be its own parent."))
	}

	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Categories().FindByID(ctx, categoryID)
		if err != nil {
			return err
		}
		if in.ParentID != nil {
			// 自分の子孫を親にすると循環する
			ancestors, err := r.Categories().Ancestors(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			for _, a := range ancestors {
				if a.ID == categoryID {
					return model.NewValidationError("parent", "A category can not be moved under its own child.")
				}
			}
		}

		after := before
		after.Name = in.Name
		after.Slug = in.Slug
		after.Description = in.Description
		after.Prices = in.Prices
		after.ParentID = in.ParentID
		after.Children = nil
		after.UserFields = nil
		before.UserFields = nil
		if err := r.Categories().Update(ctx, after); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionUpdate, model.AuditResourceCategory, categoryID, before, after)
	}))
}

func (u *AdminCatalogUsecase) DeleteCategory(ctx context.Context, actorUserID int64, categoryID int64) error {
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Categories().FindByID(ctx, categoryID)
		if err != nil {
			return err
		}
		before.UserFields = nil
		if err := r.Categories().Delete(ctx, categoryID); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionDelete, model.AuditResourceCategory, categoryID, before, nil)
	}))
}

func validateUserField(in UserFieldInput) (UserFieldInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, model.NewValidationError("name", "This field is required.")
	}
	if len([]rune(in.Name)) > 128 {
		return in, model.NewValidationError("name", "Ensure this value has at most 128 characters.")
	}
	return in, nil
}

func (u *AdminCatalogUsecase) ListUserFields(ctx context.Context, companyID int64) ([]model.UserField, error) {
	if _, err := u.categories.FindByID(ctx, companyID); err != nil {
		return nil, toHTTPError(err)
	}
	fields, err := u.fields.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return fields, nil
}

func (u *AdminCatalogUsecase) CreateUserField(ctx context.Context, actorUserID int64, companyID int64, in UserFieldInput) (int64, error) {
	in, err := validateUserField(in)
	if err != nil {
		return 0, toHTTPError(err)
	}
	f := model.UserField{Name: in.Name, Description: in.Description, CompanyID: companyID, Required: in.Required}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Categories().FindByID(ctx, companyID); err != nil {
			return err
		}
		if err := r.UserFields().Create(ctx, &f); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionCreate, model.AuditResourceUserField, f.ID, nil, f)
	})
	if err != nil {
		return 0, toHTTPError(err)
	}
	return f.ID, nil
}

func (u *AdminCatalogUsecase) UpdateUserField(ctx context.Context, actorUserID int64, fieldID int64, in UserFieldInput) error {
	in, err := validateUserField(in)
	if err != nil {
		return toHTTPError(err)
	}
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.UserFields().FindByID(ctx, fieldID)
		if err != nil {
			return err
		}
		after := before
		after.Name = in.Name
		after.Description = in.Description
		after.Required = in.Required
		if err := r.UserFields().Update(ctx, after); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionUpdate, model.AuditResourceUserField, fieldID, before, after)
	}))
}

func (u *AdminCatalogUsecase) DeleteUserField(ctx context.Context, actorUserID int64, fieldID int64) error {
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.UserFields().FindByID(ctx, fieldID)
		if err != nil {
			return err
		}
		if err := r.UserFields().Delete(ctx, fieldID); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionDelete, model.AuditResourceUserField, fieldID, before, nil)
	}))
}

func (u *AdminCatalogUsecase) ListProducts(ctx context.Context, q repo.ProductListQuery) (ProductListOutput, error) {
	if err := checkPaging(q.Page, q.Limit); err != nil {
		return ProductListOutput{}, err
	}
	if len(q.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	items, total, err := u.products.List(ctx, q)
	if err != nil {
		return ProductListOutput{}, toHTTPError(err)
	}
	return ProductListOutput{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (u *AdminCatalogUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.products.FindByID(ctx, productID)
	if err != nil {
		return model.Product{}, toHTTPError(err)
	}
	return p, nil
}

func validateProduct(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	verr := &model.ValidationError{Fields: map[string]string{}}
	if in.Name == "" {
		verr.Fields["name"] = "This field is required."
	} else if len([]rune(in.Name)) > 128 {
		verr.Fields["name"] = "Ensure this value has at most 128 characters."
	}
	if in.Price < 0 {
		verr.Fields["price"] = "Ensure this value is greater than or equal to 0."
	}
	if len(verr.Fields) > 0 {
		return in, verr
	}
	return in, nil
}

func (u *AdminCatalogUsecase) CreateProduct(ctx context.Context, actorUserID int64, in ProductInput) (int64, error) {
	in, err := validateProduct(in)
	if err != nil {
		return 0, toHTTPError(err)
	}
	p := model.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		IsPublished: in.IsPublished,
		Attributes:  model.Attributes(in.Attributes),
		UpdatedAt:   u.clock.Now(),
	}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Products().Create(ctx, &p, in.CategoryIDs); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionCreate, model.AuditResourceProduct, p.ID, nil, productAudit(p, in.CategoryIDs))
	})
	if err != nil {
		return 0, toHTTPError(err)
	}
	return p.ID, nil
}

func (u *AdminCatalogUsecase) UpdateProduct(ctx context.Context, actorUserID int64, productID int64, in ProductInput) error {
	in, err := validateProduct(in)
	if err != nil {
		return toHTTPError(err)
	}
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		after := model.Product{
			ID:             before.ID,
			ProductClassID: before.ProductClassID,
			Name:           in.Name,
			Description:    in.Description,
			Price:          in.Price,
			IsPublished:    in.IsPublished,
			Attributes:     model.Attributes(in.Attributes),
			UpdatedAt:      u.clock.Now(),
		}
		if err := r.Products().Update(ctx, after, in.CategoryIDs); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionUpdate, model.AuditResourceProduct, productID,
			productAudit(before, categoryIDsOf(before)), productAudit(after, in.CategoryIDs))
	}))
}

func (u *AdminCatalogUsecase) DeleteProduct(ctx context.Context, actorUserID int64, productID int64) error {
	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if err := r.Products().Delete(ctx, productID); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionDelete, model.AuditResourceProduct, productID,
			productAudit(before, categoryIDsOf(before)), nil)
	}))
}

func (u *AdminCatalogUsecase) CreateVariant(ctx context.Context, actorUserID int64, productID int64, in VariantInput) (int64, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU == "" {
		return 0, toHTTPError(model.NewValidationError("sku", "This field is required."))
	}
	if len(in.SKU) > 32 {
		return 0, toHTTPError(model.NewValidationError("sku", "Ensure this value has at most 32 characters."))
	}
	if in.Stock != nil && *in.Stock < 0 {
		return 0, toHTTPError(model.NewValidationError("stock", "Ensure this value is greater than or equal to 0."))
	}

	v := model.ProductVariant{
		SKU:           in.SKU,
		Name:          strings.TrimSpace(in.Name),
		ProductID:     productID,
		Attributes:    model.Attributes(in.Attributes),
		StockQuantity: in.Stock,
	}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			return err
		}
		if err := r.Products().CreateVariant(ctx, &v); err != nil {
			return err
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionCreate, model.AuditResourceVariant, v.ID, nil, v)
	})
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return 0, toHTTPError(model.NewValidationError("sku", "Product variant with this SKU already exists."))
		}
		return 0, toHTTPError(err)
	}
	return v.ID, nil
}

// 在庫を設定（nilは在庫管理しない）。調整履歴と監査ログも残す
func (u *AdminCatalogUsecase) SetVariantStock(ctx context.Context, actorUserID int64, variantID int64, stock *int, reason string) error {
	if variantID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if stock != nil && *stock < 0 {
		return toHTTPError(model.NewValidationError("stock", "Ensure this value is greater than or equal to 0."))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return toHTTPError(model.NewValidationError("reason", "This field is required."))
	}

	return toHTTPError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		adj := model.StockAdjustment{
			VariantID:   variantID,
			ActorUserID: actorUserID,
			StockAfter:  stock,
			Reason:      reason,
			CreatedAt:   u.clock.Now(),
		}
		if err := r.Inventory().Adjust(ctx, &adj); err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		return u.writeAudit(ctx, r, actorUserID, model.AuditActionUpdateStock, model.AuditResourceVariant, variantID,
			map[string]*int{"stock": adj.StockBefore}, map[string]*int{"stock": adj.StockAfter})
	}))
}

// バリアントの在庫調整履歴（新しい順）
func (u *AdminCatalogUsecase) StockHistory(ctx context.Context, variantID int64) ([]model.StockAdjustment, error) {
	if variantID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if _, err := u.products.FindVariantByID(ctx, variantID); err != nil {
		return nil, toHTTPError(err)
	}
	out, err := u.inventory.History(ctx, variantID, 50)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return out, nil
}

type ActivityOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// スタッフ操作の履歴。resourceは空なら全種類
func (u *AdminCatalogUsecase) Activity(ctx context.Context, f repo.ActivityFilter) (ActivityOutput, error) {
	if err := checkPaging(f.Page, f.Limit); err != nil {
		return ActivityOutput{}, err
	}
	if f.Resource != "" && !f.Resource.Valid() {
		return ActivityOutput{}, NewHTTPError(http.StatusBadRequest, "invalid resource")
	}
	items, total, err := u.audit.List(ctx, f)
	if err != nil {
		return ActivityOutput{}, toHTTPError(err)
	}
	return ActivityOutput{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// 監査ログ用（variants/imagesは含めない）
func productAudit(p model.Product, categoryIDs []int64) map[string]any {
	return map[string]any{
		"name":         p.Name,
		"price":        p.Price,
		"is_published": p.IsPublished,
		"categories":   categoryIDs,
	}
}

func categoryIDsOf(p model.Product) []int64 {
	ids := make([]int64, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}
