package usecase

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

const exportDateLayout = "2006-01-02 15:04"

// OrderExportUsecase は会社（カテゴリ）単位の注文CSV。
type OrderExportUsecase struct {
	categories repo.CategoryRepository
	fields     repo.UserFieldRepository
	orders     repo.OrderRepository
	lines      repo.OrderLineRepository
	entries    repo.OrderUserFieldRepository
}

func NewOrderExportUsecase(
	categories repo.CategoryRepository,
	fields repo.UserFieldRepository,
	orders repo.OrderRepository,
	lines repo.OrderLineRepository,
	entries repo.OrderUserFieldRepository,
) *OrderExportUsecase {
	return &OrderExportUsecase{
		categories: categories,
		fields:     fields,
		orders:     orders,
		lines:      lines,
		entries:    entries,
	}
}

// 1行目は 注文ID/日付/ステータス + カスタム項目 + SKU。
// ヘッダーに無いSKU（後から消えた商品など）は末尾に列を足す
func (u *OrderExportUsecase) ExportCompanyOrdersCSV(ctx context.Context, companyID int64, w io.Writer) (string, error) {
	if companyID <= 0 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	company, err := u.categories.FindByID(ctx, companyID)
	if err != nil {
		return "", toHTTPError(err)
	}

	fields, err := u.fields.ListByCompanyID(ctx, companyID)
	if err != nil {
		return "", toHTTPError(err)
	}
	skus, err := u.categories.ListSKUs(ctx, companyID)
	if err != nil {
		return "", toHTTPError(err)
	}
	orders, err := u.orders.ListByCompanyID(ctx, companyID)
	if err != nil {
		return "", toHTTPError(err)
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	lines, err := u.lines.ListByOrderIDs(ctx, ids)
	if err != nil {
		return "", toHTTPError(err)
	}
	entries, err := u.entries.ListByOrderIDs(ctx, ids)
	if err != nil {
		return "", toHTTPError(err)
	}

	rows := buildOrderTable(orders, fields, skus, lines, entries)

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return "", NewHTTPError(http.StatusInternalServerError, "write csv")
	}
	return company.Slug + "-orders.csv", nil
}

// rows[0]がヘッダー
func buildOrderTable(
	orders []model.Order,
	fields []model.UserField,
	skus []string,
	lines []model.OrderLine,
	entries []model.OrderUserFieldEntry,
) [][]string {
	header := []string{"Order ID", "Date", "Status"}
	fieldCol := map[int64]int{}
	for _, f := range fields {
		fieldCol[f.ID] = len(header)
		header = append(header, f.Name)
	}
	skuCol := map[string]int{}
	for _, s := range skus {
		if _, ok := skuCol[s]; ok {
			continue
		}
		skuCol[s] = len(header)
		header = append(header, s)
	}

	linesByOrder := map[int64][]model.OrderLine{}
	for _, l := range lines {
		linesByOrder[l.OrderID] = append(linesByOrder[l.OrderID], l)
	}
	entriesByOrder := map[int64][]model.OrderUserFieldEntry{}
	for _, e := range entries {
		entriesByOrder[e.OrderID] = append(entriesByOrder[e.OrderID], e)
	}

	body := make([][]string, 0, len(orders))
	for _, o := range orders {
		row := make([]string, len(header))
		row[0] = itoa64(o.ID)
		row[1] = o.CreatedAt.Format(exportDateLayout)
		row[2] = string(o.Status)

		for _, e := range entriesByOrder[o.ID] {
			if col, ok := fieldCol[e.UserFieldID]; ok {
				row[col] = e.Data
			}
		}

		qty := map[int]int{}
		for _, l := range linesByOrder[o.ID] {
			col, ok := skuCol[l.ProductSKU]
			if !ok {
				col = len(header)
				skuCol[l.ProductSKU] = col
				header = append(header, l.ProductSKU)
			}
			qty[col] += l.Quantity
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		for col, n := range qty {
			row[col] = itoa(n)
		}
		body = append(body, row)
	}

	// 途中で列が増えた分を埋める
	for i := range body {
		for len(body[i]) < len(header) {
			body[i] = append(body[i], "")
		}
	}

	return append([][]string{header}, body...)
}
