package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOrderTable_AppendsUnknownSKUColumns(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	orders := []model.Order{
		{ID: 1, CreatedAt: created, Status: model.OrderStatusNew},
		{ID: 2, CreatedAt: created, Status: model.OrderStatusShipped},
	}
	fields := []model.UserField{{ID: 10, Name: "Cost center"}}
	lines := []model.OrderLine{
		{OrderID: 1, ProductSKU: "A", Quantity: 2},
		{OrderID: 1, ProductSKU: "A", Quantity: 1},
		{OrderID: 2, ProductSKU: "GONE", Quantity: 4},
	}
	entries := []model.OrderUserFieldEntry{{OrderID: 2, UserFieldID: 10, Data: "CC-1"}}

	rows := buildOrderTable(orders, fields, []string{"A", "B"}, lines, entries)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Order ID", "Date", "Status", "Cost center", "A", "B", "GONE"}, rows[0])
	assert.Equal(t, []string{"1", "2024-05-01 09:30", "NEW", "", "3", "", ""}, rows[1])
	assert.Equal(t, []string{"2", "2024-05-01 09:30", "SHIPPED", "CC-1", "", "", "4"}, rows[2])
}

func TestOrderExportUsecase_ExportCompanyOrdersCSV(t *testing.T) {
	f := newCheckoutFixture(t, "CC-42")
	ctx := context.Background()
	order := placeTestOrder(t, f)

	uc := NewOrderExportUsecase(f.env.categories, f.env.fields, f.env.orders, f.env.olines, f.env.oentries)

	var buf bytes.Buffer
	name, err := uc.ExportCompanyOrdersCSV(ctx, f.env.catalog.Company.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "acme-orders.csv", name)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Order ID", "Date", "Status", "Cost center", "CHAIR-BLK", "CHAIR-RED"}, rows[0])
	assert.Equal(t, itoa64(order.ID), rows[1][0])
	assert.Equal(t, "NEW", rows[1][2])
	assert.Equal(t, "CC-42", rows[1][3])
	assert.Equal(t, "2", rows[1][4])
	assert.Equal(t, "1", rows[1][5])
}
