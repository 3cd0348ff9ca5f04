package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/dbtest"
	"liontech/model"
)

func addCustomer(t *testing.T, db *sqlx.DB, name, email string, orders ...int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		c := &model.Customer{Name: name, Email: email, Phone: "11987654321"}
		if err := database.UpsertCustomerInTx(ctx, tx, c); err != nil {
			return err
		}
		for i, total := range orders {
			status := model.OrderPaid
			if i > 0 {
				status = model.OrderCancelled
			}
			o := &model.Order{
				ID: uuid.NewString(), Number: "LT" + uuid.NewString()[:8], AccessToken: "t", CustomerID: c.ID,
				CustomerName: name, CustomerEmail: email, CustomerPhone: c.Phone, DeliveryMethod: model.DeliveryPickup,
				PaymentMethod: model.PaymentPix, Installments: 1, SubtotalCents: total, TotalCents: total, Status: status,
			}
			if err := database.InsertOrderInTx(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestListCustomersHandler(t *testing.T) {
	db := dbtest.New(t)
	addCustomer(t, db, "Bruno Lima", "bruno@example.com", 15000, 9000)
	addCustomer(t, db, "Ana Souza", "ana@example.com")

	rec := httptest.NewRecorder()
	ListCustomersHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/customers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []customerView `json:"items"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Ana Souza", page.Items[0].Name)
	assert.Equal(t, 0, page.Items[0].Orders)
	assert.Equal(t, 2, page.Items[1].Orders)
	assert.Equal(t, int64(15000), page.Items[1].SpentCents)
	assert.Equal(t, "R$ 150,00", page.Items[1].Spent)

	rec = httptest.NewRecorder()
	ListCustomersHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/customers?q=BRUNO", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = httptest.NewRecorder()
	ExportCustomersHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/customers/export", nil))
	assert.Contains(t, rec.Body.String(), "Bruno Lima,bruno@example.com,11987654321,,2,150.00,")
}

func TestExportCustomersEscapesFormulas(t *testing.T) {
	db := dbtest.New(t)
	addCustomer(t, db, "=1+2 Carlos", "carlos@example.com", 5000)
	addCustomer(t, db, "@SUM Dora", "dora@example.com")

	rec := httptest.NewRecorder()
	ExportCustomersHandler(db, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/customers/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "'=1+2 Carlos,carlos@example.com,")
	assert.Contains(t, body, "'@SUM Dora,dora@example.com,")
	assert.NotContains(t, body, "\n=1+2")
}
