package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
)

func TestBillTransactionMovesStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("STOCKFLOW_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STOCKFLOW_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	businessID := uuid.NewString()
	productID := uuid.NewString()
	now := time.Now().UTC()

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bills WHERE business_id = $1`, businessID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE business_id = $1`, businessID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM businesses WHERE id = $1`, businessID)
	})

	if _, err := s.CreateBusiness(ctx, domain.Business{
		ID:        businessID,
		Name:      "Integration Shop",
		OwnerName: "IT",
		Email:     fmt.Sprintf("it-%d@shop.test", stamp),
		Currency:  "USD",
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("create business: %v", err)
	}

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:           productID,
		BusinessID:   businessID,
		Name:         "Integration Widget",
		SKU:          fmt.Sprintf("SKU-IT-%d", stamp),
		Unit:         "pcs",
		SellingPrice: 10,
		CurrentStock: 10,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	bill := domain.Bill{
		ID:            uuid.NewString(),
		BusinessID:    businessID,
		BillNumber:    fmt.Sprintf("IT-%d", stamp),
		Date:          now,
		Subtotal:      40,
		TotalAmount:   40,
		BalanceAmount: 40,
		PaymentMethod: "cash",
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     now,
		Items: []domain.BillItem{{
			ID:          uuid.NewString(),
			ProductID:   productID,
			ProductName: "Integration Widget",
			Quantity:    4,
			UnitPrice:   10,
			Subtotal:    40,
			Total:       40,
		}},
	}
	if _, err := s.CreateBill(ctx, bill); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	product, err := s.GetProduct(ctx, businessID, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.CurrentStock != 6 {
		t.Fatalf("expected stock 6 after sale, got %d", product.CurrentStock)
	}

	// An oversized bill must fail and leave stock and the bill count untouched.
	oversell := bill
	oversell.ID = uuid.NewString()
	oversell.BillNumber = fmt.Sprintf("IT-OVER-%d", stamp)
	oversell.Items = []domain.BillItem{{
		ID:          uuid.NewString(),
		ProductID:   productID,
		ProductName: "Integration Widget",
		Quantity:    100,
		UnitPrice:   10,
		Subtotal:    1000,
		Total:       1000,
	}}
	if _, err := s.CreateBill(ctx, oversell); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err = s.GetProduct(ctx, businessID, productID)
	if err != nil {
		t.Fatalf("get product after failed bill: %v", err)
	}
	if product.CurrentStock != 6 {
		t.Fatalf("failed bill must not move stock, got %d", product.CurrentStock)
	}

	count, err := s.CountBills(ctx, businessID)
	if err != nil {
		t.Fatalf("count bills: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 bill, got %d", count)
	}
}
