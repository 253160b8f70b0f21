package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
	"stockflow/backend/internal/store/memory"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, opts Options) (*Service, *memory.Store, context.Context) {
	t.Helper()
	repo := memory.New()
	svc := New(repo, nil, quietLogger(), opts)
	businessID := uuid.NewString()
	ctx := WithActor(context.Background(), domain.Actor{
		UserID:     uuid.NewString(),
		BusinessID: businessID,
		Role:       domain.RoleAdmin,
	})
	return svc, repo, ctx
}

func mustCreateProduct(t *testing.T, svc *Service, ctx context.Context, req domain.ProductCreateRequest) *domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(ctx, req)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestCreateBillComputesTotalsAndStock(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", SellingPrice: 100, InitialStock: 10, MinStockLevel: 2,
	})

	bill, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Items: []domain.BillItemInput{{
			ProductID:          product.ID,
			Quantity:           2,
			DiscountPercentage: 10,
			TaxPercentage:      5,
		}},
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	item := bill.Items[0]
	if item.Subtotal != 200 || item.DiscountAmount != 20 || item.TaxAmount != 9 || item.Total != 189 {
		t.Fatalf("item amounts wrong: %+v", item)
	}
	// Document-level discount/tax were zero, so the bill total is the document
	// subtotal, untouched by the per-line rates.
	if bill.Subtotal != 200 || bill.TotalAmount != 200 {
		t.Fatalf("bill totals wrong: subtotal=%v total=%v", bill.Subtotal, bill.TotalAmount)
	}
	if bill.PaymentStatus != domain.PaymentUnpaid {
		t.Fatalf("expected unpaid status, got %s", bill.PaymentStatus)
	}

	fresh, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if fresh.CurrentStock != 8 {
		t.Fatalf("expected stock 8 after selling 2 of 10, got %d", fresh.CurrentStock)
	}
}

func TestCreateBillInsufficientStockWritesNothing(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Scarce", SellingPrice: 10, InitialStock: 5,
	})

	_, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 6}},
		PaymentMethod: "cash",
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	bills, err := svc.ListBills(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 0 {
		t.Fatalf("expected no bills after rejected sale, got %d", len(bills))
	}
	fresh, _ := svc.GetProduct(ctx, product.ID)
	if fresh.CurrentStock != 5 {
		t.Fatalf("stock must be untouched, got %d", fresh.CurrentStock)
	}
}

func TestCreateBillMixedItemsRejectedAtomically(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	plenty := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Plenty", SellingPrice: 10, InitialStock: 100,
	})
	scarce := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Scarce", SellingPrice: 10, InitialStock: 1,
	})

	_, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Items: []domain.BillItemInput{
			{ProductID: plenty.ID, Quantity: 5},
			{ProductID: scarce.ID, Quantity: 2},
		},
		PaymentMethod: "cash",
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	freshPlenty, _ := svc.GetProduct(ctx, plenty.ID)
	if freshPlenty.CurrentStock != 100 {
		t.Fatalf("sufficient item must not be decremented when the bill fails, got %d", freshPlenty.CurrentStock)
	}
}

func TestSequentialBillNumbers(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", SellingPrice: 10, InitialStock: 100,
	})

	var prev int
	for i := 0; i < 3; i++ {
		bill, err := svc.CreateBill(ctx, domain.BillCreateRequest{
			Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 1}},
			PaymentMethod: "cash",
		})
		if err != nil {
			t.Fatalf("create bill %d: %v", i, err)
		}
		n, err := strconv.Atoi(bill.BillNumber)
		if err != nil {
			t.Fatalf("bill number %q is not numeric: %v", bill.BillNumber, err)
		}
		if n <= prev {
			t.Fatalf("bill numbers must increase: got %d after %d", n, prev)
		}
		prev = n
	}
}

func TestCreateBillPaymentStatusAndSideEffects(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", SellingPrice: 50, InitialStock: 10,
	})
	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Ada", Phone: "123"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	bill, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		CustomerID:    customer.ID,
		Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 2}},
		PaymentMethod: "cash",
		PaidAmount:    40,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.PaymentStatus != domain.PaymentPartial {
		t.Fatalf("expected partial status for 40 of 100, got %s", bill.PaymentStatus)
	}
	if bill.BalanceAmount != 60 {
		t.Fatalf("expected balance 60, got %v", bill.BalanceAmount)
	}

	fresh, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if fresh.TotalPurchases != 100 {
		t.Fatalf("expected customer lifetime total 100, got %v", fresh.TotalPurchases)
	}
}

func TestDuplicateSKURejected(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{Name: "A", SKU: "SKU-1"})

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "B", SKU: "SKU-1"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused sku, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	repo := memory.New()
	svc := New(repo, nil, quietLogger(), Options{})

	ctxA := WithActor(context.Background(), domain.Actor{
		UserID: uuid.NewString(), BusinessID: uuid.NewString(), Role: domain.RoleAdmin,
	})
	ctxB := WithActor(context.Background(), domain.Actor{
		UserID: uuid.NewString(), BusinessID: uuid.NewString(), Role: domain.RoleAdmin,
	})

	product, err := svc.CreateProduct(ctxA, domain.ProductCreateRequest{Name: "Private", InitialStock: 5})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := svc.GetProduct(ctxB, product.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant read must behave as not found, got %v", err)
	}
	if _, err := svc.AdjustStock(ctxB, product.ID, domain.StockAdjustRequest{Delta: 5}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant stock adjustment must behave as not found, got %v", err)
	}
}

func TestAdjustStockRequiresAdmin(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{Name: "Widget", InitialStock: 5})

	actor, _ := ActorFromContext(ctx)
	actor.Role = domain.RoleManager
	managerCtx := WithActor(context.Background(), actor)

	_, err := svc.AdjustStock(managerCtx, product.ID, domain.StockAdjustRequest{Delta: 3})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for manager, got %v", err)
	}
}

func TestCreatePurchaseIncrementsStock(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", PurchasePrice: 7.5, InitialStock: 2,
	})

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		InvoiceNumber: "INV-100",
		Items:         []domain.PurchaseItemInput{{ProductID: product.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.TotalAmount != 75 {
		t.Fatalf("expected total 75 (10 x 7.50), got %v", purchase.TotalAmount)
	}

	fresh, _ := svc.GetProduct(ctx, product.ID)
	if fresh.CurrentStock != 12 {
		t.Fatalf("expected stock 12 after intake, got %d", fresh.CurrentStock)
	}
}

func TestDuplicateInvoiceNumberRejected(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{Name: "Widget"})

	req := domain.PurchaseCreateRequest{
		InvoiceNumber: "INV-1",
		Items:         []domain.PurchaseItemInput{{ProductID: product.ID, Quantity: 1, PurchasePrice: 1}},
	}
	if _, err := svc.CreatePurchase(ctx, req); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if _, err := svc.CreatePurchase(ctx, req); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused invoice number, got %v", err)
	}
}

func TestBarcodeSaleRace(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Last one", Barcode: "555", SellingPrice: 9.99, InitialStock: 1,
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.BarcodeSale(ctx, domain.BarcodeSaleRequest{Barcode: "555", Quantity: 1})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one of two concurrent sales must win, got %d", succeeded)
	}

	fresh, _ := svc.GetProduct(ctx, product.ID)
	if fresh.CurrentStock != 0 {
		t.Fatalf("expected final stock 0, got %d", fresh.CurrentStock)
	}
	bills, _ := svc.ListBills(ctx, time.Time{}, time.Time{})
	if len(bills) != 1 {
		t.Fatalf("losing sale must leave no bill behind, got %d bills", len(bills))
	}
}

func TestBarcodeSaleGeneratesAlert(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", Barcode: "777", SellingPrice: 5, InitialStock: 6, MinStockLevel: 5,
	})

	if _, err := svc.BarcodeSale(ctx, domain.BarcodeSaleRequest{Barcode: "777", Quantity: 3}); err != nil {
		t.Fatalf("barcode sale: %v", err)
	}

	alerts, err := svc.ListAlerts(ctx, false, 10)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	found := false
	for _, alert := range alerts {
		if alert.AlertType == domain.AlertLowStock {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a low_stock alert after dropping to 3 of min 5, got %+v", alerts)
	}
}

func TestAlertDedupeSuppressesRepeats(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{DedupeAlerts: true})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", SellingPrice: 5, InitialStock: 4, MinStockLevel: 10,
	})

	// Initial stock 4 of min 10 already produced one low_stock alert; further
	// decrements must not add more while it stays unresolved.
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateBill(ctx, domain.BillCreateRequest{
			Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 1}},
			PaymentMethod: "cash",
		}); err != nil {
			t.Fatalf("create bill %d: %v", i, err)
		}
	}

	alerts, _ := svc.ListAlerts(ctx, false, 50)
	lowStock := 0
	for _, alert := range alerts {
		if alert.AlertType == domain.AlertLowStock {
			lowStock++
		}
	}
	if lowStock != 1 {
		t.Fatalf("expected one deduped low_stock alert, got %d", lowStock)
	}
}

// failingItemsRepo simulates the line-item insert blowing up mid-sequence so
// the legacy compensation path can be observed.
type failingItemsRepo struct {
	store.Repository
}

func (f *failingItemsRepo) InsertBillItems(ctx context.Context, billID string, items []domain.BillItem) error {
	return fmt.Errorf("simulated item insert failure")
}

func TestLegacyCompensationRemovesOrphanHeader(t *testing.T) {
	inner := memory.New()
	repo := &failingItemsRepo{Repository: inner}
	svc := New(repo, nil, quietLogger(), Options{LegacyCompensation: true})
	ctx := WithActor(context.Background(), domain.Actor{
		UserID: uuid.NewString(), BusinessID: uuid.NewString(), Role: domain.RoleAdmin,
	})

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Widget", SellingPrice: 10, InitialStock: 5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	_, err = svc.CreateBill(ctx, domain.BillCreateRequest{
		Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	if err == nil {
		t.Fatalf("expected bill creation to fail")
	}

	bills, err := svc.ListBills(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 0 {
		t.Fatalf("compensation must remove the orphan header, found %d bills", len(bills))
	}
}

func TestUpdateProductCannotTouchStock(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	product := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Widget", InitialStock: 7,
	})

	name := "Renamed"
	updated, err := svc.UpdateProduct(ctx, product.ID, domain.ProductUpdateRequest{Name: &name})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.CurrentStock != 7 {
		t.Fatalf("edit must not move stock, got %d", updated.CurrentStock)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name not applied: %s", updated.Name)
	}
}


func TestReportAggregatesRoundedToCents(t *testing.T) {
	svc, _, ctx := newTestService(t, Options{})
	// 1.1 + 2.2 accumulates float noise; the reports must still show 3.3.
	first := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "First", PurchasePrice: 1.1, SellingPrice: 1.1, InitialStock: 1,
	})
	second := mustCreateProduct(t, svc, ctx, domain.ProductCreateRequest{
		Name: "Second", PurchasePrice: 2.2, SellingPrice: 2.2, InitialStock: 1,
	})

	summary, err := svc.StockSummary(ctx)
	if err != nil {
		t.Fatalf("stock summary: %v", err)
	}
	if summary.TotalValue != 3.3 {
		t.Fatalf("expected stock value 3.3, got %v", summary.TotalValue)
	}

	for _, product := range []*domain.Product{first, second} {
		if _, err := svc.CreateBill(ctx, domain.BillCreateRequest{
			Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 1}},
			PaymentMethod: "cash",
		}); err != nil {
			t.Fatalf("create bill for %s: %v", product.Name, err)
		}
	}

	report, err := svc.SalesReport(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if report.GrossTotal != 3.3 {
		t.Fatalf("expected gross total 3.3, got %v", report.GrossTotal)
	}

	profitLoss, err := svc.ProfitLossReport(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("profit loss report: %v", err)
	}
	if profitLoss.Sales != 3.3 || profitLoss.Profit != 3.3 {
		t.Fatalf("expected rounded sales and profit 3.3, got %+v", profitLoss)
	}
}
