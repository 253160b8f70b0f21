package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/service"
	"stockflow/backend/internal/store/memory"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.New()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := service.New(repo, nil, log, service.Options{})
	auth := NewAuthManager("test-secret", time.Hour, repo)
	return New(svc, auth, "http://127.0.0.1:3000", log).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not the standard envelope: %v (body %s)", err, rec.Body.String())
	}
	return rec, env
}

func registerBusiness(t *testing.T, handler http.Handler, email string) string {
	t.Helper()
	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		BusinessName: "Corner Shop",
		OwnerName:    "Sam",
		Email:        email,
		Password:     "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.AccessToken
}

func createProduct(t *testing.T, handler http.Handler, token string, req domain.ProductCreateRequest) domain.Product {
	t.Helper()
	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var product domain.Product
	if err := json.Unmarshal(env.Data, &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	return product
}

func TestRegisterCreateProductAndSale(t *testing.T) {
	handler := newTestHandler(t)
	token := registerBusiness(t, handler, "owner@shop.test")

	product := createProduct(t, handler, token, domain.ProductCreateRequest{
		Name:         "Widget",
		SellingPrice: 100,
		InitialStock: 10,
	})

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.BillCreateRequest{
		Items: []domain.BillItemInput{{
			ProductID:          product.ID,
			Quantity:           2,
			DiscountPercentage: 10,
			TaxPercentage:      5,
		}},
		PaymentMethod: "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}

	var bill domain.Bill
	if err := json.Unmarshal(env.Data, &bill); err != nil {
		t.Fatalf("decode bill: %v", err)
	}
	if bill.Subtotal != 200 || bill.TotalAmount != 200 {
		t.Fatalf("bill totals wrong: subtotal=%v total=%v", bill.Subtotal, bill.TotalAmount)
	}
	if bill.Items[0].Total != 189 {
		t.Fatalf("line total wrong: %v", bill.Items[0].Total)
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}
	var fresh domain.Product
	if err := json.Unmarshal(env.Data, &fresh); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if fresh.CurrentStock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", fresh.CurrentStock)
	}
}

func TestSaleInsufficientStockConflict(t *testing.T) {
	handler := newTestHandler(t)
	token := registerBusiness(t, handler, "owner@shop.test")
	product := createProduct(t, handler, token, domain.ProductCreateRequest{
		Name: "Scarce", SellingPrice: 10, InitialStock: 5,
	})

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.BillCreateRequest{
		Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 6}},
		PaymentMethod: "cash",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d (%s)", rec.Code, rec.Body.String())
	}
	if env.Success {
		t.Fatalf("oversell must not be a success envelope")
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/sales", token, nil)
	var bills []domain.Bill
	if err := json.Unmarshal(env.Data, &bills); err != nil {
		t.Fatalf("decode sales: %v", err)
	}
	if len(bills) != 0 {
		t.Fatalf("rejected sale must not persist, got %d bills", len(bills))
	}
}

func TestValidationFailureReturns400(t *testing.T) {
	handler := newTestHandler(t)
	token := registerBusiness(t, handler, "owner@shop.test")

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"selling_price": 10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for product without name, got %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":          []any{},
		"payment_method": "cash",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty item list, got %d", rec.Code)
	}
}

func TestBarcodeFlows(t *testing.T) {
	handler := newTestHandler(t)
	token := registerBusiness(t, handler, "owner@shop.test")
	product := createProduct(t, handler, token, domain.ProductCreateRequest{
		Name: "Soda", Barcode: "4006381333931", SellingPrice: 2.5, PurchasePrice: 1.5, InitialStock: 10,
	})

	rec, env := doJSON(t, handler, http.MethodGet, "/api/v1/barcode/product/4006381333931", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("barcode lookup: expected 200, got %d", rec.Code)
	}
	var found domain.Product
	if err := json.Unmarshal(env.Data, &found); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if found.ID != product.ID {
		t.Fatalf("lookup returned wrong product")
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/barcode/purchase", token, domain.BarcodePurchaseRequest{
		Barcode: "4006381333931", Quantity: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("barcode purchase: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, handler, http.MethodPost, "/api/v1/barcode/sale", token, domain.BarcodeSaleRequest{
		Barcode: "4006381333931", Quantity: 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("barcode sale: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var bill domain.Bill
	if err := json.Unmarshal(env.Data, &bill); err != nil {
		t.Fatalf("decode bill: %v", err)
	}
	if bill.TotalAmount != 7.5 {
		t.Fatalf("expected total 7.50 for 3 x 2.50, got %v", bill.TotalAmount)
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+product.ID, token, nil)
	var fresh domain.Product
	if err := json.Unmarshal(env.Data, &fresh); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if fresh.CurrentStock != 12 {
		t.Fatalf("expected stock 12 (10 +5 -3), got %d", fresh.CurrentStock)
	}
}

func TestLowStockRouteBeatsWildcard(t *testing.T) {
	handler := newTestHandler(t)
	token := registerBusiness(t, handler, "owner@shop.test")
	createProduct(t, handler, token, domain.ProductCreateRequest{
		Name: "Nearly gone", SellingPrice: 5, InitialStock: 1, MinStockLevel: 3,
	})

	rec, env := doJSON(t, handler, http.MethodGet, "/api/v1/products/low-stock", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("low-stock: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var products []domain.Product
	if err := json.Unmarshal(env.Data, &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected one low-stock product, got %d", len(products))
	}
}

func TestDashboardAndReports(t *testing.T) {
	handler := newTestHandler(t)
	token := registerBusiness(t, handler, "owner@shop.test")
	product := createProduct(t, handler, token, domain.ProductCreateRequest{
		Name: "Widget", SellingPrice: 10, PurchasePrice: 4, InitialStock: 20,
	})

	for i := 0; i < 2; i++ {
		rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.BillCreateRequest{
			Items:         []domain.BillItemInput{{ProductID: product.ID, Quantity: 1}},
			PaymentMethod: "cash",
			PaidAmount:    10,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("sale %d: expected 201, got %d", i, rec.Code)
		}
	}

	rec, env := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/metrics", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", rec.Code)
	}
	var metrics domain.DashboardMetrics
	if err := json.Unmarshal(env.Data, &metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if metrics.TodaySalesCount != 2 || metrics.TodaySalesTotal != 20 {
		t.Fatalf("metrics wrong: %+v", metrics)
	}

	today := time.Now().UTC().Format("2006-01-02")
	path := fmt.Sprintf("/api/v1/reports/sales?from=%s&to=%s", today, today)
	rec, env = doJSON(t, handler, http.MethodGet, path, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales report: expected 200, got %d", rec.Code)
	}
	var report domain.SalesReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.BillCount != 2 || report.GrossTotal != 20 {
		t.Fatalf("report wrong: %+v", report)
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/reports/stock-summary", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stock summary: expected 200, got %d", rec.Code)
	}
	var summary domain.StockSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalProducts != 1 || summary.Lines[0].CurrentStock != 18 {
		t.Fatalf("summary wrong: %+v", summary)
	}
}
