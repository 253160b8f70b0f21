package store

import (
	"context"
	"errors"
	"time"

	"stockflow/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("invalid input")
)

// Repository is the persistence boundary. Every method that touches
// tenant-owned data takes the business id and filters by it; an id that
// exists under another business behaves exactly like a missing id.
type Repository interface {
	CreateBusiness(ctx context.Context, business domain.Business) (*domain.Business, error)
	GetBusiness(ctx context.Context, id string) (*domain.Business, error)

	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, businessID string, id string) (*domain.User, error)
	ListUsers(ctx context.Context, businessID string) ([]domain.User, error)
	SetUserActive(ctx context.Context, businessID string, id string, active bool) error
	UpdateUserPassword(ctx context.Context, businessID string, id string, passwordHash string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, businessID string, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, businessID string, barcode string) (*domain.Product, error)
	ListProducts(ctx context.Context, businessID string) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context, businessID string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SoftDeleteProduct(ctx context.Context, businessID string, id string) error

	// AdjustStock applies a conditional relative stock change: the write only
	// lands when current_stock+delta stays >= 0, so concurrent decrements can
	// never drive stock negative or lose an update. Returns the new stock level.
	AdjustStock(ctx context.Context, businessID string, productID string, delta int) (int, error)

	CountBills(ctx context.Context, businessID string) (int, error)
	// CreateBill persists header, line items and the per-item stock decrements
	// as a single atomic unit; nothing is written when any part fails.
	CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	InsertBillHeader(ctx context.Context, bill domain.Bill) error
	InsertBillItems(ctx context.Context, billID string, items []domain.BillItem) error
	GetBill(ctx context.Context, businessID string, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, businessID string, from time.Time, to time.Time) ([]domain.Bill, error)
	UpdateBillPayment(ctx context.Context, businessID string, id string, status string, paidAmount float64, balance float64) (*domain.Bill, error)
	DeleteBill(ctx context.Context, businessID string, id string) error

	InvoiceNumberExists(ctx context.Context, businessID string, invoiceNumber string) (bool, error)
	// CreatePurchase mirrors CreateBill: header, items and stock increments in
	// one atomic unit.
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	InsertPurchaseHeader(ctx context.Context, purchase domain.Purchase) error
	InsertPurchaseItems(ctx context.Context, purchaseID string, items []domain.PurchaseItem) error
	GetPurchase(ctx context.Context, businessID string, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, businessID string, from time.Time, to time.Time) ([]domain.Purchase, error)
	DeletePurchase(ctx context.Context, businessID string, id string) error

	CreatePayment(ctx context.Context, payment domain.Payment) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, businessID string, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, businessID string, id string) error
	IncrementCustomerTotal(ctx context.Context, businessID string, id string, amount float64) error

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, businessID string, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, businessID string) ([]domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, businessID string, id string) error

	CreateAlert(ctx context.Context, alert domain.Alert) (*domain.Alert, error)
	ListAlerts(ctx context.Context, businessID string, unresolvedOnly bool, limit int) ([]domain.Alert, error)
	MarkAlertRead(ctx context.Context, businessID string, id string) error
	ResolveAlert(ctx context.Context, businessID string, id string) error
	HasUnresolvedAlert(ctx context.Context, businessID string, productID string, alertType string) (bool, error)

	GetSettings(ctx context.Context, businessID string) (*domain.Settings, error)
	UpsertSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error)

	DashboardMetrics(ctx context.Context, businessID string, now time.Time) (domain.DashboardMetrics, error)
	SalesChart(ctx context.Context, businessID string, days int, now time.Time) ([]domain.SalesChartPoint, error)
	SalesReport(ctx context.Context, businessID string, from time.Time, to time.Time) (domain.SalesReport, error)
	PurchasesReport(ctx context.Context, businessID string, from time.Time, to time.Time) (domain.PurchasesReport, error)
	StockSummary(ctx context.Context, businessID string) (domain.StockSummary, error)
}
