// Package memory is a mutex-protected in-process implementation of the
// Repository, used for development without postgres and for tests. Stock
// mutation uses the same conditional rule as the SQL store so concurrency
// behavior matches.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stockflow/backend/internal/alerts"
	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	businesses map[string]domain.Business
	users      map[string]domain.User
	products   map[string]domain.Product
	bills      map[string]domain.Bill
	purchases  map[string]domain.Purchase
	payments   map[string]domain.Payment
	customers  map[string]domain.Customer
	suppliers  map[string]domain.Supplier
	alerts     map[string]domain.Alert
	settings   map[string]domain.Settings
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		businesses: make(map[string]domain.Business),
		users:      make(map[string]domain.User),
		products:   make(map[string]domain.Product),
		bills:      make(map[string]domain.Bill),
		purchases:  make(map[string]domain.Purchase),
		payments:   make(map[string]domain.Payment),
		customers:  make(map[string]domain.Customer),
		suppliers:  make(map[string]domain.Supplier),
		alerts:     make(map[string]domain.Alert),
		settings:   make(map[string]domain.Settings),
	}
}

// ---- businesses ----

func (s *Store) CreateBusiness(ctx context.Context, business domain.Business) (*domain.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[business.ID] = business
	out := business
	return &out, nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	business, ok := s.businesses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := business
	return &out, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, fmt.Errorf("%w: email %s", store.ErrDuplicate, user.Email)
		}
	}
	s.users[user.ID] = user
	out := user
	return &out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			out := user
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUser(ctx context.Context, businessID string, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok || user.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	out := user
	return &out, nil
}

func (s *Store) ListUsers(ctx context.Context, businessID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, user := range s.users {
		if user.BusinessID == businessID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetUserActive(ctx context.Context, businessID string, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.BusinessID != businessID {
		return store.ErrNotFound
	}
	user.Active = active
	s.users[id] = user
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, businessID string, id string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.BusinessID != businessID {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.users[id] = user
	return nil
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.BusinessID == product.BusinessID && strings.EqualFold(existing.SKU, product.SKU) {
			return nil, fmt.Errorf("%w: sku %s", store.ErrDuplicate, product.SKU)
		}
	}
	s.products[product.ID] = product
	out := product
	return &out, nil
}

func (s *Store) GetProduct(ctx context.Context, businessID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok || product.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	out := product
	return &out, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, businessID string, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, product := range s.products {
		if product.BusinessID == businessID && product.Barcode != "" && product.Barcode == barcode {
			out := product
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0)
	for _, product := range s.products {
		if product.BusinessID == businessID && product.Active {
			out = append(out, product)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0)
	for _, product := range s.products {
		if product.BusinessID != businessID || !product.Active {
			continue
		}
		if product.CurrentStock == 0 || product.CurrentStock < product.MinStockLevel {
			out = append(out, product)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentStock < out[j].CurrentStock })
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.ID]
	if !ok || existing.BusinessID != product.BusinessID {
		return nil, store.ErrNotFound
	}
	// Stock is owned by AdjustStock; an edit never moves it.
	product.CurrentStock = existing.CurrentStock
	s.products[product.ID] = product
	out := product
	return &out, nil
}

func (s *Store) SoftDeleteProduct(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok || product.BusinessID != businessID {
		return store.ErrNotFound
	}
	product.Active = false
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, businessID string, productID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustStockLocked(businessID, productID, delta)
}

func (s *Store) adjustStockLocked(businessID string, productID string, delta int) (int, error) {
	product, ok := s.products[productID]
	if !ok || product.BusinessID != businessID {
		return 0, store.ErrNotFound
	}
	next := product.CurrentStock + delta
	if next < 0 {
		return 0, fmt.Errorf("%w: product %s has %d in stock", store.ErrInsufficientStock, productID, product.CurrentStock)
	}
	product.CurrentStock = next
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return next, nil
}

// ---- bills ----

func (s *Store) CountBills(ctx context.Context, businessID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, bill := range s.bills {
		if bill.BusinessID == businessID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// All-or-nothing: verify every decrement fits before applying any.
	for _, item := range bill.Items {
		product, ok := s.products[item.ProductID]
		if !ok || product.BusinessID != bill.BusinessID {
			return nil, store.ErrNotFound
		}
		if product.CurrentStock < item.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d in stock", store.ErrInsufficientStock, item.ProductID, product.CurrentStock)
		}
	}
	for _, item := range bill.Items {
		if _, err := s.adjustStockLocked(bill.BusinessID, item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}
	}
	s.bills[bill.ID] = cloneBill(bill)
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) InsertBillHeader(ctx context.Context, bill domain.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	header := cloneBill(bill)
	header.Items = nil
	s.bills[bill.ID] = header
	return nil
}

func (s *Store) InsertBillItems(ctx context.Context, billID string, items []domain.BillItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[billID]
	if !ok {
		return store.ErrNotFound
	}
	bill.Items = append(bill.Items, items...)
	s.bills[billID] = bill
	return nil
}

func (s *Store) GetBill(ctx context.Context, businessID string, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bill, ok := s.bills[id]
	if !ok || bill.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) ListBills(ctx context.Context, businessID string, from time.Time, to time.Time) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Bill, 0)
	for _, bill := range s.bills {
		if bill.BusinessID != businessID || !inRange(bill.Date, from, to) {
			continue
		}
		out = append(out, cloneBill(bill))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateBillPayment(ctx context.Context, businessID string, id string, status string, paidAmount float64, balance float64) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[id]
	if !ok || bill.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	bill.PaymentStatus = status
	bill.PaidAmount = paidAmount
	bill.BalanceAmount = balance
	s.bills[id] = bill
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) DeleteBill(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[id]
	if !ok || bill.BusinessID != businessID {
		return store.ErrNotFound
	}
	delete(s.bills, id)
	return nil
}

// ---- purchases ----

func (s *Store) InvoiceNumberExists(ctx context.Context, businessID string, invoiceNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, purchase := range s.purchases {
		if purchase.BusinessID == businessID && purchase.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.purchases {
		if existing.BusinessID == purchase.BusinessID && existing.InvoiceNumber == purchase.InvoiceNumber {
			return nil, fmt.Errorf("%w: invoice %s", store.ErrDuplicate, purchase.InvoiceNumber)
		}
	}
	for _, item := range purchase.Items {
		if _, err := s.adjustStockLocked(purchase.BusinessID, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}
	s.purchases[purchase.ID] = clonePurchase(purchase)
	out := clonePurchase(purchase)
	return &out, nil
}

func (s *Store) InsertPurchaseHeader(ctx context.Context, purchase domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	header := clonePurchase(purchase)
	header.Items = nil
	s.purchases[purchase.ID] = header
	return nil
}

func (s *Store) InsertPurchaseItems(ctx context.Context, purchaseID string, items []domain.PurchaseItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	purchase, ok := s.purchases[purchaseID]
	if !ok {
		return store.ErrNotFound
	}
	purchase.Items = append(purchase.Items, items...)
	s.purchases[purchaseID] = purchase
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, businessID string, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	purchase, ok := s.purchases[id]
	if !ok || purchase.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	out := clonePurchase(purchase)
	return &out, nil
}

func (s *Store) ListPurchases(ctx context.Context, businessID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Purchase, 0)
	for _, purchase := range s.purchases {
		if purchase.BusinessID != businessID || !inRange(purchase.Date, from, to) {
			continue
		}
		out = append(out, clonePurchase(purchase))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeletePurchase(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	purchase, ok := s.purchases[id]
	if !ok || purchase.BusinessID != businessID {
		return store.ErrNotFound
	}
	delete(s.purchases, id)
	return nil
}

// ---- payments ----

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.ID] = payment
	return nil
}

// ---- customers ----

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
	out := customer
	return &out, nil
}

func (s *Store) GetCustomer(ctx context.Context, businessID string, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok || customer.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	out := customer
	return &out, nil
}

func (s *Store) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, 0)
	for _, customer := range s.customers {
		if customer.BusinessID == businessID {
			out = append(out, customer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[customer.ID]
	if !ok || existing.BusinessID != customer.BusinessID {
		return nil, store.ErrNotFound
	}
	customer.TotalPurchases = existing.TotalPurchases
	s.customers[customer.ID] = customer
	out := customer
	return &out, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok || customer.BusinessID != businessID {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) IncrementCustomerTotal(ctx context.Context, businessID string, id string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok || customer.BusinessID != businessID {
		return store.ErrNotFound
	}
	customer.TotalPurchases += amount
	s.customers[id] = customer
	return nil
}

// ---- suppliers ----

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[supplier.ID] = supplier
	out := supplier
	return &out, nil
}

func (s *Store) GetSupplier(ctx context.Context, businessID string, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	supplier, ok := s.suppliers[id]
	if !ok || supplier.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	out := supplier
	return &out, nil
}

func (s *Store) ListSuppliers(ctx context.Context, businessID string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Supplier, 0)
	for _, supplier := range s.suppliers {
		if supplier.BusinessID == businessID {
			out = append(out, supplier)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.suppliers[supplier.ID]
	if !ok || existing.BusinessID != supplier.BusinessID {
		return nil, store.ErrNotFound
	}
	s.suppliers[supplier.ID] = supplier
	out := supplier
	return &out, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplier, ok := s.suppliers[id]
	if !ok || supplier.BusinessID != businessID {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

// ---- alerts ----

func (s *Store) CreateAlert(ctx context.Context, alert domain.Alert) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	out := alert
	return &out, nil
}

func (s *Store) ListAlerts(ctx context.Context, businessID string, unresolvedOnly bool, limit int) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0)
	for _, alert := range s.alerts {
		if alert.BusinessID != businessID {
			continue
		}
		if unresolvedOnly && alert.IsResolved {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkAlertRead(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok || alert.BusinessID != businessID {
		return store.ErrNotFound
	}
	alert.IsRead = true
	s.alerts[id] = alert
	return nil
}

func (s *Store) ResolveAlert(ctx context.Context, businessID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok || alert.BusinessID != businessID {
		return store.ErrNotFound
	}
	alert.IsResolved = true
	s.alerts[id] = alert
	return nil
}

func (s *Store) HasUnresolvedAlert(ctx context.Context, businessID string, productID string, alertType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, alert := range s.alerts {
		if alert.BusinessID == businessID && alert.ProductID == productID &&
			alert.AlertType == alertType && !alert.IsResolved {
			return true, nil
		}
	}
	return false, nil
}

// ---- settings ----

func (s *Store) GetSettings(ctx context.Context, businessID string) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[businessID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := settings
	return &out, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.BusinessID] = settings
	out := settings
	return &out, nil
}

// ---- aggregations ----

func (s *Store) DashboardMetrics(ctx context.Context, businessID string, now time.Time) (domain.DashboardMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metrics domain.DashboardMetrics
	today := now.UTC().Format("2006-01-02")
	for _, bill := range s.bills {
		if bill.BusinessID != businessID {
			continue
		}
		if bill.Date.UTC().Format("2006-01-02") == today {
			metrics.TodaySalesTotal += bill.TotalAmount
			metrics.TodaySalesCount++
		}
	}
	for _, product := range s.products {
		if product.BusinessID != businessID || !product.Active {
			continue
		}
		metrics.ProductCount++
		if product.CurrentStock == 0 || product.CurrentStock < product.MinStockLevel {
			metrics.LowStockCount++
		}
	}
	for _, alert := range s.alerts {
		if alert.BusinessID == businessID && !alert.IsRead {
			metrics.UnreadAlerts++
		}
	}
	for _, customer := range s.customers {
		if customer.BusinessID == businessID {
			metrics.CustomerCount++
		}
	}
	return metrics, nil
}

func (s *Store) SalesChart(ctx context.Context, businessID string, days int, now time.Time) ([]domain.SalesChartPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]*domain.SalesChartPoint, days)
	points := make([]domain.SalesChartPoint, days)
	for i := 0; i < days; i++ {
		date := now.UTC().AddDate(0, 0, i-days+1).Format("2006-01-02")
		points[i] = domain.SalesChartPoint{Date: date}
		byDay[date] = &points[i]
	}
	for _, bill := range s.bills {
		if bill.BusinessID != businessID {
			continue
		}
		if point, ok := byDay[bill.Date.UTC().Format("2006-01-02")]; ok {
			point.Total += bill.TotalAmount
			point.Count++
		}
	}
	return points, nil
}

func (s *Store) SalesReport(ctx context.Context, businessID string, from time.Time, to time.Time) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{From: dateLabel(from), To: dateLabel(to)}
	for _, bill := range s.bills {
		if bill.BusinessID != businessID || !inRange(bill.Date, from, to) {
			continue
		}
		report.BillCount++
		report.GrossTotal += bill.TotalAmount
		report.Discount += bill.DiscountAmount
		report.Tax += bill.TaxAmount
		report.Paid += bill.PaidAmount
		report.Balance += bill.BalanceAmount
	}
	return report, nil
}

func (s *Store) PurchasesReport(ctx context.Context, businessID string, from time.Time, to time.Time) (domain.PurchasesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.PurchasesReport{From: dateLabel(from), To: dateLabel(to)}
	for _, purchase := range s.purchases {
		if purchase.BusinessID != businessID || !inRange(purchase.Date, from, to) {
			continue
		}
		report.PurchaseCount++
		report.Total += purchase.TotalAmount
	}
	return report, nil
}

func (s *Store) StockSummary(ctx context.Context, businessID string) (domain.StockSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.StockSummary{Lines: make([]domain.StockSummaryLine, 0)}
	for _, product := range s.products {
		if product.BusinessID != businessID || !product.Active {
			continue
		}
		status := alerts.Classify(product.CurrentStock, product.MinStockLevel, product.MaxStockLevel)
		if status == "" {
			status = "ok"
		}
		value := float64(product.CurrentStock) * product.PurchasePrice
		summary.TotalProducts++
		summary.TotalValue += value
		summary.Lines = append(summary.Lines, domain.StockSummaryLine{
			ProductID:    product.ID,
			Name:         product.Name,
			SKU:          product.SKU,
			CurrentStock: product.CurrentStock,
			StockValue:   value,
			Status:       status,
		})
	}
	sort.Slice(summary.Lines, func(i, j int) bool { return summary.Lines[i].Name < summary.Lines[j].Name })
	return summary, nil
}

// ---- helpers ----

func cloneBill(bill domain.Bill) domain.Bill {
	out := bill
	out.Items = append([]domain.BillItem(nil), bill.Items...)
	return out
}

func clonePurchase(purchase domain.Purchase) domain.Purchase {
	out := purchase
	out.Items = append([]domain.PurchaseItem(nil), purchase.Items...)
	return out
}

func inRange(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func dateLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
