package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stockflow/backend/internal/alerts"
	"stockflow/backend/internal/cache"
	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
	"stockflow/backend/internal/xid"
)

// ErrForbidden marks an operation the actor's role does not allow.
var ErrForbidden = errors.New("forbidden")

type actorKey struct{}

// WithActor attaches the verified request identity to the context. Handlers
// set it after token verification; everything below reads the business id
// from here and nowhere else.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

// Options tune behavior that is normally driven by env flags.
type Options struct {
	// LegacyCompensation replaces the atomic bill/purchase store transaction
	// with the historical sequence of separate writes and compensating deletes.
	LegacyCompensation bool
	DedupeAlerts       bool
	MetricsTTL         time.Duration
}

// Service implements the business workflows on top of a Repository. All
// monetary math goes through the totals calculator, all stock mutation goes
// through the conditional AdjustStock primitive.
type Service struct {
	repo    store.Repository
	alerts  *alerts.Generator
	metrics cache.MetricsCache
	log     *logrus.Logger
	opts    Options
}

func New(repo store.Repository, metrics cache.MetricsCache, log *logrus.Logger, opts Options) *Service {
	if metrics == nil {
		metrics = cache.NoopMetricsCache{}
	}
	if log == nil {
		log = logrus.New()
	}
	if opts.MetricsTTL <= 0 {
		opts.MetricsTTL = 60 * time.Second
	}
	return &Service{
		repo:    repo,
		alerts:  alerts.NewGenerator(repo, log, opts.DedupeAlerts),
		metrics: metrics,
		log:     log,
		opts:    opts,
	}
}

func (s *Service) actor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: no authenticated actor on context", store.ErrValidation)
	}
	return actor, nil
}

func (s *Service) adminActor(ctx context.Context) (domain.Actor, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return actor, nil
}

// DefaultSettings is what a business starts with at registration.
func DefaultSettings(businessID string) domain.Settings {
	return domain.Settings{
		BusinessID:               businessID,
		BillPrefix:               "",
		DefaultTaxPercentage:     0,
		LowStockThresholdDefault: 10,
		EnableEmailAlerts:        false,
		EnableExpiryAlerts:       false,
		EnableOverstockAlerts:    true,
		CurrencySymbol:           "$",
		UpdatedAt:                time.Now().UTC(),
	}
}

func (s *Service) settingsOrDefault(ctx context.Context, businessID string) domain.Settings {
	settings, err := s.repo.GetSettings(ctx, businessID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.WithField("business_id", businessID).WithError(err).Warn("settings lookup failed, using defaults")
		}
		return DefaultSettings(businessID)
	}
	return *settings
}

// regenerateAlerts re-reads the product and runs the classifier. Called after
// every stock mutation; never fails the caller.
func (s *Service) regenerateAlerts(ctx context.Context, businessID string, productID string) {
	product, err := s.repo.GetProduct(ctx, businessID, productID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"business_id": businessID,
			"product_id":  productID,
		}).WithError(err).Warn("product re-read for alert generation failed")
		return
	}
	settings := s.settingsOrDefault(ctx, businessID)
	s.alerts.Regenerate(ctx, *product, &settings)
}

// ---- products ----

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		sku = xid.New("SKU")
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = "pcs"
	}
	minLevel := req.MinStockLevel
	if minLevel == 0 {
		minLevel = s.settingsOrDefault(ctx, actor.BusinessID).LowStockThresholdDefault
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:            uuid.NewString(),
		BusinessID:    actor.BusinessID,
		Name:          strings.TrimSpace(req.Name),
		SKU:           sku,
		Barcode:       strings.TrimSpace(req.Barcode),
		Unit:          unit,
		PurchasePrice: round2(req.PurchasePrice),
		SellingPrice:  round2(req.SellingPrice),
		CurrentStock:  req.InitialStock,
		MinStockLevel: minLevel,
		MaxStockLevel: req.MaxStockLevel,
		SupplierID:    req.SupplierID,
		CategoryID:    req.CategoryID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.regenerateAlerts(ctx, actor.BusinessID, created.ID)
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetProduct(ctx, actor.BusinessID, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, actor.BusinessID)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLowStockProducts(ctx, actor.BusinessID)
}

// UpdateProduct applies partial edits. Stock is deliberately untouchable here;
// it only moves through purchases, sales and the manual adjustment endpoint.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}

	thresholdsChanged := false
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Barcode != nil {
		product.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Unit != nil {
		product.Unit = *req.Unit
	}
	if req.PurchasePrice != nil {
		product.PurchasePrice = round2(*req.PurchasePrice)
	}
	if req.SellingPrice != nil {
		product.SellingPrice = round2(*req.SellingPrice)
	}
	if req.MinStockLevel != nil {
		product.MinStockLevel = *req.MinStockLevel
		thresholdsChanged = true
	}
	if req.MaxStockLevel != nil {
		product.MaxStockLevel = *req.MaxStockLevel
		thresholdsChanged = true
	}
	if req.SupplierID != nil {
		product.SupplierID = *req.SupplierID
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	product.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return nil, err
	}
	if thresholdsChanged {
		s.regenerateAlerts(ctx, actor.BusinessID, updated.ID)
	}
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return err
	}
	return s.repo.SoftDeleteProduct(ctx, actor.BusinessID, id)
}

// AdjustStock is the admin manual correction path. It rides the same
// conditional primitive as the sale and purchase flows.
func (s *Service) AdjustStock(ctx context.Context, productID string, req domain.StockAdjustRequest) (*domain.Product, error) {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return nil, err
	}
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", store.ErrValidation)
	}

	newStock, err := s.repo.AdjustStock(ctx, actor.BusinessID, productID, req.Delta)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"business_id": actor.BusinessID,
		"product_id":  productID,
		"delta":       req.Delta,
		"new_stock":   newStock,
		"reason":      req.Reason,
		"user_id":     actor.UserID,
	}).Info("manual stock adjustment")

	s.regenerateAlerts(ctx, actor.BusinessID, productID)
	return s.repo.GetProduct(ctx, actor.BusinessID, productID)
}

// ---- bills (sales) ----

func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (*domain.Bill, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one item", store.ErrValidation)
	}

	items := make([]domain.BillItem, 0, len(req.Items))
	for _, in := range req.Items {
		product, err := s.repo.GetProduct(ctx, actor.BusinessID, in.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %q is inactive", store.ErrValidation, product.Name)
		}
		if product.CurrentStock < in.Quantity {
			return nil, fmt.Errorf("%w: %q has %d in stock, requested %d",
				store.ErrInsufficientStock, product.Name, product.CurrentStock, in.Quantity)
		}

		unitPrice := in.UnitPrice
		if unitPrice == 0 {
			unitPrice = product.SellingPrice
		}
		amounts := computeLine(in.Quantity, unitPrice, in.DiscountPercentage, in.TaxPercentage)
		items = append(items, domain.BillItem{
			ID:                 uuid.NewString(),
			ProductID:          product.ID,
			ProductName:        product.Name,
			Quantity:           in.Quantity,
			UnitPrice:          round2(unitPrice),
			DiscountPercentage: in.DiscountPercentage,
			DiscountAmount:     amounts.DiscountAmount,
			TaxPercentage:      in.TaxPercentage,
			TaxAmount:          amounts.TaxAmount,
			Subtotal:           amounts.Subtotal,
			Total:              amounts.Total,
		})
	}

	doc := computeDocument(items, req.DiscountPercentage, req.TaxPercentage)

	settings := s.settingsOrDefault(ctx, actor.BusinessID)
	count, err := s.repo.CountBills(ctx, actor.BusinessID)
	if err != nil {
		return nil, err
	}
	billNumber := fmt.Sprintf("%s%d", settings.BillPrefix, count+1)

	paid := round2(req.PaidAmount)
	now := time.Now().UTC()
	bill := domain.Bill{
		ID:                 uuid.NewString(),
		BusinessID:         actor.BusinessID,
		BillNumber:         billNumber,
		CustomerID:         req.CustomerID,
		Date:               now,
		Subtotal:           doc.Subtotal,
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     doc.DiscountAmount,
		TaxPercentage:      req.TaxPercentage,
		TaxAmount:          doc.TaxAmount,
		TotalAmount:        doc.TotalAmount,
		PaidAmount:         paid,
		BalanceAmount:      round2(doc.TotalAmount - paid),
		PaymentMethod:      req.PaymentMethod,
		PaymentStatus:      paymentStatus(paid, doc.TotalAmount),
		CreatedAt:          now,
		Items:              items,
	}
	for i := range bill.Items {
		bill.Items[i].BillID = bill.ID
	}

	var created *domain.Bill
	if s.opts.LegacyCompensation {
		if err := s.createBillCompensated(ctx, bill); err != nil {
			return nil, err
		}
		created = &bill
	} else {
		created, err = s.repo.CreateBill(ctx, bill)
		if err != nil {
			return nil, err
		}
	}

	s.recordBillSideEffects(ctx, actor.BusinessID, created)
	return created, nil
}

// createBillCompensated is the historical write sequence: header first, items
// next with a compensating header delete, then per-item stock decrements whose
// failures are logged but leave the bill in place.
func (s *Service) createBillCompensated(ctx context.Context, bill domain.Bill) error {
	if err := s.repo.InsertBillHeader(ctx, bill); err != nil {
		return err
	}
	if err := s.repo.InsertBillItems(ctx, bill.ID, bill.Items); err != nil {
		if delErr := s.repo.DeleteBill(ctx, bill.BusinessID, bill.ID); delErr != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": bill.BusinessID,
				"bill_id":     bill.ID,
			}).WithError(delErr).Error("compensating bill delete failed")
		}
		return err
	}
	for _, item := range bill.Items {
		if _, err := s.repo.AdjustStock(ctx, bill.BusinessID, item.ProductID, -item.Quantity); err != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": bill.BusinessID,
				"bill_id":     bill.ID,
				"product_id":  item.ProductID,
				"quantity":    item.Quantity,
			}).WithError(err).Error("stock decrement failed after bill write")
		}
	}
	return nil
}

// recordBillSideEffects runs the best-effort tail of a sale: payment row,
// customer lifetime total, alert regeneration. None of these can fail the
// already-committed sale.
func (s *Service) recordBillSideEffects(ctx context.Context, businessID string, bill *domain.Bill) {
	if bill.PaidAmount > 0 {
		payment := domain.Payment{
			ID:         uuid.NewString(),
			BusinessID: businessID,
			BillID:     bill.ID,
			Amount:     bill.PaidAmount,
			Method:     bill.PaymentMethod,
			PaidAt:     time.Now().UTC(),
		}
		if err := s.repo.CreatePayment(ctx, payment); err != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": businessID,
				"bill_id":     bill.ID,
			}).WithError(err).Warn("payment record insert failed")
		}
	}
	if bill.CustomerID != "" {
		if err := s.repo.IncrementCustomerTotal(ctx, businessID, bill.CustomerID, bill.TotalAmount); err != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": businessID,
				"customer_id": bill.CustomerID,
			}).WithError(err).Warn("customer total increment failed")
		}
	}
	for _, item := range bill.Items {
		s.regenerateAlerts(ctx, businessID, item.ProductID)
	}
}

func paymentStatus(paid float64, total float64) string {
	switch {
	case paid >= total:
		return domain.PaymentPaid
	case paid > 0:
		return domain.PaymentPartial
	default:
		return domain.PaymentUnpaid
	}
}

func (s *Service) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetBill(ctx, actor.BusinessID, id)
}

func (s *Service) ListBills(ctx context.Context, from time.Time, to time.Time) ([]domain.Bill, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBills(ctx, actor.BusinessID, from, to)
}

func (s *Service) UpdateBillPayment(ctx context.Context, id string, req domain.BillPaymentUpdateRequest) (*domain.Bill, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	bill, err := s.repo.GetBill(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}

	paid := round2(req.PaidAmount)
	balance := round2(bill.TotalAmount - paid)
	updated, err := s.repo.UpdateBillPayment(ctx, actor.BusinessID, id, req.PaymentStatus, paid, balance)
	if err != nil {
		return nil, err
	}

	if delta := round2(paid - bill.PaidAmount); delta > 0 {
		payment := domain.Payment{
			ID:         uuid.NewString(),
			BusinessID: actor.BusinessID,
			BillID:     bill.ID,
			Amount:     delta,
			Method:     bill.PaymentMethod,
			PaidAt:     time.Now().UTC(),
		}
		if err := s.repo.CreatePayment(ctx, payment); err != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": actor.BusinessID,
				"bill_id":     bill.ID,
			}).WithError(err).Warn("payment record insert failed")
		}
	}
	return updated, nil
}

// DeleteBill removes the sale and its items. Stock is not restored; a manual
// adjustment is the correction path, same as for purchase deletes.
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteBill(ctx, actor.BusinessID, id)
}

// ---- purchases ----

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (*domain.Purchase, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: a purchase needs at least one item", store.ErrValidation)
	}

	invoiceNumber := strings.TrimSpace(req.InvoiceNumber)
	if invoiceNumber == "" {
		return nil, fmt.Errorf("%w: invoice number is required", store.ErrValidation)
	}
	exists, err := s.repo.InvoiceNumberExists(ctx, actor.BusinessID, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: invoice number %q already recorded", store.ErrDuplicate, invoiceNumber)
	}

	items := make([]domain.PurchaseItem, 0, len(req.Items))
	total := 0.0
	for _, in := range req.Items {
		product, err := s.repo.GetProduct(ctx, actor.BusinessID, in.ProductID)
		if err != nil {
			return nil, err
		}
		price := in.PurchasePrice
		if price == 0 {
			price = product.PurchasePrice
		}
		subtotal := round2(float64(in.Quantity) * price)
		total = round2(total + subtotal)
		items = append(items, domain.PurchaseItem{
			ID:            uuid.NewString(),
			ProductID:     product.ID,
			Quantity:      in.Quantity,
			PurchasePrice: round2(price),
			Subtotal:      subtotal,
		})
	}

	status := req.PaymentStatus
	if status == "" {
		status = domain.PaymentUnpaid
	}
	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	purchase := domain.Purchase{
		ID:            uuid.NewString(),
		BusinessID:    actor.BusinessID,
		SupplierID:    req.SupplierID,
		InvoiceNumber: invoiceNumber,
		Date:          date,
		TotalAmount:   total,
		PaymentStatus: status,
		CreatedAt:     time.Now().UTC(),
		Items:         items,
	}
	for i := range purchase.Items {
		purchase.Items[i].PurchaseID = purchase.ID
	}

	var created *domain.Purchase
	if s.opts.LegacyCompensation {
		if err := s.createPurchaseCompensated(ctx, purchase); err != nil {
			return nil, err
		}
		created = &purchase
	} else {
		created, err = s.repo.CreatePurchase(ctx, purchase)
		if err != nil {
			return nil, err
		}
	}

	for _, item := range created.Items {
		s.regenerateAlerts(ctx, actor.BusinessID, item.ProductID)
	}
	return created, nil
}

func (s *Service) createPurchaseCompensated(ctx context.Context, purchase domain.Purchase) error {
	if err := s.repo.InsertPurchaseHeader(ctx, purchase); err != nil {
		return err
	}
	if err := s.repo.InsertPurchaseItems(ctx, purchase.ID, purchase.Items); err != nil {
		if delErr := s.repo.DeletePurchase(ctx, purchase.BusinessID, purchase.ID); delErr != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": purchase.BusinessID,
				"purchase_id": purchase.ID,
			}).WithError(delErr).Error("compensating purchase delete failed")
		}
		return err
	}
	for _, item := range purchase.Items {
		if _, err := s.repo.AdjustStock(ctx, purchase.BusinessID, item.ProductID, item.Quantity); err != nil {
			s.log.WithFields(logrus.Fields{
				"business_id": purchase.BusinessID,
				"purchase_id": purchase.ID,
				"product_id":  item.ProductID,
			}).WithError(err).Error("stock increment failed after purchase write")
		}
	}
	return nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetPurchase(ctx, actor.BusinessID, id)
}

func (s *Service) ListPurchases(ctx context.Context, from time.Time, to time.Time) ([]domain.Purchase, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, actor.BusinessID, from, to)
}

// DeletePurchase removes the purchase and its items without reversing the
// stock increments the intake applied.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeletePurchase(ctx, actor.BusinessID, id)
}

// ---- barcode flows ----

func (s *Service) LookupBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", store.ErrValidation)
	}
	return s.repo.GetProductByBarcode(ctx, actor.BusinessID, barcode)
}

// BarcodePurchase records a one-line stock intake scanned at the counter. The
// writes are compensated step by step: a failed increment removes the purchase
// row again so no phantom intake survives.
func (s *Service) BarcodePurchase(ctx context.Context, req domain.BarcodePurchaseRequest) (*domain.Purchase, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.GetProductByBarcode(ctx, actor.BusinessID, strings.TrimSpace(req.Barcode))
	if err != nil {
		return nil, err
	}

	price := req.PurchasePrice
	if price == 0 {
		price = product.PurchasePrice
	}
	subtotal := round2(float64(req.Quantity) * price)

	purchase := domain.Purchase{
		ID:            uuid.NewString(),
		BusinessID:    actor.BusinessID,
		SupplierID:    product.SupplierID,
		InvoiceNumber: xid.New("SCAN"),
		Date:          time.Now().UTC(),
		TotalAmount:   subtotal,
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     time.Now().UTC(),
	}
	item := domain.PurchaseItem{
		ID:            uuid.NewString(),
		PurchaseID:    purchase.ID,
		ProductID:     product.ID,
		Quantity:      req.Quantity,
		PurchasePrice: round2(price),
		Subtotal:      subtotal,
	}
	purchase.Items = []domain.PurchaseItem{item}

	if err := s.repo.InsertPurchaseHeader(ctx, purchase); err != nil {
		return nil, err
	}
	if err := s.repo.InsertPurchaseItems(ctx, purchase.ID, purchase.Items); err != nil {
		s.compensatePurchase(ctx, actor.BusinessID, purchase.ID)
		return nil, err
	}
	if _, err := s.repo.AdjustStock(ctx, actor.BusinessID, product.ID, req.Quantity); err != nil {
		s.compensatePurchase(ctx, actor.BusinessID, purchase.ID)
		return nil, err
	}

	s.regenerateAlerts(ctx, actor.BusinessID, product.ID)
	return &purchase, nil
}

// BarcodeSale is the scan-and-sell path: one product, quantity, optional
// discount. Stock moves through the conditional decrement, and any failure
// after the header insert unwinds the bill.
func (s *Service) BarcodeSale(ctx context.Context, req domain.BarcodeSaleRequest) (*domain.Bill, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.GetProductByBarcode(ctx, actor.BusinessID, strings.TrimSpace(req.Barcode))
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("%w: product %q is inactive", store.ErrValidation, product.Name)
	}
	if product.CurrentStock < req.Quantity {
		return nil, fmt.Errorf("%w: %q has %d in stock, requested %d",
			store.ErrInsufficientStock, product.Name, product.CurrentStock, req.Quantity)
	}

	method := req.PaymentMethod
	if method == "" {
		method = "cash"
	}
	amounts := computeLine(req.Quantity, product.SellingPrice, req.DiscountPercentage, 0)

	now := time.Now().UTC()
	bill := domain.Bill{
		ID:                 uuid.NewString(),
		BusinessID:         actor.BusinessID,
		BillNumber:         xid.New("BILL"),
		Date:               now,
		Subtotal:           amounts.Subtotal,
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     amounts.DiscountAmount,
		TotalAmount:        amounts.Total,
		PaidAmount:         amounts.Total,
		BalanceAmount:      0,
		PaymentMethod:      method,
		PaymentStatus:      domain.PaymentPaid,
		CreatedAt:          now,
	}
	bill.Items = []domain.BillItem{{
		ID:                 uuid.NewString(),
		BillID:             bill.ID,
		ProductID:          product.ID,
		ProductName:        product.Name,
		Quantity:           req.Quantity,
		UnitPrice:          round2(product.SellingPrice),
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     amounts.DiscountAmount,
		Subtotal:           amounts.Subtotal,
		Total:              amounts.Total,
	}}

	if err := s.repo.InsertBillHeader(ctx, bill); err != nil {
		return nil, err
	}
	if err := s.repo.InsertBillItems(ctx, bill.ID, bill.Items); err != nil {
		s.compensateBill(ctx, actor.BusinessID, bill.ID)
		return nil, err
	}
	if _, err := s.repo.AdjustStock(ctx, actor.BusinessID, product.ID, -req.Quantity); err != nil {
		s.compensateBill(ctx, actor.BusinessID, bill.ID)
		return nil, err
	}

	s.regenerateAlerts(ctx, actor.BusinessID, product.ID)
	return &bill, nil
}

func (s *Service) compensateBill(ctx context.Context, businessID string, billID string) {
	if err := s.repo.DeleteBill(ctx, businessID, billID); err != nil {
		s.log.WithFields(logrus.Fields{
			"business_id": businessID,
			"bill_id":     billID,
		}).WithError(err).Error("compensating bill delete failed")
	}
}

func (s *Service) compensatePurchase(ctx context.Context, businessID string, purchaseID string) {
	if err := s.repo.DeletePurchase(ctx, businessID, purchaseID); err != nil {
		s.log.WithFields(logrus.Fields{
			"business_id": businessID,
			"purchase_id": purchaseID,
		}).WithError(err).Error("compensating purchase delete failed")
	}
}

// ---- customers ----

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	customer := domain.Customer{
		ID:         uuid.NewString(),
		BusinessID: actor.BusinessID,
		Name:       strings.TrimSpace(req.Name),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		Address:    req.Address,
		CreatedAt:  time.Now().UTC(),
	}
	return s.repo.CreateCustomer(ctx, customer)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetCustomer(ctx, actor.BusinessID, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, actor.BusinessID)
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.GetCustomer(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		customer.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	return s.repo.UpdateCustomer(ctx, *customer)
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, actor.BusinessID, id)
}

// ---- suppliers ----

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	supplier := domain.Supplier{
		ID:         uuid.NewString(),
		BusinessID: actor.BusinessID,
		Name:       strings.TrimSpace(req.Name),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		Address:    req.Address,
		CreatedAt:  time.Now().UTC(),
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetSupplier(ctx, actor.BusinessID, id)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx, actor.BusinessID)
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierUpdateRequest) (*domain.Supplier, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	supplier, err := s.repo.GetSupplier(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		supplier.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		supplier.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		supplier.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		supplier.Address = *req.Address
	}
	return s.repo.UpdateSupplier(ctx, *supplier)
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteSupplier(ctx, actor.BusinessID, id)
}

// ---- alerts ----

func (s *Service) ListAlerts(ctx context.Context, unresolvedOnly bool, limit int) ([]domain.Alert, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListAlerts(ctx, actor.BusinessID, unresolvedOnly, limit)
}

func (s *Service) MarkAlertRead(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkAlertRead(ctx, actor.BusinessID, id)
}

func (s *Service) ResolveAlert(ctx context.Context, id string) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.ResolveAlert(ctx, actor.BusinessID, id)
}

// ---- settings ----

func (s *Service) GetSettings(ctx context.Context) (*domain.Settings, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	settings := s.settingsOrDefault(ctx, actor.BusinessID)
	return &settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (*domain.Settings, error) {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return nil, err
	}
	settings := s.settingsOrDefault(ctx, actor.BusinessID)
	if req.BillPrefix != nil {
		settings.BillPrefix = strings.TrimSpace(*req.BillPrefix)
	}
	if req.DefaultTaxPercentage != nil {
		settings.DefaultTaxPercentage = *req.DefaultTaxPercentage
	}
	if req.LowStockThresholdDefault != nil {
		settings.LowStockThresholdDefault = *req.LowStockThresholdDefault
	}
	if req.EnableEmailAlerts != nil {
		settings.EnableEmailAlerts = *req.EnableEmailAlerts
	}
	if req.EnableExpiryAlerts != nil {
		settings.EnableExpiryAlerts = *req.EnableExpiryAlerts
	}
	if req.EnableOverstockAlerts != nil {
		settings.EnableOverstockAlerts = *req.EnableOverstockAlerts
	}
	if req.CurrencySymbol != nil {
		settings.CurrencySymbol = *req.CurrencySymbol
	}
	settings.UpdatedAt = time.Now().UTC()
	return s.repo.UpsertSettings(ctx, settings)
}

// ---- users ----

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, actor.BusinessID)
}

func (s *Service) DeactivateUser(ctx context.Context, id string) error {
	actor, err := s.adminActor(ctx)
	if err != nil {
		return err
	}
	if id == actor.UserID {
		return fmt.Errorf("%w: cannot deactivate your own account", store.ErrValidation)
	}
	return s.repo.SetUserActive(ctx, actor.BusinessID, id, false)
}

// ---- dashboard and reports ----

func (s *Service) DashboardMetrics(ctx context.Context) (*domain.DashboardMetrics, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	key := "dashboard:" + actor.BusinessID
	if cached, ok, err := s.metrics.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.log.WithField("business_id", actor.BusinessID).WithError(err).Warn("metrics cache read failed")
	}

	metrics, err := s.repo.DashboardMetrics(ctx, actor.BusinessID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.TodaySalesTotal = round2(metrics.TodaySalesTotal)
	if err := s.metrics.Set(ctx, key, &metrics, s.opts.MetricsTTL); err != nil {
		s.log.WithField("business_id", actor.BusinessID).WithError(err).Warn("metrics cache write failed")
	}
	return &metrics, nil
}

func (s *Service) SalesChart(ctx context.Context, days int) ([]domain.SalesChartPoint, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 || days > 90 {
		days = 7
	}
	points, err := s.repo.SalesChart(ctx, actor.BusinessID, days, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	for i := range points {
		points[i].Total = round2(points[i].Total)
	}
	return points, nil
}

func (s *Service) SalesReport(ctx context.Context, from time.Time, to time.Time) (*domain.SalesReport, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.SalesReport(ctx, actor.BusinessID, from, to)
	if err != nil {
		return nil, err
	}
	// Sums of per-document values pick up float noise; round once here so both
	// store implementations report clean money.
	report.GrossTotal = round2(report.GrossTotal)
	report.Discount = round2(report.Discount)
	report.Tax = round2(report.Tax)
	report.Paid = round2(report.Paid)
	report.Balance = round2(report.Balance)
	return &report, nil
}

func (s *Service) PurchasesReport(ctx context.Context, from time.Time, to time.Time) (*domain.PurchasesReport, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.PurchasesReport(ctx, actor.BusinessID, from, to)
	if err != nil {
		return nil, err
	}
	report.Total = round2(report.Total)
	return &report, nil
}

func (s *Service) ProfitLossReport(ctx context.Context, from time.Time, to time.Time) (*domain.ProfitLossReport, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.SalesReport(ctx, actor.BusinessID, from, to)
	if err != nil {
		return nil, err
	}
	purchases, err := s.repo.PurchasesReport(ctx, actor.BusinessID, from, to)
	if err != nil {
		return nil, err
	}
	return &domain.ProfitLossReport{
		From:      sales.From,
		To:        sales.To,
		Sales:     round2(sales.GrossTotal),
		Purchases: round2(purchases.Total),
		Profit:    round2(sales.GrossTotal - purchases.Total),
	}, nil
}

func (s *Service) StockSummary(ctx context.Context) (*domain.StockSummary, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.StockSummary(ctx, actor.BusinessID)
	if err != nil {
		return nil, err
	}
	for i := range summary.Lines {
		summary.Lines[i].StockValue = round2(summary.Lines[i].StockValue)
	}
	summary.TotalValue = round2(summary.TotalValue)
	return &summary, nil
}
