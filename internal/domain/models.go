package domain

import "time"

// Roles a user can hold within a business.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Alert types emitted by the stock classifier.
const (
	AlertLowStock      = "low_stock"
	AlertOutOfStock    = "out_of_stock"
	AlertOverstock     = "overstock"
	AlertExpiryWarning = "expiry_warning"
)

// Payment statuses shared by bills and purchases.
const (
	PaymentPaid    = "paid"
	PaymentPartial = "partial"
	PaymentUnpaid  = "unpaid"
)

type Business struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerName string    `json:"owner_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address,omitempty"`
	Currency  string    `json:"currency"`
	TaxRate   float64   `json:"tax_rate"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Barcode       string    `json:"barcode,omitempty"`
	Unit          string    `json:"unit"`
	PurchasePrice float64   `json:"purchase_price"`
	SellingPrice  float64   `json:"selling_price"`
	CurrentStock  int       `json:"current_stock"`
	MinStockLevel int       `json:"min_stock_level"`
	MaxStockLevel int       `json:"max_stock_level"`
	SupplierID    string    `json:"supplier_id,omitempty"`
	CategoryID    string    `json:"category_id,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Purchase struct {
	ID            string         `json:"id"`
	BusinessID    string         `json:"business_id"`
	SupplierID    string         `json:"supplier_id,omitempty"`
	InvoiceNumber string         `json:"invoice_number"`
	Date          time.Time      `json:"date"`
	TotalAmount   float64        `json:"total_amount"`
	PaymentStatus string         `json:"payment_status"`
	CreatedAt     time.Time      `json:"created_at"`
	Items         []PurchaseItem `json:"items,omitempty"`
}

type PurchaseItem struct {
	ID            string  `json:"id"`
	PurchaseID    string  `json:"purchase_id"`
	ProductID     string  `json:"product_id"`
	Quantity      int     `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	Subtotal      float64 `json:"subtotal"`
}

type Bill struct {
	ID                 string     `json:"id"`
	BusinessID         string     `json:"business_id"`
	BillNumber         string     `json:"bill_number"`
	CustomerID         string     `json:"customer_id,omitempty"`
	Date               time.Time  `json:"date"`
	Subtotal           float64    `json:"subtotal"`
	DiscountPercentage float64    `json:"discount_percentage"`
	DiscountAmount     float64    `json:"discount_amount"`
	TaxPercentage      float64    `json:"tax_percentage"`
	TaxAmount          float64    `json:"tax_amount"`
	TotalAmount        float64    `json:"total_amount"`
	PaidAmount         float64    `json:"paid_amount"`
	BalanceAmount      float64    `json:"balance_amount"`
	PaymentMethod      string     `json:"payment_method"`
	PaymentStatus      string     `json:"payment_status"`
	CreatedAt          time.Time  `json:"created_at"`
	Items              []BillItem `json:"items,omitempty"`
}

// BillItem keeps a denormalized snapshot of the product at sale time so the
// bill stays readable after the product is edited or deactivated.
type BillItem struct {
	ID                 string  `json:"id"`
	BillID             string  `json:"bill_id"`
	ProductID          string  `json:"product_id"`
	ProductName        string  `json:"product_name"`
	Quantity           int     `json:"quantity"`
	UnitPrice          float64 `json:"unit_price"`
	DiscountPercentage float64 `json:"discount_percentage"`
	DiscountAmount     float64 `json:"discount_amount"`
	TaxPercentage      float64 `json:"tax_percentage"`
	TaxAmount          float64 `json:"tax_amount"`
	Subtotal           float64 `json:"subtotal"`
	Total              float64 `json:"total"`
}

type Payment struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	BillID     string    `json:"bill_id"`
	Amount     float64   `json:"amount"`
	Method     string    `json:"method"`
	PaidAt     time.Time `json:"paid_at"`
}

type Customer struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	Address        string    `json:"address,omitempty"`
	TotalPurchases float64   `json:"total_purchases"`
	CreatedAt      time.Time `json:"created_at"`
}

type Supplier struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	Address    string    `json:"address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Alert struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	ProductID  string    `json:"product_id"`
	AlertType  string    `json:"alert_type"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	IsResolved bool      `json:"is_resolved"`
	CreatedAt  time.Time `json:"created_at"`
}

// Settings is the per-business configuration singleton, created with defaults
// at registration.
type Settings struct {
	BusinessID               string    `json:"business_id"`
	BillPrefix               string    `json:"bill_prefix"`
	DefaultTaxPercentage     float64   `json:"default_tax_percentage"`
	LowStockThresholdDefault int       `json:"low_stock_threshold_default"`
	EnableEmailAlerts        bool      `json:"enable_email_alerts"`
	EnableExpiryAlerts       bool      `json:"enable_expiry_alerts"`
	EnableOverstockAlerts    bool      `json:"enable_overstock_alerts"`
	CurrencySymbol           string    `json:"currency_symbol"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Actor is the verified identity attached to each request context. BusinessID
// always comes from the token, never from the request body or query.
type Actor struct {
	UserID     string
	BusinessID string
	Role       string
}

type RegisterRequest struct {
	BusinessName string  `json:"business_name" validate:"required"`
	OwnerName    string  `json:"owner_name" validate:"required"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	Phone        string  `json:"phone"`
	Currency     string  `json:"currency"`
	TaxRate      float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	BusinessID  string `json:"business_id"`
	ExpiresAt   string `json:"expires_at"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetResponse carries the reset token back to the caller. There is
// no mail transport, so the token is returned directly and the client is
// responsible for delivering it to the account owner.
type PasswordResetResponse struct {
	ResetToken string `json:"reset_token"`
	ExpiresAt  string `json:"expires_at"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type UserCreateRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type ProductCreateRequest struct {
	Name          string  `json:"name" validate:"required"`
	SKU           string  `json:"sku"`
	Barcode       string  `json:"barcode"`
	Unit          string  `json:"unit"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
	SellingPrice  float64 `json:"selling_price" validate:"gte=0"`
	InitialStock  int     `json:"initial_stock" validate:"gte=0"`
	MinStockLevel int     `json:"min_stock_level" validate:"gte=0"`
	MaxStockLevel int     `json:"max_stock_level" validate:"gte=0"`
	SupplierID    string  `json:"supplier_id"`
	CategoryID    string  `json:"category_id"`
}

// ProductUpdateRequest deliberately has no stock field: current_stock is only
// ever written by the purchase, sale, barcode and manual-adjustment flows.
type ProductUpdateRequest struct {
	Name          *string  `json:"name,omitempty"`
	Barcode       *string  `json:"barcode,omitempty"`
	Unit          *string  `json:"unit,omitempty"`
	PurchasePrice *float64 `json:"purchase_price,omitempty"`
	SellingPrice  *float64 `json:"selling_price,omitempty"`
	MinStockLevel *int     `json:"min_stock_level,omitempty"`
	MaxStockLevel *int     `json:"max_stock_level,omitempty"`
	SupplierID    *string  `json:"supplier_id,omitempty"`
	CategoryID    *string  `json:"category_id,omitempty"`
	Active        *bool    `json:"active,omitempty"`
}

type StockAdjustRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason"`
}

type BillItemInput struct {
	ProductID          string  `json:"product_id" validate:"required"`
	Quantity           int     `json:"quantity" validate:"gt=0"`
	UnitPrice          float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercentage float64 `json:"discount_percentage" validate:"gte=0,lte=100"`
	TaxPercentage      float64 `json:"tax_percentage" validate:"gte=0,lte=100"`
}

type BillCreateRequest struct {
	CustomerID         string          `json:"customer_id"`
	Items              []BillItemInput `json:"items" validate:"required,min=1,dive"`
	DiscountPercentage float64         `json:"discount_percentage" validate:"gte=0,lte=100"`
	TaxPercentage      float64         `json:"tax_percentage" validate:"gte=0,lte=100"`
	PaymentMethod      string          `json:"payment_method" validate:"required"`
	PaidAmount         float64         `json:"paid_amount" validate:"gte=0"`
}

type BillPaymentUpdateRequest struct {
	PaymentStatus string  `json:"payment_status" validate:"required,oneof=paid partial unpaid"`
	PaidAmount    float64 `json:"paid_amount" validate:"gte=0"`
}

type PurchaseItemInput struct {
	ProductID     string  `json:"product_id" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gt=0"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
}

type PurchaseCreateRequest struct {
	SupplierID    string              `json:"supplier_id"`
	InvoiceNumber string              `json:"invoice_number" validate:"required"`
	Date          *time.Time          `json:"date,omitempty"`
	Items         []PurchaseItemInput `json:"items" validate:"required,min=1,dive"`
	PaymentStatus string              `json:"payment_status" validate:"omitempty,oneof=paid partial unpaid"`
}

type BarcodePurchaseRequest struct {
	Barcode       string  `json:"barcode" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gt=0"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
}

type BarcodeSaleRequest struct {
	Barcode            string  `json:"barcode" validate:"required"`
	Quantity           int     `json:"quantity" validate:"gt=0"`
	DiscountPercentage float64 `json:"discount_percentage" validate:"gte=0,lte=100"`
	PaymentMethod      string  `json:"payment_method"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

type SupplierUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

type SettingsUpdateRequest struct {
	BillPrefix               *string  `json:"bill_prefix,omitempty"`
	DefaultTaxPercentage     *float64 `json:"default_tax_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	LowStockThresholdDefault *int     `json:"low_stock_threshold_default,omitempty" validate:"omitempty,gte=0"`
	EnableEmailAlerts        *bool    `json:"enable_email_alerts,omitempty"`
	EnableExpiryAlerts       *bool    `json:"enable_expiry_alerts,omitempty"`
	EnableOverstockAlerts    *bool    `json:"enable_overstock_alerts,omitempty"`
	CurrencySymbol           *string  `json:"currency_symbol,omitempty"`
}

type DashboardMetrics struct {
	TodaySalesTotal float64 `json:"today_sales_total"`
	TodaySalesCount int     `json:"today_sales_count"`
	ProductCount    int     `json:"product_count"`
	LowStockCount   int     `json:"low_stock_count"`
	UnreadAlerts    int     `json:"unread_alerts"`
	CustomerCount   int     `json:"customer_count"`
}

type SalesChartPoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type SalesReport struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	BillCount  int     `json:"bill_count"`
	GrossTotal float64 `json:"gross_total"`
	Discount   float64 `json:"discount"`
	Tax        float64 `json:"tax"`
	Paid       float64 `json:"paid"`
	Balance    float64 `json:"balance"`
}

type PurchasesReport struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	PurchaseCount int     `json:"purchase_count"`
	Total         float64 `json:"total"`
}

type ProfitLossReport struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Sales     float64 `json:"sales"`
	Purchases float64 `json:"purchases"`
	Profit    float64 `json:"profit"`
}

type StockSummaryLine struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	CurrentStock int     `json:"current_stock"`
	StockValue   float64 `json:"stock_value"`
	Status       string  `json:"status"`
}

type StockSummary struct {
	TotalProducts int                `json:"total_products"`
	TotalValue    float64            `json:"total_value"`
	Lines         []StockSummaryLine `json:"lines"`
}
