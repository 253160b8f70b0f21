// Package postgres implements the Repository over database/sql with the pgx
// stdlib driver. Stock mutation is a single conditional UPDATE; bill and
// purchase creation run header, items and stock in one serializable
// transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- businesses ----

func (s *Store) CreateBusiness(ctx context.Context, business domain.Business) (*domain.Business, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, owner_name, email, phone, address, currency, tax_rate, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, business.ID, business.Name, business.OwnerName, business.Email, business.Phone,
		business.Address, business.Currency, business.TaxRate, business.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: business email %s", store.ErrDuplicate, business.Email)
		}
		return nil, err
	}
	created := business
	return &created, nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	var business domain.Business
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_name, email, phone, address, currency, tax_rate, created_at
		FROM businesses
		WHERE id = $1
	`, id).Scan(&business.ID, &business.Name, &business.OwnerName, &business.Email,
		&business.Phone, &business.Address, &business.Currency, &business.TaxRate, &business.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &business, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, business_id, name, email, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.BusinessID, user.Name, user.Email, user.PasswordHash, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email %s", store.ErrDuplicate, user.Email)
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, email, password_hash, role, active, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.BusinessID, &user.Name, &user.Email,
		&user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, businessID string, id string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, email, password_hash, role, active, created_at
		FROM users
		WHERE business_id = $1 AND id = $2
	`, businessID, id).Scan(&user.ID, &user.BusinessID, &user.Name, &user.Email,
		&user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, businessID string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, email, password_hash, role, active, created_at
		FROM users
		WHERE business_id = $1
		ORDER BY created_at
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 8)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.BusinessID, &user.Name, &user.Email,
			&user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) SetUserActive(ctx context.Context, businessID string, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET active = $3 WHERE business_id = $1 AND id = $2
	`, businessID, id, active)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) UpdateUserPassword(ctx context.Context, businessID string, id string, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $3 WHERE business_id = $1 AND id = $2
	`, businessID, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- products ----

const productColumns = `id, business_id, name, sku, COALESCE(barcode,''), unit,
	purchase_price, selling_price, current_stock, min_stock_level, max_stock_level,
	COALESCE(supplier_id,''), COALESCE(category_id,''), active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.SKU, &p.Barcode, &p.Unit,
		&p.PurchasePrice, &p.SellingPrice, &p.CurrentStock, &p.MinStockLevel, &p.MaxStockLevel,
		&p.SupplierID, &p.CategoryID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, business_id, name, sku, barcode, unit, purchase_price,
			selling_price, current_stock, min_stock_level, max_stock_level, supplier_id,
			category_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, product.ID, product.BusinessID, product.Name, product.SKU, nullIfEmpty(product.Barcode),
		product.Unit, product.PurchasePrice, product.SellingPrice, product.CurrentStock,
		product.MinStockLevel, product.MaxStockLevel, nullIfEmpty(product.SupplierID),
		nullIfEmpty(product.CategoryID), product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %s", store.ErrDuplicate, product.SKU)
		}
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, businessID string, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE business_id = $1 AND id = $2
	`, businessID, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, businessID string, barcode string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE business_id = $1 AND barcode = $2
	`, businessID, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	return s.listProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE business_id = $1 AND active = true
		ORDER BY name
	`, businessID)
}

func (s *Store) ListLowStockProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	return s.listProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE business_id = $1 AND active = true
			AND (current_stock = 0 OR current_stock < min_stock_level)
		ORDER BY current_stock
	`, businessID)
}

func (s *Store) listProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// UpdateProduct writes every editable column. current_stock is deliberately
// absent from the SET list; only AdjustStock moves it.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, barcode = $4, unit = $5, purchase_price = $6, selling_price = $7,
			min_stock_level = $8, max_stock_level = $9, supplier_id = $10,
			category_id = $11, active = $12, updated_at = $13
		WHERE business_id = $1 AND id = $2
	`, product.BusinessID, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Unit,
		product.PurchasePrice, product.SellingPrice, product.MinStockLevel, product.MaxStockLevel,
		nullIfEmpty(product.SupplierID), nullIfEmpty(product.CategoryID), product.Active, product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, product.BusinessID, product.ID)
}

func (s *Store) SoftDeleteProduct(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET active = false, updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) AdjustStock(ctx context.Context, businessID string, productID string, delta int) (int, error) {
	return adjustStock(ctx, s.db, businessID, productID, delta)
}

// execer lets the conditional stock update run either on the pool or inside a
// transaction.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func adjustStock(ctx context.Context, db execer, businessID string, productID string, delta int) (int, error) {
	var newStock int
	err := db.QueryRowContext(ctx, `
		UPDATE products
		SET current_stock = current_stock + $3, updated_at = now()
		WHERE business_id = $1 AND id = $2 AND current_stock + $3 >= 0
		RETURNING current_stock
	`, businessID, productID, delta).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// Zero rows either means the product does not exist for this tenant or
	// the guard rejected a decrement below zero.
	var exists bool
	checkErr := db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE business_id = $1 AND id = $2)
	`, businessID, productID).Scan(&exists)
	if checkErr != nil {
		return 0, checkErr
	}
	if !exists {
		return 0, store.ErrNotFound
	}
	return 0, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, productID)
}

// ---- bills ----

func (s *Store) CountBills(ctx context.Context, businessID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bills WHERE business_id = $1
	`, businessID).Scan(&count)
	return count, err
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertBillHeader(ctx, tx, bill); err != nil {
		return nil, err
	}
	if err := insertBillItems(ctx, tx, bill.ID, bill.Items); err != nil {
		return nil, err
	}
	for _, item := range bill.Items {
		if _, err := adjustStock(ctx, tx, bill.BusinessID, item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := bill
	return &created, nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBillHeader(ctx context.Context, db executor, bill domain.Bill) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bills (id, business_id, bill_number, customer_id, date, subtotal,
			discount_percentage, discount_amount, tax_percentage, tax_amount, total_amount,
			paid_amount, balance_amount, payment_method, payment_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, bill.ID, bill.BusinessID, bill.BillNumber, nullIfEmpty(bill.CustomerID), bill.Date,
		bill.Subtotal, bill.DiscountPercentage, bill.DiscountAmount, bill.TaxPercentage,
		bill.TaxAmount, bill.TotalAmount, bill.PaidAmount, bill.BalanceAmount,
		bill.PaymentMethod, bill.PaymentStatus, bill.CreatedAt)
	return err
}

func insertBillItems(ctx context.Context, db executor, billID string, items []domain.BillItem) error {
	for _, item := range items {
		_, err := db.ExecContext(ctx, `
			INSERT INTO bill_items (id, bill_id, product_id, product_name, quantity,
				unit_price, discount_percentage, discount_amount, tax_percentage,
				tax_amount, subtotal, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, item.ID, billID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
			item.DiscountPercentage, item.DiscountAmount, item.TaxPercentage, item.TaxAmount,
			item.Subtotal, item.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertBillHeader(ctx context.Context, bill domain.Bill) error {
	return insertBillHeader(ctx, s.db, bill)
}

func (s *Store) InsertBillItems(ctx context.Context, billID string, items []domain.BillItem) error {
	return insertBillItems(ctx, s.db, billID, items)
}

const billColumns = `id, business_id, bill_number, COALESCE(customer_id,''), date, subtotal,
	discount_percentage, discount_amount, tax_percentage, tax_amount, total_amount,
	paid_amount, balance_amount, payment_method, payment_status, created_at`

func scanBill(row interface{ Scan(...any) error }) (domain.Bill, error) {
	var b domain.Bill
	err := row.Scan(&b.ID, &b.BusinessID, &b.BillNumber, &b.CustomerID, &b.Date, &b.Subtotal,
		&b.DiscountPercentage, &b.DiscountAmount, &b.TaxPercentage, &b.TaxAmount,
		&b.TotalAmount, &b.PaidAmount, &b.BalanceAmount, &b.PaymentMethod,
		&b.PaymentStatus, &b.CreatedAt)
	return b, err
}

func (s *Store) GetBill(ctx context.Context, businessID string, id string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+billColumns+` FROM bills WHERE business_id = $1 AND id = $2
	`, businessID, id)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.billItems(ctx, id)
	if err != nil {
		return nil, err
	}
	bill.Items = items
	return &bill, nil
}

func (s *Store) billItems(ctx context.Context, billID string) ([]domain.BillItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, product_id, product_name, quantity, unit_price,
			discount_percentage, discount_amount, tax_percentage, tax_amount, subtotal, total
		FROM bill_items
		WHERE bill_id = $1
	`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.BillItem, 0, 8)
	for rows.Next() {
		var item domain.BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercentage, &item.DiscountAmount,
			&item.TaxPercentage, &item.TaxAmount, &item.Subtotal, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListBills(ctx context.Context, businessID string, from time.Time, to time.Time) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE business_id = $1`
	args := []any{businessID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 32)
	index := make(map[string]int, 32)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		index[bill.ID] = len(bills)
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT bi.id, bi.bill_id, bi.product_id, bi.product_name, bi.quantity, bi.unit_price,
			bi.discount_percentage, bi.discount_amount, bi.tax_percentage, bi.tax_amount,
			bi.subtotal, bi.total
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		WHERE b.business_id = $1
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.BillItem
		if err := itemRows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercentage, &item.DiscountAmount,
			&item.TaxPercentage, &item.TaxAmount, &item.Subtotal, &item.Total); err != nil {
			return nil, err
		}
		if pos, ok := index[item.BillID]; ok {
			bills[pos].Items = append(bills[pos].Items, item)
		}
	}
	return bills, itemRows.Err()
}

func (s *Store) UpdateBillPayment(ctx context.Context, businessID string, id string, status string, paidAmount float64, balance float64) (*domain.Bill, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bills SET payment_status = $3, paid_amount = $4, balance_amount = $5
		WHERE business_id = $1 AND id = $2
	`, businessID, id, status, paidAmount, balance)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetBill(ctx, businessID, id)
}

// DeleteBill relies on ON DELETE CASCADE for the line items.
func (s *Store) DeleteBill(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM bills WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- purchases ----

func (s *Store) InvoiceNumberExists(ctx context.Context, businessID string, invoiceNumber string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM purchases WHERE business_id = $1 AND invoice_number = $2)
	`, businessID, invoiceNumber).Scan(&exists)
	return exists, err
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPurchaseHeader(ctx, tx, purchase); err != nil {
		return nil, err
	}
	if err := insertPurchaseItems(ctx, tx, purchase.ID, purchase.Items); err != nil {
		return nil, err
	}
	for _, item := range purchase.Items {
		if _, err := adjustStock(ctx, tx, purchase.BusinessID, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := purchase
	return &created, nil
}

func insertPurchaseHeader(ctx context.Context, db executor, purchase domain.Purchase) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO purchases (id, business_id, supplier_id, invoice_number, date,
			total_amount, payment_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.BusinessID, nullIfEmpty(purchase.SupplierID), purchase.InvoiceNumber,
		purchase.Date, purchase.TotalAmount, purchase.PaymentStatus, purchase.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: invoice %s", store.ErrDuplicate, purchase.InvoiceNumber)
	}
	return err
}

func insertPurchaseItems(ctx context.Context, db executor, purchaseID string, items []domain.PurchaseItem) error {
	for _, item := range items {
		_, err := db.ExecContext(ctx, `
			INSERT INTO purchase_items (id, purchase_id, product_id, quantity, purchase_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, purchaseID, item.ProductID, item.Quantity, item.PurchasePrice, item.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertPurchaseHeader(ctx context.Context, purchase domain.Purchase) error {
	return insertPurchaseHeader(ctx, s.db, purchase)
}

func (s *Store) InsertPurchaseItems(ctx context.Context, purchaseID string, items []domain.PurchaseItem) error {
	return insertPurchaseItems(ctx, s.db, purchaseID, items)
}

const purchaseColumns = `id, business_id, COALESCE(supplier_id,''), invoice_number, date,
	total_amount, payment_status, created_at`

func scanPurchase(row interface{ Scan(...any) error }) (domain.Purchase, error) {
	var p domain.Purchase
	err := row.Scan(&p.ID, &p.BusinessID, &p.SupplierID, &p.InvoiceNumber, &p.Date,
		&p.TotalAmount, &p.PaymentStatus, &p.CreatedAt)
	return p, err
}

func (s *Store) GetPurchase(ctx context.Context, businessID string, id string) (*domain.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE business_id = $1 AND id = $2
	`, businessID, id)
	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, purchase_id, product_id, quantity, purchase_price, subtotal
		FROM purchase_items
		WHERE purchase_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.Quantity,
			&item.PurchasePrice, &item.Subtotal); err != nil {
			return nil, err
		}
		purchase.Items = append(purchase.Items, item)
	}
	return &purchase, rows.Err()
}

func (s *Store) ListPurchases(ctx context.Context, businessID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE business_id = $1`
	args := []any{businessID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	return purchases, rows.Err()
}

func (s *Store) DeletePurchase(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM purchases WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- payments ----

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, business_id, bill_id, amount, method, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.BusinessID, payment.BillID, payment.Amount, payment.Method, payment.PaidAt)
	return err
}

// ---- customers ----

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, business_id, name, phone, email, address, total_purchases, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, customer.ID, customer.BusinessID, customer.Name, customer.Phone,
		nullIfEmpty(customer.Email), customer.Address, customer.TotalPurchases, customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, businessID string, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, phone, COALESCE(email,''), address, total_purchases, created_at
		FROM customers
		WHERE business_id = $1 AND id = $2
	`, businessID, id).Scan(&customer.ID, &customer.BusinessID, &customer.Name, &customer.Phone,
		&customer.Email, &customer.Address, &customer.TotalPurchases, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, phone, COALESCE(email,''), address, total_purchases, created_at
		FROM customers
		WHERE business_id = $1
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.BusinessID, &customer.Name, &customer.Phone,
			&customer.Email, &customer.Address, &customer.TotalPurchases, &customer.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name = $3, phone = $4, email = $5, address = $6
		WHERE business_id = $1 AND id = $2
	`, customer.BusinessID, customer.ID, customer.Name, customer.Phone,
		nullIfEmpty(customer.Email), customer.Address)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetCustomer(ctx, customer.BusinessID, customer.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM customers WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) IncrementCustomerTotal(ctx context.Context, businessID string, id string, amount float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET total_purchases = total_purchases + $3
		WHERE business_id = $1 AND id = $2
	`, businessID, id, amount)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- suppliers ----

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, business_id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.BusinessID, supplier.Name, supplier.Phone,
		nullIfEmpty(supplier.Email), supplier.Address, supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplier(ctx context.Context, businessID string, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, phone, COALESCE(email,''), address, created_at
		FROM suppliers
		WHERE business_id = $1 AND id = $2
	`, businessID, id).Scan(&supplier.ID, &supplier.BusinessID, &supplier.Name,
		&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context, businessID string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, phone, COALESCE(email,''), address, created_at
		FROM suppliers
		WHERE business_id = $1
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.BusinessID, &supplier.Name,
			&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, supplier)
	}
	return suppliers, rows.Err()
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET name = $3, phone = $4, email = $5, address = $6
		WHERE business_id = $1 AND id = $2
	`, supplier.BusinessID, supplier.ID, supplier.Name, supplier.Phone,
		nullIfEmpty(supplier.Email), supplier.Address)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetSupplier(ctx, supplier.BusinessID, supplier.ID)
}

func (s *Store) DeleteSupplier(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM suppliers WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- alerts ----

func (s *Store) CreateAlert(ctx context.Context, alert domain.Alert) (*domain.Alert, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, business_id, product_id, alert_type, message, is_read, is_resolved, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, alert.ID, alert.BusinessID, alert.ProductID, alert.AlertType, alert.Message,
		alert.IsRead, alert.IsResolved, alert.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := alert
	return &created, nil
}

func (s *Store) ListAlerts(ctx context.Context, businessID string, unresolvedOnly bool, limit int) ([]domain.Alert, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id, business_id, product_id, alert_type, message, is_read, is_resolved, created_at
		FROM alerts
		WHERE business_id = $1`
	if unresolvedOnly {
		query += " AND is_resolved = false"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := s.db.QueryContext(ctx, query, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0, limit)
	for rows.Next() {
		var alert domain.Alert
		if err := rows.Scan(&alert.ID, &alert.BusinessID, &alert.ProductID, &alert.AlertType,
			&alert.Message, &alert.IsRead, &alert.IsResolved, &alert.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (s *Store) MarkAlertRead(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET is_read = true WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ResolveAlert(ctx context.Context, businessID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET is_resolved = true WHERE business_id = $1 AND id = $2
	`, businessID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) HasUnresolvedAlert(ctx context.Context, businessID string, productID string, alertType string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE business_id = $1 AND product_id = $2 AND alert_type = $3 AND is_resolved = false
		)
	`, businessID, productID, alertType).Scan(&exists)
	return exists, err
}

// ---- settings ----

func (s *Store) GetSettings(ctx context.Context, businessID string) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT business_id, bill_prefix, default_tax_percentage, low_stock_threshold_default,
			enable_email_alerts, enable_expiry_alerts, enable_overstock_alerts,
			currency_symbol, updated_at
		FROM settings
		WHERE business_id = $1
	`, businessID).Scan(&settings.BusinessID, &settings.BillPrefix, &settings.DefaultTaxPercentage,
		&settings.LowStockThresholdDefault, &settings.EnableEmailAlerts, &settings.EnableExpiryAlerts,
		&settings.EnableOverstockAlerts, &settings.CurrencySymbol, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (business_id, bill_prefix, default_tax_percentage,
			low_stock_threshold_default, enable_email_alerts, enable_expiry_alerts,
			enable_overstock_alerts, currency_symbol, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (business_id) DO UPDATE SET
			bill_prefix = EXCLUDED.bill_prefix,
			default_tax_percentage = EXCLUDED.default_tax_percentage,
			low_stock_threshold_default = EXCLUDED.low_stock_threshold_default,
			enable_email_alerts = EXCLUDED.enable_email_alerts,
			enable_expiry_alerts = EXCLUDED.enable_expiry_alerts,
			enable_overstock_alerts = EXCLUDED.enable_overstock_alerts,
			currency_symbol = EXCLUDED.currency_symbol,
			updated_at = EXCLUDED.updated_at
	`, settings.BusinessID, settings.BillPrefix, settings.DefaultTaxPercentage,
		settings.LowStockThresholdDefault, settings.EnableEmailAlerts, settings.EnableExpiryAlerts,
		settings.EnableOverstockAlerts, settings.CurrencySymbol, settings.UpdatedAt)
	if err != nil {
		return nil, err
	}
	saved := settings
	return &saved, nil
}

// ---- aggregations ----

func (s *Store) DashboardMetrics(ctx context.Context, businessID string, now time.Time) (domain.DashboardMetrics, error) {
	var metrics domain.DashboardMetrics
	day := now.UTC().Format("2006-01-02")

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
		FROM bills
		WHERE business_id = $1 AND date::date = $2::date
	`, businessID, day).Scan(&metrics.TodaySalesTotal, &metrics.TodaySalesCount)
	if err != nil {
		return metrics, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE current_stock = 0 OR current_stock < min_stock_level)
		FROM products
		WHERE business_id = $1 AND active = true
	`, businessID).Scan(&metrics.ProductCount, &metrics.LowStockCount)
	if err != nil {
		return metrics, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alerts WHERE business_id = $1 AND is_read = false
	`, businessID).Scan(&metrics.UnreadAlerts)
	if err != nil {
		return metrics, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers WHERE business_id = $1
	`, businessID).Scan(&metrics.CustomerCount)
	return metrics, err
}

func (s *Store) SalesChart(ctx context.Context, businessID string, days int, now time.Time) ([]domain.SalesChartPoint, error) {
	if days < 1 {
		days = 7
	}
	start := now.UTC().AddDate(0, 0, 1-days).Format("2006-01-02")

	rows, err := s.db.QueryContext(ctx, `
		SELECT date::date, COALESCE(SUM(total_amount), 0), COUNT(*)
		FROM bills
		WHERE business_id = $1 AND date::date >= $2::date
		GROUP BY date::date
	`, businessID, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]domain.SalesChartPoint, days)
	for rows.Next() {
		var day time.Time
		var point domain.SalesChartPoint
		if err := rows.Scan(&day, &point.Total, &point.Count); err != nil {
			return nil, err
		}
		totals[day.Format("2006-01-02")] = point
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Zero-filled series so the chart never has holes.
	points := make([]domain.SalesChartPoint, 0, days)
	for i := 1 - days; i <= 0; i++ {
		date := now.UTC().AddDate(0, 0, i).Format("2006-01-02")
		point := totals[date]
		point.Date = date
		points = append(points, point)
	}
	return points, nil
}

func (s *Store) SalesReport(ctx context.Context, businessID string, from time.Time, to time.Time) (domain.SalesReport, error) {
	report := domain.SalesReport{From: dateLabel(from), To: dateLabel(to)}
	query := `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(discount_amount), 0),
			COALESCE(SUM(tax_amount), 0), COALESCE(SUM(paid_amount), 0), COALESCE(SUM(balance_amount), 0)
		FROM bills
		WHERE business_id = $1`
	args := []any{businessID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&report.BillCount, &report.GrossTotal,
		&report.Discount, &report.Tax, &report.Paid, &report.Balance)
	return report, err
}

func (s *Store) PurchasesReport(ctx context.Context, businessID string, from time.Time, to time.Time) (domain.PurchasesReport, error) {
	report := domain.PurchasesReport{From: dateLabel(from), To: dateLabel(to)}
	query := `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM purchases
		WHERE business_id = $1`
	args := []any{businessID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&report.PurchaseCount, &report.Total)
	return report, err
}

func (s *Store) StockSummary(ctx context.Context, businessID string) (domain.StockSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sku, current_stock, current_stock * purchase_price,
			CASE
				WHEN current_stock = 0 THEN 'out_of_stock'
				WHEN current_stock < min_stock_level THEN 'low_stock'
				WHEN max_stock_level > 0 AND current_stock > max_stock_level THEN 'overstock'
				ELSE 'ok'
			END
		FROM products
		WHERE business_id = $1 AND active = true
		ORDER BY name
	`, businessID)
	if err != nil {
		return domain.StockSummary{}, err
	}
	defer rows.Close()

	summary := domain.StockSummary{Lines: make([]domain.StockSummaryLine, 0, 64)}
	for rows.Next() {
		var line domain.StockSummaryLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.SKU, &line.CurrentStock,
			&line.StockValue, &line.Status); err != nil {
			return domain.StockSummary{}, err
		}
		summary.TotalProducts++
		summary.TotalValue += line.StockValue
		summary.Lines = append(summary.Lines, line)
	}
	return summary, rows.Err()
}

// ---- helpers ----

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func dateLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
