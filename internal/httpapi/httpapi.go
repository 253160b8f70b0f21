package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/service"
	"stockflow/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	resetLimiter  *attemptLimiter
	validate      *validator.Validate
	log           *logrus.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.New()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		resetLimiter:  newAttemptLimiter(5, time.Minute),
		validate:      validator.New(),
		log:           log,
	}
}

// envelope is the shape of every response body.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/password-reset", a.handlePasswordResetRequest)
	mux.HandleFunc("POST /api/v1/auth/password-reset/confirm", a.handlePasswordResetConfirm)

	// Static segments win over wildcards, so /products/low-stock never
	// collides with /products/{id}.
	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct))
	mux.HandleFunc("GET /api/v1/products/low-stock", a.requireAuth(a.handleLowStockProducts))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleGetProduct))
	mux.HandleFunc("PUT /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.requireAuth(a.handleDeleteProduct, domain.RoleAdmin))
	mux.HandleFunc("POST /api/v1/products/{id}/adjust-stock", a.requireAuth(a.handleAdjustStock, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/sales", a.requireAuth(a.handleListBills))
	mux.HandleFunc("POST /api/v1/sales", a.requireAuth(a.handleCreateBill))
	mux.HandleFunc("GET /api/v1/sales/{id}", a.requireAuth(a.handleGetBill))
	mux.HandleFunc("PUT /api/v1/sales/{id}", a.requireAuth(a.handleUpdateBillPayment))
	mux.HandleFunc("DELETE /api/v1/sales/{id}", a.requireAuth(a.handleDeleteBill, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/purchases", a.requireAuth(a.handleListPurchases))
	mux.HandleFunc("POST /api/v1/purchases", a.requireAuth(a.handleCreatePurchase))
	mux.HandleFunc("GET /api/v1/purchases/{id}", a.requireAuth(a.handleGetPurchase))
	mux.HandleFunc("DELETE /api/v1/purchases/{id}", a.requireAuth(a.handleDeletePurchase, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/barcode/product/{barcode}", a.requireAuth(a.handleBarcodeLookup))
	mux.HandleFunc("POST /api/v1/barcode/purchase", a.requireAuth(a.handleBarcodePurchase))
	mux.HandleFunc("POST /api/v1/barcode/sale", a.requireAuth(a.handleBarcodeSale))

	mux.HandleFunc("GET /api/v1/customers", a.requireAuth(a.handleListCustomers))
	mux.HandleFunc("POST /api/v1/customers", a.requireAuth(a.handleCreateCustomer))
	mux.HandleFunc("GET /api/v1/customers/{id}", a.requireAuth(a.handleGetCustomer))
	mux.HandleFunc("PUT /api/v1/customers/{id}", a.requireAuth(a.handleUpdateCustomer))
	mux.HandleFunc("DELETE /api/v1/customers/{id}", a.requireAuth(a.handleDeleteCustomer))

	mux.HandleFunc("GET /api/v1/suppliers", a.requireAuth(a.handleListSuppliers))
	mux.HandleFunc("POST /api/v1/suppliers", a.requireAuth(a.handleCreateSupplier))
	mux.HandleFunc("GET /api/v1/suppliers/{id}", a.requireAuth(a.handleGetSupplier))
	mux.HandleFunc("PUT /api/v1/suppliers/{id}", a.requireAuth(a.handleUpdateSupplier))
	mux.HandleFunc("DELETE /api/v1/suppliers/{id}", a.requireAuth(a.handleDeleteSupplier))

	mux.HandleFunc("GET /api/v1/alerts", a.requireAuth(a.handleListAlerts))
	mux.HandleFunc("PUT /api/v1/alerts/{id}/read", a.requireAuth(a.handleMarkAlertRead))
	mux.HandleFunc("PUT /api/v1/alerts/{id}/resolve", a.requireAuth(a.handleResolveAlert))

	mux.HandleFunc("GET /api/v1/settings", a.requireAuth(a.handleGetSettings))
	mux.HandleFunc("PUT /api/v1/settings", a.requireAuth(a.handleUpdateSettings, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/dashboard/metrics", a.requireAuth(a.handleDashboardMetrics))
	mux.HandleFunc("GET /api/v1/dashboard/sales-chart", a.requireAuth(a.handleSalesChart))

	mux.HandleFunc("GET /api/v1/reports/sales", a.requireAuth(a.handleSalesReport))
	mux.HandleFunc("GET /api/v1/reports/purchases", a.requireAuth(a.handlePurchasesReport))
	mux.HandleFunc("GET /api/v1/reports/profit-loss", a.requireAuth(a.handleProfitLossReport))
	mux.HandleFunc("GET /api/v1/reports/stock-summary", a.requireAuth(a.handleStockSummary))

	mux.HandleFunc("GET /api/v1/users", a.requireAuth(a.handleListUsers, domain.RoleAdmin))
	mux.HandleFunc("POST /api/v1/users", a.requireAuth(a.handleCreateUser, domain.RoleAdmin))
	mux.HandleFunc("PUT /api/v1/users/{id}/deactivate", a.requireAuth(a.handleDeactivateUser, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeFailure(w, http.StatusUnauthorized, err.Error())
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeFailure(w, http.StatusForbidden, "forbidden role")
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(startedAt).String(),
		}).Info("request")
	})
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

// Reset clears the failure history for a key so a successful attempt does not
// count toward the lockout window.
func (l *attemptLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// ---- auth handlers ----

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeData(w, http.StatusOK, "ok", map[string]any{
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	resp, err := a.auth.Register(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "business registered", resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeFailure(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	var req domain.LoginRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeFailure(w, http.StatusUnauthorized, err.Error())
		return
	}
	a.loginLimiter.Reset(clientKey(r))
	a.writeData(w, http.StatusOK, "logged in", resp)
}

func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	if !a.resetLimiter.Allow(clientKey(r)) {
		a.writeFailure(w, http.StatusTooManyRequests, "too many reset attempts")
		return
	}
	var req domain.PasswordResetRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	resp, err := a.auth.RequestPasswordReset(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "reset token issued", resp)
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetConfirmRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.auth.ConfirmPasswordReset(r.Context(), req); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "password updated", nil)
}

// ---- product handlers ----

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "products", products)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "product created", product)
}

func (a *API) handleLowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListLowStockProducts(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "low stock products", products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "product", product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "product updated", product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "product deleted", nil)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	product, err := a.service.AdjustStock(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "stock adjusted", product)
}

// ---- sale handlers ----

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	bills, err := a.service.ListBills(r.Context(), from, to)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "sales", bills)
}

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillCreateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	bill, err := a.service.CreateBill(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "sale recorded", bill)
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.service.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "sale", bill)
}

func (a *API) handleUpdateBillPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.BillPaymentUpdateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	bill, err := a.service.UpdateBillPayment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "payment updated", bill)
}

func (a *API) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "sale deleted", nil)
}

// ---- purchase handlers ----

func (a *API) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	purchases, err := a.service.ListPurchases(r.Context(), from, to)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "purchases", purchases)
}

func (a *API) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseCreateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	purchase, err := a.service.CreatePurchase(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "purchase recorded", purchase)
}

func (a *API) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := a.service.GetPurchase(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "purchase", purchase)
}

func (a *API) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeletePurchase(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "purchase deleted", nil)
}

// ---- barcode handlers ----

func (a *API) handleBarcodeLookup(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.LookupBarcode(r.Context(), r.PathValue("barcode"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "product", product)
}

func (a *API) handleBarcodePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.BarcodePurchaseRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	purchase, err := a.service.BarcodePurchase(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "stock received", purchase)
}

func (a *API) handleBarcodeSale(w http.ResponseWriter, r *http.Request) {
	var req domain.BarcodeSaleRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	bill, err := a.service.BarcodeSale(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "sale recorded", bill)
}

// ---- customer handlers ----

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "customers", customers)
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "customer created", customer)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "customer", customer)
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "customer updated", customer)
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCustomer(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "customer deleted", nil)
}

// ---- supplier handlers ----

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "suppliers", suppliers)
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "supplier created", supplier)
}

func (a *API) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := a.service.GetSupplier(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "supplier", supplier)
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierUpdateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "supplier updated", supplier)
}

func (a *API) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSupplier(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "supplier deleted", nil)
}

// ---- alert handlers ----

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := strings.EqualFold(r.URL.Query().Get("unresolved"), "true")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	alerts, err := a.service.ListAlerts(r.Context(), unresolvedOnly, limit)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "alerts", alerts)
}

func (a *API) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	if err := a.service.MarkAlertRead(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "alert marked read", nil)
}

func (a *API) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ResolveAlert(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "alert resolved", nil)
}

// ---- settings handlers ----

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.GetSettings(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "settings", settings)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.SettingsUpdateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	settings, err := a.service.UpdateSettings(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "settings updated", settings)
}

// ---- dashboard and report handlers ----

func (a *API) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := a.service.DashboardMetrics(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "dashboard metrics", metrics)
}

func (a *API) handleSalesChart(w http.ResponseWriter, r *http.Request) {
	days := parsePositiveLimit(r.URL.Query().Get("days"), 7, 90)
	points, err := a.service.SalesChart(r.Context(), days)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "sales chart", points)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	report, err := a.service.SalesReport(r.Context(), from, to)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "sales report", report)
}

func (a *API) handlePurchasesReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	report, err := a.service.PurchasesReport(r.Context(), from, to)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "purchases report", report)
}

func (a *API) handleProfitLossReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	report, err := a.service.ProfitLossReport(r.Context(), from, to)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "profit and loss report", report)
}

func (a *API) handleStockSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.StockSummary(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "stock summary", summary)
}

// ---- user handlers ----

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "users", users)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := a.decode(r, &req); err != nil {
		a.writeErr(w, err)
		return
	}
	user, err := a.auth.CreateManager(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, "user created", user)
}

func (a *API) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeactivateUser(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	a.writeData(w, http.StatusOK, "user deactivated", nil)
}

// ---- helpers ----

func (a *API) decode(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	if err := a.validate.Struct(dest); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

// parseDateRange reads optional from/to query params in YYYY-MM-DD form. The
// to bound is extended to the end of its day so ranges are inclusive.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, fmt.Errorf("%w: invalid from date %q", store.ErrValidation, raw)
		}
		from = parsed.UTC()
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, fmt.Errorf("%w: invalid to date %q", store.ErrValidation, raw)
		}
		to = parsed.UTC().AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("%w: to date precedes from date", store.ErrValidation)
	}
	return from, to, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeErr(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, store.ErrValidation), errors.As(err, &validationErrs):
		a.writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		a.writeFailure(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		a.writeFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInsufficientStock):
		a.writeFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrForbidden):
		a.writeFailure(w, http.StatusForbidden, err.Error())
	default:
		a.log.WithError(err).Error("request failed")
		a.writeFailure(w, http.StatusInternalServerError, "internal server error")
	}
}

func (a *API) writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Message: message,
		Error:   http.StatusText(status),
	})
}

func (a *API) writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
