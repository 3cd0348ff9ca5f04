package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"liontech/aggregation"
	"liontech/auth"
	"liontech/backup"
	"liontech/cart"
	"liontech/chat"
	"liontech/checkout"
	"liontech/client"
	"liontech/config"
	"liontech/contact"
	"liontech/coupon"
	"liontech/deadstock"
	"liontech/hours"
	"liontech/httpx"
	"liontech/metrics"
	"liontech/order"
	"liontech/payment"
	"liontech/pricing"
	"liontech/product"
	"liontech/realtime"
	"liontech/reorder"
	"liontech/showcase"
	"liontech/stock"
	"liontech/storage"
	"liontech/valuation"
)

// SetupRoutes registers the storefront, webhook and dashboard endpoints.
func SetupRoutes(app *application) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	db, log := app.db, app.log
	settings := config.GetConfig
	url := app.store.URL
	protect := app.auth.Protect

	loginLimiter := httpx.NewRateLimiter(5, time.Minute).TrustProxies(app.proxies)
	contactLimiter := httpx.NewRateLimiter(3, time.Minute).TrustProxies(app.proxies)
	ticketLimiter := httpx.NewRateLimiter(5, time.Minute).TrustProxies(app.proxies)

	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/healthz", healthHandler(app)).Methods(http.MethodGet)
	if local, ok := app.store.(*storage.LocalStore); ok {
		r.PathPrefix("/media/").Handler(mediaHandler(local.Root()))
	}

	api := r.PathPrefix("/api").Subrouter()

	// Auth
	api.HandleFunc("/auth/login", auth.LoginHandler(app.auth, loginLimiter, app.env.SecureCookies, log)).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", auth.LogoutHandler(app.env.SecureCookies)).Methods(http.MethodPost)
	api.Handle("/auth/me", app.auth.RequireAuth(auth.MeHandler())).Methods(http.MethodGet)

	// Storefront catalog
	api.HandleFunc("/products", product.ListHandler(db, settings, url, log)).Methods(http.MethodGet)
	api.HandleFunc("/products/{slug}", product.GetBySlugHandler(db, settings, url, log)).Methods(http.MethodGet)
	api.HandleFunc("/categories", ListCategoriesHandler(db, log)).Methods(http.MethodGet)
	api.HandleFunc("/services", showcase.ListServicesHandler(db, false, log)).Methods(http.MethodGet)
	api.HandleFunc("/cases", showcase.ListCasesHandler(db, false, url, log)).Methods(http.MethodGet)
	api.HandleFunc("/cases/{slug}", showcase.GetCaseHandler(db, url, log)).Methods(http.MethodGet)
	api.HandleFunc("/hours", hours.GetHandler(db, settings, log)).Methods(http.MethodGet)

	// Cart and checkout
	api.HandleFunc("/cart", cart.GetHandler(db, settings, url, log)).Methods(http.MethodGet)
	api.HandleFunc("/cart", cart.ClearHandler(db, log)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", cart.AddItemHandler(db, log)).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{product_id}", cart.UpdateItemHandler(db, log)).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{product_id}", cart.RemoveItemHandler(db, log)).Methods(http.MethodDelete)
	api.HandleFunc("/coupons/validate", coupon.ValidateHandler(db, log)).Methods(http.MethodPost)
	api.HandleFunc("/checkout", checkout.PlaceOrderHandler(app.checkout)).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", checkout.GetOrderHandler(db, log)).Methods(http.MethodGet)
	api.HandleFunc("/webhooks/payment", payment.WebhookHandler(db, app.gateway, app.orders, app.env.PaymentWebhookSecret, log)).Methods(http.MethodPost)

	// Customer support
	api.Handle("/tickets", ticketLimiter.Middleware(chat.CreateHandler(app.chat))).Methods(http.MethodPost)
	api.HandleFunc("/tickets/{id}", chat.GetHandler(app.chat)).Methods(http.MethodGet)
	api.HandleFunc("/tickets/{id}/messages", chat.CustomerMessageHandler(app.chat)).Methods(http.MethodPost)
	api.HandleFunc("/tickets/{id}/ws", chat.StreamHandler(app.chat, app.hub)).Methods(http.MethodGet)
	api.Handle("/contact", contactLimiter.Middleware(contact.SubmitHandler(db, app.notifier, app.hub, log))).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()

	admin.Handle("/feed", protect(auth.OrdersRead, realtime.FeedHandler(app.hub))).Methods(http.MethodGet)
	admin.Handle("/dashboard", protect(auth.ReportsRead, aggregation.DashboardHandler(db, settings, log))).Methods(http.MethodGet)

	admin.Handle("/users", protect(auth.UsersManage, auth.ListUsersHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/users", protect(auth.UsersManage, auth.CreateUserHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/users/{id}", protect(auth.UsersManage, auth.UpdateUserHandler(db, log))).Methods(http.MethodPatch)

	admin.Handle("/config", protect(auth.SettingsWrite, GetConfigHandler())).Methods(http.MethodGet)
	admin.Handle("/config", protect(auth.SettingsWrite, SaveConfigHandler(log))).Methods(http.MethodPost)

	// Catalog. Fixed paths come before {id}.
	admin.Handle("/products", protect(auth.OrdersRead, product.AdminListHandler(db, settings, url, log))).Methods(http.MethodGet)
	admin.Handle("/products", protect(auth.CatalogWrite, product.CreateHandler(db, settings, url, log))).Methods(http.MethodPost)
	admin.Handle("/products/export", protect(auth.CatalogWrite, product.ExportHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/products/import", protect(auth.CatalogWrite, product.ImportHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/products/{id}", protect(auth.OrdersRead, product.AdminGetHandler(db, settings, url, log))).Methods(http.MethodGet)
	admin.Handle("/products/{id}", protect(auth.CatalogWrite, product.UpdateHandler(db, settings, url, log))).Methods(http.MethodPut)
	admin.Handle("/products/{id}", protect(auth.CatalogWrite, product.DeleteHandler(db, app.store, log))).Methods(http.MethodDelete)
	admin.Handle("/products/{id}/image", protect(auth.CatalogWrite, product.UploadImageHandler(db, app.store, settings, url, log))).Methods(http.MethodPost)

	admin.Handle("/categories", protect(auth.OrdersRead, ListCategoriesHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/categories", protect(auth.CatalogWrite, CreateCategoryHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/categories/{id}", protect(auth.CatalogWrite, UpdateCategoryHandler(db, log))).Methods(http.MethodPut)
	admin.Handle("/categories/{id}", protect(auth.CatalogWrite, DeleteCategoryHandler(db, log))).Methods(http.MethodDelete)

	admin.Handle("/services", protect(auth.OrdersRead, showcase.ListServicesHandler(db, true, log))).Methods(http.MethodGet)
	admin.Handle("/services", protect(auth.CatalogWrite, showcase.SaveServiceHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/services/{id}", protect(auth.CatalogWrite, showcase.SaveServiceHandler(db, log))).Methods(http.MethodPut)
	admin.Handle("/services/{id}", protect(auth.CatalogWrite, showcase.DeleteServiceHandler(db, log))).Methods(http.MethodDelete)
	admin.Handle("/cases", protect(auth.OrdersRead, showcase.ListCasesHandler(db, true, url, log))).Methods(http.MethodGet)
	admin.Handle("/cases", protect(auth.CatalogWrite, showcase.SaveCaseHandler(db, url, log))).Methods(http.MethodPost)
	admin.Handle("/cases/{id}", protect(auth.CatalogWrite, showcase.SaveCaseHandler(db, url, log))).Methods(http.MethodPut)
	admin.Handle("/cases/{id}", protect(auth.CatalogWrite, showcase.DeleteCaseHandler(db, log))).Methods(http.MethodDelete)

	admin.Handle("/coupons", protect(auth.CouponsWrite, coupon.ListHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/coupons", protect(auth.CouponsWrite, coupon.CreateHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/coupons/{id}", protect(auth.CouponsWrite, coupon.UpdateHandler(db, log))).Methods(http.MethodPut)
	admin.Handle("/coupons/{id}", protect(auth.CouponsWrite, coupon.DeleteHandler(db, log))).Methods(http.MethodDelete)

	admin.Handle("/pricing/adjust", protect(auth.CatalogWrite, pricing.AdjustHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/pricing/export", protect(auth.CatalogWrite, pricing.ExportHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/pricing/import", protect(auth.CatalogWrite, pricing.ImportHandler(db, log))).Methods(http.MethodPost)

	// Orders and customers
	admin.Handle("/orders", protect(auth.OrdersRead, order.ListHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/orders/export", protect(auth.OrdersRead, order.ExportCSVHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/orders/{id}", protect(auth.OrdersRead, order.DetailHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/orders/{id}/status", protect(auth.OrdersWrite, order.UpdateStatusHandler(app.orders))).Methods(http.MethodPatch)
	admin.Handle("/orders/{id}/receipt", protect(auth.OrdersRead, order.ReceiptHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/orders/{id}/receipt.pdf", protect(auth.OrdersRead, order.ReceiptPDFHandler(db, app.pdf, log))).Methods(http.MethodGet)
	admin.Handle("/customers", protect(auth.OrdersRead, client.ListCustomersHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/customers/export", protect(auth.OrdersRead, client.ExportCustomersHandler(db, log))).Methods(http.MethodGet)

	// Stock and reports
	admin.Handle("/stock/movements", protect(auth.StockWrite, stock.RecordMovementHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/stock/movements", protect(auth.OrdersRead, stock.ListMovementsHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/stock/count", protect(auth.StockWrite, stock.ImportCountHandler(db, log))).Methods(http.MethodPost)
	admin.Handle("/reports/valuation", protect(auth.ReportsRead, valuation.GetValuationHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/reports/valuation/export", protect(auth.ReportsRead, valuation.ExportValuationCSVHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/reports/deadstock", protect(auth.ReportsRead, deadstock.ListDeadStockHandler(db, settings, log))).Methods(http.MethodGet)
	admin.Handle("/reports/deadstock/export", protect(auth.ReportsRead, deadstock.ExportDeadStockHandler(db, settings, log))).Methods(http.MethodGet)
	admin.Handle("/reports/reorder", protect(auth.ReportsRead, reorder.CandidatesHandler(db, settings, log))).Methods(http.MethodGet)
	admin.Handle("/reports/reorder/export", protect(auth.ReportsRead, reorder.ExportHandler(db, settings, log))).Methods(http.MethodGet)

	// Support desk
	admin.Handle("/tickets", protect(auth.TicketsReply, chat.ListHandler(app.chat))).Methods(http.MethodGet)
	admin.Handle("/tickets/{id}", protect(auth.TicketsReply, chat.AdminGetHandler(app.chat))).Methods(http.MethodGet)
	admin.Handle("/tickets/{id}", protect(auth.TicketsReply, chat.UpdateHandler(app.chat))).Methods(http.MethodPatch)
	admin.Handle("/tickets/{id}/messages", protect(auth.TicketsReply, chat.ReplyHandler(app.chat))).Methods(http.MethodPost)
	admin.Handle("/contacts", protect(auth.TicketsReply, contact.ListHandler(db, log))).Methods(http.MethodGet)
	admin.Handle("/contacts/{id}", protect(auth.TicketsReply, contact.MarkReadHandler(db, log))).Methods(http.MethodPatch)
	admin.Handle("/hours", protect(auth.HoursWrite, hours.UpdateHandler(db, log))).Methods(http.MethodPut)

	// Backups
	retention := func() int { return config.GetConfig().BackupRetention }
	admin.Handle("/backups", protect(auth.BackupsManage, backup.ListHandler(app.backups, log))).Methods(http.MethodGet)
	admin.Handle("/backups", protect(auth.BackupsManage, backup.CreateHandler(app.backups, retention, log))).Methods(http.MethodPost)
	admin.Handle("/backups", protect(auth.BackupsManage, backup.DeleteHandler(app.backups, log))).Methods(http.MethodDelete)
	admin.Handle("/backups/download", protect(auth.BackupsManage, backup.DownloadHandler(app.backups, log))).Methods(http.MethodGet)
	admin.Handle("/backups/restore", protect(auth.BackupsManage, backup.RestoreHandler(app.backups, log))).Methods(http.MethodPost)

	return r
}

// mediaHandler serves public uploads from the local store. Backups live in
// the same directory and are never served here.
func mediaHandler(root string) http.Handler {
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := storage.CleanKey(strings.TrimPrefix(r.URL.Path, "/media/"))
		if err != nil || strings.HasPrefix(key, "backups/") || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}

func healthHandler(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			httpx.WriteError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
