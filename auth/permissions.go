package auth

import "liontech/model"

type Permission string

const (
	CatalogWrite  Permission = "catalog.write"
	OrdersRead    Permission = "orders.read"
	OrdersWrite   Permission = "orders.write"
	CouponsWrite  Permission = "coupons.write"
	StockWrite    Permission = "stock.write"
	TicketsReply  Permission = "tickets.reply"
	HoursWrite    Permission = "hours.write"
	BackupsManage Permission = "backups.manage"
	SettingsWrite Permission = "settings.write"
	UsersManage   Permission = "users.manage"
	ReportsRead   Permission = "reports.read"
)

var rolePermissions = map[string]map[Permission]bool{
	model.RoleAdmin: {
		CatalogWrite: true, OrdersRead: true, OrdersWrite: true, CouponsWrite: true, StockWrite: true,
		TicketsReply: true, HoursWrite: true, BackupsManage: true, SettingsWrite: true, UsersManage: true,
		ReportsRead: true,
	},
	model.RoleManager: {
		CatalogWrite: true, OrdersRead: true, OrdersWrite: true, StockWrite: true, TicketsReply: true,
		HoursWrite: true, ReportsRead: true,
	},
	model.RoleSupport: {
		OrdersRead: true, TicketsReply: true,
	},
}

// Can reports whether role grants p. Unknown roles grant nothing.
func Can(role string, p Permission) bool {
	return rolePermissions[role][p]
}

func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
