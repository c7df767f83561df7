package sync

import (
	"context"

	"fieldflow/internal/model"
)

// Filters narrows the order listing. Zero value means no filtering.
type Filters struct {
	Status    model.OrderStatus
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
}

// OrdersResult is one page of a technician's orders plus the total count
// across all pages under the same filters.
type OrdersResult struct {
	Orders []model.ServiceOrder
	Total  int
}

// StatusUpdate is the payload of one outbound status write.
type StatusUpdate struct {
	OrderID  string
	Status   model.OrderStatus
	Notes    string
	FormData model.FormData
}

// Remote is the back-office API boundary. Implementations classify every
// failure as a *RemoteError so the controller can pick the right recovery.
//
// All calls honor ctx cancellation and deadlines.
type Remote interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	Logout(ctx context.Context) error

	// OrdersPage lists the technician's orders, newest first. page is
	// 1-based.
	OrdersPage(ctx context.Context, technicianID string, page, pageSize int, f Filters) (OrdersResult, error)

	// UpdateOrderStatus pushes a status write and returns the canonical
	// order as the back office now sees it.
	UpdateOrderStatus(ctx context.Context, u StatusUpdate) (model.ServiceOrder, error)

	FormTemplates(ctx context.Context) ([]model.FormTemplate, error)
	ActivationRules(ctx context.Context) ([]model.ActivationRule, error)
	ServiceTypes(ctx context.Context) ([]model.ServiceType, error)
	Equipments(ctx context.Context) ([]model.Equipment, error)

	// UpdateTechnicianLocation reports the device position. Failures are
	// logged by the caller and never surfaced to the technician.
	UpdateTechnicianLocation(ctx context.Context, technicianID string, pos model.Geostamp) error
}
