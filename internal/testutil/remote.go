package testutil

import (
	"context"
	"errors"
	stdsync "sync"

	"fieldflow/internal/model"
	"fieldflow/internal/sync"
)

// FakeRemote is a scripted in-memory back office. Zero value is usable;
// fields script responses and the fake records every call.
//
// Thread-safe: the controller calls it from multiple goroutines.
type FakeRemote struct {
	mu stdsync.Mutex

	// Scripted responses. The *Fn hooks win when non-nil; otherwise the
	// plain fields are returned.
	User      model.User
	LoginErr  error
	LogoutErr error

	Orders    []model.ServiceOrder
	Total     int
	OrdersErr error
	OrdersFn  func(technicianID string, page, pageSize int, f sync.Filters) (sync.OrdersResult, error)

	Updated model.ServiceOrder
	PushErr error
	PushFn  func(u sync.StatusUpdate) (model.ServiceOrder, error)

	Templates []model.FormTemplate
	Rules     []model.ActivationRule
	Types     []model.ServiceType
	Equip     []model.Equipment
	ListErr   error

	LocationErr error

	// Call records.
	Calls       []string
	Pushes      []sync.StatusUpdate
	Positions   []model.Geostamp
	LogoutCalls int
}

func (f *FakeRemote) record(name string) {
	f.Calls = append(f.Calls, name)
}

func (f *FakeRemote) Login(ctx context.Context, email, password string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("login")
	if f.LoginErr != nil {
		return model.User{}, f.LoginErr
	}
	return f.User, nil
}

func (f *FakeRemote) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("logout")
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *FakeRemote) OrdersPage(ctx context.Context, technicianID string, page, pageSize int, flt sync.Filters) (sync.OrdersResult, error) {
	f.mu.Lock()
	f.record("orders page")
	fn := f.OrdersFn
	orders := f.Orders
	total := f.Total
	err := f.OrdersErr
	f.mu.Unlock()

	if fn != nil {
		return fn(technicianID, page, pageSize, flt)
	}
	if err != nil {
		return sync.OrdersResult{}, err
	}
	if total == 0 {
		total = len(orders)
	}
	return sync.OrdersResult{Orders: orders, Total: total}, nil
}

func (f *FakeRemote) UpdateOrderStatus(ctx context.Context, u sync.StatusUpdate) (model.ServiceOrder, error) {
	f.mu.Lock()
	f.record("update order status")
	f.Pushes = append(f.Pushes, u)
	fn := f.PushFn
	updated := f.Updated
	err := f.PushErr
	f.mu.Unlock()

	if fn != nil {
		return fn(u)
	}
	if err != nil {
		return model.ServiceOrder{}, err
	}
	if updated.ID == "" {
		// Default: echo the write back as the canonical order.
		return model.ServiceOrder{ID: u.OrderID, Status: u.Status, Notes: u.Notes, FormData: u.FormData}, nil
	}
	return updated, nil
}

func (f *FakeRemote) FormTemplates(ctx context.Context) ([]model.FormTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("form templates")
	return f.Templates, f.ListErr
}

func (f *FakeRemote) ActivationRules(ctx context.Context) ([]model.ActivationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("activation rules")
	return f.Rules, f.ListErr
}

func (f *FakeRemote) ServiceTypes(ctx context.Context) ([]model.ServiceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("service types")
	return f.Types, f.ListErr
}

func (f *FakeRemote) Equipments(ctx context.Context) ([]model.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("equipments")
	return f.Equip, f.ListErr
}

func (f *FakeRemote) UpdateTechnicianLocation(ctx context.Context, technicianID string, pos model.Geostamp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update technician location")
	f.Positions = append(f.Positions, pos)
	return f.LocationErr
}

// SetOrders replaces the scripted order page and clears any orders error.
func (f *FakeRemote) SetOrders(orders []model.ServiceOrder, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Orders = orders
	f.Total = total
	f.OrdersErr = nil
}

// SetOrdersErr scripts the next order-page failures.
func (f *FakeRemote) SetOrdersErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OrdersErr = err
}

// SetPushErr scripts the next status-write failures. Pass nil to heal.
func (f *FakeRemote) SetPushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PushErr = err
}

// PositionCount returns how many location reports the remote has received.
func (f *FakeRemote) PositionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Positions)
}

// PushCount returns how many status writes the remote has received.
func (f *FakeRemote) PushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Pushes)
}

// PushedStatuses returns the statuses received so far, in arrival order.
func (f *FakeRemote) PushedStatuses() []model.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.OrderStatus, len(f.Pushes))
	for i, p := range f.Pushes {
		out[i] = p.Status
	}
	return out
}

// AuthErr builds an auth-expired remote failure for the given operation.
func AuthErr(op string) error {
	return &sync.RemoteError{Class: sync.ClassAuth, Op: op, Err: errors.New("jwt expired")}
}

// ConnErr builds a connectivity remote failure for the given operation.
func ConnErr(op string) error {
	return &sync.RemoteError{Class: sync.ClassConnectivity, Op: op, Err: errors.New("connection refused")}
}

// ValidationErr builds a remote-rejected-payload failure.
func ValidationErr(op string) error {
	return &sync.RemoteError{Class: sync.ClassValidation, Op: op, Err: errors.New("payload rejected")}
}
