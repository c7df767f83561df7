package sync

import (
	"context"
	"log/slog"
	"time"

	"fieldflow/internal/forms"
	"fieldflow/internal/model"
	"fieldflow/internal/store"
)

// fetchRetries is how many times a connectivity failure is retried before
// the refresh gives up and falls back to the cache.
const fetchRetries = 2

// retryBackoff spaces fetch retries.
const retryBackoff = 2 * time.Second

// RefreshOpts tunes a single refresh.
type RefreshOpts struct {
	// Page selects the 1-based page; 0 keeps the current page.
	Page int
	// Filters replaces the active filters when non-nil, resetting to
	// page 1 if they differ from the current ones.
	Filters *Filters
	// Silent suppresses user-facing notifications on failure. Background
	// refreshes are silent; explicit pulls are not.
	Silent bool
}

// RefreshOrders fetches a page from the remote and replaces the cached
// snapshot. On connectivity failure the cache is kept and the controller
// goes offline. On auth expiry the session is force-terminated.
//
// A refresh that finishes after a newer one started, or after a logout,
// discards its result.
func (c *Controller) RefreshOrders(ctx context.Context, opts RefreshOpts) error {
	c.mu.Lock()
	if !c.authenticated {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	page := c.meta.Page
	if page < 1 {
		page = 1
	}
	filters := Filters{
		Status:    c.meta.StatusFilter,
		StartDate: c.meta.StartDate,
		EndDate:   c.meta.EndDate,
	}
	if opts.Filters != nil && *opts.Filters != filters {
		filters = *opts.Filters
		page = 1 // new filters restart pagination
	}
	if opts.Page > 0 {
		page = opts.Page
	}
	pageSize := c.meta.PageSize
	if pageSize < 1 {
		pageSize = c.opts.pageSize
	}

	c.fetchGen++
	gen := c.fetchGen
	c.syncing = true
	techID := c.user.ID
	c.mu.Unlock()

	result, err := c.fetchWithRetry(ctx, techID, page, pageSize, filters)

	c.mu.Lock()
	c.syncing = false
	c.mu.Unlock()

	if err != nil {
		class := classOf(err)
		refreshFailuresTotal.WithLabelValues(string(class)).Inc()
		switch {
		case IsAuthExpired(err):
			c.forceLogout()
		case IsConnectivity(err):
			c.setOnline(false)
			if !opts.Silent {
				c.notify(LevelWarn, "could not reach the server, showing cached orders")
			}
		default:
			if !opts.Silent {
				c.notify(LevelError, "order refresh failed")
			}
		}
		return err
	}

	c.mu.Lock()
	if gen != c.fetchGen || !c.authenticated {
		// A newer fetch superseded this one, or the session ended while
		// it was in flight. Drop the result.
		c.mu.Unlock()
		return nil
	}
	c.orders = result.Orders
	c.meta.Page = page
	c.meta.PageSize = pageSize
	c.meta.Total = result.Total
	c.meta.StatusFilter = filters.Status
	c.meta.StartDate = filters.StartDate
	c.meta.EndDate = filters.EndDate
	c.meta.LastSync = c.opts.now()
	meta := c.meta
	c.online = true
	c.mu.Unlock()

	if err := c.db.ReplaceOrders(ctx, result.Orders, meta); err != nil {
		slog.Error("persist refreshed orders failed", "error", err)
	}
	refreshesTotal.Inc()
	return nil
}

// SetFilters applies new filters and refreshes from page 1.
func (c *Controller) SetFilters(ctx context.Context, f Filters) error {
	return c.RefreshOrders(ctx, RefreshOpts{Filters: &f})
}

// SetPage jumps to a page under the current filters.
func (c *Controller) SetPage(ctx context.Context, page int) error {
	return c.RefreshOrders(ctx, RefreshOpts{Page: page})
}

func (c *Controller) refreshSilent() {
	if err := c.RefreshOrders(context.Background(), RefreshOpts{Silent: true}); err != nil {
		slog.Debug("background refresh failed", "error", err)
	}
}

func (c *Controller) fetchWithRetry(ctx context.Context, techID string, page, pageSize int, f Filters) (OrdersResult, error) {
	var last error
	for attempt := 0; attempt <= fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return OrdersResult{}, &RemoteError{Class: ClassConnectivity, Op: "orders page", Err: ctx.Err()}
			case <-time.After(retryBackoff):
			}
		}
		rctx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
		result, err := c.remote.OrdersPage(rctx, techID, page, pageSize, f)
		cancel()
		if err == nil {
			return result, nil
		}
		last = err
		if !IsConnectivity(err) {
			return OrdersResult{}, err
		}
	}
	return OrdersResult{}, last
}

// LoadRules fetches the resolution inputs (templates, rules, service
// types, equipment) and caches a validated snapshot for form resolution
// and completion checks. Called after login and on demand.
func (c *Controller) LoadRules(ctx context.Context) error {
	if !c.isAuthenticated() {
		return ErrNotAuthenticated
	}

	rctx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
	defer cancel()

	templates, err := c.remote.FormTemplates(rctx)
	if err != nil {
		return c.classifyRulesErr(err)
	}
	rules, err := c.remote.ActivationRules(rctx)
	if err != nil {
		return c.classifyRulesErr(err)
	}
	types, err := c.remote.ServiceTypes(rctx)
	if err != nil {
		return c.classifyRulesErr(err)
	}
	equipments, err := c.remote.Equipments(rctx)
	if err != nil {
		return c.classifyRulesErr(err)
	}

	rs, err := forms.NewRuleStore(types, equipments, templates, rules)
	if err != nil {
		return err
	}

	// Persist the validated inputs so completion checks keep working
	// across an offline restart.
	if err := c.db.SaveRuleSnapshot(ctx, store.RuleSnapshot{
		Types:      types,
		Equipments: equipments,
		Templates:  templates,
		Rules:      rules,
	}); err != nil {
		slog.Error("persist rule snapshot failed", "error", err)
	}

	c.mu.Lock()
	c.rules = rs
	c.mu.Unlock()
	return nil
}

func (c *Controller) classifyRulesErr(err error) error {
	switch {
	case IsAuthExpired(err):
		c.forceLogout()
	case IsConnectivity(err):
		c.setOnline(false)
	}
	return err
}

// ResolveForm resolves the checklist for a cached order using the loaded
// rule snapshot.
func (c *Controller) ResolveForm(orderID string) (forms.Resolution, error) {
	c.mu.Lock()
	rs := c.rules
	var order model.ServiceOrder
	found := false
	for _, o := range c.orders {
		if o.ID == orderID {
			order = o
			found = true
			break
		}
	}
	c.mu.Unlock()

	if !found {
		return forms.Resolution{}, ErrOrderNotCached
	}
	if rs == nil {
		return forms.Resolution{}, ErrRulesNotLoaded
	}
	return forms.Resolve(order, rs)
}
