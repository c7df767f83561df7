package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"fieldflow/internal/forms"
	"fieldflow/internal/lifecycle"
	"fieldflow/internal/model"
	"fieldflow/internal/store"
	"fieldflow/internal/timeline"
)

type options struct {
	pageSize         int
	requestTimeout   time.Duration
	flushInterval    time.Duration
	locationInterval time.Duration
	geo              GeoOptions
	now              func() time.Time
	ids              timeline.IDGenerator
	noteBuffer       int
}

// Option configures a Controller.
type Option func(*options)

// WithPageSize sets the order-list page size.
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithRequestTimeout bounds every individual remote call.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithFlushInterval sets the idle cadence of the outbox flush loop. The
// loop also wakes immediately when a write is queued.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.flushInterval = d }
}

// WithLocationInterval sets the sampling cadence of the location loop.
func WithLocationInterval(d time.Duration) Option {
	return func(o *options) { o.locationInterval = d }
}

// WithGeoOptions overrides position-request tuning.
func WithGeoOptions(g GeoOptions) Option {
	return func(o *options) { o.geo = g }
}

// WithNow overrides the wall-clock source. Tests pin it.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides event id generation. Tests use fixed ids.
func WithIDGenerator(ids timeline.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// State is a read-only snapshot of controller state for rendering.
type State struct {
	User          model.User
	Authenticated bool
	Online        bool
	Syncing       bool

	Orders   []model.ServiceOrder
	Page     int
	PageSize int
	Total    int
	Filters  Filters
	LastSync time.Time

	PendingWrites int
}

// Controller coordinates the local cache, the remote API, and the
// background loops. Construct with New, then call Start exactly once
// before any other method.
type Controller struct {
	remote Remote
	geo    Geolocator
	db     *store.Store
	opts   options

	notes     chan Notification
	flushWake chan struct{}

	mu            stdsync.Mutex
	user          model.User
	authenticated bool
	online        bool
	syncing       bool
	orders        []model.ServiceOrder
	meta          store.CacheMeta
	fetchGen      uint64
	rules         *forms.RuleStore

	clock   *timeline.Clock
	machine *lifecycle.Machine

	loopCancel context.CancelFunc
	loopWG     stdsync.WaitGroup
}

// New creates a Controller. geo may be nil; transitions then proceed
// without geostamps and the location loop never starts.
func New(remote Remote, geo Geolocator, db *store.Store, opts ...Option) *Controller {
	o := options{
		pageSize:         5,
		requestTimeout:   10 * time.Second,
		flushInterval:    30 * time.Second,
		locationInterval: 30 * time.Second,
		geo:              DefaultGeoOptions(),
		now:              time.Now,
		ids:              timeline.UUIDv7Generator{},
		noteBuffer:       16,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		remote:    remote,
		geo:       geo,
		db:        db,
		opts:      o,
		notes:     make(chan Notification, o.noteBuffer),
		flushWake: make(chan struct{}, 1),
		clock:     timeline.NewClock(),
	}
	c.machine = c.newMachine(c.clock)
	return c
}

func (c *Controller) newMachine(clock *timeline.Clock) *lifecycle.Machine {
	var pos lifecycle.Positioner
	if c.geo != nil {
		pos = positioner{geo: c.geo, opts: c.opts.geo}
	}
	return lifecycle.NewMachine(clock, c.opts.ids, pos, lifecycle.WithNow(c.opts.now))
}

// Start restores persisted state: cached orders render immediately, the
// logical clock resumes past every persisted event, a stored session
// re-authenticates without a login round trip, and the last rule snapshot
// keeps form resolution and completion checks working offline. A
// background refresh then reconciles with the remote when one is
// reachable.
func (c *Controller) Start(ctx context.Context) error {
	seq, err := c.db.MaxSeq(ctx)
	if err != nil {
		return err
	}
	orders, err := c.db.Orders(ctx)
	if err != nil {
		return err
	}
	meta, haveMeta, err := c.db.Meta(ctx)
	if err != nil {
		return err
	}
	user, haveSession, err := c.db.LoadSession(ctx)
	if err != nil {
		return err
	}
	snap, haveRules, err := c.db.LoadRuleSnapshot(ctx)
	if err != nil {
		return err
	}

	var rules *forms.RuleStore
	if haveRules {
		rules, err = forms.NewRuleStore(snap.Types, snap.Equipments, snap.Templates, snap.Rules)
		if err != nil {
			// The snapshot was validated when saved; a failure here means
			// the payload is corrupt. Resolution waits for the next fetch.
			slog.Warn("restore rule snapshot failed", "error", err)
			rules = nil
		}
	}

	c.mu.Lock()
	c.clock = timeline.NewClockAt(seq)
	c.machine = c.newMachine(c.clock)
	c.orders = orders
	if haveMeta {
		c.meta = meta
	} else {
		c.meta = store.CacheMeta{Page: 1, PageSize: c.opts.pageSize}
	}
	if haveSession {
		c.user = user
		c.authenticated = true
	}
	if rules != nil {
		c.rules = rules
	}
	c.mu.Unlock()

	if haveSession {
		c.startLoops(user)
		go c.refreshSilent()
	}
	return nil
}

// Login authenticates, persists the session, and starts the background
// loops. The first order page loads in the background; cached data from a
// previous session of the same user keeps rendering meanwhile.
func (c *Controller) Login(ctx context.Context, email, password string) (model.User, error) {
	rctx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
	defer cancel()

	user, err := c.remote.Login(rctx, email, password)
	if err != nil {
		if IsConnectivity(err) {
			c.setOnline(false)
		}
		return model.User{}, err
	}

	if err := c.db.SaveSession(ctx, user); err != nil {
		return model.User{}, err
	}

	c.mu.Lock()
	c.user = user
	c.authenticated = true
	c.online = true
	c.mu.Unlock()

	c.startLoops(user)
	go c.refreshSilent()
	return user, nil
}

// Logout stops the loops, tells the remote (best effort), and wipes all
// local state. Nothing cached survives into another user's session.
func (c *Controller) Logout(ctx context.Context) error {
	c.stopLoops(true)

	rctx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
	defer cancel()
	if err := c.remote.Logout(rctx); err != nil {
		slog.Warn("remote logout failed", "error", err)
	}

	if err := c.db.Reset(); err != nil {
		return err
	}
	c.clearState()
	return nil
}

// forceLogout terminates the session after an auth-expired failure.
// Same teardown as Logout minus the remote call; there is no partial
// logout state.
//
// Never waits for the loops: it can be called from inside one.
func (c *Controller) forceLogout() {
	c.stopLoops(false)
	if err := c.db.Reset(); err != nil {
		slog.Error("reset after session expiry failed", "error", err)
	}
	c.clearState()
	forcedLogoutsTotal.Inc()
	c.notify(LevelWarn, "session expired, sign in again")
}

func (c *Controller) clearState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = model.User{}
	c.authenticated = false
	c.syncing = false
	c.orders = nil
	c.meta = store.CacheMeta{Page: 1, PageSize: c.opts.pageSize}
	c.rules = nil
	c.fetchGen++ // in-flight fetch results are now stale
}

func (c *Controller) startLoops(user model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loopCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel

	c.loopWG.Add(1)
	go func() {
		defer c.loopWG.Done()
		c.flushLoop(ctx)
	}()

	if c.geo != nil && user.Role == model.RoleTechnician {
		c.loopWG.Add(1)
		go func() {
			defer c.loopWG.Done()
			c.locationLoop(ctx, user.ID)
		}()
	}
}

func (c *Controller) stopLoops(wait bool) {
	c.mu.Lock()
	cancel := c.loopCancel
	c.loopCancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if wait {
		c.loopWG.Wait()
	}
}

// UpdateOrderStatus applies a lifecycle event optimistically: validation
// and the transition run synchronously, the cache and timeline persist
// locally, and the remote write is queued for the flush loop. The caller
// sees the updated order before any network activity.
//
// Validation failures and illegal transitions return before anything is
// written or queued.
func (c *Controller) UpdateOrderStatus(ctx context.Context, orderID string, cmd lifecycle.Command) (model.ServiceOrder, error) {
	c.mu.Lock()
	if !c.authenticated {
		c.mu.Unlock()
		return model.ServiceOrder{}, ErrNotAuthenticated
	}
	var order model.ServiceOrder
	found := false
	for _, o := range c.orders {
		if o.ID == orderID {
			order = o
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return model.ServiceOrder{}, ErrOrderNotCached
	}
	machine := c.machine
	var tmpl *model.FormTemplate
	if cmd.Event == lifecycle.EventFinish && c.rules != nil {
		// Completion validates required checklist fields against the
		// order's resolved template when rules are loaded.
		if res, err := forms.Resolve(order, c.rules); err == nil {
			tmpl = res.Template
		}
	}
	c.mu.Unlock()

	outcome, err := machine.Apply(ctx, order, cmd, tmpl)
	if err != nil {
		return model.ServiceOrder{}, err
	}

	if err := c.db.UpsertOrder(ctx, outcome.Order); err != nil {
		return model.ServiceOrder{}, err
	}
	if err := c.db.AppendEvent(ctx, outcome.Event); err != nil {
		return model.ServiceOrder{}, err
	}
	pending := store.PendingWrite{
		OrderID: orderID,
		Status:  outcome.Order.Status,
		Notes:   cmd.Notes,
	}
	if cmd.Event == lifecycle.EventFinish || cmd.Event == lifecycle.EventEditChecklist {
		pending.FormData = outcome.Order.FormData
	}
	if _, err := c.db.EnqueueWrite(ctx, pending); err != nil {
		return model.ServiceOrder{}, err
	}

	c.mu.Lock()
	for i := range c.orders {
		if c.orders[i].ID == orderID {
			c.orders[i] = outcome.Order
			break
		}
	}
	c.mu.Unlock()

	optimisticUpdatesTotal.Inc()
	c.wakeFlusher()
	return outcome.Order, nil
}

// Timeline returns the persisted audit trail of an order, oldest first.
func (c *Controller) Timeline(ctx context.Context, orderID string) ([]timeline.Event, error) {
	return c.db.EventsForOrder(ctx, orderID)
}

// Snapshot returns a copy of the current state for rendering.
func (c *Controller) Snapshot(ctx context.Context) (State, error) {
	pending, err := c.db.PendingWriteCount(ctx)
	if err != nil {
		return State{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	orders := make([]model.ServiceOrder, len(c.orders))
	copy(orders, c.orders)
	return State{
		User:          c.user,
		Authenticated: c.authenticated,
		Online:        c.online,
		Syncing:       c.syncing,
		Orders:        orders,
		Page:          c.meta.Page,
		PageSize:      c.meta.PageSize,
		Total:         c.meta.Total,
		Filters: Filters{
			Status:    c.meta.StatusFilter,
			StartDate: c.meta.StartDate,
			EndDate:   c.meta.EndDate,
		},
		LastSync:      c.meta.LastSync,
		PendingWrites: pending,
	}, nil
}

// Notifications is the side channel for background failures and session
// events. The UI should drain it; messages are dropped when it is full.
func (c *Controller) Notifications() <-chan Notification {
	return c.notes
}

// OnConnectivityChange is the hook for platform reachability signals.
// Regaining connectivity wakes the flush loop and re-validates the
// session with a silent refresh.
func (c *Controller) OnConnectivityChange(online bool) {
	if !online {
		c.setOnline(false)
		return
	}
	c.wakeFlusher()
	if c.isAuthenticated() {
		go c.refreshSilent()
	}
}

// OnVisibilityChange refreshes when the app returns to the foreground.
func (c *Controller) OnVisibilityChange(visible bool) {
	if visible && c.isAuthenticated() {
		go c.refreshSilent()
	}
}

func (c *Controller) setOnline(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	c.mu.Unlock()
	if changed && !online {
		c.notify(LevelInfo, "offline, showing cached orders")
	}
}

func (c *Controller) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// wakeFlusher nudges the flush loop without blocking. The buffer of one
// coalesces bursts.
func (c *Controller) wakeFlusher() {
	select {
	case c.flushWake <- struct{}{}:
	default:
	}
}
