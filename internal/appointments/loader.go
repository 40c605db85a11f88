package appointments

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

const (
	DefaultDebounce    = 100 * time.Millisecond
	DefaultLookupChunk = 10
)

// Store is the read side a Loader fetches from.
type Store interface {
	ListBySalon(ctx context.Context, salonID string) ([]models.Appointment, error)
	ListServices(ctx context.Context, salonID string) ([]models.SalonService, error)
}

// UserLookup resolves a batch of user ids in one query.
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// State is what a Loader last committed.
type State struct {
	SalonID      string
	Filters      Filters
	Appointments []models.Appointment
	Services     []models.SalonService
	Customers    map[string]CachedUser
	Loading      bool
	Err          error
	UpdatedAt    time.Time
}

// LoaderConfig tunes a Loader. Zero values use the defaults.
type LoaderConfig struct {
	Debounce    time.Duration
	LookupChunk int
	Now         func() time.Time
	// OnChange receives every committed state in commit order. It must not call back into the
	// Loader synchronously.
	OnChange func(State)
}

type requestKey struct {
	gen     uint64
	salonID string
	filters Filters
}

// Loader serves one dashboard's (salon, filters) requests with stale-while-revalidate. Every fetch
// carries a generation; only the newest generation may commit, so state follows issuance order.
type Loader struct {
	cache    *DataCache
	store    Store
	users    UserLookup
	logg     *logger.Logger
	debounce time.Duration
	chunk    int
	now      func() time.Time
	onChange func(State)

	mu        sync.Mutex
	gen       uint64
	salonID   string
	filters   Filters
	completed bool
	cancel    context.CancelFunc
	done      chan struct{}
	timer     *time.Timer
	state     State
	version   uint64
	closed    bool
	wg        sync.WaitGroup

	notifyMu sync.Mutex
	notified uint64
}

// NewLoader wires a Loader to a shared cache.
func NewLoader(cache *DataCache, store Store, users UserLookup, logg *logger.Logger, cfg LoaderConfig) (*Loader, error) {
	if cache == nil {
		return nil, errors.New("data cache required")
	}
	if store == nil {
		return nil, errors.New("appointment store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.LookupChunk <= 0 {
		cfg.LookupChunk = DefaultLookupChunk
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loader{
		cache:    cache,
		store:    store,
		users:    users,
		logg:     logg,
		debounce: cfg.Debounce,
		chunk:    cfg.LookupChunk,
		now:      cfg.Now,
		onChange: cfg.OnChange,
	}, nil
}

// Load answers a (salon, filters) request. A filter-only change is served from the cache right
// away and revalidated in the background when the cached list is no longer fresh. Anything else
// commits a loading state and starts a fetch.
func (l *Loader) Load(ctx context.Context, salonID string, filters Filters) State {
	return l.load(ctx, salonID, filters, false)
}

// Refresh drops the current salon's cache entry and refetches it.
func (l *Loader) Refresh(ctx context.Context) State {
	l.mu.Lock()
	salonID, filters := l.salonID, l.filters
	l.mu.Unlock()
	if salonID == "" {
		return l.State()
	}
	l.cache.ClearSalon(salonID)
	return l.load(ctx, salonID, filters, true)
}

// Revalidate schedules a debounced background refetch of the current request.
func (l *Loader) Revalidate(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.salonID == "" {
		return
	}
	l.scheduleRevalidationLocked(ctx, l.gen)
}

// State returns the last committed state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Wait blocks until the in-flight fetch finishes or ctx ends, then returns the committed state.
func (l *Loader) Wait(ctx context.Context) State {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return l.State()
}

// Query is Load followed by Wait when the request had to go to the store.
func (l *Loader) Query(ctx context.Context, salonID string, filters Filters) (State, error) {
	state := l.Load(ctx, salonID, filters)
	if state.Loading {
		state = l.Wait(ctx)
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}
	return state, state.Err
}

// Close cancels outstanding work. Later calls are no-ops.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.supersedeLocked()
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Loader) load(ctx context.Context, salonID string, filters Filters, force bool) State {
	filters = filters.normalized()

	l.mu.Lock()
	if l.closed {
		state := l.state
		l.mu.Unlock()
		return state
	}
	l.supersedeLocked()
	key := l.nextKeyLocked(salonID, filters)

	cached, hasCached := l.cache.AllAppointments(salonID)
	filterOnly := !force && l.salonID == salonID && l.completed && hasCached
	l.salonID, l.filters = salonID, filters

	now := l.now()
	if filterOnly {
		view := View(cached, filters, now)
		services, _ := l.cache.Services(salonID)
		state := State{
			SalonID:      salonID,
			Filters:      filters,
			Appointments: view,
			Services:     services,
			Customers:    l.cachedCustomers(view),
			UpdatedAt:    now,
		}
		version := l.commitLocked(state)
		switch {
		case !l.cache.IsAppointmentsCacheFresh(salonID):
			l.scheduleRevalidationLocked(ctx, key.gen)
		case l.needsCustomers(view):
			l.startLocked(ctx, func(c context.Context) { l.fillCustomers(c, key, state) })
		}
		l.mu.Unlock()
		l.notify(version, state)
		return state
	}

	l.completed = false
	state := State{SalonID: salonID, Filters: filters, Loading: true, UpdatedAt: now}
	if l.state.SalonID == salonID {
		state.Appointments = l.state.Appointments
		state.Services = l.state.Services
		state.Customers = l.state.Customers
	}
	version := l.commitLocked(state)
	l.startFetchLocked(ctx, key)
	l.mu.Unlock()
	l.notify(version, state)
	return state
}

func (l *Loader) supersedeLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Loader) nextKeyLocked(salonID string, filters Filters) requestKey {
	l.gen++
	return requestKey{gen: l.gen, salonID: salonID, filters: filters}
}

func (l *Loader) startFetchLocked(ctx context.Context, key requestKey) {
	l.startLocked(ctx, func(c context.Context) { l.fetch(c, key) })
}

// startLocked runs work as the Loader's single in-flight task; the next request cancels it.
func (l *Loader) startLocked(ctx context.Context, work func(context.Context)) {
	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(done)
		defer cancel()
		work(taskCtx)
	}()
}

// fillCustomers resolves the customers a cache-served view is missing and recommits it.
func (l *Loader) fillCustomers(ctx context.Context, key requestKey, state State) {
	customers, err := l.resolveCustomers(ctx, state.Appointments)
	if err != nil {
		if ctx.Err() == nil {
			l.logg.Warn(l.logg.WithFields(ctx, map[string]any{"salon_id": key.salonID, "error": err.Error()}), "customer lookup failed")
		}
		return
	}
	state.Customers = customers
	state.UpdatedAt = l.now()
	l.commitIfCurrent(ctx, key, state)
}

func (l *Loader) scheduleRevalidationLocked(ctx context.Context, gen uint64) {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, func() { l.revalidate(ctx, gen) })
}

func (l *Loader) revalidate(ctx context.Context, scheduledGen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.gen != scheduledGen || ctx.Err() != nil {
		return
	}
	l.timer = nil
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	key := l.nextKeyLocked(l.salonID, l.filters)
	l.startFetchLocked(ctx, key)
}

func (l *Loader) fetch(ctx context.Context, key requestKey) {
	list, err := l.store.ListBySalon(ctx, key.salonID)
	if err != nil {
		l.fail(ctx, key, err)
		return
	}
	services, err := l.store.ListServices(ctx, key.salonID)
	if err != nil {
		l.fail(ctx, key, err)
		return
	}
	if !l.isCurrent(ctx, key) {
		return
	}

	l.cache.SetAllAppointments(key.salonID, list)
	l.cache.SetServices(key.salonID, services)

	now := l.now()
	view := View(list, key.filters, now)
	customers, err := l.resolveCustomers(ctx, view)
	if err != nil {
		l.fail(ctx, key, err)
		return
	}

	l.commitIfCurrent(ctx, key, State{
		SalonID:      key.salonID,
		Filters:      key.filters,
		Appointments: view,
		Services:     services,
		Customers:    customers,
		UpdatedAt:    now,
	})
}

func (l *Loader) fail(ctx context.Context, key requestKey, err error) {
	if ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	if l.closed || key.gen != l.gen {
		l.mu.Unlock()
		return
	}
	state := l.state
	state.SalonID = key.salonID
	state.Filters = key.filters
	state.Loading = false
	state.Err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading appointments")
	state.UpdatedAt = l.now()
	version := l.commitLocked(state)
	l.mu.Unlock()

	logCtx := l.logg.WithFields(ctx, map[string]any{"salon_id": key.salonID, "error": err.Error()})
	l.logg.Warn(logCtx, "appointment fetch failed")
	l.notify(version, state)
}

func (l *Loader) isCurrent(ctx context.Context, key requestKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && key.gen == l.gen && ctx.Err() == nil
}

func (l *Loader) commitIfCurrent(ctx context.Context, key requestKey, state State) bool {
	l.mu.Lock()
	if l.closed || key.gen != l.gen || ctx.Err() != nil {
		l.mu.Unlock()
		return false
	}
	l.completed = true
	version := l.commitLocked(state)
	l.mu.Unlock()
	l.notify(version, state)
	return true
}

func (l *Loader) commitLocked(state State) uint64 {
	l.state = state
	l.version++
	return l.version
}

// notify delivers committed states in commit order and drops any that were overtaken.
func (l *Loader) notify(version uint64, state State) {
	if l.onChange == nil {
		return
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	if version <= l.notified {
		return
	}
	l.notified = version
	l.onChange(state)
}

// resolveCustomers loads users referenced by view that are missing from the cache, or all of them
// once the users clock expired, in parallel chunks.
func (l *Loader) resolveCustomers(ctx context.Context, view []models.Appointment) (map[string]CachedUser, error) {
	ids := customerIDs(view)
	if l.users != nil && len(ids) > 0 {
		valid := l.cache.IsUsersCacheValid()
		missing := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := l.cache.User(id); !ok || !valid {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			users, err := l.lookupUsers(ctx, missing)
			if err != nil {
				return nil, err
			}
			l.cache.SetUsers(users)
		}
	}
	return l.cachedCustomers(view), nil
}

func (l *Loader) lookupUsers(ctx context.Context, ids []string) ([]CachedUser, error) {
	chunks := chunkIDs(ids, l.chunk)
	found := make([][]models.User, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			users, err := l.users.FindByIDs(gctx, chunk)
			if err != nil {
				return err
			}
			found[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make([]CachedUser, 0, len(ids))
	for _, batch := range found {
		for _, u := range batch {
			merged = append(merged, CachedUserFromModel(u))
		}
	}
	return merged, nil
}

// needsCustomers reports whether view references a customer the cache cannot serve.
func (l *Loader) needsCustomers(view []models.Appointment) bool {
	if l.users == nil {
		return false
	}
	valid := l.cache.IsUsersCacheValid()
	for _, id := range customerIDs(view) {
		if _, ok := l.cache.User(id); !ok || !valid {
			return true
		}
	}
	return false
}

func (l *Loader) cachedCustomers(view []models.Appointment) map[string]CachedUser {
	out := make(map[string]CachedUser, len(view))
	for _, appt := range view {
		if u, ok := l.cache.User(appt.CustomerID); ok {
			out[appt.CustomerID] = u
		}
	}
	return out
}

func customerIDs(view []models.Appointment) []string {
	seen := make(map[string]struct{}, len(view))
	ids := make([]string, 0, len(view))
	for _, appt := range view {
		if appt.CustomerID == "" {
			continue
		}
		if _, ok := seen[appt.CustomerID]; ok {
			continue
		}
		seen[appt.CustomerID] = struct{}{}
		ids = append(ids, appt.CustomerID)
	}
	return ids
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultLookupChunk
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
