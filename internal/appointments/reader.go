package appointments

import (
	"context"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// Reader answers one-shot queries over the shared cache, going to the store through a short-lived
// Loader when the salon's list is missing or stale.
type Reader struct {
	cache *DataCache
	store Store
	users UserLookup
	logg  *logger.Logger
	cfg   LoaderConfig
}

// NewReader builds a Reader. cfg.OnChange is ignored.
func NewReader(cache *DataCache, store Store, users UserLookup, logg *logger.Logger, cfg LoaderConfig) *Reader {
	cfg.OnChange = nil
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reader{cache: cache, store: store, users: users, logg: logg, cfg: cfg}
}

// Query returns the filtered view for salonID.
func (r *Reader) Query(ctx context.Context, salonID string, filters Filters) (State, error) {
	filters = filters.normalized()
	if r.cache.IsAppointmentsCacheFresh(salonID) && r.cache.IsUsersCacheValid() {
		if list, ok := r.cache.AllAppointments(salonID); ok {
			now := r.cfg.Now()
			view := View(list, filters, now)
			if customers, complete := r.customersFromCache(view); complete {
				services, _ := r.cache.Services(salonID)
				return State{
					SalonID:      salonID,
					Filters:      filters,
					Appointments: view,
					Services:     services,
					Customers:    customers,
					UpdatedAt:    now,
				}, nil
			}
		}
	}
	return r.load(ctx, salonID, filters)
}

// Refresh drops the salon's cached data and reloads it.
func (r *Reader) Refresh(ctx context.Context, salonID string, filters Filters) (State, error) {
	r.cache.ClearSalon(salonID)
	return r.load(ctx, salonID, filters)
}

func (r *Reader) load(ctx context.Context, salonID string, filters Filters) (State, error) {
	loader, err := NewLoader(r.cache, r.store, r.users, r.logg, r.cfg)
	if err != nil {
		return State{}, err
	}
	defer loader.Close()
	return loader.Query(ctx, salonID, filters)
}

func (r *Reader) customersFromCache(view []models.Appointment) (map[string]CachedUser, bool) {
	out := make(map[string]CachedUser, len(view))
	for _, appt := range view {
		if appt.CustomerID == "" {
			continue
		}
		u, ok := r.cache.User(appt.CustomerID)
		if !ok {
			return nil, false
		}
		out[appt.CustomerID] = u
	}
	return out, true
}
