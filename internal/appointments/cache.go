package appointments

import (
	"sync"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
)

// DefaultCacheTTL bounds how long fetched users and appointment lists count as fresh.
const DefaultCacheTTL = 5 * time.Minute

// CachedUser is the slice of a profile dashboards render next to an appointment.
type CachedUser struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// CachedUserFromModel projects a user row into its cached form.
func CachedUserFromModel(u models.User) CachedUser {
	return CachedUser{ID: u.ID, DisplayName: u.DisplayName, Phone: u.Phone, Email: u.Email}
}

type appointmentSet struct {
	list      []models.Appointment
	fetchedAt time.Time
}

// DataCache holds read-side snapshots shared by every Loader of a process. Stale entries are still
// served; staleness only decides whether a background refetch runs.
type DataCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	users          map[string]CachedUser
	usersFetchedAt time.Time
	appointments   map[string]appointmentSet
	services       map[string][]models.SalonService
}

// CacheOption customizes a DataCache.
type CacheOption func(*DataCache)

// WithCacheClock replaces the wall clock.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *DataCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewDataCache builds an empty cache. A non-positive ttl uses DefaultCacheTTL.
func NewDataCache(ttl time.Duration, opts ...CacheOption) *DataCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &DataCache{
		ttl:          ttl,
		now:          time.Now,
		users:        map[string]CachedUser{},
		appointments: map[string]appointmentSet{},
		services:     map[string][]models.SalonService{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUsers upserts users by id and restarts the shared users clock.
func (c *DataCache) SetUsers(users []CachedUser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		c.users[u.ID] = u
	}
	c.usersFetchedAt = c.now()
}

// User returns the cached user for id.
func (c *DataCache) User(id string) (CachedUser, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	return u, ok
}

// IsUsersCacheValid reports whether SetUsers ran within the ttl.
func (c *DataCache) IsUsersCacheValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.usersFetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.usersFetchedAt) < c.ttl
}

// SetAllAppointments replaces the unfiltered list for a salon.
func (c *DataCache) SetAllAppointments(salonID string, list []models.Appointment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appointments[salonID] = appointmentSet{
		list:      append([]models.Appointment(nil), list...),
		fetchedAt: c.now(),
	}
}

// AllAppointments returns a copy of the unfiltered list for a salon.
func (c *DataCache) AllAppointments(salonID string) ([]models.Appointment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.appointments[salonID]
	if !ok {
		return nil, false
	}
	return append([]models.Appointment(nil), set.list...), true
}

// IsAppointmentsCacheFresh reports whether the salon's list was fetched within the ttl.
func (c *DataCache) IsAppointmentsCacheFresh(salonID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.appointments[salonID]
	if !ok {
		return false
	}
	return c.now().Sub(set.fetchedAt) < c.ttl
}

// SetServices replaces the services snapshot for a salon.
func (c *DataCache) SetServices(salonID string, list []models.SalonService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[salonID] = append([]models.SalonService(nil), list...)
}

// Services returns a copy of the services snapshot for a salon.
func (c *DataCache) Services(salonID string) ([]models.SalonService, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.services[salonID]
	if !ok {
		return nil, false
	}
	return append([]models.SalonService(nil), list...), true
}

// Clear drops everything, including the users clock.
func (c *DataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = map[string]CachedUser{}
	c.usersFetchedAt = time.Time{}
	c.appointments = map[string]appointmentSet{}
	c.services = map[string][]models.SalonService{}
}

// ClearAppointments drops every salon's appointment list and keeps users and services.
func (c *DataCache) ClearAppointments() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appointments = map[string]appointmentSet{}
}

// ClearSalon drops one salon's appointments and services.
func (c *DataCache) ClearSalon(salonID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.appointments, salonID)
	delete(c.services, salonID)
}
