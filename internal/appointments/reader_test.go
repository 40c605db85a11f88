package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
)

func TestReaderServesFreshCacheWithoutStore(t *testing.T) {
	store := newFakeStore()
	store.lists["salon-1"] = []models.Appointment{
		todayAppt("a", "salon-1", "u1", enums.AppointmentPending),
		todayAppt("b", "salon-1", "u2", enums.AppointmentCompleted),
	}
	cache := NewDataCache(time.Minute)
	r := NewReader(cache, store, &fakeUsers{}, testLogger(), LoaderConfig{})

	state, err := r.Query(context.Background(), "salon-1", DefaultFilters())
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	if len(state.Appointments) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(state.Appointments))
	}

	state, err = r.Query(context.Background(), "salon-1", Filters{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if len(state.Appointments) != 1 || state.Appointments[0].ID != "b" {
		t.Fatalf("unexpected view %v", ids(state.Appointments))
	}
	if n := store.callCount("salon-1"); n != 1 {
		t.Fatalf("expected cached answer, got %d store calls", n)
	}

	if _, err := r.Refresh(context.Background(), "salon-1", DefaultFilters()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n := store.callCount("salon-1"); n != 2 {
		t.Fatalf("expected refresh to hit the store, got %d calls", n)
	}
}
