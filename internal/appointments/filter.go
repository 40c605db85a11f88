package appointments

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
	"github.com/bookinga/bookinga-backend/pkg/enums"
)

const dateLayout = "2006-01-02"

// DateFilter selects the calendar window an appointment must fall in.
type DateFilter string

const (
	DateAll    DateFilter = "all"
	DateToday  DateFilter = "today"
	DateWeek   DateFilter = "week"
	DateMonth  DateFilter = "month"
	DateCustom DateFilter = "custom"
)

// StatusFilter narrows the active view to one appointment status.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = StatusFilter(enums.AppointmentPending)
	StatusConfirmed StatusFilter = StatusFilter(enums.AppointmentConfirmed)
	StatusCompleted StatusFilter = StatusFilter(enums.AppointmentCompleted)
	StatusCancelled StatusFilter = StatusFilter(enums.AppointmentCancelled)
)

// DateRange is an inclusive calendar range. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Filters is the descriptor a dashboard sends with every query.
type Filters struct {
	Date        DateFilter
	Status      StatusFilter
	ShowDeleted bool
	CustomRange *DateRange
}

// DefaultFilters is the unfiltered active view.
func DefaultFilters() Filters {
	return Filters{Date: DateAll, Status: StatusAll}
}

// Key is a stable identity for the descriptor.
func (f Filters) Key() string {
	f = f.normalized()
	from, to := "", ""
	if f.CustomRange != nil {
		if !f.CustomRange.From.IsZero() {
			from = f.CustomRange.From.Format(dateLayout)
		}
		if !f.CustomRange.To.IsZero() {
			to = f.CustomRange.To.Format(dateLayout)
		}
	}
	return fmt.Sprintf("%s|%s|%t|%s|%s", f.Date, f.Status, f.ShowDeleted, from, to)
}

func (f Filters) normalized() Filters {
	if f.Date == "" {
		f.Date = DateAll
	}
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.Date != DateCustom {
		f.CustomRange = nil
	}
	return f
}

// ParseFilters builds a descriptor from raw query values. Custom bounds use YYYY-MM-DD and are
// interpreted in loc.
func ParseFilters(date, status, deleted, from, to string, loc *time.Location) (Filters, error) {
	if loc == nil {
		loc = time.Local
	}
	f := DefaultFilters()

	switch DateFilter(strings.ToLower(strings.TrimSpace(date))) {
	case "", DateAll:
	case DateToday:
		f.Date = DateToday
	case DateWeek:
		f.Date = DateWeek
	case DateMonth:
		f.Date = DateMonth
	case DateCustom:
		f.Date = DateCustom
	default:
		return Filters{}, fmt.Errorf("invalid date filter %q", date)
	}

	switch StatusFilter(strings.ToLower(strings.TrimSpace(status))) {
	case "", StatusAll:
	case StatusPending:
		f.Status = StatusPending
	case StatusConfirmed:
		f.Status = StatusConfirmed
	case StatusCompleted:
		f.Status = StatusCompleted
	case StatusCancelled:
		f.Status = StatusCancelled
	default:
		return Filters{}, fmt.Errorf("invalid status filter %q", status)
	}

	if strings.TrimSpace(deleted) != "" {
		show, err := strconv.ParseBool(strings.TrimSpace(deleted))
		if err != nil {
			return Filters{}, fmt.Errorf("invalid deleted flag %q", deleted)
		}
		f.ShowDeleted = show
	}

	if f.Date == DateCustom {
		var rng DateRange
		if v := strings.TrimSpace(from); v != "" {
			t, err := time.ParseInLocation(dateLayout, v, loc)
			if err != nil {
				return Filters{}, fmt.Errorf("invalid from date %q", from)
			}
			rng.From = t
		}
		if v := strings.TrimSpace(to); v != "" {
			t, err := time.ParseInLocation(dateLayout, v, loc)
			if err != nil {
				return Filters{}, fmt.Errorf("invalid to date %q", to)
			}
			rng.To = t
		}
		if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
			return Filters{}, fmt.Errorf("to date %s is before from date %s", to, from)
		}
		f.CustomRange = &rng
	}
	return f, nil
}

// ApplyFilters returns the appointments passing the soft-delete and date gates. The status gate is
// left to MatchesStatus. The input slice is not modified.
func ApplyFilters(list []models.Appointment, f Filters, now time.Time) []models.Appointment {
	f = f.normalized()
	start, end, bounded := window(f, now)

	out := make([]models.Appointment, 0, len(list))
	for _, appt := range list {
		if appt.Deleted != f.ShowDeleted {
			continue
		}
		if bounded && !inWindow(appt.Date, start, end, now.Location()) {
			continue
		}
		out = append(out, appt)
	}
	return out
}

// MatchesStatus reports whether appt passes the status gate.
func MatchesStatus(appt models.Appointment, status StatusFilter) bool {
	if status == "" || status == StatusAll {
		return true
	}
	return string(appt.Status) == string(status)
}

// View is what a dashboard renders: ApplyFilters plus the status gate on the active view only.
// The deleted view shows every status.
func View(list []models.Appointment, f Filters, now time.Time) []models.Appointment {
	filtered := ApplyFilters(list, f, now)
	if f.ShowDeleted {
		return filtered
	}
	out := filtered[:0]
	for _, appt := range filtered {
		if MatchesStatus(appt, f.Status) {
			out = append(out, appt)
		}
	}
	return out
}

// window returns the inclusive [start, end] day range at local midnight. bounded is false when no
// date gate applies.
func window(f Filters, now time.Time) (start, end time.Time, bounded bool) {
	today := midnight(now)
	switch f.Date {
	case DateToday:
		return today, today, true
	case DateWeek:
		start = today.AddDate(0, 0, -int(today.Weekday()))
		return start, start.AddDate(0, 0, 6), true
	case DateMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(0, 1, -1), true
	case DateCustom:
		if f.CustomRange == nil || (f.CustomRange.From.IsZero() && f.CustomRange.To.IsZero()) {
			return time.Time{}, time.Time{}, false
		}
		if !f.CustomRange.From.IsZero() {
			start = midnight(f.CustomRange.From.In(now.Location()))
		}
		if !f.CustomRange.To.IsZero() {
			end = midnight(f.CustomRange.To.In(now.Location()))
		}
		return start, end, true
	}
	return time.Time{}, time.Time{}, false
}

// inWindow parses raw as a bare date or an ISO datetime truncated to its date. Unparseable dates
// are kept.
func inWindow(raw string, start, end time.Time, loc *time.Location) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	day, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return true
	}
	if !start.IsZero() && day.Before(start) {
		return false
	}
	if !end.IsZero() && day.After(end) {
		return false
	}
	return true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
