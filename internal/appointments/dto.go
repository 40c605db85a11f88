package appointments

import (
	"time"

	"github.com/bookinga/bookinga-backend/pkg/db/models"
)

// FiltersDTO echoes the descriptor a view was built for.
type FiltersDTO struct {
	Date        DateFilter   `json:"date"`
	Status      StatusFilter `json:"status"`
	ShowDeleted bool         `json:"showDeleted"`
	From        string       `json:"from,omitempty"`
	To          string       `json:"to,omitempty"`
}

// AppointmentDTO is an appointment with its customer resolved.
type AppointmentDTO struct {
	models.Appointment
	Customer *CachedUser `json:"customer,omitempty"`
}

// ViewDTO is the body returned for a dashboard query and pushed to live sessions.
type ViewDTO struct {
	SalonID      string                `json:"salonId"`
	Filters      FiltersDTO            `json:"filters"`
	Appointments []AppointmentDTO      `json:"appointments"`
	Services     []models.SalonService `json:"services"`
	Loading      bool                  `json:"loading"`
	Error        string                `json:"error,omitempty"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// NewViewDTO renders a committed state.
func NewViewDTO(state State) ViewDTO {
	f := state.Filters.normalized()
	dto := ViewDTO{
		SalonID: state.SalonID,
		Filters: FiltersDTO{
			Date:        f.Date,
			Status:      f.Status,
			ShowDeleted: f.ShowDeleted,
		},
		Appointments: make([]AppointmentDTO, 0, len(state.Appointments)),
		Services:     state.Services,
		Loading:      state.Loading,
		UpdatedAt:    state.UpdatedAt,
	}
	if f.CustomRange != nil {
		if !f.CustomRange.From.IsZero() {
			dto.Filters.From = f.CustomRange.From.Format(dateLayout)
		}
		if !f.CustomRange.To.IsZero() {
			dto.Filters.To = f.CustomRange.To.Format(dateLayout)
		}
	}
	if dto.Services == nil {
		dto.Services = []models.SalonService{}
	}
	if state.Err != nil {
		dto.Error = state.Err.Error()
	}
	for _, appt := range state.Appointments {
		item := AppointmentDTO{Appointment: appt}
		if u, ok := state.Customers[appt.CustomerID]; ok {
			u := u
			item.Customer = &u
		}
		dto.Appointments = append(dto.Appointments, item)
	}
	return dto
}
