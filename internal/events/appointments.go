package events

import (
	"time"

	"github.com/google/uuid"
)

// Appointment change event types pushed to connected dashboards.
const (
	TypeAppointmentBooked      = "appointment.booked.v1"
	TypeAppointmentCancelled   = "appointment.cancelled.v1"
	TypeAppointmentRestored    = "appointment.restored.v1"
	TypeAppointmentRescheduled = "appointment.rescheduled.v1"
)

// AppointmentChangeV1 describes one ledger mutation. Sector is the physical
// unit or the physician, depending on tenant mode.
type AppointmentChangeV1 struct {
	EventID     uuid.UUID `json:"event_id"`
	Type        string    `json:"type"`
	TenantID    string    `json:"tenant_id"`
	Sector      string    `json:"sector"`
	Date        string    `json:"date"` // yyyy-MM-dd
	Time        string    `json:"time"` // HH:mm
	Phone       string    `json:"phone"`
	PatientName string    `json:"patient_name,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewAppointmentChange stamps identity and time on a change event.
func NewAppointmentChange(eventType, tenantID, sector, date, timeOfDay, phone string) AppointmentChangeV1 {
	return AppointmentChangeV1{
		EventID:    uuid.New(),
		Type:       eventType,
		TenantID:   tenantID,
		Sector:     sector,
		Date:       date,
		Time:       timeOfDay,
		Phone:      phone,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers appointment change events to interested listeners.
// The live hub implements it; a nil publisher is a no-op at call sites.
type Publisher interface {
	PublishAppointmentChange(evt AppointmentChangeV1)
}
