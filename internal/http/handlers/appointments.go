package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agendadigital/agenda-platform/internal/catalog"
	"github.com/agendadigital/agenda-platform/internal/insights"
	"github.com/agendadigital/agenda-platform/internal/notify"
	"github.com/agendadigital/agenda-platform/internal/scheduling"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// AppointmentsHandler exposes the appointment ledger over HTTP.
type AppointmentsHandler struct {
	sched       *scheduling.Service
	catalog     *catalog.Service
	notifier    *notify.Service
	categorizer *insights.Categorizer
	logger      *logging.Logger
}

func NewAppointmentsHandler(sched *scheduling.Service, cat *catalog.Service, notifier *notify.Service, categorizer *insights.Categorizer, logger *logging.Logger) *AppointmentsHandler {
	if sched == nil {
		panic("handlers: scheduling service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{
		sched:       sched,
		catalog:     cat,
		notifier:    notifier,
		categorizer: categorizer,
		logger:      logger,
	}
}

func tenantFrom(w http.ResponseWriter, r *http.Request) (tenancy.Tenant, bool) {
	t, ok := tenancy.TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "tenant not resolved")
	}
	return t, ok
}

// appointmentRequest is the booking form payload.
type appointmentRequest struct {
	PatientName string   `json:"patientName"`
	BirthDate   string   `json:"birthDate"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Insurance   string   `json:"insurance"`
	Exams       []string `json:"exams"`
	Motivation  string   `json:"motivation"`
	Sector      string   `json:"sector"`
	Phone       string   `json:"phone"`
	Notes       string   `json:"notes"`
}

func (req appointmentRequest) toAppointment() scheduling.Appointment {
	return scheduling.Appointment{
		PatientName: req.PatientName,
		BirthDate:   req.BirthDate,
		Date:        req.Date,
		Time:        req.Time,
		Insurance:   req.Insurance,
		Exams:       req.Exams,
		Motivation:  req.Motivation,
		Sector:      req.Sector,
		Phone:       req.Phone,
		Notes:       req.Notes,
	}
}

// Create books a new appointment. Holidays block the date before any write;
// the observation label is best effort and never fails the booking.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if blocked, ok := h.holidayBlock(w, r, t, req.Date); blocked || !ok {
		return
	}

	a := req.toAppointment()
	if h.categorizer != nil && req.Notes != "" {
		cat, err := h.categorizer.Categorize(r.Context(), req.Notes)
		if err != nil {
			h.logger.Warn("observation categorization failed", "tenant", t.ID, "error", err)
		} else {
			a.Categorization = cat
		}
	}

	res := h.sched.Create(r.Context(), t, a, scheduling.CreateOptions{GuardSlot: true})
	if res.Success {
		writeJSON(w, http.StatusCreated, res)
		return
	}
	writeResult(w, res)
}

// holidayBlock rejects bookings on blocked days. The first return reports a
// block, the second whether processing may continue.
func (h *AppointmentsHandler) holidayBlock(w http.ResponseWriter, r *http.Request, t tenancy.Tenant, date string) (bool, bool) {
	if h.catalog == nil || date == "" {
		return false, true
	}
	name, blocked, err := h.catalog.IsHoliday(r.Context(), t, date)
	if err != nil {
		h.logger.Error("holiday check failed", "tenant", t.ID, "date", date, "error", err)
		writeError(w, http.StatusBadGateway, "could not verify the requested date")
		return false, false
	}
	if blocked {
		writeError(w, http.StatusUnprocessableEntity, "the clinic is closed on this date: "+name)
		return true, true
	}
	return false, true
}

// List returns scheduled bookings, optionally narrowed by sector and date.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	bookings, err := h.sched.ListScheduled(r.Context(), t, r.URL.Query().Get("sector"), r.URL.Query().Get("date"))
	if err != nil {
		h.logger.Error("list scheduled failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not list appointments")
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ListByPhone returns one patient's scheduled bookings.
func (h *AppointmentsHandler) ListByPhone(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	phone := chi.URLParam(r, "phone")
	bookings, err := h.sched.ListByPhone(r.Context(), t, phone)
	if err != nil {
		h.logger.Error("list by phone failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not list appointments")
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ListCancelled returns the cancelled tree.
func (h *AppointmentsHandler) ListCancelled(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	records, err := h.sched.ListCancelled(r.Context(), t)
	if err != nil {
		h.logger.Error("list cancelled failed", "tenant", t.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not list cancelled appointments")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Availability pre-checks one slot.
func (h *AppointmentsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	slot := scheduling.Slot{
		Sector: r.URL.Query().Get("sector"),
		Date:   r.URL.Query().Get("date"),
		Time:   r.URL.Query().Get("time"),
	}
	if slot.Sector == "" || slot.Date == "" || slot.Time == "" {
		writeError(w, http.StatusBadRequest, "sector, date and time are required")
		return
	}
	writeJSON(w, http.StatusOK, h.sched.CheckAvailability(r.Context(), t, slot))
}

type cancelRequest struct {
	Phone           string `json:"phone"`
	Sector          string `json:"sector"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Reason          string `json:"reason"`
	NotifySecretary bool   `json:"notifySecretary"`
}

// Cancel moves a booking into the cancelled tree.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	slot := scheduling.Slot{Sector: req.Sector, Date: req.Date, Time: req.Time}

	booking, err := h.sched.GetScheduled(r.Context(), t, slot)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load the appointment")
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}

	res := h.sched.Cancel(r.Context(), t, scheduling.CancelParams{
		Phone:           req.Phone,
		Slot:            slot,
		Record:          booking.Appointment,
		Reason:          req.Reason,
		NotifySecretary: req.NotifySecretary,
	})
	if res.Success && h.notifier != nil {
		rec := scheduling.CancelledRecord{
			Appointment:     booking.Appointment,
			ID:              slot.ID(),
			CancelReason:    req.Reason,
			NotifySecretary: req.NotifySecretary,
		}
		if err := h.notifier.NotifyCancellation(r.Context(), t, rec); err != nil {
			h.logger.Error("secretary notification failed", "tenant", t.ID, "error", err)
		}
	}
	writeResult(w, res)
}

type restoreRequest struct {
	Sector string `json:"sector"`
	Date   string `json:"date"`
	Time   string `json:"time"`
}

// Restore brings a cancelled booking back to the scheduled tree.
func (h *AppointmentsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	slot := scheduling.Slot{Sector: req.Sector, Date: req.Date, Time: req.Time}

	rec, err := h.sched.GetCancelled(r.Context(), t, slot)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load the cancelled appointment")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "cancelled appointment not found")
		return
	}

	res := h.sched.Restore(r.Context(), t, *rec)
	if res.Success && h.notifier != nil {
		if err := h.notifier.NotifyRestore(r.Context(), t, *rec); err != nil {
			h.logger.Error("secretary notification failed", "tenant", t.ID, "error", err)
		}
	}
	writeResult(w, res)
}

type rescheduleRequest struct {
	Phone           string             `json:"phone"`
	Source          restoreRequest     `json:"source"`
	Updated         appointmentRequest `json:"updated"`
	NotifySecretary bool               `json:"notifySecretary"`
}

// Reschedule moves a booking to a new slot.
func (h *AppointmentsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	t, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source := scheduling.Slot{Sector: req.Source.Sector, Date: req.Source.Date, Time: req.Source.Time}

	if blocked, ok := h.holidayBlock(w, r, t, req.Updated.Date); blocked || !ok {
		return
	}

	current, err := h.sched.GetScheduled(r.Context(), t, source)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load the appointment")
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}

	res := h.sched.Reschedule(r.Context(), t, scheduling.RescheduleParams{
		Source:          source,
		SourcePhone:     req.Phone,
		Current:         current.Appointment,
		Updated:         req.Updated.toAppointment(),
		NotifySecretary: req.NotifySecretary,
	})
	writeResult(w, res)
}
