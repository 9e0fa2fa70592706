package scheduling

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	timePattern  = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	phonePattern = regexp.MustCompile(`^\d{10,15}$`)
)

// FieldError points a validation failure at a specific form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates every failed check of one submission.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "invalid appointment: " + strings.Join(parts, ", ")
}

// ValidateAppointment runs every pre-write check. It returns nil when the
// appointment is storable; no network call happens before this passes.
func ValidateAppointment(a Appointment, now time.Time) ValidationErrors {
	var errs ValidationErrors
	add := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if len(strings.TrimSpace(a.PatientName)) < 3 {
		add("patientName", "patient name must have at least 3 characters")
	}

	birth, birthErr := time.Parse(isoDateLayout, a.BirthDate)
	if birthErr != nil {
		add("birthDate", "birth date must be a valid yyyy-MM-dd date")
	} else {
		today := now.Truncate(24 * time.Hour)
		if birth.After(today) {
			add("birthDate", "birth date cannot be in the future")
		}
		if birth.Year() < 1900 {
			add("birthDate", "birth date year must be 1900 or later")
		}
	}

	date, dateErr := time.Parse(isoDateLayout, a.Date)
	if dateErr != nil {
		add("date", "scheduled date must be a valid yyyy-MM-dd date")
	} else if birthErr == nil && date.Before(birth) {
		add("date", "scheduled date cannot be before the birth date")
	}

	if !timePattern.MatchString(a.Time) {
		add("time", "time must match HH:mm")
	}
	if strings.TrimSpace(a.Insurance) == "" {
		add("insurance", "insurance is required")
	}
	if len(a.Exams) == 0 {
		add("exams", "select at least one exam")
	}
	if strings.TrimSpace(a.Motivation) == "" {
		add("motivation", "motivation is required")
	}
	if strings.TrimSpace(a.Sector) == "" {
		add("sector", "unit or physician is required")
	}
	if !phonePattern.MatchString(a.Phone) {
		add("phone", "phone must contain only digits (10 to 15)")
	}

	return errs
}
