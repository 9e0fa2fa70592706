package scheduling

import (
	"fmt"
	"time"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

const (
	isoDateLayout = "2006-01-02"
	brDateLayout  = "02/01/2006"
)

// Categorization is the optional LLM triage label attached at booking time.
type Categorization struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Appointment is the application-level appointment shape. Dates are ISO
// (yyyy-MM-dd) in memory; the codec converts to the legacy wire format.
type Appointment struct {
	PatientName    string
	BirthDate      string // yyyy-MM-dd
	Date           string // yyyy-MM-dd
	Time           string // HH:mm
	Insurance      string
	Exams          []string
	Motivation     string
	Sector         string // physical unit or physician, per tenant mode
	Phone          string // digits only
	Notes          string
	Categorization *Categorization
}

// Slot returns the booking key of the appointment.
func (a Appointment) Slot() Slot {
	return Slot{Sector: a.Sector, Date: a.Date, Time: a.Time}
}

// CancelledRecord is an appointment enriched with cancellation metadata.
type CancelledRecord struct {
	Appointment
	ID              string
	CancelReason    string
	NotifySecretary bool
}

// EncodeScheduled maps an appointment to the stored node shape. Every
// optional field is written as an explicit empty string or null; the store
// rejects undefined leaf values, so keys are never omitted. In doctor mode
// the sector is stored under medico and unidade carries the tenant display
// name, preserving the historical record shape.
func EncodeScheduled(t tenancy.Tenant, a Appointment) map[string]any {
	node := map[string]any{
		"nomePaciente":    a.PatientName,
		"nascimento":      isoToBR(a.BirthDate),
		"dataAgendamento": isoToBR(a.Date),
		"horaAgendamento": a.Time,
		"convenio":        a.Insurance,
		"exames":          stringsToAny(a.Exams),
		"motivacao":       a.Motivation,
		"telefone":        a.Phone,
		"obs":             []any{a.Notes},
	}
	if t.Mode == tenancy.ModeDoctor {
		node["medico"] = a.Sector
		unit := t.DisplayName
		if unit == "" {
			unit = a.Sector
		}
		node["unidade"] = unit
	} else {
		node["unidade"] = a.Sector
	}
	if a.Categorization != nil {
		node["aiCategorization"] = map[string]any{
			"category": a.Categorization.Category,
			"reason":   a.Categorization.Reason,
		}
	} else {
		node["aiCategorization"] = nil
	}
	return node
}

// EncodeCancelled maps a cancelled record to the stored node shape: the
// scheduled shape plus id, cancellation reason and the secretary flag, with
// the same explicit defaults for missing optionals.
func EncodeCancelled(t tenancy.Tenant, rec CancelledRecord) map[string]any {
	node := EncodeScheduled(t, rec.Appointment)
	node["id"] = rec.ID
	reason := rec.CancelReason
	if reason == "" {
		reason = ReasonCancelled
	}
	node["motivoCancelamento"] = reason
	node["enviarMsgSecretaria"] = rec.NotifySecretary
	return node
}

// DecodeScheduled reads a stored node back into an appointment. It is
// tolerant of the two date formats found in historical data.
func DecodeScheduled(node map[string]any) (Appointment, error) {
	if node == nil {
		return Appointment{}, fmt.Errorf("scheduling: decode nil node")
	}
	a := Appointment{
		PatientName: str(node, "nomePaciente"),
		BirthDate:   flexibleToISO(str(node, "nascimento")),
		Date:        flexibleToISO(str(node, "dataAgendamento")),
		Time:        str(node, "horaAgendamento"),
		Insurance:   str(node, "convenio"),
		Motivation:  str(node, "motivacao"),
		Phone:       str(node, "telefone"),
	}

	// Doctor-mode records carry the sector under medico.
	if medico := str(node, "medico"); medico != "" {
		a.Sector = medico
	} else {
		a.Sector = str(node, "unidade")
	}

	if raw, ok := node["exames"].([]any); ok {
		for _, e := range raw {
			if s, ok := e.(string); ok {
				a.Exams = append(a.Exams, s)
			}
		}
	}
	if raw, ok := node["obs"].([]any); ok && len(raw) > 0 {
		if s, ok := raw[0].(string); ok {
			a.Notes = s
		}
	}
	if raw, ok := node["aiCategorization"].(map[string]any); ok {
		cat := Categorization{Category: str(raw, "category"), Reason: str(raw, "reason")}
		if cat.Category != "" {
			a.Categorization = &cat
		}
	}
	return a, nil
}

// DecodeCancelled reads a cancelled-tree node.
func DecodeCancelled(node map[string]any) (CancelledRecord, error) {
	a, err := DecodeScheduled(node)
	if err != nil {
		return CancelledRecord{}, err
	}
	rec := CancelledRecord{
		Appointment:  a,
		ID:           str(node, "id"),
		CancelReason: str(node, "motivoCancelamento"),
	}
	if flag, ok := node["enviarMsgSecretaria"].(bool); ok {
		rec.NotifySecretary = flag
	}
	return rec, nil
}

func str(node map[string]any, key string) string {
	if v, ok := node[key].(string); ok {
		return v
	}
	return ""
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func isoToBR(iso string) string {
	t, err := time.Parse(isoDateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format(brDateLayout)
}

func flexibleToISO(s string) string {
	if t, err := time.Parse(brDateLayout, s); err == nil {
		return t.Format(isoDateLayout)
	}
	if _, err := time.Parse(isoDateLayout, s); err == nil {
		return s
	}
	return s
}
