package scheduling

import (
	"fmt"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

// Tree layout inherited from the legacy dashboard. Per tenant base:
//
//	/{base}/agendamentoWhatsApp/operacional/consultasAgendadas/{unidades|medicos}/{sector}/{date}/{time}
//	/{base}/agendamentoWhatsApp/operacional/consultasAgendadas/telefones/{phone}/{date}/{time}
//
// with the cancelled tree as a sibling under consultasCanceladas, and the
// read-only configuration subtrees under agendamentoWhatsApp/configuracoes.
const (
	operationalRoot = "agendamentoWhatsApp/operacional"
	configRoot      = "agendamentoWhatsApp/configuracoes"
	scheduledTree   = "consultasAgendadas"
	cancelledTree   = "consultasCanceladas"
	phoneIndexNode  = "telefones"
)

// Slot is the unique booking key: sector (physical unit or physician,
// depending on tenant mode) plus date (yyyy-MM-dd) and time (HH:mm).
type Slot struct {
	Sector string
	Date   string
	Time   string
}

// ID renders the calendar-compatible identifier <sector>-<date>-<time>.
func (s Slot) ID() string {
	return fmt.Sprintf("%s-%s-%s", s.Sector, s.Date, s.Time)
}

func scheduledBase(t tenancy.Tenant) string {
	return "/" + t.Base + "/" + operationalRoot + "/" + scheduledTree
}

func cancelledBase(t tenancy.Tenant) string {
	return "/" + t.Base + "/" + operationalRoot + "/" + cancelledTree
}

// ScheduledSectorPath is the unit-index (or doctor-index) path of a slot.
func ScheduledSectorPath(t tenancy.Tenant, slot Slot) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", scheduledBase(t), t.Mode.IndexNode(), slot.Sector, slot.Date, slot.Time)
}

// ScheduledPhonePath is the phone-index path of a slot.
func ScheduledPhonePath(t tenancy.Tenant, phone string, slot Slot) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", scheduledBase(t), phoneIndexNode, phone, slot.Date, slot.Time)
}

// CancelledSectorPath mirrors ScheduledSectorPath under the cancelled tree.
func CancelledSectorPath(t tenancy.Tenant, slot Slot) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", cancelledBase(t), t.Mode.IndexNode(), slot.Sector, slot.Date, slot.Time)
}

// CancelledPhonePath mirrors ScheduledPhonePath under the cancelled tree.
func CancelledPhonePath(t tenancy.Tenant, phone string, slot Slot) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", cancelledBase(t), phoneIndexNode, phone, slot.Date, slot.Time)
}

// ScheduledSectorPrefix lists a whole sector (optionally narrowed to a date).
func ScheduledSectorPrefix(t tenancy.Tenant, sector, date string) string {
	prefix := fmt.Sprintf("%s/%s/%s/", scheduledBase(t), t.Mode.IndexNode(), sector)
	if date != "" {
		prefix += date + "/"
	}
	return prefix
}

// ScheduledIndexPrefix lists every sector of the scheduled tree.
func ScheduledIndexPrefix(t tenancy.Tenant) string {
	return fmt.Sprintf("%s/%s/", scheduledBase(t), t.Mode.IndexNode())
}

// ScheduledPhonePrefix lists every booking of one patient phone.
func ScheduledPhonePrefix(t tenancy.Tenant, phone string) string {
	return fmt.Sprintf("%s/%s/%s/", scheduledBase(t), phoneIndexNode, phone)
}

// CancelledIndexPrefix lists every sector of the cancelled tree.
func CancelledIndexPrefix(t tenancy.Tenant) string {
	return fmt.Sprintf("%s/%s/", cancelledBase(t), t.Mode.IndexNode())
}

// ConfigPath addresses one read-only configuration subtree (unidades,
// medicos, convenios, exames, feriados).
func ConfigPath(t tenancy.Tenant, node string) string {
	return fmt.Sprintf("/%s/%s/%s", t.Base, configRoot, node)
}
