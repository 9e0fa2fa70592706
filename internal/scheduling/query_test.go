package scheduling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBookings(t *testing.T, svc *Service) []Appointment {
	t.Helper()
	base := sampleAppointment()

	second := base
	second.PatientName = "Bruno Carvalho"
	second.Phone = "21911112222"
	second.Time = "15:00"

	otherDay := base
	otherDay.PatientName = "Carla Mota"
	otherDay.Phone = "21933334444"
	otherDay.Date = "2026-09-16"

	otherSector := base
	otherSector.PatientName = "Davi Nunes"
	otherSector.Phone = "21955556666"
	otherSector.Sector = "Barra"

	all := []Appointment{base, second, otherDay, otherSector}
	for _, a := range all {
		require.True(t, svc.Create(context.Background(), unitTenant(), a, CreateOptions{GuardSlot: true}).Success)
	}
	return all
}

func TestListScheduledBySectorAndDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedBookings(t, svc)
	ctx := context.Background()

	day, err := svc.ListScheduled(ctx, unitTenant(), "Campo Grande", "2026-09-15")
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, "14:30", day[0].Appointment.Time)
	assert.Equal(t, "15:00", day[1].Appointment.Time)

	sector, err := svc.ListScheduled(ctx, unitTenant(), "Campo Grande", "")
	require.NoError(t, err)
	assert.Len(t, sector, 3)
}

func TestListScheduledWholeTree(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedBookings(t, svc)

	all, err := svc.ListScheduled(context.Background(), unitTenant(), "", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	day, err := svc.ListScheduled(context.Background(), unitTenant(), "", "2026-09-15")
	require.NoError(t, err)
	assert.Len(t, day, 3)
}

func TestListByPhone(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedBookings(t, svc)

	mine, err := svc.ListByPhone(context.Background(), unitTenant(), "21998887766")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, b := range mine {
		assert.Equal(t, "Maria da Silva", b.Appointment.PatientName)
	}
}

func TestListCancelled(t *testing.T) {
	svc, _, _ := newTestService(t)
	all := seedBookings(t, svc)
	ctx := context.Background()

	victim := all[0]
	require.True(t, svc.Cancel(ctx, unitTenant(), CancelParams{
		Phone:  victim.Phone,
		Slot:   victim.Slot(),
		Record: victim,
	}).Success)

	cancelled, err := svc.ListCancelled(ctx, unitTenant())
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, victim.Slot().ID(), cancelled[0].Record.ID)

	remaining, err := svc.ListScheduled(ctx, unitTenant(), "", "")
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestGetScheduled(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := sampleAppointment()
	ctx := context.Background()

	got, err := svc.GetScheduled(ctx, unitTenant(), a.Slot())
	require.NoError(t, err)
	assert.Nil(t, got)

	require.True(t, svc.Create(ctx, unitTenant(), a, CreateOptions{GuardSlot: true}).Success)

	got, err = svc.GetScheduled(ctx, unitTenant(), a.Slot())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a, got.Appointment)
}
