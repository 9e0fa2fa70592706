package scheduling

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/agendadigital/agenda-platform/internal/events"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

type recordingPublisher struct {
	events []appevents.AppointmentChangeV1
}

func (r *recordingPublisher) PublishAppointmentChange(evt appevents.AppointmentChangeV1) {
	r.events = append(r.events, evt)
}

func (r *recordingPublisher) last(t *testing.T) appevents.AppointmentChangeV1 {
	t.Helper()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis, *recordingPublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := &recordingPublisher{}
	svc := NewService(NewRedisTreeStore(client), logging.NewWithWriter(io.Discard, "debug", "text"), nil, pub)
	svc.now = fixedNow
	return svc, mr, pub
}

func TestCreateWritesBothIndexPaths(t *testing.T) {
	svc, mr, pub := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()

	res := svc.Create(context.Background(), tenant, a, CreateOptions{GuardSlot: true})
	require.True(t, res.Success, res.Message)

	sectorPath := ScheduledSectorPath(tenant, a.Slot())
	phonePath := ScheduledPhonePath(tenant, a.Phone, a.Slot())
	assert.Equal(t, []string{sectorPath, phonePath}, res.Paths)

	sectorRaw, err := mr.Get(sectorPath)
	require.NoError(t, err)
	phoneRaw, err := mr.Get(phonePath)
	require.NoError(t, err)
	assert.JSONEq(t, sectorRaw, phoneRaw, "both index paths carry the identical payload")

	evt := pub.last(t)
	assert.Equal(t, appevents.TypeAppointmentBooked, evt.Type)
	assert.Equal(t, "drm", evt.TenantID)
	assert.Equal(t, a.Phone, evt.Phone)
}

func TestCreateRejectsInvalid(t *testing.T) {
	svc, mr, pub := newTestService(t)
	a := sampleAppointment()
	a.Phone = "invalid"

	res := svc.Create(context.Background(), unitTenant(), a, CreateOptions{GuardSlot: true})
	assert.False(t, res.Success)
	assert.Equal(t, FailureValidation, res.Kind)
	assert.NotEmpty(t, res.Validation)
	assert.Empty(t, mr.Keys(), "validation failures write nothing")
	assert.Empty(t, pub.events)
}

func TestCreateGuardedConflict(t *testing.T) {
	svc, mr, _ := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()

	first := svc.Create(context.Background(), tenant, a, CreateOptions{GuardSlot: true})
	require.True(t, first.Success)

	rival := a
	rival.PatientName = "Bruno Carvalho"
	rival.Phone = "21911112222"
	res := svc.Create(context.Background(), tenant, rival, CreateOptions{GuardSlot: true})
	assert.False(t, res.Success)
	assert.Equal(t, FailureConflict, res.Kind)

	// The winner's record stays and the loser's phone index never appears.
	node, err := NewRedisTreeStore(redisClient(t, mr)).Get(context.Background(), ScheduledSectorPath(tenant, a.Slot()))
	require.NoError(t, err)
	assert.Equal(t, "Maria da Silva", node["nomePaciente"])
	assert.False(t, mr.Exists(ScheduledPhonePath(tenant, rival.Phone, rival.Slot())))
}

func TestCreateUnguardedOverwrites(t *testing.T) {
	svc, _, _ := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()

	require.True(t, svc.Create(context.Background(), tenant, a, CreateOptions{GuardSlot: true}).Success)

	a.Motivation = "retorno pos-operatorio"
	res := svc.Create(context.Background(), tenant, a, CreateOptions{GuardSlot: false})
	assert.True(t, res.Success, res.Message)
}

func TestCheckAvailability(t *testing.T) {
	svc, _, _ := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()
	ctx := context.Background()

	assert.True(t, svc.CheckAvailability(ctx, tenant, a.Slot()).Available)

	require.True(t, svc.Create(ctx, tenant, a, CreateOptions{GuardSlot: true}).Success)

	avail := svc.CheckAvailability(ctx, tenant, a.Slot())
	assert.False(t, avail.Available)
	assert.NotEmpty(t, avail.Message)
}

func TestCancelMovesAllFourPaths(t *testing.T) {
	svc, mr, pub := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()
	ctx := context.Background()

	require.True(t, svc.Create(ctx, tenant, a, CreateOptions{GuardSlot: true}).Success)

	res := svc.Cancel(ctx, tenant, CancelParams{
		Phone:           a.Phone,
		Slot:            a.Slot(),
		Record:          a,
		NotifySecretary: true,
	})
	require.True(t, res.Success, res.Message)

	assert.False(t, mr.Exists(ScheduledSectorPath(tenant, a.Slot())))
	assert.False(t, mr.Exists(ScheduledPhonePath(tenant, a.Phone, a.Slot())))

	sectorRaw, err := mr.Get(CancelledSectorPath(tenant, a.Slot()))
	require.NoError(t, err)
	phoneRaw, err := mr.Get(CancelledPhonePath(tenant, a.Phone, a.Slot()))
	require.NoError(t, err)
	assert.JSONEq(t, sectorRaw, phoneRaw)

	store := NewRedisTreeStore(redisClient(t, mr))
	node, err := store.Get(ctx, CancelledSectorPath(tenant, a.Slot()))
	require.NoError(t, err)
	rec, err := DecodeCancelled(node)
	require.NoError(t, err)
	assert.Equal(t, a.Slot().ID(), rec.ID)
	assert.Equal(t, ReasonCancelled, rec.CancelReason)
	assert.True(t, rec.NotifySecretary)

	evt := pub.last(t)
	assert.Equal(t, appevents.TypeAppointmentCancelled, evt.Type)
	assert.Equal(t, ReasonCancelled, evt.Reason)
}

func TestRestoreIsInverseOfCancel(t *testing.T) {
	svc, mr, pub := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()
	ctx := context.Background()

	require.True(t, svc.Create(ctx, tenant, a, CreateOptions{GuardSlot: true}).Success)
	scheduledRaw, err := mr.Get(ScheduledSectorPath(tenant, a.Slot()))
	require.NoError(t, err)

	require.True(t, svc.Cancel(ctx, tenant, CancelParams{Phone: a.Phone, Slot: a.Slot(), Record: a}).Success)

	res := svc.Restore(ctx, tenant, CancelledRecord{Appointment: a, ID: a.Slot().ID()})
	require.True(t, res.Success, res.Message)

	assert.False(t, mr.Exists(CancelledSectorPath(tenant, a.Slot())))
	assert.False(t, mr.Exists(CancelledPhonePath(tenant, a.Phone, a.Slot())))

	restoredRaw, err := mr.Get(ScheduledSectorPath(tenant, a.Slot()))
	require.NoError(t, err)
	assert.JSONEq(t, scheduledRaw, restoredRaw, "restore reproduces the original scheduled node")
	assert.True(t, mr.Exists(ScheduledPhonePath(tenant, a.Phone, a.Slot())))

	evt := pub.last(t)
	assert.Equal(t, appevents.TypeAppointmentRestored, evt.Type)
}

func TestRestoreConflictsWhenSlotRebooked(t *testing.T) {
	svc, mr, _ := newTestService(t)
	tenant := unitTenant()
	a := sampleAppointment()
	ctx := context.Background()

	require.True(t, svc.Create(ctx, tenant, a, CreateOptions{GuardSlot: true}).Success)
	require.True(t, svc.Cancel(ctx, tenant, CancelParams{Phone: a.Phone, Slot: a.Slot(), Record: a}).Success)

	rival := a
	rival.PatientName = "Bruno Carvalho"
	rival.Phone = "21911112222"
	require.True(t, svc.Create(ctx, tenant, rival, CreateOptions{GuardSlot: true}).Success)

	res := svc.Restore(ctx, tenant, CancelledRecord{Appointment: a, ID: a.Slot().ID()})
	assert.False(t, res.Success)
	assert.Equal(t, FailureConflict, res.Kind)

	// The rival booking and the cancelled record are both untouched.
	node, err := NewRedisTreeStore(redisClient(t, mr)).Get(ctx, ScheduledSectorPath(tenant, a.Slot()))
	require.NoError(t, err)
	assert.Equal(t, "Bruno Carvalho", node["nomePaciente"])
	assert.True(t, mr.Exists(CancelledSectorPath(tenant, a.Slot())))
}

func redisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// flakyStore wraps a real store and fails chosen Commit calls, counted from 1.
type flakyStore struct {
	TreeStore
	commits int
	failOn  map[int]bool
}

var errInjected = errors.New("injected store failure")

func (f *flakyStore) Commit(ctx context.Context, update MultiPathUpdate) error {
	f.commits++
	if f.failOn[f.commits] {
		return errInjected
	}
	return f.TreeStore.Commit(ctx, update)
}
