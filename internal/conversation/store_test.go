package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

func testTenant() tenancy.Tenant {
	return tenancy.Tenant{ID: "drm", Base: "DRM", HistoryKey: "historicoDaConversa"}
}

func TestAppendInsertsUnderHistoryKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs(pgxmock.AnyArg(), "historicoDaConversa", "21998887766", RoleUser, "quero marcar consulta").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.Append(context.Background(), testTenant(), "21998887766", RoleUser, "quero marcar consulta")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryOrderedOldestFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithExec(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "phone", "role", "content", "created_at"}).
		AddRow(uuid.New(), "21998887766", RoleUser, "quero marcar consulta", now.Add(-2*time.Minute)).
		AddRow(uuid.New(), "21998887766", RoleAssistant, "claro, qual unidade?", now.Add(-time.Minute)).
		AddRow(uuid.New(), "21998887766", RoleAdmin, "confirmado pela secretaria", now)
	mock.ExpectQuery("SELECT id, phone, role, content, created_at").
		WithArgs("historicoDaConversa", "21998887766").
		WillReturnRows(rows)

	history, err := store.History(context.Background(), testTenant(), "21998887766")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, RoleAdmin, history[2].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListThreads(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithExec(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"phone", "message_count", "last_message_at", "last_preview"}).
		AddRow("21998887766", 12, now, "ate amanha").
		AddRow("21911112222", 3, now.Add(-time.Hour), "obrigado")
	mock.ExpectQuery("SELECT phone").
		WithArgs("historicoDaConversa").
		WillReturnRows(rows)

	threads, err := store.ListThreads(context.Background(), testTenant())
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "21998887766", threads[0].Phone)
	assert.Equal(t, 12, threads[0].MessageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithExec(mock)

	mock.ExpectQuery("SELECT count").
		WithArgs("historicoDaConversa", "21998887766").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.MessageCount(context.Background(), testTenant(), "21998887766")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
