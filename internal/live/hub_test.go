package live

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	appevents "github.com/agendadigital/agenda-platform/internal/events"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(logging.NewWithWriter(io.Discard, "debug", "text"))
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, tenant string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?tenant=" + tenant
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversTenantEvents(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "drm")
	waitForClients(t, hub, 1)

	sent := appevents.NewAppointmentChange(
		appevents.TypeAppointmentBooked, "drm", "Campo Grande", "2026-09-15", "14:30", "21998887766")
	hub.PublishAppointmentChange(sent)

	var got appevents.AppointmentChangeV1
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &got))
	assert.Equal(t, sent.EventID, got.EventID)
	assert.Equal(t, appevents.TypeAppointmentBooked, got.Type)
	assert.Equal(t, "Campo Grande", got.Sector)
}

func TestHubPartitionsByTenant(t *testing.T) {
	hub, srv := newTestHub(t)
	drm := dial(t, srv, "drm")
	oft := dial(t, srv, "oft45")
	waitForClients(t, hub, 2)

	hub.PublishAppointmentChange(appevents.NewAppointmentChange(
		appevents.TypeAppointmentCancelled, "oft45", "Dra. Helena Prado", "2026-09-15", "14:30", "21998887766"))

	var got appevents.AppointmentChangeV1
	require.NoError(t, oft.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(oft, &got))
	assert.Equal(t, "oft45", got.TenantID)

	// The other tenant's connection stays silent.
	require.NoError(t, drm.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var silent appevents.AppointmentChangeV1
	err := websocket.JSON.Receive(drm, &silent)
	assert.Error(t, err, "read should time out with no event")
}

func TestHubRejectsMissingTenant(t *testing.T) {
	hub, srv := newTestHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	var got map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &got))
	assert.Contains(t, got["error"], "missing tenant")
	assert.Zero(t, hub.ClientCount())
}

func TestHubClose(t *testing.T) {
	hub, srv := newTestHub(t)
	dial(t, srv, "drm")
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Zero(t, hub.ClientCount())
}
