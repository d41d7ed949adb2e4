package handlers_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneflow-backend/internal/handlers"
	"sceneflow-backend/internal/progress"
)

func progressServer(t *testing.T) (*httptest.Server, *progress.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := progress.NewRegistry()
	h := handlers.NewProgressHandler(registry)

	router := gin.New()
	router.GET("/api/v1/progress/:connection_id", h.Attach)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, registry
}

func dialProgress(t *testing.T, server *httptest.Server, connectionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/progress/" + connectionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestProgressAttach_StreamsFramesUntilTerminal(t *testing.T) {
	server, registry := progressServer(t)

	conn := dialProgress(t, server, "conn-1")
	defer conn.Close()

	require.Eventually(t, func() bool { return registry.Has("conn-1") },
		time.Second, 10*time.Millisecond)

	registry.SendProgress("conn-1", 40, "copying scenes", nil)
	registry.SendComplete("conn-1", map[string]interface{}{"project_id": "p1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame progress.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, progress.KindProgress, frame.Kind)
	assert.Equal(t, 40, frame.Percent)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, progress.KindComplete, frame.Kind)
	assert.Equal(t, "p1", frame.Data["project_id"])

	// Terminal frame closes the socket.
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool { return !registry.Has("conn-1") },
		time.Second, 10*time.Millisecond)
}

func TestProgressAttach_ReconnectSurvivesStaleTeardown(t *testing.T) {
	server, registry := progressServer(t)

	first := dialProgress(t, server, "conn-1")
	defer first.Close()

	require.Eventually(t, func() bool { return registry.Has("conn-1") },
		time.Second, 10*time.Millisecond)

	// Reconnect with the same id; the server replaces the channel and
	// closes the first socket.
	second := dialProgress(t, server, "conn-1")
	defer second.Close()

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// The first connection's server-side teardown runs after its read
	// errors; give it time, then the fresh registration must still be up.
	time.Sleep(300 * time.Millisecond)
	assert.True(t, registry.Has("conn-1"))

	registry.SendProgress("conn-1", 75, "still streaming", nil)

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame progress.Frame
	require.NoError(t, second.ReadJSON(&frame))
	assert.Equal(t, 75, frame.Percent)
}
