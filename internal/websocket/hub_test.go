package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-coverage/internal/types"
)

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	hub := NewHub(log)
	go hub.Run()

	router := gin.New()
	router.GET("/ws/lineup-progress/:run_id", hub.HandleWebSocket)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})
	return hub, server
}

func wsURL(server *httptest.Server, runID string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/lineup-progress/" + runID
}

func TestHub_SendProgressReachesRunSubscribers(t *testing.T) {
	hub, server := setupTestHub(t)
	runID := uuid.New().String()
	otherRun := uuid.New().String()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, runID), nil)
	require.NoError(t, err)
	defer conn.Close()

	other, _, err := websocket.DefaultDialer.Dial(wsURL(server, otherRun), nil)
	require.NoError(t, err)
	defer other.Close()

	require.Eventually(t, func() bool {
		return hub.GetRunConnectionCount(runID) == 1 && hub.GetRunConnectionCount(otherRun) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, hub.GetConnectionCount())

	hub.SendProgress(types.ProgressUpdate{
		RunID:       runID,
		Type:        "search",
		Progress:    0.5,
		ShardsDone:  1,
		ShardsTotal: 2,
		Accepted:    5,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var update types.ProgressUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	assert.Equal(t, runID, update.RunID)
	assert.Equal(t, 1, update.ShardsDone)
	assert.Equal(t, 5, update.Accepted)
	assert.False(t, update.Timestamp.IsZero())

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "subscribers of other runs receive nothing")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, server := setupTestHub(t)
	runID := uuid.New().String()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, runID), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.GetRunConnectionCount(runID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.GetConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsInvalidRunID(t *testing.T) {
	_, server := setupTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "not-a-uuid"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
