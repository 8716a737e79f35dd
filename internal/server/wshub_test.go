package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/logging"
)

func testHub() *wsHub {
	return newWSHub(logging.New(logging.Options{Level: "error", Format: "text", Output: io.Discard}))
}

func TestPumpTranslatesNodeEventToFrame(t *testing.T) {
	// built by hand, without the run() goroutine, so the test owns the
	// broadcast channel's receive side.
	h := &wsHub{
		clients:   make(map[string]*wsClient),
		broadcast: make(chan []byte, 256),
		logger:    logging.New(logging.Options{Level: "error", Format: "text", Output: io.Discard}),
	}
	ch := make(chan events.Event, 1)
	go h.pump(ch)

	n := domain.NewPlaybookNode("a", domain.Playbook{}, "", "")
	n.Status = domain.NodeStatusRunning
	ch <- events.NewNodeEvent(n)
	close(ch)

	require.Eventually(t, func() bool {
		select {
		case msg := <-h.broadcast:
			var frame wsFrame
			require.NoError(t, json.Unmarshal(msg, &frame))
			assert.Equal(t, "node_event", frame.Type)
			assert.Equal(t, "a", frame.NodeID)
			assert.Equal(t, "running", frame.NodeStatus)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestWSHubClientCountAndBroadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := testHub()
	r := gin.New()
	r.GET("/ws", h.ServeWS)
	ts := httptest.NewServer(r)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// welcome frame
	_, welcome, err := conn.ReadMessage()
	require.NoError(t, err)
	var control map[string]any
	require.NoError(t, json.Unmarshal(welcome, &control))
	assert.Equal(t, "control", control["type"])

	require.Eventually(t, func() bool {
		return h.ClientCount() == 1
	}, time.Second, time.Millisecond)

	h.Broadcast([]byte(`{"type":"workflow_event"}`))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "workflow_event")
}

func TestServeWSRejectsPlainHTTPRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := testHub()
	r := gin.New()
	r.GET("/ws", h.ServeWS)
	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
}
