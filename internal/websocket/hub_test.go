package websocket

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/logger"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
)

func checkOrigin(upgrader websocket.Upgrader, origin string) bool {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return upgrader.CheckOrigin(req)
}

func TestNewSecureUpgrader_Origins(t *testing.T) {
	upgrader := NewSecureUpgrader([]string{"  http://localhost:3000  ", "http://example.com", ""}, nil)

	tests := []struct {
		origin   string
		expected bool
	}{
		{"http://localhost:3000", true},
		{"http://example.com", true},
		{"", true},
		{"http://malicious.com", false},
		{"HTTP://LOCALHOST:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.expected, checkOrigin(upgrader, tt.origin))
		})
	}
}

func TestNewSecureUpgrader_DefaultOrigin(t *testing.T) {
	for _, origins := range [][]string{nil, {"", "  "}} {
		upgrader := NewSecureUpgrader(origins, nil)
		assert.True(t, checkOrigin(upgrader, DefaultAllowedOrigin))
		assert.False(t, checkOrigin(upgrader, "http://example.com"))
	}
}

func TestNewSecureUpgrader_Wildcard(t *testing.T) {
	upgrader := NewSecureUpgrader([]string{"http://example.com", "*"}, nil)
	assert.True(t, checkOrigin(upgrader, "http://anything.test"))
}

func TestNewSecureUpgrader_AuditsRejectedOrigin(t *testing.T) {
	var buf bytes.Buffer
	audit := logger.NewAuditLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	upgrader := NewSecureUpgrader([]string{"http://localhost:3000"}, audit)
	assert.False(t, checkOrigin(upgrader, "http://malicious.com"))

	assert.Contains(t, buf.String(), "invalid_origin")
	assert.Contains(t, buf.String(), "http://malicious.com")
}

func TestNewSecureUpgrader_BufferSizes(t *testing.T) {
	upgrader := NewSecureUpgrader(nil, nil)

	assert.Equal(t, 1024, upgrader.ReadBufferSize)
	assert.Equal(t, 1024, upgrader.WriteBufferSize)
}

func TestValidTopic(t *testing.T) {
	assert.True(t, ValidTopic(TopicAll))
	assert.True(t, ValidTopic(TopicNormal))
	assert.True(t, ValidTopic(TopicCritica))
	assert.False(t, ValidTopic(""))
	assert.False(t, ValidTopic("mailbox"))
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(nil)

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.subscriptions)
	assert.NotNil(t, hub.logger)
}

func sampleReport(category models.Category) *models.Report {
	return &models.Report{
		ID:        3,
		Title:     "Valve stuck",
		UserName:  "Rui",
		Category:  category,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Images:    []models.ImageAttachment{{ID: 1}, {ID: 2}},
	}
}

func TestHub_BroadcastRoutesByTopic(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	all := NewClient(hub, nil, nil)
	critica := NewClient(hub, nil, nil)
	normal := NewClient(hub, nil, nil)
	both := NewClient(hub, nil, nil)
	for _, c := range []*Client{all, critica, normal, both} {
		hub.Register(c)
	}
	hub.Subscribe(all, TopicAll)
	hub.Subscribe(critica, TopicCritica)
	hub.Subscribe(normal, TopicNormal)
	hub.Subscribe(both, TopicAll)
	hub.Subscribe(both, TopicCritica)
	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicAll) == 2 && hub.SubscriberCount(TopicCritica) == 2 },
		time.Second, 5*time.Millisecond)

	hub.BroadcastReportCreated(sampleReport(models.CategoryCritica))

	for _, c := range []*Client{all, critica, both} {
		msg := readQueued(t, c)
		assert.Equal(t, MessageTypeReportCreated, msg.Type)
		assert.Equal(t, TopicCritica, msg.Topic)
		require.NotNil(t, msg.Report)
		assert.Equal(t, uint(3), msg.Report.ID)
		assert.Equal(t, "Valve stuck", msg.Report.Title)
		assert.Equal(t, 2, msg.Report.Images)
		assert.Equal(t, "2024-05-01T12:00:00Z", msg.Report.CreatedAt)
	}

	assert.Empty(t, normal.send, "normal subscribers do not see critical reports")
	assert.Empty(t, both.send, "a client on several matching topics gets one copy")
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	assert.NotPanics(t, func() { hub.BroadcastReportCreated(sampleReport(models.CategoryNormal)) })
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.BroadcastReportCreated(sampleReport(models.CategoryNormal))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
}

func TestHub_UnregisterRemovesSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, nil)
	hub.Register(client)
	hub.Subscribe(client, TopicAll)
	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicAll) == 1 },
		time.Second, 5*time.Millisecond)

	hub.Unregister(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 && hub.SubscriberCount(TopicAll) == 0 },
		time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_SubscribeIgnoresUnregisteredClient(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	hub.Subscribe(NewClient(hub, nil, nil), TopicAll)
	hub.Register(NewClient(hub, nil, nil))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.SubscriberCount(TopicAll))
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()

	client := NewClient(hub, nil, nil)
	hub.Register(client)
	hub.Stop()
	hub.Stop()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, 0, hub.ClientCount())

	// Calls after stop return immediately
	hub.Register(NewClient(hub, nil, nil))
	hub.Subscribe(client, TopicAll)
}

func TestHub_ServeEndToEnd(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	upgrader := NewSecureUpgrader(nil, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(&upgrader, w, r)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topic=critica&topic=bogus"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicCritica) == 1 },
		time.Second, 5*time.Millisecond)

	hub.BroadcastReportCreated(sampleReport(models.CategoryNormal))
	hub.BroadcastReportCreated(sampleReport(models.CategoryCritica))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeReportCreated, msg.Type)
	assert.Equal(t, TopicCritica, msg.Topic)

	// Subscribing over the socket is acknowledged
	require.NoError(t, conn.WriteJSON(WSMessage{Type: MessageTypeSubscribe, Topic: TopicAll}))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeSubscribed, msg.Type)
	assert.Equal(t, TopicAll, msg.Topic)
}
