package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readQueued(t *testing.T, client *Client) WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a message to be queued")
		return WSMessage{}
	}
}

func TestNewClient_CreatesClientWithConnection(t *testing.T) {
	hub := NewHub(nil)

	client := NewClient(hub, nil, nil)

	assert.NotNil(t, client)
	assert.Equal(t, hub, client.hub)
	assert.NotNil(t, client.send)
	assert.NotNil(t, client.logger)
}

func TestClient_HandleMessage_ProcessesSubscribe(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, nil)
	hub.Register(client)

	data, err := json.Marshal(WSMessage{Type: MessageTypeSubscribe, Topic: TopicCritica})
	require.NoError(t, err)

	client.handleMessage(data)

	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicCritica) == 1 },
		time.Second, 5*time.Millisecond)

	ack := readQueued(t, client)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, TopicCritica, ack.Topic)
}

func TestClient_HandleMessage_ProcessesUnsubscribe(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, nil)
	hub.Register(client)
	hub.Subscribe(client, TopicAll)
	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicAll) == 1 },
		time.Second, 5*time.Millisecond)

	data, err := json.Marshal(WSMessage{Type: MessageTypeUnsubscribe, Topic: TopicAll})
	require.NoError(t, err)

	client.handleMessage(data)

	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicAll) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestClient_HandleMessage_SendsErrorForInvalidJSON(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	client.handleMessage([]byte("invalid json"))

	msg := readQueued(t, client)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "invalid message format")
}

func TestClient_HandleMessage_SendsErrorForUnknownType(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	data, err := json.Marshal(WSMessage{Type: "unknown_type"})
	require.NoError(t, err)
	client.handleMessage(data)

	msg := readQueued(t, client)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "unknown message type")
}

func TestClient_HandleMessage_SendsErrorForInvalidTopic(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	for _, topic := range []string{"", "urgent", "CRITICA"} {
		data, err := json.Marshal(WSMessage{Type: MessageTypeSubscribe, Topic: topic})
		require.NoError(t, err)
		client.handleMessage(data)

		msg := readQueued(t, client)
		assert.Equal(t, MessageTypeError, msg.Type, topic)
		assert.Contains(t, msg.Error, "topic must be one of")
	}
}

func TestClient_QueueAfterClose(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	client.close()
	client.close()

	assert.False(t, client.queue([]byte("late")))
	assert.NotPanics(t, func() { client.sendError("late") })
}

func TestClient_SendChannel_HasBuffer(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	for i := 0; i < 10; i++ {
		client.sendError("test error")
	}

	assert.Len(t, client.send, 10)
}

func TestClient_QueueDropsWhenFull(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	for i := 0; i < cap(client.send); i++ {
		require.True(t, client.queue([]byte("x")))
	}
	assert.False(t, client.queue([]byte("overflow")))
}

func TestMessageTypes_AreCorrectValues(t *testing.T) {
	assert.Equal(t, MessageType("subscribe"), MessageTypeSubscribe)
	assert.Equal(t, MessageType("unsubscribe"), MessageTypeUnsubscribe)
	assert.Equal(t, MessageType("subscribed"), MessageTypeSubscribed)
	assert.Equal(t, MessageType("report_created"), MessageTypeReportCreated)
	assert.Equal(t, MessageType("error"), MessageTypeError)
}
