package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Serve upgrades the request and runs the client until it disconnects.
// Every valid topic passed in the query is subscribed immediately.
func (h *Hub) Serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(h, conn, h.logger)
	h.Register(client)

	for _, topic := range r.URL.Query()["topic"] {
		if ValidTopic(topic) {
			h.Subscribe(client, topic)
		}
	}

	go client.WritePump()
	go client.ReadPump()
	return nil
}
