package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwell-ai/inkwell/internal/streammgr"
)

// WebSocket message types sent to stream consumers.
const (
	WSMsgTypeChunk = "chunk"
	WSMsgTypeDone  = "done"
	WSMsgTypeError = "error"
)

// WSMessage represents a WebSocket message sent to clients.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	// wsWriteWait is the deadline for one outbound frame.
	wsWriteWait = 10 * time.Second

	// wsPollInterval is how often an empty buffer is re-checked.
	wsPollInterval = 25 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,

	// The daemon serves local tooling only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStreamSocket upgrades /ws/streams/{id} and forwards buffered
// chunks to the client in FIFO order until the stream completes.
func (s *Server) handleStreamSocket(w http.ResponseWriter,
	r *http.Request) {

	id := strings.TrimPrefix(r.URL.Path, "/ws/streams/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "stream id required", http.StatusBadRequest)
		return
	}

	mgr := s.rt.Streams()
	if _, err := mgr.StreamInfo(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	s.log.Debug("Stream consumer connected", "stream_id", id)

	// Swallow client frames so control messages keep flowing.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		chunk, err := mgr.Consume(id)
		if err != nil {
			if errors.Is(err, streammgr.ErrStreamNotFound) {
				s.writeSocket(conn, WSMessage{
					Type:    WSMsgTypeError,
					Payload: "stream removed",
				})
			}
			return
		}

		if chunk.IsSome() {
			msg := WSMessage{
				Type:    WSMsgTypeChunk,
				Payload: chunk.UnwrapOr(""),
			}
			if !s.writeSocket(conn, msg) {
				return
			}
			continue
		}

		// Buffer drained. If the producer is done, so are we.
		finished, err := mgr.IsFinished(id)
		if err != nil || finished {
			s.writeSocket(conn, WSMessage{Type: WSMsgTypeDone})
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(wsPollInterval):
		}
	}
}

// writeSocket sends one message, reporting whether the connection is
// still usable.
func (s *Server) writeSocket(conn *websocket.Conn, msg WSMessage) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Debug("WebSocket write failed", "err", err)
		return false
	}

	return true
}
