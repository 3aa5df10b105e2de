package http

import (
	"log"
	"net/http"
	"time"

	"klasquiz-service/internal/app"
	"klasquiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type streamEvent struct {
	Type string           `json:"type"`
	Data *domain.Snapshot `json:"data"`
}

// handleStream upgrades the request to a websocket and relays session
// snapshots. A valid token of the owning docent gets the full view;
// everyone else gets the redacted student refresh.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessieID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	// no token means an anonymous student viewer; a token that fails
	// verification is rejected outright
	var docentID *int64
	if token := requestToken(r); token != "" {
		claims, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		docentID = &claims.ID
	}

	role, err := s.sessions.SessionForStream(r.Context(), sessieID, docentID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := s.sessions.Hub().Subscribe(sessieID, role)
	defer cancel()

	// one writer goroutine owns the connection for writes
	send := make(chan streamEvent, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// initial state so the client does not wait for the next mutation
	if snap, err := s.sessions.BuildSnapshot(r.Context(), sessieID); err == nil {
		ev := streamEvent{Type: "session", Data: snap}
		if role == app.RoleStudent {
			ev = streamEvent{Type: "update", Data: app.RedactForStudent(snap)}
		}
		send <- ev
	} else {
		log.Printf("initial snapshot for sessie %d: %v", sessieID, err)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				close(send)
				<-writerDone
				return
			}
			select {
			case send <- streamEvent{Type: ev.Name, Data: ev.Snapshot}:
			case <-writerDone:
				return
			case <-readerDone:
				close(send)
				<-writerDone
				return
			}
		case <-writerDone:
			return
		case <-readerDone:
			close(send)
			<-writerDone
			return
		}
	}
}
