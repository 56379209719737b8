package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/domain"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.LeaderboardService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LeaderboardService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type profilePayload struct {
	DisplayName string               `json:"displayName"`
	Cosmetics   []domain.CosmeticRef `json:"cosmetics"`
}

type leaderboardPayload struct {
	Snapshot *domain.LeaderboardSnapshot `json:"snapshot"`
	Unranked bool                        `json:"unranked"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// viewerSession guards the viewer's local display state and the last
// snapshot pushed to this connection, so a profile edit can re-render
// immediately without waiting for the next authoritative update.
type viewerSession struct {
	mu       sync.Mutex
	state    domain.ViewerState
	lastSnap *domain.LeaderboardSnapshot
}

func (v *viewerSession) viewer() *domain.ViewerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	state := v.state
	return &state
}

// ServeWS upgrades the request and streams leaderboard snapshots: one on
// connect, one per authoritative update, and an immediate re-render after
// profile edits or an explicit refresh.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("groupId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if groupID == "" || userID == "" {
		http.Error(w, "missing groupId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := &viewerSession{state: domain.ViewerState{MemberID: userID, DisplayName: displayName}}

	send := make(chan outboundMessage[any], 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	// send is never closed; the writer exits via done so a late update from
	// the subscription callback can't hit a closed channel.
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	// emit queues an outbound message unless the connection is tearing down.
	// The guard on writerDone matters even while the read loop is alive: if
	// the write side died first, a bare channel send would block forever once
	// the buffer fills.
	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-done:
		case <-writerDone:
		}
	}

	push := func(snapshot *domain.LeaderboardSnapshot) {
		session.mu.Lock()
		session.lastSnap = snapshot
		session.mu.Unlock()
		emit(outboundMessage[any]{Type: "leaderboard", Payload: leaderboardPayload{
			Snapshot: snapshot,
			Unranked: snapshot.FindMember(userID) < 0,
		}})
	}

	snapshot, err := h.service.Load(r.Context(), groupID, session.viewer())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		close(done)
		<-writerDone
		return
	}
	push(snapshot)

	cancel, err := h.service.Subscribe(r.Context(), groupID, session.viewer, push)
	if err != nil {
		// The writer may still be flushing the initial push, so this goes
		// through the channel rather than the conn directly.
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		close(done)
		<-writerDone
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "profile":
			var payload profilePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid profile payload"}})
				continue
			}
			session.mu.Lock()
			if payload.DisplayName != "" {
				session.state.DisplayName = payload.DisplayName
			}
			cosmetics := payload.Cosmetics
			if len(cosmetics) > domain.MaxEquippedCosmetics {
				cosmetics = cosmetics[:domain.MaxEquippedCosmetics]
			}
			session.state.Cosmetics = cosmetics
			last := session.lastSnap
			session.mu.Unlock()
			// Re-render locally right away; rank and score stay whatever
			// the last authoritative snapshot said.
			if last != nil {
				push(app.ApplyOverlay(last, session.viewer()))
			}
		case "refresh":
			refreshed, err := h.service.Refresh(r.Context(), groupID, session.viewer())
			if err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			push(refreshed)
		default:
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	cancel()
	close(done)
	<-writerDone
}
