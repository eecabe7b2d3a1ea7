package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"prompter/internal/metrics"
	"prompter/internal/models"
	"prompter/internal/presence"
	"prompter/internal/session"
	"prompter/internal/utils"
)

type Handlers struct {
	log      *utils.Logger
	registry *session.Registry
	presence *presence.Publisher
}

func NewHandlers(log *utils.Logger, registry *session.Registry, pub *presence.Publisher) *Handlers {
	return &Handlers{log: log, registry: registry, presence: pub}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// CreateRoom generates a fresh room with both identifiers. There is no
// matching close endpoint; rooms only die by inactivity.
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	roomID, viewerID := h.registry.CreateRoom()
	metrics.RoomCreated()
	h.presence.Publish(r.Context(), presence.Event{Type: presence.EventRoomCreated, RoomID: roomID})
	h.log.Info("room created", "room", roomID)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, models.CreateRoomResponse{RoomID: roomID, ViewerID: viewerID})
}

func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	info, ok := h.registry.RoomInfo(chi.URLParam(r, "id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, models.ErrorResponse{Error: "room_not_found"})
		return
	}
	writeJSON(w, info)
}

// ResolveViewer maps the long read-only token to the room id the viewer
// client should open its WebSocket against.
func (h *Handlers) ResolveViewer(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.registry.ResolveViewer(chi.URLParam(r, "viewerId"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, models.ErrorResponse{Error: "room_not_found"})
		return
	}
	writeJSON(w, models.ViewerResolveResponse{RoomID: roomID})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// RoomWS is the room event gateway: one connection, one room, events handled
// to completion in arrival order. Events from different connections may
// interleave arbitrarily; the registry lock and the all-or-nothing patch
// protocol are the correctness backstop.
func (h *Handlers) RoomWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if !h.registry.Exists(roomID) {
		_ = conn.WriteJSON(models.WSFrame{Type: "error", Data: "room_not_found"})
		return
	}

	client := session.NewClient(conn)
	defer h.handleDisconnect(client)

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.HandleFrame(roomID, client, frame)
	}
}

// HandleFrame dispatches one room-scoped event. Failure containment per
// event: a payload that doesn't decode is dropped with no response, no
// broadcast, and no effect on the room.
func (h *Handlers) HandleFrame(roomID string, client *session.Client, frame models.WSFrame) {
	metrics.EventHandled(frame.Type)

	switch frame.Type {
	case "join":
		var req models.JoinRequest
		if !decode(frame.Data, &req) {
			return
		}
		role := session.RoleViewer
		if req.Role == string(session.RoleDirector) {
			role = session.RoleDirector
		}
		state, counts, members, ok := h.registry.Join(roomID, client, role)
		if !ok {
			h.log.Warn("join for unknown room", "room", roomID)
			return
		}
		client.Send(models.WSFrame{Type: "state_update", Data: state})
		broadcast(members, nil, models.WSFrame{Type: "connection_update", Data: counts})
		h.publishCounts(roomID, counts)

	case "update_script":
		var req models.ScriptUpdate
		if !decode(frame.Data, &req) {
			return
		}
		state, members, ok := h.registry.UpdateScript(roomID, req.RawText)
		if !ok {
			return
		}
		broadcast(members, nil, models.WSFrame{Type: "state_update", Data: state})

	case "patch_script":
		var req models.PatchRequest
		if !decode(frame.Data, &req) {
			return
		}
		applied, state, members, ok := h.registry.ApplyPatch(roomID, req.Patch)
		if !ok {
			return
		}
		if applied {
			metrics.PatchApplied()
			// peers re-apply the compact patch against their own baseline
			broadcast(members, client, models.WSFrame{Type: "script_patched", Data: req})
			return
		}
		// context mismatch or malformed patch: force every client,
		// sender included, back onto the authoritative state
		metrics.PatchRejected()
		h.log.Warn("patch rejected, forcing resync", "room", roomID)
		broadcast(members, nil, models.WSFrame{Type: "state_update", Data: state})

	case "update_index":
		var req models.IndexUpdate
		if !decode(frame.Data, &req) {
			return
		}
		state, members, ok := h.registry.UpdateIndex(roomID, req)
		if !ok {
			return
		}
		broadcast(members, nil, models.WSFrame{Type: "state_update", Data: state})

	case "update_styles":
		var req models.StyleUpdate
		if !decode(frame.Data, &req) {
			return
		}
		state, members, ok := h.registry.UpdateStyles(roomID, req.Styles)
		if !ok {
			return
		}
		broadcast(members, nil, models.WSFrame{Type: "state_update", Data: state})

	case "update_push_settings":
		var req models.PushSettingsRequest
		if !decode(frame.Data, &req) {
			return
		}
		state, members, ok := h.registry.UpdatePushSettings(roomID, req.Settings)
		if !ok {
			return
		}
		broadcast(members, nil, models.WSFrame{Type: "state_update", Data: state})

	case "cursor_sync":
		members, ok := h.registry.Members(roomID)
		if !ok {
			return
		}
		broadcast(members, client, models.WSFrame{Type: "cursor_update", Data: frame.Data})

	case "editor_change":
		members, ok := h.registry.Members(roomID)
		if !ok {
			return
		}
		broadcast(members, client, models.WSFrame{Type: "editor_update", Data: frame.Data})

	case "send_content":
		var req models.ContentRequest
		if !decode(frame.Data, &req) {
			return
		}
		// ephemeral: relayed to the whole room, never folded into state
		members, ok := h.registry.Members(roomID)
		if !ok {
			return
		}
		broadcast(members, nil, models.WSFrame{Type: "force_subtitle", Data: models.ForceSubtitle{Text: req.Text}})

	case "ping":
		var req models.Ping
		if !decode(frame.Data, &req) {
			return
		}
		if !h.registry.Touch(roomID) {
			return
		}
		client.Send(models.WSFrame{Type: "pong", Data: models.Pong{Timestamp: req.Timestamp}})

	default:
		// unknown event types are dropped, same as malformed payloads
	}
}

func (h *Handlers) handleDisconnect(client *session.Client) {
	roomID, counts, members, ok := h.registry.Leave(client)
	if !ok {
		return
	}
	broadcast(members, nil, models.WSFrame{Type: "connection_update", Data: counts})
	h.publishCounts(roomID, counts)
}

func (h *Handlers) publishCounts(roomID string, counts models.ConnectionCounts) {
	h.presence.Publish(context.Background(), presence.Event{
		Type:      presence.EventCounts,
		RoomID:    roomID,
		Directors: counts.Directors,
		Viewers:   counts.Viewers,
	})
}

// broadcast sends the frame to every member except the excluded sender.
// Member lists are snapshots taken under the registry lock, so the network
// writes here never hold it.
func broadcast(members []*session.Client, except *session.Client, frame models.WSFrame) {
	for _, m := range members {
		if m == except {
			continue
		}
		m.Send(frame)
	}
}

// decode round-trips a frame's loosely-typed data into the expected payload
// shape; false means the payload was malformed and the event must be ignored.
func decode(in any, out any) bool {
	b, err := json.Marshal(in)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
