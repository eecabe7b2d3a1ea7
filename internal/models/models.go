package models

// WSFrame is the envelope for every message exchanged over a room WebSocket.
type WSFrame struct {
	Type string      `json:"type"` // "join","update_script","patch_script","update_index","update_styles","update_push_settings","cursor_sync","editor_change","send_content","ping","disconnect" in; "state_update","script_patched","connection_update","cursor_update","editor_update","force_subtitle","pong","error" out
	Data interface{} `json:"data"`
}

/*** Push configuration ***/

type TransitionMode string

const (
	TransitionDirect       TransitionMode = "direct"
	TransitionFade         TransitionMode = "fade"
	TransitionScroll       TransitionMode = "scroll"
	TransitionScrollNormal TransitionMode = "scroll-normal"
)

type BroadcastMode string

const (
	BroadcastManual       BroadcastMode = "manual"
	BroadcastAutomatic    BroadcastMode = "automatic"
	BroadcastFollowCursor BroadcastMode = "follow_cursor"
)

type PushSettings struct {
	DisplayLines   int            `json:"display_lines"`
	TransitionMode TransitionMode `json:"transition_mode"`
	BroadcastMode  BroadcastMode  `json:"broadcast_mode"`
}

// PushUpdate carries a partial push-settings change. Nil fields are "leave as
// is"; present-but-invalid fields are dropped without affecting siblings.
type PushUpdate struct {
	DisplayLines   *int            `json:"display_lines,omitempty"`
	TransitionMode *TransitionMode `json:"transition_mode,omitempty"`
	BroadcastMode  *BroadcastMode  `json:"broadcast_mode,omitempty"`
}

/*** Script state snapshot ***/

// ScriptSnapshot is the full serializable script state broadcast to clients.
type ScriptSnapshot struct {
	RawText      string         `json:"raw_text"`
	Lines        []string       `json:"lines"`
	Bookmarks    map[int]string `json:"bookmarks"`
	CurrentIndex int            `json:"current_index"`
	Styles       map[string]any `json:"style_settings"`
	Push         PushSettings   `json:"push_settings"`
}

// StateUpdate is a snapshot plus the room's viewer link token, so directors
// can surface the read-only share URL.
type StateUpdate struct {
	ScriptSnapshot
	ViewerID string `json:"viewer_id"`
}

type ConnectionCounts struct {
	Directors int `json:"directors"`
	Viewers   int `json:"viewers"`
}

/*** Inbound event payloads ***/

type JoinRequest struct {
	Role string `json:"role"` // "director" or "viewer"; self-declared, untrusted
}

type ScriptUpdate struct {
	RawText string `json:"raw_text"`
}

type PatchRequest struct {
	Patch string `json:"patch"`
}

// IndexUpdate optionally bundles a text replacement and push-setting fields
// with the index move; the text is applied first.
type IndexUpdate struct {
	Index          int             `json:"index"`
	RawText        *string         `json:"raw_text,omitempty"`
	DisplayLines   *int            `json:"display_lines,omitempty"`
	TransitionMode *TransitionMode `json:"transition_mode,omitempty"`
}

type StyleUpdate struct {
	Styles map[string]any `json:"styles"`
}

type PushSettingsRequest struct {
	Settings PushUpdate `json:"settings"`
}

type ContentRequest struct {
	Text string `json:"text"`
}

type ForceSubtitle struct {
	Text string `json:"text"`
}

type Ping struct {
	Timestamp any `json:"timestamp"`
}

type Pong struct {
	Timestamp any `json:"timestamp"`
}

/*** HTTP payloads ***/

type CreateRoomResponse struct {
	RoomID   string `json:"room_id"`
	ViewerID string `json:"viewer_id"`
}

type RoomInfo struct {
	RoomID    string `json:"room_id"`
	ViewerID  string `json:"viewer_id"`
	Directors int    `json:"directors"`
	Viewers   int    `json:"viewers"`
}

type ViewerResolveResponse struct {
	RoomID string `json:"room_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
