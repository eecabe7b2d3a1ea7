// Package session owns the room registry: the mapping from room identifiers
// to live rooms, their membership sets, and their activity timestamps, plus
// the background sweeper that evicts idle rooms.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"prompter/internal/models"
	"prompter/internal/script"
)

type Role string

const (
	RoleDirector Role = "director"
	RoleViewer   Role = "viewer"
)

// Room is one director session. Its fields are guarded by the owning
// Registry's lock; nothing outside this package touches them directly.
type Room struct {
	ID         string // short token, key of the registry and broadcast group
	ViewerID   string // longer token for the read-only viewer link
	Script     *script.State
	directors  map[*Client]struct{}
	viewers    map[*Client]struct{}
	lastActive time.Time
}

type RoomActivity struct {
	ID         string
	LastActive time.Time
}

// Registry is the authoritative room table. One mutex covers the room map,
// the viewer-id index, and every room's mutable state: room counts are small
// and operations are in-memory only, so correctness wins over throughput.
// Every mutating method returns the data a broadcast needs (snapshot, member
// list) so that no network write ever happens while the lock is held.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	viewerIndex map[string]string // viewer id -> room id
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		viewerIndex: make(map[string]string),
		now:         time.Now,
	}
}

// CreateRoom inserts a fresh room with the default script and returns its
// two identifiers. The ids come from independent namespaces: the short one
// names the room in director URLs and events, the long one only resolves
// through the viewer index.
func (r *Registry) CreateRoom() (roomID, viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		roomID = newRoomID()
		if _, taken := r.rooms[roomID]; !taken {
			break
		}
	}
	viewerID = newViewerToken()
	r.rooms[roomID] = &Room{
		ID:         roomID,
		ViewerID:   viewerID,
		Script:     script.NewState(),
		directors:  make(map[*Client]struct{}),
		viewers:    make(map[*Client]struct{}),
		lastActive: r.now(),
	}
	r.viewerIndex[viewerID] = roomID
	return roomID, viewerID
}

func (r *Registry) Exists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

func (r *Registry) RoomInfo(roomID string) (models.RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.RoomInfo{}, false
	}
	return models.RoomInfo{
		RoomID:    room.ID,
		ViewerID:  room.ViewerID,
		Directors: len(room.directors),
		Viewers:   len(room.viewers),
	}, true
}

// ResolveViewer maps a viewer token to its room id: one indirection through
// the viewer index, then the usual room lookup.
func (r *Registry) ResolveViewer(viewerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.viewerIndex[viewerID]
	if !ok {
		return "", false
	}
	if _, live := r.rooms[roomID]; !live {
		return "", false
	}
	return roomID, true
}

// Touch marks the room active. Heartbeats route here so an idle-but-open
// session outlives the inactivity window.
func (r *Registry) Touch(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	room.lastActive = r.now()
	return true
}

// Join adds the connection to the membership set for its self-declared role
// and returns the state for the joiner plus the updated counts and member
// list for the room-wide count broadcast.
func (r *Registry) Join(roomID string, c *Client, role Role) (models.StateUpdate, models.ConnectionCounts, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.StateUpdate{}, models.ConnectionCounts{}, nil, false
	}
	if role == RoleDirector {
		room.directors[c] = struct{}{}
	} else {
		room.viewers[c] = struct{}{}
	}
	room.lastActive = r.now()
	return stateLocked(room), countsLocked(room), membersLocked(room), true
}

// Leave removes the connection from whichever membership set contains it,
// scanning all rooms since disconnects carry no room id. A connection that
// is in no room is a no-op, not an error.
func (r *Registry) Leave(c *Client) (string, models.ConnectionCounts, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, room := range r.rooms {
		if _, ok := room.directors[c]; ok {
			delete(room.directors, c)
			return id, countsLocked(room), membersLocked(room), true
		}
		if _, ok := room.viewers[c]; ok {
			delete(room.viewers, c)
			return id, countsLocked(room), membersLocked(room), true
		}
	}
	return "", models.ConnectionCounts{}, nil, false
}

// Members marks the room active and returns its current connections; used
// for relay-only events that don't change script state.
func (r *Registry) Members(roomID string) ([]*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	room.lastActive = r.now()
	return membersLocked(room), true
}

// UpdateScript replaces the room's text wholesale.
func (r *Registry) UpdateScript(roomID, text string) (models.StateUpdate, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.StateUpdate{}, nil, false
	}
	room.Script.Replace(text)
	room.lastActive = r.now()
	return stateLocked(room), membersLocked(room), true
}

// ApplyPatch runs the all-or-nothing patch protocol against the room's
// current text. applied reports whether the patch committed; on failure the
// returned snapshot is the untouched authoritative state the caller must
// push to the whole room to force a resync.
func (r *Registry) ApplyPatch(roomID, patchText string) (applied bool, state models.StateUpdate, members []*Client, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, found := r.rooms[roomID]
	if !found {
		return false, models.StateUpdate{}, nil, false
	}
	applied = room.Script.ApplyPatch(patchText)
	if applied {
		room.lastActive = r.now()
	}
	return applied, stateLocked(room), membersLocked(room), true
}

// UpdateIndex applies the optional text replacement first, then the index
// move, then any bundled push-setting fields.
func (r *Registry) UpdateIndex(roomID string, u models.IndexUpdate) (models.StateUpdate, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.StateUpdate{}, nil, false
	}
	if u.RawText != nil {
		room.Script.Replace(*u.RawText)
	}
	room.Script.SetIndex(u.Index)
	if u.DisplayLines != nil || u.TransitionMode != nil {
		room.Script.MergePush(models.PushUpdate{
			DisplayLines:   u.DisplayLines,
			TransitionMode: u.TransitionMode,
		})
	}
	room.lastActive = r.now()
	return stateLocked(room), membersLocked(room), true
}

func (r *Registry) UpdateStyles(roomID string, styles map[string]any) (models.StateUpdate, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.StateUpdate{}, nil, false
	}
	room.Script.MergeStyles(styles)
	room.lastActive = r.now()
	return stateLocked(room), membersLocked(room), true
}

func (r *Registry) UpdatePushSettings(roomID string, u models.PushUpdate) (models.StateUpdate, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.StateUpdate{}, nil, false
	}
	room.Script.MergePush(u)
	room.lastActive = r.now()
	return stateLocked(room), membersLocked(room), true
}

// Scan snapshots every room's activity timestamp so the sweeper can decide
// expiry outside the lock.
func (r *Registry) Scan() []RoomActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomActivity, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomActivity{ID: id, LastActive: room.lastActive})
	}
	return out
}

// EvictExpired removes the candidate rooms that are still idle past the
// cutoff, re-checking under the lock so a room touched after the scan
// survives. The room and its viewer mapping go together, never one without
// the other. It returns the ids actually evicted.
func (r *Registry) EvictExpired(candidates []string, cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for _, id := range candidates {
		room, ok := r.rooms[id]
		if !ok || !room.lastActive.Before(cutoff) {
			continue
		}
		delete(r.viewerIndex, room.ViewerID)
		delete(r.rooms, id)
		evicted = append(evicted, id)
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// SetClock overrides the registry's time source (used in tests).
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func stateLocked(room *Room) models.StateUpdate {
	return models.StateUpdate{ScriptSnapshot: room.Script.Snapshot(), ViewerID: room.ViewerID}
}

func countsLocked(room *Room) models.ConnectionCounts {
	return models.ConnectionCounts{Directors: len(room.directors), Viewers: len(room.viewers)}
}

func membersLocked(room *Room) []*Client {
	members := make([]*Client, 0, len(room.directors)+len(room.viewers))
	for c := range room.directors {
		members = append(members, c)
	}
	for c := range room.viewers {
		members = append(members, c)
	}
	return members
}

// newRoomID is the short director-facing token: 8 hex chars of a v4 UUID.
func newRoomID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// newViewerToken is the longer viewer-facing token: 12 random bytes,
// URL-safe base64 (16 chars).
func newViewerToken() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
