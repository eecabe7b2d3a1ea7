// Package script holds one room's authoritative teleprompter state: the raw
// script text, the line list and bookmark index derived from it, the line
// currently pushed to viewers, and the presentation settings. It is pure
// in-memory data; callers are responsible for locking.
package script

import (
	"fmt"
	"strings"

	"prompter/internal/models"
)

// BookmarkMarker flags a line as a navigation bookmark when it is the first
// non-whitespace rune of the line.
const BookmarkMarker = '§'

// DefaultText is the script a fresh room starts with. It doubles as a quick
// reference for directors and seeds the bookmark list.
const DefaultText = `# Welcome to the teleprompter!

§ Director basics
*   Push a line with the arrow keys or by clicking its line number.
*   Press Enter to start editing, Esc to leave the editor.
*   Press Space outside the editor to black out or restore the display.

§ Editing and bookmarks
*   Lines starting with the § marker become bookmarks for quick jumps.
*   Edits from every director are merged live; nobody's typing is lost.

§ Display and push settings
*   Adjust font, colors, alignment and margins in the side panel.
*   Choose how many lines to show and how pushed lines transition.
*   Broadcast modes: manual, automatic latest line, or follow the cursor.

§ Sharing
*   The share button gives viewers a read-only link to this room.

# Ready when you are.`

type State struct {
	RawText      string
	Lines        []string
	Bookmarks    map[int]string
	CurrentIndex int
	Styles       map[string]any
	Push         models.PushSettings
}

// NewState returns a State seeded with the default script and settings.
func NewState() *State {
	s := &State{
		RawText: DefaultText,
		Styles: map[string]any{
			"font_size":      100,
			"fg_color":       "#FFFF00",
			"bg_color":       "#000000",
			"font_family":    "'Microsoft JhengHei', sans-serif",
			"text_align":     "left",
			"margin":         100,
			"vertical_align": "center",
			"font_variant":   "normal",
		},
		Push: models.PushSettings{
			DisplayLines:   1,
			TransitionMode: models.TransitionDirect,
			BroadcastMode:  models.BroadcastManual,
		},
	}
	s.reparse()
	return s
}

// Replace sets the raw text and recomputes every derived field. It always
// succeeds; a shrinking line count clamps CurrentIndex.
func (s *State) Replace(text string) {
	s.RawText = text
	s.reparse()
}

// SetIndex moves the pushed line. Out-of-range requests are ignored, so
// callers must not assume the requested index was applied; an empty script
// forces the index to 0.
func (s *State) SetIndex(i int) {
	if i >= 0 && i < len(s.Lines) {
		s.CurrentIndex = i
	} else if len(s.Lines) == 0 {
		s.CurrentIndex = 0
	}
}

// MergeStyles shallow-merges the partial style map. Unknown keys are kept.
func (s *State) MergeStyles(partial map[string]any) {
	for k, v := range partial {
		s.Styles[k] = v
	}
}

// MergePush applies a partial push-settings update. Each field is validated
// independently; invalid fields are dropped without aborting the others.
// It returns the names of the fields that were actually applied.
func (s *State) MergePush(u models.PushUpdate) []string {
	var applied []string
	if u.DisplayLines != nil && *u.DisplayLines >= 1 && *u.DisplayLines <= 10 {
		s.Push.DisplayLines = *u.DisplayLines
		applied = append(applied, "display_lines")
	}
	if u.TransitionMode != nil {
		switch *u.TransitionMode {
		case models.TransitionDirect, models.TransitionFade, models.TransitionScroll, models.TransitionScrollNormal:
			s.Push.TransitionMode = *u.TransitionMode
			applied = append(applied, "transition_mode")
		}
	}
	if u.BroadcastMode != nil {
		switch *u.BroadcastMode {
		case models.BroadcastManual, models.BroadcastAutomatic, models.BroadcastFollowCursor:
			s.Push.BroadcastMode = *u.BroadcastMode
			applied = append(applied, "broadcast_mode")
		}
	}
	return applied
}

// Snapshot returns a deep copy of the state, safe to hand to encoders after
// the owning lock is released.
func (s *State) Snapshot() models.ScriptSnapshot {
	lines := make([]string, len(s.Lines))
	copy(lines, s.Lines)
	bookmarks := make(map[int]string, len(s.Bookmarks))
	for i, label := range s.Bookmarks {
		bookmarks[i] = label
	}
	styles := make(map[string]any, len(s.Styles))
	for k, v := range s.Styles {
		styles[k] = v
	}
	return models.ScriptSnapshot{
		RawText:      s.RawText,
		Lines:        lines,
		Bookmarks:    bookmarks,
		CurrentIndex: s.CurrentIndex,
		Styles:       styles,
		Push:         s.Push,
	}
}

// reparse recomputes Lines and Bookmarks from RawText and re-clamps
// CurrentIndex. Every RawText mutation must go through here before the
// state is broadcast.
func (s *State) reparse() {
	s.Lines = splitLines(s.RawText)
	s.Bookmarks = make(map[int]string)
	for i, line := range s.Lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, string(BookmarkMarker)) {
			continue
		}
		label := strings.TrimSpace(strings.TrimLeft(trimmed, string(BookmarkMarker)))
		if label == "" {
			label = fmt.Sprintf("Bookmark %d", i+1)
		}
		s.Bookmarks[i] = label
	}
	if s.CurrentIndex >= len(s.Lines) {
		s.CurrentIndex = max(0, len(s.Lines)-1)
	}
}

// splitLines splits on line breaks without producing a phantom empty line
// for a single trailing newline. Empty text has no lines.
func splitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	return strings.Split(raw, "\n")
}
