package script

import "github.com/sergi/go-diff/diffmatchpatch"

// dmp is stateless apart from its tuning knobs, so one instance is shared.
var dmp = diffmatchpatch.New()

// ApplyPatch applies a context-matching patch (diff-match-patch wire format)
// to the current text. Acceptance is all-or-nothing: the text is committed
// and derived fields recomputed only when every hunk locates its expected
// context and applies cleanly. On any parse error or hunk failure the state
// is left byte-identical and false is returned; the caller decides the
// resync policy.
func (s *State) ApplyPatch(patchText string) bool {
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false
	}
	newText, results := dmp.PatchApply(patches, s.RawText)
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	s.RawText = newText
	s.reparse()
	return true
}

// MakePatch produces the patch text that transforms oldText into newText,
// in the same wire format ApplyPatch consumes.
func MakePatch(oldText, newText string) string {
	return dmp.PatchToText(dmp.PatchMake(oldText, newText))
}
