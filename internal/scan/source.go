package scan

import (
	"path/filepath"
	"strings"

	"github.com/mybrainlabs/recall/internal/store"
)

// GuessSource classifies a transcript file by extension and path. Caption
// formats are videos; markdown files are notes; everything else is treated
// as a conversation transcript.
func GuessSource(relPath string) store.SourceKind {
	lower := strings.ToLower(filepath.ToSlash(relPath))

	switch filepath.Ext(lower) {
	case ".srt", ".vtt":
		return store.SourceVideo
	case ".md":
		return store.SourceNote
	}

	for _, dir := range []string{"videos/", "video/", "youtube/"} {
		if strings.Contains(lower, dir) {
			return store.SourceVideo
		}
	}
	for _, dir := range []string{"notes/", "journal/"} {
		if strings.Contains(lower, dir) {
			return store.SourceNote
		}
	}
	return store.SourceConversation
}

// TitleFromPath derives a human-readable title from the file name:
// "weekly_team-sync.txt" becomes "weekly team sync".
func TitleFromPath(relPath string) string {
	base := filepath.Base(relPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.Join(strings.Fields(base), " ")
}
