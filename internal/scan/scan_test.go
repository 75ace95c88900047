package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mybrainlabs/recall/internal/store"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestScan_DefaultIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"meetings/weekly_sync.txt": "Alice: hello everyone",
		"videos/talk.vtt":          "WEBVTT\n\n00:00.000 --> 00:05.000\nwelcome",
		"notes/ideas.md":           "# Ideas",
		"archive.zip":              "not a transcript",
	})

	files, err := Scan(Config{RootDir: dir})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	found := make(map[string]FileInfo)
	for _, f := range files {
		found[f.RelPath] = f
	}
	for _, want := range []string{"meetings/weekly_sync.txt", "videos/talk.vtt", "notes/ideas.md"} {
		if _, ok := found[want]; !ok {
			t.Errorf("expected %q in scan results", want)
		}
	}
	if _, ok := found["archive.zip"]; ok {
		t.Error("archive.zip should not match default includes")
	}
}

func TestScan_SourceAndTitle(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"meetings/weekly_team-sync.txt": "Alice: hello",
		"videos/keynote.vtt":            "WEBVTT",
		"notes/reading.md":              "# Reading",
	})

	files, err := Scan(Config{RootDir: dir})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	bySource := make(map[string]store.SourceKind)
	byTitle := make(map[string]string)
	for _, f := range files {
		bySource[f.RelPath] = f.Source
		byTitle[f.RelPath] = f.Title
	}

	if bySource["meetings/weekly_team-sync.txt"] != store.SourceConversation {
		t.Errorf("txt source = %s, want conversation", bySource["meetings/weekly_team-sync.txt"])
	}
	if bySource["videos/keynote.vtt"] != store.SourceVideo {
		t.Errorf("vtt source = %s, want video", bySource["videos/keynote.vtt"])
	}
	if bySource["notes/reading.md"] != store.SourceNote {
		t.Errorf("md source = %s, want note", bySource["notes/reading.md"])
	}
	if byTitle["meetings/weekly_team-sync.txt"] != "weekly team sync" {
		t.Errorf("title = %q, want %q", byTitle["meetings/weekly_team-sync.txt"], "weekly team sync")
	}
}

func TestScan_ExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"keep.txt":        "keep me",
		"drafts/skip.txt": "skip me",
	})

	files, err := Scan(Config{RootDir: dir, Exclude: []string{"drafts/**"}})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	for _, f := range files {
		if f.RelPath == "drafts/skip.txt" {
			t.Error("exclude pattern drafts/** did not exclude drafts/skip.txt")
		}
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}
}

func TestScan_SkipsBinaryAndLargeFiles(t *testing.T) {
	dir := t.TempDir()

	binary := make([]byte, 100)
	binary[50] = 0x00
	if err := os.WriteFile(filepath.Join(dir, "audio.txt"), binary, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	big := make([]byte, 200)
	for i := range big {
		big[i] = 'A'
	}
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), big, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "small.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files, err := Scan(Config{RootDir: dir, MaxFileSize: 100})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if len(files) != 1 || files[0].RelPath != "small.txt" {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.RelPath
		}
		t.Errorf("expected only small.txt, got %v", names)
	}
}

func TestScan_SkipsDataDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"talk.txt":         "hello",
		".recall/meta.txt": "internal state",
	})

	files, err := Scan(Config{RootDir: dir})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	for _, f := range files {
		if f.RelPath == ".recall/meta.txt" {
			t.Error("files under .recall should be skipped")
		}
	}
}

func TestMatchesInclude(t *testing.T) {
	if !MatchesInclude("anything.txt", nil) {
		t.Error("empty include patterns should include everything")
	}
	if !MatchesInclude("meetings/sync.txt", []string{"**/*.txt"}) {
		t.Error("**/*.txt should match meetings/sync.txt")
	}
	if MatchesInclude("sync.wav", []string{"**/*.txt"}) {
		t.Error("**/*.txt should not match sync.wav")
	}
}

func TestMatchesExclude(t *testing.T) {
	if MatchesExclude("anything.txt", nil) {
		t.Error("empty exclude patterns should exclude nothing")
	}
	if !MatchesExclude("debug.log", []string{"*.log"}) {
		t.Error("*.log should match debug.log")
	}
}

func TestGuessSource_PathHints(t *testing.T) {
	if GuessSource("youtube/interview.txt") != store.SourceVideo {
		t.Error("youtube/ paths should be videos")
	}
	if GuessSource("journal/monday.txt") != store.SourceNote {
		t.Error("journal/ paths should be notes")
	}
	if GuessSource("calls/standup.txt") != store.SourceConversation {
		t.Error("plain txt should default to conversation")
	}
}
