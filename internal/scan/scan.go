// Package scan discovers transcript files under a recordings directory,
// applying include/exclude globs and skipping anything that is not
// plausible text input.
package scan

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mybrainlabs/recall/internal/store"
)

// DefaultMaxFileSize is the largest transcript file ingested (8 MB). A
// full day of speech transcribes to well under a megabyte.
const DefaultMaxFileSize int64 = 8 << 20

// FileInfo holds metadata about one discovered transcript file.
type FileInfo struct {
	Path    string // absolute path on disk
	RelPath string // path relative to the scan root
	Size    int64
	ModTime time.Time        // stands in for the recording date
	Source  store.SourceKind // guessed from extension and path
	Title   string           // derived from the file name
}

// Config controls the behaviour of Scan.
type Config struct {
	RootDir     string
	Include     []string // glob patterns; empty means default transcript types
	Exclude     []string // glob patterns
	MaxFileSize int64    // 0 = DefaultMaxFileSize
}

// Scan traverses the directory tree rooted at cfg.RootDir and returns
// metadata for every transcript file that passes filtering. Binary files
// and oversized files are skipped silently.
func Scan(cfg Config) ([]FileInfo, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("scan: resolve root: %w", err)
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	include := cfg.Include
	if len(include) == 0 {
		include = DefaultIncludes
	}

	var files []FileInfo

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}

		if d.IsDir() {
			if shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if !MatchesInclude(relPath, include) {
			return nil
		}
		if MatchesExclude(relPath, cfg.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		files = append(files, FileInfo{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Source:  GuessSource(relPath),
			Title:   TitleFromPath(relPath),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: traversal: %w", err)
	}

	return files, nil
}

// isBinary reads the first 512 bytes of a file and checks for NUL bytes,
// which is a simple but effective heuristic for binary content.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true // treat unreadable files as binary
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}

	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}
	return false
}
