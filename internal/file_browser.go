package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileItem is one entry of the upload picker.
type FileItem struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
}

type fileBrowser struct {
	dir    string
	items  []FileItem
	cursor int
}

func newFileBrowser(dir string) fileBrowser {
	if dir == "" {
		dir = getDefaultBrowsePath()
	}
	return fileBrowser{dir: dir}
}

func (b *fileBrowser) load(dir string) error {
	items, err := browseDirectory(dir)
	if err != nil {
		return err
	}
	b.dir = dir
	b.items = items
	b.cursor = 0
	return nil
}

func (b *fileBrowser) move(delta int) {
	next := b.cursor + delta
	if next < 0 || next >= len(b.items) {
		return
	}
	b.cursor = next
}

func (b *fileBrowser) selected() (FileItem, bool) {
	if b.cursor < 0 || b.cursor >= len(b.items) {
		return FileItem{}, false
	}
	return b.items[b.cursor], true
}

// browseDirectory lists dir with a parent entry first, then directories and
// files alphabetically. Hidden entries are skipped.
func browseDirectory(dir string) ([]FileItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	items := make([]FileItem, 0, len(entries)+1)
	for _, entry := range entries {
		if len(entry.Name()) > 0 && entry.Name()[0] == '.' {
			continue
		}

		item := FileItem{
			Name:  entry.Name(),
			Path:  filepath.Join(dir, entry.Name()),
			IsDir: entry.IsDir(),
		}
		if !entry.IsDir() {
			if info, err := entry.Info(); err == nil {
				item.Size = info.Size()
			}
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		return items[i].Name < items[j].Name
	})

	if parent := filepath.Dir(dir); parent != dir {
		items = append([]FileItem{{Name: "..", Path: parent, IsDir: true}}, items...)
	}
	return items, nil
}

// getDefaultBrowsePath prefers ~/Pictures, then ~/Downloads, then home.
func getDefaultBrowsePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		for _, sub := range []string{"Pictures", "Downloads"} {
			candidate := filepath.Join(home, sub)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		return home
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
