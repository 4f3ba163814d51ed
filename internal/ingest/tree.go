package ingest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Entry is one selected file before normalization. RelPath is
// slash-separated; its first element decides whether the entry is a loose
// file (single element) or belongs to a folder named after that element.
type Entry struct {
	RelPath string
	Path    string
	Data    []byte
	Size    int64
}

// Normalize turns a flat selection into queue items. Hidden entries are
// dropped at every depth, multi-level entries are grouped into one
// FolderUpload per root name, and when two roots share a name the later
// one wins while keeping the earlier position, which mirrors how repeated
// drops of the same folder behave.
func Normalize(entries []Entry, category string) []Item {
	type slot struct {
		item Item
	}
	order := make([]string, 0, len(entries))
	byRoot := make(map[string]*slot, len(entries))

	for _, entry := range entries {
		rel := path.Clean(strings.TrimPrefix(entry.RelPath, "/"))
		if rel == "." || rel == "" || IsHiddenPath(rel) {
			continue
		}
		parts := strings.Split(rel, "/")
		root := parts[0]

		if len(parts) == 1 {
			file := &FileUpload{
				ID:       newItemID(),
				Name:     root,
				Path:     entry.Path,
				Data:     entry.Data,
				Size:     entrySize(entry),
				MimeType: detectMime(root),
				Category: category,
			}
			file.status = StatusPending
			existing, ok := byRoot[root]
			if !ok {
				byRoot[root] = &slot{item: file}
				order = append(order, root)
				continue
			}
			existing.item = file
			continue
		}

		child := ChildFile{
			Name:     parts[len(parts)-1],
			RelPath:  strings.Join(parts[1:], "/"),
			Path:     entry.Path,
			Data:     entry.Data,
			Size:     entrySize(entry),
			MimeType: detectMime(parts[len(parts)-1]),
		}
		existing, ok := byRoot[root]
		if ok {
			if folder, isFolder := existing.item.(*FolderUpload); isFolder {
				folder.Children = append(folder.Children, child)
				continue
			}
		}
		folder := &FolderUpload{
			ID:       newItemID(),
			Name:     root,
			Category: category,
			Children: []ChildFile{child},
		}
		folder.status = StatusPending
		if ok {
			existing.item = folder
			continue
		}
		byRoot[root] = &slot{item: folder}
		order = append(order, root)
	}

	items := make([]Item, 0, len(order))
	for _, root := range order {
		items = append(items, byRoot[root].item)
	}
	return items
}

// Collect walks the given disk paths and normalizes them into queue
// items. A directory argument becomes one FolderUpload; a file argument
// becomes one FileUpload.
func Collect(paths []string, category string) ([]Item, error) {
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			entries = append(entries, Entry{
				RelPath: filepath.Base(p),
				Path:    p,
				Size:    info.Size(),
			})
			continue
		}
		root := filepath.Base(p)
		err = filepath.WalkDir(p, func(walked string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if walked == p {
				return nil
			}
			if IsHiddenName(d.Name()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(p, walked)
			if err != nil {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			entries = append(entries, Entry{
				RelPath: root + "/" + filepath.ToSlash(rel),
				Path:    walked,
				Size:    fi.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return Normalize(entries, category), nil
}

func entrySize(entry Entry) int64 {
	if entry.Data != nil {
		return int64(len(entry.Data))
	}
	return entry.Size
}

func detectMime(name string) string {
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(name))); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func newItemID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
