package ingest

import (
	"sync"
)

// Status is the lifecycle of a queue item. Transitions only ever move
// forward: pending -> uploading -> processing -> completed | failed.
// A retry resets the item back to pending and starts over.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status will not change again without a retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item is a unit of work in the upload queue. It is either a single file
// or a whole folder; the two are distinct types rather than one struct
// with a mode flag, so folder-only fields cannot leak into file handling.
type Item interface {
	ItemID() string
	ItemName() string
	Snapshot() Snapshot

	begin() bool
	reset()
	setStatus(status Status)
	setProgress(progress int)
	setNotice(notice string)
	fail(err error)
	snapshotLocked() Snapshot
}

// Snapshot is an immutable view of an item's state, safe to hand to
// observers while the pipeline keeps mutating the item.
type Snapshot struct {
	ID         string
	Name       string
	Kind       string // "file" or "folder"
	Status     Status
	Progress   int // 0..100, never decreases within one attempt
	Err        error
	DocumentID string // set once the server accepted the upload (files only)
	Notice     string // transient hint, e.g. slow processing; never fails the item
}

type itemState struct {
	mu       sync.Mutex
	status   Status
	progress int
	err      error
	notice   string
}

// begin claims the item for processing. Only one worker may win; a second
// call while the item is in flight returns false.
func (s *itemState) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return false
	}
	s.status = StatusUploading
	return true
}

// reset returns a terminal item to pending so it can be retried. Progress
// and the previous error are cleared; only this item is touched.
func (s *itemState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusPending
	s.progress = 0
	s.err = nil
	s.notice = ""
}

func (s *itemState) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = status
	if status == StatusCompleted {
		s.progress = 100
	}
}

// setProgress clamps to 0..100 and never moves backwards. Live events and
// polled states may interleave out of order; the clamp keeps the bar sane.
func (s *itemState) setProgress(progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > s.progress {
		s.progress = progress
	}
}

func (s *itemState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = StatusFailed
	s.err = err
}

func (s *itemState) setNotice(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = notice
}

// FileUpload is a single file queued for upload.
type FileUpload struct {
	itemState

	ID       string
	Name     string
	Path     string // on-disk location; empty when Data is inline
	Data     []byte // inline content, used instead of Path when non-nil
	Size     int64
	MimeType string
	Category string

	documentID string
}

func (f *FileUpload) ItemID() string   { return f.ID }
func (f *FileUpload) ItemName() string { return f.Name }

func (f *FileUpload) setDocumentID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documentID = id
}

func (f *FileUpload) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *FileUpload) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         f.ID,
		Name:       f.Name,
		Kind:       "file",
		Status:     f.status,
		Progress:   f.progress,
		Err:        f.err,
		DocumentID: f.documentID,
		Notice:     f.notice,
	}
}

// ChildFile is one file inside a FolderUpload. RelPath is slash-separated
// and relative to the folder root, e.g. "notes/2024/jan.md".
type ChildFile struct {
	Name     string
	RelPath  string
	Path     string
	Data     []byte
	Size     int64
	MimeType string
}

// FolderUpload is a whole folder queued as one item. It occupies a single
// concurrency slot; its children upload sequentially inside that slot.
type FolderUpload struct {
	itemState

	ID       string
	Name     string
	Category string
	Children []ChildFile
}

func (f *FolderUpload) ItemID() string   { return f.ID }
func (f *FolderUpload) ItemName() string { return f.Name }

func (f *FolderUpload) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *FolderUpload) snapshotLocked() Snapshot {
	return Snapshot{
		ID:       f.ID,
		Name:     f.Name,
		Kind:     "folder",
		Status:   f.status,
		Progress: f.progress,
		Err:      f.err,
		Notice:   f.notice,
	}
}
