package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/service"
)

const (
	// DefaultConcurrency bounds how many queue items are in flight at
	// once. A folder counts as one slot no matter how many files it holds.
	DefaultConcurrency = 10

	slowProcessingAfter  = 30 * time.Second
	slowProcessingNotice = "processing is taking longer than expected"
)

// Pipeline drains a queue of upload items through the full chain: read,
// hash, extract, optionally encrypt, transport, then wait for server-side
// processing. Item failures never abort the run; each failure stays on
// its own item.
type Pipeline struct {
	client    *Client
	bridge    *Bridge
	box       *Cipherbox
	limit     int
	presigned bool
	notify    func(Snapshot)
	slowAfter time.Duration

	queue []Item
	byID  map[string]Item
}

type Option func(*Pipeline)

func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithCipherbox turns on client-side encryption for every item.
func WithCipherbox(box *Cipherbox) Option {
	return func(p *Pipeline) { p.box = box }
}

// WithBridge attaches a live event subscription; without it items
// complete as soon as the server accepts the upload.
func WithBridge(bridge *Bridge) Option {
	return func(p *Pipeline) { p.bridge = bridge }
}

// WithPresigned prefers the two-step direct-to-storage transport, falling
// back to multipart when the server cannot presign.
func WithPresigned() Option {
	return func(p *Pipeline) { p.presigned = true }
}

// WithNotify registers an observer called after every item state change.
func WithNotify(fn func(Snapshot)) Option {
	return func(p *Pipeline) { p.notify = fn }
}

func NewPipeline(client *Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:    client,
		limit:     DefaultConcurrency,
		slowAfter: slowProcessingAfter,
		byID:      make(map[string]Item),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue appends items in the given order. Items run in insertion order
// as concurrency slots free up.
func (p *Pipeline) Enqueue(items ...Item) {
	for _, item := range items {
		p.queue = append(p.queue, item)
		p.byID[item.ItemID()] = item
	}
}

// Snapshots returns the current state of every queued item in insertion
// order.
func (p *Pipeline) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(p.queue))
	for _, item := range p.queue {
		out = append(out, item.Snapshot())
	}
	return out
}

// Run processes every pending item and blocks until all reach a terminal
// state. The returned error only reflects context cancellation; per-item
// failures are reported through snapshots.
func (p *Pipeline) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(p.limit)
	for _, item := range p.queue {
		item := item
		g.Go(func() error {
			p.processItem(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Retry resets one failed item and runs it again. Other items are not
// touched.
func (p *Pipeline) Retry(ctx context.Context, itemID string) error {
	item, ok := p.byID[itemID]
	if !ok {
		return fmt.Errorf("unknown item %s", itemID)
	}
	if !item.Snapshot().Status.Terminal() {
		return fmt.Errorf("item %s is still in flight", itemID)
	}
	item.reset()
	p.emit(item)
	p.processItem(ctx, item)
	return nil
}

func (p *Pipeline) processItem(ctx context.Context, item Item) {
	if !item.begin() {
		return
	}
	p.emit(item)
	switch it := item.(type) {
	case *FileUpload:
		p.processFile(ctx, it)
	case *FolderUpload:
		p.processFolder(ctx, it)
	default:
		item.fail(fmt.Errorf("unsupported item type %T", item))
		p.emit(item)
	}
}

func (p *Pipeline) processFile(ctx context.Context, file *FileUpload) {
	sink := func(pct int) {
		file.setProgress(pct)
		p.emit(file)
	}
	payload := filePayload{
		Name:     file.Name,
		Path:     file.Path,
		Data:     file.Data,
		MimeType: file.MimeType,
		Category: file.Category,
	}
	result, err := p.uploadOne(ctx, payload, sink)
	if err != nil {
		file.fail(err)
		p.emit(file)
		return
	}
	file.setDocumentID(result.Document.ID)
	if result.DuplicateOf != "" {
		file.setNotice("identical content already exists")
	}
	file.setStatus(StatusProcessing)
	sink(50)
	if err := p.awaitProcessing(ctx, result.Document.ID, sink, file); err != nil {
		file.fail(err)
		p.emit(file)
		return
	}
	file.setStatus(StatusCompleted)
	p.emit(file)
}

// processFolder uploads children sequentially inside the folder's single
// concurrency slot. One bad child does not stop the rest; the folder ends
// failed if any child failed.
func (p *Pipeline) processFolder(ctx context.Context, folder *FolderUpload) {
	total := len(folder.Children)
	if total == 0 {
		folder.setStatus(StatusCompleted)
		p.emit(folder)
		return
	}
	var firstErr error
	for i, child := range folder.Children {
		base := i * 100 / total
		next := (i + 1) * 100 / total
		sink := func(pct int) {
			folder.setProgress(base + pct*(next-base)/100)
			p.emit(folder)
		}
		err := p.uploadChild(ctx, folder, child, sink)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", child.RelPath, err)
		}
		if ctx.Err() != nil {
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break
		}
	}
	if firstErr != nil {
		folder.fail(firstErr)
		p.emit(folder)
		return
	}
	folder.setStatus(StatusCompleted)
	p.emit(folder)
}

func (p *Pipeline) uploadChild(ctx context.Context, folder *FolderUpload, child ChildFile, sink func(int)) error {
	payload := filePayload{
		Name:     child.Name,
		Path:     child.Path,
		Data:     child.Data,
		MimeType: child.MimeType,
		Category: folder.Category,
	}
	result, err := p.uploadOne(ctx, payload, sink)
	if err != nil {
		logutil.GetLogger(ctx).Warn("folder child upload failed",
			zap.String("folder", folder.Name),
			zap.String("child", child.RelPath),
			zap.Error(err))
		return err
	}
	folder.setStatus(StatusProcessing)
	if err := p.awaitProcessing(ctx, result.Document.ID, sink, folder); err != nil {
		return err
	}
	sink(100)
	return nil
}

type filePayload struct {
	Name     string
	Path     string
	Data     []byte
	MimeType string
	Category string
}

// uploadOne runs the per-file chain up to and including transport. The
// sink receives this file's own 0..50 transport-phase progress.
func (p *Pipeline) uploadOne(ctx context.Context, payload filePayload, sink func(int)) (*service.UploadResult, error) {
	content := payload.Data
	if content == nil {
		var err error
		content, err = os.ReadFile(payload.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", payload.Path, err)
		}
	}
	sink(5)

	// The hash always covers the plaintext so the server can recognize
	// duplicates of encrypted and unencrypted uploads alike.
	hash := HashBytes(content)
	sink(10)

	text := ExtractText(ctx, payload.Name, content)
	sink(20)

	filename := payload.Name
	var envelope *model.EncryptionEnvelope
	if p.box != nil {
		sealed, maskedName, err := p.sealPayload(payload.Name, content, text)
		if err != nil {
			return nil, err
		}
		envelope = sealed.envelope
		content = sealed.content
		filename = maskedName
		text = ""
		sink(30)
	}

	result, err := p.transport(ctx, MultipartUpload{
		Filename:      filename,
		MimeType:      payload.MimeType,
		ContentHash:   hash,
		Category:      payload.Category,
		ExtractedText: text,
		Envelope:      envelope,
		Content:       content,
	})
	if err != nil {
		return nil, err
	}
	sink(50)
	return result, nil
}

type sealedPayload struct {
	content  []byte
	envelope *model.EncryptionEnvelope
}

// sealPayload encrypts content, filename and extracted text with
// independent salts. The server only ever sees a masked filename derived
// from the content hash.
func (p *Pipeline) sealPayload(name string, content []byte, text string) (*sealedPayload, string, error) {
	sealedContent, err := p.box.Seal(content)
	if err != nil {
		return nil, "", fmt.Errorf("encrypt content: %w", err)
	}
	sealedName, err := p.box.Seal([]byte(name))
	if err != nil {
		return nil, "", fmt.Errorf("encrypt filename: %w", err)
	}
	envelope := &model.EncryptionEnvelope{}
	envelope.FilenameCipher, envelope.FilenameSalt, envelope.FilenameIV = sealedName.encode()
	_, envelope.ContentSalt, envelope.ContentIV = sealedContent.encode()
	if text != "" {
		sealedText, err := p.box.Seal([]byte(text))
		if err != nil {
			return nil, "", fmt.Errorf("encrypt text: %w", err)
		}
		envelope.TextCipher, envelope.TextSalt, envelope.TextIV = sealedText.encode()
	}
	masked := "encrypted-" + HashBytes(content)[:12]
	return &sealedPayload{content: sealedContent.Ciphertext, envelope: envelope}, masked, nil
}

// transport sends the bytes either through the single multipart call or
// the presigned three-step. A server that cannot presign quietly falls
// back to multipart.
func (p *Pipeline) transport(ctx context.Context, up MultipartUpload) (*service.UploadResult, error) {
	if !p.presigned {
		return p.client.Upload(ctx, up)
	}
	issued, err := p.client.IssueUploadURL(ctx, up.Filename, up.MimeType, up.ContentHash, int64(len(up.Content)))
	if err != nil {
		logutil.GetLogger(ctx).Info("presigned upload unavailable, using multipart", zap.Error(err))
		return p.client.Upload(ctx, up)
	}
	if err := p.client.PutPresigned(ctx, issued.UploadURL, up.MimeType, up.Content); err != nil {
		return nil, err
	}
	return p.client.ConfirmUpload(ctx, issued.SessionID, up.Category, up.ExtractedText, up.Envelope)
}

// awaitProcessing follows server-side processing for one document until a
// terminal event. Server progress 0..100 maps onto the item's 50..100
// half. Silence past the threshold raises a notice and falls back to
// polling, but never fails the item on its own.
func (p *Pipeline) awaitProcessing(ctx context.Context, docID string, sink func(int), item Item) error {
	if p.bridge == nil {
		return p.pollUntilDone(ctx, docID, sink)
	}
	ch := p.bridge.Watch(docID)
	defer p.bridge.Unwatch(docID)

	// The document id only exists after transport, so a terminal event can
	// race ahead of the watch registration and be dropped. Check the record
	// once before waiting on events.
	if done, err := p.pollOnce(ctx, docID, sink); done {
		return err
	} else if err != nil {
		logutil.GetLogger(ctx).Warn("document status check failed",
			zap.String("document_id", docID), zap.Error(err))
	}

	timer := time.NewTimer(p.slowAfter)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				// Socket is gone; the document keeps processing server
				// side, so fall back to polling.
				return p.pollUntilDone(ctx, docID, sink)
			}
			item.setNotice("")
			switch event.Type {
			case model.EventProcessingUpdate:
				sink(50 + event.Progress/2)
			case model.EventEmbeddingsReady:
				sink(100)
				return nil
			case model.EventEmbeddingsFailed:
				return errors.New(event.Err)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.slowAfter)
		case <-timer.C:
			item.setNotice(slowProcessingNotice)
			p.emit(item)
			done, err := p.pollOnce(ctx, docID, sink)
			if err != nil || done {
				item.setNotice("")
				return err
			}
			timer.Reset(p.slowAfter)
		}
	}
}

const pollInterval = 5 * time.Second

func (p *Pipeline) pollUntilDone(ctx context.Context, docID string, sink func(int)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		done, err := p.pollOnce(ctx, docID, sink)
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce checks the document record directly; done means it reached a
// terminal processing state.
func (p *Pipeline) pollOnce(ctx context.Context, docID string, sink func(int)) (bool, error) {
	doc, err := p.client.GetDocument(ctx, docID)
	if err != nil {
		return false, err
	}
	switch doc.ProcessingStatus {
	case model.ProcessingCompleted:
		sink(100)
		return true, nil
	case model.ProcessingFailed:
		if doc.ProcessingError != "" {
			return true, errors.New(doc.ProcessingError)
		}
		return true, errors.New("processing failed")
	default:
		return false, nil
	}
}

func (p *Pipeline) emit(item Item) {
	if p.notify == nil {
		return
	}
	p.notify(item.Snapshot())
}
