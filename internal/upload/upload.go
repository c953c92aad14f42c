// Package upload implements the file-ingestion pipeline: multipart batches
// are staged, validated, normalized and committed to durable storage as a
// unit. A failure anywhere rolls back every file of the batch.
package upload

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	fileutil "taskdesk/internal/file"
	"taskdesk/internal/task"
)

// Multipart field names the pipeline accepts.
const (
	FieldBeforeImage   = "beforeImage"
	FieldAfterImage    = "afterImage"
	FieldAttachedFile  = "attachedFile"
	FieldCompletedFile = "completedFile"
)

const (
	defaultMaxRequestBytes  = 200 << 20
	defaultMaxImageBytes    = 10 << 20
	defaultMaxWidth         = 1280
	defaultQuality          = 72
	defaultTempCleanupDelay = 800 * time.Millisecond

	maxAttachedFiles     = 10
	maxCompletedFiles    = 15
	transcodeParallelism = 4
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},

	"application/pdf":               {},
	"application/msword":            {},
	"application/vnd.ms-excel":      {},
	"application/vnd.ms-powerpoint": {},
	"application/zip":               {},
	"application/x-rar-compressed":  {},

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
}

var fieldLimits = map[string]int{
	FieldBeforeImage:   1,
	FieldAfterImage:    1,
	FieldAttachedFile:  maxAttachedFiles,
	FieldCompletedFile: maxCompletedFiles,
}

// Options configures a Pipeline. Zero values fall back to the defaults, so
// tests can tighten individual limits.
type Options struct {
	TempDir          string
	FinalDir         string
	MaxRequestBytes  int64
	MaxImageBytes    int64
	MaxWidth         int
	Quality          int
	TempCleanupDelay time.Duration
}

// Pipeline processes ingestion batches. Safe for concurrent use; all batch
// state is request-scoped.
type Pipeline struct {
	tempDir   string
	finalDir  string
	maxReq    int64
	maxImage  int64
	maxWidth  int
	quality   int
	tempDelay time.Duration
}

func New(opts Options) (*Pipeline, error) {
	if opts.TempDir == "" || opts.FinalDir == "" {
		return nil, fmt.Errorf("upload pipeline needs temp and final dirs")
	}
	if err := fileutil.EnsureDir(opts.TempDir); err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDir(opts.FinalDir); err != nil {
		return nil, err
	}
	p := &Pipeline{
		tempDir:   opts.TempDir,
		finalDir:  opts.FinalDir,
		maxReq:    opts.MaxRequestBytes,
		maxImage:  opts.MaxImageBytes,
		maxWidth:  opts.MaxWidth,
		quality:   opts.Quality,
		tempDelay: opts.TempCleanupDelay,
	}
	if p.maxReq <= 0 {
		p.maxReq = defaultMaxRequestBytes
	}
	if p.maxImage <= 0 {
		p.maxImage = defaultMaxImageBytes
	}
	if p.maxWidth <= 0 {
		p.maxWidth = defaultMaxWidth
	}
	if p.quality <= 0 {
		p.quality = defaultQuality
	}
	if p.tempDelay <= 0 {
		p.tempDelay = defaultTempCleanupDelay
	}
	return p, nil
}

// FinalDir exposes the durable storage directory for static serving.
func (p *Pipeline) FinalDir() string { return p.finalDir }

// Result maps the batch's fields to their produced descriptors. Fields that
// carried no file stay nil, so callers can tell "not sent" from "cleared".
type Result struct {
	BeforeImage    *task.FileDescriptor
	AfterImage     *task.FileDescriptor
	AttachedFiles  []task.FileDescriptor
	CompletedFiles []task.FileDescriptor

	committed []string
}

// Empty reports whether the batch produced no files at all.
func (r *Result) Empty() bool {
	return r.BeforeImage == nil && r.AfterImage == nil &&
		len(r.AttachedFiles) == 0 && len(r.CompletedFiles) == 0
}

// Discard removes every committed file of the batch. Callers use it when a
// step after ingestion fails, so a task never references a half-applied set.
func (r *Result) Discard() {
	for _, path := range r.committed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("discard committed upload failed")
		}
	}
	r.committed = nil
}

// batch tracks request-scoped rollback state. Committed finals are appended
// under a mutex because slice fields transcode in parallel.
type batch struct {
	p     *Pipeline
	stamp int64

	mu     sync.Mutex
	temps  []string
	finals []string
}

func (b *batch) addTemp(path string) {
	b.mu.Lock()
	b.temps = append(b.temps, path)
	b.mu.Unlock()
}

func (b *batch) addFinal(path string) {
	b.mu.Lock()
	b.finals = append(b.finals, path)
	b.mu.Unlock()
}

// Process validates and commits one ingestion batch. The returned error is
// one of the sentinel errors of this package or a *StorageError; in every
// error case no file of the batch remains in the final directory.
func (p *Pipeline) Process(ctx context.Context, files map[string][]*multipart.FileHeader) (*Result, error) {
	if err := p.gate(files); err != nil {
		return nil, err
	}

	b := &batch{p: p, stamp: time.Now().UnixMilli()}
	defer b.scheduleTempCleanup()

	res := &Result{}
	var err error
	if res.BeforeImage, err = b.processSingle(files[FieldBeforeImage], "before"); err != nil {
		return nil, b.rollback(err)
	}
	if res.AfterImage, err = b.processSingle(files[FieldAfterImage], "after"); err != nil {
		return nil, b.rollback(err)
	}
	if res.AttachedFiles, err = b.processMany(ctx, files[FieldAttachedFile], "attach"); err != nil {
		return nil, b.rollback(err)
	}
	if res.CompletedFiles, err = b.processMany(ctx, files[FieldCompletedFile], "complete"); err != nil {
		return nil, b.rollback(err)
	}

	res.committed = append([]string(nil), b.finals...)
	return res, nil
}

// gate applies the cheap whole-batch checks before any transcoding work.
func (p *Pipeline) gate(files map[string][]*multipart.FileHeader) error {
	var total int64
	for field, headers := range files {
		limit, ok := fieldLimits[field]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		if len(headers) > limit {
			return fmt.Errorf("%w: %q allows at most %d", ErrTooManyFiles, field, limit)
		}
		for _, h := range headers {
			mt := mediaType(h)
			if _, ok := allowedTypes[mt]; !ok {
				return fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, h.Filename, mt)
			}
			total += h.Size
		}
	}
	if total > p.maxReq {
		return fmt.Errorf("%w: request of %d bytes exceeds %d", ErrPayloadTooLarge, total, p.maxReq)
	}
	return nil
}

func (b *batch) processSingle(headers []*multipart.FileHeader, prefix string) (*task.FileDescriptor, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	return b.processOne(headers[0], prefix)
}

func (b *batch) processMany(_ context.Context, headers []*multipart.FileHeader, prefix string) ([]task.FileDescriptor, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make([]task.FileDescriptor, len(headers))
	var g errgroup.Group
	g.SetLimit(transcodeParallelism)
	for i, h := range headers {
		i, h := i, h
		g.Go(func() error {
			d, err := b.processOne(h, fmt.Sprintf("%s-%d", prefix, i+1))
			if err != nil {
				return err
			}
			out[i] = *d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *batch) processOne(h *multipart.FileHeader, prefix string) (*task.FileDescriptor, error) {
	p := b.p
	mt := mediaType(h)
	isImage := strings.HasPrefix(mt, "image/")
	original := RecoverName(h.Filename)

	// Checked after mimetype triage, before any transcode work.
	if isImage && h.Size > p.maxImage {
		return nil, fmt.Errorf("%w: image %q of %d bytes exceeds %d", ErrPayloadTooLarge, original, h.Size, p.maxImage)
	}

	stagedPath, err := b.stage(h)
	if err != nil {
		return nil, err
	}

	if isImage {
		data, err := p.normalizeImage(stagedPath)
		if err != nil {
			return nil, err
		}
		stored := imageStoredName(prefix, b.stamp)
		finalPath := filepath.Join(p.finalDir, stored)
		if err := fileutil.WriteAtomic(finalPath, data); err != nil {
			return nil, &StorageError{Op: "commit", Path: finalPath, Err: err}
		}
		b.addFinal(finalPath)
		return &task.FileDescriptor{
			Original: original,
			Stored:   stored,
			Mimetype: canonicalImageMime,
			Size:     int64(len(data)),
		}, nil
	}

	// Documents are relocated as-is under a sanitized, collision-free name.
	stored := documentStoredName(prefix, original, b.stamp)
	finalPath := filepath.Join(p.finalDir, stored)
	if err := fileutil.Move(stagedPath, finalPath); err != nil {
		return nil, &StorageError{Op: "commit", Path: finalPath, Err: err}
	}
	b.addFinal(finalPath)
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, &StorageError{Op: "stat", Path: finalPath, Err: err}
	}
	return &task.FileDescriptor{
		Original: original,
		Stored:   stored,
		Mimetype: mt,
		Size:     info.Size(),
	}, nil
}

// stage copies the upload into the temp dir before any processing touches it.
func (b *batch) stage(h *multipart.FileHeader) (string, error) {
	src, err := h.Open()
	if err != nil {
		return "", &StorageError{Op: "open upload", Path: h.Filename, Err: err}
	}
	defer func() { _ = src.Close() }()

	stagedPath := filepath.Join(b.p.tempDir, fmt.Sprintf("stage-%d-%s", b.stamp, randomSuffix()))
	if _, err := fileutil.CopyFrom(stagedPath, src); err != nil {
		return "", &StorageError{Op: "stage", Path: stagedPath, Err: err}
	}
	b.addTemp(stagedPath)
	return stagedPath, nil
}

// rollback unwinds every final file already committed by this batch and
// passes the original error through.
func (b *batch) rollback(cause error) error {
	b.mu.Lock()
	finals := append([]string(nil), b.finals...)
	b.finals = nil
	b.mu.Unlock()

	for _, path := range finals {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("rollback of committed upload failed")
		}
	}
	log.Warn().
		Int("rolled_back", len(finals)).
		Int64("batch_stamp", b.stamp).
		Err(cause).
		Msg("ingestion batch rolled back")
	return cause
}

// scheduleTempCleanup removes staged files after a short delay, tolerating
// any lingering handles. Best-effort: a leaked temp file is a hygiene issue,
// not a data-integrity one.
func (b *batch) scheduleTempCleanup() {
	b.mu.Lock()
	temps := append([]string(nil), b.temps...)
	b.temps = nil
	b.mu.Unlock()
	if len(temps) == 0 {
		return
	}
	time.AfterFunc(b.p.tempDelay, func() {
		for _, path := range temps {
			_ = os.Remove(path)
		}
	})
}

func mediaType(h *multipart.FileHeader) string {
	ct := h.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
