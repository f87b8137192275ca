// Package remote is the remote-uploader collaborator of §6:
// schedule_timeline_upload(...), a best-effort asynchronous trigger fired
// after checkpoint/open. The transport is out of scope — this package
// only owns the fire-and-forget dispatch discipline (errors are logged,
// never surfaced to the caller that scheduled the upload) and ships one
// concrete Uploader, a local-filesystem copy built the way the teacher's
// CheckpointManager writes a checkpoint file: serialize, write to a .tmp
// path, rename into place.
package remote

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/bobboyms/pageserver/pkg/types"
)

// UploadRequest describes one timeline snapshot to ship elsewhere.
type UploadRequest struct {
	TimelineID        uuid.UUID
	Dir               string
	DiskConsistentLsn types.Lsn
}

// Uploader performs one upload. Implementations may take arbitrarily
// long; Scheduler runs them off the caller's goroutine.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) error
}

// Scheduler dispatches uploads asynchronously and best-effort: a failed
// upload is logged and dropped, never returned to whoever called
// ScheduleTimelineUpload (§6); nothing retries it.
type Scheduler struct {
	uploader Uploader
	wg       sync.WaitGroup
}

// NewScheduler builds a Scheduler around uploader.
func NewScheduler(uploader Uploader) *Scheduler {
	return &Scheduler{uploader: uploader}
}

// ScheduleTimelineUpload fires req off on its own goroutine and returns
// immediately.
func (s *Scheduler) ScheduleTimelineUpload(req UploadRequest) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.uploader.Upload(context.Background(), req); err != nil {
			log.Printf("remote: upload of timeline %s failed: %v", req.TimelineID, err)
		}
	}()
}

// Wait blocks until every scheduled upload has finished — tests and a
// clean shutdown path use this; the ingest/checkpoint loops never do.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// LocalUploader copies a timeline directory's files into destRoot/<id>,
// the local stand-in for a real remote object-store client: every file is
// written to a .tmp path and renamed into place, so a reader never
// observes a partially written file.
type LocalUploader struct {
	destRoot string
}

// NewLocalUploader returns an Uploader that mirrors timelines under
// destRoot.
func NewLocalUploader(destRoot string) *LocalUploader {
	return &LocalUploader{destRoot: destRoot}
}

func (u *LocalUploader) Upload(ctx context.Context, req UploadRequest) error {
	destDir := filepath.Join(u.destRoot, req.TimelineID.String())
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(req.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		if err := copyFileAtomic(filepath.Join(req.Dir, e.Name()), filepath.Join(destDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
