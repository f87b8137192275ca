// walfilestream.go is the file-backed ReplicationStream/Decoder pair: a
// durable stand-in for the real replication connection, built on the
// teacher's pkg/wal writer/reader instead of the in-memory
// MemoryStream/PassthroughDecoder pair. Useful for replaying a captured
// WAL segment (e.g. one a safekeeper archived) through the same ingest
// task that drives the live path.
package walingest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/bobboyms/pageserver/pkg/types"
	"github.com/bobboyms/pageserver/pkg/wal"
)

// FileWALDecoder decodes the single-entry chunks FileReplicationStream
// produces. Unlike PassthroughDecoder's gob round-trip, this speaks
// pkg/wal's actual header+CRC framing.
type FileWALDecoder struct{}

// Decode implements Decoder: xlogData is exactly one wal.WALEntry's raw
// bytes (header + payload), as produced by WriteRecordsToFile/
// FileReplicationStream.
func (FileWALDecoder) Decode(xlogData []byte) ([]Record, error) {
	if len(xlogData) < wal.HeaderSize {
		return nil, errors.Newf("walingest: WAL chunk shorter than header (%d bytes)", len(xlogData))
	}
	var header wal.WALHeader
	header.Decode(xlogData[:wal.HeaderSize])
	if header.Magic != wal.WALMagic {
		return nil, errors.New("walingest: bad WAL magic in chunk")
	}
	payload := xlogData[wal.HeaderSize:]
	if uint32(len(payload)) != header.PayloadLen {
		return nil, errors.Newf("walingest: WAL chunk payload length mismatch: header says %d, got %d", header.PayloadLen, len(payload))
	}
	if !wal.ValidateCRC32(payload, header.CRC32) {
		return nil, errors.New("walingest: WAL chunk CRC32C mismatch")
	}

	rec, err := DecodeWALEntry(&wal.WALEntry{Header: header, Payload: payload})
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

// WriteRecordsToFile archives records as a sequence of pkg/wal entries —
// the same durability discipline (bufio buffering plus a sync policy,
// §4.8's "periodically emit a feedback message" counterpart on the
// archive side) the teacher's WALWriter gives its own callers.
func WriteRecordsToFile(path string, records []Record) error {
	opts := wal.DefaultOptions()
	opts.SyncPolicy = wal.SyncEveryWrite
	w, err := wal.NewWALWriter(path, opts)
	if err != nil {
		return errors.Wrapf(err, "walingest: opening WAL archive %s", path)
	}
	defer w.Close()

	for _, rec := range records {
		entry, err := EncodeWALEntry(rec)
		if err != nil {
			return err
		}
		if err := w.WriteEntry(entry); err != nil {
			return errors.Wrapf(err, "walingest: appending record at lsn %s", rec.Lsn)
		}
	}
	return nil
}

// FileReplicationStream replays a WAL archive written by
// WriteRecordsToFile as a ReplicationStream: each on-disk entry becomes
// one XLogData message carrying that entry's raw bytes, which
// FileWALDecoder turns back into a single Record. Recv returns io.EOF
// once the archive is exhausted, standing in for "caught up to the
// primary" — callers typically stop the ingest task's Run loop on EOF.
type FileReplicationStream struct {
	path string

	mu     sync.Mutex
	reader *wal.WALReader
	fb     Feedback
	haveFB bool
}

// NewFileReplicationStream returns a stream that will read path, opened
// lazily on Open so the zero value can be constructed before a start LSN
// is known.
func NewFileReplicationStream(path string) *FileReplicationStream {
	return &FileReplicationStream{path: path}
}

func (s *FileReplicationStream) Open(_ context.Context, _ types.Lsn) error {
	r, err := wal.NewWALReader(s.path)
	if err != nil {
		return errors.Wrapf(err, "walingest: opening WAL archive %s", s.path)
	}
	s.mu.Lock()
	s.reader = r
	s.mu.Unlock()
	return nil
}

// Recv reads the next archived entry and returns it re-framed as an
// XLogData message. Returns io.EOF when the archive is exhausted.
func (s *FileReplicationStream) Recv(_ context.Context) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.reader.ReadEntry()
	if err == io.EOF {
		return Message{}, io.EOF
	}
	if err != nil {
		return Message{}, errors.Wrap(err, "walingest: reading WAL archive entry")
	}
	defer wal.ReleaseEntry(entry)

	var buf bytes.Buffer
	if _, err := entry.WriteTo(&buf); err != nil {
		return Message{}, err
	}
	return Message{Kind: XLogData, Data: buf.Bytes()}, nil
}

func (s *FileReplicationStream) SendStatus(_ context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fb = fb
	s.haveFB = true
	return nil
}

// LastStatus returns the most recent feedback sent, for tests to inspect.
func (s *FileReplicationStream) LastStatus() (Feedback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fb, s.haveFB
}

func (s *FileReplicationStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}
