// Package metadata implements the durable timeline metadata file of §4.7:
// a fixed 512-byte record per timeline, a serialized TimelineMetadata
// payload zero-padded to 508 bytes followed by a 4-byte little-endian
// CRC32C. The write path mirrors the teacher's CheckpointManager (atomic
// file write, one fsync) but follows the spec's create_new/fsync-parent-
// directory discipline exactly, since that's an explicit durability
// invariant rather than a style choice.
package metadata

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	pgerrors "github.com/bobboyms/pageserver/pkg/errors"
	"github.com/bobboyms/pageserver/pkg/types"
)

// RecordSize is the fixed on-disk size of a metadata file: 508 bytes of
// payload plus a 4-byte CRC32C.
const RecordSize = 512

// PayloadSize is the zero-padded payload region preceding the checksum.
const PayloadSize = RecordSize - 4

// castagnoli is the same CRC32 variant the teacher's pkg/wal uses for WAL
// entry checksums — reused here for the metadata file's checksum so the
// whole module has one checksum convention.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// TimelineMetadata is the persisted state of §3/§4.7: everything a
// Repository needs to reopen a timeline without replaying its whole
// history.
type TimelineMetadata struct {
	DiskConsistentLsn types.Lsn

	// PrevRecordLsn is only populated after a full flush (§3); HasPrevLsn
	// distinguishes "never recorded" from an explicit zero.
	PrevRecordLsn types.Lsn
	HasPrevLsn    bool

	// AncestorTimeline/AncestorLsn form the copy-on-write parent pointer.
	// HasAncestor is false for a root timeline.
	AncestorTimeline uuid.UUID
	AncestorLsn      types.Lsn
	HasAncestor      bool
}

// wireMetadata is the BSON-serializable shape of TimelineMetadata — kept
// separate so zero-value uuid.UUID doesn't need special-casing in BSON.
type wireMetadata struct {
	DiskConsistentLsn uint64 `bson:"disk_consistent_lsn"`
	PrevRecordLsn     uint64 `bson:"prev_record_lsn"`
	HasPrevLsn        bool   `bson:"has_prev_lsn"`
	AncestorTimeline  string `bson:"ancestor_timeline,omitempty"`
	AncestorLsn       uint64 `bson:"ancestor_lsn"`
	HasAncestor       bool   `bson:"has_ancestor"`
}

func (m TimelineMetadata) toWire() wireMetadata {
	w := wireMetadata{
		DiskConsistentLsn: uint64(m.DiskConsistentLsn),
		PrevRecordLsn:     uint64(m.PrevRecordLsn),
		HasPrevLsn:        m.HasPrevLsn,
		AncestorLsn:       uint64(m.AncestorLsn),
		HasAncestor:       m.HasAncestor,
	}
	if m.HasAncestor {
		w.AncestorTimeline = m.AncestorTimeline.String()
	}
	return w
}

func (w wireMetadata) toMetadata() (TimelineMetadata, error) {
	m := TimelineMetadata{
		DiskConsistentLsn: types.Lsn(w.DiskConsistentLsn),
		PrevRecordLsn:     types.Lsn(w.PrevRecordLsn),
		HasPrevLsn:        w.HasPrevLsn,
		AncestorLsn:       types.Lsn(w.AncestorLsn),
		HasAncestor:       w.HasAncestor,
	}
	if w.HasAncestor {
		id, err := uuid.Parse(w.AncestorTimeline)
		if err != nil {
			return TimelineMetadata{}, errors.Wrap(err, "metadata: parsing ancestor timeline id")
		}
		m.AncestorTimeline = id
	}
	return m, nil
}

// Encode serializes m into a 512-byte record: BSON payload zero-padded to
// PayloadSize, followed by the little-endian CRC32C of that padded
// payload.
func Encode(m TimelineMetadata) ([]byte, error) {
	payload, err := bson.Marshal(m.toWire())
	if err != nil {
		return nil, errors.Wrap(err, "metadata: marshaling payload")
	}
	if len(payload) > PayloadSize {
		return nil, errors.Newf("metadata: serialized payload (%d bytes) exceeds %d-byte budget", len(payload), PayloadSize)
	}

	record := make([]byte, RecordSize)
	copy(record, payload)

	sum := crc32.Checksum(record[:PayloadSize], castagnoli)
	binary.LittleEndian.PutUint32(record[PayloadSize:], sum)
	return record, nil
}

// Decode is the inverse of Encode. It verifies the CRC before attempting
// to deserialize and asserts disk_consistent_lsn is 8-byte aligned
// (§4.7's "assert disk_consistent_lsn is aligned").
func Decode(record []byte) (TimelineMetadata, error) {
	if len(record) != RecordSize {
		return TimelineMetadata{}, &pgerrors.CorruptionError{Reason: fmt.Sprintf("metadata: corrupt file: expected %d bytes, got %d", RecordSize, len(record))}
	}
	payload := record[:PayloadSize]
	wantSum := binary.LittleEndian.Uint32(record[PayloadSize:])
	gotSum := crc32.Checksum(payload, castagnoli)
	if gotSum != wantSum {
		return TimelineMetadata{}, &pgerrors.CorruptionError{Reason: fmt.Sprintf("metadata: CRC32C mismatch: got %x, want %x", gotSum, wantSum)}
	}

	var w wireMetadata
	if err := bson.Unmarshal(trimTrailingZeros(payload), &w); err != nil {
		return TimelineMetadata{}, errors.Wrap(err, "metadata: unmarshaling payload")
	}
	m, err := w.toMetadata()
	if err != nil {
		return TimelineMetadata{}, err
	}
	if !m.DiskConsistentLsn.IsAligned() {
		return TimelineMetadata{}, errors.Newf("metadata: disk_consistent_lsn %s is not 8-byte aligned", m.DiskConsistentLsn)
	}
	return m, nil
}

// trimTrailingZeros strips the zero padding after a valid BSON document so
// bson.Unmarshal doesn't choke on trailing garbage bytes. BSON documents
// are self-length-prefixed, so this only needs the first 4 bytes.
func trimTrailingZeros(payload []byte) []byte {
	if len(payload) < 4 {
		return payload
	}
	docLen := int(binary.LittleEndian.Uint32(payload[0:4]))
	if docLen <= 0 || docLen > len(payload) {
		return payload
	}
	return payload[:docLen]
}

// Save writes m to path. firstSave must be true exactly once per
// timeline — it opens with O_CREATE|O_EXCL and, on success, fsyncs the
// parent directory too, so a crash right after creation can't lose the
// directory entry (§4.7).
func Save(path string, m TimelineMetadata, firstSave bool) error {
	record, err := Encode(m)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY
	if firstSave {
		flags |= os.O_CREATE | os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if firstSave && os.IsExist(err) {
			return errors.Wrapf(err, "metadata: timeline metadata already exists at %s", path)
		}
		return errors.Wrapf(err, "metadata: opening %s", path)
	}

	if _, err := f.Write(record); err != nil {
		f.Close()
		return errors.Wrapf(err, "metadata: writing %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "metadata: fsync %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "metadata: closing %s", path)
	}

	if firstSave {
		dir, derr := os.Open(filepath.Dir(path))
		if derr != nil {
			return errors.Wrapf(derr, "metadata: opening parent dir of %s", path)
		}
		defer dir.Close()
		if err := dir.Sync(); err != nil {
			return errors.Wrapf(err, "metadata: fsync parent dir of %s", path)
		}
	}
	return nil
}

// Load reads and validates the metadata file at path.
func Load(path string) (TimelineMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TimelineMetadata{}, errors.Wrapf(err, "metadata: reading %s", path)
	}
	return Decode(data)
}
