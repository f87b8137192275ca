package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	m := TimelineMetadata{
		DiskConsistentLsn: 1024,
		PrevRecordLsn:     512,
		HasPrevLsn:        true,
		AncestorTimeline:  uuid.New(),
		AncestorLsn:       256,
		HasAncestor:       true,
	}

	record, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(record) != RecordSize {
		t.Fatalf("Encode produced %d bytes, want %d", len(record), RecordSize)
	}

	got, err := Decode(record)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestEncodeDecode_NoAncestor(t *testing.T) {
	m := TimelineMetadata{DiskConsistentLsn: 8}
	record, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(record)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.HasAncestor {
		t.Error("expected HasAncestor=false to round trip")
	}
	if got.DiskConsistentLsn != 8 {
		t.Errorf("DiskConsistentLsn = %d, want 8", got.DiskConsistentLsn)
	}
}

func TestDecode_RejectsWrongSize(t *testing.T) {
	if _, err := Decode(make([]byte, RecordSize-1)); err == nil {
		t.Error("expected error decoding a short record")
	}
	if _, err := Decode(make([]byte, RecordSize+1)); err == nil {
		t.Error("expected error decoding an oversized record")
	}
}

func TestDecode_RejectsChecksumMismatch(t *testing.T) {
	record, err := Encode(TimelineMetadata{DiskConsistentLsn: 8})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	record[0] ^= 0xFF // corrupt a payload byte without touching the CRC

	if _, err := Decode(record); err == nil {
		t.Error("expected error decoding a record with a tampered payload")
	}
}

func TestDecode_RejectsUnalignedLsn(t *testing.T) {
	record, err := Encode(TimelineMetadata{DiskConsistentLsn: 7})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(record); err == nil {
		t.Error("expected error decoding a record with an unaligned disk_consistent_lsn")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata")
	m := TimelineMetadata{DiskConsistentLsn: 16, PrevRecordLsn: 8, HasPrevLsn: true}

	if err := Save(path, m, true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != RecordSize {
		t.Errorf("on-disk size = %d, want %d", info.Size(), RecordSize)
	}
}

func TestSave_FirstSaveRejectsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata")
	m := TimelineMetadata{DiskConsistentLsn: 8}

	if err := Save(path, m, true); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(path, m, true); err == nil {
		t.Error("expected a second firstSave=true Save to fail: the file already exists")
	}
}

func TestSave_SubsequentSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata")
	if err := Save(path, TimelineMetadata{DiskConsistentLsn: 8}, true); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(path, TimelineMetadata{DiskConsistentLsn: 16}, false); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DiskConsistentLsn != 16 {
		t.Errorf("DiskConsistentLsn = %s, want 16", got.DiskConsistentLsn)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := Load(path); err == nil {
		t.Error("expected error loading a nonexistent metadata file")
	}
}

