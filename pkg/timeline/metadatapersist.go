package timeline

import (
	"os"
	"path/filepath"

	"github.com/bobboyms/pageserver/pkg/metadata"
)

// SaveMetadata persists the timeline's current disk_consistent_lsn,
// prev_record_lsn, and ancestor pointer to its metadata file. §4.7
// describes the record and its create_new/fsync-parent-directory write
// path but not a resave cadence; checkpointInternal calls this once per
// pass so a reopened timeline's durable LSN never drifts far behind what
// a checkpoint already materialized. A no-op when Dir is empty, which
// only happens for Timelines constructed directly in tests without going
// through pkg/repository.
func (t *Timeline) SaveMetadata() error {
	if t.Dir == "" {
		return nil
	}

	m := metadata.TimelineMetadata{
		DiskConsistentLsn: t.DiskConsistentLsn(),
	}
	if t.ancestor != nil {
		m.HasAncestor = true
		m.AncestorTimeline = t.ancestor.ID
		m.AncestorLsn = t.ancestorLsn
	}
	if prev, ok := t.GetPrevRecordLsn(); ok {
		m.HasPrevLsn = true
		m.PrevRecordLsn = prev
	}

	path := filepath.Join(t.Dir, "metadata")
	_, err := os.Stat(path)
	firstSave := os.IsNotExist(err)
	return metadata.Save(path, m, firstSave)
}
