package keys

import (
	"bytes"
	"testing"

	"github.com/bobboyms/pageserver/pkg/types"
)

func TestDataKey_RoundTrip(t *testing.T) {
	entity := types.RelTag(1, 2, 3, 0)
	key := EncodeDataKey(entity, 5, 1024)

	if len(key) != DataKeyLen {
		t.Fatalf("EncodeDataKey length = %d, want %d", len(key), DataKeyLen)
	}
	if !IsDataKey(key) {
		t.Error("IsDataKey should be true for a data key")
	}
	if IsMetadataKey(key) {
		t.Error("IsMetadataKey should be false for a data key")
	}

	gotEntity, gotBlock, gotLsn, err := DecodeDataKey(key)
	if err != nil {
		t.Fatalf("DecodeDataKey: %v", err)
	}
	if gotEntity.Compare(entity) != 0 || gotBlock != 5 || gotLsn != 1024 {
		t.Errorf("round trip mismatch: entity=%v block=%d lsn=%d", gotEntity, gotBlock, gotLsn)
	}
}

func TestMetadataKey_RoundTrip(t *testing.T) {
	entity := types.RelTag(1, 2, 3, 0)
	key := EncodeMetadataKey(entity, 2048)

	if len(key) != MetadataKeyLen {
		t.Fatalf("EncodeMetadataKey length = %d, want %d", len(key), MetadataKeyLen)
	}
	if !IsMetadataKey(key) {
		t.Error("IsMetadataKey should be true for a metadata key")
	}
	if IsDataKey(key) {
		t.Error("IsDataKey should be false for a metadata key")
	}

	gotEntity, gotLsn, err := DecodeMetadataKey(key)
	if err != nil {
		t.Fatalf("DecodeMetadataKey: %v", err)
	}
	if gotEntity.Compare(entity) != 0 || gotLsn != 2048 {
		t.Errorf("round trip mismatch: entity=%v lsn=%d", gotEntity, gotLsn)
	}
}

func TestDataKey_Ordering(t *testing.T) {
	entityA := types.RelTag(1, 1, 1, 0)
	entityB := types.RelTag(1, 1, 2, 0)

	keyLowEntity := EncodeDataKey(entityA, 0, 0xFFFFFFFFFFFFFFFF)
	keyHighEntity := EncodeDataKey(entityB, 0, 0)
	if bytes.Compare(keyLowEntity, keyHighEntity) >= 0 {
		t.Error("entity ordering should dominate block/lsn ordering")
	}

	keyLowBlock := EncodeDataKey(entityA, 0, 0xFFFFFFFFFFFFFFFF)
	keyHighBlock := EncodeDataKey(entityA, 1, 0)
	if bytes.Compare(keyLowBlock, keyHighBlock) >= 0 {
		t.Error("block ordering should dominate lsn ordering within an entity")
	}

	keyLowLsn := EncodeDataKey(entityA, 0, 0)
	keyHighLsn := EncodeDataKey(entityA, 0, 1)
	if bytes.Compare(keyLowLsn, keyHighLsn) >= 0 {
		t.Error("lsn ordering should hold within (entity, block)")
	}
}

func TestDataKeyRange(t *testing.T) {
	entity := types.RelTag(1, 1, 1, 0)
	lower, upper := DataKeyRange(entity, 0, 100)

	inRange := EncodeDataKey(entity, 0, 100)
	outOfRange := EncodeDataKey(entity, 0, 101)

	if bytes.Compare(inRange, lower) < 0 || bytes.Compare(inRange, upper) >= 0 {
		t.Error("lsn 100 should fall within [lower, upper)")
	}
	if bytes.Compare(outOfRange, upper) < 0 {
		t.Error("lsn 101 should fall at or past upper")
	}
}

func TestEntityBlockPrefix_MatchesEveryLsn(t *testing.T) {
	entity := types.RelTag(1, 1, 1, 0)
	prefix := EntityBlockPrefix(entity, 3)

	for _, lsn := range []types.Lsn{0, 8, 1 << 40} {
		key := EncodeDataKey(entity, 3, lsn)
		if !bytes.HasPrefix(key, prefix) {
			t.Errorf("data key for lsn %d does not share the entity/block prefix", lsn)
		}
	}
	otherBlock := EncodeDataKey(entity, 4, 0)
	if bytes.HasPrefix(otherBlock, prefix) {
		t.Error("a different block should not share the same entity/block prefix")
	}
}

func TestRelRangeBounds_ExcludesNonRel(t *testing.T) {
	_, till := RelRangeBounds(1, 1)
	nonRel := types.NonRelTag(types.NonRelCheckpoint, 0)

	if nonRel.Compare(till) <= 0 {
		t.Error("every non-relational tag should sort after the relation-fork range's upper bound")
	}
}

func TestMetadataPrefixBounds(t *testing.T) {
	entity := types.RelTag(5, 5, 5, 0)
	lower := MetadataPrefixLowerBound(entity)
	upper := MetadataPrefixUpperBound(entity)

	key := EncodeMetadataKey(entity, 12345)
	if bytes.Compare(key, lower) < 0 || bytes.Compare(key, upper) >= 0 {
		t.Error("a metadata key for this entity should fall within [lower, upper)")
	}

	next := types.RelTag(5, 5, 6, 0)
	nextKey := EncodeMetadataKey(next, 0)
	if bytes.Compare(nextKey, upper) < 0 {
		t.Error("the next entity's metadata key should fall at or past upper")
	}
}

func TestDecodeDataKey_RejectsWrongShape(t *testing.T) {
	if _, _, _, err := DecodeDataKey(EncodeMetadataKey(types.RelTag(1, 1, 1, 0), 0)); err == nil {
		t.Error("expected error decoding a metadata key as a data key")
	}
	if _, _, _, err := DecodeDataKey([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error decoding a too-short buffer")
	}
}

func TestDecodeMetadataKey_RejectsWrongShape(t *testing.T) {
	if _, _, err := DecodeMetadataKey(EncodeDataKey(types.RelTag(1, 1, 1, 0), 0, 0)); err == nil {
		t.Error("expected error decoding a data key as a metadata key")
	}
}
