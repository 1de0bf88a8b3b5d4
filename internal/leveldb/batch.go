package leveldb

import "fmt"

// Write batch layout: sequence (fixed64), count (fixed32), then count
// records of kind byte, length-prefixed key and, for values, a
// length-prefixed value.
const batchHeaderLen = 12

// batchRecord is one decoded write.
type batchRecord struct {
	seq   uint64
	kind  keyKind
	key   []byte
	value []byte
}

// decodeBatch decodes a write batch, assigning consecutive sequence numbers
// starting at the batch sequence.
func decodeBatch(data []byte) ([]batchRecord, error) {
	if len(data) < batchHeaderLen {
		return nil, fmt.Errorf("%w: write batch of %d bytes", ErrCorrupt, len(data))
	}
	d := &decoder{buf: data}
	seq := d.fixed64()
	count := d.fixed32()

	records := make([]batchRecord, 0, min(int(count), len(data)))
	for i := uint32(0); i < count; i++ {
		kind := keyKind(d.u8())
		rec := batchRecord{seq: seq + uint64(i), kind: kind}
		switch kind {
		case kindValue:
			rec.key = d.lenPrefixed()
			rec.value = d.lenPrefixed()
		case kindDeletion:
			rec.key = d.lenPrefixed()
		default:
			if d.err == nil {
				return nil, fmt.Errorf("%w: unknown batch record kind %d", ErrCorrupt, kind)
			}
		}
		if d.err != nil {
			return nil, d.err
		}
		records = append(records, rec)
	}
	if !d.empty() {
		return nil, fmt.Errorf("%w: %d trailing bytes in write batch", ErrCorrupt, len(d.buf))
	}
	return records, nil
}
