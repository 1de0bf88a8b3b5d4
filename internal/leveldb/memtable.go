package leveldb

import "slices"

type memEntry struct {
	ikey  []byte
	value []byte
}

// memTable holds log-replayed entries sorted by internal key.
type memTable struct {
	entries []memEntry
	sorted  bool
}

func (m *memTable) add(rec batchRecord) {
	m.entries = append(m.entries, memEntry{
		ikey:  makeInternalKey(nil, rec.key, rec.seq, rec.kind),
		value: rec.value,
	})
	m.sorted = false
}

func (m *memTable) len() int {
	return len(m.entries)
}

func (m *memTable) sort() {
	if m.sorted {
		return
	}
	slices.SortStableFunc(m.entries, func(a, b memEntry) int {
		return compareInternalKeys(a.ikey, b.ikey)
	})
	m.sorted = true
}

func (m *memTable) iterator() internalIterator {
	m.sort()
	return &memIterator{entries: m.entries, pos: -1}
}

type memIterator struct {
	entries []memEntry
	pos     int
}

func (it *memIterator) next() bool {
	if it.pos < len(it.entries) {
		it.pos++
	}
	return it.pos < len(it.entries)
}

func (it *memIterator) key() []byte   { return it.entries[it.pos].ikey }
func (it *memIterator) value() []byte { return it.entries[it.pos].value }
func (it *memIterator) err() error    { return nil }
