package leveldb

import (
	"fmt"
	"maps"
	"slices"
)

// Version edit field tags.
const (
	tagComparator     = 1
	tagLogNumber      = 2
	tagNextFileNumber = 3
	tagLastSequence   = 4
	tagCompactPointer = 5
	tagDeletedFile    = 6
	tagNewFile        = 7
	tagPrevLogNumber  = 9
)

// numLevels bounds the level field of file edits.
const numLevels = 7

// tableMeta describes one live table file.
type tableMeta struct {
	level    int
	number   uint64
	size     uint64
	smallest []byte
	largest  []byte
}

type fileKey struct {
	level  int
	number uint64
}

// version is the store state described by a descriptor.
type version struct {
	comparator    string
	logNumber     uint64
	prevLogNumber uint64
	nextFile      uint64
	lastSequence  uint64
	files         map[fileKey]tableMeta
}

// tables returns the live tables ordered by level then file number.
func (v *version) tables() []tableMeta {
	keys := slices.SortedFunc(maps.Keys(v.files), func(a, b fileKey) int {
		if a.level != b.level {
			return a.level - b.level
		}
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		default:
			return 0
		}
	})
	out := make([]tableMeta, 0, len(keys))
	for _, k := range keys {
		out = append(out, v.files[k])
	}
	return out
}

// replayManifest applies every version edit found in a descriptor file.
func replayManifest(data []byte) (*version, error) {
	records, err := readJournal(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: descriptor holds no version edits", ErrCorrupt)
	}

	v := &version{files: make(map[fileKey]tableMeta)}
	for i, rec := range records {
		if err := v.apply(rec); err != nil {
			return nil, fmt.Errorf("version edit %d: %w", i, err)
		}
	}
	return v, nil
}

func (v *version) apply(edit []byte) error {
	d := &decoder{buf: edit}
	for !d.empty() {
		tag := d.uvarint()
		switch tag {
		case tagComparator:
			v.comparator = string(d.lenPrefixed())
		case tagLogNumber:
			v.logNumber = d.uvarint()
		case tagPrevLogNumber:
			v.prevLogNumber = d.uvarint()
		case tagNextFileNumber:
			v.nextFile = d.uvarint()
		case tagLastSequence:
			v.lastSequence = d.uvarint()
		case tagCompactPointer:
			if _, err := readLevel(d); err != nil {
				return err
			}
			d.lenPrefixed()
		case tagDeletedFile:
			level, err := readLevel(d)
			if err != nil {
				return err
			}
			number := d.uvarint()
			delete(v.files, fileKey{level: level, number: number})
		case tagNewFile:
			level, err := readLevel(d)
			if err != nil {
				return err
			}
			meta := tableMeta{
				level:    level,
				number:   d.uvarint(),
				size:     d.uvarint(),
				smallest: d.lenPrefixed(),
				largest:  d.lenPrefixed(),
			}
			if d.err == nil {
				v.files[fileKey{level: level, number: meta.number}] = meta
			}
		default:
			if d.err == nil {
				return fmt.Errorf("%w: unknown version edit tag %d", ErrCorrupt, tag)
			}
		}
		if d.err != nil {
			return d.err
		}
	}
	return nil
}

func readLevel(d *decoder) (int, error) {
	level := d.uvarint()
	if d.err != nil {
		return 0, d.err
	}
	if level >= numLevels {
		return 0, fmt.Errorf("%w: level %d out of range", ErrCorrupt, level)
	}
	return int(level), nil
}
