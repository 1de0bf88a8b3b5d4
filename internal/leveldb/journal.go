package leveldb

import (
	"encoding/binary"
	"fmt"
)

// Log files are split into fixed-size blocks. Each physical record has a
// 7-byte header: masked CRC-32C (4), payload length (2), record type (1).
// The checksum covers the type byte and the payload. A logical record that
// does not fit in the remainder of a block is split into FIRST, MIDDLE and
// LAST fragments.
const (
	journalBlockSize  = 32 * 1024
	journalHeaderSize = 7
)

const (
	recordZero   = 0
	recordFull   = 1
	recordFirst  = 2
	recordMiddle = 3
	recordLast   = 4
)

// readJournal splits a log file into logical records.
//
// A record cut short by the end of the file is treated as the end of the
// log, as happens when a producer is killed mid-write. Checksum failures and
// out-of-order fragments are reported as ErrCorrupt.
func readJournal(data []byte) ([][]byte, error) {
	var (
		records  [][]byte
		pending  []byte
		inRecord bool
	)
	pos := 0
	for pos < len(data) {
		left := journalBlockSize - pos%journalBlockSize
		if left < journalHeaderSize {
			pos += left
			continue
		}
		if pos+journalHeaderSize > len(data) {
			break
		}

		header := data[pos : pos+journalHeaderSize]
		sum := binary.LittleEndian.Uint32(header[0:4])
		length := int(binary.LittleEndian.Uint16(header[4:6]))
		typ := header[6]

		if typ == recordZero && length == 0 {
			// Preallocated, never-written space; skip the rest of the block.
			pos += left
			continue
		}
		if journalHeaderSize+length > left {
			return nil, fmt.Errorf("%w: log record at offset %d crosses block boundary", ErrCorrupt, pos)
		}
		end := pos + journalHeaderSize + length
		if end > len(data) {
			break
		}
		payload := data[pos+journalHeaderSize : end]
		if maskedCRC(header[6:7], payload) != sum {
			return nil, fmt.Errorf("%w: log record checksum mismatch at offset %d", ErrCorrupt, pos)
		}
		pos = end

		switch typ {
		case recordFull:
			if inRecord {
				return nil, fmt.Errorf("%w: full record inside fragmented record", ErrCorrupt)
			}
			records = append(records, payload)
		case recordFirst:
			if inRecord {
				return nil, fmt.Errorf("%w: first fragment inside fragmented record", ErrCorrupt)
			}
			pending = append([]byte(nil), payload...)
			inRecord = true
		case recordMiddle:
			if !inRecord {
				return nil, fmt.Errorf("%w: middle fragment without first", ErrCorrupt)
			}
			pending = append(pending, payload...)
		case recordLast:
			if !inRecord {
				return nil, fmt.Errorf("%w: last fragment without first", ErrCorrupt)
			}
			records = append(records, append(pending, payload...))
			pending, inRecord = nil, false
		default:
			return nil, fmt.Errorf("%w: unknown log record type %d", ErrCorrupt, typ)
		}
	}
	return records, nil
}
