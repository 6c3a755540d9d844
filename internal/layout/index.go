package layout

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ueforge/pak/internal/wire"
)

// minRecordLen is a lower bound on a serialized record plus its path
// prefix, used to reject absurd entry counts before allocating.
const minRecordLen = 5 + 8 + 8 + 8

// DecodeIndex parses the serialized index bytes. The footer supplies the
// revision 8 method registry; it is unused at other revisions.
func (l *Layout) DecodeIndex(b []byte, f *Footer) (*Index, error) {
	r := wire.NewReader(bytes.NewReader(b), int64(len(b)))

	mount, err := r.Path()
	if err != nil {
		return nil, fmt.Errorf("mount point: %w", err)
	}

	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}
	if int64(count) > r.Remaining()/minRecordLen {
		return nil, fmt.Errorf("entry count %d exceeds index size", count)
	}

	idx := &Index{
		MountPoint: mount,
		Entries:    make([]Entry, 0, count),
	}
	for i := uint32(0); i < count; i++ {
		path, err := r.Path()
		if err != nil {
			return nil, fmt.Errorf("entry %d path: %w", i, err)
		}
		e, err := l.readRecord(r, path, f)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, path, err)
		}
		idx.Entries = append(idx.Entries, e)
	}
	return idx, nil
}

// readRecord parses one entry record at the cursor.
func (l *Layout) readRecord(r *wire.Reader, path string, f *Footer) (Entry, error) {
	e := Entry{Path: path}

	var err error
	if e.Offset, err = r.Uint64(); err != nil {
		return e, err
	}
	if e.CompressedSize, err = r.Uint64(); err != nil {
		return e, err
	}
	if e.UncompressedSize, err = r.Uint64(); err != nil {
		return e, err
	}

	if l.hasMethod {
		code, err := r.Uint32()
		if err != nil {
			return e, err
		}
		if e.Method, err = l.methodForCode(code, &f.MethodNames); err != nil {
			return e, err
		}
	}

	if l.hasTimestamp {
		if e.Timestamp, err = r.Uint64(); err != nil {
			return e, err
		}
	}

	if err = r.Fill(e.Digest[:]); err != nil {
		return e, err
	}

	if l.hasBlockTable && e.Method != CompressionNone {
		count, err := r.Uint32()
		if err != nil {
			return e, err
		}
		if int64(count) > r.Remaining()/16 {
			return e, fmt.Errorf("block count %d exceeds index size", count)
		}
		e.Blocks = make([]Block, count)
		for i := range e.Blocks {
			if e.Blocks[i].Start, err = r.Uint64(); err != nil {
				return e, err
			}
			if e.Blocks[i].End, err = r.Uint64(); err != nil {
				return e, err
			}
			if l.relativeBlocks {
				e.Blocks[i].Start += e.Offset
				e.Blocks[i].End += e.Offset
			}
		}
	}

	if l.hasEncrypted {
		enc, err := r.Byte()
		if err != nil {
			return e, err
		}
		e.Encrypted = enc != 0
	}

	if l.hasBlockTable {
		if e.BlockSize, err = r.Uint32(); err != nil {
			return e, err
		}
	}

	// Revision 2 stores a compressed entry as a single whole-payload
	// stream; synthesize the one block newer revisions would record.
	if !l.hasBlockTable && e.Method != CompressionNone {
		e.Blocks = []Block{{Start: e.Offset, End: e.Offset + e.CompressedSize}}
	}

	return e, nil
}

// EncodeIndex serializes the index in this layout's record shape.
func (l *Layout) EncodeIndex(idx *Index, f *Footer) ([]byte, error) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, 0)

	w.Path(idx.MountPoint)
	if len(idx.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("entry count %d overflows index", len(idx.Entries))
	}
	w.Uint32(uint32(len(idx.Entries)))

	for i := range idx.Entries {
		e := &idx.Entries[i]
		w.Path(e.Path)
		if err := l.writeRecord(w, e, f); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeRecord serializes one entry record.
func (l *Layout) writeRecord(w *wire.Writer, e *Entry, f *Footer) error {
	if e.Method != CompressionNone && !l.hasMethod {
		return fmt.Errorf("revision %d cannot store compressed entries: %w", l.version, ErrUnsupportedFeature)
	}

	w.Uint64(e.Offset)
	w.Uint64(e.CompressedSize)
	w.Uint64(e.UncompressedSize)

	if l.hasMethod {
		code, err := l.codeForMethod(e.Method, &f.MethodNames)
		if err != nil {
			return err
		}
		w.Uint32(code)
	}

	if l.hasTimestamp {
		w.Uint64(e.Timestamp)
	}

	w.Bytes(e.Digest[:])

	if l.hasBlockTable && e.Method != CompressionNone {
		w.Uint32(uint32(len(e.Blocks)))
		for _, b := range e.Blocks {
			start, end := b.Start, b.End
			if l.relativeBlocks {
				start -= e.Offset
				end -= e.Offset
			}
			w.Uint64(start)
			w.Uint64(end)
		}
	}

	if l.hasEncrypted {
		w.Byte(0) // encrypted entries are never written
	}

	if l.hasBlockTable {
		w.Uint32(e.BlockSize)
	}

	return w.Err()
}
