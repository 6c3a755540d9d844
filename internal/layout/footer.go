package layout

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ueforge/pak/internal/sha1sum"
	"github.com/ueforge/pak/internal/wire"
)

const (
	methodNameCount = 4
	methodNameLen   = 32
)

// DefaultMethodNames is the registry written into revision 8 footers.
var DefaultMethodNames = [methodNameCount]string{"none", "zlib", "", ""}

// Footer is the parsed trailing footer.
type Footer struct {
	Version     Version
	IndexOffset uint64
	IndexSize   uint64

	// IndexDigest is meaningful when the layout has one (revision >= 2).
	IndexDigest sha1sum.Digest

	// KeyGUID and EncryptedIndex exist from revision 7. Encrypted archives
	// are not supported; the GUID is carried so rewrites stay byte-exact.
	KeyGUID        [16]byte
	EncryptedIndex bool

	// MethodNames is the revision 8 compression registry.
	MethodNames [methodNameCount]string
}

// parseFooter decodes b, which must be exactly l.footerSize bytes, using
// this layout's field order. magicOK reports whether the magic matched;
// when it does not, the rest of the Footer is meaningless.
func (l *Layout) parseFooter(b []byte) (f Footer, magicOK bool, err error) {
	r := wire.NewReader(bytes.NewReader(b), int64(len(b)))

	if l.hasFooterGUID {
		if err = r.Fill(f.KeyGUID[:]); err != nil {
			return f, false, err
		}
		var enc byte
		if enc, err = r.Byte(); err != nil {
			return f, false, err
		}
		f.EncryptedIndex = enc != 0
	}

	magic, err := r.Uint32()
	if err != nil {
		return f, false, err
	}
	if magic != Magic {
		return f, false, nil
	}

	var version uint32
	if version, err = r.Uint32(); err != nil {
		return f, true, err
	}
	f.Version = Version(version)
	if f.IndexOffset, err = r.Uint64(); err != nil {
		return f, true, err
	}
	if f.IndexSize, err = r.Uint64(); err != nil {
		return f, true, err
	}

	if l.hasIndexDigest {
		if err = r.Fill(f.IndexDigest[:]); err != nil {
			return f, true, err
		}
	}

	if l.hasRegistry {
		name := make([]byte, methodNameLen)
		for i := range f.MethodNames {
			if err = r.Fill(name); err != nil {
				return f, true, err
			}
			f.MethodNames[i] = strings.TrimRight(string(name), "\x00")
		}
	}

	return f, true, nil
}

// WriteFooter serializes f in this layout's field order.
func (l *Layout) WriteFooter(w *wire.Writer, f *Footer) error {
	if l.hasFooterGUID {
		w.Bytes(f.KeyGUID[:])
		w.Byte(0) // encrypted index, never set
	}

	w.Uint32(Magic)
	w.Uint32(uint32(l.version))
	w.Uint64(f.IndexOffset)
	w.Uint64(f.IndexSize)

	if l.hasIndexDigest {
		w.Bytes(f.IndexDigest[:])
	}

	if l.hasRegistry {
		for _, name := range f.MethodNames {
			padded := make([]byte, methodNameLen)
			copy(padded, name)
			w.Bytes(padded)
		}
	}

	return w.Err()
}

// Bootstrap locates and parses the footer of an archive of fileLen bytes.
//
// The version field lives inside the footer, whose size depends on the
// version, so candidate layouts are tried newest to oldest. A candidate is
// accepted when its magic matches, the embedded version maps back to the
// attempted footer size, and index offset + index size account for exactly
// the bytes before the footer.
func Bootstrap(src io.ReaderAt, fileLen int64) (*Layout, Footer, error) {
	sawMagic := false
	tried := make(map[int64]bool, len(revisions))

	for v := MaxVersion; v >= MinVersion; v-- {
		candidate := &revisions[v-1]
		size := candidate.footerSize
		if tried[size] || fileLen < size {
			continue
		}
		tried[size] = true

		buf := make([]byte, size)
		if _, err := src.ReadAt(buf, fileLen-size); err != nil {
			return nil, Footer{}, fmt.Errorf("read footer candidate (%d bytes): %w", size, err)
		}

		f, magicOK, err := candidate.parseFooter(buf)
		if err != nil || !magicOK {
			continue
		}
		sawMagic = true

		actual, err := ForVersion(f.Version)
		if err != nil || actual.footerSize != size {
			continue
		}
		if f.IndexOffset+f.IndexSize != uint64(fileLen-size) {
			continue
		}

		if f.EncryptedIndex {
			return nil, Footer{}, fmt.Errorf("encrypted index: %w", ErrUnsupportedFeature)
		}
		return actual, f, nil
	}

	if sawMagic {
		return nil, Footer{}, fmt.Errorf("footer magic found but index offset/size inconsistent: %w", ErrCorruptFooter)
	}
	return nil, Footer{}, fmt.Errorf("no footer candidate matched: %w", ErrUnsupportedVersion)
}

// methodForCode resolves a record's method field against the registry.
func (l *Layout) methodForCode(code uint32, names *[methodNameCount]string) (Compression, error) {
	if !l.hasRegistry {
		return Compression(code), nil
	}
	if code >= methodNameCount {
		return 0, fmt.Errorf("compression method code %d out of registry range: %w", code, ErrUnsupportedFeature)
	}
	switch names[code] {
	case "none":
		return CompressionNone, nil
	case "zlib":
		return CompressionZlib, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q: %w", names[code], ErrUnsupportedFeature)
	}
}

// codeForMethod is the write-side inverse of methodForCode.
func (l *Layout) codeForMethod(m Compression, names *[methodNameCount]string) (uint32, error) {
	if !l.hasRegistry {
		return uint32(m), nil
	}
	want := m.String()
	for i, name := range names {
		if name == want {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("compression method %s not in registry: %w", m, ErrUnsupportedFeature)
}
