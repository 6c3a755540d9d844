// Package sha1sum provides the fixed 20-byte SHA-1 digests the archive
// format stores for its index and entries.
package sha1sum

import (
	"crypto/sha1" //nolint:gosec // the on-disk format mandates SHA-1
	"crypto/subtle"
	"hash"
	"io"

	"github.com/opencontainers/go-digest"
)

// Size is the digest length in bytes.
const Size = sha1.Size

// Digest is a stored SHA-1 checksum.
type Digest [Size]byte

// algorithm is used only for rendering; the hash itself comes from crypto/sha1.
const algorithm = digest.Algorithm("sha1")

// New returns a fresh SHA-1 hasher.
func New() hash.Hash {
	return sha1.New() //nolint:gosec // format-mandated
}

// Sum converts a hasher's state into a Digest.
func Sum(h hash.Hash) Digest {
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Reader hashes everything read from r.
func Reader(r io.Reader, h hash.Hash) io.Reader {
	return io.TeeReader(r, h)
}

// Equal reports whether two digests match, in constant time.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// IsNull reports whether the digest is all zero bytes. Some archives in the
// wild store null digests for entries that were never hashed.
func (d Digest) IsNull() bool {
	return d == Digest{}
}

// String renders the digest in algorithm:hex form for logs and errors.
func (d Digest) String() string {
	return digest.NewDigestFromBytes(algorithm, d[:]).String()
}
