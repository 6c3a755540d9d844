package sha1sum

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	t.Parallel()

	h := New()
	_, err := io.Copy(h, strings.NewReader("abc"))
	require.NoError(t, err)

	d := Sum(h)
	assert.Equal(t, "sha1:a9993e364706816aba3e25717850c26c9cd0d89d", d.String())
	assert.False(t, d.IsNull())
}

func TestDigestEqual(t *testing.T) {
	t.Parallel()

	var a, b Digest
	a[0], b[0] = 1, 1
	assert.True(t, a.Equal(b))

	b[19] = 0xFF
	assert.False(t, a.Equal(b))
}

func TestNullDigest(t *testing.T) {
	t.Parallel()

	var d Digest
	assert.True(t, d.IsNull())
	d[7] = 1
	assert.False(t, d.IsNull())
}

func TestReaderTees(t *testing.T) {
	t.Parallel()

	h := New()
	r := Reader(strings.NewReader("abc"), h)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, "sha1:a9993e364706816aba3e25717850c26c9cd0d89d", Sum(h).String())
}
