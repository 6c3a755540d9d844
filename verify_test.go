package pak

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanArchive(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles(),
		PackWithVersion(5), PackWithCompression(CompressionZlib))
	a := openArchive(t, path)

	rep, err := a.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.IndexOK)
	assert.True(t, rep.OK)
	require.Len(t, rep.Results, len(testFiles()))
	for _, res := range rep.Results {
		assert.True(t, res.OK(), res.Path)
	}
}

func TestVerifyDetectsFlippedByte(t *testing.T) {
	t.Parallel()

	path := packArchive(t, []testFile{
		{path: "one.bin", data: []byte("first entry payload")},
		{path: "two.bin", data: []byte("second entry payload")},
		{path: "three.bin", data: []byte("third entry payload")},
	})
	a := openArchive(t, path)
	target, ok := a.Entry("two.bin")
	require.True(t, ok)
	a.Close()

	flipByte(t, path, int64(target.Offset)+5)

	a = openArchive(t, path)
	rep, err := a.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.IndexOK)
	assert.False(t, rep.OK)
	require.Len(t, rep.Results, 3)
	for _, res := range rep.Results {
		if res.Path == "two.bin" {
			require.ErrorIs(t, res.Err, ErrChecksumMismatch)
		} else {
			assert.True(t, res.OK(), res.Path)
		}
	}
}

func TestVerifyCancelled(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles())
	a := openArchive(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := a.Verify(ctx)
	require.ErrorIs(t, err, ErrCancelled)
	require.NotNil(t, rep)
	assert.Empty(t, rep.Results)
}
