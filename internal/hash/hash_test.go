package hash

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256("hello world")
const helloWorld = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestReader(t *testing.T) {
	sum, err := Reader(context.Background(), strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.Equal(t, helloWorld, sum)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	sum, err := File(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, helloWorld, sum)
	assert.Equal(t, sum, Buffer([]byte("hello world")))

	_, err = File(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
