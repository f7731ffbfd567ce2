package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackhub/submissions-api/internal/scoring"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "failed to write csv")

	return path
}

func TestReadColumn(t *testing.T) {
	ctx := context.Background()

	t.Run("PreservesRowOrder", func(t *testing.T) {
		path := writeFile(t, "Id,Language\n1,go\n2,rust\n3,go\n")

		values, err := ReadColumn(ctx, path, "Language")
		require.NoError(t, err)

		assert.Equal(t, []string{"go", "rust", "go"}, values)
	})

	t.Run("QuotedValues", func(t *testing.T) {
		path := writeFile(t, "Language,Text\n\"c, c++\",\"hello\"\nPython,\"a \"\"quote\"\"\"\n")

		values, err := ReadColumn(ctx, path, "Language")
		require.NoError(t, err)

		assert.Equal(t, []string{"c, c++", "Python"}, values)
	})

	t.Run("ByteOrderMark", func(t *testing.T) {
		path := writeFile(t, "\uFEFFLanguage,Id\nJava,1\n")

		values, err := ReadColumn(ctx, path, "Language")
		require.NoError(t, err)

		assert.Equal(t, []string{"Java"}, values)
	})

	t.Run("KeepsPadding", func(t *testing.T) {
		path := writeFile(t, "Id,Language\n1, Go\n2,  Rust \n")

		values, err := ReadColumn(ctx, path, "Language")
		require.NoError(t, err)

		assert.Equal(t, []string{" Go", "  Rust "}, values)
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		path := writeFile(t, "Id,Language\n")

		values, err := ReadColumn(ctx, path, "Language")
		require.NoError(t, err)

		assert.Empty(t, values)
	})

	t.Run("CaseSensitiveHeader", func(t *testing.T) {
		path := writeFile(t, "Id,language\n1,go\n")

		_, err := ReadColumn(ctx, path, "Language")
		require.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		path := writeFile(t, "Id,Label\n1,go\n")

		_, err := ReadColumn(ctx, path, "Language")
		require.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("ShortRow", func(t *testing.T) {
		path := writeFile(t, "Id,Language\n1,go\n2\n3,c\n")

		_, err := ReadColumn(ctx, path, "Language")
		require.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := writeFile(t, "")

		_, err := ReadColumn(ctx, path, "Language")
		require.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("EmptyColumnName", func(t *testing.T) {
		path := writeFile(t, "Id,Language\n1,go\n")

		_, err := ReadColumn(ctx, path, "")
		require.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := ReadColumn(ctx, filepath.Join(t.TempDir(), "nope.csv"), "Language")
		require.ErrorIs(t, err, ErrIO)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("MalformedQuotes", func(t *testing.T) {
		path := writeFile(t, "Id,Language\n1,\"go\n")

		_, err := ReadColumn(ctx, path, "Language")
		require.ErrorIs(t, err, ErrIO)
	})

	t.Run("DoesNotRemoveFile", func(t *testing.T) {
		path := writeFile(t, "Language\ngo\n")

		_, err := ReadColumn(ctx, path, "Language")
		require.NoError(t, err)

		_, err = os.Stat(path)
		assert.NoError(t, err, "file should still exist")
	})
}

func TestPaddedPredictionsAreMismatches(t *testing.T) {
	ctx := context.Background()

	truth, err := ReadColumn(ctx, writeFile(t, "Language\nGo\nRust\n"), "Language")
	require.NoError(t, err)

	predicted, err := ReadColumn(ctx, writeFile(t, "Language\n Go\n  Rust\n"), "Language")
	require.NoError(t, err)

	accuracy, err := scoring.Accuracy(truth, predicted)
	require.NoError(t, err)

	assert.Zero(t, accuracy)
}
