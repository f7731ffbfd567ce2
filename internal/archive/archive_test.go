package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hackhub/submissions-api/internal/archive"
	"github.com/hackhub/submissions-api/internal/audit"
	"github.com/hackhub/submissions-api/internal/hash"
	"github.com/hackhub/submissions-api/internal/types"
	mockuploader "github.com/hackhub/submissions-api/internal/upload/mock"
)

func TestArchiveFile(t *testing.T) {
	ctx := context.Background()
	content := []byte("Id,Language\n1,go\n")
	sum := hash.Buffer(content)

	t.Run("LocalFile", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		path := filepath.Join(t.TempDir(), "predictions.csv")
		require.NoError(t, os.WriteFile(path, content, 0o600))

		u.EXPECT().Exists(gomock.Any(), gomock.Eq(sum)).Return(false, nil)
		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Eq(int64(len(content))), gomock.Eq(sum)).
			Return(nil)
		u.EXPECT().StoreIdentifier(gomock.Any()).Return("archive", nil)

		name, err := archive.ArchiveFile(ctx, audit.Context{}, u, &archive.FileMetadata{
			LocalFilePath: &path,
			ArchivedFile:  types.FilePredictions,
			Entity:        audit.EntitySubmission,
			EntityID:      "submission",
		})
		require.NoError(t, err)

		assert.Equal(t, sum, name)
		assert.FileExists(t, path, "archiving must not consume the file")
	})

	t.Run("Buffer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), gomock.Eq(sum)).Return(true, nil)
		u.EXPECT().StoreIdentifier(gomock.Any()).Return("archive", nil)

		name, err := archive.ArchiveFile(ctx, audit.Context{}, u, &archive.FileMetadata{
			Buffer:       content,
			ArchivedFile: types.FilePredictions,
			Entity:       audit.EntitySubmission,
			EntityID:     "submission",
		})
		require.NoError(t, err)

		assert.Equal(t, sum, name)
	})

	t.Run("NoSource", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		_, err := archive.ArchiveFile(ctx, audit.Context{}, u, &archive.FileMetadata{})
		require.ErrorIs(t, err, archive.ErrNoSource)
	})
}
