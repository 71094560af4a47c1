package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npezzotti/gossip/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestDiskStore(t *testing.T) *DiskStore {
	s, err := NewDiskStore(testutil.TestLogger(t), t.TempDir(), "http://localhost:8000/uploads/")
	if err != nil {
		t.Fatalf("failed to create disk store: %v", err)
	}
	return s
}

func dirEntries(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDiskStore_Upload(t *testing.T) {
	s := newTestDiskStore(t)

	files := []File{
		{Name: "a.PNG", Data: []byte("aaa")},
		{Name: "b.txt", Data: []byte("bbb")},
		{Name: "c", Data: []byte("ccc")},
	}

	blobs, err := s.Upload(context.Background(), files)
	assert.NoError(t, err, "expected upload to succeed")
	assert.Len(t, blobs, 3, "expected a blob per file")
	assert.True(t, strings.HasSuffix(blobs[0].PublicId, ".png"), "expected extension to be kept in lower case")

	for i, b := range blobs {
		assert.Equal(t, "http://localhost:8000/uploads/"+b.PublicId, b.Url, "expected url under base url")
		data, err := os.ReadFile(filepath.Join(s.root, b.PublicId))
		assert.NoError(t, err, "expected blob to be written")
		assert.Equal(t, files[i].Data, data, "expected blob contents to match")
	}

	assert.NotEqual(t, blobs[0].PublicId, blobs[1].PublicId, "expected unique ids")
}

func TestDiskStore_Upload_Failure(t *testing.T) {
	t.Run("cancelled context", func(t *testing.T) {
		s := newTestDiskStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		blobs, err := s.Upload(ctx, []File{{Name: "a.txt", Data: []byte("a")}})
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Nil(t, blobs)
		assert.Empty(t, dirEntries(t, s.root), "expected nothing to be stored")
	})

	t.Run("missing directory", func(t *testing.T) {
		s := newTestDiskStore(t)
		s.root = filepath.Join(s.root, "missing")

		blobs, err := s.Upload(context.Background(), []File{{Name: "a.txt", Data: []byte("a")}})
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Nil(t, blobs)
	})
}

func TestDiskStore_Delete(t *testing.T) {
	s := newTestDiskStore(t)

	blobs, err := s.Upload(context.Background(), []File{
		{Name: "a.txt", Data: []byte("a")},
		{Name: "b.txt", Data: []byte("b")},
	})
	assert.NoError(t, err)

	err = s.Delete(context.Background(), []string{blobs[0].PublicId, blobs[1].PublicId, "unknown.txt"})
	assert.NoError(t, err, "expected missing blobs to be ignored")
	assert.Empty(t, dirEntries(t, s.root), "expected blobs to be removed")

	err = s.Delete(context.Background(), []string{"../escape"})
	assert.Error(t, err, "expected path traversal to be rejected")
}
