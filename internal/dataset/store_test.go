package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/neurobench/neurobench/internal/storage"
	"github.com/neurobench/neurobench/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive produces a valid .nbz payload for the given subject.
func buildArchive(t *testing.T, subject int) []byte {
	t.Helper()
	d := NewFakeDataset(FakeConfig{NSubjects: subject, NSessions: 1, NRuns: 1})
	data, err := d.GetData(context.Background(), []int{subject})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, subject, data[subject]))
	return buf.Bytes()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir := t.TempDir()
	original := os.Getenv("NEUROBENCH_HOME")
	os.Setenv("NEUROBENCH_HOME", tmpDir)
	t.Cleanup(func() { os.Setenv("NEUROBENCH_HOME", original) })

	paths, err := storage.NewPaths()
	require.NoError(t, err)
	require.NoError(t, paths.Initialize())

	s := NewStore(paths)
	s.Progress = false
	return s
}

func TestStoreDownloadsAndCaches(t *testing.T) {
	payload := buildArchive(t, 1)
	sum := sha256.Sum256(payload)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(payload)
	}))
	defer server.Close()

	info := types.DatasetInfo{
		Code:     "TestRemote",
		Paradigm: "imagery",
		Archives: []types.SubjectArchive{
			{Subject: 1, URL: server.URL, SHA256: hex.EncodeToString(sum[:])},
		},
	}

	s := newTestStore(t)
	require.False(t, s.HasSubject("TestRemote", 1))

	data, err := s.LoadSubject(context.Background(), info, 1)
	require.NoError(t, err)
	require.Contains(t, data, "session_0")
	assert.True(t, s.HasSubject("TestRemote", 1))

	// second load hits the cache, not the server
	_, err = s.LoadSubject(context.Background(), info, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestStoreRejectsBadChecksum(t *testing.T) {
	payload := buildArchive(t, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	info := types.DatasetInfo{
		Code:     "TestRemote",
		Paradigm: "imagery",
		Archives: []types.SubjectArchive{
			{Subject: 1, URL: server.URL, SHA256: "deadbeef"},
		},
	}

	s := newTestStore(t)
	s.Retries = 0
	_, err := s.LoadSubject(context.Background(), info, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestStoreNoArchiveSource(t *testing.T) {
	s := newTestStore(t)
	info := types.DatasetInfo{Code: "NoSources", Paradigm: "imagery"}
	_, err := s.EnsureSubject(context.Background(), info, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archive source")
}

func TestStoreEvict(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.paths.DatasetPath("Evictable"))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subject_1.nbz"), []byte("x"), 0644))

	require.NoError(t, s.Evict("Evictable"))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
