package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFakeDataset(FakeConfig{Paradigm: "imagery"}))

	d, err := r.Get("FakeDataset-imagery")
	require.NoError(t, err)
	assert.Equal(t, "imagery", d.ParadigmKind())

	_, err = r.Get("Missing")
	assert.Error(t, err)
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltins()

	codes := r.List()
	assert.Equal(t, []string{"FakeDataset-imagery", "FakeDataset-p300", "FakeDataset-ssvep"}, codes)
	assert.Len(t, r.All(), 3)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `datasets:
  - code: MirrorImagery
    paradigm: imagery
    interval: [0, 4]
    events: [left_hand, right_hand]
    channels: [C3, Cz, C4]
    sfreq: 250
    sessions: 2
    subjects:
      - subject: 1
        url: https://mirror.example.org/mi/subject_1.nbz
        sha256: abc123
        size: 1024
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Datasets, 1)

	info := cat.Datasets[0].Info()
	assert.Equal(t, "MirrorImagery", info.Code)
	assert.Equal(t, 1, info.NSubjects)
	assert.Equal(t, [2]float64{0, 4}, info.Interval)
	require.Len(t, info.Archives, 1)
	assert.Equal(t, "abc123", info.Archives[0].SHA256)
	assert.Equal(t, int64(1024), info.TotalSize())
}

func TestLoadCatalogMissingFile(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cat.Datasets)
}

func TestLoadCatalogInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  - paradigm: imagery\n    subjects: [{subject: 1}]\n"), 0644))

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code")
}
