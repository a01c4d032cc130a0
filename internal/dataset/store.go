package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/neurobench/neurobench/internal/download"
	"github.com/neurobench/neurobench/internal/storage"
	"github.com/neurobench/neurobench/pkg/types"
)

// Store manages the on-disk cache of downloaded subject archives.
type Store struct {
	paths   *storage.Paths
	fetcher *download.Fetcher

	// Download behavior, mirrored from config.
	RateLimit int64
	Retries   int
	Verify    bool
	Progress  bool
}

// NewStore creates a Store rooted at the configured datasets directory.
func NewStore(paths *storage.Paths) *Store {
	return &Store{
		paths:   paths,
		fetcher: download.NewFetcher(),
		Retries: 3,
		Verify:  true,
	}
}

// HasSubject reports whether a subject archive is already cached.
func (s *Store) HasSubject(code string, subject int) bool {
	_, err := os.Stat(s.paths.SubjectArchivePath(code, subject))
	return err == nil
}

// EnsureSubject makes a subject archive available locally, downloading it
// when missing.
func (s *Store) EnsureSubject(ctx context.Context, info types.DatasetInfo, subject int) (string, error) {
	dest := s.paths.SubjectArchivePath(info.Code, subject)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	archive, ok := findArchive(info, subject)
	if !ok {
		return "", fmt.Errorf("dataset %s has no archive source for subject %d", info.Code, subject)
	}

	opts := download.Options{
		RateLimit:   s.RateLimit,
		Retries:     s.Retries,
		Progress:    s.Progress,
		Description: fmt.Sprintf("%s subject %d", info.Code, subject),
	}
	if s.Verify {
		opts.SHA256 = archive.SHA256
	}

	if err := s.fetcher.Fetch(ctx, archive.URL, dest, opts); err != nil {
		return "", fmt.Errorf("failed to fetch %s subject %d: %w", info.Code, subject, err)
	}
	return dest, nil
}

// LoadSubject returns the decoded recordings of one subject, fetching the
// archive first if needed.
func (s *Store) LoadSubject(ctx context.Context, info types.DatasetInfo, subject int) (SubjectData, error) {
	path, err := s.EnsureSubject(ctx, info, subject)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	archivedSubject, data, err := ReadArchive(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	if archivedSubject != subject {
		return nil, fmt.Errorf("archive %s holds subject %d, expected %d", path, archivedSubject, subject)
	}
	return data, nil
}

// Evict removes the cached archives of a dataset.
func (s *Store) Evict(code string) error {
	return os.RemoveAll(s.paths.DatasetPath(code))
}

func findArchive(info types.DatasetInfo, subject int) (types.SubjectArchive, bool) {
	for _, a := range info.Archives {
		if a.Subject == subject {
			return a, true
		}
	}
	return types.SubjectArchive{}, false
}
