package dataset

import (
	"fmt"
	"os"

	"github.com/neurobench/neurobench/pkg/types"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk description of remote datasets: where the subject
// archives live and how to verify them. Users point the tool at additional
// mirrors by editing the catalog file.
type Catalog struct {
	Datasets []CatalogEntry `yaml:"datasets"`
}

// CatalogEntry describes one remote dataset.
type CatalogEntry struct {
	Code     string         `yaml:"code"`
	Paradigm string         `yaml:"paradigm"`
	Interval [2]float64     `yaml:"interval"`
	Events   []string       `yaml:"events"`
	Channels []string       `yaml:"channels"`
	SFreq    float64        `yaml:"sfreq"`
	Sessions int            `yaml:"sessions"`
	Subjects []CatalogEntryArchive `yaml:"subjects"`
}

// CatalogEntryArchive is one downloadable subject archive.
type CatalogEntryArchive struct {
	Subject int    `yaml:"subject"`
	URL     string `yaml:"url"`
	SHA256  string `yaml:"sha256"`
	Size    int64  `yaml:"size"`
}

// LoadCatalog parses a catalog file. A missing file yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	for i, entry := range cat.Datasets {
		if entry.Code == "" {
			return nil, fmt.Errorf("catalog entry %d has no code", i)
		}
		if entry.Paradigm == "" {
			return nil, fmt.Errorf("catalog entry %s has no paradigm", entry.Code)
		}
		if len(entry.Subjects) == 0 {
			return nil, fmt.Errorf("catalog entry %s lists no subjects", entry.Code)
		}
	}
	return &cat, nil
}

// Info converts a catalog entry into dataset metadata.
func (e CatalogEntry) Info() types.DatasetInfo {
	info := types.DatasetInfo{
		Code:      e.Code,
		Paradigm:  e.Paradigm,
		NSubjects: len(e.Subjects),
		NSessions: e.Sessions,
		Interval:  e.Interval,
		Events:    e.Events,
		Channels:  e.Channels,
		SFreq:     e.SFreq,
	}
	for _, s := range e.Subjects {
		info.Archives = append(info.Archives, types.SubjectArchive{
			Subject: s.Subject,
			URL:     s.URL,
			SHA256:  s.SHA256,
			Size:    s.Size,
		})
	}
	return info
}

// RegisterCatalog loads a catalog file and registers every entry as a
// RemoteDataset backed by the store.
func (r *Registry) RegisterCatalog(path string, store *Store) error {
	cat, err := LoadCatalog(path)
	if err != nil {
		return err
	}

	for _, entry := range cat.Datasets {
		ds, err := NewRemoteDataset(entry.Info(), store)
		if err != nil {
			return fmt.Errorf("catalog entry %s: %w", entry.Code, err)
		}
		r.Register(ds)
	}
	return nil
}
