// Package dataset provides the dataset abstraction of the benchmark: a
// uniform way to enumerate subjects and sessions and to load raw recordings,
// whether the data is generated on the fly or cached from a remote archive.
package dataset

import (
	"context"
	"fmt"

	"github.com/neurobench/neurobench/pkg/types"
)

// SubjectData maps session name -> run name -> recording.
type SubjectData map[string]map[string]*types.Raw

// Data maps subject number -> SubjectData.
type Data map[int]SubjectData

// Dataset is a benchmark dataset.
type Dataset interface {
	// Code is the unique identifier of the dataset.
	Code() string
	// Info returns the static metadata.
	Info() types.DatasetInfo
	// Subjects lists the subject numbers, ascending.
	Subjects() []int
	// Interval is the trial window in seconds relative to event onset.
	Interval() [2]float64
	// EventID maps event labels to numeric codes.
	EventID() map[string]int
	// ParadigmKind is one of "imagery", "p300", "ssvep", "rstate".
	ParadigmKind() string
	// GetData loads raw recordings for the given subjects. A nil slice
	// loads every subject.
	GetData(ctx context.Context, subjects []int) (Data, error)
}

// ValidateSubjects checks that every requested subject exists in the dataset.
func ValidateSubjects(d Dataset, subjects []int) error {
	known := make(map[int]struct{})
	for _, s := range d.Subjects() {
		known[s] = struct{}{}
	}
	for _, s := range subjects {
		if _, ok := known[s]; !ok {
			return fmt.Errorf("subject %d is not part of dataset %s", s, d.Code())
		}
	}
	return nil
}
