package dataset

import (
	"context"
	"fmt"

	"github.com/neurobench/neurobench/pkg/types"
)

// RemoteDataset is a dataset whose subject archives live on an HTTP mirror
// and are cached locally by a Store.
type RemoteDataset struct {
	info  types.DatasetInfo
	store *Store
}

// NewRemoteDataset wires a dataset descriptor to the local archive store.
func NewRemoteDataset(info types.DatasetInfo, store *Store) (*RemoteDataset, error) {
	if info.Code == "" {
		return nil, fmt.Errorf("dataset descriptor has no code")
	}
	if info.NSubjects == 0 {
		info.NSubjects = len(info.Archives)
	}
	if len(info.Archives) == 0 {
		return nil, fmt.Errorf("dataset %s declares no subject archives", info.Code)
	}
	return &RemoteDataset{info: info, store: store}, nil
}

func (d *RemoteDataset) Code() string {
	return d.info.Code
}

func (d *RemoteDataset) Info() types.DatasetInfo {
	return d.info
}

func (d *RemoteDataset) Subjects() []int {
	out := make([]int, 0, len(d.info.Archives))
	for _, a := range d.info.Archives {
		out = append(out, a.Subject)
	}
	return out
}

func (d *RemoteDataset) Interval() [2]float64 {
	return d.info.Interval
}

func (d *RemoteDataset) EventID() map[string]int {
	out := make(map[string]int, len(d.info.Events))
	for i, ev := range d.info.Events {
		out[ev] = i + 1
	}
	return out
}

func (d *RemoteDataset) ParadigmKind() string {
	return d.info.Paradigm
}

func (d *RemoteDataset) GetData(ctx context.Context, subjects []int) (Data, error) {
	if subjects == nil {
		subjects = d.Subjects()
	}
	if err := ValidateSubjects(d, subjects); err != nil {
		return nil, err
	}

	data := make(Data, len(subjects))
	for _, subject := range subjects {
		subjectData, err := d.store.LoadSubject(ctx, d.info, subject)
		if err != nil {
			return nil, err
		}
		data[subject] = subjectData
	}
	return data, nil
}
