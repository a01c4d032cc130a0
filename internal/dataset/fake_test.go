package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeDatasetDefaults(t *testing.T) {
	d := NewFakeDataset(FakeConfig{})

	assert.Equal(t, "FakeDataset-imagery", d.Code())
	assert.Equal(t, []int{1, 2, 3}, d.Subjects())
	assert.Equal(t, [2]float64{0, 3}, d.Interval())
	assert.Equal(t, "imagery", d.ParadigmKind())
	assert.Len(t, d.EventID(), 3)
}

func TestFakeDatasetGetData(t *testing.T) {
	d := NewFakeDataset(FakeConfig{
		Events:    []string{"left_hand", "right_hand"},
		NSubjects: 2,
	})

	data, err := d.GetData(context.Background(), []int{1})
	require.NoError(t, err)
	require.Len(t, data, 1)

	sessions := data[1]
	require.Len(t, sessions, 2)

	runs, ok := sessions["session_0"]
	require.True(t, ok)
	require.Len(t, runs, 2)

	raw := runs["run_0"]
	require.NotNil(t, raw)
	assert.Equal(t, []string{"C3", "Cz", "C4"}, raw.Channels)
	assert.Equal(t, 128.0, raw.SFreq)
	// 10 trials per class and 2 classes
	assert.Len(t, raw.Events, 20)

	// events stay within the recording
	for _, ev := range raw.Events {
		assert.Less(t, ev.Sample, raw.NSamples())
	}
}

func TestFakeDatasetDeterministic(t *testing.T) {
	a := NewFakeDataset(FakeConfig{NSubjects: 1})
	b := NewFakeDataset(FakeConfig{NSubjects: 1})

	da, err := a.GetData(context.Background(), nil)
	require.NoError(t, err)
	db, err := b.GetData(context.Background(), nil)
	require.NoError(t, err)

	rawA := da[1]["session_0"]["run_0"]
	rawB := db[1]["session_0"]["run_0"]
	assert.Equal(t, rawA.Events, rawB.Events)
	assert.Equal(t, rawA.Data.RawMatrix().Data[:100], rawB.Data.RawMatrix().Data[:100])

	// different subjects get different signals
	dc, err := NewFakeDataset(FakeConfig{NSubjects: 2}).GetData(context.Background(), []int{2})
	require.NoError(t, err)
	rawC := dc[2]["session_0"]["run_0"]
	assert.NotEqual(t, rawA.Data.At(0, 0), rawC.Data.At(0, 0))
}

func TestFakeDatasetUnknownSubject(t *testing.T) {
	d := NewFakeDataset(FakeConfig{NSubjects: 2})
	_, err := d.GetData(context.Background(), []int{5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject 5")
}
