package dataset

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/neurobench/neurobench/pkg/types"
	"gonum.org/v1/gonum/mat"
)

// FakeConfig configures a synthetic dataset. Zero values fall back to the
// defaults used throughout the test suite: 3 subjects, 2 sessions, 2 runs,
// 3 channels at 128 Hz, a [0, 3] second trial interval.
type FakeConfig struct {
	Events    []string
	NSubjects int
	NSessions int
	NRuns     int
	Channels  []string
	SFreq     float64
	Paradigm  string // imagery, p300, ssvep or rstate
	Seed      int64
}

// FakeDataset generates deterministic synthetic EEG. Each class carries a
// distinct oscillation on top of noise so that decoding pipelines have real
// structure to find, and the same configuration always produces identical
// signals.
type FakeDataset struct {
	cfg      FakeConfig
	interval [2]float64
}

// NewFakeDataset creates a synthetic dataset.
func NewFakeDataset(cfg FakeConfig) *FakeDataset {
	if len(cfg.Events) == 0 {
		cfg.Events = []string{"fake1", "fake2", "fake3"}
	}
	if cfg.NSubjects == 0 {
		cfg.NSubjects = 3
	}
	if cfg.NSessions == 0 {
		cfg.NSessions = 2
	}
	if cfg.NRuns == 0 {
		cfg.NRuns = 2
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{"C3", "Cz", "C4"}
	}
	if cfg.SFreq == 0 {
		cfg.SFreq = 128
	}
	if cfg.Paradigm == "" {
		cfg.Paradigm = "imagery"
	}
	return &FakeDataset{
		cfg:      cfg,
		interval: [2]float64{0, 3},
	}
}

func (d *FakeDataset) Code() string {
	return fmt.Sprintf("FakeDataset-%s", d.cfg.Paradigm)
}

func (d *FakeDataset) Info() types.DatasetInfo {
	return types.DatasetInfo{
		Code:      d.Code(),
		Paradigm:  d.cfg.Paradigm,
		NSubjects: d.cfg.NSubjects,
		NSessions: d.cfg.NSessions,
		Interval:  d.interval,
		Events:    append([]string(nil), d.cfg.Events...),
		Channels:  append([]string(nil), d.cfg.Channels...),
		SFreq:     d.cfg.SFreq,
	}
}

func (d *FakeDataset) Subjects() []int {
	out := make([]int, d.cfg.NSubjects)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func (d *FakeDataset) Interval() [2]float64 {
	return d.interval
}

func (d *FakeDataset) EventID() map[string]int {
	out := make(map[string]int, len(d.cfg.Events))
	for i, ev := range d.cfg.Events {
		out[ev] = i + 1
	}
	return out
}

func (d *FakeDataset) ParadigmKind() string {
	return d.cfg.Paradigm
}

// trialsPerClass is the number of trials of each class in a single run.
const trialsPerClass = 10

// layout returns the per-run event layout. Resting-state recordings carry
// few, minute-long segments instead of many short trials.
func (d *FakeDataset) layout() (perClass int, spacing float64) {
	if d.cfg.Paradigm == "rstate" {
		return 2, 60
	}
	return trialsPerClass, 4
}

func (d *FakeDataset) GetData(ctx context.Context, subjects []int) (Data, error) {
	if subjects == nil {
		subjects = d.Subjects()
	}
	if err := ValidateSubjects(d, subjects); err != nil {
		return nil, err
	}

	data := make(Data, len(subjects))
	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sessions := make(SubjectData, d.cfg.NSessions)
		for s := 0; s < d.cfg.NSessions; s++ {
			sessionName := fmt.Sprintf("session_%d", s)
			runs := make(map[string]*types.Raw, d.cfg.NRuns)
			for r := 0; r < d.cfg.NRuns; r++ {
				runName := fmt.Sprintf("run_%d", r)
				runs[runName] = d.generateRun(subject, sessionName, runName)
			}
			sessions[sessionName] = runs
		}
		data[subject] = sessions
	}
	return data, nil
}

// generateRun builds one continuous recording with evenly spaced events.
func (d *FakeDataset) generateRun(subject int, session, run string) *types.Raw {
	rng := rand.New(rand.NewSource(d.runSeed(subject, session, run)))

	sfreq := d.cfg.SFreq
	nChan := len(d.cfg.Channels)
	perClass, spacing := d.layout()
	nEvents := perClass * len(d.cfg.Events)

	// Events every spacing seconds, a 2 s lead-in and a short tail. The
	// tail is deliberately shorter than one trial interval so oversized
	// epoch windows fall off the end of the recording.
	leadIn := int(2 * sfreq)
	tail := int(1 * sfreq)
	nSamples := leadIn + int(float64(nEvents)*spacing*sfreq) + tail

	data := mat.NewDense(nChan, nSamples, nil)
	for ch := 0; ch < nChan; ch++ {
		for t := 0; t < nSamples; t++ {
			data.Set(ch, t, rng.NormFloat64())
		}
	}

	// Interleave classes so folds stay stratified even on contiguous
	// slices of the event sequence.
	events := make([]types.Event, 0, nEvents)
	trialLen := int((d.interval[1] - d.interval[0]) * sfreq)
	if d.cfg.Paradigm == "rstate" {
		// class rhythm spans the whole segment, not just the
		// nominal trial interval
		trialLen = int((spacing - 1) * sfreq)
	}
	for i := 0; i < nEvents; i++ {
		class := i % len(d.cfg.Events)
		onset := leadIn + int(float64(i)*spacing*sfreq)
		events = append(events, types.Event{Sample: onset, Code: d.cfg.Events[class]})

		// Class-specific rhythm: distinct frequency and preferred
		// channel per class, on top of the noise floor.
		freq := 10.0 + 3.0*float64(class)
		mainCh := class % nChan
		for t := 0; t < trialLen && onset+t < nSamples; t++ {
			phase := 2 * math.Pi * freq * float64(t) / sfreq
			data.Set(mainCh, onset+t, data.At(mainCh, onset+t)+2.5*math.Sin(phase))
			for ch := 0; ch < nChan; ch++ {
				if ch != mainCh {
					data.Set(ch, onset+t, data.At(ch, onset+t)+0.5*math.Sin(phase))
				}
			}
		}
	}

	return &types.Raw{
		Channels: append([]string(nil), d.cfg.Channels...),
		SFreq:    sfreq,
		Data:     data,
		Events:   events,
	}
}

func (d *FakeDataset) runSeed(subject int, session, run string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d/%s/%s/%d", d.Code(), subject, session, run, d.cfg.Seed)
	return int64(h.Sum64())
}
