// Package paradigm turns raw dataset recordings into decoding problems:
// it selects events and channels, band-pass filters, cuts trials around
// event onsets and hands back aligned epochs, labels and metadata.
package paradigm

import (
	"context"
	"fmt"
	"sort"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/pkg/types"
	"gonum.org/v1/gonum/mat"
)

// Scoring metric names.
const (
	ScoreAccuracy = "accuracy"
	ScoreROCAUC   = "roc_auc"
)

// Paradigm defines a decoding problem over compatible datasets.
type Paradigm interface {
	// Name identifies the paradigm, e.g. "LeftRightImagery".
	Name() string
	// Scoring is the metric used to evaluate pipelines on this paradigm.
	Scoring() string
	// IsValid reports whether the dataset can serve this paradigm.
	IsValid(d dataset.Dataset) bool
	// GetData preprocesses the given subjects of a dataset into epochs.
	// A nil subject slice takes every subject.
	GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error)
}

// Config carries the preprocessing options shared by every paradigm family.
type Config struct {
	// Events restricts the classes. Nil takes the dataset's events.
	Events []string
	// Channels selects and orders channels. Nil keeps the dataset order.
	Channels []string
	// TMin/TMax bound the trial window in seconds relative to event
	// onset. A zero TMax falls back to the dataset interval length.
	TMin float64
	TMax float64
	// FMin/FMax define a single pass band. Ignored when Filters is set.
	FMin float64
	FMax float64
	// Filters lists [fmin, fmax] bands. More than one band produces
	// filter-bank epochs with one matrix per band.
	Filters [][2]float64
	// Resample converts epochs to this rate when non-zero.
	Resample float64
	// NClasses keeps only the first NClasses event types. Zero keeps all.
	NClasses int
}

func (c Config) validateWindow() error {
	if c.TMax != 0 && c.TMin >= c.TMax {
		return fmt.Errorf("tmin must be below tmax, got [%g, %g]", c.TMin, c.TMax)
	}
	return nil
}

// base implements the preprocessing shared by all paradigms.
type base struct {
	cfg     Config
	kind    string // required dataset paradigm kind
	scoring string
}

func (b *base) Scoring() string {
	return b.scoring
}

func (b *base) IsValid(d dataset.Dataset) bool {
	if d.ParadigmKind() != b.kind {
		return false
	}
	if len(b.cfg.Events) == 0 {
		return true
	}
	available := d.EventID()
	for _, ev := range b.cfg.Events {
		if _, ok := available[ev]; !ok {
			return false
		}
	}
	return true
}

// usedEvents resolves which event types to keep for a dataset, honoring the
// paradigm event list and the NClasses limit. Dataset declaration order
// breaks the tie for NClasses selection.
func (b *base) usedEvents(d dataset.Dataset) ([]string, error) {
	available := d.EventID()

	events := b.cfg.Events
	if len(events) == 0 {
		events = make([]string, 0, len(available))
		for ev := range available {
			events = append(events, ev)
		}
		// declaration order, not map order
		sort.Slice(events, func(i, j int) bool {
			return available[events[i]] < available[events[j]]
		})
	} else {
		for _, ev := range events {
			if _, ok := available[ev]; !ok {
				return nil, fmt.Errorf("dataset %s does not provide event %q", d.Code(), ev)
			}
		}
	}

	if b.cfg.NClasses > 0 {
		if len(events) < b.cfg.NClasses {
			return nil, fmt.Errorf("dataset %s has %d usable classes, %d requested",
				d.Code(), len(events), b.cfg.NClasses)
		}
		events = events[:b.cfg.NClasses]
	}
	return events, nil
}

// bands resolves the filter bank. Family constructors guarantee that at
// least one band is always set.
func (b *base) bands() [][2]float64 {
	return b.cfg.Filters
}

// resolveBands fills Filters from FMin/FMax, falling back to the family's
// default pass band.
func resolveBands(cfg *Config, defFMin, defFMax float64) {
	if len(cfg.Filters) > 0 {
		return
	}
	fmin, fmax := cfg.FMin, cfg.FMax
	if fmin == 0 && fmax == 0 {
		fmin, fmax = defFMin, defFMax
	}
	cfg.Filters = [][2]float64{{fmin, fmax}}
}

// GetData runs the full preprocessing chain for the requested subjects.
func (b *base) getData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	events, err := b.usedEvents(d)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(events))
	for _, ev := range events {
		keep[ev] = struct{}{}
	}

	data, err := d.GetData(ctx, subjects)
	if err != nil {
		return nil, err
	}

	sfreq := 0.0
	out := &types.Epochs{}

	for _, subject := range sortedSubjects(data) {
		sessions := data[subject]
		for _, session := range sortedKeys(sessions) {
			runs := sessions[session]
			for _, run := range sortedKeys(runs) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				raw := runs[run]
				trials, labels, err := b.processRaw(raw, d, keep)
				if err != nil {
					return nil, fmt.Errorf("subject %d %s/%s: %w", subject, session, run, err)
				}
				for i := range trials {
					out.X = append(out.X, trials[i])
					out.Labels = append(out.Labels, labels[i])
					out.Meta = append(out.Meta, types.TrialMeta{
						Subject: subject,
						Session: session,
						Run:     run,
					})
				}
				if out.Channels == nil {
					out.Channels = b.orderedChannels(raw)
				}
				if sfreq == 0 {
					sfreq = raw.SFreq
				}
			}
		}
	}

	if b.cfg.Resample > 0 {
		sfreq = b.cfg.Resample
	}
	out.SFreq = sfreq

	if out.Len() == 0 {
		return nil, fmt.Errorf("no trials matched paradigm events %v on dataset %s", events, d.Code())
	}
	return out, nil
}

// processRaw converts one continuous recording into epoched trials.
func (b *base) processRaw(raw *types.Raw, d dataset.Dataset, keep map[string]struct{}) ([]types.Trial, []string, error) {
	chanIdx, err := b.channelIndices(raw)
	if err != nil {
		return nil, nil, err
	}

	// Select and reorder channels before filtering.
	selected := selectRows(raw.Data, chanIdx)

	// Filter each band over the continuous signal.
	filtered := make([]*mat.Dense, 0, len(b.bands()))
	for _, band := range b.bands() {
		filtered = append(filtered, filterMatrix(selected, raw.SFreq, band[0], band[1]))
	}

	interval := d.Interval()
	tmin := interval[0] + b.cfg.TMin
	tmax := interval[0] + b.cfg.TMax
	if b.cfg.TMax == 0 {
		tmax = interval[1]
	}

	start := int(tmin * raw.SFreq)
	length := int((tmax - tmin) * raw.SFreq)
	if length <= 0 {
		return nil, nil, fmt.Errorf("empty trial window [%g, %g]", tmin, tmax)
	}

	nSamples := raw.NSamples()
	var trials []types.Trial
	var labels []string
	for _, ev := range raw.Events {
		if _, ok := keep[ev.Code]; !ok {
			continue
		}
		lo := ev.Sample + start
		hi := lo + length
		if lo < 0 || hi > nSamples {
			// window runs past the recording, drop the epoch
			continue
		}

		trial := types.Trial{Bands: make([]*mat.Dense, 0, len(filtered))}
		for _, band := range filtered {
			window := mat.DenseCopyOf(band.Slice(0, len(chanIdx), lo, hi))
			if b.cfg.Resample > 0 {
				window = resampleMatrix(window, raw.SFreq, b.cfg.Resample)
			}
			trial.Bands = append(trial.Bands, window)
		}
		trials = append(trials, trial)
		labels = append(labels, ev.Code)
	}
	return trials, labels, nil
}

// channelIndices maps the paradigm channel order onto the raw recording.
func (b *base) channelIndices(raw *types.Raw) ([]int, error) {
	if len(b.cfg.Channels) == 0 {
		idx := make([]int, len(raw.Channels))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}

	idx := make([]int, 0, len(b.cfg.Channels))
	for _, name := range b.cfg.Channels {
		i := raw.ChannelIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("channel %s not present in recording", name)
		}
		idx = append(idx, i)
	}
	return idx, nil
}

func (b *base) orderedChannels(raw *types.Raw) []string {
	if len(b.cfg.Channels) == 0 {
		return append([]string(nil), raw.Channels...)
	}
	return append([]string(nil), b.cfg.Channels...)
}

func selectRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

func sortedSubjects(data dataset.Data) []int {
	out := make([]int, 0, len(data))
	for s := range data {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
