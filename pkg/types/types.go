package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Event marks a labelled occurrence inside a continuous recording.
type Event struct {
	Sample int    `json:"sample"` // sample index of the event onset
	Code   string `json:"code"`   // event label, e.g. "left_hand"
}

// Raw represents one continuous multichannel recording (a single run).
type Raw struct {
	Channels []string   // channel names, in recording order
	SFreq    float64    // sampling frequency in Hz
	Data     *mat.Dense // channels x samples
	Events   []Event
}

// NSamples returns the number of samples per channel.
func (r *Raw) NSamples() int {
	if r.Data == nil {
		return 0
	}
	_, c := r.Data.Dims()
	return c
}

// Duration returns the recording length in seconds.
func (r *Raw) Duration() float64 {
	if r.SFreq <= 0 {
		return 0
	}
	return float64(r.NSamples()) / r.SFreq
}

// ChannelIndex returns the index of a named channel, or -1.
func (r *Raw) ChannelIndex(name string) int {
	for i, ch := range r.Channels {
		if ch == name {
			return i
		}
	}
	return -1
}

// TrialMeta identifies where a trial came from.
type TrialMeta struct {
	Subject int    `json:"subject"`
	Session string `json:"session"`
	Run     string `json:"run"`
}

// Trial is one epoched window. With a single frequency band Bands has one
// entry; filter-bank paradigms produce one matrix per band, each
// channels x times.
type Trial struct {
	Bands []*mat.Dense
}

// Epochs is the output of a paradigm: aligned trials, labels and metadata.
// The three slices always have the same length.
type Epochs struct {
	X        []Trial
	Labels   []string
	Meta     []TrialMeta
	Channels []string
	SFreq    float64
}

// Len returns the number of trials.
func (e *Epochs) Len() int {
	return len(e.X)
}

// NBands returns the number of frequency bands per trial.
func (e *Epochs) NBands() int {
	if len(e.X) == 0 {
		return 0
	}
	return len(e.X[0].Bands)
}

// Classes returns the sorted set of distinct labels.
func (e *Epochs) Classes() []string {
	seen := make(map[string]struct{})
	for _, l := range e.Labels {
		seen[l] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Select returns a new Epochs containing only the trials at the given
// indices. The underlying matrices are shared, not copied.
func (e *Epochs) Select(idx []int) *Epochs {
	out := &Epochs{
		X:        make([]Trial, 0, len(idx)),
		Labels:   make([]string, 0, len(idx)),
		Meta:     make([]TrialMeta, 0, len(idx)),
		Channels: e.Channels,
		SFreq:    e.SFreq,
	}
	for _, i := range idx {
		out.X = append(out.X, e.X[i])
		out.Labels = append(out.Labels, e.Labels[i])
		out.Meta = append(out.Meta, e.Meta[i])
	}
	return out
}

// Result is one evaluation outcome: a single pipeline scored on a single
// subject (and session, for session-level evaluations) of a dataset.
type Result struct {
	Score    float64 `json:"score"`
	Time     float64 `json:"time"` // fit time in seconds
	Samples  int     `json:"samples"`
	Channels int     `json:"n_channels"`
	Subject  int     `json:"subject"`
	Session  string  `json:"session"`
	Dataset  string  `json:"dataset"`
	Pipeline string  `json:"pipeline"`

	// Learning-curve runs only.
	DataSize    int `json:"data_size,omitempty"`
	Permutation int `json:"permutation,omitempty"`

	// Winning parameter overrides when a grid search selected them,
	// keyed by step name.
	Params map[string]map[string]any `json:"params,omitempty"`

	Evaluated time.Time `json:"evaluated,omitempty"`
}

// SubjectArchive describes one downloadable subject archive of a dataset.
type SubjectArchive struct {
	Subject int    `json:"subject"`
	URL     string `json:"url"`
	SHA256  string `json:"sha256"`
	Size    int64  `json:"size,omitempty"`
}

// DatasetInfo is the static metadata of a dataset.
type DatasetInfo struct {
	Code      string           `json:"code"`
	Paradigm  string           `json:"paradigm"` // imagery, p300, ssvep or rstate
	NSubjects int              `json:"n_subjects"`
	NSessions int              `json:"n_sessions"`
	Interval  [2]float64       `json:"interval"` // trial window in seconds
	Events    []string         `json:"events"`
	Channels  []string         `json:"channels"`
	SFreq     float64          `json:"sfreq"`
	Archives  []SubjectArchive `json:"archives,omitempty"`
}

// TotalSize sums the declared archive sizes.
func (d *DatasetInfo) TotalSize() int64 {
	var total int64
	for _, a := range d.Archives {
		total += a.Size
	}
	return total
}

// DigestStrings produces a stable hash over a sequence of strings. Used to
// fingerprint pipeline definitions so cached results are invalidated when a
// definition changes.
func DigestStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestJSON hashes the canonical JSON encoding of v.
func DigestJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
