package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/pkg/types"
)

// WithinSession scores each pipeline with stratified k-fold
// cross-validation inside every session, one result row per session.
type WithinSession struct {
	opts Options
}

func NewWithinSession(opts Options) (*WithinSession, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &WithinSession{opts: opts}, nil
}

func (e *WithinSession) Name() string { return "WithinSession" }

func (e *WithinSession) IsValid(d dataset.Dataset) bool {
	return e.opts.Paradigm.IsValid(d)
}

func (e *WithinSession) Evaluate(ctx context.Context, d dataset.Dataset, pipes []*pipeline.Pipeline) ([]types.Result, error) {
	subjects, err := e.opts.subjects(d)
	if err != nil {
		return nil, err
	}
	scoring := e.opts.Paradigm.Scoring()

	var results []types.Result
	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		epochs, err := e.opts.Paradigm.GetData(ctx, d, []int{subject})
		if err != nil {
			return nil, fmt.Errorf("subject %d: %w", subject, err)
		}
		sessions := groupBySession(epochs)

		for _, p := range pipes {
			for _, session := range sortedSessions(sessions) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				sessEp := epochs.Select(sessions[session])
				seed := seedFor(e.opts.Seed, d.Code(), fmt.Sprint(subject), session, p.Name)

				rows, candidate, err := e.scoreSession(p, sessEp, scoring, seed)
				if err != nil {
					return nil, fmt.Errorf("subject %d session %s: %w", subject, session, err)
				}
				for i := range rows {
					rows[i].Subject = subject
					rows[i].Session = session
					rows[i].Dataset = d.Code()
					rows[i].Pipeline = p.Name
					rows[i].Channels = len(epochs.Channels)
					rows[i].Evaluated = time.Now().UTC()
				}
				results = append(results, rows...)

				if e.opts.ModelDir != "" {
					fitted := candidate.Clone()
					if err := fitted.Fit(pipeline.NewBatch(sessEp), sessEp.Labels); err != nil {
						return nil, fmt.Errorf("subject %d session %s: %w", subject, session, err)
					}
					path := modelPath(e.opts.ModelDir, "Models_WithinSession",
						d.Code(), strconv.Itoa(subject), session, p.Name)
					if err := pipeline.SaveModel(path, fitted); err != nil {
						return nil, fmt.Errorf("saving model for %s: %w", p.Name, err)
					}
				}
			}
			e.opts.tick()
		}
	}
	return results, nil
}

// scoreSession runs k-fold cross-validation on one session, in learning
// curve mode once per (data size, permutation) pair. It also returns the
// unfitted candidate the rows were scored with, grid winner included.
func (e *WithinSession) scoreSession(p *pipeline.Pipeline, sessEp *types.Epochs, scoring string, seed int64) ([]types.Result, *pipeline.Pipeline, error) {
	rng := rand.New(rand.NewSource(seed))
	n := sessEp.Len()

	candidate := p
	var params map[string]map[string]any
	if e.opts.GridSearch {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		var err error
		candidate, params, err = selectCandidate(p, sessEp, all, scoring, rng)
		if err != nil {
			return nil, nil, err
		}
	}

	folds, err := stratifiedKFold(sessEp.Labels, e.opts.folds(), rng)
	if err != nil {
		return nil, nil, err
	}

	if lc := e.opts.LearningCurve; lc != nil {
		rows, err := e.learningCurve(candidate, sessEp, folds, lc, scoring, rng)
		if err != nil {
			return nil, nil, err
		}
		for i := range rows {
			rows[i].Params = params
		}
		return rows, candidate, nil
	}

	var scoreSum, timeSum float64
	for _, test := range folds {
		score, fitTime, err := fitAndScore(candidate, sessEp, complement(n, test), test, scoring)
		if err != nil {
			return nil, nil, err
		}
		scoreSum += score
		timeSum += fitTime
	}
	k := float64(len(folds))
	return []types.Result{{
		Score:   scoreSum / k,
		Time:    timeSum / k,
		Samples: n,
		Params:  params,
	}}, candidate, nil
}

// learningCurve subsamples every training split and emits one row per
// (data size, permutation) pair, scores averaged over folds.
func (e *WithinSession) learningCurve(p *pipeline.Pipeline, sessEp *types.Epochs, folds [][]int, lc *LearningCurve, scoring string, rng *rand.Rand) ([]types.Result, error) {
	n := sessEp.Len()
	var results []types.Result

	for vi, value := range lc.Values {
		for perm := 0; perm < lc.NPerms[vi]; perm++ {
			var scoreSum, timeSum float64
			usedSum := 0
			for _, test := range folds {
				train := complement(n, test)
				sub, err := subsample(sessEp.Labels, train, lc, value, rng)
				if err != nil {
					return nil, err
				}
				usedSum += len(sub)
				score, fitTime, err := fitAndScore(p, sessEp, sub, test, scoring)
				if err != nil {
					return nil, err
				}
				scoreSum += score
				timeSum += fitTime
			}
			// subsample sizes can differ per fold, report the mean
			k := float64(len(folds))
			used := int(float64(usedSum)/k + 0.5)
			results = append(results, types.Result{
				Score:       scoreSum / k,
				Time:        timeSum / k,
				Samples:     used,
				DataSize:    used,
				Permutation: perm,
			})
		}
	}
	return results, nil
}

// groupBySession maps session names to trial indices.
func groupBySession(ep *types.Epochs) map[string][]int {
	out := make(map[string][]int)
	for i, m := range ep.Meta {
		out[m.Session] = append(out[m.Session], i)
	}
	return out
}

func sortedSessions(m map[string][]int) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
