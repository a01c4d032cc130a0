package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/pkg/types"
)

// CrossSession evaluates session transfer: for every subject each session
// is held out in turn while the pipeline trains on the rest.
type CrossSession struct {
	opts Options
}

func NewCrossSession(opts Options) (*CrossSession, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.LearningCurve != nil {
		return nil, fmt.Errorf("learning curve mode is within-session only")
	}
	return &CrossSession{opts: opts}, nil
}

func (e *CrossSession) Name() string { return "CrossSession" }

func (e *CrossSession) IsValid(d dataset.Dataset) bool {
	return e.opts.Paradigm.IsValid(d) && d.Info().NSessions >= 2
}

func (e *CrossSession) Evaluate(ctx context.Context, d dataset.Dataset, pipes []*pipeline.Pipeline) ([]types.Result, error) {
	if d.Info().NSessions < 2 {
		return nil, fmt.Errorf("dataset %s has fewer than two sessions", d.Code())
	}
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
		names := sortedSessions(sessions)
		if len(names) < 2 {
			return nil, fmt.Errorf("subject %d has fewer than two sessions", subject)
		}

		for _, p := range pipes {
			for _, held := range names {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				var train []int
				for _, s := range names {
					if s != held {
						train = append(train, sessions[s]...)
					}
				}
				test := sessions[held]

				rng := rand.New(rand.NewSource(seedFor(e.opts.Seed, d.Code(), fmt.Sprint(subject), held, p.Name)))
				candidate := p
				var params map[string]map[string]any
				if e.opts.GridSearch {
					candidate, params, err = selectCandidate(p, epochs, train, scoring, rng)
					if err != nil {
						return nil, fmt.Errorf("subject %d: %w", subject, err)
					}
				}

				score, fitTime, err := fitAndScore(candidate, epochs, train, test, scoring)
				if err != nil {
					return nil, fmt.Errorf("subject %d session %s: %w", subject, held, err)
				}

				if e.opts.ModelDir != "" {
					fitted := candidate.Clone()
					trainEp := epochs.Select(train)
					if err := fitted.Fit(pipeline.NewBatch(trainEp), trainEp.Labels); err != nil {
						return nil, fmt.Errorf("subject %d session %s: %w", subject, held, err)
					}
					path := modelPath(e.opts.ModelDir, "Models_CrossSession",
						d.Code(), strconv.Itoa(subject), held, p.Name)
					if err := pipeline.SaveModel(path, fitted); err != nil {
						return nil, fmt.Errorf("saving model for %s: %w", p.Name, err)
					}
				}

				results = append(results, types.Result{
					Score:     score,
					Time:      fitTime,
					Samples:   len(train),
					Channels:  len(epochs.Channels),
					Subject:   subject,
					Session:   held,
					Dataset:   d.Code(),
					Pipeline:  p.Name,
					Params:    params,
					Evaluated: time.Now().UTC(),
				})
			}
			e.opts.tick()
		}
	}
	return results, nil
}

// CrossSubject evaluates subject transfer: each subject is held out in
// turn while the pipeline trains on everyone else, scored per session of
// the held-out subject.
type CrossSubject struct {
	opts Options
}

func NewCrossSubject(opts Options) (*CrossSubject, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.LearningCurve != nil {
		return nil, fmt.Errorf("learning curve mode is within-session only")
	}
	return &CrossSubject{opts: opts}, nil
}

func (e *CrossSubject) Name() string { return "CrossSubject" }

func (e *CrossSubject) IsValid(d dataset.Dataset) bool {
	return e.opts.Paradigm.IsValid(d) && len(d.Subjects()) >= 2
}

func (e *CrossSubject) Evaluate(ctx context.Context, d dataset.Dataset, pipes []*pipeline.Pipeline) ([]types.Result, error) {
	subjects, err := e.opts.subjects(d)
	if err != nil {
		return nil, err
	}
	if len(subjects) < 2 {
		return nil, fmt.Errorf("cross-subject evaluation needs at least two subjects")
	}
	scoring := e.opts.Paradigm.Scoring()

	epochs, err := e.opts.Paradigm.GetData(ctx, d, subjects)
	if err != nil {
		return nil, err
	}
	bySubject := make(map[int][]int)
	for i, m := range epochs.Meta {
		bySubject[m.Subject] = append(bySubject[m.Subject], i)
	}

	var results []types.Result
	for _, p := range pipes {
		for _, held := range subjects {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var train []int
			for _, s := range subjects {
				if s != held {
					train = append(train, bySubject[s]...)
				}
			}

			rng := rand.New(rand.NewSource(seedFor(e.opts.Seed, d.Code(), fmt.Sprint(held), p.Name)))
			candidate := p
			var params map[string]map[string]any
			if e.opts.GridSearch {
				candidate, params, err = selectCandidate(p, epochs, train, scoring, rng)
				if err != nil {
					return nil, fmt.Errorf("subject %d: %w", held, err)
				}
			}

			fitted := candidate.Clone()
			trainEp := epochs.Select(train)
			start := time.Now()
			if err := fitted.Fit(pipeline.NewBatch(trainEp), trainEp.Labels); err != nil {
				return nil, fmt.Errorf("subject %d: %w", held, err)
			}
			fitTime := time.Since(start).Seconds()

			if e.opts.ModelDir != "" {
				path := modelPath(e.opts.ModelDir, "Models_CrossSubject",
					d.Code(), strconv.Itoa(held), p.Name)
				if err := pipeline.SaveModel(path, fitted); err != nil {
					return nil, fmt.Errorf("saving model for %s: %w", p.Name, err)
				}
			}

			heldEp := epochs.Select(bySubject[held])
			testSessions := groupBySession(heldEp)
			for _, session := range sortedSessions(testSessions) {
				score, err := scorePipeline(fitted, heldEp.Select(testSessions[session]), scoring)
				if err != nil {
					return nil, fmt.Errorf("subject %d session %s: %w", held, session, err)
				}
				results = append(results, types.Result{
					Score:     score,
					Time:      fitTime,
					Samples:   len(train),
					Channels:  len(epochs.Channels),
					Subject:   held,
					Session:   session,
					Dataset:   d.Code(),
					Pipeline:  p.Name,
					Params:    params,
					Evaluated: time.Now().UTC(),
				})
			}
			e.opts.tick()
		}
	}
	return results, nil
}

// New constructs an evaluation scheme by name: "WithinSession",
// "CrossSession" or "CrossSubject".
func New(name string, opts Options) (Evaluation, error) {
	switch name {
	case "WithinSession":
		return NewWithinSession(opts)
	case "CrossSession":
		return NewCrossSession(opts)
	case "CrossSubject":
		return NewCrossSubject(opts)
	default:
		return nil, fmt.Errorf("unknown evaluation %q", name)
	}
}
