package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/neurobench/neurobench/pkg/types"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Summary aggregates one pipeline's scores on one dataset.
type Summary struct {
	Dataset   string  `json:"dataset"`
	Pipeline  string  `json:"pipeline"`
	N         int     `json:"n"`
	MeanScore float64 `json:"mean_score"`
	StdScore  float64 `json:"std_score"`
	MeanTime  float64 `json:"mean_time"`
}

// Summarize reduces result rows to per-(dataset, pipeline) mean and
// standard deviation, sorted by dataset then pipeline.
func Summarize(rows []types.Result) []Summary {
	type key struct{ dataset, pipeline string }
	scores := make(map[key][]float64)
	times := make(map[key][]float64)
	for _, r := range rows {
		k := key{r.Dataset, r.Pipeline}
		scores[k] = append(scores[k], r.Score)
		times[k] = append(times[k], r.Time)
	}

	out := make([]Summary, 0, len(scores))
	for k, s := range scores {
		std := 0.0
		if len(s) > 1 {
			std = math.Sqrt(stat.Variance(s, nil))
		}
		out = append(out, Summary{
			Dataset:   k.dataset,
			Pipeline:  k.pipeline,
			N:         len(s),
			MeanScore: stat.Mean(s, nil),
			StdScore:  std,
			MeanTime:  stat.Mean(times[k], nil),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dataset != out[j].Dataset {
			return out[i].Dataset < out[j].Dataset
		}
		return out[i].Pipeline < out[j].Pipeline
	})
	return out
}

// Comparison is a paired test of two pipelines on one dataset: the
// standardized mean difference of subject-level scores and the one-sided
// p-value that A scores higher than B.
type Comparison struct {
	Dataset   string  `json:"dataset"`
	PipelineA string  `json:"pipeline_a"`
	PipelineB string  `json:"pipeline_b"`
	NSubjects int     `json:"n_subjects"`
	Effect    float64 `json:"effect"`
	PValue    float64 `json:"p_value"`
}

// Pairwise compares every pipeline pair on every dataset using subject
// averages, so multi-session rows collapse to one observation per subject.
func Pairwise(rows []types.Result) ([]Comparison, error) {
	// dataset -> pipeline -> subject -> scores
	grouped := make(map[string]map[string]map[int][]float64)
	for _, r := range rows {
		if grouped[r.Dataset] == nil {
			grouped[r.Dataset] = make(map[string]map[int][]float64)
		}
		if grouped[r.Dataset][r.Pipeline] == nil {
			grouped[r.Dataset][r.Pipeline] = make(map[int][]float64)
		}
		grouped[r.Dataset][r.Pipeline][r.Subject] = append(grouped[r.Dataset][r.Pipeline][r.Subject], r.Score)
	}

	var out []Comparison
	for _, dataset := range sortedKeys(grouped) {
		pipes := sortedKeys(grouped[dataset])
		for i := 0; i < len(pipes); i++ {
			for j := 0; j < len(pipes); j++ {
				if i == j {
					continue
				}
				a, b := pipes[i], pipes[j]
				diffs := pairedDiffs(grouped[dataset][a], grouped[dataset][b])
				if len(diffs) < 2 {
					return nil, fmt.Errorf("dataset %s: pipelines %s and %s share fewer than two subjects", dataset, a, b)
				}
				out = append(out, Comparison{
					Dataset:   dataset,
					PipelineA: a,
					PipelineB: b,
					NSubjects: len(diffs),
					Effect:    standardizedMeanDiff(diffs),
					PValue:    wilcoxonGreater(diffs),
				})
			}
		}
	}
	return out, nil
}

// pairedDiffs averages each subject's scores per pipeline and returns the
// per-subject differences a - b for subjects present in both.
func pairedDiffs(a, b map[int][]float64) []float64 {
	subjects := make([]int, 0, len(a))
	for s := range a {
		if _, ok := b[s]; ok {
			subjects = append(subjects, s)
		}
	}
	sort.Ints(subjects)
	diffs := make([]float64, len(subjects))
	for i, s := range subjects {
		diffs[i] = stat.Mean(a[s], nil) - stat.Mean(b[s], nil)
	}
	return diffs
}

// standardizedMeanDiff is the mean difference over its standard deviation.
func standardizedMeanDiff(diffs []float64) float64 {
	mean := stat.Mean(diffs, nil)
	sd := math.Sqrt(stat.Variance(diffs, nil))
	if sd == 0 {
		if mean == 0 {
			return 0
		}
		return math.Inf(int(math.Copysign(1, mean)))
	}
	return mean / sd
}

// wilcoxonGreater is the one-sided signed-rank test p-value for the
// alternative "differences are positive", using the normal approximation
// with tie-averaged ranks. Zero differences are discarded.
func wilcoxonGreater(diffs []float64) float64 {
	var nz []float64
	for _, d := range diffs {
		if d != 0 {
			nz = append(nz, d)
		}
	}
	n := len(nz)
	if n == 0 {
		return 0.5
	}

	abs := make([]float64, n)
	for i, d := range nz {
		abs[i] = math.Abs(d)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return abs[order[a]] < abs[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && abs[order[j]] == abs[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var wPlus float64
	for i, d := range nz {
		if d > 0 {
			wPlus += ranks[i]
		}
	}

	nf := float64(n)
	mean := nf * (nf + 1) / 4
	sd := math.Sqrt(nf * (nf + 1) * (2*nf + 1) / 24)
	if sd == 0 {
		return 0.5
	}
	// continuity corrected
	z := (wPlus - mean - 0.5) / sd
	return 1 - stdNormal.CDF(z)
}

// CombinedComparison is a pipeline pair's evidence pooled across datasets.
type CombinedComparison struct {
	PipelineA string  `json:"pipeline_a"`
	PipelineB string  `json:"pipeline_b"`
	NDatasets int     `json:"n_datasets"`
	Effect    float64 `json:"effect"`
	PValue    float64 `json:"p_value"`
}

// Combine pools per-dataset comparisons for each pipeline pair: Stouffer's
// method with sqrt(n) weights for p-values, subject-weighted mean for
// effect sizes.
func Combine(comps []Comparison) []CombinedComparison {
	type pair struct{ a, b string }
	grouped := make(map[pair][]Comparison)
	for _, c := range comps {
		p := pair{c.PipelineA, c.PipelineB}
		grouped[p] = append(grouped[p], c)
	}

	pairs := make([]pair, 0, len(grouped))
	for p := range grouped {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	out := make([]CombinedComparison, 0, len(pairs))
	for _, p := range pairs {
		cs := grouped[p]
		ps := make([]float64, len(cs))
		ws := make([]float64, len(cs))
		var effectSum, weightSum float64
		for i, c := range cs {
			ps[i] = c.PValue
			ws[i] = math.Sqrt(float64(c.NSubjects))
			effectSum += c.Effect * float64(c.NSubjects)
			weightSum += float64(c.NSubjects)
		}
		out = append(out, CombinedComparison{
			PipelineA: p.a,
			PipelineB: p.b,
			NDatasets: len(cs),
			Effect:    effectSum / weightSum,
			PValue:    StoufferCombine(ps, ws),
		})
	}
	return out
}

// StoufferCombine pools one-sided p-values with the weighted z method.
func StoufferCombine(ps, weights []float64) float64 {
	var zSum, wSq float64
	for i, p := range ps {
		// clamp away from the quantile singularities
		if p < 1e-15 {
			p = 1e-15
		}
		if p > 1-1e-15 {
			p = 1 - 1e-15
		}
		w := weights[i]
		zSum += w * stdNormal.Quantile(1-p)
		wSq += w * w
	}
	if wSq == 0 {
		return 0.5
	}
	return 1 - stdNormal.CDF(zSum/math.Sqrt(wSq))
}

// Rank is a pipeline's mean rank across subjects of one dataset, rank 1
// being the best score.
type Rank struct {
	Dataset  string  `json:"dataset"`
	Pipeline string  `json:"pipeline"`
	MeanRank float64 `json:"mean_rank"`
}

// Rankings ranks pipelines within every (dataset, subject) group by mean
// score and averages the ranks per dataset.
func Rankings(rows []types.Result) []Rank {
	// dataset -> subject -> pipeline -> scores
	grouped := make(map[string]map[int]map[string][]float64)
	for _, r := range rows {
		if grouped[r.Dataset] == nil {
			grouped[r.Dataset] = make(map[int]map[string][]float64)
		}
		if grouped[r.Dataset][r.Subject] == nil {
			grouped[r.Dataset][r.Subject] = make(map[string][]float64)
		}
		grouped[r.Dataset][r.Subject][r.Pipeline] = append(grouped[r.Dataset][r.Subject][r.Pipeline], r.Score)
	}

	var out []Rank
	for _, dataset := range sortedKeys(grouped) {
		rankSum := make(map[string]float64)
		rankCount := make(map[string]int)
		for _, byPipe := range grouped[dataset] {
			pipes := make([]string, 0, len(byPipe))
			for p := range byPipe {
				pipes = append(pipes, p)
			}
			sort.Slice(pipes, func(i, j int) bool {
				return stat.Mean(byPipe[pipes[i]], nil) > stat.Mean(byPipe[pipes[j]], nil)
			})
			for i, p := range pipes {
				rankSum[p] += float64(i + 1)
				rankCount[p]++
			}
		}
		names := make([]string, 0, len(rankSum))
		for p := range rankSum {
			names = append(names, p)
		}
		sort.Strings(names)
		for _, p := range names {
			out = append(out, Rank{
				Dataset:  dataset,
				Pipeline: p,
				MeanRank: rankSum[p] / float64(rankCount[p]),
			})
		}
	}
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
