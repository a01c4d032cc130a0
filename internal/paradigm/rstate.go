package paradigm

import (
	"context"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/pkg/types"
)

// RestingStateToP300Adapter treats long resting-state segments as an
// oddball-style two-class problem so that P300 pipelines run unchanged on
// eyes-open/eyes-closed style datasets.
type RestingStateToP300Adapter struct {
	base
}

// NewRestingStateToP300Adapter creates the adapter. Defaults: a [10, 50]
// second window, a 1-35 Hz band and resampling to 128 Hz.
func NewRestingStateToP300Adapter(cfg Config) (*RestingStateToP300Adapter, error) {
	if cfg.TMin == 0 && cfg.TMax == 0 {
		cfg.TMin = 10
		cfg.TMax = 50
	}
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	resolveBands(&cfg, 1, 35)
	if cfg.Resample == 0 {
		cfg.Resample = 128
	}
	return &RestingStateToP300Adapter{base{cfg: cfg, kind: "rstate", scoring: ScoreROCAUC}}, nil
}

func (p *RestingStateToP300Adapter) Name() string { return "RestingStateToP300Adapter" }

// Window returns the configured trial window in seconds.
func (p *RestingStateToP300Adapter) Window() (tmin, tmax float64) {
	return p.cfg.TMin, p.cfg.TMax
}

// Band returns the configured pass band.
func (p *RestingStateToP300Adapter) Band() (fmin, fmax float64) {
	return p.cfg.Filters[0][0], p.cfg.Filters[0][1]
}

// ResampleRate returns the configured resampling rate.
func (p *RestingStateToP300Adapter) ResampleRate() float64 {
	return p.cfg.Resample
}

func (p *RestingStateToP300Adapter) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}
