package paradigm

import (
	"context"
	"fmt"
	"strconv"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/pkg/types"
)

// SSVEP is the steady-state visually evoked potential paradigm: one class
// per stimulation frequency, a single wide pass band.
type SSVEP struct {
	base
}

// NewSSVEP creates the single-band SSVEP paradigm. Multiple filters are
// rejected; use FilterBankSSVEP for per-frequency bands.
func NewSSVEP(cfg Config) (*SSVEP, error) {
	if len(cfg.Filters) > 1 {
		return nil, fmt.Errorf("SSVEP accepts a single pass band, got %d; use FilterBankSSVEP", len(cfg.Filters))
	}
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	if cfg.NClasses > 0 && len(cfg.Events) > 0 && len(cfg.Events) < cfg.NClasses {
		return nil, fmt.Errorf("%d classes requested from %d events", cfg.NClasses, len(cfg.Events))
	}
	resolveBands(&cfg, 7, 45)
	return &SSVEP{base{cfg: cfg, kind: "ssvep", scoring: ScoreAccuracy}}, nil
}

func (p *SSVEP) Name() string { return "SSVEP" }

func (p *SSVEP) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}

// FilterBankSSVEP filters one narrow band around each stimulation
// frequency, so each trial carries one matrix per class frequency.
type FilterBankSSVEP struct {
	base
}

// NewFilterBankSSVEP creates the filter-bank SSVEP paradigm. Without an
// explicit bank, one 1 Hz-wide band is derived per stimulation frequency
// from the paradigm (or dataset) event labels at preprocessing time.
func NewFilterBankSSVEP(cfg Config) (*FilterBankSSVEP, error) {
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	if cfg.NClasses > 0 && len(cfg.Events) > 0 && len(cfg.Events) < cfg.NClasses {
		return nil, fmt.Errorf("%d classes requested from %d events", cfg.NClasses, len(cfg.Events))
	}
	return &FilterBankSSVEP{base{cfg: cfg, kind: "ssvep", scoring: ScoreAccuracy}}, nil
}

func (p *FilterBankSSVEP) Name() string { return "FilterBankSSVEP" }

func (p *FilterBankSSVEP) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	if len(p.cfg.Filters) == 0 {
		bands, err := p.frequencyBands(d)
		if err != nil {
			return nil, err
		}
		// bind the derived bank for this call; the config itself is
		// dataset independent
		bound := *p
		bound.cfg.Filters = bands
		return bound.getData(ctx, d, subjects)
	}
	return p.getData(ctx, d, subjects)
}

// frequencyBands derives a 1 Hz band centered on each stimulation
// frequency. SSVEP event labels are the stimulation frequencies in Hz.
func (p *FilterBankSSVEP) frequencyBands(d dataset.Dataset) ([][2]float64, error) {
	events, err := p.usedEvents(d)
	if err != nil {
		return nil, err
	}

	bands := make([][2]float64, 0, len(events))
	for _, ev := range events {
		freq, err := strconv.ParseFloat(ev, 64)
		if err != nil {
			return nil, fmt.Errorf("SSVEP event %q is not a stimulation frequency", ev)
		}
		bands = append(bands, [2]float64{freq - 0.5, freq + 0.5})
	}
	return bands, nil
}
