package paradigm

import (
	"context"
	"fmt"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/pkg/types"
)

// filterBankDefault is the canonical 6-band motor imagery filter bank.
var filterBankDefault = [][2]float64{
	{8, 12}, {12, 16}, {16, 20}, {20, 24}, {24, 28}, {28, 32},
}

// MotorImagery is the generic motor imagery paradigm: band-pass filtered
// epochs around imagined-movement events, scored by accuracy.
type MotorImagery struct {
	base
}

// NewMotorImagery creates a motor imagery paradigm.
func NewMotorImagery(cfg Config) (*MotorImagery, error) {
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	if cfg.NClasses > 0 && len(cfg.Events) > 0 && len(cfg.Events) < cfg.NClasses {
		return nil, fmt.Errorf("%d classes requested from %d events", cfg.NClasses, len(cfg.Events))
	}
	resolveBands(&cfg, 8, 32)
	return &MotorImagery{base{cfg: cfg, kind: "imagery", scoring: ScoreAccuracy}}, nil
}

func (p *MotorImagery) Name() string { return "MotorImagery" }

func (p *MotorImagery) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}

// LeftRightImagery is the two-class left hand vs right hand paradigm. The
// event set is fixed; configurations that try to override it are rejected.
type LeftRightImagery struct {
	base
}

// NewLeftRightImagery creates the left vs right hand paradigm.
func NewLeftRightImagery(cfg Config) (*LeftRightImagery, error) {
	if len(cfg.Events) > 0 {
		return nil, fmt.Errorf("LeftRightImagery does not accept an event list")
	}
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	cfg.Events = []string{"left_hand", "right_hand"}
	resolveBands(&cfg, 8, 32)
	return &LeftRightImagery{base{cfg: cfg, kind: "imagery", scoring: ScoreAccuracy}}, nil
}

func (p *LeftRightImagery) Name() string { return "LeftRightImagery" }

func (p *LeftRightImagery) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}

// FilterBankMotorImagery is motor imagery over a bank of narrow bands,
// producing one matrix per band for each trial.
type FilterBankMotorImagery struct {
	base
}

// NewFilterBankMotorImagery creates the filter-bank variant. Without an
// explicit bank it uses six 4 Hz bands between 8 and 32 Hz.
func NewFilterBankMotorImagery(cfg Config) (*FilterBankMotorImagery, error) {
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	if cfg.NClasses > 0 && len(cfg.Events) > 0 && len(cfg.Events) < cfg.NClasses {
		return nil, fmt.Errorf("%d classes requested from %d events", cfg.NClasses, len(cfg.Events))
	}
	if len(cfg.Filters) == 0 {
		cfg.Filters = filterBankDefault
	}
	return &FilterBankMotorImagery{base{cfg: cfg, kind: "imagery", scoring: ScoreAccuracy}}, nil
}

func (p *FilterBankMotorImagery) Name() string { return "FilterBankMotorImagery" }

func (p *FilterBankMotorImagery) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}

// FilterBankLeftRightImagery combines the fixed left/right event set with
// the filter bank.
type FilterBankLeftRightImagery struct {
	base
}

// NewFilterBankLeftRightImagery creates the filter-bank left vs right paradigm.
func NewFilterBankLeftRightImagery(cfg Config) (*FilterBankLeftRightImagery, error) {
	if len(cfg.Events) > 0 {
		return nil, fmt.Errorf("FilterBankLeftRightImagery does not accept an event list")
	}
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	cfg.Events = []string{"left_hand", "right_hand"}
	if len(cfg.Filters) == 0 {
		cfg.Filters = filterBankDefault
	}
	return &FilterBankLeftRightImagery{base{cfg: cfg, kind: "imagery", scoring: ScoreAccuracy}}, nil
}

func (p *FilterBankLeftRightImagery) Name() string { return "FilterBankLeftRightImagery" }

func (p *FilterBankLeftRightImagery) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}
