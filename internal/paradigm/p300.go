package paradigm

import (
	"context"
	"fmt"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/pkg/types"
)

// P300 is the event-related potential paradigm: Target vs NonTarget epochs,
// scored by ROC-AUC since the class balance is heavily skewed in practice.
type P300 struct {
	base
}

// NewP300 creates the P300 paradigm. The Target/NonTarget event set is
// fixed.
func NewP300(cfg Config) (*P300, error) {
	if len(cfg.Events) > 0 {
		return nil, fmt.Errorf("P300 does not accept an event list")
	}
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	cfg.Events = []string{"Target", "NonTarget"}
	resolveBands(&cfg, 1, 24)
	return &P300{base{cfg: cfg, kind: "p300", scoring: ScoreROCAUC}}, nil
}

func (p *P300) Name() string { return "P300" }

func (p *P300) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}

// BaseP300 keeps the P300 preprocessing but leaves the event set open, for
// datasets that encode their oddball conditions differently.
type BaseP300 struct {
	base
}

// NewBaseP300 creates a P300-style paradigm with a configurable event set.
func NewBaseP300(cfg Config) (*BaseP300, error) {
	if err := cfg.validateWindow(); err != nil {
		return nil, err
	}
	resolveBands(&cfg, 1, 24)
	return &BaseP300{base{cfg: cfg, kind: "p300", scoring: ScoreROCAUC}}, nil
}

func (p *BaseP300) Name() string { return "BaseP300" }

func (p *BaseP300) GetData(ctx context.Context, d dataset.Dataset, subjects []int) (*types.Epochs, error) {
	return p.getData(ctx, d, subjects)
}
