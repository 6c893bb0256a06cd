package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Tuning holds the business thresholds of the pipeline. Money is in EUR.
type Tuning struct {
	Orchestration OrchestrationTuning `yaml:"orchestration"`
	Planning      PlanningTuning      `yaml:"planning"`
	Optimizer     OptimizerTuning     `yaml:"optimizer"`
	BudgetOpt     BudgetOptTuning     `yaml:"budget_optimizer"`
}

type OrchestrationTuning struct {
	// AssumedCPL converts a lead gap into a budget delta.
	AssumedCPL float64 `yaml:"assumed_cpl" default:"25" validate:"gt=0"`
	// MaxDailyBudgetChange is the largest fraction of the current budget moved per run.
	MaxDailyBudgetChange float64 `yaml:"max_daily_budget_change" default:"0.2" validate:"gt=0,lte=1"`
	MinBudget            float64 `yaml:"min_budget" default:"5" validate:"gte=0"`
	MaxBudget            float64 `yaml:"max_budget" default:"1000" validate:"gtfield=MinBudget"`
	// MinDelta is the smallest absolute change worth sending to the ad platform.
	MinDelta float64 `yaml:"min_delta" default:"0.01" validate:"gte=0"`
}

type PlanningTuning struct {
	TargetUtilization float64 `yaml:"target_utilization" default:"0.8" validate:"gt=0,lte=1"`
	MinTargetLeads    int     `yaml:"min_target_leads" default:"5" validate:"gte=0"`
}

type OptimizerTuning struct {
	KeywordMinClicks int64   `yaml:"keyword_min_clicks" default:"100" validate:"gt=0"`
	AdMinImpressions int64   `yaml:"ad_min_impressions" default:"1000" validate:"gt=0"`
	AdMinCTR         float64 `yaml:"ad_min_ctr" default:"0.01" validate:"gt=0,lt=1"`
	QualityScoreMin  int     `yaml:"quality_score_min" default:"5" validate:"gte=1,lte=10"`
	MaxCPC           float64 `yaml:"max_cpc" default:"5" validate:"gt=0"`
	MaxCPA           float64 `yaml:"max_cpa" default:"100" validate:"gt=0"`
	MaxPausesPerRun  int     `yaml:"max_pauses_per_run" default:"10" validate:"gte=0"`
	WindowDays       int     `yaml:"window_days" default:"30" validate:"gt=0"`
}

type BudgetOptTuning struct {
	MinLeads         int     `yaml:"min_leads" default:"5" validate:"gte=0"`
	MaxChangePct     float64 `yaml:"max_change_pct" default:"0.2" validate:"gt=0,lte=1"`
	DefaultTargetCPL float64 `yaml:"default_target_cpl" default:"25" validate:"gt=0"`
	LowCPLRatio      float64 `yaml:"low_cpl_ratio" default:"0.7" validate:"gt=0,ltfield=HighCPLRatio"`
	HighCPLRatio     float64 `yaml:"high_cpl_ratio" default:"1.3" validate:"gt=0"`
	WindowDays       int     `yaml:"window_days" default:"7" validate:"gt=0"`
	// Segment bounds fall back to these when a segment leaves them unset.
	DefaultMinBudget float64 `yaml:"default_min_budget" default:"5" validate:"gte=0"`
	DefaultMaxBudget float64 `yaml:"default_max_budget" default:"1000" validate:"gtfield=DefaultMinBudget"`
}

// DefaultTuning returns the tuning with every default applied.
func DefaultTuning() *Tuning {
	t := &Tuning{}
	if err := defaults.Set(t); err != nil {
		panic(fmt.Sprintf("tuning defaults: %v", err))
	}
	return t
}

// LoadTuning applies defaults, overlays the YAML file at path when set and
// validates the result.
func LoadTuning(path string) (*Tuning, error) {
	t := &Tuning{}
	if err := defaults.Set(t); err != nil {
		return nil, fmt.Errorf("tuning defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tuning file: %w", err)
		}
		if err := yaml.Unmarshal(b, t); err != nil {
			return nil, fmt.Errorf("parse tuning file: %w", err)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks every threshold against its declared bounds.
func (t *Tuning) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("validate tuning: %w", err)
	}
	return nil
}
