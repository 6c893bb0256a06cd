package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuning(t *testing.T) {
	tu := DefaultTuning()

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"assumed cpl", tu.Orchestration.AssumedCPL, 25},
		{"max change", tu.Orchestration.MaxDailyBudgetChange, 0.2},
		{"min budget", tu.Orchestration.MinBudget, 5},
		{"max budget", tu.Orchestration.MaxBudget, 1000},
		{"utilization", tu.Planning.TargetUtilization, 0.8},
		{"min target leads", float64(tu.Planning.MinTargetLeads), 5},
		{"keyword clicks", float64(tu.Optimizer.KeywordMinClicks), 100},
		{"ad impressions", float64(tu.Optimizer.AdMinImpressions), 1000},
		{"ad ctr", tu.Optimizer.AdMinCTR, 0.01},
		{"max pauses", float64(tu.Optimizer.MaxPausesPerRun), 10},
		{"budget opt min leads", float64(tu.BudgetOpt.MinLeads), 5},
		{"budget opt window", float64(tu.BudgetOpt.WindowDays), 7},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}

	if err := tu.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadTuning_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "orchestration:\n  assumed_cpl: 30\n  max_budget: 2500\noptimizer:\n  max_pauses_per_run: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	tu, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tu.Orchestration.AssumedCPL != 30 || tu.Orchestration.MaxBudget != 2500 {
		t.Errorf("overlay not applied: %+v", tu.Orchestration)
	}
	if tu.Orchestration.MinBudget != 5 {
		t.Errorf("untouched default changed: min budget = %v", tu.Orchestration.MinBudget)
	}
	if tu.Optimizer.MaxPausesPerRun != 3 {
		t.Errorf("max pauses = %d, want 3", tu.Optimizer.MaxPausesPerRun)
	}
}

func TestLoadTuning_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"max below min", "orchestration:\n  min_budget: 100\n  max_budget: 50\n"},
		{"change over one", "orchestration:\n  max_daily_budget_change: 1.5\n"},
		{"zero cpl", "orchestration:\n  assumed_cpl: 0\n"},
		{"inverted ratios", "budget_optimizer:\n  low_cpl_ratio: 1.5\n  high_cpl_ratio: 1.2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tuning.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadTuning(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEADFLOW_ADS_CALL_TIMEOUT", "5s")
	t.Setenv("LEADFLOW_DAY_OFFSET", "0")
	t.Setenv("LEADFLOW_PLAN_OPTIMISTIC_LOCK", "false")
	t.Setenv("LEADFLOW_REDIS_KEY_PREFIX", "lf-staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ads.CallTimeout != 5*time.Second {
		t.Errorf("call timeout = %v", cfg.Ads.CallTimeout)
	}
	if cfg.Pipeline.DayOffset != 0 {
		t.Errorf("day offset = %d", cfg.Pipeline.DayOffset)
	}
	if cfg.Pipeline.PlanOptimisticLock {
		t.Error("optimistic lock should be disabled")
	}
	if cfg.Redis.KeyPrefix != "lf-staging" || cfg.Redis.PoolSize != 4 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Location().String() != "Europe/Amsterdam" {
		t.Errorf("location = %s", cfg.Location())
	}
}

func TestValidate_AuthRequiresKey(t *testing.T) {
	t.Setenv("LEADFLOW_AUTH_ENABLED", "true")
	t.Setenv("LEADFLOW_API_KEY_MASTER", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without master key")
	}
}
