package tuning

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	MaxEnergy           int     `yaml:"max_energy" json:"max_energy"`
	StartEnergy         int     `yaml:"start_energy" json:"start_energy"`
	RechargeAmount      int     `yaml:"recharge_amount" json:"recharge_amount"`
	RechargeIntervalSec int     `yaml:"recharge_interval_sec" json:"recharge_interval_sec"`
	LowEnergyThreshold  float64 `yaml:"low_energy_threshold" json:"low_energy_threshold"`
	MinReservePct       int     `yaml:"min_reserve_pct" json:"min_reserve_pct"`
	MaxPurchaseAmount   int     `yaml:"max_purchase_amount" json:"max_purchase_amount"`
	UnitPurchaseCost    int64   `yaml:"unit_purchase_cost" json:"unit_purchase_cost"`

	ActionCaps map[string]int `yaml:"action_caps" json:"action_caps"`

	// Price tiers are matched in listed order; the first match wins.
	BulkTiers   []BulkTier   `yaml:"bulk_tiers" json:"bulk_tiers"`
	DemandTiers []DemandTier `yaml:"demand_tiers" json:"demand_tiers"`

	Flags Flags `yaml:"flags" json:"flags"`
}

type BulkTier struct {
	MinAmount  int    `yaml:"min_amount" json:"min_amount"`
	Multiplier string `yaml:"multiplier" json:"multiplier"`
}

type DemandTier struct {
	MaxRemainingPct int    `yaml:"max_remaining_pct" json:"max_remaining_pct"`
	Multiplier      string `yaml:"multiplier" json:"multiplier"`
}

type Flags struct {
	EnableRecovery   bool `yaml:"enable_recovery" json:"enable_recovery"`
	EnablePurchase   bool `yaml:"enable_purchase" json:"enable_purchase"`
	EnableValidation bool `yaml:"enable_validation" json:"enable_validation"`
}

func Defaults() Tuning {
	return Tuning{
		MaxEnergy:           100,
		StartEnergy:         100,
		RechargeAmount:      1,
		RechargeIntervalSec: 600,
		LowEnergyThreshold:  0.2,
		MinReservePct:       10,
		MaxPurchaseAmount:   100,
		UnitPurchaseCost:    2,
		ActionCaps: map[string]int{
			"PLAY_LEVEL": 20,
			"RAID":       30,
		},
		BulkTiers: []BulkTier{
			{MinAmount: 10, Multiplier: "0.9"},
			{MinAmount: 25, Multiplier: "0.8"},
			{MinAmount: 50, Multiplier: "0.7"},
		},
		DemandTiers: []DemandTier{
			{MaxRemainingPct: 10, Multiplier: "1.5"},
			{MaxRemainingPct: 25, Multiplier: "1.2"},
		},
		Flags: Flags{
			EnableRecovery:   true,
			EnablePurchase:   true,
			EnableValidation: true,
		},
	}
}

// Load reads a tuning file over the built-in defaults. Fields absent from
// the file keep their default values. An empty path loads defaults only.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, err
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.MaxEnergy <= 0 {
		return fmt.Errorf("max_energy must be > 0, got %d", t.MaxEnergy)
	}
	if t.StartEnergy < 0 {
		return fmt.Errorf("start_energy must be >= 0, got %d", t.StartEnergy)
	}
	if t.RechargeAmount <= 0 {
		return fmt.Errorf("recharge_amount must be > 0, got %d", t.RechargeAmount)
	}
	if t.RechargeIntervalSec <= 0 {
		return fmt.Errorf("recharge_interval_sec must be > 0, got %d", t.RechargeIntervalSec)
	}
	if t.LowEnergyThreshold < 0 || t.LowEnergyThreshold > 1 {
		return fmt.Errorf("low_energy_threshold must be in [0,1], got %g", t.LowEnergyThreshold)
	}
	if t.MinReservePct < 0 || t.MinReservePct > 100 {
		return fmt.Errorf("min_reserve_pct must be in [0,100], got %d", t.MinReservePct)
	}
	if t.MaxPurchaseAmount <= 0 {
		return fmt.Errorf("max_purchase_amount must be > 0, got %d", t.MaxPurchaseAmount)
	}
	if t.UnitPurchaseCost <= 0 {
		return fmt.Errorf("unit_purchase_cost must be > 0, got %d", t.UnitPurchaseCost)
	}
	for action, cap := range t.ActionCaps {
		if action == "" || cap <= 0 {
			return fmt.Errorf("action_caps[%q] must name an action with a cap > 0, got %d", action, cap)
		}
	}
	for i, tier := range t.BulkTiers {
		if tier.MinAmount <= 0 {
			return fmt.Errorf("bulk_tiers[%d].min_amount must be > 0, got %d", i, tier.MinAmount)
		}
		if _, err := decimal.NewFromString(tier.Multiplier); err != nil {
			return fmt.Errorf("bulk_tiers[%d].multiplier: %w", i, err)
		}
	}
	for i, tier := range t.DemandTiers {
		if tier.MaxRemainingPct <= 0 || tier.MaxRemainingPct > 100 {
			return fmt.Errorf("demand_tiers[%d].max_remaining_pct must be in (0,100], got %d", i, tier.MaxRemainingPct)
		}
		if _, err := decimal.NewFromString(tier.Multiplier); err != nil {
			return fmt.Errorf("demand_tiers[%d].multiplier: %w", i, err)
		}
	}
	return nil
}

func (t Tuning) RechargeInterval() time.Duration {
	return time.Duration(t.RechargeIntervalSec) * time.Second
}

// ValidateSchema checks a tuning file against a JSON Schema. The YAML
// document is round-tripped through JSON so the validator sees plain JSON
// types.
func ValidateSchema(path, schemaPath string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	s, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("schema %s: %w", schemaPath, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	return nil
}

// Store holds the active tuning snapshot. Swapping replaces the snapshot
// for every component reading through the store; calls in flight keep the
// snapshot they already read.
type Store struct {
	cur Tuning
}

func NewStore(t Tuning) *Store {
	return &Store{cur: t}
}

func (s *Store) Current() Tuning {
	t := s.cur
	if t.ActionCaps != nil {
		caps := make(map[string]int, len(t.ActionCaps))
		for k, v := range t.ActionCaps {
			caps[k] = v
		}
		t.ActionCaps = caps
	}
	t.BulkTiers = append([]BulkTier(nil), t.BulkTiers...)
	t.DemandTiers = append([]DemandTier(nil), t.DemandTiers...)
	return t
}

func (s *Store) Swap(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.cur = t
	return nil
}
