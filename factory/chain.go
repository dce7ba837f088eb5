/*
Package factory provides JSON to Go rule chain conversion.

PURPOSE:
  Converts JSON chain definitions into an ordered []allowance.Rule. This
  lets operators change a country's chain (order, thresholds, factors)
  without code changes; chains are stored as JSON in the database.

JSON SCHEMA:
  {
    "country": "PL",
    "rules": [
      {"type": "general", "min_hours": 8, "weekend_days": [0, 6]},
      {"type": "fixed_factor", "days_threshold": 7, "factor": "2"},
      {"type": "tiered_reduction", "tiers": [
        {"after_days": 3, "amount": "50"},
        {"after_days": 5, "amount": "25"}
      ]},
      {"type": "repository"},
      {"type": "country"}
    ]
  }

RULE TYPES:
  general:          GeneralRule; omitted fields fall back to the defaults
  fixed_factor:     FixedFactorRule; factor and days_threshold required
  tiered_reduction: TieredReductionRule; at least one tier required
  repository:       RepositoryDrivenRule over the factory's repository
  country:          The country preset (countries.ForCountry)

Weekdays use 0=Sunday .. 6=Saturday. An omitted "weekend_days" means
the defaults; an explicit empty list disables the weekend check, and
stays empty when the chain is re-encoded. Decimals may be JSON numbers
or strings; strings are preferred to keep exact values.

USAGE:
  f := factory.NewChainFactory(repo)
  chain, err := f.ParseChain(jsonString)
  rules, err := f.Build(chain)

SEE ALSO:
  - allowance/rules.go: Rule variants
  - countries/rules.go: Presets used by the "country" type
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/countries"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ChainJSON is the JSON representation of a rule chain.
type ChainJSON struct {
	Country string     `json:"country"`
	Rules   []RuleJSON `json:"rules"`
}

// RuleJSON represents one rule in a chain.
type RuleJSON struct {
	Type          string           `json:"type"`
	MinHours      *int             `json:"min_hours,omitempty"`
	WeekendDays   *[]int           `json:"weekend_days,omitempty"` // nil: defaults; empty: no weekend
	DaysThreshold *int             `json:"days_threshold,omitempty"`
	Factor        *decimal.Decimal `json:"factor,omitempty"`
	Tiers         []TierJSON       `json:"tiers,omitempty"`
}

// TierJSON represents a reduction tier.
type TierJSON struct {
	AfterDays int             `json:"after_days"`
	Amount    decimal.Decimal `json:"amount"`
}

// Rule type identifiers.
const (
	TypeGeneral         = "general"
	TypeFixedFactor     = "fixed_factor"
	TypeTieredReduction = "tiered_reduction"
	TypeRepository      = "repository"
	TypeCountry         = "country"
)

// =============================================================================
// CHAIN FACTORY
// =============================================================================

// ChainFactory converts JSON chains to rules.
type ChainFactory struct {
	repo allowance.RuleRepository
}

// NewChainFactory creates a factory. repo backs "repository" rules and may
// be nil if chains never use them.
func NewChainFactory(repo allowance.RuleRepository) *ChainFactory {
	return &ChainFactory{repo: repo}
}

// ParseChain parses a JSON string into a ChainJSON.
func (f *ChainFactory) ParseChain(jsonStr string) (ChainJSON, error) {
	var cj ChainJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return ChainJSON{}, fmt.Errorf("%w: failed to parse chain JSON: %v", allowance.ErrInvalidChain, err)
	}
	return cj, nil
}

// Build converts a ChainJSON to rules, in order.
func (f *ChainFactory) Build(cj ChainJSON) ([]allowance.Rule, error) {
	if len(cj.Rules) == 0 {
		return nil, fmt.Errorf("%w: chain has no rules", allowance.ErrInvalidChain)
	}

	rules := make([]allowance.Rule, 0, len(cj.Rules))
	for i, rj := range cj.Rules {
		rule, err := f.buildRule(cj.Country, rj)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// BuildFromJSON parses and builds in one call.
func (f *ChainFactory) BuildFromJSON(jsonStr string) ([]allowance.Rule, error) {
	cj, err := f.ParseChain(jsonStr)
	if err != nil {
		return nil, err
	}
	return f.Build(cj)
}

func (f *ChainFactory) buildRule(country string, rj RuleJSON) (allowance.Rule, error) {
	switch rj.Type {
	case TypeGeneral:
		return parseGeneral(rj)

	case TypeFixedFactor:
		if rj.Factor == nil || rj.DaysThreshold == nil {
			return nil, fmt.Errorf("%w: fixed_factor needs factor and days_threshold", allowance.ErrInvalidChain)
		}
		return allowance.NewFixedFactorRule(country, *rj.DaysThreshold, *rj.Factor), nil

	case TypeTieredReduction:
		if len(rj.Tiers) == 0 {
			return nil, fmt.Errorf("%w: tiered_reduction needs at least one tier", allowance.ErrInvalidChain)
		}
		tiers := make([]allowance.ReductionTier, len(rj.Tiers))
		for i, t := range rj.Tiers {
			tiers[i] = allowance.ReductionTier{AfterDays: t.AfterDays, Amount: t.Amount}
		}
		return allowance.NewTieredReductionRule(country, tiers...), nil

	case TypeRepository:
		if f.repo == nil {
			return nil, fmt.Errorf("%w: repository rule without a repository", allowance.ErrInvalidChain)
		}
		return allowance.NewRepositoryDrivenRule(f.repo), nil

	case TypeCountry:
		rule, ok := countries.ForCountry(country)
		if !ok {
			return nil, fmt.Errorf("%w: no preset for country %q", allowance.ErrInvalidChain, country)
		}
		return rule, nil

	default:
		return nil, fmt.Errorf("%w: %q", allowance.ErrUnknownRuleType, rj.Type)
	}
}

func parseGeneral(rj RuleJSON) (allowance.Rule, error) {
	rule := allowance.NewGeneralRule()
	if rj.MinHours != nil {
		rule.MinHours = *rj.MinHours
	}
	if rj.WeekendDays != nil {
		days := make([]time.Weekday, 0, len(*rj.WeekendDays))
		for _, d := range *rj.WeekendDays {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("%w: weekday %d out of range 0-6", allowance.ErrInvalidChain, d)
			}
			days = append(days, time.Weekday(d))
		}
		rule.WeekendDays = days
	}
	return rule, nil
}

// =============================================================================
// PRESET JSON
// =============================================================================

// DefaultChainJSON returns the JSON equivalent of countries.DefaultChain.
func DefaultChainJSON(country string) string {
	country = strings.ToUpper(country)
	second := TypeRepository
	if _, ok := countries.ForCountry(country); ok {
		second = TypeCountry
	}
	cj := ChainJSON{
		Country: country,
		Rules:   []RuleJSON{{Type: TypeGeneral}, {Type: second}},
	}
	b, _ := json.Marshal(cj)
	return string(b)
}
