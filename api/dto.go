/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  engine types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  decimal.Decimal encodes as a JSON string ("175.5") and decodes from
  either a string or a number.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/chain.go: ChainJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/factory"
	"github.com/warp/allowance-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// CALCULATIONS
// =============================================================================

// CalculateRequest is the body of POST /api/calculations.
type CalculateRequest struct {
	Country   string             `json:"country"`
	Date      string             `json:"date"` // YYYY-MM-DD
	Days      int                `json:"days"`
	Hours     int                `json:"hours"`
	BaseValue decimal.Decimal    `json:"base_value"`
	Chain     *factory.ChainJSON `json:"chain,omitempty"` // Overrides the stored/default chain
}

// CalculationDTO represents a computed allowance.
type CalculationDTO struct {
	ID        string          `json:"id"`
	Country   string          `json:"country"`
	Date      string          `json:"date"`
	Days      int             `json:"days"`
	Hours     int             `json:"hours"`
	Status    string          `json:"status"`
	BaseValue decimal.Decimal `json:"base_value"`
	// Value is the allowance after the last applied rule. When Status is
	// "denied" it is the value before the denial and nothing is payable.
	Value     decimal.Decimal `json:"value"`
	Reason    string          `json:"reason,omitempty"`
	Steps     []StepDTO       `json:"steps"`
	CreatedAt string          `json:"created_at"`
}

// StepDTO is one rule application in a calculation trace.
type StepDTO struct {
	Rule   string          `json:"rule"`
	Kind   string          `json:"kind"`
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
	Reason string          `json:"reason,omitempty"`
}

func toCalculationDTO(rec sqlite.CalculationRecord) CalculationDTO {
	steps := make([]StepDTO, len(rec.Steps))
	for i, s := range rec.Steps {
		steps[i] = StepDTO(s)
	}
	return CalculationDTO{
		ID:        rec.ID,
		Country:   rec.Country,
		Date:      rec.TripDate.Format(dateLayout),
		Days:      rec.Days,
		Hours:     rec.Hours,
		Status:    string(rec.Status),
		BaseValue: rec.BaseValue,
		Value:     rec.FinalValue,
		Reason:    rec.Reason,
		Steps:     steps,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// RULE DEFINITIONS
// =============================================================================

// RuleDefinitionDTO represents a repository rule definition.
type RuleDefinitionDTO struct {
	Country       string          `json:"country"`
	DaysThreshold int             `json:"days_threshold"`
	Factor        decimal.Decimal `json:"factor"`
}

// SaveRuleDefinitionRequest is the body of PUT /api/rules/{country}.
type SaveRuleDefinitionRequest struct {
	DaysThreshold *int             `json:"days_threshold"`
	Factor        *decimal.Decimal `json:"factor"`
}

func toRuleDefinitionDTO(def allowance.RuleDefinition) RuleDefinitionDTO {
	return RuleDefinitionDTO{
		Country:       def.Country,
		DaysThreshold: def.DaysThreshold,
		Factor:        def.Factor,
	}
}

// =============================================================================
// CHAINS
// =============================================================================

// ChainDTO represents a stored chain.
type ChainDTO struct {
	Country   string            `json:"country"`
	Chain     factory.ChainJSON `json:"chain"`
	Source    string            `json:"source"` // "stored" or "default"
	UpdatedAt string            `json:"updated_at,omitempty"`
}

// CountryDTO describes a country with a built-in rule.
type CountryDTO struct {
	Code         string            `json:"code"`
	DefaultChain factory.ChainJSON `json:"default_chain"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	ID      string `json:"id,omitempty"` // Recorded calculation, if one was saved
}
