package domain

// CoverageTier classifies a recommended product.
type CoverageTier string

const (
	TierBasic    CoverageTier = "basic"
	TierComplete CoverageTier = "complete"
	TierPremium  CoverageTier = "premium"
)

// CoverageKind is the primary coverage of a product.
type CoverageKind string

const (
	CoverageDeath           CoverageKind = "death"
	CoverageDeathDisability CoverageKind = "death+disability"
	CoverageLifeSavings     CoverageKind = "life+savings"
)

// Urgency tags a recommendation.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Recommendation is the product chosen after needs analysis.
type Recommendation struct {
	Tier      CoverageTier `json:"tier"`
	Coverage  CoverageKind `json:"coverage"`
	Amount    float64      `json:"amount"`
	Years     int          `json:"years_of_income"`
	Rationale string       `json:"rationale"`
	Urgency   Urgency      `json:"urgency"`
	AddOns    []string     `json:"add_ons,omitempty"`
}

// Insurer is the carrier every quote is issued under.
const Insurer = "VidaSegura"

// Quote is one priced offer. Values are immutable once produced.
type Quote struct {
	MonthlyPremium float64 `json:"monthly_premium"`
	CoverageAmount float64 `json:"coverage_amount"`
	PlanName       string  `json:"plan_name"`
	TermYears      int     `json:"term_years"`
	Insurer        string  `json:"insurer"`
	Recommended    bool    `json:"recommended"`
	BudgetAdjusted bool    `json:"budget_adjusted,omitempty"`
}
