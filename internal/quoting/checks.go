package quoting

import (
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"

	"github.com/shopspring/decimal"
)

// competitorMarkup is the assumed price gap to a typical competitor.
const competitorMarkup = 1.15

// Savings compares a quote against the assumed competitor price. It is a
// sales argument, not market data.
type Savings struct {
	CompetitorPremium float64 `json:"competitor_premium"`
	Monthly           float64 `json:"monthly"`
	Annual            float64 `json:"annual"`
	Percent           float64 `json:"percent"`
}

// CompetitorSavings returns how much the client saves against the assumed
// competitor price.
func CompetitorSavings(q domain.Quote) Savings {
	premium := decimal.NewFromFloat(q.MonthlyPremium)
	competitor := premium.Mul(decimal.NewFromFloat(competitorMarkup))
	monthly := competitor.Sub(premium)

	var percent decimal.Decimal
	if competitor.IsPositive() {
		percent = monthly.Div(competitor).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return Savings{
		CompetitorPremium: competitor.Round(2).InexactFloat64(),
		Monthly:           monthly.Round(2).InexactFloat64(),
		Annual:            monthly.Mul(decimal.NewFromInt(12)).Round(2).InexactFloat64(),
		Percent:           percent.InexactFloat64(),
	}
}

// QuoteChecks reports whether a quote is sensible for the client.
type QuoteChecks struct {
	ReasonablePremium bool `json:"reasonable_premium"`
	AdequateCoverage  bool `json:"adequate_coverage"`
	EligibleAge       bool `json:"eligible_age"`
	SensibleTerm      bool `json:"sensible_term"`
}

// OK is true when every check passes.
func (c QuoteChecks) OK() bool {
	return c.ReasonablePremium && c.AdequateCoverage && c.EligibleAge && c.SensibleTerm
}

// Validate runs the viability checks of a quote against the profile.
// Unknown income or age fail the checks that need them.
func Validate(q domain.Quote, p domain.ClientProfile) QuoteChecks {
	var c QuoteChecks
	if p.MonthlyIncome != nil {
		c.ReasonablePremium = q.MonthlyPremium < *p.MonthlyIncome*0.15
		c.AdequateCoverage = q.CoverageAmount >= p.AnnualIncome()*3
	}
	if p.Age != nil {
		c.EligibleAge = *p.Age < 65
	}
	c.SensibleTerm = q.TermYears >= 10 && q.TermYears <= 40
	return c
}

// Segment is the marketing profile of a client.
type Segment string

const (
	SegmentYoungSingle        Segment = "joven_soltero"
	SegmentYoungCouple        Segment = "joven_pareja"
	SegmentYoungFamily        Segment = "familia_joven"
	SegmentEstablished        Segment = "profesional_establecido"
	SegmentMatureDependents   Segment = "adulto_maduro_con_dependientes"
	SegmentMatureNoDependents Segment = "adulto_maduro_sin_dependientes"
	SegmentRetirement         Segment = "planificacion_jubilacion"
	SegmentExecutive          Segment = "ejecutivo_alto_patrimonio"
	SegmentEntrepreneur       Segment = "empresario"
)

// ClientSegment classifies the client. Unknown age counts as 30 and
// unknown dependents as none.
func ClientSegment(p domain.ClientProfile) Segment {
	age, deps := 30, 0
	if p.Age != nil {
		age = *p.Age
	}
	if p.Dependents != nil {
		deps = *p.Dependents
	}
	prof := strings.ToLower(p.Profession)

	switch {
	case strings.Contains(prof, "empresario") || strings.Contains(prof, "emprendedor"):
		return SegmentEntrepreneur
	case strings.Contains(prof, "ejecutivo") || strings.Contains(prof, "director"):
		return SegmentExecutive
	case age < 30:
		if deps > 0 {
			return SegmentYoungCouple
		}
		return SegmentYoungSingle
	case age < 40:
		if deps > 0 {
			return SegmentYoungFamily
		}
		return SegmentEstablished
	case age < 55:
		if deps > 0 {
			return SegmentMatureDependents
		}
		return SegmentMatureNoDependents
	}
	return SegmentRetirement
}
