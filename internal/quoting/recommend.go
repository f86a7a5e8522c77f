package quoting

import (
	"fmt"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

const (
	youngFamilyMaxAge = 45

	completeYears = 10
	premiumYears  = 8
	basicYears    = 6
)

// Recommend picks the product for a profile. Age, dependents and income
// are required.
func (e *Engine) Recommend(p domain.ClientProfile) (domain.Recommendation, error) {
	switch {
	case p.Age == nil:
		return domain.Recommendation{}, &domain.ErrValidation{Field: string(domain.FieldAge), Message: "required for a recommendation"}
	case p.Dependents == nil:
		return domain.Recommendation{}, &domain.ErrValidation{Field: string(domain.FieldDependents), Message: "required for a recommendation"}
	case p.MonthlyIncome == nil:
		return domain.Recommendation{}, &domain.ErrValidation{Field: string(domain.FieldMonthlyIncome), Message: "required for a recommendation"}
	}

	age, deps := *p.Age, *p.Dependents
	annual := p.AnnualIncome()

	var rec domain.Recommendation
	switch {
	case deps > 0 && age < youngFamilyMaxAge:
		rec = domain.Recommendation{
			Tier:     domain.TierComplete,
			Coverage: domain.CoverageDeathDisability,
			Years:    completeYears,
			Urgency:  domain.UrgencyHigh,
			AddOns:   []string{"invalidez", "enfermedades_graves"},
			Rationale: fmt.Sprintf("Con %d dependientes y %d años, la familia necesita cubrir %d años de ingresos ante fallecimiento o invalidez.",
				deps, age, completeYears),
		}
	case age > youngFamilyMaxAge:
		rec = domain.Recommendation{
			Tier:     domain.TierPremium,
			Coverage: domain.CoverageLifeSavings,
			Years:    premiumYears,
			Urgency:  domain.UrgencyMedium,
			AddOns:   []string{"ahorro", "pensiones"},
			Rationale: fmt.Sprintf("A los %d años conviene combinar protección con ahorro para la jubilación.",
				age),
		}
	default:
		rec = domain.Recommendation{
			Tier:      domain.TierBasic,
			Coverage:  domain.CoverageDeath,
			Years:     basicYears,
			Urgency:   domain.UrgencyMedium,
			Rationale: fmt.Sprintf("Una protección básica de %d años de ingresos cubre las necesidades principales.", basicYears),
		}
	}
	rec.Amount = annual * float64(rec.Years)
	return rec, nil
}

// YearsOfIncome returns the income multiplier Recommend would use, or the
// basic one when age or dependents are unknown.
func YearsOfIncome(p domain.ClientProfile) int {
	if p.Age == nil || p.Dependents == nil {
		return basicYears
	}
	switch {
	case *p.Dependents > 0 && *p.Age < youngFamilyMaxAge:
		return completeYears
	case *p.Age > youngFamilyMaxAge:
		return premiumYears
	}
	return basicYears
}

// SuggestedCapitalRange is the 6 to 10 years of income band offered when
// the client asks how much capital they need.
func SuggestedCapitalRange(monthlyIncome float64) (lo, hi float64) {
	annual := monthlyIncome * 12
	return annual * basicYears, annual * completeYears
}
