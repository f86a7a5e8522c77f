package quoting

import (
	"fmt"
	"math"
	"sort"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

const (
	recommendedSuffix = " (Recomendado)"
	adjustedSuffix    = " (Ajustado a Presupuesto)"

	economicPlanName = "Opción Económica - Protección Esencial"
	premiumPlanName  = "Premium - Cobertura Total + Enfermedades Graves + Ahorro"

	economicCoverage = 0.6
	economicLoading  = 0.8
	economicTerm     = 15

	premiumCoverage = 1.5
	premiumLoading  = 2.2
	premiumTerm     = 35

	premiumMinIncome = 3000.0

	// cheaperFallbackFactor shrinks the coverage when the client asks for a
	// cheaper offer without naming a monthly amount.
	cheaperFallbackFactor = 0.7

	savingsHeadroom   = 1.2
	incomeBudgetShare = 0.08
	budgetTolerance   = 1.1
)

// Options tunes a quoting pass.
type Options struct {
	// AdjustCheaper is set when the client objected to the price.
	AdjustCheaper bool
	// TargetBudget is the monthly amount the client said they can pay.
	TargetBudget *float64
}

// Engine prices recommendations. It holds no state and is safe for
// concurrent use.
type Engine struct{}

// NewEngine creates a quoting engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Quote produces the offers for a profile and recommendation. The result
// is never empty when err is nil.
func (e *Engine) Quote(p domain.ClientProfile, rec domain.Recommendation, opts Options) ([]domain.Quote, error) {
	if p.Age == nil || p.MonthlyIncome == nil {
		return nil, &domain.ErrQuoteUnavailable{
			Reason: "missing age or income",
			Advice: "Para calcular las cotizaciones necesito al menos la edad y los ingresos mensuales del cliente.",
		}
	}
	if p.MonthlyFixedExpenses != nil && *p.MonthlyIncome-*p.MonthlyFixedExpenses <= 0 {
		return nil, &domain.ErrQuoteUnavailable{
			Reason: "no disposable income",
			Advice: fmt.Sprintf(
				"Con unos ingresos de %s y gastos fijos de %s no queda margen para una prima mensual. "+
					"Te sugiero revisar primero el presupuesto del cliente antes de proponer un seguro.",
				domain.FormatEuros(*p.MonthlyIncome), domain.FormatEuros(*p.MonthlyFixedExpenses)),
		}
	}

	age := *p.Age
	base := baseCoverage(age, rec.Amount, opts)
	if base <= 0 {
		return nil, &domain.ErrValidation{Field: "coverage", Message: "coverage amount must be positive"}
	}

	quotes := []domain.Quote{recommendedQuote(p, rec, base)}

	if rec.Tier != domain.TierBasic {
		cov := base * economicCoverage
		quotes = append(quotes, domain.Quote{
			MonthlyPremium: round2(BaseMonthlyPremium(age, cov) * economicLoading),
			CoverageAmount: cov,
			PlanName:       economicPlanName,
			TermYears:      economicTerm,
			Insurer:        domain.Insurer,
		})
	}

	if !opts.AdjustCheaper && canAffordPremium(p, rec) {
		cov := base * premiumCoverage
		quotes = append(quotes, domain.Quote{
			MonthlyPremium: round2(BaseMonthlyPremium(age, cov) * premiumLoading),
			CoverageAmount: cov,
			PlanName:       premiumPlanName,
			TermYears:      premiumTerm,
			Insurer:        domain.Insurer,
		})
	}

	return ApplyBudget(quotes, BudgetCap(p)), nil
}

func baseCoverage(age int, recommended float64, opts Options) float64 {
	if !opts.AdjustCheaper {
		return recommended
	}
	if opts.TargetBudget != nil && *opts.TargetBudget > 0 {
		return roundThousands(*opts.TargetBudget * 12 / AgeBandRate(age))
	}
	return roundThousands(recommended * cheaperFallbackFactor)
}

func recommendedQuote(p domain.ClientProfile, rec domain.Recommendation, coverage float64) domain.Quote {
	pl := planFor(rec.Coverage)
	premium := BaseMonthlyPremium(*p.Age, coverage) * pl.Multiplier * ProfessionFactor(p.Profession)
	return domain.Quote{
		MonthlyPremium: round2(premium),
		CoverageAmount: coverage,
		PlanName:       pl.Name + recommendedSuffix,
		TermYears:      pl.TermYears,
		Insurer:        domain.Insurer,
		Recommended:    true,
	}
}

func canAffordPremium(p domain.ClientProfile, rec domain.Recommendation) bool {
	return p.MonthlyIncome != nil && *p.MonthlyIncome > premiumMinIncome &&
		rec.Urgency == domain.UrgencyHigh &&
		p.Profession != ""
}

// BudgetCap estimates the monthly amount the client can spend on a policy:
// the larger of savings capacity plus 20% and 8% of income.
func BudgetCap(p domain.ClientProfile) float64 {
	var savings, income float64
	if p.SavingsCapacity != nil {
		savings = *p.SavingsCapacity
	}
	if p.MonthlyIncome != nil {
		income = *p.MonthlyIncome
	}
	return math.Max(savings*savingsHeadroom, income*incomeBudgetShare)
}

// ApplyBudget keeps the quotes within 10% of the cap. When none fit, the
// cheapest quote is rescaled to the cap and returned alone. A non-positive
// cap disables filtering.
func ApplyBudget(quotes []domain.Quote, budgetCap float64) []domain.Quote {
	if len(quotes) == 0 || budgetCap <= 0 {
		return quotes
	}

	limit := budgetCap * budgetTolerance
	var fit []domain.Quote
	for _, q := range quotes {
		if q.MonthlyPremium <= limit {
			fit = append(fit, q)
		}
	}
	if len(fit) > 0 {
		return fit
	}

	cheapest := append([]domain.Quote(nil), quotes...)
	sort.SliceStable(cheapest, func(i, j int) bool {
		return cheapest[i].MonthlyPremium < cheapest[j].MonthlyPremium
	})
	return []domain.Quote{rescale(cheapest[0], budgetCap)}
}

func rescale(q domain.Quote, budgetCap float64) domain.Quote {
	factor := 1.0
	if q.MonthlyPremium > 0 {
		factor = budgetCap / q.MonthlyPremium
	}
	q.MonthlyPremium = round2(budgetCap)
	q.CoverageAmount = roundThousands(q.CoverageAmount * factor)
	q.PlanName += adjustedSuffix
	q.BudgetAdjusted = true
	return q
}
