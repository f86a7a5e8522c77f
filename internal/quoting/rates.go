// Package quoting prices life-insurance offers from a client profile using
// age-banded flat actuarial rates and static multipliers.
package quoting

import (
	"strings"
	"unicode"

	"github.com/boddenberg/iagente-vida-go/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ageBand is a half-open [.., UpTo) step of the rate table.
type ageBand struct {
	UpTo int
	Rate float64
}

// Annual rate per €1 of coverage. The last band catches every older age.
var ageBands = []ageBand{
	{UpTo: 25, Rate: 0.0005},
	{UpTo: 30, Rate: 0.0008},
	{UpTo: 35, Rate: 0.0012},
	{UpTo: 40, Rate: 0.0018},
	{UpTo: 45, Rate: 0.0025},
	{UpTo: 50, Rate: 0.0035},
	{UpTo: 55, Rate: 0.0050},
}

const oldestBandRate = 0.0075

// AgeBandRate returns the flat annual rate for an age. It is total and
// non-decreasing: ages below 18 price as the youngest band.
func AgeBandRate(age int) float64 {
	for _, b := range ageBands {
		if age < b.UpTo {
			return b.Rate
		}
	}
	return oldestBandRate
}

// BaseMonthlyPremium is coverage × rate / 12, unrounded.
func BaseMonthlyPremium(age int, coverage float64) float64 {
	return coverage * AgeBandRate(age) / 12
}

// plan describes how a coverage kind is priced and named.
type plan struct {
	Multiplier float64
	TermYears  int
	Name       string
}

var plans = map[domain.CoverageKind]plan{
	domain.CoverageDeath:           {Multiplier: 1.0, TermYears: 20, Name: "Protección Básica - Solo Fallecimiento"},
	domain.CoverageDeathDisability: {Multiplier: 1.4, TermYears: 25, Name: "Protección Completa - Fallecimiento + Invalidez"},
	domain.CoverageLifeSavings:     {Multiplier: 1.8, TermYears: 30, Name: "Vida + Ahorro - Protección e Inversión"},
}

// CoverageMultiplier returns the premium multiplier of a coverage kind.
// Unknown kinds price as death-only.
func CoverageMultiplier(kind domain.CoverageKind) float64 {
	return planFor(kind).Multiplier
}

func planFor(kind domain.CoverageKind) plan {
	if p, ok := plans[kind]; ok {
		return p
	}
	return plans[domain.CoverageDeath]
}

// lowRiskProfessions get a 5% discount.
var lowRiskProfessions = []string{"ingenier", "medico", "profesor", "contador"}

const lowRiskDiscount = 0.95

// ProfessionFactor returns 0.95 for low-risk professions and 1.0 otherwise.
func ProfessionFactor(profession string) float64 {
	p := foldAccents(strings.ToLower(profession))
	if p == "" {
		return 1.0
	}
	for _, kw := range lowRiskProfessions {
		if strings.Contains(p, kw) {
			return lowRiskDiscount
		}
	}
	return 1.0
}

// round2 rounds half away from zero to cents.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// roundThousands rounds to the nearest thousand.
func roundThousands(v float64) float64 {
	return decimal.NewFromFloat(v).Round(-3).InexactFloat64()
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents turns "médico" into "medico".
func foldAccents(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}
