package domain

import "strings"

// ProfileUpdate is the partial form of a ClientProfile as returned by the
// LLM extraction tier. Every field is optional; nil and blank mean "the
// message said nothing about this field".
type ProfileUpdate struct {
	ID    *string `json:"id"`
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`

	Age           *int    `json:"age"`
	MaritalStatus *string `json:"marital_status"`
	Profession    *string `json:"profession"`

	MonthlyIncome        *float64 `json:"monthly_income"`
	MonthlyFixedExpenses *float64 `json:"monthly_fixed_expenses"`
	SavingsCapacity      *float64 `json:"savings_capacity"`
	FinancialCommitments *string  `json:"financial_commitments"`
	Assets               *float64 `json:"assets"`
	DesiredCapital       *float64 `json:"desired_capital"`
	MaxMonthlyBudget     *float64 `json:"max_monthly_budget"`

	Dependents *int `json:"dependents"`

	HasLifeInsurance  *bool    `json:"has_life_insurance"`
	InsuranceAttitude *string  `json:"insurance_attitude"`
	OtherInsurance    *string  `json:"other_insurance"`
	HealthNotes       *string  `json:"health_notes"`
	RequestedRiders   []string `json:"requested_riders"`
	FinancialGoals    *string  `json:"financial_goals"`
	TaxPreferences    *string  `json:"tax_preferences"`
}

// MergeProfile applies upd on top of prev. A value present in upd wins;
// anything absent keeps the previous value, so a field can never go from
// set to unset. The ID always comes from prev. It returns the merged
// profile and the tracked fields whose value changed.
func MergeProfile(prev ClientProfile, upd ProfileUpdate) (ClientProfile, []Field) {
	out := prev.Clone()

	mergeString(&out.Name, upd.Name)
	mergeString(&out.Phone, upd.Phone)
	mergeString(&out.Email, upd.Email)
	mergeString(&out.MaritalStatus, upd.MaritalStatus)
	mergeString(&out.Profession, upd.Profession)
	mergeString(&out.FinancialCommitments, upd.FinancialCommitments)
	mergeString(&out.InsuranceAttitude, upd.InsuranceAttitude)
	mergeString(&out.OtherInsurance, upd.OtherInsurance)
	mergeString(&out.HealthNotes, upd.HealthNotes)
	mergeString(&out.FinancialGoals, upd.FinancialGoals)
	mergeString(&out.TaxPreferences, upd.TaxPreferences)

	mergeValue(&out.Age, upd.Age)
	mergeValue(&out.Dependents, upd.Dependents)
	mergeValue(&out.MonthlyIncome, upd.MonthlyIncome)
	mergeValue(&out.MonthlyFixedExpenses, upd.MonthlyFixedExpenses)
	mergeValue(&out.SavingsCapacity, upd.SavingsCapacity)
	mergeValue(&out.Assets, upd.Assets)
	mergeValue(&out.DesiredCapital, upd.DesiredCapital)
	mergeValue(&out.MaxMonthlyBudget, upd.MaxMonthlyBudget)
	mergeValue(&out.HasLifeInsurance, upd.HasLifeInsurance)

	for _, r := range upd.RequestedRiders {
		r = strings.TrimSpace(r)
		if r != "" && !contains(out.RequestedRiders, r) {
			out.RequestedRiders = append(out.RequestedRiders, r)
		}
	}

	return out, DiffProfiles(prev, out)
}

// DiffProfiles lists the tracked fields whose rendered value differs.
func DiffProfiles(a, b ClientProfile) []Field {
	var changed []Field
	for _, f := range TrackedFields {
		if a.Value(f) != b.Value(f) {
			changed = append(changed, f)
		}
	}
	return changed
}

func mergeString(dst *string, src *string) {
	if src == nil {
		return
	}
	if v := strings.TrimSpace(*src); v != "" && !isNullLiteral(v) {
		*dst = v
	}
}

func mergeValue[T any](dst **T, src *T) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// isNullLiteral catches models that answer "null" or "None" as a string.
func isNullLiteral(s string) bool {
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "desconocido":
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
