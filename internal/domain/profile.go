package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Field names a tracked ClientProfile attribute. The string value is the
// JSON key used in prompts and LLM output.
type Field string

const (
	FieldName                 Field = "name"
	FieldAge                  Field = "age"
	FieldDependents           Field = "dependents"
	FieldMonthlyIncome        Field = "monthly_income"
	FieldProfession           Field = "profession"
	FieldMaritalStatus        Field = "marital_status"
	FieldSavingsCapacity      Field = "savings_capacity"
	FieldFinancialCommitments Field = "financial_commitments"
	FieldHasLifeInsurance     Field = "has_life_insurance"
	FieldInsuranceAttitude    Field = "insurance_attitude"
	FieldDesiredCapital       Field = "desired_capital"
)

// EssentialFields gate recommendation generation.
var EssentialFields = []Field{
	FieldName, FieldAge, FieldDependents, FieldMonthlyIncome, FieldProfession,
}

// AdditionalFields count towards completeness but never block a recommendation.
var AdditionalFields = []Field{
	FieldMaritalStatus, FieldHasLifeInsurance, FieldInsuranceAttitude, FieldDesiredCapital,
}

// TrackedFields is the list diffed after every extraction pass.
var TrackedFields = []Field{
	FieldName, FieldAge, FieldDependents, FieldMonthlyIncome, FieldProfession,
	FieldMaritalStatus, FieldSavingsCapacity, FieldFinancialCommitments,
	FieldHasLifeInsurance, FieldInsuranceAttitude, FieldDesiredCapital,
}

// ClientProfile describes the prospective insured person. A nil pointer or
// an empty string means "not known yet".
type ClientProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	Age           *int   `json:"age,omitempty"`
	MaritalStatus string `json:"marital_status,omitempty"`
	Profession    string `json:"profession,omitempty"`

	MonthlyIncome        *float64 `json:"monthly_income,omitempty"`
	MonthlyFixedExpenses *float64 `json:"monthly_fixed_expenses,omitempty"`
	SavingsCapacity      *float64 `json:"savings_capacity,omitempty"`
	FinancialCommitments string   `json:"financial_commitments,omitempty"`
	Assets               *float64 `json:"assets,omitempty"`
	DesiredCapital       *float64 `json:"desired_capital,omitempty"`
	MaxMonthlyBudget     *float64 `json:"max_monthly_budget,omitempty"`

	Dependents *int `json:"dependents,omitempty"`

	HasLifeInsurance  *bool    `json:"has_life_insurance,omitempty"`
	InsuranceAttitude string   `json:"insurance_attitude,omitempty"`
	OtherInsurance    string   `json:"other_insurance,omitempty"`
	HealthNotes       string   `json:"health_notes,omitempty"`
	RequestedRiders   []string `json:"requested_riders,omitempty"`
	FinancialGoals    string   `json:"financial_goals,omitempty"`
	TaxPreferences    string   `json:"tax_preferences,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Has reports whether the field carries a value.
func (p ClientProfile) Has(f Field) bool {
	return p.Value(f) != ""
}

// Value renders a tracked field as a string, "" when unset.
func (p ClientProfile) Value(f Field) string {
	switch f {
	case FieldName:
		return p.Name
	case FieldAge:
		return fmtInt(p.Age)
	case FieldDependents:
		return fmtInt(p.Dependents)
	case FieldMonthlyIncome:
		return fmtFloat(p.MonthlyIncome)
	case FieldProfession:
		return p.Profession
	case FieldMaritalStatus:
		return p.MaritalStatus
	case FieldSavingsCapacity:
		return fmtFloat(p.SavingsCapacity)
	case FieldFinancialCommitments:
		return p.FinancialCommitments
	case FieldHasLifeInsurance:
		if p.HasLifeInsurance == nil {
			return ""
		}
		return strconv.FormatBool(*p.HasLifeInsurance)
	case FieldInsuranceAttitude:
		return p.InsuranceAttitude
	case FieldDesiredCapital:
		return fmtFloat(p.DesiredCapital)
	}
	return ""
}

// Clone returns a deep copy, so extraction never mutates the caller's profile.
func (p ClientProfile) Clone() ClientProfile {
	c := p
	c.Age = clonePtr(p.Age)
	c.Dependents = clonePtr(p.Dependents)
	c.MonthlyIncome = clonePtr(p.MonthlyIncome)
	c.MonthlyFixedExpenses = clonePtr(p.MonthlyFixedExpenses)
	c.SavingsCapacity = clonePtr(p.SavingsCapacity)
	c.Assets = clonePtr(p.Assets)
	c.DesiredCapital = clonePtr(p.DesiredCapital)
	c.MaxMonthlyBudget = clonePtr(p.MaxMonthlyBudget)
	c.HasLifeInsurance = clonePtr(p.HasLifeInsurance)
	if p.RequestedRiders != nil {
		c.RequestedRiders = append([]string(nil), p.RequestedRiders...)
	}
	return c
}

// EssentialCount returns how many essential fields are filled.
func (p ClientProfile) EssentialCount() int {
	n := 0
	for _, f := range EssentialFields {
		if p.Has(f) {
			n++
		}
	}
	return n
}

// AnnualIncome is monthly income × 12, or 0 when unknown.
func (p ClientProfile) AnnualIncome() float64 {
	if p.MonthlyIncome == nil {
		return 0
	}
	return *p.MonthlyIncome * 12
}

// Summary renders the essentials on one line for prompts and fallbacks.
func (p ClientProfile) Summary() string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Nombre: "+p.Name)
	}
	if p.Age != nil {
		parts = append(parts, fmt.Sprintf("Edad: %d años", *p.Age))
	}
	if p.Dependents != nil {
		if *p.Dependents == 0 {
			parts = append(parts, "Sin dependientes")
		} else {
			parts = append(parts, fmt.Sprintf("Dependientes: %d", *p.Dependents))
		}
	}
	if p.MonthlyIncome != nil {
		parts = append(parts, "Ingresos: "+FormatEuros(*p.MonthlyIncome)+"/mes")
	}
	if p.Profession != "" {
		parts = append(parts, "Profesión: "+p.Profession)
	}
	if p.MaritalStatus != "" {
		parts = append(parts, "Estado civil: "+p.MaritalStatus)
	}
	if p.SavingsCapacity != nil {
		parts = append(parts, "Capacidad de ahorro: "+FormatEuros(*p.SavingsCapacity)+"/mes")
	}
	if p.FinancialCommitments != "" {
		parts = append(parts, "Compromisos: "+p.FinancialCommitments)
	}
	if len(parts) == 0 {
		return "Sin datos del cliente aún"
	}
	return strings.Join(parts, " | ")
}

var esPrinter = message.NewPrinter(language.Spanish)

// FormatEuros formats an amount with Spanish digit grouping, e.g. "€216.000".
func FormatEuros(v float64) string {
	return esPrinter.Sprintf("€%.0f", v)
}

// FormatEurosCents keeps two decimals, used for premiums.
func FormatEurosCents(v float64) string {
	return esPrinter.Sprintf("€%.2f", v)
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
