package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

const systemPrompt = `Eres un extractor de datos de clientes para seguros de vida.
Devuelves SIEMPRE un único objeto JSON, sin texto adicional.
Claves permitidas: name, age, dependents, monthly_income, monthly_fixed_expenses,
profession, marital_status, savings_capacity, financial_commitments, assets,
desired_capital, max_monthly_budget, has_life_insurance, insurance_attitude,
other_insurance, health_notes, requested_riders, financial_goals, tax_preferences.
Usa null para lo que el mensaje no menciona.`

var errNoJSON = errors.New("no json object in llm reply")

func buildPrompt(p domain.ClientProfile, msg string, sc *domain.SubContext) string {
	current, _ := json.MarshalIndent(p, "", "  ")

	var b strings.Builder
	b.WriteString("DATOS ACTUALES DEL CLIENTE (CONSERVAR TODOS):\n")
	b.Write(current)
	fmt.Fprintf(&b, "\n\nNuevo mensaje: %q\n", msg)
	if sc != nil && sc.Waiting() {
		fmt.Fprintf(&b, "\nCONTEXTO: se acaba de preguntar por '%s'. Si el mensaje parece una respuesta a eso, prioriza esa interpretación.\n", sc.PendingField)
	}
	b.WriteString(`
REGLAS:
1. Devuelve solo los campos con información nueva y explícita del mensaje.
2. Nunca borres datos existentes: usa null para lo que no aparece.
3. Nunca incluyas ni cambies el id.
4. monthly_income en euros al mes (si es anual, divide entre 12).
5. financial_commitments con formato "tipo cantidad moneda", p. ej. "hipoteca 800 EUR".
`)
	return b.String()
}

// parseUpdate reads the JSON object in an LLM reply. Code fences and
// surrounding prose are ignored; numbers may arrive as strings.
func parseUpdate(reply string) (domain.ProfileUpdate, error) {
	var upd domain.ProfileUpdate

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return upd, errNoJSON
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return upd, fmt.Errorf("decoding llm reply: %w", err)
	}

	upd.Name = str(raw["name"])
	upd.Phone = str(raw["phone"])
	upd.Email = str(raw["email"])
	upd.MaritalStatus = str(raw["marital_status"])
	upd.Profession = str(raw["profession"])
	upd.FinancialCommitments = str(raw["financial_commitments"])
	upd.InsuranceAttitude = str(raw["insurance_attitude"])
	upd.OtherInsurance = str(raw["other_insurance"])
	upd.HealthNotes = str(raw["health_notes"])
	upd.FinancialGoals = str(raw["financial_goals"])
	upd.TaxPreferences = str(raw["tax_preferences"])

	upd.Age = integer(raw["age"])
	upd.Dependents = integer(raw["dependents"])
	upd.MonthlyIncome = number(raw["monthly_income"])
	upd.MonthlyFixedExpenses = number(raw["monthly_fixed_expenses"])
	upd.SavingsCapacity = number(raw["savings_capacity"])
	upd.Assets = number(raw["assets"])
	upd.DesiredCapital = number(raw["desired_capital"])
	upd.MaxMonthlyBudget = number(raw["max_monthly_budget"])
	upd.HasLifeInsurance = boolean(raw["has_life_insurance"])

	if r, ok := raw["requested_riders"]; ok {
		_ = json.Unmarshal(r, &upd.RequestedRiders)
	}

	sanitize(&upd)
	return upd, nil
}

// sanitize drops values outside the accepted ranges.
func sanitize(u *domain.ProfileUpdate) {
	if u.Age != nil && !inRange(*u.Age, 18, 80) {
		u.Age = nil
	}
	if u.Dependents != nil && !inRange(*u.Dependents, 0, 10) {
		u.Dependents = nil
	}
	if u.MonthlyIncome != nil && !inRange(*u.MonthlyIncome, 100, 50000) {
		u.MonthlyIncome = nil
	}
	for _, f := range []**float64{&u.SavingsCapacity, &u.MonthlyFixedExpenses, &u.Assets, &u.DesiredCapital, &u.MaxMonthlyBudget} {
		if *f != nil && **f < 0 {
			*f = nil
		}
	}
}

func isNull(r json.RawMessage) bool {
	return len(r) == 0 || bytes.Equal(bytes.TrimSpace(r), []byte("null"))
}

func str(r json.RawMessage) *string {
	if isNull(r) {
		return nil
	}
	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		return nil
	}
	return &s
}

func number(r json.RawMessage) *float64 {
	if isNull(r) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(r, &f); err == nil {
		return &f
	}
	if s := str(r); s != nil {
		if v, ok := firstAmount(strings.ToLower(*s)); ok {
			return &v
		}
	}
	return nil
}

func integer(r json.RawMessage) *int {
	f := number(r)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

func boolean(r json.RawMessage) *bool {
	if isNull(r) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(r, &b); err == nil {
		return &b
	}
	if s := str(r); s != nil {
		if v, err := strconv.ParseBool(*s); err == nil {
			return &v
		}
		if v, ok := parseYesNo(strings.ToLower(*s)); ok {
			return &v
		}
	}
	return nil
}
