package extractor

import (
	"slices"
	"strings"
	"unicode"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

// Free-text answers longer than this are sentences, not a direct answer.
const maxDirectAnswerWords = 4

var (
	noDependents = []string{"sin hijos", "sin dependientes", "ninguno", "ninguna", "no tiene", "no tengo", "cero"}
	yesAnswers   = []string{"si", "sí", "yes", "tengo", "tiene", "claro", "correcto"}
	noAnswers    = []string{"no", "ninguno", "ninguna", "nada"}
)

// evasiveStarts open replies like "ni idea" or "prefiero no decirlo".
var evasiveStarts = []string{"ni", "prefiero", "tampoco", "desconozco", "todavía", "todavia", "aún", "aun"}

// interpret parses msg as a direct answer to the pending field. It fails
// when the answer does not fit the field or the field is already known.
func interpret(p domain.ClientProfile, field domain.Field, msg string) (domain.ClientProfile, bool) {
	text := strings.TrimSpace(msg)
	lower := strings.ToLower(text)
	if text == "" || p.Has(field) {
		return p, false
	}

	out := p.Clone()
	switch field {
	case domain.FieldAge:
		if !digitsRe.MatchString(lower) && !strings.Contains(lower, "año") {
			return p, false
		}
		age, ok := firstInt(lower)
		if !ok || !inRange(age, 18, 80) {
			return p, false
		}
		out.Age = domain.Ptr(age)

	case domain.FieldDependents:
		n, ok := parseDependentsAnswer(lower)
		if !ok {
			return p, false
		}
		out.Dependents = domain.Ptr(n)

	case domain.FieldMonthlyIncome:
		v, ok := firstAmount(lower)
		if !ok || !inRange(v, 500, 50000) {
			return p, false
		}
		out.MonthlyIncome = domain.Ptr(v)

	case domain.FieldSavingsCapacity:
		v, ok := firstAmount(lower)
		if !ok || !inRange(v, 20, 2000) {
			return p, false
		}
		out.SavingsCapacity = domain.Ptr(v)

	case domain.FieldDesiredCapital:
		v, ok := firstAmount(lower)
		if !ok || v < 1000 {
			return p, false
		}
		out.DesiredCapital = domain.Ptr(v)

	case domain.FieldName:
		if !looksLikeShortText(text, 2) {
			return p, false
		}
		out.Name = titleCase(text)

	case domain.FieldProfession:
		if !looksLikeShortText(text, 3) {
			return p, false
		}
		out.Profession = lower

	case domain.FieldMaritalStatus:
		if len([]rune(text)) < 3 {
			return p, false
		}
		out.MaritalStatus = lower

	case domain.FieldHasLifeInsurance:
		v, ok := parseYesNo(lower)
		if !ok {
			return p, false
		}
		out.HasLifeInsurance = domain.Ptr(v)

	case domain.FieldInsuranceAttitude:
		if len([]rune(text)) < 3 {
			return p, false
		}
		out.InsuranceAttitude = lower

	case domain.FieldFinancialCommitments:
		if len([]rune(text)) < 3 {
			return p, false
		}
		out.FinancialCommitments = text

	default:
		return p, false
	}
	return out, true
}

func parseDependentsAnswer(lower string) (int, bool) {
	if digitsRe.MatchString(lower) || strings.Contains(lower, "hij") || strings.Contains(lower, "dependiente") {
		if n, ok := firstInt(lower); ok && inRange(n, 0, 10) {
			return n, true
		}
	}
	for _, kw := range noDependents {
		if strings.Contains(lower, kw) {
			return 0, true
		}
	}
	if lower == "no" {
		return 0, true
	}
	return 0, false
}

func parseYesNo(lower string) (bool, bool) {
	words := strings.Fields(strings.Trim(lower, ".!¡¿?"))
	if len(words) == 0 {
		return false, false
	}
	first := strings.Trim(words[0], ",.!")
	for _, n := range noAnswers {
		if first == n {
			return false, true
		}
	}
	for _, y := range yesAnswers {
		if first == y {
			return true, true
		}
	}
	return false, false
}

// looksLikeShortText accepts a short answer with letters and no digits.
// Replies opening with a negative or evasive word ("no lo sé") are not
// answers.
func looksLikeShortText(text string, minLen int) bool {
	if len([]rune(text)) < minLen || anyDigit.MatchString(text) {
		return false
	}
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > maxDirectAnswerWords {
		return false
	}
	first := strings.ToLower(strings.Trim(words[0], ".,;:!¡¿?"))
	if slices.Contains(noAnswers, first) || slices.Contains(evasiveStarts, first) {
		return false
	}
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}
