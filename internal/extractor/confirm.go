package extractor

import (
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

// Confirmation renders the sentence used to acknowledge a captured value.
func Confirmation(field domain.Field, value string) string {
	switch field {
	case domain.FieldName:
		return fmt.Sprintf("Perfecto, he anotado que el cliente se llama %s.", value)
	case domain.FieldAge:
		return fmt.Sprintf("Perfecto, he anotado que tiene %s años.", value)
	case domain.FieldDependents:
		if value == "0" {
			return "Perfecto, he anotado que no tiene dependientes."
		}
		if value == "1" {
			return "Perfecto, he anotado que tiene 1 hijo."
		}
		return fmt.Sprintf("Perfecto, he anotado que tiene %s hijos.", value)
	case domain.FieldMonthlyIncome:
		return fmt.Sprintf("Perfecto, he anotado unos ingresos de €%s al mes.", value)
	case domain.FieldProfession:
		return fmt.Sprintf("Perfecto, he anotado que trabaja como %s.", value)
	case domain.FieldSavingsCapacity:
		return fmt.Sprintf("Perfecto, he anotado que puede destinar €%s al mes.", value)
	case domain.FieldDesiredCapital:
		return fmt.Sprintf("Perfecto, he anotado un capital deseado de €%s.", value)
	case domain.FieldHasLifeInsurance:
		if value == "true" {
			return "Perfecto, he anotado que ya tiene un seguro de vida."
		}
		return "Perfecto, he anotado que no tiene seguro de vida."
	}
	return fmt.Sprintf("Perfecto, he anotado %s: %s.", strings.ReplaceAll(string(field), "_", " "), value)
}

// ValidateInterpretation applies the range checks of a field to a raw
// value. Text fields only need to be non-blank.
func ValidateInterpretation(field domain.Field, value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	switch field {
	case domain.FieldAge:
		n, ok := firstInt(v)
		return ok && inRange(n, 18, 80)
	case domain.FieldDependents:
		n, ok := firstInt(v)
		return ok && inRange(n, 0, 10)
	case domain.FieldMonthlyIncome:
		n, ok := firstAmount(v)
		return ok && inRange(n, 500, 50000)
	case domain.FieldSavingsCapacity:
		n, ok := firstAmount(v)
		return ok && inRange(n, 20, 2000)
	case domain.FieldDesiredCapital:
		n, ok := firstAmount(v)
		return ok && n >= 1000
	case domain.FieldHasLifeInsurance:
		if v == "true" || v == "false" {
			return true
		}
		_, ok := parseYesNo(v)
		return ok
	}
	return true
}
