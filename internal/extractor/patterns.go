package extractor

import (
	"regexp"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

const word = `([a-záéíóúñü]+)`

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`se llama\s+` + word),
		regexp.MustCompile(`su nombre es\s+` + word),
		regexp.MustCompile(`mi nombre es\s+` + word),
		regexp.MustCompile(`nombre es\s+` + word),
		regexp.MustCompile(`me llamo\s+` + word),
		regexp.MustCompile(`\bsoy\s+` + word),
		regexp.MustCompile(`(?:cliente|paciente)\s+(?:se\s+)?(?:llama\s+)?` + word),
	}

	agePatterns = []*regexp.Regexp{
		regexp.MustCompile(`tiene\s+(\d{1,3})\s+años?`),
		regexp.MustCompile(`tengo\s+(\d{1,3})\s+años?`),
		regexp.MustCompile(`edad\s+(?:es\s+|de\s+)?(\d{1,3})`),
		regexp.MustCompile(`(\d{1,3})\s+años?`),
	}

	noDependentsRe = regexp.MustCompile(`sin\s+(?:hijos?|hijas?|dependientes?)|no\s+tienen?\s+hijos|no\s+tengo\s+hijos|ning[uú]n\s+hijo`)
	dependentsRe   = regexp.MustCompile(`\b(\d{1,2}|un|una|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez)\s+(?:hijos?|hijas?|dependientes?|niños?|niñas?)`)

	currency          = `(€|euros?|eur\b|usd|d[oó]lares?|\$)`
	incomeKeywordRe   = regexp.MustCompile(`(?:ingresos?|gana|sueldo|salario|cobra)[^\d]{0,30}(\d[\d.,]*)\s*(k\b|mil\b)?\s*` + currency + `?`)
	incomeCurrencyRe  = regexp.MustCompile(`(\d[\d.,]*)\s*(k\b|mil\b)?\s*` + currency)
	annualRe          = regexp.MustCompile(`al\s+a(?:ñ|ni)o|anual(?:es)?|por\s+a(?:ñ|ni)o`)
	notIncomeContext  = regexp.MustCompile(`hip[oe]t?e?ca|pr[eé]stamo|deuda|cr[eé]dito|paga|ahorr|presupuesto|capital|cobertura|prima`)
	usdRe             = regexp.MustCompile(`usd|d[oó]lar|\$`)
	professionPhrases = []*regexp.Regexp{
		regexp.MustCompile(`trabaja\s+como\s+` + word),
		regexp.MustCompile(`trabajo\s+como\s+` + word),
		regexp.MustCompile(`de\s+profesi[oó]n\s+` + word),
		regexp.MustCompile(`profesi[oó]n\s*(?:es\s+|:\s*)?` + word),
		regexp.MustCompile(`\b(?:es|soy)\s+(?:un|una)\s+` + word),
	}
	barePronounProfession = regexp.MustCompile(`\b(?:es|soy)\s+` + word)

	commitmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(hip[oe]t?e?ca|pr[eé]stamo|deuda|cr[eé]dito)\s+(?:de\s+)?(?:unos\s+)?(\d[\d.,]*)\s*` + currency + `?`),
		regexp.MustCompile(`paga\s+(?:unos\s+)?(\d[\d.,]*)\s*` + currency + `?\s*(?:al\s+mes\s+)?(?:de|por|en)\s+(?:la\s+|el\s+|una\s+|un\s+)?(hip[oe]t?e?ca|pr[eé]stamo|deuda|cr[eé]dito)`),
	}

	savingsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`puede\s+ahorrar\s+(?:unos\s+)?(\d[\d.,]*)`),
		regexp.MustCompile(`ahorra\s+(?:unos\s+)?(\d[\d.,]*)`),
		regexp.MustCompile(`presupuesto\s+(?:de\s+)?(?:unos\s+)?(\d[\d.,]*)`),
	}

	capitalRe = regexp.MustCompile(`(?:capital|cobertura|asegurar)\s+(?:de\s+)?(?:unos\s+)?(\d[\d.,]*)\s*(k\b|mil\b)?`)

	maritalRe = regexp.MustCompile(`\b(casad[oa]|solter[oa]|divorciad[oa]|viud[oa]|separad[oa]|pareja de hecho)\b`)

	noInsuranceRe  = regexp.MustCompile(`no\s+(?:tiene|tengo)\s+(?:ning[uú]n\s+)?seguro\s+de\s+vida`)
	hasInsuranceRe = regexp.MustCompile(`(?:ya\s+)?(?:tiene|tengo)\s+(?:un\s+)?seguro\s+de\s+vida`)
)

// stopWords never name a person or a profession.
var stopWords = map[string]bool{
	"quiere": true, "necesita": true, "tiene": true, "busca": true, "desea": true,
	"pide": true, "solicita": true, "interesado": true, "interesada": true,
	"un": true, "una": true, "el": true, "la": true, "de": true, "del": true, "muy": true,
	"casado": true, "casada": true, "soltero": true, "soltera": true, "padre": true, "madre": true,
	"cliente": true, "agente": true, "nuevo": true, "nueva": true, "mayor": true, "joven": true,
	"que": true, "como": true, "para": true, "bueno": true, "buena": true,
	"es": true, "esta": true, "está": true, "ha": true, "no": true, "se": true, "y": true,
	"con": true, "en": true, "ya": true, "actualmente": true, "también": true, "tambien": true,
}

// knownProfessions lets a bare "soy X" be read as a profession.
var knownProfessions = map[string]bool{
	"ingeniero": true, "ingeniera": true, "médico": true, "médica": true, "medico": true, "medica": true,
	"profesor": true, "profesora": true, "contador": true, "contadora": true, "abogado": true, "abogada": true,
	"enfermero": true, "enfermera": true, "arquitecto": true, "arquitecta": true, "empresario": true,
	"empresaria": true, "emprendedor": true, "emprendedora": true, "autónomo": true, "autónoma": true,
	"autonomo": true, "funcionario": true, "funcionaria": true, "comercial": true, "administrativo": true,
	"administrativa": true, "programador": true, "programadora": true, "desarrollador": true,
	"director": true, "directora": true, "ejecutivo": true, "ejecutiva": true, "camarero": true,
	"camarera": true, "fontanero": true, "electricista": true, "policía": true, "bombero": true,
	"maestro": true, "maestra": true, "dentista": true, "farmacéutico": true, "farmacéutica": true,
	"economista": true, "consultor": true, "consultora": true, "vendedor": true, "vendedora": true,
	"conductor": true, "conductora": true, "cocinero": true, "cocinera": true, "diseñador": true,
	"diseñadora": true, "periodista": true, "psicólogo": true, "psicóloga": true, "jubilado": true,
	"jubilada": true, "estudiante": true,
}

// extractPatterns fills the fields the message names explicitly. Known
// fields are never touched.
func extractPatterns(p domain.ClientProfile, msg string) domain.ClientProfile {
	out := p.Clone()
	lower := strings.ToLower(msg)

	if out.Name == "" {
		out.Name = matchName(lower)
	}
	if out.Age == nil {
		if age, ok := matchAge(lower); ok {
			out.Age = domain.Ptr(age)
		}
	}
	if out.Dependents == nil {
		if n, ok := matchDependents(lower); ok {
			out.Dependents = domain.Ptr(n)
		}
	}
	if out.MonthlyIncome == nil {
		if v, ok := matchIncome(lower); ok {
			out.MonthlyIncome = domain.Ptr(v)
		}
	}
	if out.Profession == "" {
		out.Profession = matchProfession(lower, out.Name)
	}
	if out.MaritalStatus == "" {
		if m := maritalRe.FindStringSubmatch(lower); m != nil {
			out.MaritalStatus = m[1]
		}
	}
	if out.FinancialCommitments == "" {
		out.FinancialCommitments = matchCommitment(lower)
	}
	if out.SavingsCapacity == nil {
		if v, ok := matchFirstAmount(savingsPatterns, lower); ok && inRange(v, 20, 2000) {
			out.SavingsCapacity = domain.Ptr(v)
		}
	}
	if out.DesiredCapital == nil {
		if m := capitalRe.FindStringSubmatch(lower); m != nil {
			if v, ok := parseAmount(m[1], m[2]); ok && v >= 1000 {
				out.DesiredCapital = domain.Ptr(v)
			}
		}
	}
	if out.HasLifeInsurance == nil {
		switch {
		case noInsuranceRe.MatchString(lower):
			out.HasLifeInsurance = domain.Ptr(false)
		case hasInsuranceRe.MatchString(lower):
			out.HasLifeInsurance = domain.Ptr(true)
		}
	}
	return out
}

func matchName(lower string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		name := m[1]
		if len([]rune(name)) < 2 || stopWords[name] || knownProfessions[name] {
			continue
		}
		return titleCase(name)
	}
	return ""
}

func matchAge(lower string) (int, bool) {
	for _, re := range agePatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if age, ok := firstInt(m[1]); ok && inRange(age, 18, 80) {
				return age, true
			}
		}
	}
	return 0, false
}

func matchDependents(lower string) (int, bool) {
	if m := dependentsRe.FindStringSubmatch(lower); m != nil {
		if n, ok := firstInt(m[1]); ok && inRange(n, 0, 10) {
			return n, true
		}
	}
	if noDependentsRe.MatchString(lower) {
		return 0, true
	}
	return 0, false
}

// matchIncome finds a monthly amount in euros. Annual amounts are divided
// by 12 and dollars converted at 0.92.
func matchIncome(lower string) (float64, bool) {
	if m := incomeKeywordRe.FindStringSubmatchIndex(lower); m != nil {
		if v, ok := incomeFromMatch(lower, m); ok {
			return v, true
		}
	}
	for _, m := range incomeCurrencyRe.FindAllStringSubmatchIndex(lower, -1) {
		start := m[0] - 30
		if start < 0 {
			start = 0
		}
		if notIncomeContext.MatchString(lower[start:m[0]]) {
			continue
		}
		if v, ok := incomeFromMatch(lower, m); ok {
			return v, true
		}
	}
	return 0, false
}

func incomeFromMatch(lower string, m []int) (float64, bool) {
	amount := lower[m[2]:m[3]]
	suffix := ""
	if m[4] >= 0 {
		suffix = lower[m[4]:m[5]]
	}
	v, ok := parseAmount(amount, suffix)
	if !ok {
		return 0, false
	}

	end := m[1] + 25
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[m[0]:end]
	if annualRe.MatchString(window) {
		v /= 12
	}
	if usdRe.MatchString(lower[m[0]:m[1]]) {
		v *= 0.92
	}
	v = float64(int(v))
	if !inRange(v, 100, 50000) {
		return 0, false
	}
	return v, true
}

func matchProfession(lower, name string) string {
	for _, re := range professionPhrases {
		if prof := acceptProfession(re.FindStringSubmatch(lower), name); prof != "" {
			return prof
		}
	}
	for _, m := range barePronounProfession.FindAllStringSubmatch(lower, -1) {
		if knownProfessions[m[1]] {
			return m[1]
		}
	}
	return ""
}

func acceptProfession(m []string, name string) string {
	if m == nil {
		return ""
	}
	prof := m[1]
	if len([]rune(prof)) < 3 || stopWords[prof] || strings.EqualFold(prof, name) {
		return ""
	}
	return prof
}

func matchCommitment(lower string) string {
	for i, re := range commitmentPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		var kind, amount, cur string
		if i == 0 {
			kind, amount, cur = m[1], m[2], m[3]
		} else {
			amount, cur, kind = m[1], m[2], m[3]
		}
		v, ok := parseAmount(amount, "")
		if !ok || v <= 0 {
			continue
		}
		return strings.Join([]string{normalizeCommitment(kind), formatInt(v), normalizeCurrency(cur)}, " ")
	}
	return ""
}

func normalizeCommitment(kind string) string {
	switch {
	case strings.HasPrefix(kind, "hip"):
		return "hipoteca"
	case strings.HasPrefix(kind, "pr"):
		return "préstamo"
	case strings.HasPrefix(kind, "cr"):
		return "crédito"
	}
	return kind
}

func normalizeCurrency(cur string) string {
	if usdRe.MatchString(cur) {
		return "USD"
	}
	return "EUR"
}

func matchFirstAmount(patterns []*regexp.Regexp, lower string) (float64, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if v, ok := parseAmount(m[1], ""); ok {
				return v, true
			}
		}
	}
	return 0, false
}
