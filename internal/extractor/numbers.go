package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	amountRe = regexp.MustCompile(`(\d[\d.,]*)\s*(k\b|mil\b)?`)
	digitsRe = regexp.MustCompile(`^\d+$`)
	anyDigit = regexp.MustCompile(`\d`)
)

// numberWords covers the small counts people spell out.
var numberWords = map[string]int{
	"cero": 0, "ningun": 0, "ninguno": 0, "ninguna": 0,
	"un": 1, "uno": 1, "una": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
}

var titleCaser = cases.Title(language.Spanish)

// parseAmount reads "3.000", "3,000", "36000", "3.5k", "2.500,50" or
// "3 mil". A separator followed by one or two trailing digits is the
// decimal mark; every other separator groups thousands.
func parseAmount(raw, suffix string) (float64, bool) {
	clean := normalizeNumber(strings.TrimRight(raw, ".,"))
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	switch strings.TrimSpace(suffix) {
	case "k", "mil":
		v *= 1000
	}
	return v, true
}

// ParseAmount returns the first amount in text, e.g. "1.000" or "2,5k".
func ParseAmount(text string) (float64, bool) {
	return firstAmount(strings.ToLower(text))
}

// normalizeNumber rewrites a number with "." or "," separators into the
// form strconv expects.
func normalizeNumber(s string) string {
	last := strings.LastIndexAny(s, ".,")
	if last < 0 {
		return s
	}
	intPart, frac := s[:last], s[last+1:]
	mixed := strings.ContainsAny(intPart, ".,") && !strings.ContainsRune(intPart, rune(s[last]))
	if mixed || len(frac) == 1 || len(frac) == 2 {
		return stripSeparators(intPart) + "." + frac
	}
	return stripSeparators(s)
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}

// firstAmount returns the first number in s.
func firstAmount(s string) (float64, bool) {
	m := amountRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return parseAmount(m[1], m[2])
}

// firstInt returns the first integer in s, also accepting spelled-out
// counts ("dos hijos").
func firstInt(s string) (int, bool) {
	if m := amountRe.FindStringSubmatch(s); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			return int(v), true
		}
	}
	for _, w := range strings.Fields(s) {
		if n, ok := numberWords[strings.Trim(w, ".,;:!¡¿?")]; ok {
			return n, true
		}
	}
	return 0, false
}

func inRange[T int | float64](v, lo, hi T) bool {
	return v >= lo && v <= hi
}

func titleCase(s string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

func formatInt(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}
