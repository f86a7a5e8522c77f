package domain

import (
	"encoding/json"
	"strings"
)

// Intent is the classified purpose of the last user message. It is a
// closed set; anything the classifier cannot map becomes IntentNeutral.
type Intent int

const (
	IntentNeutral Intent = iota
	IntentData
	IntentQuestion
	IntentPriceQuestion
	IntentAmountQuestion
	IntentInterested
	IntentDoubts
	IntentObjection
	IntentPriceObjection
	IntentAccepts
	IntentRejects
	IntentGreeting
)

var intentNames = map[Intent]string{
	IntentNeutral:        "neutral",
	IntentData:           "data",
	IntentQuestion:       "question",
	IntentPriceQuestion:  "price_question",
	IntentAmountQuestion: "amount_question",
	IntentInterested:     "interested",
	IntentDoubts:         "doubts",
	IntentObjection:      "objection",
	IntentPriceObjection: "price_objection",
	IntentAccepts:        "accepts",
	IntentRejects:        "rejects",
	IntentGreeting:       "greeting",
}

// intentAliases maps classifier answers (English or Spanish) to intents.
var intentAliases = map[string]Intent{
	"datos":             IntentData,
	"consulta":          IntentQuestion,
	"pregunta":          IntentQuestion,
	"consulta_precio":   IntentPriceQuestion,
	"pregunta_precio":   IntentPriceQuestion,
	"consulta_monto":    IntentAmountQuestion,
	"pide_monto":        IntentAmountQuestion,
	"interesado":        IntentInterested,
	"dudas":             IntentDoubts,
	"duda":              IntentDoubts,
	"objecion":          IntentObjection,
	"objeción":          IntentObjection,
	"objecion_precio":   IntentPriceObjection,
	"objeción_precio":   IntentPriceObjection,
	"acepta":            IntentAccepts,
	"rechaza":           IntentRejects,
	"saludo":            IntentGreeting,
	"asks_for_amount":   IntentAmountQuestion,
	"price_objection":   IntentPriceObjection,
	"general_question":  IntentQuestion,
	"has_doubts":        IntentDoubts,
	"accept":            IntentAccepts,
	"reject":            IntentRejects,
	"amount":            IntentAmountQuestion,
	"price":             IntentPriceQuestion,
	"interest":          IntentInterested,
	"greetings":         IntentGreeting,
	"unclear":           IntentNeutral,
	"ambiguous":         IntentNeutral,
	"desconocido":       IntentNeutral,
	"no_clasificado":    IntentNeutral,
	"sin_clasificar":    IntentNeutral,
	"otro":              IntentNeutral,
	"other":             IntentNeutral,
	"unknown":           IntentNeutral,
	"ninguno":           IntentNeutral,
	"none":              IntentNeutral,
	"n/a":               IntentNeutral,
	"consulta_general":  IntentQuestion,
	"consulta_cantidad": IntentAmountQuestion,
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return "neutral"
}

// ParseIntent normalizes a raw label: it trims quotes, punctuation and
// case, and falls back to IntentNeutral for anything unknown.
func ParseIntent(raw string) Intent {
	s := normalizeLabel(raw)
	for i, name := range intentNames {
		if s == name {
			return i
		}
	}
	if i, ok := intentAliases[s]; ok {
		return i
	}
	return IntentNeutral
}

// In reports whether i is one of the given intents.
func (i Intent) In(set ...Intent) bool {
	for _, s := range set {
		if i == s {
			return true
		}
	}
	return false
}

func (i Intent) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Intent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*i = ParseIntent(s)
	return nil
}

// normalizeLabel keeps the first word-ish token of an LLM answer.
func normalizeLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`.:;,!¡¿? \n\t")
	if idx := strings.IndexAny(s, " \n\t"); idx > 0 {
		s = s[:idx]
	}
	return strings.Trim(s, "\"'`.:;,!¡¿?")
}
