package router

import "github.com/boddenberg/iagente-vida-go/internal/domain"

// Completeness is how much of the scored profile is known.
type Completeness struct {
	Percent           int            `json:"percent"`
	MissingEssential  []domain.Field `json:"missing_essential"`
	MissingAdditional []domain.Field `json:"missing_additional"`
}

// Essentials reports whether no essential field is missing.
func (c Completeness) Essentials() bool {
	return len(c.MissingEssential) == 0
}

// Score counts the filled essential and additional fields.
func Score(p domain.ClientProfile) Completeness {
	var c Completeness
	filled, total := 0, 0

	for _, f := range domain.EssentialFields {
		total++
		if p.Has(f) {
			filled++
		} else {
			c.MissingEssential = append(c.MissingEssential, f)
		}
	}
	for _, f := range domain.AdditionalFields {
		total++
		if p.Has(f) {
			filled++
		} else {
			c.MissingAdditional = append(c.MissingAdditional, f)
		}
	}

	c.Percent = filled * 100 / total
	return c
}
