package router

import (
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

var transitions = map[domain.Stage][]domain.Target{
	domain.StageStart:         {domain.TargetNeedsBasedSelling},
	domain.StageNeedsAnalysis: {domain.TargetNeedsBasedSelling, domain.TargetQuote},
	domain.StageQuotation:     {domain.TargetQuote, domain.TargetPresenter},
	domain.StagePresentation:  {domain.TargetPresenter, domain.TargetFinish},
	domain.StageFinished:      {domain.TargetFinish},
}

// ValidateTransition reports whether target is a usual next step from
// stage. It is advisory: routing never consults it.
func ValidateTransition(stage domain.Stage, target domain.Target) bool {
	for _, t := range transitions[stage] {
		if t == target {
			return true
		}
	}
	return false
}

// Summary renders a decision for the logs.
func Summary(state *domain.DialogueState, d Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agente seleccionado: %s\n", d.Target)
	fmt.Fprintf(&b, "Razón: Datos %d%%, Recomendación: %s, Cotizaciones: %d\n",
		d.Completeness.Percent, yesNo(state.HasRecommendation()), len(state.Quotes))
	fmt.Fprintf(&b, "Intención cliente: %s\n", d.Intent)
	fmt.Fprintf(&b, "Próxima acción: %s", nextAction(d.Target))
	return b.String()
}

func nextAction(t domain.Target) string {
	switch t {
	case domain.TargetNeedsBasedSelling:
		return "Recopilar datos/recomendar"
	case domain.TargetQuote:
		return "Cotizar"
	case domain.TargetPresenter:
		return "Presentar/cerrar"
	case domain.TargetFinish:
		return "Finalizar"
	}
	return "Desconocida"
}
