package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const intentSystem = "Clasificas mensajes de una conversación de venta de seguros de vida. Responde SOLO con la categoría."

var (
	amountKeywords    = []string{"cuánto capital", "cuanto capital", "qué monto", "que monto", "cuánto debería", "cuanto deberia", "cuánto debo asegurar", "cuanto debo asegurar"}
	objectionKeywords = []string{"caro", "expensive", "mucho dinero", "muy alto", "no me alcanza", "no puedo pagar"}
	priceKeywords     = []string{"cuánto", "cuanto", "precio", "cuesta", "prima", "costaría", "costaria"}
	greetingKeywords  = []string{"hola", "buenas", "buenos días", "buenos dias"}
	acceptKeywords    = []string{"acepto", "contratar", "de acuerdo", "adelante", "me lo quedo"}
	rejectKeywords    = []string{"no me interesa", "no quiero", "no gracias"}
)

// Classifier labels user messages with an Intent.
type Classifier struct {
	llm     port.Generator
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewClassifier creates a Classifier. llm may be nil, in which case only
// the keyword rules are used.
func NewClassifier(llm port.Generator, metrics *observability.Metrics, logger *zap.Logger) *Classifier {
	return &Classifier{llm: llm, metrics: metrics, logger: logger}
}

// Classify returns the intent of msg. It never fails.
func (c *Classifier) Classify(ctx context.Context, msg string) domain.Intent {
	ctx, span := tracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	text := strings.ToLower(strings.TrimSpace(msg))
	if text == "" {
		return domain.IntentNeutral
	}

	intent, source := c.classifyLLM(ctx, msg)
	if source == "" {
		intent, source = ClassifyKeywords(text), "keywords"
	}

	switch {
	case intent == domain.IntentObjection && (containsAny(text, objectionKeywords) || containsAny(text, priceKeywords)):
		intent = domain.IntentPriceObjection
	case intent == domain.IntentQuestion && containsAny(text, amountKeywords):
		intent = domain.IntentAmountQuestion
	}

	span.SetAttributes(
		attribute.String("intent", intent.String()),
		attribute.String("source", source),
	)
	if c.metrics != nil {
		c.metrics.IncrIntent(intent.String())
	}
	return intent
}

func (c *Classifier) classifyLLM(ctx context.Context, msg string) (domain.Intent, string) {
	if c.llm == nil {
		return domain.IntentNeutral, ""
	}

	reply, err := c.llm.Generate(ctx, intentPrompt(msg), intentSystem)
	if err != nil {
		c.logger.Warn("intent classification failed, using keywords", zap.Error(err))
		if c.metrics != nil {
			c.metrics.IncrFallback("classifier")
		}
		return domain.IntentNeutral, ""
	}
	return domain.ParseIntent(reply), "llm"
}

func intentPrompt(msg string) string {
	return fmt.Sprintf(`Analiza la intención del siguiente mensaje:

"%s"

Categorías:
- datos: proporciona información personal o financiera
- consulta: hace una pregunta general
- consulta_precio: pregunta cuánto cuesta el seguro
- consulta_monto: pregunta qué capital o monto debería asegurar
- interesado: muestra interés en continuar
- dudas: expresa dudas o inseguridad
- objecion: pone una objeción
- acepta: acepta la propuesta
- rechaza: rechaza la propuesta
- saludo: saluda
- neutral: ninguna de las anteriores

Responde SOLO con la categoría.`, msg)
}

// ClassifyKeywords is the substring fallback used when the LLM fails.
// text must already be lowercased.
func ClassifyKeywords(text string) domain.Intent {
	switch {
	case containsAny(text, amountKeywords):
		return domain.IntentAmountQuestion
	case containsAny(text, objectionKeywords):
		return domain.IntentPriceObjection
	case containsAny(text, priceKeywords):
		return domain.IntentPriceQuestion
	case containsAny(text, rejectKeywords):
		return domain.IntentRejects
	case containsAny(text, acceptKeywords):
		return domain.IntentAccepts
	case containsAny(text, greetingKeywords):
		return domain.IntentGreeting
	}
	return domain.IntentNeutral
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
