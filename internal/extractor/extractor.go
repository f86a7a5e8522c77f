// Package extractor turns free-form chat messages into ClientProfile
// updates. Three tiers run in order: a direct answer to the field that was
// just asked, an LLM pass, and regex patterns when the LLM is unavailable.
// No tier ever clears a field that already has a value.
package extractor

import (
	"context"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("extractor")

// Extractor updates client profiles from messages.
type Extractor struct {
	llm     port.Generator
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New creates an Extractor. llm may be nil, in which case only the
// contextual and pattern tiers run.
func New(llm port.Generator, metrics *observability.Metrics, logger *zap.Logger) *Extractor {
	return &Extractor{llm: llm, metrics: metrics, logger: logger}
}

// Extract returns the updated profile and whether anything changed. The
// input profile is never mutated. sc is updated in place: it is reset when
// the pending field is answered and its attempts grow when it is not.
func (e *Extractor) Extract(ctx context.Context, p domain.ClientProfile, msg string, sc *domain.SubContext) (domain.ClientProfile, bool) {
	ctx, span := tracer.Start(ctx, "Extractor.Extract")
	defer span.End()

	if sc != nil && sc.Waiting() {
		field := sc.PendingField
		if out, ok := interpret(p, field, msg); ok {
			e.logger.Debug("contextual answer", zap.String("field", string(field)))
			sc.Reset()
			span.SetAttributes(attribute.String("tier", "contextual"))
			return out, true
		}
		sc.Attempts++
		if sc.Attempts >= domain.MaxFieldAttempts {
			e.logger.Info("giving up on pending field",
				zap.String("field", string(field)),
				zap.Int("attempts", sc.Attempts),
			)
			sc.Reset()
		}
	}

	if e.llm != nil {
		out, changed, err := e.extractLLM(ctx, p, msg, sc)
		if err == nil {
			span.SetAttributes(attribute.String("tier", "llm"), attribute.Bool("changed", changed))
			return out, changed
		}
		e.logger.Warn("llm extraction failed, using patterns", zap.Error(err))
		if e.metrics != nil {
			e.metrics.IncrFallback("extractor")
		}
	}

	out := extractPatterns(p, msg)
	changed := len(DetectChanges(p, out)) > 0
	span.SetAttributes(attribute.String("tier", "patterns"), attribute.Bool("changed", changed))
	if !changed {
		return p, false
	}
	return out, true
}

func (e *Extractor) extractLLM(ctx context.Context, p domain.ClientProfile, msg string, sc *domain.SubContext) (domain.ClientProfile, bool, error) {
	reply, err := e.llm.Generate(ctx, buildPrompt(p, msg, sc), systemPrompt)
	if err != nil {
		return p, false, err
	}
	upd, err := parseUpdate(reply)
	if err != nil {
		return p, false, err
	}

	merged, changed := domain.MergeProfile(p, upd)
	if len(changed) > 0 {
		e.logger.Debug("llm extracted fields", zap.Any("fields", changed))
	}
	return merged, len(changed) > 0, nil
}

// DetectChanges lists the tracked fields whose value differs.
func DetectChanges(before, after domain.ClientProfile) []domain.Field {
	return domain.DiffProfiles(before, after)
}
