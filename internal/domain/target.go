package domain

import (
	"encoding/json"
	"strings"
)

// Target identifies the responder chosen by the router for a turn.
type Target int

const (
	TargetUnknown Target = iota
	TargetNeedsBasedSelling
	TargetQuote
	TargetPresenter
	TargetFinish
)

func (t Target) String() string {
	switch t {
	case TargetNeedsBasedSelling:
		return "needs_based_selling"
	case TargetQuote:
		return "quote"
	case TargetPresenter:
		return "presenter"
	case TargetFinish:
		return "finish"
	}
	return "unknown"
}

// ParseTarget maps a routing answer to a Target. "presentador" and
// "FINISH" are accepted as spelled by the routing prompt.
func ParseTarget(raw string) Target {
	switch normalizeLabel(raw) {
	case "needs_based_selling", "needs", "nbs":
		return TargetNeedsBasedSelling
	case "quote", "cotizacion", "cotización":
		return TargetQuote
	case "presenter", "presentador":
		return TargetPresenter
	case "finish", "end", "__end__", "fin":
		return TargetFinish
	}
	return TargetUnknown
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Target) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseTarget(s)
	return nil
}

// Stage is the conversation stage. Transitions are advisory.
type Stage string

const (
	StageStart         Stage = "start"
	StageNeedsAnalysis Stage = "needs_analysis"
	StageQuotation     Stage = "quotation"
	StagePresentation  Stage = "presentation"
	StageFinished      Stage = "finished"
)

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageStart, StageNeedsAnalysis, StageQuotation, StagePresentation, StageFinished:
		return true
	}
	return false
}

// ParseStage lowercases the input and defaults to StageStart.
func ParseStage(raw string) Stage {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s
	}
	return StageStart
}
