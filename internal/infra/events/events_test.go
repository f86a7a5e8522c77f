package events_test

import (
	"testing"

	"github.com/boddenberg/iagente-vida-go/internal/infra/events"
	"github.com/boddenberg/iagente-vida-go/internal/port"
)

func TestNoop(t *testing.T) {
	var pub port.EventPublisher = events.Noop{}
	if err := pub.Publish(events.SubjectQuotesGenerated, map[string]int{"n": 1}); err != nil {
		t.Errorf("noop publish failed: %v", err)
	}
}
