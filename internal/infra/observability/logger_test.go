package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerMiddleware_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(zap.New(core)))
	r.Use(observability.TracingMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/v1/chat/{userId}", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
		httptest.NewRequest(http.MethodPost, "/v1/chat/346000", nil),
		httptest.NewRequest(http.MethodGet, "/boom", nil),
		httptest.NewRequest(http.MethodGet, "/missing", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.ErrorLevel, zapcore.WarnLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d: level %s, want %s", i, e.Level, want[i])
		}
	}
	if route := entries[1].ContextMap()["route"]; route != "/v1/chat/{userId}" {
		t.Errorf("expected route pattern, got %v", route)
	}
	if bytes := entries[1].ContextMap()["bytes"]; bytes != int64(2) {
		t.Errorf("expected 2 bytes, got %v", bytes)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	if l := observability.NewLogger("warn"); l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("warn logger should drop info")
	}
	if l := observability.NewLogger("nonsense"); !l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("unknown level should fall back to info")
	}
	if l := observability.NewLogger("debug"); !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should log debug")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := observability.NewMetrics()
	m.RecordTurn("quote", 10*time.Millisecond)
	m.RecordTurn("quote", 20*time.Millisecond)
	m.RecordTurn("needs_based_selling", time.Millisecond)
	m.AddQuotes(3)
	m.IncrCacheHit("state")
	m.IncrCacheMiss("state")

	snap := m.Snapshot()
	if snap.TotalTurns != 3 || snap.TurnsByTarget["quote"] != 2 || snap.QuotesGenerated != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", snap.CacheHitRate)
	}
}
