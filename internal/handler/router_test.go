package handler_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/extractor"
	"github.com/boddenberg/iagente-vida-go/internal/handler"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/statestore"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
	"github.com/boddenberg/iagente-vida-go/internal/router"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Mocks ---

type downLLM struct{}

func (downLLM) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("provider down")
}

func (downLLM) BreakerState() string { return "open" }

type mockSender struct {
	mu   sync.Mutex
	sent []string
}

func (m *mockSender) SendText(_ context.Context, _, body string) domain.SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return domain.SendResult{Success: true, Status: "sent", Parts: 1}
}

type brokenStore struct{}

func (brokenStore) Ping(context.Context) error { return errors.New("database is locked") }

// --- Helpers ---

const (
	adminPassword = "s3cret"
	webhookSecret = "hook-secret"
	verifyToken   = "verify-me"
)

type testServer struct {
	handler http.Handler
	sender  *mockSender
}

func newTestServer(t *testing.T, mutate func(*handler.Deps)) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	llm := downLLM{}

	store := statestore.NewMemory(time.Hour, metrics)
	t.Cleanup(func() { store.Close() })

	env := &responder.Env{
		LLM:       llm,
		Extractor: extractor.New(llm, metrics, logger),
		Engine:    quoting.NewEngine(),
		Metrics:   metrics,
		Logger:    logger,
	}
	rt := router.New(router.NewClassifier(llm, metrics, logger), llm, nil, metrics, logger)
	conv := service.NewConversation(store, rt, env, nil, metrics, logger)

	sender := &mockSender{}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	deps := handler.Deps{
		Conversation:  conv,
		Channel:       service.NewChannelService(conv, sender, nil, metrics, logger),
		Admin:         service.NewAdminAuth(string(hash), "jwt-secret", time.Hour, logger),
		Store:         store,
		LLM:           llm,
		VerifyToken:   verifyToken,
		WebhookSecret: webhookSecret,
		Metrics:       metrics,
		Logger:        logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &testServer{handler: handler.NewRouter(deps), sender: sender}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) adminToken(t *testing.T) map[string]string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/admin/token", `{"password":"`+adminPassword+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return map[string]string{"Authorization": "Bearer " + resp.AccessToken}
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// --- Operational ---

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health domain.HealthStatus
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health.Status != "degraded" || len(health.Services) != 3 {
		t.Errorf("expected degraded with open LLM breaker, got %+v", health)
	}
}

func TestHealthz_StoreDown(t *testing.T) {
	s := newTestServer(t, func(d *handler.Deps) { d.Store = brokenStore{}; d.LLM = nil })

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/readyz", "/metrics", "/ping"} {
		if rec := s.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

// --- Webhook ---

func TestVerifyWebhook(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token="+verifyToken+"&hub.challenge=12345", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Errorf("expected challenge echo, got %d %q", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestReceiveWebhook(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"from":"+34 600 111 222","id":"wamid.1","contact":{"name":"Laura"},"message":{"type":"text","text":"Mi cliente se llama Juan"}}`

	rec := s.do(t, http.MethodPost, "/webhook/whatsapp", payload, map[string]string{"X-Woztell-Signature": "sha256=" + sign(payload)})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"processed"`) {
		t.Fatalf("expected processed, got %d %s", rec.Code, rec.Body.String())
	}
	if len(s.sender.sent) != 1 {
		t.Errorf("expected one reply sent, got %d", len(s.sender.sent))
	}

	rec = s.do(t, http.MethodGet, "/webhook/status", "", nil)
	var status domain.WebhookStatus
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.ActiveConversations != 1 {
		t.Errorf("expected 1 active conversation, got %+v", status)
	}
}

func TestReceiveWebhook_Rejections(t *testing.T) {
	s := newTestServer(t, nil)

	payload := `{"from":"34600111222","message":{"type":"text","text":"hola"}}`
	if rec := s.do(t, http.MethodPost, "/webhook/whatsapp", payload, map[string]string{"X-Woztell-Signature": "deadbeef"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: expected 401, got %d", rec.Code)
	}

	status := `{"type":"status","id":"wamid.9"}`
	rec := s.do(t, http.MethodPost, "/webhook/whatsapp", status, map[string]string{"X-Woztell-Signature": sign(status)})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "no_message") {
		t.Errorf("expected no_message, got %d %s", rec.Code, rec.Body.String())
	}

	bad := `{not json`
	if rec := s.do(t, http.MethodPost, "/webhook/whatsapp", bad, map[string]string{"X-Woztell-Signature": sign(bad)}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: expected 400, got %d", rec.Code)
	}
	if len(s.sender.sent) != 0 {
		t.Error("nothing should be sent for rejected payloads")
	}
}

func TestReceiveWebhook_ChannelDisabled(t *testing.T) {
	s := newTestServer(t, func(d *handler.Deps) { d.Channel = nil })

	if rec := s.do(t, http.MethodPost, "/webhook/whatsapp", `{}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// --- Chat API ---

func TestChat(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/chat/34600000000",
		`{"message":"Mi cliente se llama Juan, tiene 45 años, 2 hijos, gana 3000 euros al mes y es ingeniero"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res map[string]any
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res["target"] != "needs_based_selling" || res["stage"] != "quotation" {
		t.Errorf("unexpected turn %v", res)
	}
	if !strings.Contains(res["reply"].(string), "€216.000") {
		t.Errorf("expected recommendation in reply, got %q", res["reply"])
	}

	rec = s.do(t, http.MethodPost, "/v1/chat/34600000000", `{"message":"adelante"}`, nil)
	json.Unmarshal(rec.Body.Bytes(), &res)
	if quotes, _ := res["quotes"].([]any); len(quotes) != 1 {
		t.Errorf("expected one quote, got %v", res["quotes"])
	}
}

func TestChat_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	cases := map[string]string{
		"invalid json":  `{"message":`,
		"empty message": `{"message":"   "}`,
	}
	for name, body := range cases {
		if rec := s.do(t, http.MethodPost, "/v1/chat/34600000000", body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

// --- Admin ---

func TestAdmin_Flow(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/v1/chat/34600111222", `{"message":"mi cliente se llama Ana"}`, nil)
	auth := s.adminToken(t)

	rec := s.do(t, http.MethodGet, "/webhook/conversations", "", auth)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Fatalf("list: got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/v1/admin/conversations/34600111222", "", auth)
	var state domain.DialogueState
	json.Unmarshal(rec.Body.Bytes(), &state)
	if rec.Code != http.StatusOK || state.Profile.Name != "Ana" {
		t.Errorf("get: got %d %+v", rec.Code, state.Profile)
	}

	if rec := s.do(t, http.MethodGet, "/v1/admin/metrics", "", auth); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "totalTurns") {
		t.Errorf("metrics snapshot: got %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodDelete, "/webhook/conversation/600111222", "", auth); rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, "/webhook/conversation/600111222", "", auth); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/v1/admin/conversations/34600111222", "", auth); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestAdmin_Unauthorized(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := s.do(t, http.MethodPost, "/v1/admin/token", `{"password":"nope"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/webhook/conversations", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/webhook/conversations", "", map[string]string{"Authorization": "Bearer garbage"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}
}

func TestAdmin_Disabled(t *testing.T) {
	s := newTestServer(t, func(d *handler.Deps) {
		d.Admin = service.NewAdminAuth("", "", 0, zap.NewNop())
	})

	if rec := s.do(t, http.MethodPost, "/v1/admin/token", `{"password":"x"}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("token: expected 503, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/webhook/conversations", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("list: expected 503, got %d", rec.Code)
	}
}
