package woztell_test

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
	"testing"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"
	"github.com/boddenberg/iagente-vida-go/internal/infra/woztell"

	"go.uber.org/zap"
)

func newClient(url string) *woztell.Client {
	return woztell.NewClient(&http.Client{Timeout: 5 * time.Second}, url, "biz-token",
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond}, nil, zap.NewNop())
}

func TestSendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer biz-token" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			To   string `json:"to"`
			Type string `json:"type"`
			Text struct {
				Body string `json:"body"`
			} `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.To != "34612345678" || body.Type != "text" || body.Text.Body != "hola" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Write([]byte(`{"id":"wamid.1"}`))
	}))
	defer server.Close()

	res := newClient(server.URL).SendText(context.Background(), "+34 612 345 678", "hola")

	if !res.Success || res.MessageID != "wamid.1" || res.Status != "sent" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSendText_FailureIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid token"))
	}))
	defer server.Close()

	res := newClient(server.URL).SendText(context.Background(), "612345678", "hola")

	if res.Success || res.Status != "failed" || !strings.Contains(res.Error, "HTTP 401") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSendTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Type     string `json:"type"`
			Template struct {
				Name     string            `json:"name"`
				Language map[string]string `json:"language"`
				Components []struct {
					Parameters []map[string]string `json:"parameters"`
				} `json:"components"`
			} `json:"template"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Type != "template" || body.Template.Name != "seguimiento" || body.Template.Language["code"] != "es" {
			t.Errorf("unexpected template %+v", body)
		}
		if len(body.Template.Components) != 1 || body.Template.Components[0].Parameters[0]["text"] != "Juan" {
			t.Errorf("unexpected components %+v", body.Template.Components)
		}
		w.Write([]byte(`{"id":"wamid.2"}`))
	}))
	defer server.Close()

	res := newClient(server.URL).SendTemplate(context.Background(), "34612345678", "seguimiento", []string{"Juan"})
	if !res.Success {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestMessageStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/wamid.1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"delivered"}`))
	}))
	defer server.Close()

	status, err := newClient(server.URL).MessageStatus(context.Background(), "wamid.1")
	if err != nil || status["status"] != "delivered" {
		t.Errorf("unexpected status %v / %v", status, err)
	}
}

func TestMessageStatus_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newClient(server.URL).MessageStatus(context.Background(), "missing")

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "woztell" {
		t.Errorf("expected ErrExternalService, got %v", err)
	}
}

func TestParseIncoming(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
		msgType string
	}{
		{"text", `{"from":"34600","message":{"type":"text","text":"hola"}}`, "hola", "text"},
		{"image caption", `{"from":"34600","message":{"type":"image","caption":"mi póliza"}}`, "mi póliza", "image"},
		{"image", `{"from":"34600","message":{"type":"image"}}`, "[Imagen]", "image"},
		{"document", `{"from":"34600","message":{"type":"document"}}`, "[Documento]", "document"},
		{"audio", `{"from":"34600","message":{"type":"audio","caption":"x"}}`, "[Audio]", "audio"},
		{"video", `{"from":"34600","message":{"type":"video"}}`, "[Video]", "video"},
		{"sticker", `{"from":"34600","message":{"type":"sticker"}}`, "[sticker]", "sticker"},
	}
	for _, tc := range cases {
		msg, err := woztell.ParseIncoming([]byte(tc.payload))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if msg.Content != tc.want || msg.Type != tc.msgType || msg.From != "34600" {
			t.Errorf("%s: unexpected message %+v", tc.name, msg)
		}
	}
}

func TestParseIncoming_ContactAndIDs(t *testing.T) {
	msg, err := woztell.ParseIncoming([]byte(`{"from":"34600","to":"34900","id":"m1","contact":{"name":"Laura"},"message":{"type":"text","text":"hola"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.To != "34900" || msg.ID != "m1" || msg.ContactName != "Laura" || msg.Timestamp.IsZero() {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestParseIncoming_NoMessage(t *testing.T) {
	if _, err := woztell.ParseIncoming([]byte(`{"status":"delivered"}`)); !errors.Is(err, woztell.ErrNoMessage) {
		t.Errorf("expected ErrNoMessage, got %v", err)
	}

	_, err := woztell.ParseIncoming([]byte(`not json`))
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCleanPhone(t *testing.T) {
	cases := map[string]string{
		"612 345 678":     "34612345678",
		"+34 612-345-678": "34612345678",
		"512345678":       "512345678",
		"44 7700 900123":  "447700900123",
	}
	for in, want := range cases {
		if got := woztell.CleanPhone(in); got != want {
			t.Errorf("CleanPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateSignature(t *testing.T) {
	payload := []byte(`{"from":"34600"}`)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !woztell.ValidateSignature(payload, sig, "s3cret") {
		t.Error("expected valid signature")
	}
	if !woztell.ValidateSignature(payload, "sha256="+sig, "s3cret") {
		t.Error("expected prefixed signature to be accepted")
	}
	if woztell.ValidateSignature(payload, sig, "other") {
		t.Error("expected wrong secret to fail")
	}
	if woztell.ValidateSignature(payload, "", "s3cret") {
		t.Error("expected empty signature to fail")
	}
}
