// Package woztell is the WhatsApp channel: outbound messages through the
// Woztell API plus parsing and signature checks for inbound webhooks.
package woztell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/woztell")

// DefaultBaseURL is the public Woztell API.
const DefaultBaseURL = "https://api.woztell.com/v2"

// Client sends WhatsApp messages through Woztell.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a new Client.
func NewClient(httpClient *http.Client, baseURL, token string, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		cb:         resilience.NewCircuitBreaker("woztell"),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	To       string        `json:"to"`
	Type     string        `json:"type"`
	Text     *textBody     `json:"text,omitempty"`
	Template *templateBody `json:"template,omitempty"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   map[string]string   `json:"language"`
	Components []templateComponent `json:"components"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []map[string]string `json:"parameters"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// SendText delivers a plain text message. Failures come back inside the
// result rather than as an error.
func (c *Client) SendText(ctx context.Context, to, body string) domain.SendResult {
	return c.send(ctx, "WoztellClient.SendText", sendRequest{
		To:   CleanPhone(to),
		Type: "text",
		Text: &textBody{Body: body},
	})
}

// SendTemplate delivers an approved WhatsApp template in Spanish with the
// given body parameters.
func (c *Client) SendTemplate(ctx context.Context, to, name string, params []string) domain.SendResult {
	tpl := &templateBody{
		Name:       name,
		Language:   map[string]string{"code": "es"},
		Components: []templateComponent{},
	}
	if len(params) > 0 {
		comp := templateComponent{Type: "body"}
		for _, p := range params {
			comp.Parameters = append(comp.Parameters, map[string]string{"type": "text", "text": p})
		}
		tpl.Components = append(tpl.Components, comp)
	}
	return c.send(ctx, "WoztellClient.SendTemplate", sendRequest{
		To:       CleanPhone(to),
		Type:     "template",
		Template: tpl,
	})
}

// MessageStatus fetches the delivery status document of a sent message.
func (c *Client) MessageStatus(ctx context.Context, messageID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "WoztellClient.MessageStatus")
	defer span.End()
	span.SetAttributes(attribute.String("message.id", messageID))

	var status map[string]any
	if err := c.do(ctx, http.MethodGet, "/messages/"+messageID, nil, &status); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return status, nil
}

func (c *Client) send(ctx context.Context, op string, req sendRequest) domain.SendResult {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("message.type", req.Type))

	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/messages", req, &resp); err != nil {
		span.RecordError(err)
		c.logger.Error("whatsapp send failed", zap.String("to", req.To), zap.Error(err))
		return domain.SendResult{Success: false, Status: "failed", Error: err.Error()}
	}

	c.logger.Info("whatsapp message sent", zap.String("to", req.To), zap.String("message_id", resp.ID))
	return domain.SendResult{Success: true, MessageID: resp.ID, Status: "sent", Parts: 1}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := resilience.Execute(c.cb, func() (struct{}, error) {
		return struct{}{}, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var body io.Reader
			if in != nil {
				raw, err := json.Marshal(in)
				if err != nil {
					return err
				}
				body = bytes.NewReader(raw)
			}

			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.token)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
			}
			if out == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)
		})
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrExternalError("woztell")
		}
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return err
		}
		return &domain.ErrExternalService{Service: "woztell", Err: err}
	}
	return nil
}
