// Package chatwoot mirrors WhatsApp conversations into a Chatwoot inbox so
// human agents can follow what the bot is doing.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/chatwoot")

// MessageType is the direction of a Chatwoot message.
type MessageType string

const (
	Incoming MessageType = "incoming"
	Outgoing MessageType = "outgoing"
)

// Contact is a Chatwoot contact.
type Contact struct {
	ID               int            `json:"id"`
	Name             string         `json:"name"`
	PhoneNumber      string         `json:"phone_number"`
	Email            string         `json:"email,omitempty"`
	CustomAttributes map[string]any `json:"custom_attributes,omitempty"`
}

// Conversation is a Chatwoot conversation.
type Conversation struct {
	ID      int      `json:"id"`
	InboxID int      `json:"inbox_id"`
	Status  string   `json:"status"` // open, pending, resolved
	Labels  []string `json:"labels,omitempty"`
}

// Message is a message posted to a conversation.
type Message struct {
	ID             int    `json:"id"`
	ConversationID int    `json:"conversation_id"`
	MessageType    any    `json:"message_type"`
	Content        string `json:"content"`
}

// Options locates the Chatwoot account.
type Options struct {
	BaseURL   string
	Token     string
	AccountID int
	InboxID   int
}

// Client talks to the Chatwoot application API.
type Client struct {
	httpClient *http.Client
	opts       Options
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a new Client.
func NewClient(httpClient *http.Client, opts Options, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		opts:       opts,
		cb:         resilience.NewCircuitBreaker("chatwoot"),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateContact updates the contact with this phone number when it exists
// and creates it otherwise.
func (c *Client) CreateContact(ctx context.Context, phone, name string, attrs map[string]any) (*Contact, error) {
	ctx, span := tracer.Start(ctx, "ChatwootClient.CreateContact")
	defer span.End()

	existing, err := c.SearchContact(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return c.UpdateContact(ctx, existing.ID, name, attrs)
	}

	if attrs == nil {
		attrs = map[string]any{}
	}
	var contact Contact
	body := map[string]any{"name": name, "phone_number": phone, "custom_attributes": attrs}
	if err := c.do(ctx, http.MethodPost, "/contacts", body, &contact); err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.logger.Info("chatwoot contact created", zap.Int("contact_id", contact.ID))
	return &contact, nil
}

// SearchContact returns the contact whose phone number matches exactly, or
// nil when there is none.
func (c *Client) SearchContact(ctx context.Context, phone string) (*Contact, error) {
	var found []Contact
	if err := c.do(ctx, http.MethodGet, "/contacts/search?q="+url.QueryEscape(phone), nil, &found); err != nil {
		return nil, err
	}
	for i := range found {
		if found[i].PhoneNumber == phone {
			return &found[i], nil
		}
	}
	return nil, nil
}

// UpdateContact patches the name and custom attributes that are set.
func (c *Client) UpdateContact(ctx context.Context, id int, name string, attrs map[string]any) (*Contact, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if len(attrs) > 0 {
		body["custom_attributes"] = attrs
	}

	var contact Contact
	if err := c.do(ctx, http.MethodPatch, "/contacts/"+strconv.Itoa(id), body, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// CreateConversation opens a conversation for the contact in the configured inbox.
func (c *Client) CreateConversation(ctx context.Context, contactID int) (*Conversation, error) {
	var conv Conversation
	body := map[string]any{"contact_id": contactID, "inbox_id": c.opts.InboxID}
	if err := c.do(ctx, http.MethodPost, "/conversations", body, &conv); err != nil {
		return nil, err
	}
	c.logger.Info("chatwoot conversation created", zap.Int("conversation_id", conv.ID))
	return &conv, nil
}

// ConversationsByContact lists the contact's conversations.
func (c *Client) ConversationsByContact(ctx context.Context, contactID int) ([]Conversation, error) {
	var resp struct {
		Data []Conversation `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations?contact_id="+strconv.Itoa(contactID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SendMessage posts a public message to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID int, content string, typ MessageType) (*Message, error) {
	ctx, span := tracer.Start(ctx, "ChatwootClient.SendMessage")
	defer span.End()
	span.SetAttributes(
		attribute.Int("conversation.id", conversationID),
		attribute.String("message.type", string(typ)),
	)

	var msg Message
	body := map[string]any{"content": content, "message_type": typ, "private": false}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%d/messages", conversationID), body, &msg); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &msg, nil
}

// AddLabels tags a conversation.
func (c *Client) AddLabels(ctx context.Context, conversationID int, labels []string) error {
	body := map[string]any{"labels": labels}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%d/labels", conversationID), body, nil)
}

// UpdateStatus toggles a conversation to open, pending or resolved.
func (c *Client) UpdateStatus(ctx context.Context, conversationID int, status string) error {
	body := map[string]any{"status": status}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%d/toggle_status", conversationID), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%d%s", c.opts.BaseURL, c.opts.AccountID, path)

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

			req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api_access_token", c.opts.Token)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("chatwoot API returned status %d", resp.StatusCode)
			}
			if out == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)
		})
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrExternalError("chatwoot")
		}
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return err
		}
		return &domain.ErrExternalService{Service: "chatwoot", Err: err}
	}
	return nil
}
